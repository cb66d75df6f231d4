package syncback

import "errors"

// Ошибки диспетчера.
var (
	// ErrUnknownActionKind — в логе тип действия, которого нет в реестре.
	ErrUnknownActionKind = errors.New("unknown action kind")

	// ErrMissingHandler — реестр создаётся без handler'а для известного типа.
	ErrMissingHandler = errors.New("missing handler for action kind")

	// ErrInvalidEntry — запись лога нельзя диспетчеризовать (пропущена в этом poll).
	ErrInvalidEntry = errors.New("invalid action log entry")

	// ErrActionFailed — handler завершился ошибкой.
	ErrActionFailed = errors.New("syncback action failed")

	// ErrHandlerPanic — handler запаниковал.
	ErrHandlerPanic = errors.New("syncback handler panicked")

	// ErrLockLost — глобальный lock больше не принадлежит этому экземпляру.
	ErrLockLost = errors.New("syncback lock lost")

	// ErrRestartLimit — супервизор исчерпал перезапуски.
	ErrRestartLimit = errors.New("restart limit reached")
)
