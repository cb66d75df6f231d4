package lock

import "errors"

var (
	// ErrNotHeld — Unlock без взятого lock'а.
	ErrNotHeld = errors.New("lock not held")

	// ErrLockLost — держатель потерял lock (например, оборвалась сессия БД).
	ErrLockLost = errors.New("lock lost")
)
