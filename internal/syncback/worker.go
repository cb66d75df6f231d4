package syncback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/syncback/internal/domain"
	"github.com/shaiso/syncback/internal/repo"
	"github.com/shaiso/syncback/internal/telemetry"
)

// DefaultRetryDelay — пауза воркера после неудачи.
const DefaultRetryDelay = 30 * time.Second

// Store открывает транзакционные scope над action_log.
//
// Реализация: repo.TxManager.
type Store interface {
	WithTx(ctx context.Context, opts repo.TxOptions, fn func(tx repo.Tx) error) error
}

// Rescheduler освобождает захваченную запись.
//
// Реализация: Dispatcher.
type Rescheduler interface {
	MarkForRescheduling(entryID int64)
}

// WorkerConfig — конфигурация Worker.
type WorkerConfig struct {
	Handler     Handler
	Entry       domain.ActionLogEntry
	AccountID   int64
	Store       Store
	Rescheduler Rescheduler

	// RetryDelay — пауза после неудачи перед освобождением записи (default: 30s).
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Worker выполняет одну запись action_log.
//
// Пока воркер жив, его запись остаётся в ExclusionSet, поэтому
// диспетчер не запустит для неё второй воркер. Пауза после неудачи
// ограничивает частоту повторов: запись освобождается только после неё.
type Worker struct {
	handler     Handler
	entry       domain.ActionLogEntry
	accountID   int64
	store       Store
	rescheduler Rescheduler
	retryDelay  time.Duration
	logger      *slog.Logger
}

// NewWorker создаёт Worker.
func NewWorker(cfg WorkerConfig) *Worker {
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = telemetry.WithActionID(telemetry.WithAccountID(logger, cfg.AccountID), cfg.Entry.ID).
		With("action", cfg.Entry.Action, "record_id", cfg.Entry.RecordID)

	return &Worker{
		handler:     cfg.Handler,
		entry:       cfg.Entry,
		accountID:   cfg.AccountID,
		store:       cfg.Store,
		rescheduler: cfg.Rescheduler,
		retryDelay:  retryDelay,
		logger:      logger,
	}
}

// Run выполняет действие один раз.
//
// Возвращает nil при успехе или ошибку выполнения (уже после паузы RetryDelay).
// MarkForRescheduling вызывается ровно один раз при любом исходе.
func (w *Worker) Run(ctx context.Context) error {
	defer w.rescheduler.MarkForRescheduling(w.entry.ID)

	err := w.execute(ctx)
	if err == nil {
		telemetry.ActionsCompleted.WithLabelValues(string(w.entry.Action), telemetry.OutcomeSucceeded).Inc()
		w.logger.Info("syncback action completed")
		return nil
	}

	telemetry.ActionsCompleted.WithLabelValues(string(w.entry.Action), telemetry.OutcomeFailed).Inc()
	w.logger.Error("syncback action failed",
		"error", err,
		"retry_delay", w.retryDelay,
	)

	// Ждём с учётом context
	select {
	case <-time.After(w.retryDelay):
	case <-ctx.Done():
	}

	return err
}

// execute вызывает handler и отмечает запись выполненной в одной транзакции.
func (w *Worker) execute(ctx context.Context) error {
	opts := repo.TxOptions{IncludeSoftDeleted: true}

	return w.store.WithTx(ctx, opts, func(tx repo.Tx) error {
		if err := w.invoke(ctx, tx); err != nil {
			return err
		}

		entry, err := tx.GetAction(ctx, w.entry.ID)
		if err != nil {
			return fmt.Errorf("reload action: %w", err)
		}

		entry.MarkExecuted()
		if err := tx.UpdateAction(ctx, entry); err != nil {
			return fmt.Errorf("mark action executed: %w", err)
		}
		return nil
	})
}

// invoke вызывает handler, превращая панику в ошибку.
func (w *Worker) invoke(ctx context.Context, tx repo.Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
	}()

	ctx = telemetry.WithLogger(ctx, w.logger)
	if err := w.handler(ctx, w.accountID, w.entry.RecordID, tx); err != nil {
		return fmt.Errorf("%w: %w", ErrActionFailed, err)
	}
	return nil
}
