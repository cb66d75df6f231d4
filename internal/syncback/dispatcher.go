package syncback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/syncback/internal/domain"
	"github.com/shaiso/syncback/internal/repo"
	"github.com/shaiso/syncback/internal/telemetry"
)

// Default configuration values.
const (
	DefaultPollInterval      = time.Second
	DefaultChunkSize         = 100
	DefaultLockRetryInterval = 500 * time.Millisecond
)

// State — состояние цикла диспетчера.
type State string

const (
	StateUnstarted     State = "unstarted"
	StateAcquiringLock State = "acquiring_lock"
	StatePolling       State = "polling"
	StateSleeping      State = "sleeping"
	StateStopped       State = "stopped"
)

// Config — конфигурация Dispatcher.
type Config struct {
	Store    Store
	Locker   Locker
	Registry *Registry

	// PollInterval — сон между проходами по логу (default: 1s).
	PollInterval time.Duration

	// ChunkSize — размер страницы при чтении лога (default: 100).
	ChunkSize int

	// PoolSize — максимум одновременно выполняемых действий (default: 22).
	PoolSize int

	// RetryDelay — пауза воркера после неудачи (default: 30s).
	RetryDelay time.Duration

	// LockRetryInterval — пауза между попытками взять lock (default: 500ms).
	LockRetryInterval time.Duration

	// RestartPolicy — политика перезапуска (nil Backoff → DefaultRestartPolicy).
	RestartPolicy RestartPolicy

	Logger *slog.Logger
}

// Status — снимок состояния диспетчера.
type Status struct {
	InstanceID  string  `json:"instance_id"`
	State       State   `json:"state"`
	LockHeld    bool    `json:"lock_held"`
	InFlight    []int64 `json:"in_flight"`
	PoolSize    int     `json:"pool_size"`
	PoolRunning int     `json:"pool_running"`
}

// Dispatcher вычитывает action_log и раздаёт записи воркерам.
type Dispatcher struct {
	store    Store
	locker   Locker
	registry *Registry

	pollInterval      time.Duration
	chunkSize         int
	retryDelay        time.Duration
	lockRetryInterval time.Duration
	restartPolicy     RestartPolicy

	exclusion *ExclusionSet
	pool      *Pool
	wake      chan struct{}

	instanceID uuid.UUID
	logger     *slog.Logger

	mu       sync.RWMutex
	state    State
	lockHeld bool
}

// New создаёт новый Dispatcher.
func New(cfg Config) *Dispatcher {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	lockRetryInterval := cfg.LockRetryInterval
	if lockRetryInterval <= 0 {
		lockRetryInterval = DefaultLockRetryInterval
	}

	restartPolicy := cfg.RestartPolicy
	if restartPolicy.Backoff == nil {
		def := DefaultRestartPolicy()
		restartPolicy.Backoff = def.Backoff
		if restartPolicy.ResetAfter == 0 {
			restartPolicy.ResetAfter = def.ResetAfter
		}
	}

	instanceID := uuid.New()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "syncback", "instance_id", instanceID.String())

	return &Dispatcher{
		store:             cfg.Store,
		locker:            cfg.Locker,
		registry:          cfg.Registry,
		pollInterval:      pollInterval,
		chunkSize:         chunkSize,
		retryDelay:        retryDelay,
		lockRetryInterval: lockRetryInterval,
		restartPolicy:     restartPolicy,
		exclusion:         NewExclusionSet(),
		pool:              NewPool(cfg.PoolSize),
		wake:              make(chan struct{}, 1),
		instanceID:        instanceID,
		logger:            logger,
		state:             StateUnstarted,
	}
}

// Run запускает диспетчер и блокируется до отмены ctx.
//
// Необработанные ошибки цикла логируются, цикл перезапускается по
// RestartPolicy. При отмене ctx Run ждёт завершения воркеров и
// отпускает lock. Возвращает ctx.Err() или ErrRestartLimit.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("starting syncback dispatcher",
		"poll_interval", d.pollInterval,
		"chunk_size", d.chunkSize,
		"pool_size", d.pool.Size(),
		"retry_delay", d.retryDelay,
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := RetryWithLogging(runCtx, d.logger, d.restartPolicy, d.run)

	// Воркеры в паузе после неудачи не должны держать остановку
	cancel()

	// Lock отпускаем только после воркеров: иначе другой экземпляр
	// может взять ещё выполняющиеся записи.
	d.pool.Wait()
	d.releaseLock()
	d.setState(StateStopped)

	d.logger.Info("syncback dispatcher stopped", "reason", err)
	return err
}

// run — один запуск цикла: lock, затем poll/sleep до ошибки.
func (d *Dispatcher) run(ctx context.Context) error {
	if err := d.acquireLock(ctx); err != nil {
		return err
	}

	d.logger.Info("syncback lock acquired, processing action log")

	for first := true; ; first = false {
		if !first {
			if err := d.checkLock(ctx); err != nil {
				return err
			}
		}

		d.setState(StatePolling)
		if err := d.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !errors.Is(err, ErrInvalidEntry) {
				return err
			}
			// Записи пропущены, остальная работа poll'а выполнена
			d.logger.Error("action log contains entries that cannot be dispatched", "error", err)
		}

		d.setState(StateSleeping)
		if !d.sleep(ctx) {
			return ctx.Err()
		}
	}
}

// acquireLock крутится на TryLock, пока lock не освободится.
func (d *Dispatcher) acquireLock(ctx context.Context) error {
	d.setState(StateAcquiringLock)

	for attempt := 0; ; attempt++ {
		ok, err := d.locker.TryLock(ctx)
		if err != nil {
			d.setLockHeld(false)
			return fmt.Errorf("acquire syncback lock: %w", err)
		}
		if ok {
			d.setLockHeld(true)
			return nil
		}

		if attempt == 0 {
			d.logger.Info("syncback lock is held by another instance, waiting")
		}

		select {
		case <-time.After(d.lockRetryInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// checkLock подтверждает перед каждым poll, что lock всё ещё наш.
// Потерянный lock возвращается супервизору: следующий запуск
// снова ждёт его в acquireLock.
func (d *Dispatcher) checkLock(ctx context.Context) error {
	ok, err := d.locker.TryLock(ctx)
	if err == nil && ok {
		return nil
	}

	d.setLockHeld(false)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLockLost, err)
	}
	return ErrLockLost
}

func (d *Dispatcher) releaseLock() {
	d.mu.RLock()
	held := d.lockHeld
	d.mu.RUnlock()
	if !held {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.locker.Unlock(ctx); err != nil {
		d.logger.Warn("failed to release syncback lock", "error", err)
	}
	d.setLockHeld(false)
}

// sleep ждёт PollInterval или Wake. false — ctx отменён.
func (d *Dispatcher) sleep(ctx context.Context) bool {
	timer := time.NewTimer(d.pollInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-d.wake:
		return true
	case <-ctx.Done():
		return false
	}
}

// PollOnce выполняет один проход по невыполненным записям лога.
//
// Записи читаются страницами по ChunkSize в порядке возрастания id,
// каждая захватывается в ExclusionSet и отдаётся в Pool. Submit
// блокируется, пока пул заполнен.
//
// Записи, которые нельзя диспетчеризовать (неизвестный тип, нет
// namespace), пропускаются; их ошибки возвращаются вместе, обёрнутые
// в ErrInvalidEntry. Ошибка хранилища прерывает проход.
func (d *Dispatcher) PollOnce(ctx context.Context) error {
	start := time.Now()
	defer func() {
		telemetry.PollDuration.Observe(time.Since(start).Seconds())
	}()

	var skipped []error
	dispatched := 0

	err := d.store.WithTx(ctx, repo.TxOptions{}, func(tx repo.Tx) error {
		var afterID int64
		for {
			entries, err := tx.PendingActions(ctx, afterID, d.exclusion.Snapshot(), d.chunkSize)
			if err != nil {
				return err
			}

			for i := range entries {
				entry := entries[i]
				afterID = entry.ID

				submitted, err := d.dispatch(ctx, tx, entry)
				if err != nil {
					if errors.Is(err, ErrInvalidEntry) {
						skipped = append(skipped, err)
						continue
					}
					return err
				}
				if submitted {
					dispatched++
				}
			}

			if len(entries) < d.chunkSize {
				return nil
			}
		}
	})
	if err != nil {
		return fmt.Errorf("process action log: %w", err)
	}

	if dispatched > 0 {
		d.logger.Debug("poll dispatched actions", "count", dispatched)
	}

	return errors.Join(skipped...)
}

// dispatch захватывает запись и отдаёт её воркеру.
// false без ошибки — запись уже захвачена другим воркером.
func (d *Dispatcher) dispatch(ctx context.Context, tx repo.Tx, entry domain.ActionLogEntry) (bool, error) {
	handler, err := d.registry.Get(entry.Action)
	if err != nil {
		telemetry.UnknownActions.WithLabelValues(string(entry.Action)).Inc()
		d.logger.Error("unknown action kind in action log",
			"action_id", entry.ID,
			"action", entry.Action,
			"namespace_id", entry.NamespaceID,
		)
		return false, fmt.Errorf("%w: action %d: %w", ErrInvalidEntry, entry.ID, err)
	}

	accountID, err := tx.AccountID(ctx, entry.NamespaceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			d.logger.Error("action references missing namespace",
				"action_id", entry.ID,
				"action", entry.Action,
				"namespace_id", entry.NamespaceID,
			)
			return false, fmt.Errorf("%w: action %d: %w", ErrInvalidEntry, entry.ID, err)
		}
		return false, fmt.Errorf("resolve account for action %d: %w", entry.ID, err)
	}

	if !d.exclusion.Add(entry.ID) {
		return false, nil
	}
	telemetry.ActionsInFlight.Set(float64(d.exclusion.Len()))

	worker := NewWorker(WorkerConfig{
		Handler:     handler,
		Entry:       entry,
		AccountID:   accountID,
		Store:       d.store,
		Rescheduler: d,
		RetryDelay:  d.retryDelay,
		Logger:      d.logger,
	})

	d.logger.Info("delegating action",
		"action_id", entry.ID,
		"action", entry.Action,
		"account_id", accountID,
	)

	if err := d.pool.Submit(ctx, func() { _ = worker.Run(ctx) }); err != nil {
		// Воркер не запущен — освобождаем запись сами
		d.MarkForRescheduling(entry.ID)
		return false, fmt.Errorf("submit action %d: %w", entry.ID, err)
	}

	telemetry.ActionsDispatched.WithLabelValues(string(entry.Action)).Inc()
	return true, nil
}

// MarkForRescheduling освобождает запись: если она не выполнена,
// следующий poll отдаст её воркеру снова.
func (d *Dispatcher) MarkForRescheduling(entryID int64) {
	d.exclusion.Remove(entryID)
	telemetry.ActionsInFlight.Set(float64(d.exclusion.Len()))
}

// Wake прерывает текущий сон между poll'ами. Не блокирует.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Status возвращает снимок состояния.
func (d *Dispatcher) Status() Status {
	d.mu.RLock()
	state, lockHeld := d.state, d.lockHeld
	d.mu.RUnlock()

	return Status{
		InstanceID:  d.instanceID.String(),
		State:       state,
		LockHeld:    lockHeld,
		InFlight:    d.exclusion.Snapshot(),
		PoolSize:    d.pool.Size(),
		PoolRunning: d.pool.Running(),
	}
}

// State возвращает текущее состояние цикла.
func (d *Dispatcher) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

func (d *Dispatcher) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

func (d *Dispatcher) setLockHeld(held bool) {
	d.mu.Lock()
	d.lockHeld = held
	d.mu.Unlock()

	if held {
		telemetry.LockHeld.Set(1)
	} else {
		telemetry.LockHeld.Set(0)
	}
}
