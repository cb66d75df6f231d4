package syncback

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/shaiso/syncback/internal/telemetry"
)

// RestartPolicy — политика перезапуска цикла после необработанной ошибки.
type RestartPolicy struct {
	// MaxRestarts — предел перезапусков подряд; 0 — без ограничения
	// (тогда от бесконечного цикла защищает только супервизор процесса).
	MaxRestarts int

	// Backoff — задержка перед перезапуском. backoff.Stop — сдаться.
	Backoff backoff.BackOff

	// ResetAfter — если цикл проработал дольше, счётчик и backoff сбрасываются.
	ResetAfter time.Duration
}

// DefaultRestartPolicy — экспоненциальная задержка 1s..30s без предела.
func DefaultRestartPolicy() RestartPolicy {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.Reset()

	return RestartPolicy{
		Backoff:    b,
		ResetAfter: time.Minute,
	}
}

// RetryWithLogging выполняет fn, перезапуская её после ошибки или паники.
//
// Возвращает nil, если fn завершилась без ошибки, ctx.Err() при отмене
// контекста и ErrRestartLimit, когда политика исчерпана.
func RetryWithLogging(ctx context.Context, logger *slog.Logger, policy RestartPolicy, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	bo := policy.Backoff
	if bo == nil {
		bo = &backoff.ZeroBackOff{}
	}

	restarts := 0
	for {
		started := time.Now()
		err := callRecovered(ctx, fn)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		if policy.ResetAfter > 0 && time.Since(started) >= policy.ResetAfter {
			restarts = 0
			bo.Reset()
		}

		restarts++
		telemetry.DispatcherRestarts.Inc()

		if policy.MaxRestarts > 0 && restarts > policy.MaxRestarts {
			logger.Error("restart limit reached, giving up", "error", err, "restarts", restarts-1)
			return fmt.Errorf("%w (%d): %w", ErrRestartLimit, policy.MaxRestarts, err)
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			logger.Error("restart backoff exhausted, giving up", "error", err, "restarts", restarts)
			return fmt.Errorf("%w: backoff exhausted: %w", ErrRestartLimit, err)
		}

		logger.Error("uncaught error, restarting",
			"error", err,
			"restart", restarts,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// callRecovered вызывает fn, превращая панику в ошибку.
func callRecovered(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	return fn(ctx)
}
