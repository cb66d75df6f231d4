// syncback-dispatcher — переносит локальные изменения почты на удалённые аккаунты.
//
// Диспетчер:
//   - Берёт глобальный lock (один активный экземпляр на action_log)
//   - Читает невыполненные записи action_log
//   - Выполняет их пулом воркеров; handler'ы публикуют команды в RabbitMQ
//   - Просыпается раньше срока по событию action.logged
//
// Остальные экземпляры ждут lock и подхватывают работу при падении держателя.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/syncback/internal/actions"
	"github.com/shaiso/syncback/internal/api"
	"github.com/shaiso/syncback/internal/lock"
	"github.com/shaiso/syncback/internal/mq"
	"github.com/shaiso/syncback/internal/repo"
	"github.com/shaiso/syncback/internal/syncback"
	"github.com/shaiso/syncback/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting syncback-dispatcher")

	if err := run(logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("syncback-dispatcher failed", "error", err)
		os.Exit(1)
	}
	logger.Info("syncback-dispatcher stopped")
}

func run(logger *slog.Logger) error {
	cfg, err := osConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := repo.NewPool(ctx, cfg.dbMaxConns())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	if err := repo.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	locker := newLocker(cfg, pool)

	// RabbitMQ не обязателен: без него handler'ы падают, записи ждут
	var publisher *mq.Publisher
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, actions will stay pending", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		logger.Debug("rabbitmq topology", "info", mq.TopologyInfo())
		publisher = mq.NewPublisher(mqConn, logger)
	}

	var commands actions.CommandPublisher
	if publisher != nil {
		commands = publisher
	}
	registry, err := actions.NewRegistry(commands)
	if err != nil {
		return fmt.Errorf("build action registry: %w", err)
	}

	policy := syncback.DefaultRestartPolicy()
	policy.MaxRestarts = cfg.MaxRestarts

	dispatcher := syncback.New(syncback.Config{
		Store:         repo.NewTxManager(pool),
		Locker:        locker,
		Registry:      registry,
		PollInterval:  cfg.PollInterval,
		ChunkSize:     cfg.ChunkSize,
		PoolSize:      cfg.PoolSize,
		RetryDelay:    cfg.RetryDelay,
		RestartPolicy: policy,
		Logger:        logger,
	})

	if mqConn != nil {
		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Declare: mq.DeclareWakeQueue,
			Handler: func(_ context.Context, d *mq.Delivery) error {
				if d.Message.Type == mq.MessageTypeActionLogged {
					dispatcher.Wake()
				}
				return nil
			},
		})
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("wake consumer stopped", "error", err)
			}
		}()
	}

	server := newHTTPServer(cfg, logger, dispatcher, repo.NewActionLogRepo(pool), publisher)
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	runErr := dispatcher.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	return runErr
}

func newLocker(cfg config, pool *pgxpool.Pool) syncback.Locker {
	if cfg.LockBackend == lockBackendFile {
		return lock.NewFileLock(cfg.LockPath)
	}
	return lock.NewPostgresLock(pool, cfg.LockKey)
}

func newHTTPServer(cfg config, logger *slog.Logger, dispatcher *syncback.Dispatcher, actionRepo *repo.ActionLogRepo, publisher *mq.Publisher) *http.Server {
	apiCfg := api.Config{
		Actions:    actionRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
	if publisher != nil {
		apiCfg.Publisher = publisher
	}
	handler := api.NewHandler(apiCfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

var (
	_ syncback.Locker = (*lock.PostgresLock)(nil)
	_ syncback.Locker = (*lock.FileLock)(nil)
)
