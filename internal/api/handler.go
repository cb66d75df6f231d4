package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/syncback/internal/domain"
	"github.com/shaiso/syncback/internal/mq"
	"github.com/shaiso/syncback/internal/repo"
	"github.com/shaiso/syncback/internal/syncback"
)

// ActionStore — доступ к action_log. Реализация: repo.ActionLogRepo.
type ActionStore interface {
	Create(ctx context.Context, entry *domain.ActionLogEntry) error
	GetByID(ctx context.Context, id int64) (*domain.ActionLogEntry, error)
	List(ctx context.Context, filter repo.ActionFilter) ([]domain.ActionLogEntry, error)
	CountPending(ctx context.Context) (int64, error)
}

// StatusProvider — снимок состояния диспетчера. Реализация: syncback.Dispatcher.
type StatusProvider interface {
	Status() syncback.Status
}

// EventPublisher публикует action.logged. Реализация: mq.Publisher.
type EventPublisher interface {
	PublishActionLogged(ctx context.Context, payload mq.ActionLoggedPayload) error
}

// Handler — обработчик API.
type Handler struct {
	actions    ActionStore
	dispatcher StatusProvider
	publisher  EventPublisher
	logger     *slog.Logger
}

// Config — зависимости Handler. Publisher может быть nil.
type Config struct {
	Actions    ActionStore
	Dispatcher StatusProvider
	Publisher  EventPublisher
	Logger     *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		actions:    cfg.Actions,
		dispatcher: cfg.Dispatcher,
		publisher:  cfg.Publisher,
		logger:     logger,
	}
}
