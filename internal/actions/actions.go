package actions

import (
	"context"
	"fmt"

	"github.com/shaiso/syncback/internal/domain"
	"github.com/shaiso/syncback/internal/mq"
	"github.com/shaiso/syncback/internal/repo"
	"github.com/shaiso/syncback/internal/syncback"
	"github.com/shaiso/syncback/internal/telemetry"
)

// CommandPublisher отправляет команды агентам аккаунтов.
//
// Реализация: mq.Publisher.
type CommandPublisher interface {
	PublishCommand(ctx context.Context, cmd mq.SyncbackCommand) error
}

// Handler возвращает handler для типа действия.
func Handler(kind domain.ActionKind, pub CommandPublisher) syncback.Handler {
	return func(ctx context.Context, accountID, recordID int64, tx repo.Tx) error {
		msg, err := tx.GetMessage(ctx, recordID)
		if err != nil {
			return fmt.Errorf("load message %d: %w", recordID, err)
		}

		if kind.IsDraftAction() && !msg.IsDraft {
			return fmt.Errorf("%s message %d: %w", kind, recordID, ErrNotDraft)
		}

		if pub == nil {
			return ErrPublisherUnavailable
		}

		cmd := mq.SyncbackCommand{
			Action:    string(kind),
			AccountID: accountID,
			RecordID:  recordID,
			Folder:    msg.Folder,
			RemoteUID: msg.RemoteUID,
			IsDraft:   msg.IsDraft,
			Deleted:   msg.IsDeleted(),
		}
		if err := pub.PublishCommand(ctx, cmd); err != nil {
			return fmt.Errorf("publish %s command: %w", kind, err)
		}

		telemetry.FromContext(ctx).Debug("syncback command published",
			"folder", cmd.Folder,
			"remote_uid", cmd.RemoteUID,
		)
		return nil
	}
}

// Handlers возвращает handler'ы для всех известных типов действий.
func Handlers(pub CommandPublisher) map[domain.ActionKind]syncback.Handler {
	kinds := domain.AllActionKinds()
	handlers := make(map[domain.ActionKind]syncback.Handler, len(kinds))
	for _, kind := range kinds {
		handlers[kind] = Handler(kind, pub)
	}
	return handlers
}

// NewRegistry создаёт полный реестр syncback.
//
// pub == nil допустим: handler'ы будут завершаться ErrPublisherUnavailable.
func NewRegistry(pub CommandPublisher) (*syncback.Registry, error) {
	return syncback.NewRegistry(Handlers(pub))
}
