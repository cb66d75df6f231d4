package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/syncback/internal/domain"
)

// TxOptions — параметры транзакционного scope.
type TxOptions struct {
	// IncludeSoftDeleted — не скрывать мягко удалённые сообщения.
	// Нужно воркерам: удалённый черновик всё ещё надо удалить на удалённой стороне.
	IncludeSoftDeleted bool
}

// Tx — операции, доступные внутри транзакционного scope.
//
// Tx не разделяется между горутинами: каждый poll и каждый воркер
// открывает собственный scope.
type Tx interface {
	// PendingActions возвращает до limit невыполненных записей с id > afterID,
	// не входящих в exclude, по возрастанию id.
	PendingActions(ctx context.Context, afterID int64, exclude []int64, limit int) ([]domain.ActionLogEntry, error)

	// GetAction возвращает запись лога по ID.
	GetAction(ctx context.Context, id int64) (*domain.ActionLogEntry, error)

	// UpdateAction сохраняет executed-состояние записи.
	UpdateAction(ctx context.Context, entry *domain.ActionLogEntry) error

	// AccountID резолвит namespace в аккаунт.
	AccountID(ctx context.Context, namespaceID int64) (int64, error)

	// GetMessage возвращает сообщение с учётом TxOptions.IncludeSoftDeleted.
	GetMessage(ctx context.Context, id int64) (*domain.Message, error)
}

// querier — общее подмножество pgxpool.Pool и pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager открывает транзакционные scope поверх пула.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager создаёт новый TxManager.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTx выполняет fn внутри транзакции.
//
// nil от fn — commit, ошибка или паника — rollback.
func (m *TxManager) WithTx(ctx context.Context, opts TxOptions, fn func(tx Tx) error) (err error) {
	pgTx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			// ошибка rollback дописывается к исходной
			if rbErr := pgTx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	defer func() {
		if p := recover(); p != nil {
			_ = pgTx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err = fn(&session{q: pgTx, opts: opts}); err != nil {
		return err
	}

	if err = pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// session — реализация Tx поверх pgx.Tx.
type session struct {
	q    querier
	opts TxOptions
}

const actionColumns = `id, namespace_id, action, record_id, executed, executed_at, created_at`

func (s *session) PendingActions(ctx context.Context, afterID int64, exclude []int64, limit int) ([]domain.ActionLogEntry, error) {
	if exclude == nil {
		exclude = []int64{}
	}

	query := `
		SELECT ` + actionColumns + `
		FROM action_log
		WHERE executed = false
		  AND id > $1
		  AND id <> ALL($2::bigint[])
		ORDER BY id ASC
		LIMIT $3
	`
	rows, err := s.q.Query(ctx, query, afterID, exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending actions: %w", err)
	}
	return collectActions(rows)
}

func (s *session) GetAction(ctx context.Context, id int64) (*domain.ActionLogEntry, error) {
	query := `SELECT ` + actionColumns + ` FROM action_log WHERE id = $1`
	return scanAction(s.q.QueryRow(ctx, query, id))
}

func (s *session) UpdateAction(ctx context.Context, entry *domain.ActionLogEntry) error {
	result, err := s.q.Exec(ctx, `
		UPDATE action_log
		SET executed = $2, executed_at = $3
		WHERE id = $1
	`, entry.ID, entry.Executed, entry.ExecutedAt)
	if err != nil {
		return fmt.Errorf("update action: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *session) AccountID(ctx context.Context, namespaceID int64) (int64, error) {
	var accountID int64
	err := s.q.QueryRow(ctx, `SELECT account_id FROM namespaces WHERE id = $1`, namespaceID).Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("namespace %d: %w", namespaceID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get namespace: %w", err)
	}
	return accountID, nil
}

func (s *session) GetMessage(ctx context.Context, id int64) (*domain.Message, error) {
	query := `
		SELECT id, namespace_id, folder, remote_uid, is_draft, deleted_at
		FROM messages
		WHERE id = $1
	`
	if !s.opts.IncludeSoftDeleted {
		query += ` AND deleted_at IS NULL`
	}

	var msg domain.Message
	err := s.q.QueryRow(ctx, query, id).Scan(
		&msg.ID,
		&msg.NamespaceID,
		&msg.Folder,
		&msg.RemoteUID,
		&msg.IsDraft,
		&msg.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("message %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return &msg, nil
}

// --- Helpers ---

func scanAction(row pgx.Row) (*domain.ActionLogEntry, error) {
	var entry domain.ActionLogEntry
	var action string

	err := row.Scan(
		&entry.ID,
		&entry.NamespaceID,
		&action,
		&entry.RecordID,
		&entry.Executed,
		&entry.ExecutedAt,
		&entry.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan action: %w", err)
	}

	// Неизвестный тип не отбрасывается здесь: его обрабатывает диспетчер
	entry.Action = domain.ActionKind(action)
	return &entry, nil
}

func collectActions(rows pgx.Rows) ([]domain.ActionLogEntry, error) {
	defer rows.Close()

	var entries []domain.ActionLogEntry
	for rows.Next() {
		entry, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}
