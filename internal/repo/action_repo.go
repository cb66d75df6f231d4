package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/syncback/internal/domain"
)

// ActionFilter — фильтр для списка записей лога.
type ActionFilter struct {
	// PendingOnly — только записи с executed = false.
	PendingOnly bool

	// AfterID — keyset-пагинация: записи с id > AfterID.
	AfterID int64

	Limit int
}

// ActionLogRepo — репозиторий action_log для API.
//
// Диспетчер сюда не ходит: он работает через TxManager.
type ActionLogRepo struct {
	pool *pgxpool.Pool
}

// NewActionLogRepo создаёт новый ActionLogRepo.
func NewActionLogRepo(pool *pgxpool.Pool) *ActionLogRepo {
	return &ActionLogRepo{pool: pool}
}

// Create добавляет запись в лог. Namespace должен существовать.
func (r *ActionLogRepo) Create(ctx context.Context, entry *domain.ActionLogEntry) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM namespaces WHERE id = $1)`, entry.NamespaceID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check namespace: %w", err)
	}
	if !exists {
		return fmt.Errorf("namespace %d: %w", entry.NamespaceID, ErrNotFound)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO action_log (namespace_id, action, record_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, entry.NamespaceID, string(entry.Action), entry.RecordID).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// GetByID возвращает запись по ID.
func (r *ActionLogRepo) GetByID(ctx context.Context, id int64) (*domain.ActionLogEntry, error) {
	query := `SELECT ` + actionColumns + ` FROM action_log WHERE id = $1`
	return scanAction(r.pool.QueryRow(ctx, query, id))
}

// List возвращает записи по фильтру, по возрастанию id.
func (r *ActionLogRepo) List(ctx context.Context, filter ActionFilter) ([]domain.ActionLogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + actionColumns + `
		FROM action_log
		WHERE id > $1
		  AND ($2 = false OR executed = false)
		ORDER BY id ASC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, filter.AfterID, filter.PendingOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return collectActions(rows)
}

// CountPending возвращает размер невыполненного backlog.
func (r *ActionLogRepo) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM action_log WHERE executed = false`).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count pending actions: %w", err)
	}
	return count, nil
}
