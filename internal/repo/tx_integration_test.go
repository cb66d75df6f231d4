//go:build integration

package repo

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/syncback/internal/domain"
)

// Запуск: DB_URL=... go test -tags integration ./internal/repo/

func setupDB(t *testing.T) (*pgxpool.Pool, int64) {
	t.Helper()
	if os.Getenv("DB_URL") == "" {
		t.Skip("DB_URL not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, 4)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	var nsID int64
	if err := pool.QueryRow(ctx, `INSERT INTO namespaces (account_id) VALUES (42) RETURNING id`).Scan(&nsID); err != nil {
		t.Fatalf("insert namespace: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = pool.Exec(ctx, `DELETE FROM action_log WHERE namespace_id = $1`, nsID)
		_, _ = pool.Exec(ctx, `DELETE FROM messages WHERE namespace_id = $1`, nsID)
		_, _ = pool.Exec(ctx, `DELETE FROM namespaces WHERE id = $1`, nsID)
	})
	return pool, nsID
}

func createActions(t *testing.T, pool *pgxpool.Pool, nsID int64, n int) []int64 {
	t.Helper()
	actions := NewActionLogRepo(pool)

	ids := make([]int64, n)
	for i := range ids {
		entry := &domain.ActionLogEntry{NamespaceID: nsID, Action: domain.ActionArchive, RecordID: int64(i + 1)}
		if err := actions.Create(context.Background(), entry); err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids[i] = entry.ID
	}
	return ids
}

// pendingIn оставляет только записи тестового namespace.
func pendingIn(t *testing.T, tx Tx, nsID, afterID int64, exclude []int64, limit int) []int64 {
	t.Helper()
	entries, err := tx.PendingActions(context.Background(), afterID, exclude, limit)
	if err != nil {
		t.Fatalf("PendingActions: %v", err)
	}
	var ids []int64
	for _, e := range entries {
		if e.NamespaceID == nsID {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPendingActions_ExcludesClaimedAndExecuted(t *testing.T) {
	pool, nsID := setupDB(t)
	ctx := context.Background()
	ids := createActions(t, pool, nsID, 5)
	txm := NewTxManager(pool)

	err := txm.WithTx(ctx, TxOptions{}, func(tx Tx) error {
		entry, err := tx.GetAction(ctx, ids[4])
		if err != nil {
			return err
		}
		entry.MarkExecuted()
		return tx.UpdateAction(ctx, entry)
	})
	if err != nil {
		t.Fatalf("mark executed: %v", err)
	}

	afterID := ids[0] - 1
	err = txm.WithTx(ctx, TxOptions{}, func(tx Tx) error {
		got := pendingIn(t, tx, nsID, afterID, []int64{ids[1], ids[3]}, 1000)
		if want := []int64{ids[0], ids[2]}; !equalIDs(got, want) {
			t.Errorf("with exclusion: got %v, want %v", got, want)
		}

		got = pendingIn(t, tx, nsID, afterID, nil, 1000)
		if want := ids[:4]; !equalIDs(got, want) {
			t.Errorf("nil exclusion: got %v, want %v", got, want)
		}

		got = pendingIn(t, tx, nsID, ids[1], []int64{ids[2]}, 1000)
		if want := []int64{ids[3]}; !equalIDs(got, want) {
			t.Errorf("keyset after %d: got %v, want %v", ids[1], got, want)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	pool, nsID := setupDB(t)
	ctx := context.Background()
	ids := createActions(t, pool, nsID, 1)
	txm := NewTxManager(pool)

	fnErr := errors.New("handler failed")
	err := txm.WithTx(ctx, TxOptions{}, func(tx Tx) error {
		entry, err := tx.GetAction(ctx, ids[0])
		if err != nil {
			return err
		}
		entry.MarkExecuted()
		if err := tx.UpdateAction(ctx, entry); err != nil {
			return err
		}
		return fnErr
	})
	if !errors.Is(err, fnErr) {
		t.Fatalf("expected fn error, got %v", err)
	}

	entry, err := NewActionLogRepo(pool).GetByID(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if entry.Executed {
		t.Error("update must be rolled back")
	}
}

func TestGetMessage_SoftDeleted(t *testing.T) {
	pool, nsID := setupDB(t)
	ctx := context.Background()

	var msgID int64
	err := pool.QueryRow(ctx, `
		INSERT INTO messages (namespace_id, folder, remote_uid, is_draft, deleted_at)
		VALUES ($1, 'Drafts', 7, true, now())
		RETURNING id
	`, nsID).Scan(&msgID)
	if err != nil {
		t.Fatalf("insert message: %v", err)
	}

	txm := NewTxManager(pool)

	err = txm.WithTx(ctx, TxOptions{}, func(tx Tx) error {
		_, err := tx.GetMessage(ctx, msgID)
		return err
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted message should be hidden by default, got %v", err)
	}

	err = txm.WithTx(ctx, TxOptions{IncludeSoftDeleted: true}, func(tx Tx) error {
		msg, err := tx.GetMessage(ctx, msgID)
		if err != nil {
			return err
		}
		if !msg.IsDeleted() || !msg.IsDraft || msg.RemoteUID != 7 {
			t.Errorf("unexpected message: %+v", msg)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("IncludeSoftDeleted: %v", err)
	}
}
