package lock

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// advisoryConn — то, что нужно lock'у от соединения (*pgxpool.Conn).
type advisoryConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Release()
}

type acquireConnFunc func(ctx context.Context) (advisoryConn, error)

// PostgresLock — advisory lock, живущий вместе с сессией.
//
// Advisory lock принадлежит соединению, поэтому PostgresLock держит
// соединение из пула всё время, пока владеет lock'ом.
type PostgresLock struct {
	acquire acquireConnFunc
	name    string
	key     int64

	mu   sync.Mutex
	conn advisoryConn
}

// NewPostgresLock создаёт lock с ключом, вычисленным из name.
func NewPostgresLock(pool *pgxpool.Pool, name string) *PostgresLock {
	return newPostgresLockWithAcquire(func(ctx context.Context) (advisoryConn, error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}, name)
}

func newPostgresLockWithAcquire(acquire acquireConnFunc, name string) *PostgresLock {
	return &PostgresLock{
		acquire: acquire,
		name:    name,
		key:     KeyFor(name),
	}
}

// KeyFor превращает имя lock'а в bigint-ключ advisory lock'а.
func KeyFor(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

// Name возвращает имя lock'а.
func (l *PostgresLock) Name() string { return l.name }

// Key возвращает ключ advisory lock'а.
func (l *PostgresLock) Key() int64 { return l.key }

// TryLock пытается взять lock, не блокируясь.
//
// Если lock уже взят этим экземпляром, проверяет, что сессия жива;
// при обрыве соединения возвращает ErrLockLost и забывает lock.
func (l *PostgresLock) TryLock(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		if _, err := l.conn.Exec(ctx, "select 1"); err != nil {
			l.conn.Release()
			l.conn = nil
			return false, fmt.Errorf("%w: %s: %w", ErrLockLost, l.name, err)
		}
		return true, nil
	}

	conn, err := l.acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, "select pg_try_advisory_lock($1)", l.key).Scan(&ok); err != nil {
		conn.Release()
		return false, fmt.Errorf("pg_try_advisory_lock %s: %w", l.name, err)
	}
	if !ok {
		conn.Release()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Unlock отпускает lock и возвращает соединение в пул.
func (l *PostgresLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return ErrNotHeld
	}
	conn := l.conn
	l.conn = nil
	defer conn.Release()

	var ok bool
	if err := conn.QueryRow(ctx, "select pg_advisory_unlock($1)", l.key).Scan(&ok); err != nil {
		return fmt.Errorf("pg_advisory_unlock %s: %w", l.name, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotHeld, l.name)
	}
	return nil
}
