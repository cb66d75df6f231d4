package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	scanFn func(dest ...any) error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.scanFn == nil {
		return nil
	}
	return r.scanFn(dest...)
}

// fakeServer — общее состояние advisory lock'ов, как в одном Postgres.
type fakeServer struct {
	mu     sync.Mutex
	owners map[int64]*fakeConn
}

func newFakeServer() *fakeServer {
	return &fakeServer{owners: make(map[int64]*fakeConn)}
}

type fakeConn struct {
	server *fakeServer

	mu           sync.Mutex
	execErr      error
	tryLockErr   error
	releaseCalls int
	tryLockCalls int
	unlockCalls  int
	lastKey      int64
}

func (c *fakeConn) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	key := args[0].(int64)

	switch {
	case strings.Contains(sql, "pg_try_advisory_lock"):
		return &fakeRow{scanFn: func(dest ...any) error {
			c.mu.Lock()
			c.tryLockCalls++
			c.lastKey = key
			err := c.tryLockErr
			c.mu.Unlock()
			if err != nil {
				return err
			}

			c.server.mu.Lock()
			defer c.server.mu.Unlock()
			owner, ok := c.server.owners[key]
			if !ok || owner == c {
				c.server.owners[key] = c
				*(dest[0].(*bool)) = true
			} else {
				*(dest[0].(*bool)) = false
			}
			return nil
		}}
	case strings.Contains(sql, "pg_advisory_unlock"):
		return &fakeRow{scanFn: func(dest ...any) error {
			c.mu.Lock()
			c.unlockCalls++
			c.mu.Unlock()

			c.server.mu.Lock()
			defer c.server.mu.Unlock()
			if c.server.owners[key] == c {
				delete(c.server.owners, key)
				*(dest[0].(*bool)) = true
			} else {
				*(dest[0].(*bool)) = false
			}
			return nil
		}}
	default:
		return &fakeRow{scanFn: func(...any) error { return errors.New("unexpected query") }}
	}
}

func (c *fakeConn) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pgconn.NewCommandTag("SELECT 1"), c.execErr
}

func (c *fakeConn) Release() {
	c.mu.Lock()
	c.releaseCalls++
	c.mu.Unlock()
}

func (c *fakeConn) releases() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releaseCalls
}

// dialer выдаёт новое соединение на каждый acquire.
type dialer struct {
	server *fakeServer
	mu     sync.Mutex
	conns  []*fakeConn
	err    error
}

func (d *dialer) acquire(context.Context) (advisoryConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := &fakeConn{server: d.server}
	d.conns = append(d.conns, c)
	return c, nil
}

func TestPostgresLock_AcquireAndRelease(t *testing.T) {
	d := &dialer{server: newFakeServer()}
	l := newPostgresLockWithAcquire(d.acquire, "syncback-global")
	ctx := context.Background()

	ok, err := l.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	if err := l.Unlock(ctx); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	if len(d.conns) != 1 {
		t.Fatalf("expected one connection, got %d", len(d.conns))
	}
	c := d.conns[0]
	if c.tryLockCalls != 1 || c.unlockCalls != 1 {
		t.Errorf("expected 1 lock and 1 unlock call, got %d/%d", c.tryLockCalls, c.unlockCalls)
	}
	if c.lastKey != KeyFor("syncback-global") {
		t.Errorf("unexpected key %d", c.lastKey)
	}
	if c.releases() != 1 {
		t.Errorf("connection should be released once, got %d", c.releases())
	}
}

func TestPostgresLock_Contention(t *testing.T) {
	server := newFakeServer()
	d1, d2 := &dialer{server: server}, &dialer{server: server}
	l1 := newPostgresLockWithAcquire(d1.acquire, "syncback-global")
	l2 := newPostgresLockWithAcquire(d2.acquire, "syncback-global")
	ctx := context.Background()

	if ok, _ := l1.TryLock(ctx); !ok {
		t.Fatal("first lock should succeed")
	}

	ok, err := l2.TryLock(ctx)
	if err != nil || ok {
		t.Fatalf("second lock should fail without error, ok=%v err=%v", ok, err)
	}
	if d2.conns[0].releases() != 1 {
		t.Error("connection of failed attempt should be released")
	}

	if err := l1.Unlock(ctx); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if ok, _ := l2.TryLock(ctx); !ok {
		t.Fatal("second lock should succeed after release")
	}
}

func TestPostgresLock_DifferentNamesDoNotContend(t *testing.T) {
	server := newFakeServer()
	l1 := newPostgresLockWithAcquire((&dialer{server: server}).acquire, "syncback-a")
	l2 := newPostgresLockWithAcquire((&dialer{server: server}).acquire, "syncback-b")

	ok1, _ := l1.TryLock(context.Background())
	ok2, _ := l2.TryLock(context.Background())
	if !ok1 || !ok2 {
		t.Errorf("locks with different names should not contend: %v %v", ok1, ok2)
	}
}

func TestPostgresLock_TryLockIdempotent(t *testing.T) {
	d := &dialer{server: newFakeServer()}
	l := newPostgresLockWithAcquire(d.acquire, "syncback-global")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil || !ok {
			t.Fatalf("TryLock #%d: ok=%v err=%v", i, ok, err)
		}
	}

	if len(d.conns) != 1 {
		t.Errorf("re-lock should reuse connection, got %d connections", len(d.conns))
	}
	if d.conns[0].tryLockCalls != 1 {
		t.Errorf("expected single pg_try_advisory_lock, got %d", d.conns[0].tryLockCalls)
	}
}

func TestPostgresLock_SessionLost(t *testing.T) {
	d := &dialer{server: newFakeServer()}
	l := newPostgresLockWithAcquire(d.acquire, "syncback-global")
	ctx := context.Background()

	if ok, _ := l.TryLock(ctx); !ok {
		t.Fatal("TryLock should succeed")
	}

	// Сессия оборвалась: сервер снял lock
	c := d.conns[0]
	c.mu.Lock()
	c.execErr = errors.New("conn closed")
	c.mu.Unlock()
	c.server.mu.Lock()
	delete(c.server.owners, KeyFor("syncback-global"))
	c.server.mu.Unlock()

	ok, err := l.TryLock(ctx)
	if ok || !errors.Is(err, ErrLockLost) {
		t.Fatalf("expected ErrLockLost, got ok=%v err=%v", ok, err)
	}
	if c.releases() != 1 {
		t.Error("broken connection should be released")
	}

	ok, err = l.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("lock should be re-acquired on new connection: ok=%v err=%v", ok, err)
	}
	if len(d.conns) != 2 {
		t.Errorf("expected new connection, got %d", len(d.conns))
	}
}

func TestPostgresLock_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unlock without lock", func(t *testing.T) {
		l := newPostgresLockWithAcquire((&dialer{server: newFakeServer()}).acquire, "x")
		if err := l.Unlock(ctx); !errors.Is(err, ErrNotHeld) {
			t.Errorf("expected ErrNotHeld, got %v", err)
		}
	})

	t.Run("acquire connection fails", func(t *testing.T) {
		d := &dialer{server: newFakeServer(), err: errors.New("pool closed")}
		l := newPostgresLockWithAcquire(d.acquire, "x")
		if ok, err := l.TryLock(ctx); ok || err == nil {
			t.Errorf("expected error, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("query fails", func(t *testing.T) {
		server := newFakeServer()
		conn := &fakeConn{server: server, tryLockErr: errors.New("syntax")}
		l := newPostgresLockWithAcquire(func(context.Context) (advisoryConn, error) { return conn, nil }, "x")

		if ok, err := l.TryLock(ctx); ok || err == nil {
			t.Errorf("expected error, got ok=%v err=%v", ok, err)
		}
		if conn.releases() != 1 {
			t.Error("connection should be released after query error")
		}
	})
}

func TestKeyFor(t *testing.T) {
	if KeyFor("syncback-global") != KeyFor("syncback-global") {
		t.Error("key must be stable")
	}
	if KeyFor("syncback-a") == KeyFor("syncback-b") {
		t.Error("different names should give different keys")
	}
}
