package syncback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/syncback/internal/domain"
	"github.com/shaiso/syncback/internal/repo"
)

// --- fakeStore: action_log в памяти ---

type fakeStore struct {
	mu         sync.Mutex
	entries    map[int64]*domain.ActionLogEntry
	accounts   map[int64]int64 // namespace_id → account_id
	messages   map[int64]*domain.Message
	pendingErr error
	pendingN   int // сколько раз PendingActions вернёт pendingErr (0 — всегда, если задан)
	updateErr  error
	// ignoreExclude — PendingActions не фильтрует exclude (гонка с чужим claim)
	ignoreExclude bool
	txOpts        []repo.TxOptions
	pending       atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries:  make(map[int64]*domain.ActionLogEntry),
		accounts: map[int64]int64{1: 100},
		messages: make(map[int64]*domain.Message),
	}
}

// add добавляет запись; RecordID = ID + 1000.
func (s *fakeStore) add(id int64, action domain.ActionKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &domain.ActionLogEntry{
		ID:          id,
		NamespaceID: 1,
		Action:      action,
		RecordID:    id + 1000,
		CreatedAt:   time.Now(),
	}
}

func (s *fakeStore) executed(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return ok && e.Executed
}

func (s *fakeStore) WithTx(_ context.Context, opts repo.TxOptions, fn func(tx repo.Tx) error) error {
	s.mu.Lock()
	s.txOpts = append(s.txOpts, opts)
	s.mu.Unlock()

	tx := &fakeTx{store: s, opts: opts}
	if err := fn(tx); err != nil {
		return err
	}

	// commit
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range tx.updates {
		cp := e
		s.entries[e.ID] = &cp
	}
	return nil
}

type fakeTx struct {
	store   *fakeStore
	opts    repo.TxOptions
	updates []domain.ActionLogEntry
}

func (t *fakeTx) PendingActions(_ context.Context, afterID int64, exclude []int64, limit int) ([]domain.ActionLogEntry, error) {
	s := t.store
	n := s.pending.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingErr != nil && (s.pendingN == 0 || int(n) <= s.pendingN) {
		return nil, s.pendingErr
	}

	excluded := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	ids := make([]int64, 0, len(s.entries))
	for id, e := range s.entries {
		if !e.Executed && id > afterID && (s.ignoreExclude || !excluded[id]) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]domain.ActionLogEntry, len(ids))
	for i, id := range ids {
		out[i] = *s.entries[id]
	}
	return out, nil
}

func (t *fakeTx) GetAction(_ context.Context, id int64) (*domain.ActionLogEntry, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	e, ok := t.store.entries[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (t *fakeTx) UpdateAction(_ context.Context, entry *domain.ActionLogEntry) error {
	t.store.mu.Lock()
	err := t.store.updateErr
	t.store.mu.Unlock()
	if err != nil {
		return err
	}
	t.updates = append(t.updates, *entry)
	return nil
}

func (t *fakeTx) AccountID(_ context.Context, namespaceID int64) (int64, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	acc, ok := t.store.accounts[namespaceID]
	if !ok {
		return 0, fmt.Errorf("namespace %d: %w", namespaceID, repo.ErrNotFound)
	}
	return acc, nil
}

func (t *fakeTx) GetMessage(_ context.Context, id int64) (*domain.Message, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	m, ok := t.store.messages[id]
	if !ok || (m.IsDeleted() && !t.opts.IncludeSoftDeleted) {
		return nil, repo.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

// --- fakeLocker: общий lock для нескольких диспетчеров ---

var errNotOwner = errors.New("lock not held by this locker")

type sharedLock struct {
	mu    sync.Mutex
	owner *fakeLocker
}

type fakeLocker struct {
	shared      *sharedLock
	tryCalls    atomic.Int64
	unlockCalls atomic.Int64
}

func newFakeLocker(shared *sharedLock) *fakeLocker {
	if shared == nil {
		shared = &sharedLock{}
	}
	return &fakeLocker{shared: shared}
}

func (l *fakeLocker) TryLock(_ context.Context) (bool, error) {
	l.tryCalls.Add(1)
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()

	if l.shared.owner == nil || l.shared.owner == l {
		l.shared.owner = l
		return true, nil
	}
	return false, nil
}

func (l *fakeLocker) Unlock(_ context.Context) error {
	l.unlockCalls.Add(1)
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()

	if l.shared.owner != l {
		return errNotOwner
	}
	l.shared.owner = nil
	return nil
}

// handTo передаёт lock другому locker'у, как после обрыва сессии владельца.
func (s *sharedLock) handTo(l *fakeLocker) {
	s.mu.Lock()
	s.owner = l
	s.mu.Unlock()
}

func (l *fakeLocker) held() bool {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	return l.shared.owner == l
}

// --- recordingRescheduler ---

type recordingRescheduler struct {
	mu    sync.Mutex
	calls []int64
}

func (r *recordingRescheduler) MarkForRescheduling(id int64) {
	r.mu.Lock()
	r.calls = append(r.calls, id)
	r.mu.Unlock()
}

func (r *recordingRescheduler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noopHandler(context.Context, int64, int64, repo.Tx) error { return nil }

// newTestRegistry создаёт полный реестр: default для всех типов, overrides поверх.
func newTestRegistry(t *testing.T, def Handler, overrides map[domain.ActionKind]Handler) *Registry {
	t.Helper()
	if def == nil {
		def = noopHandler
	}
	handlers := make(map[domain.ActionKind]Handler)
	for _, k := range domain.AllActionKinds() {
		handlers[k] = def
	}
	for k, h := range overrides {
		handlers[k] = h
	}
	reg, err := NewRegistry(handlers)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

// waitFor ждёт выполнения условия или проваливает тест.
func waitFor(t *testing.T, timeout time.Duration, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for: %s", msg)
}
