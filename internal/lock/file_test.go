package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestFileLock_Contention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "global.lock")
	l1, l2 := NewFileLock(path), NewFileLock(path)
	ctx := context.Background()

	ok, err := l1.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("first TryLock: ok=%v err=%v", ok, err)
	}

	ok, err = l2.TryLock(ctx)
	if err != nil || ok {
		t.Fatalf("second TryLock should fail without error: ok=%v err=%v", ok, err)
	}

	if err := l1.Unlock(ctx); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	ok, err = l2.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("TryLock after release: ok=%v err=%v", ok, err)
	}
	_ = l2.Unlock(ctx)
}

func TestFileLock_Idempotent(t *testing.T) {
	l := NewFileLock(filepath.Join(t.TempDir(), "global.lock"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, err := l.TryLock(ctx); err != nil || !ok {
			t.Fatalf("TryLock #%d: ok=%v err=%v", i, ok, err)
		}
	}
	if err := l.Unlock(ctx); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := l.Unlock(ctx); !errors.Is(err, ErrNotHeld) {
		t.Errorf("second Unlock: expected ErrNotHeld, got %v", err)
	}
}

func TestFileLock_WritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "global.lock")
	l := NewFileLock(path)

	if ok, _ := l.TryLock(context.Background()); !ok {
		t.Fatal("TryLock should succeed")
	}
	defer l.Unlock(context.Background())

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Errorf("lock file content: %q", data)
	}
}

func TestNewFileLock_DefaultPath(t *testing.T) {
	if got := NewFileLock("").Path(); got != DefaultFilePath {
		t.Errorf("default path: got %s", got)
	}
}
