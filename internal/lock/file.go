package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultFilePath — путь lock-файла по умолчанию.
const DefaultFilePath = "/var/lock/syncback/global.lock"

// FileLock — эксклюзивный flock на файле.
//
// flock принадлежит открытому файлу, поэтому два FileLock на одном
// пути конкурируют даже внутри одного процесса.
type FileLock struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// NewFileLock создаёт lock на path ("" → DefaultFilePath).
func NewFileLock(path string) *FileLock {
	if path == "" {
		path = DefaultFilePath
	}
	return &FileLock{path: path}
}

// Path возвращает путь lock-файла.
func (l *FileLock) Path() string { return l.path }

// TryLock берёт flock(LOCK_EX|LOCK_NB). Повторный вызов при взятом lock'е возвращает true.
func (l *FileLock) TryLock(_ context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return true, nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create lock dir: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return false, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return false, nil
		}
		return false, fmt.Errorf("flock %s: %w", l.path, err)
	}

	// PID владельца — для диагностики
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	l.file = f
	return true, nil
}

// Unlock снимает flock и закрывает файл. Сам файл не удаляется.
func (l *FileLock) Unlock(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ErrNotHeld
	}
	f := l.file
	l.file = nil

	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		_ = f.Close()
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	return f.Close()
}
