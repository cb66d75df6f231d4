package syncback

import "context"

// Locker — advisory lock «один диспетчер на лог».
//
// TryLock не блокирует: false означает, что lock держит кто-то другой.
// Повторный TryLock тем же держателем идемпотентен (без счётчика)
// и перепроверяет, что lock не потерян. Реализации: пакет lock.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}
