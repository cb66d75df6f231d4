// Package lock реализует глобальный lock диспетчера syncback.
//
// Два backend'а:
//
//   - PostgresLock — session-level advisory lock (pg_try_advisory_lock)
//     на выделенном соединении. Postgres снимает его сам, если сессия
//     умерла, поэтому «протухших» lock'ов не бывает.
//   - FileLock — flock(2) на файле (по умолчанию /var/lock/syncback/global.lock).
//     Годится, когда все экземпляры работают на одной машине; ядро
//     снимает lock при смерти процесса.
//
// Оба типа удовлетворяют syncback.Locker: TryLock не блокирует,
// повторный вызов тем же держателем идемпотентен.
package lock
