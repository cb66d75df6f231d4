// Package syncback исполняет отложенные действия из action_log
// на удалённой стороне (IMAP/SMTP-аккаунт пользователя).
//
// # Обзор
//
// Локальные изменения (архивирование, пометка прочитанным, отправка
// черновика и т.д.) сначала записываются в append-only action_log.
// Dispatcher непрерывно вычитывает из лога невыполненные записи и
// выполняет каждую ровно один раз в установившемся режиме:
//
//   - ограниченная конкурентность (Pool фиксированного размера)
//   - дедупликация in-flight записей (ExclusionSet)
//   - retry после ошибки (задержка RetryDelay + повторный poll)
//   - один диспетчер на лог (advisory lock, см. пакет lock)
//
// # Ключевые компоненты
//
// ## Registry
//
// Закрытое отображение domain.ActionKind → Handler. Создаётся один раз,
// NewRegistry отказывается создавать реестр без handler'а для любого
// известного типа действия.
//
// ## ExclusionSet
//
// Множество ID записей, которые сейчас обрабатывает воркер. ID попадает
// в множество до Submit и удаляется только при завершении воркера.
// Не персистится: executed-состояние живёт в БД, а lock исключает
// параллельные процессы.
//
// ## Pool
//
// Semaphore на N слотов. Submit блокирует диспетчер, пока все слоты
// заняты: backpressure ограничивает скорость захвата новых записей.
//
// ## Worker
//
// Выполняет одну запись:
//
//  1. Открывает транзакцию (мягко удалённые объекты видимы)
//  2. Вызывает handler(accountID, recordID, tx)
//  3. Успех → executed = true, commit
//  4. Ошибка → лог, пауза RetryDelay
//  5. В любом случае → Dispatcher.MarkForRescheduling(entryID)
//
// ## Dispatcher
//
//	Unstarted → AcquiringLock → Polling ⇄ Sleeping
//	                  ↑               │
//	                  └── restart ────┘   (ошибка хранилища)
//
// Poll level-triggered: после каждого прохода диспетчер спит PollInterval,
// даже если работа нашлась. Wake() сокращает текущий сон.
//
// # Ошибки
//
//   - Ошибка handler'а — локальный retry воркера, наружу не выходит
//   - Неизвестный тип действия — ErrUnknownActionKind, громко в лог,
//     запись пропускается, остальные записи poll'а обрабатываются
//   - Ошибка хранилища в poll — перезапуск цикла через RetryWithLogging
//   - Lock занят — не ошибка, ожидание с повтором
package syncback
