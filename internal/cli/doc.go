// Package cli реализует утилиту командной строки syncback.
//
// CLI работает только через HTTP API диспетчера и не импортирует
// внутренние пакеты.
//
// Client инкапсулирует запросы и разбор ответов ({data}, {data,total},
// {error}). Output печатает таблицу (text/tabwriter) или JSON (--json);
// данные идут в stdout, сообщения в stderr:
//
//	syncback action list --pending --json | jq .
//
// Команды:
//   - status
//   - action: list, show, log
//
// Фабрики команд принимают clientFn и outputFn, чтобы Client и Output
// создавались после разбора PersistentFlags.
package cli
