// Package api — HTTP API диспетчера syncback.
//
// Структура:
//   - handler.go        — Handler и его зависимости
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — recovery, logging, metrics
//   - response.go       — JSON-ответы и обработка ошибок
//   - dto.go            — request/response
//   - action_handler.go — /actions
//   - status_handler.go — /status
package api
