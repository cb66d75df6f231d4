// Package mq — инфраструктура RabbitMQ для syncback.
//
// Структура:
//   - connection.go — соединение с reconnect
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — команды syncback и события action_log
//   - consumer.go   — потребление (пробуждение диспетчера)
//
// Типы сообщений:
//   - syncback.command — действие, которое агент аккаунта применит к удалённому ящику
//   - action.logged    — в action_log добавлена запись
//
// Exchanges:
//   - syncback.commands — команды для агентов аккаунтов
//   - syncback.events   — события лога (fanout по routing key)
//   - syncback.dlq      — dead letter queue
package mq
