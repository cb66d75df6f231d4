package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// Exchanges.
const (
	ExchangeCommands Exchange = "syncback.commands"
	ExchangeEvents   Exchange = "syncback.events"
	ExchangeDLQ      Exchange = "syncback.dlq"
)

// Queues.
const (
	QueueCommands    Queue = "syncback.commands"
	QueueDLQCommands Queue = "dlq.syncback.commands"
)

// Routing keys.
const (
	RoutingKeyCommand      RoutingKey = "command"
	RoutingKeyActionLogged RoutingKey = "action.logged"
	RoutingKeyDLQCommands  RoutingKey = "commands"
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

var exchanges = []exchangeDecl{
	{ExchangeCommands, amqp.ExchangeDirect},
	// События получает каждый диспетчер через свою очередь
	{ExchangeEvents, amqp.ExchangeTopic},
	{ExchangeDLQ, amqp.ExchangeDirect},
}

var queues = []queueDecl{
	// Отклонённые агентом команды уходят в DLQ
	{QueueCommands, amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQCommands),
	}},
	{QueueDLQCommands, nil},
}

var bindings = []bindingDecl{
	{QueueCommands, RoutingKeyCommand, ExchangeCommands},
	{QueueDLQCommands, RoutingKeyDLQCommands, ExchangeDLQ},
}

// SetupTopology объявляет постоянные exchanges, queues и bindings.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range exchanges {
			err := ch.ExchangeDeclare(
				string(ex.name), // name
				ex.kind,         // type
				true,            // durable
				false,           // auto-deleted
				false,           // internal
				false,           // no-wait
				nil,             // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		for _, q := range queues {
			_, err := ch.QueueDeclare(
				string(q.name), // name
				true,           // durable
				false,          // delete when unused
				false,          // exclusive
				false,          // no-wait
				q.args,         // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		for _, b := range bindings {
			err := ch.QueueBind(
				string(b.queue),      // queue name
				string(b.routingKey), // routing key
				string(b.exchange),   // exchange
				false,                // no-wait
				nil,                  // arguments
			)
			if err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// DeclareWakeQueue объявляет эксклюзивную очередь экземпляра,
// привязанную к action.logged. Очередь живёт, пока живо соединение,
// поэтому её нужно объявлять заново после reconnect.
func DeclareWakeQueue(ch *amqp.Channel) (Queue, error) {
	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("declare wake queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, string(RoutingKeyActionLogged), string(ExchangeEvents), false, nil); err != nil {
		return "", fmt.Errorf("bind wake queue: %w", err)
	}

	return Queue(q.Name), nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  syncback RabbitMQ topology:

    syncback.commands (direct)
    └── syncback.commands [routing: command]
            Consumer: account agents
            DLQ: dlq.syncback.commands

    syncback.events (topic)
    └── <exclusive per dispatcher> [routing: action.logged]
            Consumer: syncback-dispatcher (wake)

    syncback.dlq (direct)
    └── dlq.syncback.commands [routing: commands]
            Manual processing
`
}
