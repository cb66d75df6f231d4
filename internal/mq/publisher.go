package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений.
const (
	MessageTypeSyncbackCommand MessageType = "syncback.command"
	MessageTypeActionLogged    MessageType = "action.logged"
)

// Message — конверт сообщения.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// SyncbackCommand — изменение, которое агент аккаунта применяет к удалённому ящику.
type SyncbackCommand struct {
	Action    string `json:"action"`
	AccountID int64  `json:"account_id"`
	RecordID  int64  `json:"record_id"`
	Folder    string `json:"folder,omitempty"`
	RemoteUID int64  `json:"remote_uid,omitempty"`
	IsDraft   bool   `json:"is_draft,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// ActionLoggedPayload — событие о новой записи action_log.
type ActionLoggedPayload struct {
	ActionID    int64  `json:"action_id"`
	NamespaceID int64  `json:"namespace_id"`
	Action      string `json:"action"`
}

// NewMessage собирает конверт с новым id.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishCommand отправляет команду агенту аккаунта.
func (p *Publisher) PublishCommand(ctx context.Context, cmd SyncbackCommand) error {
	return p.Publish(ctx, ExchangeCommands, RoutingKeyCommand, NewMessage(MessageTypeSyncbackCommand, cmd))
}

// PublishActionLogged сообщает диспетчерам о новой записи лога.
func (p *Publisher) PublishActionLogged(ctx context.Context, payload ActionLoggedPayload) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKeyActionLogged, NewMessage(MessageTypeActionLogged, payload))
}
