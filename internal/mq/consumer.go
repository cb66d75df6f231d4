package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает сообщение. Ошибка → nack с requeue.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// DeclareFunc объявляет очередь перед каждым запуском потребления.
type DeclareFunc func(ch *amqp.Channel) (Queue, error)

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	// Queue — постоянная очередь. Игнорируется, если задан Declare.
	Queue Queue

	// Declare — объявление временной очереди (например, DeclareWakeQueue).
	Declare DeclareFunc

	Handler Handler

	// Prefetch (default: 1).
	Prefetch int
}

// Consumer потребляет сообщения из очереди и переживает reconnect.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	declare  DeclareFunc
	handler  Handler
	prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		declare:  cfg.Declare,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start потребляет сообщения до отмены ctx.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, queue, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "queue", queue, "error", err)
		} else {
			c.logger.Info("consumer started", "queue", queue)

			err := c.processDeliveries(ctx, queue, deliveries)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect", "queue", queue, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
			c.logger.Info("reconnected, restarting consumer")
		}
	}
}

func (c *Consumer) setupConsume() (<-chan amqp.Delivery, Queue, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, c.queue, ErrNoChannel
	}

	queue := c.queue
	if c.declare != nil {
		q, err := c.declare(ch)
		if err != nil {
			return nil, queue, err
		}
		queue = q
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, queue, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(queue),
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, queue, fmt.Errorf("consume %s: %w", queue, err)
	}

	return deliveries, queue, nil
}

func (c *Consumer) processDeliveries(ctx context.Context, queue Queue, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handleDelivery(ctx, queue, raw)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, queue Queue, raw amqp.Delivery) {
	msg, err := DecodeMessage(raw.Body)
	if err != nil {
		c.logger.Error("failed to decode message", "queue", queue, "error", err)
		// В DLQ, если настроена
		_ = raw.Nack(false, false)
		return
	}

	if err := c.handler(ctx, &Delivery{Message: msg, Raw: raw}); err != nil {
		c.logger.Error("handler failed",
			"queue", queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		_ = raw.Nack(false, true)
		return
	}

	_ = raw.Ack(false)
}

// DecodeMessage разбирает конверт сообщения.
func DecodeMessage(body []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.Type == "" {
		return msg, errors.New("message without type")
	}
	return msg, nil
}

// ParsePayload приводит payload сообщения к типу T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
