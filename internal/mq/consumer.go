package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// errDeliveriesClosed — брокер закрыл канал доставки (разрыв или cancel).
var errDeliveriesClosed = errors.New("deliveries channel closed")

// Handler обрабатывает сообщение.
// nil — ack; ошибка — nack с возвратом в очередь.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — разобранное сообщение вместе с исходной AMQP-доставкой.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// Consumer читает сообщения из очереди на собственном канале
// и переживает переподключения Connection.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	declare  Declarer
	handler  Handler
	prefetch int
	tag      string

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди, объявленной в SetupTopology.
	Queue string

	// Declare объявляет очередь при каждом (пере)подключении.
	// Если задан, Queue игнорируется.
	Declare Declarer

	Handler Handler

	// Prefetch — сколько неподтверждённых сообщений держать (default: 1).
	Prefetch int

	// Tag — consumer tag; пустой — сгенерирует брокер.
	Tag string
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	declare := cfg.Declare
	if declare == nil {
		declare = staticQueue(cfg.Queue)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		declare:  declare,
		handler:  cfg.Handler,
		prefetch: prefetch,
		tag:      cfg.Tag,
	}
}

// Start блокируется и обрабатывает сообщения, пока ctx не отменён
// или соединение не закрыто. Возвращает причину остановки.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer cancel()

	for {
		// Берём до попытки: переподключение между провалом и ожиданием не потеряется
		reconnected := c.conn.Reconnected()

		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consumer interrupted, waiting for reconnect", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.Closed():
			return ErrNoChannel
		case <-reconnected:
		}
	}
}

// session открывает канал, начинает потребление и обрабатывает
// сообщения до разрыва. Канал закрывается при выходе.
func (c *Consumer) session(ctx context.Context) error {
	ch, err := c.conn.OpenChannel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	queue, err := c.declare(ch)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		queue, // queue
		c.tag, // consumer tag
		false, // auto-ack: подтверждаем вручную
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	logger := c.logger.With("queue", queue)
	logger.Info("consumer started", "prefetch", c.prefetch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.handle(ctx, logger, raw)
		}
	}
}

// handle разбирает и обрабатывает одну доставку.
// Неразбираемое сообщение уходит в DLQ (nack без requeue).
func (c *Consumer) handle(ctx context.Context, logger *slog.Logger, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		logger.Error("failed to unmarshal message", "error", err, "body", string(raw.Body))
		_ = raw.Nack(false, false)
		return
	}

	logger.Debug("received message", "message_id", msg.ID, "type", msg.Type)

	if err := c.handler(ctx, &Delivery{Message: msg, Raw: raw}); err != nil {
		logger.Error("handler failed",
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		_ = raw.Nack(false, true)
		return
	}

	_ = raw.Ack(false)
}

// Stop прерывает Start.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// ParsePayload декодирует payload сообщения в T.
// После JSON-декодирования Message payload — это map, поэтому
// он перекодируется в T через JSON.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
