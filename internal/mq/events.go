package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/promptflow/internal/domain"
)

const (
	defaultPublishTimeout = 5 * time.Second
	eventPrefetch         = 50
)

// JSONPublisher публикует JSON payload (реализуется Publisher).
type JSONPublisher interface {
	PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error
}

// EventPublisher пересылает события прогресса в ExchangeEvents.
// Реализует jobs.EventSink для воркера.
type EventPublisher struct {
	publisher JSONPublisher
	timeout   time.Duration
	logger    *slog.Logger
}

// NewEventPublisher создаёт EventPublisher.
func NewEventPublisher(publisher JSONPublisher, logger *slog.Logger) *EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{
		publisher: publisher,
		timeout:   defaultPublishTimeout,
		logger:    logger,
	}
}

// HandleEvent публикует событие. Ошибка публикации только логируется:
// состояние job уже сохранено в БД и доступно через Status.
func (p *EventPublisher) HandleEvent(event domain.ProgressEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err := p.publisher.PublishJSON(ctx, ExchangeEvents, RoutingKeyEvent, MessageTypeJobEvent, event)
	if err != nil {
		p.logger.Warn("failed to publish progress event",
			"job_id", event.JobID,
			"type", event.Type,
			"error", err,
		)
	}
}

// EventHandler принимает события прогресса (реализуется broadcast.Broadcaster).
type EventHandler interface {
	HandleEvent(event domain.ProgressEvent)
}

// EventRelay получает события из ExchangeEvents и передаёт их
// локальному EventHandler. Каждый экземпляр API держит свой relay.
type EventRelay struct {
	consumer *Consumer
	handler  EventHandler
	logger   *slog.Logger
}

// NewEventRelay создаёт EventRelay.
func NewEventRelay(conn *Connection, handler EventHandler, logger *slog.Logger) *EventRelay {
	if logger == nil {
		logger = slog.Default()
	}

	r := &EventRelay{handler: handler, logger: logger}
	r.consumer = NewConsumer(conn, logger, ConsumerConfig{
		Declare:  declareEventQueue,
		Handler:  r.handle,
		Prefetch: eventPrefetch,
	})
	return r
}

// Start блокируется, пока ctx не отменён.
func (r *EventRelay) Start(ctx context.Context) error {
	err := r.consumer.Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop останавливает relay.
func (r *EventRelay) Stop() {
	r.consumer.Stop()
}

// handle разбирает событие. Битое событие подтверждается и отбрасывается.
func (r *EventRelay) handle(_ context.Context, d *Delivery) error {
	if d.Message.Type != MessageTypeJobEvent {
		r.logger.Debug("ignoring message", "type", d.Message.Type)
		return nil
	}

	event, err := ParsePayload[domain.ProgressEvent](&d.Message)
	if err != nil {
		r.logger.Warn("invalid progress event", "message_id", d.Message.ID, "error", err)
		return nil
	}

	r.handler.HandleEvent(event)
	return nil
}

// Declarer объявляет очередь на канале и возвращает её имя.
type Declarer func(ch *amqp.Channel) (string, error)

// staticQueue — Declarer для заранее объявленной очереди.
func staticQueue(name string) Declarer {
	return func(*amqp.Channel) (string, error) {
		if name == "" {
			return "", fmt.Errorf("queue name is empty")
		}
		return name, nil
	}
}
