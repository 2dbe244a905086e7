package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeJobs   Exchange = "promptflow.jobs"
	ExchangeEvents Exchange = "promptflow.events"
	ExchangeDLQ    Exchange = "promptflow.dlq"
)

// Queues — имена очередей.
const (
	QueueJobsPending Queue = "jobs.pending"
	QueueDLQJobs     Queue = "dlq.jobs"
)

// Routing keys.
const (
	RoutingKeyPending RoutingKey = "pending"
	RoutingKeyEvent   RoutingKey = ""
	RoutingKeyDLQJobs RoutingKey = "jobs"
)

// SetupTopology объявляет exchanges, durable-очереди и привязки.
// Очереди событий объявляет каждый EventRelay сам (exclusive).
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}

		if err := declareQueues(ch); err != nil {
			return err
		}

		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeJobs, "direct"},
		// события прогресса получает каждый экземпляр API
		{ExchangeEvents, "fanout"},
		{ExchangeDLQ, "direct"},
	}

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

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQJobs),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// jobs.pending — битые сообщения уходят в DLQ
		{QueueJobsPending, dlqArgs},
		{QueueDLQJobs, nil},
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

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueJobsPending, RoutingKeyPending, ExchangeJobs},
		{QueueDLQJobs, RoutingKeyDLQJobs, ExchangeDLQ},
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
}

// declareEventQueue создаёт временную очередь экземпляра API,
// привязанную к ExchangeEvents. Имя генерирует брокер.
func declareEventQueue(ch *amqp.Channel) (string, error) {
	q, err := ch.QueueDeclare(
		"",    // name (server-generated)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare event queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, string(RoutingKeyEvent), string(ExchangeEvents), false, nil); err != nil {
		return "", fmt.Errorf("bind event queue %s: %w", q.Name, err)
	}

	return q.Name, nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  promptflow RabbitMQ topology:

    promptflow.jobs (direct)
    └── jobs.pending [routing: pending]
            Consumer: promptflow-worker
            DLQ: dlq.jobs

    promptflow.events (fanout)
    └── <exclusive queue per API instance>
            Consumer: EventRelay -> Broadcaster

    promptflow.dlq (direct)
    └── dlq.jobs [routing: jobs]
            Manual processing
  `
}
