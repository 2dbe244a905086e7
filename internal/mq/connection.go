package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultHeartbeat      = 10 * time.Second
	defaultReconnectDelay = time.Second
	maxReconnectDelay     = 30 * time.Second
)

// Connection — AMQP соединение с автоматическим reconnect.
//
// Общий канал (Channel/WithChannel) используется для публикации и
// объявления топологии. Consumers открывают собственные каналы через
// OpenChannel и после разрыва ждут Reconnected.
type Connection struct {
	url    string
	name   string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	// reconnected закрывается после очередного переподключения
	// и сразу заменяется новым.
	reconnected chan struct{}

	closed   bool
	closedCh chan struct{}
}

// ConnectionOption настраивает Connection.
type ConnectionOption func(*Connection)

// WithConnectionName задаёт имя соединения, видимое в RabbitMQ management.
func WithConnectionName(name string) ConnectionOption {
	return func(c *Connection) {
		c.name = name
	}
}

// NewConnection подключается к RabbitMQ.
// Ошибка первого подключения возвращается сразу, без повторов.
func NewConnection(url string, logger *slog.Logger, opts ...ConnectionOption) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Connection{
		url:         url,
		name:        "promptflow",
		logger:      logger,
		reconnected: make(chan struct{}),
		closedCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	notifyClose, err := c.dial()
	if err != nil {
		return nil, err
	}
	c.logger.Info("connected to RabbitMQ", "connection_name", c.name)

	go c.watch(notifyClose)

	return c, nil
}

// dial открывает соединение и общий канал.
// Возвращает канал уведомления о закрытии нового соединения.
func (c *Connection) dial() (<-chan *amqp.Error, error) {
	conn, err := amqp.DialConfig(c.url, amqp.Config{
		Heartbeat:  defaultHeartbeat,
		Locale:     "en_US",
		Properties: amqp.Table{"connection_name": c.name},
	})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	return notifyClose, nil
}

// watch ждёт разрыва соединения и переподключается.
func (c *Connection) watch(notifyClose <-chan *amqp.Error) {
	for {
		select {
		case <-c.closedCh:
			return
		case amqpErr, ok := <-notifyClose:
			if !ok && c.isClosed() {
				return
			}
			c.logger.Warn("RabbitMQ connection lost", "error", amqpErr)
		}

		c.mu.Lock()
		c.channel = nil
		c.mu.Unlock()

		next, ok := c.reconnect()
		if !ok {
			return
		}
		notifyClose = next
	}
}

// reconnect повторяет dial с экспоненциальной задержкой, пока не
// получится или пока соединение не закрыто через Close.
func (c *Connection) reconnect() (<-chan *amqp.Error, bool) {
	delay := defaultReconnectDelay

	for {
		c.logger.Info("reconnecting to RabbitMQ", "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-c.closedCh:
			timer.Stop()
			return nil, false
		case <-timer.C:
		}

		notifyClose, err := c.dial()
		if err != nil {
			c.logger.Warn("reconnect failed", "error", err)
			delay = min(delay*2, maxReconnectDelay)
			continue
		}

		c.mu.Lock()
		close(c.reconnected)
		c.reconnected = make(chan struct{})
		c.mu.Unlock()

		c.logger.Info("reconnected to RabbitMQ")
		return notifyClose, true
	}
}

// Channel возвращает общий канал или nil, пока соединения нет.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// OpenChannel открывает отдельный канал (для consumer).
// Канал закрывается вызывающим или вместе с соединением.
func (c *Connection) OpenChannel() (*amqp.Channel, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return nil, ErrNoChannel
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// Reconnected возвращает канал, который закроется после следующего
// переподключения. Брать его нужно до попытки, чей провал приводит к ожиданию.
func (c *Connection) Reconnected() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconnected
}

// Closed возвращает канал, закрытый после Close.
func (c *Connection) Closed() <-chan struct{} {
	return c.closedCh
}

// Close закрывает соединение. Повторный вызов ничего не делает.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closedCh)

	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	c.logger.Info("RabbitMQ connection closed")
	return nil
}

// IsConnected сообщает, живо ли соединение сейчас.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil
}

func (c *Connection) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// WithChannel выполняет fn с общим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ch := c.Channel()
	if ch == nil {
		return ErrNoChannel
	}
	return fn(ch)
}
