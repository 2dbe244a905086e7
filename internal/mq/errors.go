package mq

import "errors"

// ErrNoChannel — соединение с RabbitMQ не установлено.
var ErrNoChannel = errors.New("no amqp channel available")
