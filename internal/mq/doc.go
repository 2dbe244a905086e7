// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с reconnect и graceful shutdown
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//   - events.go     — пересылка событий прогресса между процессами
//
// Типы сообщений:
//   - job.pending — новый job ожидает выполнения
//   - job.event   — событие прогресса job
//
// Exchanges:
//   - promptflow.jobs   — новые job (direct)
//   - promptflow.events — события прогресса (fanout)
//   - promptflow.dlq    — dead letter queue
package mq
