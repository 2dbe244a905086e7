// Package broadcast рассылает события прогресса job подписчикам.
//
// Подписчики — SSE-клиенты API и любые другие наблюдатели в процессе.
// В режиме с RabbitMQ события воркеров приходят через mq и тоже
// публикуются сюда.
package broadcast
