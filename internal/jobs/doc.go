// Package jobs реализует асинхронное выполнение workflow.
//
// Job проходит статусы pending → active → completed | failed.
// Processor выполняет один job через runner.Runner, публикует события
// прогресса в EventSink и повторяет job целиком с экспоненциальной
// задержкой, если workflow упал.
//
// Очереди:
//   - LocalQueue — канал и пул горутин в одном процессе, MemoryStore.
//   - DurableQueue — job в PostgreSQL, уведомление через RabbitMQ,
//     выполнение в отдельном процессе (internal/worker).
//
// Janitor по cron-расписанию чистит историю завершённых job.
package jobs
