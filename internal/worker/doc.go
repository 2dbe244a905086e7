// Package worker выполняет job из durable-очереди.
//
// # Обзор
//
// Worker — stateless процесс (cmd/promptflow-worker), который:
//
//   - Получает job.pending из очереди RabbitMQ (event-driven)
//   - Периодически проверяет pending job в БД (polling fallback)
//   - Выполняет job через jobs.Processor в ограниченном пуле горутин
//
// Workers масштабируются горизонтально: несколько экземпляров
// потребляют из одной очереди jobs.pending, а атомарный Claim в БД
// гарантирует, что каждый job выполнит ровно один воркер.
//
//	w := worker.New(worker.Config{
//	    Processor: processor,
//	    Store:     jobRepo,
//	    Conn:      mqConn,
//	    Logger:    logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Retry
//
// Повторы выполняет jobs.Processor в процессе (in-process), а не через
// requeue в RabbitMQ. Это даёт точный контроль над backoff и подсчётом попыток.
package worker
