package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/promptflow/internal/jobs"
	"github.com/shaiso/promptflow/internal/mq"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 50
	defaultConcurrency  = 4
)

// JobProcessor выполняет один job (реализуется jobs.Processor).
type JobProcessor interface {
	Process(ctx context.Context, jobID uuid.UUID) error
}

// Worker выполняет job из DurableQueue.
//
// Worker — stateless компонент, который:
//   - Получает job.pending из очереди RabbitMQ (event-driven)
//   - Периодически проверяет pending job в БД (polling fallback)
//   - Выполняет job через jobs.Processor, не больше Concurrency одновременно
//
// Несколько экземпляров могут потреблять из одной очереди:
// job получает тот, чей Claim прошёл первым.
type Worker struct {
	processor JobProcessor
	store     jobs.Store
	conn      *mq.Connection

	consumer *mq.Consumer

	pollInterval time.Duration
	batchSize    int
	slots        chan struct{}

	// inflight — job, которые уже выполняются в этом процессе
	inflight   map[uuid.UUID]struct{}
	inflightMu sync.Mutex

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	jobsWg     sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Processor JobProcessor
	Store     jobs.Store

	// Conn — соединение с RabbitMQ. Если nil, работает только polling.
	Conn *mq.Connection

	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество job за один poll (default: 50)
	Concurrency  int           // одновременно выполняемых job (default: 4)

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		processor:    cfg.Processor,
		store:        cfg.Store,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		slots:        make(chan struct{}, concurrency),
		inflight:     make(map[uuid.UUID]struct{}),
		logger:       logger,
	}
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для jobs.pending (если есть Conn)
//   - Polling горутину для fallback
func (w *Worker) Start(ctx context.Context) error {
	if w.IsStopped() {
		return ErrWorkerStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"concurrency", cap(w.slots),
	)

	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueJobsPending),
			Handler:  w.handleJobPending,
			Prefetch: cap(w.slots),
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("job consumer error", "error", err)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и ждёт выполняемые job.
// Незавершённые job помечаются failed (interrupted).
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()
	w.jobsWg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// pollLoop — цикл polling для fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем job, созданные пока были выключены)
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (w *Worker) poll(ctx context.Context) {
	list, err := w.store.ListUnclaimed(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list pending jobs", "error", err)
		return
	}

	if len(list) == 0 {
		return
	}

	w.logger.Debug("poll found pending jobs", "count", len(list))

	for i := range list {
		if !w.dispatch(ctx, list[i].ID) {
			return
		}
	}
}

// dispatch запускает job в свободном слоте. Блокируется, пока слот не
// освободится. false — ctx отменён.
func (w *Worker) dispatch(ctx context.Context, jobID uuid.UUID) bool {
	if !w.track(jobID) {
		return true
	}

	select {
	case w.slots <- struct{}{}:
	case <-ctx.Done():
		w.untrack(jobID)
		return false
	}

	w.jobsWg.Add(1)
	go func() {
		defer w.jobsWg.Done()
		defer func() { <-w.slots }()
		defer w.untrack(jobID)

		w.process(ctx, jobID)
	}()
	return true
}

// process выполняет job и логирует результат.
func (w *Worker) process(ctx context.Context, jobID uuid.UUID) {
	err := w.processor.Process(ctx, jobID)
	switch {
	case err == nil:
	case errors.Is(err, jobs.ErrJobNotFound), errors.Is(err, jobs.ErrJobNotPending):
		// Ожидаемо: job взят другим воркером или удалён
		w.logger.Debug("job not processed", "job_id", jobID, "reason", err)
	default:
		w.logger.Error("failed to process job", "job_id", jobID, "error", err)
	}
}

// track отмечает job как выполняемый. false — уже выполняется.
func (w *Worker) track(jobID uuid.UUID) bool {
	w.inflightMu.Lock()
	defer w.inflightMu.Unlock()

	if _, ok := w.inflight[jobID]; ok {
		return false
	}
	w.inflight[jobID] = struct{}{}
	return true
}

func (w *Worker) untrack(jobID uuid.UUID) {
	w.inflightMu.Lock()
	defer w.inflightMu.Unlock()
	delete(w.inflight, jobID)
}
