package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/telemetry"
)

// Default LocalQueue configuration values.
const (
	defaultWorkers    = 4
	defaultBufferSize = 100
)

// LocalQueue — Queue в памяти процесса.
//
// Job ID передаются через буферизированный канал пулу из Workers горутин.
// Состояние job живёт в Store (обычно MemoryStore); после перезапуска
// процесса незавершённые job теряются.
type LocalQueue struct {
	store     Store
	processor *Processor
	ch        chan uuid.UUID
	workers   int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// LocalConfig — конфигурация LocalQueue.
type LocalConfig struct {
	Store     Store
	Processor *Processor

	// Workers — размер пула (default: 4).
	Workers int

	// BufferSize — ёмкость очереди (default: 100). При переполнении Submit
	// возвращает ErrQueueFull.
	BufferSize int

	Logger *slog.Logger
}

// NewLocalQueue создаёт LocalQueue. Для обработки нужен Start.
func NewLocalQueue(cfg LocalConfig) *LocalQueue {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &LocalQueue{
		store:     cfg.Store,
		processor: cfg.Processor,
		ch:        make(chan uuid.UUID, bufferSize),
		workers:   workers,
		logger:    logger,
	}
}

// Start запускает пул воркеров.
func (q *LocalQueue) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	q.cancelFunc = cancel

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.loop(ctx)
		}()
	}

	q.logger.Info("local job queue started", "workers", q.workers, "buffer", cap(q.ch))
}

// Stop останавливает воркеров и ждёт их завершения.
// Выполняемые job завершаются как failed (interrupted).
func (q *LocalQueue) Stop() {
	q.stoppedMu.Lock()
	q.stopped = true
	q.stoppedMu.Unlock()

	if q.cancelFunc != nil {
		q.cancelFunc()
	}
	q.wg.Wait()

	q.logger.Info("local job queue stopped")
}

// IsStopped проверяет, остановлена ли очередь.
func (q *LocalQueue) IsStopped() bool {
	q.stoppedMu.RLock()
	defer q.stoppedMu.RUnlock()
	return q.stopped
}

// Submit создаёт job и ставит его в очередь.
func (q *LocalQueue) Submit(ctx context.Context, req SubmitRequest) (uuid.UUID, error) {
	if q.IsStopped() {
		return uuid.Nil, ErrQueueClosed
	}

	job, err := newJob(req, q.processor.MaxAttempts())
	if err != nil {
		return uuid.Nil, err
	}

	if err := q.store.Create(ctx, job); err != nil {
		return uuid.Nil, err
	}

	select {
	case q.ch <- job.ID:
	default:
		job.MarkFailed(ErrQueueFull.Error())
		_ = q.store.Update(ctx, job)
		return uuid.Nil, ErrQueueFull
	}

	telemetry.JobsSubmitted.WithLabelValues("memory").Inc()
	q.logger.Info("job submitted",
		"job_id", job.ID,
		"workflow_id", job.WorkflowID,
		"tasks", job.Progress.TotalTasks,
	)
	return job.ID, nil
}

// Status возвращает состояние job.
func (q *LocalQueue) Status(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return q.store.Get(ctx, id)
}

// StopJob помечает job к остановке.
func (q *LocalQueue) StopJob(ctx context.Context, id uuid.UUID) (bool, error) {
	return q.store.RequestStop(ctx, id)
}

// loop — цикл одного воркера.
func (q *LocalQueue) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-q.ch:
			if err := q.processor.Process(ctx, id); err != nil {
				if errors.Is(err, ErrJobNotFound) || errors.Is(err, ErrJobNotPending) {
					q.logger.Debug("skipping job", "job_id", id, "reason", err)
					continue
				}
				q.logger.Error("failed to process job", "job_id", id, "error", err)
			}
		}
	}
}
