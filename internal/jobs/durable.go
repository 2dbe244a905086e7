package jobs

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/telemetry"
)

// JobPublisher уведомляет воркеров о новом job (реализуется mq.Publisher).
type JobPublisher interface {
	PublishJobPending(ctx context.Context, jobID uuid.UUID) error
}

// DurableQueue — Queue поверх персистентного Store.
//
// Submit только сохраняет job и публикует job.pending; выполняет
// job отдельный процесс worker.Worker. Если публикация не удалась,
// job всё равно подхватит polling воркера.
type DurableQueue struct {
	store       Store
	publisher   JobPublisher
	maxAttempts int
	logger      *slog.Logger
}

// DurableConfig — конфигурация DurableQueue.
type DurableConfig struct {
	Store     Store
	Publisher JobPublisher

	// MaxAttempts — число попыток для новых job (default: 3).
	MaxAttempts int

	Logger *slog.Logger
}

// NewDurableQueue создаёт DurableQueue.
func NewDurableQueue(cfg DurableConfig) *DurableQueue {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DurableQueue{
		store:       cfg.Store,
		publisher:   cfg.Publisher,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Submit сохраняет job и публикует job.pending.
func (q *DurableQueue) Submit(ctx context.Context, req SubmitRequest) (uuid.UUID, error) {
	job, err := newJob(req, q.maxAttempts)
	if err != nil {
		return uuid.Nil, err
	}

	if err := q.store.Create(ctx, job); err != nil {
		return uuid.Nil, err
	}
	telemetry.JobsSubmitted.WithLabelValues("amqp").Inc()

	if err := q.publisher.PublishJobPending(ctx, job.ID); err != nil {
		// Job уже в БД, его найдёт polling воркера
		q.logger.Warn("failed to publish job.pending",
			"job_id", job.ID,
			"error", err,
		)
	}

	q.logger.Info("job submitted",
		"job_id", job.ID,
		"workflow_id", job.WorkflowID,
		"tasks", job.Progress.TotalTasks,
	)
	return job.ID, nil
}

// Status возвращает состояние job.
func (q *DurableQueue) Status(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return q.store.Get(ctx, id)
}

// StopJob помечает job к остановке.
func (q *DurableQueue) StopJob(ctx context.Context, id uuid.UUID) (bool, error) {
	return q.store.RequestStop(ctx, id)
}
