package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/engine"
	"github.com/shaiso/promptflow/internal/runner"
	"github.com/shaiso/promptflow/internal/telemetry"
)

// Default retry configuration values.
const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 30 * time.Second
)

// WorkflowRunner — выполнение workflow (реализуется runner.Runner).
type WorkflowRunner interface {
	Run(ctx context.Context, wf *domain.Workflow, userInput map[string]any, hooks runner.Hooks) (*runner.Result, error)
}

// RetryPolicy — политика повторов job целиком.
type RetryPolicy struct {
	// MaxAttempts — сколько всего попыток (default: 3).
	MaxAttempts int

	// InitialDelay — задержка перед второй попыткой (default: 1s).
	InitialDelay time.Duration

	// MaxDelay — верхняя граница задержки (default: 30s).
	MaxDelay time.Duration
}

// withDefaults подставляет значения по умолчанию.
func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = defaultInitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	return p
}

// Backoff вычисляет задержку после попытки attempt (начиная с 1):
// InitialDelay * 2^(attempt-1), но не больше MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()

	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}

	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Processor выполняет один job: pending → active → completed | failed.
//
// Общий для LocalQueue и durable-воркера. Ошибка workflow приводит
// к повтору всего job с экспоненциальной задержкой; структурные ошибки
// и остановка по запросу не повторяются.
type Processor struct {
	store  Store
	runner WorkflowRunner
	sink   EventSink
	retry  RetryPolicy
	logger *slog.Logger
}

// ProcessorConfig — конфигурация Processor.
type ProcessorConfig struct {
	Store  Store
	Runner WorkflowRunner

	// Sink — приёмник событий прогресса (опционально).
	Sink EventSink

	Retry  RetryPolicy
	Logger *slog.Logger
}

// NewProcessor создаёт Processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sink := cfg.Sink
	if sink == nil {
		sink = discardSink{}
	}

	return &Processor{
		store:  cfg.Store,
		runner: cfg.Runner,
		sink:   sink,
		retry:  cfg.Retry.withDefaults(),
		logger: logger,
	}
}

// MaxAttempts возвращает число попыток для новых job.
func (p *Processor) MaxAttempts() int {
	return p.retry.MaxAttempts
}

// Process выполняет job до финального статуса.
//
// ErrJobNotFound и ErrJobNotPending означают, что job обрабатывать
// не нужно (вытеснен или уже взят другим воркером).
func (p *Processor) Process(ctx context.Context, jobID uuid.UUID) error {
	logger := telemetry.WithJobID(p.logger, jobID.String())

	for {
		job, err := p.store.Claim(ctx, jobID)
		if err != nil {
			return err
		}

		telemetry.JobsActive.Inc()
		retry, err := p.attempt(ctx, job, logger)
		telemetry.JobsActive.Dec()

		if err != nil || !retry {
			return err
		}

		delay := p.retry.Backoff(job.Attempt)
		logger.Info("job scheduled for retry",
			"attempt", job.Attempt,
			"max_attempts", job.MaxAttempts,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return p.interrupt(ctx, job, logger)
		}
	}
}

// attempt выполняет одну попытку. retry=true — job возвращён в pending.
func (p *Processor) attempt(ctx context.Context, job *domain.Job, logger *slog.Logger) (retry bool, err error) {
	if job.StopRequested {
		return false, p.fail(ctx, job, ErrJobStopped, logger)
	}

	logger.Info("job started",
		"workflow_id", job.WorkflowID,
		"attempt", job.Attempt,
		"tasks", job.Progress.TotalTasks,
	)
	p.emit(ctx, job, domain.NewJobEvent(job.ID, domain.EventStarted, domain.JobStatusActive), false)

	hooks := runner.Hooks{
		OnTaskStart: func(task *domain.Task) {
			p.emit(ctx, job, domain.NewTaskEvent(job.ID, domain.EventActive, task.ID, task.DisplayName()), true)
		},
		OnTaskComplete: func(task *domain.Task, result any) {
			ev := domain.NewTaskEvent(job.ID, domain.EventCompleted, task.ID, task.DisplayName())
			ev.Result = result
			p.emit(ctx, job, ev, true)
		},
		OnTaskFail: func(task *domain.Task, taskErr error) {
			ev := domain.NewTaskEvent(job.ID, domain.EventFailed, task.ID, task.DisplayName())
			ev.Error = taskErr.Error()
			p.emit(ctx, job, ev, true)
		},
		ShouldStop: func() bool {
			stop, err := p.store.StopRequested(ctx, job.ID)
			if err != nil {
				logger.Warn("failed to check stop flag", "error", err)
				return false
			}
			return stop
		},
	}

	start := time.Now()
	result, runErr := p.runner.Run(telemetry.WithLogger(ctx, logger), job.Workflow, job.UserInput, hooks)

	switch {
	case runErr == nil:
		return false, p.complete(ctx, job, result, time.Since(start), logger)

	case errors.Is(runErr, runner.ErrStopped):
		return false, p.fail(ctx, job, ErrJobStopped, logger)

	case errors.Is(runErr, engine.ErrInvalidWorkflow):
		// Повтор не поможет: workflow не изменится
		return false, p.fail(ctx, job, runErr, logger)

	case ctx.Err() != nil:
		return false, p.interrupt(ctx, job, logger)

	case job.CanRetry():
		job.ResetForRetry(runErr.Error())
		if err := p.store.Update(ctx, job); err != nil {
			return false, fmt.Errorf("update job for retry: %w", err)
		}
		telemetry.JobRetries.Inc()

		ev := domain.NewJobEvent(job.ID, domain.EventRetrying, domain.JobStatusPending)
		ev.Error = runErr.Error()
		p.emit(ctx, job, ev, false)
		return true, nil

	default:
		return false, p.fail(ctx, job, runErr, logger)
	}
}

// complete переводит job в completed.
func (p *Processor) complete(ctx context.Context, job *domain.Job, result *runner.Result, took time.Duration, logger *slog.Logger) error {
	job.MarkCompleted(&domain.JobResult{
		DataStore: result.DataStore,
		Results:   result.Results,
		Feedback:  result.Feedback,
	})

	ev := domain.NewJobEvent(job.ID, domain.EventCompleted, domain.JobStatusCompleted)
	ev.Result = result.Results
	job.Apply(ev)

	if err := p.store.Update(ctx, job); err != nil {
		return fmt.Errorf("update job to completed: %w", err)
	}
	telemetry.JobsFinished.WithLabelValues(string(domain.JobStatusCompleted)).Inc()

	logger.Info("job completed",
		"workflow_id", job.WorkflowID,
		"attempt", job.Attempt,
		"duration", took,
	)

	p.sink.HandleEvent(ev)
	return nil
}

// fail переводит job в failed без повторов.
func (p *Processor) fail(ctx context.Context, job *domain.Job, cause error, logger *slog.Logger) error {
	job.MarkFailed(cause.Error())

	ev := domain.NewJobEvent(job.ID, domain.EventFailed, domain.JobStatusFailed)
	ev.Error = job.Error
	job.Apply(ev)

	if err := p.store.Update(ctx, job); err != nil {
		return fmt.Errorf("update job to failed: %w", err)
	}
	telemetry.JobsFinished.WithLabelValues(string(domain.JobStatusFailed)).Inc()

	logger.Warn("job failed",
		"workflow_id", job.WorkflowID,
		"attempt", job.Attempt,
		"error", job.Error,
	)

	p.sink.HandleEvent(ev)
	return nil
}

// interrupt завершает job, если воркер останавливается.
// ctx уже отменён, поэтому сохраняем без отмены.
func (p *Processor) interrupt(ctx context.Context, job *domain.Job, logger *slog.Logger) error {
	cause := ctx.Err()
	return p.fail(context.WithoutCancel(ctx), job,
		fmt.Errorf("job interrupted: %w", cause), logger)
}

// emit обновляет прогресс job и отправляет событие.
// persist=false — событие только рассылается, job не сохраняется.
func (p *Processor) emit(ctx context.Context, job *domain.Job, event domain.ProgressEvent, persist bool) {
	job.Apply(event)
	if persist {
		if err := p.store.Update(ctx, job); err != nil {
			p.logger.Warn("failed to persist job progress",
				"job_id", job.ID,
				"error", err,
			)
		}
	}
	p.sink.HandleEvent(event)
}
