package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/engine"
	"github.com/shaiso/promptflow/internal/executor"
	"github.com/shaiso/promptflow/internal/telemetry"
)

// UserInputKey — ключ data store, под которым лежит ввод пользователя.
const UserInputKey = "userInput"

// TaskExecutor — выполнение одной задачи (реализуется executor.Executor).
type TaskExecutor interface {
	Execute(ctx context.Context, task *domain.Task, store map[string]any, linked *domain.LinkedPrompt) (any, error)
}

// PromptResolver находит связанный промпт по ID.
type PromptResolver interface {
	ResolvePrompt(ctx context.Context, id string) (*domain.LinkedPrompt, error)
}

// Hooks — наблюдатели за выполнением. Любое поле может быть nil.
type Hooks struct {
	// OnTaskStart вызывается перед выполнением задачи.
	OnTaskStart func(task *domain.Task)

	// OnTaskComplete вызывается после записи результата в data store.
	OnTaskComplete func(task *domain.Task, result any)

	// OnTaskFail вызывается, если задача упала. После него run прерывается.
	OnTaskFail func(task *domain.Task, err error)

	// ShouldStop проверяется перед каждой задачей.
	ShouldStop func() bool
}

// Result — итог выполнения workflow.
type Result struct {
	// DataStore — весь data store, включая userInput и промежуточные значения.
	DataStore map[string]any

	// Results — результаты по ID задач.
	Results map[string]any

	// Feedback — нефатальные замечания сортировки.
	Feedback []string
}

// Runner выполняет workflow целиком.
//
// Задачи выполняются последовательно в топологическом порядке.
// Data store принадлежит одному вызову Run, поэтому блокировки не нужны.
// Первая же ошибка задачи прерывает выполнение; уже записанные ключи
// не откатываются.
type Runner struct {
	executor TaskExecutor
	prompts  PromptResolver
	logger   *slog.Logger
}

// Config — конфигурация Runner.
type Config struct {
	// Executor — выполнение задач (обязательно).
	Executor TaskExecutor

	// Prompts — поиск связанных промптов (опционально).
	Prompts PromptResolver

	// Logger
	Logger *slog.Logger
}

// New создаёт Runner.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		executor: cfg.Executor,
		prompts:  cfg.Prompts,
		logger:   logger,
	}
}

// Run выполняет workflow.
//
// Структурные ошибки (циклы, ссылки на несуществующие задачи,
// незаполненные поля) возвращаются до выполнения первой задачи
// как *engine.WorkflowError. Ошибка задачи — *executor.TaskError.
// Остановка через hooks.ShouldStop — ErrStopped.
func (r *Runner) Run(ctx context.Context, wf *domain.Workflow, userInput map[string]any, hooks Hooks) (*Result, error) {
	plan, err := engine.Compile(wf)
	if err != nil {
		return nil, err
	}

	logger := telemetry.WithWorkflowID(r.loggerFor(ctx), wf.ID)
	for _, note := range plan.Feedback {
		logger.Warn("workflow feedback", "note", note)
	}

	if userInput == nil {
		userInput = map[string]any{}
	}
	store := map[string]any{UserInputKey: userInput}
	results := make(map[string]any, len(plan.Order))

	for _, task := range plan.Order {
		if hooks.ShouldStop != nil && hooks.ShouldStop() {
			logger.Info("workflow stopped before task", "task_id", task.ID)
			return nil, ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := r.runTask(ctx, task, store, hooks)
		if err != nil {
			logger.Warn("workflow aborted", "task_id", task.ID, "error", err)
			return nil, err
		}

		store[task.OutputKey] = result
		results[task.ID] = result

		if hooks.OnTaskComplete != nil {
			hooks.OnTaskComplete(task, result)
		}
	}

	logger.Debug("workflow finished", "tasks", len(plan.Order))

	return &Result{
		DataStore: store,
		Results:   results,
		Feedback:  plan.Feedback,
	}, nil
}

// loggerFor возвращает логгер вызывающего (например, с job_id), если он есть в ctx.
func (r *Runner) loggerFor(ctx context.Context) *slog.Logger {
	if logger, ok := telemetry.LoggerFrom(ctx); ok {
		return logger
	}
	return r.logger
}

// runTask выполняет одну задачу workflow и сообщает о провале.
func (r *Runner) runTask(ctx context.Context, task *domain.Task, store map[string]any, hooks Hooks) (any, error) {
	if hooks.OnTaskStart != nil {
		hooks.OnTaskStart(task)
	}

	start := time.Now()
	result, err := r.execute(ctx, task, store)
	took := time.Since(start)
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	telemetry.TaskDuration.WithLabelValues(string(task.Type()), status).Observe(took.Seconds())
	telemetry.WithTaskID(r.loggerFor(ctx), task.ID).Debug("task finished",
		"type", task.Type(),
		"status", status,
		"duration", took,
	)

	if err != nil {
		if hooks.OnTaskFail != nil {
			hooks.OnTaskFail(task, err)
		}
		return nil, err
	}
	return result, nil
}

// execute находит связанный промпт и вызывает executor.
func (r *Runner) execute(ctx context.Context, task *domain.Task, store map[string]any) (any, error) {
	linked, err := r.linkedPrompt(ctx, task)
	if err != nil {
		return nil, &executor.TaskError{TaskID: task.ID, TaskName: task.DisplayName(), Err: err}
	}

	result, err := r.executor.Execute(ctx, task, store, linked)
	if err != nil {
		var taskErr *executor.TaskError
		if !errors.As(err, &taskErr) {
			err = &executor.TaskError{TaskID: task.ID, TaskName: task.DisplayName(), Err: err}
		}
		return nil, err
	}
	return result, nil
}

// linkedPrompt возвращает промпт для задач с promptId.
func (r *Runner) linkedPrompt(ctx context.Context, task *domain.Task) (*domain.LinkedPrompt, error) {
	spec, ok := task.Spec.(domain.PromptSpec)
	if !ok || spec.PromptID == "" {
		return nil, nil
	}
	if r.prompts == nil {
		return nil, fmt.Errorf("%w: %s (no prompt library configured)", ErrPromptNotFound, spec.PromptID)
	}

	prompt, err := r.prompts.ResolvePrompt(ctx, spec.PromptID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPromptNotFound, spec.PromptID, err)
	}
	return prompt, nil
}

// RunTask синхронно выполняет одну задачу против переданного data store.
//
// Зависимости задачи не проверяются: вызывающий сам готовит store.
// Store не изменяется.
func (r *Runner) RunTask(ctx context.Context, def domain.TaskDef, store map[string]any) (any, error) {
	task, err := engine.CompileTask(def)
	if err != nil {
		return nil, err
	}
	if store == nil {
		store = map[string]any{}
	}
	return r.runTask(ctx, task, store, Hooks{})
}
