package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/engine"
	"github.com/shaiso/promptflow/internal/provider"
)

const defaultScriptTimeout = 2 * time.Second

// Call — всё, что обработчик знает о вызове задачи.
type Call struct {
	// Task — выполняемая задача.
	Task *domain.Task

	// Store — data store workflow. Только для чтения.
	Store map[string]any

	// Inputs — значения inputKeys под упрощёнными именами.
	Inputs map[string]any

	// Scope — Store, поверх которого лежат Inputs.
	// Против него интерполируются промпты.
	Scope map[string]any

	// Linked — связанный промпт (только для задач с promptId).
	Linked *domain.LinkedPrompt
}

// Handler — обработчик одного типа задач.
type Handler interface {
	Handle(ctx context.Context, call *Call) (any, error)
}

// HandlerFunc — функция как Handler.
type HandlerFunc func(ctx context.Context, call *Call) (any, error)

// Handle вызывает f.
func (f HandlerFunc) Handle(ctx context.Context, call *Call) (any, error) {
	return f(ctx, call)
}

// Registry — реестр обработчиков по типу задачи.
type Registry struct {
	handlers map[domain.TaskType]Handler
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.TaskType]Handler)}
}

// Register добавляет обработчик для типа задачи.
func (r *Registry) Register(taskType domain.TaskType, h Handler) {
	r.handlers[taskType] = h
}

// Get возвращает обработчик для типа задачи.
func (r *Registry) Get(taskType domain.TaskType) (Handler, error) {
	h, ok := r.handlers[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTaskType, taskType)
	}
	return h, nil
}

// Executor выполняет одну задачу.
//
// Executor не пишет в data store: результат возвращается вызывающему
// (Workflow Runner), который и кладёт его под outputKey.
type Executor struct {
	provider      provider.Provider
	registry      *Registry
	scriptTimeout time.Duration
	logger        *slog.Logger
}

// Config — конфигурация Executor.
type Config struct {
	// Provider — доступ к модели (обязательно для prompt-задач).
	Provider provider.Provider

	// ScriptTimeout — лимит времени TEXT_MANIPULATION. Default: 2s.
	ScriptTimeout time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт Executor со всеми обработчиками по умолчанию.
func New(cfg Config) *Executor {
	scriptTimeout := cfg.ScriptTimeout
	if scriptTimeout <= 0 {
		scriptTimeout = defaultScriptTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Executor{
		provider:      cfg.Provider,
		registry:      NewRegistry(),
		scriptTimeout: scriptTimeout,
		logger:        logger,
	}

	e.registry.Register(domain.TaskTypeDataInput, HandlerFunc(e.handleDataInput))
	e.registry.Register(domain.TaskTypePrompt, HandlerFunc(e.handlePrompt))
	e.registry.Register(domain.TaskTypeGrounded, HandlerFunc(e.handleGrounded))
	e.registry.Register(domain.TaskTypeImageAnalysis, HandlerFunc(e.handleImageAnalysis))
	e.registry.Register(domain.TaskTypeTextManipulation, HandlerFunc(e.handleTextManipulation))
	e.registry.Register(domain.TaskTypeDisplayChart, HandlerFunc(e.handleDisplayChart))

	return e
}

// Registry возвращает реестр обработчиков (для замены в тестах).
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute выполняет задачу против data store.
//
// Шаг 1: значения inputKeys ищутся в store; отсутствующий ключ — ошибка задачи.
// Шаг 2: вызывается обработчик по типу задачи.
//
// Любая ошибка возвращается как *TaskError с именем задачи.
func (e *Executor) Execute(ctx context.Context, task *domain.Task, store map[string]any, linked *domain.LinkedPrompt) (any, error) {
	if task == nil || task.Spec == nil {
		return nil, fmt.Errorf("%w: empty task", ErrUnsupportedTaskType)
	}

	inputs, err := ResolveInputs(task, store)
	if err != nil {
		return nil, e.attribute(task, err)
	}

	h, err := e.registry.Get(task.Type())
	if err != nil {
		return nil, e.attribute(task, err)
	}

	call := &Call{
		Task:   task,
		Store:  store,
		Inputs: inputs,
		Scope:  engine.Merge(store, inputs),
		Linked: linked,
	}

	result, err := h.Handle(ctx, call)
	if err != nil {
		return nil, e.attribute(task, err)
	}
	return result, nil
}

// ResolveInputs собирает значения inputKeys под упрощёнными именами
// ("userInput.text" → "text").
func ResolveInputs(task *domain.Task, store map[string]any) (map[string]any, error) {
	inputs := make(map[string]any, len(task.InputKeys))
	for _, key := range task.InputKeys {
		value, ok := engine.Lookup(store, key)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingInput, key)
		}
		inputs[engine.SimplifiedName(key)] = value
	}
	return inputs, nil
}

// attribute оборачивает ошибку в TaskError, если она ещё не обёрнута.
func (e *Executor) attribute(task *domain.Task, err error) error {
	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		return err
	}
	return &TaskError{TaskID: task.ID, TaskName: task.DisplayName(), Err: err}
}

// interpolate подставляет значения в шаблон и предупреждает о ненайденных ключах.
func (e *Executor) interpolate(call *Call, tmpl string) string {
	out, missing := engine.Interpolate(tmpl, call.Scope)
	if len(missing) > 0 {
		e.logger.Warn("template placeholders not found",
			"task_id", call.Task.ID,
			"keys", missing,
		)
	}
	return out
}
