package engine

import (
	"errors"
	"strings"
)

// Структурные ошибки workflow.
var (
	// ErrInvalidWorkflow — workflow нельзя выполнить (оборачивает все структурные ошибки).
	ErrInvalidWorkflow = errors.New("invalid workflow")

	// ErrNilWorkflow — workflow не передан.
	ErrNilWorkflow = errors.New("workflow is nil")

	// ErrDuplicateTaskID — несколько задач с одинаковым ID.
	ErrDuplicateTaskID = errors.New("duplicate task ID")

	// ErrMissingDependency — задача зависит от несуществующей задачи.
	ErrMissingDependency = errors.New("task depends on unknown task")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	TaskID  string // ID задачи, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.TaskID != "" {
		return "task " + e.TaskID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(taskID, field, message string, err error) *ValidationError {
	return &ValidationError{
		TaskID:  taskID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// WorkflowError — все структурные ошибки workflow сразу.
//
// errors.Is(err, ErrInvalidWorkflow) истинно для любого WorkflowError,
// а также для каждой из вложенных ошибок.
type WorkflowError struct {
	WorkflowID string
	Errors     []error
}

// Error реализует интерфейс error.
func (e *WorkflowError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	prefix := ErrInvalidWorkflow.Error()
	if e.WorkflowID != "" {
		prefix += " " + e.WorkflowID
	}
	return prefix + ": " + strings.Join(msgs, "; ")
}

// Unwrap возвращает вложенные ошибки.
func (e *WorkflowError) Unwrap() []error {
	return e.Errors
}

// Is сообщает, что WorkflowError — это ErrInvalidWorkflow.
func (e *WorkflowError) Is(target error) bool {
	return target == ErrInvalidWorkflow
}
