package domain

import "errors"

// Ошибки построения задачи.
var (
	// ErrMissingField — не заполнено обязательное поле задачи.
	ErrMissingField = errors.New("missing required task field")

	// ErrUnknownTaskType — тип задачи не поддерживается.
	ErrUnknownTaskType = errors.New("unsupported task type")
)

// FieldError — ошибка в конкретном поле задачи.
type FieldError struct {
	TaskID  string
	Field   string
	Message string
	Err     error
}

// Error реализует интерфейс error.
func (e *FieldError) Error() string {
	if e.TaskID != "" {
		return "task " + e.TaskID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *FieldError) Unwrap() error {
	return e.Err
}
