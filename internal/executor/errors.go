package executor

import (
	"errors"
	"fmt"
)

// Ошибки выполнения задачи.
var (
	// ErrMissingInput — ключ из inputKeys не найден в data store.
	ErrMissingInput = errors.New("missing input key")

	// ErrInvalidImage — вход IMAGE_ANALYSIS не похож на изображение.
	ErrInvalidImage = errors.New("invalid image input")

	// ErrMissingLinkedPrompt — задача ссылается на promptId, но промпт не передан.
	ErrMissingLinkedPrompt = errors.New("linked prompt not provided")

	// ErrUnsupportedTaskType — для типа задачи нет обработчика.
	ErrUnsupportedTaskType = errors.New("unsupported task type")

	// ErrScript — тело функции TEXT_MANIPULATION бросило исключение.
	ErrScript = errors.New("function body error")

	// ErrScriptTimeout — тело функции выполнялось дольше лимита.
	ErrScriptTimeout = errors.New("function body timed out")

	// ErrProvider — ошибка провайдера модели.
	ErrProvider = errors.New("provider call failed")
)

// TaskError — ошибка, привязанная к задаче.
//
// Исходная ошибка сохраняется и доступна через errors.Is/As.
type TaskError struct {
	TaskID   string
	TaskName string
	Err      error
}

// Error реализует интерфейс error.
func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.TaskName, e.Err)
}

// Unwrap возвращает исходную ошибку.
func (e *TaskError) Unwrap() error {
	return e.Err
}
