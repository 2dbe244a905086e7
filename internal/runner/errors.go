package runner

import "errors"

// Ошибки выполнения workflow.
var (
	// ErrStopped — выполнение остановлено по запросу.
	ErrStopped = errors.New("workflow stopped")

	// ErrPromptNotFound — связанный промпт не найден.
	ErrPromptNotFound = errors.New("linked prompt not found")
)
