package jobs

import "errors"

// Ошибки очереди job.
var (
	// ErrJobNotFound — job не найден (никогда не существовал или вытеснен из истории).
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotPending — job уже взят другим воркером или завершён.
	ErrJobNotPending = errors.New("job is not pending")

	// ErrJobStopped — job остановлен по запросу пользователя.
	ErrJobStopped = errors.New("job stopped by request")

	// ErrQueueFull — в очереди нет места.
	ErrQueueFull = errors.New("job queue is full")

	// ErrQueueClosed — очередь остановлена.
	ErrQueueClosed = errors.New("job queue is closed")

	// ErrInvalidSubmission — в запросе нет workflow.
	ErrInvalidSubmission = errors.New("invalid job submission")
)
