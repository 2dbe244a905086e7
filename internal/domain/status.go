package domain

// JobStatus — статус асинхронного выполнения workflow.
//
// Жизненный цикл:
//
//	pending → active → completed
//	                 ↘ failed
//	(при retry active → pending → active ...)
type JobStatus string

const (
	// JobStatusPending — job в очереди, ждёт воркера.
	JobStatusPending JobStatus = "pending"

	// JobStatusActive — воркер выполняет задачи workflow.
	JobStatusActive JobStatus = "active"

	// JobStatusCompleted — все задачи выполнены.
	JobStatusCompleted JobStatus = "completed"

	// JobStatusFailed — задача упала и попытки исчерпаны, или job остановлен.
	JobStatusFailed JobStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление JobStatus.
func (s JobStatus) String() string {
	return string(s)
}

// ParseJobStatus парсит строку в JobStatus.
func ParseJobStatus(s string) JobStatus {
	switch s {
	case "active":
		return JobStatusActive
	case "completed":
		return JobStatusCompleted
	case "failed":
		return JobStatusFailed
	default:
		return JobStatusPending
	}
}

// EventType — тип события прогресса.
type EventType string

const (
	EventStarted   EventType = "started"
	EventActive    EventType = "active"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventRetrying  EventType = "retrying"
)
