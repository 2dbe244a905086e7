package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProgressEvent — событие прогресса job.
//
// События без TaskID относятся ко всему job (started, retrying,
// финальные completed/failed). События с TaskID — к отдельной задаче.
type ProgressEvent struct {
	Type      EventType `json:"type"`
	JobID     uuid.UUID `json:"jobId"`
	TaskID    string    `json:"taskId,omitempty"`
	TaskName  string    `json:"taskName,omitempty"`
	Status    JobStatus `json:"status"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IsTerminal возвращает true для финального события job.
// После него событий по этому job не будет.
func (e ProgressEvent) IsTerminal() bool {
	return e.TaskID == "" && e.Status.IsTerminal()
}

// NewJobEvent создаёт событие уровня job.
func NewJobEvent(jobID uuid.UUID, typ EventType, status JobStatus) ProgressEvent {
	return ProgressEvent{
		Type:      typ,
		JobID:     jobID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
}

// NewTaskEvent создаёт событие уровня задачи.
func NewTaskEvent(jobID uuid.UUID, typ EventType, taskID, taskName string) ProgressEvent {
	return ProgressEvent{
		Type:      typ,
		JobID:     jobID,
		TaskID:    taskID,
		TaskName:  taskName,
		Status:    JobStatusActive,
		Timestamp: time.Now().UTC(),
	}
}
