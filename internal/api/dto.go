package api

import (
	"github.com/google/uuid"

	"github.com/shaiso/promptflow/internal/domain"
)

// Job DTOs

// SubmitJobResponse — ответ на постановку job в очередь.
type SubmitJobResponse struct {
	JobID uuid.UUID `json:"jobId"`
}

// StopJobResponse — ответ на запрос остановки.
type StopJobResponse struct {
	Stopped bool `json:"stopped"`
}

// Task DTOs

// RunTaskRequest — запрос на синхронное выполнение одной задачи.
type RunTaskRequest struct {
	Task      domain.TaskDef `json:"task"`
	DataStore map[string]any `json:"dataStore"`
}

// RunTaskResponse — результат задачи.
type RunTaskResponse struct {
	Result any `json:"result"`
}

// Workflow DTOs

// ValidateWorkflowRequest — запрос на проверку workflow.
type ValidateWorkflowRequest struct {
	Workflow *domain.Workflow `json:"workflow"`
}
