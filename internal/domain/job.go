package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job — асинхронное выполнение одного workflow.
//
// Job создаётся при отправке workflow в очередь, меняется воркером
// по мере выполнения задач и становится финальным после completed/failed.
// Завершённые job хранятся ограниченное время (bounded history).
type Job struct {
	// ID — уникальный идентификатор job.
	ID uuid.UUID `json:"id"`

	// WorkflowID — идентификатор выполняемого workflow.
	WorkflowID string `json:"workflowId"`

	// Status — текущий статус.
	Status JobStatus `json:"status"`

	// Progress — счётчики и последнее событие.
	Progress JobProgress `json:"progress"`

	// Result — итог выполнения. Заполняется только в статусе completed.
	Result *JobResult `json:"result,omitempty"`

	// Error — текст ошибки для статуса failed.
	Error string `json:"error,omitempty"`

	// Attempt — номер текущей попытки (начиная с 1).
	Attempt int `json:"attempt"`

	// MaxAttempts — сколько всего попыток разрешено.
	MaxAttempts int `json:"maxAttempts"`

	// StopRequested — пользователь попросил остановить job.
	StopRequested bool `json:"stopRequested,omitempty"`

	// Workflow и UserInput — входные данные воркера, наружу не отдаются.
	Workflow  *Workflow      `json:"-"`
	UserInput map[string]any `json:"-"`

	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// JobProgress — прогресс выполнения задач.
type JobProgress struct {
	TotalTasks     int            `json:"totalTasks"`
	CompletedTasks int            `json:"completedTasks"`
	CurrentTaskID  string         `json:"currentTaskId,omitempty"`
	LastEvent      *ProgressEvent `json:"lastEvent,omitempty"`
}

// JobResult — результат успешного выполнения workflow.
type JobResult struct {
	// DataStore — итоговое состояние data store (включая userInput).
	DataStore map[string]any `json:"dataStore"`

	// Results — результаты по ID задач.
	Results map[string]any `json:"results"`

	// Feedback — нефатальные замечания сортировки.
	Feedback []string `json:"feedback,omitempty"`
}

// NewJob создаёт job в статусе pending.
func NewJob(wf *Workflow, userInput map[string]any, maxAttempts int) *Job {
	if userInput == nil {
		userInput = map[string]any{}
	}
	return &Job{
		ID:          uuid.New(),
		WorkflowID:  wf.ID,
		Status:      JobStatusPending,
		Progress:    JobProgress{TotalTasks: wf.TaskCount()},
		MaxAttempts: maxAttempts,
		Workflow:    wf,
		UserInput:   userInput,
		CreatedAt:   time.Now().UTC(),
	}
}

// Duration возвращает продолжительность выполнения.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

// IsFinished возвращает true, если job завершён.
func (j *Job) IsFinished() bool {
	return j.Status.IsTerminal()
}

// MarkActive переводит job в active и начинает новую попытку.
func (j *Job) MarkActive() {
	now := time.Now().UTC()
	j.Status = JobStatusActive
	if j.StartedAt == nil {
		j.StartedAt = &now
	}
	j.Attempt++
	j.Error = ""
	j.Progress.CompletedTasks = 0
	j.Progress.CurrentTaskID = ""
}

// MarkCompleted переводит job в completed с результатом.
func (j *Job) MarkCompleted(result *JobResult) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.FinishedAt = &now
	j.Result = result
	j.Progress.CurrentTaskID = ""
}

// MarkFailed переводит job в failed с ошибкой.
func (j *Job) MarkFailed(err string) {
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.FinishedAt = &now
	j.Error = err
	j.Result = nil
}

// ResetForRetry возвращает job в pending перед следующей попыткой.
// Ошибка последней попытки сохраняется до старта следующей.
func (j *Job) ResetForRetry(err string) {
	j.Status = JobStatusPending
	j.Error = err
	j.Progress.CurrentTaskID = ""
}

// CanRetry проверяет, можно ли сделать ещё одну попытку.
func (j *Job) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}

// Apply обновляет прогресс по событию.
func (j *Job) Apply(event ProgressEvent) {
	ev := event
	j.Progress.LastEvent = &ev
	if event.TaskID == "" {
		return
	}
	switch event.Type {
	case EventActive:
		j.Progress.CurrentTaskID = event.TaskID
	case EventCompleted:
		j.Progress.CompletedTasks++
		j.Progress.CurrentTaskID = ""
	}
}
