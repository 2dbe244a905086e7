package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/engine"
)

// Queue — асинхронное выполнение workflow.
//
// Реализации: LocalQueue (пул горутин в процессе)
// и DurableQueue (PostgreSQL + RabbitMQ, выполняет worker.Worker).
type Queue interface {
	// Submit ставит workflow в очередь и возвращает ID job.
	Submit(ctx context.Context, req SubmitRequest) (uuid.UUID, error)

	// Status возвращает текущее состояние job или ErrJobNotFound.
	Status(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// StopJob просит остановить job. Задача, которая уже выполняется,
	// доработает; следующая не начнётся.
	StopJob(ctx context.Context, id uuid.UUID) (bool, error)
}

// SubmitRequest — запрос на выполнение workflow.
type SubmitRequest struct {
	// WorkflowID переопределяет Workflow.ID (опционально).
	WorkflowID string `json:"workflowId,omitempty"`

	Workflow  *domain.Workflow `json:"workflow"`
	UserInput map[string]any   `json:"userInput"`
}

// newJob проверяет запрос и создаёт pending job.
// Невалидный workflow отклоняется сразу, до постановки в очередь.
func newJob(req SubmitRequest, maxAttempts int) (*domain.Job, error) {
	if req.Workflow == nil {
		return nil, fmt.Errorf("%w: workflow is required", ErrInvalidSubmission)
	}

	wf := *req.Workflow
	if req.WorkflowID != "" {
		wf.ID = req.WorkflowID
	}

	if err := engine.Validate(&wf); err != nil {
		return nil, err
	}

	return domain.NewJob(&wf, req.UserInput, maxAttempts), nil
}
