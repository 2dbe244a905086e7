package api

import (
	"net/http"

	"github.com/shaiso/promptflow/internal/engine"
)

// RunTask выполняет одну задачу синхронно.
// POST /api/v1/tasks/run
func (h *Handler) RunTask(w http.ResponseWriter, r *http.Request) {
	var req RunTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.runner.RunTask(r.Context(), req.Task, req.DataStore)
	if HandleError(w, h.logger, err) {
		return
	}

	Success(w, RunTaskResponse{Result: result})
}

// ValidateWorkflow проверяет workflow без выполнения.
// POST /api/v1/workflows/validate
func (h *Handler) ValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req ValidateWorkflowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Workflow == nil {
		BadRequest(w, "workflow is required")
		return
	}

	Success(w, engine.Check(req.Workflow))
}
