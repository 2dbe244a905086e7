package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/promptflow/internal/jobs"
)

// SubmitJob ставит workflow в очередь.
// POST /api/v1/jobs
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req jobs.SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.queue.Submit(r.Context(), req)
	if HandleError(w, h.logger, err) {
		return
	}

	Accepted(w, SubmitJobResponse{JobID: id})
}

// GetJob возвращает состояние job.
// GET /api/v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	job, err := h.queue.Status(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}

	Success(w, job)
}

// StopJob просит остановить job.
// POST /api/v1/jobs/{id}/stop
func (h *Handler) StopJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	stopped, err := h.queue.StopJob(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}

	if stopped {
		h.logger.Info("job stop requested", "job_id", id)
	}
	Success(w, StopJobResponse{Stopped: stopped})
}

// jobID разбирает {id} из пути.
func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return uuid.Nil, false
	}
	return id, true
}
