package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shaiso/promptflow/internal/domain"
)

// StreamJobEvents отдаёт события прогресса job как Server-Sent Events.
// Поток закрывается после финального события job.
// GET /api/v1/jobs/{id}/events
func (h *Handler) StreamJobEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, h.logger, fmt.Errorf("streaming unsupported"))
		return
	}

	job, err := h.queue.Status(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}

	// Подписываемся до повторной проверки статуса, чтобы не потерять финал
	sub := h.events.Subscribe(id)
	defer sub.Close()

	if !job.IsFinished() {
		if job, err = h.queue.Status(r.Context(), id); err != nil {
			HandleError(w, h.logger, err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if job.IsFinished() {
		_ = writeEvent(w, finalEvent(job))
		flusher.Flush()
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := writeEvent(w, event); err != nil {
				h.logger.Debug("sse write failed", "job_id", id, "error", err)
				return
			}
			flusher.Flush()
			if event.IsTerminal() {
				return
			}
		}
	}
}

// writeEvent пишет одно SSE-событие.
func writeEvent(w http.ResponseWriter, event domain.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	return err
}

// finalEvent восстанавливает финальное событие по завершённому job.
func finalEvent(job *domain.Job) domain.ProgressEvent {
	typ := domain.EventCompleted
	if job.Status == domain.JobStatusFailed {
		typ = domain.EventFailed
	}

	event := domain.NewJobEvent(job.ID, typ, job.Status)
	event.Error = job.Error
	if job.Result != nil {
		event.Result = job.Result.Results
	}
	if job.FinishedAt != nil {
		event.Timestamp = *job.FinishedAt
	}
	return event
}
