package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Metrics(),
		Logging(h.logger),
	)

	// Jobs
	mux.Handle("POST /api/v1/jobs", chain(http.HandlerFunc(h.SubmitJob)))
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))
	mux.Handle("POST /api/v1/jobs/{id}/stop", chain(http.HandlerFunc(h.StopJob)))
	mux.Handle("GET /api/v1/jobs/{id}/events", chain(http.HandlerFunc(h.StreamJobEvents)))

	// Tasks
	mux.Handle("POST /api/v1/tasks/run", chain(http.HandlerFunc(h.RunTask)))

	// Workflows
	mux.Handle("POST /api/v1/workflows/validate", chain(http.HandlerFunc(h.ValidateWorkflow)))
}
