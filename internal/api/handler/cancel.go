package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"podforge/internal/api/response"
	"podforge/internal/store"
)

type cancelResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`
}

// NewCancelHandler returns an http.HandlerFunc for POST /api/v1/podcasts/{jobID}/cancel.
// Cancellation is a cooperative signal: the pipeline observes it at its next
// stage boundary, so the job may still finish the stage currently in flight.
func NewCancelHandler(s store.Store, d Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}

		job, err := s.GetJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE",
				"Could not read job", nil)
			return
		}

		if job.Status.Terminal() {
			response.Error(w, http.StatusConflict, "CONFLICT",
				"Job already reached a terminal status", map[string]any{"status": job.Status})
			return
		}

		d.Cancel(jobID)
		response.Accepted(w, cancelResponse{JobID: jobID, Status: "cancelling"})
	}
}
