package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"podforge/internal/api/response"
	"podforge/internal/cache"
	"podforge/internal/store"
	"podforge/pkg/models"
)

type statusResponse struct {
	JobID    uuid.UUID        `json:"job_id"`
	Status   models.JobStatus `json:"status"`
	AudioURL string           `json:"audio_url,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// NewStatusHandler returns an http.HandlerFunc for GET /api/v1/podcasts/{jobID}.
// Responses are marked non-cacheable so intermediaries never serve a stale
// status; terminal responses are stable across repeated calls.
func NewStatusHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			// Malformed ids are indistinguishable from unknown ones.
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}

		// Fast path: non-terminal statuses need no other fields, so a cache
		// hit skips the database. Terminal statuses carry the audio URL or
		// error message and always come from the store.
		if status, ok, _ := c.GetJobStatus(r.Context(), jobID); ok && !status.Terminal() {
			response.JSON(w, statusResponse{JobID: jobID, Status: status})
			return
		}

		job, err := s.GetJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE",
				"Could not read job status", nil)
			return
		}

		resp := statusResponse{JobID: job.JobID, Status: job.Status}
		switch job.Status {
		case models.JobStatusComplete:
			if job.ResultAudioURL != nil {
				resp.AudioURL = *job.ResultAudioURL
			}
		case models.JobStatusFailed:
			if job.ErrorMessage != nil {
				resp.Error = *job.ErrorMessage
			}
		}
		response.JSON(w, resp)
	}
}
