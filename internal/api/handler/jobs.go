package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"podforge/internal/api/response"
	"podforge/internal/store"
	"podforge/pkg/models"
)

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
// Administrative fleet view: list every job in a given status, e.g. all
// jobs stuck in processing_audio.
func NewListJobsHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("status")
		if raw == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "status is required", nil)
			return
		}
		status := models.JobStatus(raw)
		if !models.KnownStatus(status) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"status is not a valid job status", nil)
			return
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}
		if page <= 0 {
			page = 1
		}

		jobs, total, err := s.ListJobsByStatus(r.Context(), store.JobFilter{
			Status: status,
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			response.Error(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE",
				"Could not list jobs", nil)
			return
		}
		if jobs == nil {
			jobs = []*models.Job{}
		}

		response.Collection(w, jobs, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

// NewDeleteJobHandler returns an http.HandlerFunc for DELETE /api/v1/podcasts/{jobID}.
// Administrative removal; the pipeline itself never deletes records.
func NewDeleteJobHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}

		existed, err := s.DeleteJob(r.Context(), jobID)
		if err != nil {
			response.Error(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE",
				"Could not delete job", nil)
			return
		}
		if !existed {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}
		response.NoContent(w)
	}
}
