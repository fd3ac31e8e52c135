package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"podforge/internal/api/response"
	"podforge/internal/cache"
	"podforge/internal/pipeline"
	"podforge/internal/store"
	"podforge/pkg/models"
)

const statusCacheTTL = 30 * time.Minute

// Dispatcher starts and cancels background pipeline runs.
type Dispatcher interface {
	Start(req pipeline.Request)
	Cancel(jobID uuid.UUID) bool
}

type submitResponse struct {
	JobID     uuid.UUID `json:"job_id"`
	Status    string    `json:"status"`
	StatusURL string    `json:"status_url"`
}

// NewSubmitHandler returns an http.HandlerFunc for POST /api/v1/podcasts.
// Validation failures are rejected synchronously before any job record is
// created; collaborator failures after this point are only ever visible
// through a later status query.
func NewSubmitHandler(s store.Store, c cache.Cache, d Dispatcher, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid form body", nil)
			return
		}

		resourceType, ok := models.ParseResourceType(r.FormValue("resource_type"))
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"resource_type must be one of file, youtube, web", nil)
			return
		}

		collectionID := r.FormValue("collection_id")
		if collectionID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "collection_id is required", nil)
			return
		}

		req := pipeline.Request{
			ResourceType: resourceType,
			CollectionID: collectionID,
		}

		switch resourceType {
		case models.ResourceTypeFile:
			file, header, err := r.FormFile("file")
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"file is required for file resources", nil)
				return
			}
			defer file.Close()

			if ct := header.Header.Get("Content-Type"); ct != "application/pdf" {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"Only PDF files are supported", nil)
				return
			}

			content, err := io.ReadAll(file)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"Failed to read file payload", nil)
				return
			}
			req.FileName = header.Filename
			req.FileContentType = header.Header.Get("Content-Type")
			req.FileContent = content

		case models.ResourceTypeYouTube, models.ResourceTypeWeb:
			resourceData := r.FormValue("resource_data")
			if resourceData == "" {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"resource_data is required for youtube/web resources", nil)
				return
			}
			if !validHTTPURL(resourceData) {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"resource_data must be a valid http(s) URL", nil)
				return
			}
			req.ResourceURL = resourceData
		}

		now := time.Now().UTC()
		job := &models.Job{
			JobID:             uuid.New(),
			Status:            models.JobStatusPending,
			InputResourceType: resourceType,
			InputCollectionID: collectionID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if req.ResourceURL != "" {
			job.InputResourceURL = &req.ResourceURL
		}

		if err := s.CreateJob(r.Context(), job); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Error(w, http.StatusInternalServerError, "DUPLICATE_JOB",
					"Job id collision, retry the request", nil)
				return
			}
			response.Error(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE",
				"Could not persist the job, nothing was scheduled", nil)
			return
		}
		_ = c.SetJobStatus(r.Context(), job.JobID, models.JobStatusPending, statusCacheTTL)

		req.JobID = job.JobID
		d.Start(req)

		statusURL := fmt.Sprintf("/api/v1/podcasts/%s", job.JobID)
		w.Header().Set("Location", statusURL)
		response.Accepted(w, submitResponse{
			JobID:     job.JobID,
			Status:    "accepted",
			StatusURL: statusURL,
		})
	}
}

func validHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
