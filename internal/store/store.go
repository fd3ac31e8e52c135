package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"podforge/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	// UpdateJob moves a job to status and applies the supplied options in a
	// single atomic statement, returning the post-update record. It fails
	// with ErrInvalidTransition when the job's current status does not allow
	// the move, and with ErrNotFound when the job does not exist.
	UpdateJob(ctx context.Context, jobID uuid.UUID, status models.JobStatus, opts ...JobUpdateOption) (*models.Job, error)
	// DeleteJob removes a job and reports whether a record existed.
	// Administrative; the pipeline never deletes.
	DeleteJob(ctx context.Context, jobID uuid.UUID) (bool, error)
	ListJobsByStatus(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)
}

// JobFilter selects jobs for fleet-wide listing.
type JobFilter struct {
	Status models.JobStatus
	Page   int
	Limit  int
}

// JobUpdate collects the optional field writes that accompany a status
// transition. Nil fields are left untouched.
type JobUpdate struct {
	ErrorMessage     *string
	ResultAudioURL   *string
	InputResourceURL *string
}

type JobUpdateOption func(*JobUpdate)

// ApplyJobUpdateOptions folds opts into a JobUpdate. Store implementations
// and test doubles use it to read the option values.
func ApplyJobUpdateOptions(opts []JobUpdateOption) JobUpdate {
	var u JobUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

func WithErrorMessage(msg string) JobUpdateOption {
	return func(u *JobUpdate) {
		u.ErrorMessage = &msg
	}
}

func WithResultAudioURL(url string) JobUpdateOption {
	return func(u *JobUpdate) {
		u.ResultAudioURL = &url
	}
}

func WithInputResourceURL(url string) JobUpdateOption {
	return func(u *JobUpdate) {
		u.InputResourceURL = &url
	}
}
