package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"podforge/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const jobColumns = `job_id, status, input_resource_type, input_resource_url, input_collection_id, error_message, result_audio_url, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	var status, resourceType string
	err := row.Scan(&j.JobID, &status, &resourceType, &j.InputResourceURL,
		&j.InputCollectionID, &j.ErrorMessage, &j.ResultAudioURL, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Status = models.JobStatus(status)
	j.InputResourceType = models.ResourceType(resourceType)
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (job_id, status, input_resource_type, input_resource_url, input_collection_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.JobID, string(job.Status), string(job.InputResourceType), job.InputResourceURL,
		job.InputCollectionID, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE job_id = $1`, jobID)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// UpdateJob performs the status transition as a single guarded UPDATE: the
// WHERE clause restricts the current status to the set from which the target
// is reachable, so a concurrent writer that already moved the job (for
// example a cancellation that won the race) makes this call fail with
// ErrInvalidTransition instead of overwriting a terminal state.
func (s *PostgresStore) UpdateJob(ctx context.Context, jobID uuid.UUID, status models.JobStatus, opts ...JobUpdateOption) (*models.Job, error) {
	params := ApplyJobUpdateOptions(opts)

	sources := models.TransitionSources(status)
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no status may move to %s", ErrInvalidTransition, status)
	}
	sourceStrs := make([]string, len(sources))
	for i, src := range sources {
		sourceStrs[i] = string(src)
	}

	set := []string{"status = $2", "updated_at = $3"}
	args := []any{jobID, string(status), time.Now().UTC()}
	argIdx := 4

	if params.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", argIdx))
		args = append(args, *params.ErrorMessage)
		argIdx++
	}
	if params.ResultAudioURL != nil {
		set = append(set, fmt.Sprintf("result_audio_url = $%d", argIdx))
		args = append(args, *params.ResultAudioURL)
		argIdx++
	}
	if params.InputResourceURL != nil {
		set = append(set, fmt.Sprintf("input_resource_url = $%d", argIdx))
		args = append(args, *params.InputResourceURL)
		argIdx++
	}

	query := fmt.Sprintf(
		`UPDATE jobs SET %s WHERE job_id = $1 AND status = ANY($%d) RETURNING %s`,
		strings.Join(set, ", "), argIdx, jobColumns)
	args = append(args, sourceStrs)

	j, err := scanJob(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		// The guard rejected the row or the job does not exist; look at the
		// current status to tell the two apart.
		var current string
		selErr := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE job_id = $1`, jobID).Scan(&current)
		if errors.Is(selErr, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if selErr != nil {
			return nil, fmt.Errorf("get job status: %w", selErr)
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}
	if err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) DeleteJob(ctx context.Context, jobID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListJobsByStatus(ctx context.Context, filter JobFilter) ([]*models.Job, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs WHERE status = $1`, string(filter.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		string(filter.Status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
