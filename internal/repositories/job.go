package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/trackbot/internal/models"
	"github.com/desertthunder/trackbot/internal/shared"
)

const jobColumns = `id, sequence, type, meta, room, question, on_timeout_message, asked_at, created_at, updated_at`

// JobRepository is the durable confirmation queue.
//
// Promotion and removal of the processing job run inside IMMEDIATE transactions (see [shared.NewDatabase]),
// and the jobs table carries a unique partial index on asked_at, so at most one job is ever processing
// even with several processes sharing the database file.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Enqueue validates job, assigns its id and sequence, and appends it to the queue.
//
// Jobs always enter the queue unasked; AskedAt on the argument is ignored.
func (r *JobRepository) Enqueue(ctx context.Context, job *models.Job) (string, error) {
	if err := job.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}

	meta, err := encodeMeta(job.Meta)
	if err != nil {
		return "", err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(ctx, tx, "jobs")
	if err != nil {
		return "", fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	now := time.Now().UTC()

	query := `
		INSERT INTO jobs (id, sequence, type, meta, room, question, on_timeout_message, asked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
	`

	if _, err := tx.ExecContext(ctx, query,
		id, sequence, string(job.Type), meta, job.Room, job.Question, job.OnTimeoutMessage, now, now,
	); err != nil {
		return "", fmt.Errorf("failed to insert job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit job: %w", err)
	}

	job.ID = id
	job.Sequence = sequence
	job.AskedAt = nil
	job.CreatedAt = now
	job.UpdatedAt = now
	return id, nil
}

// CurrentlyProcessing returns the processing job, or nil when no job is being asked.
func (r *JobRepository) CurrentlyProcessing(ctx context.Context) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE asked_at IS NOT NULL LIMIT 1`
	return r.optional(r.db.QueryRowContext(ctx, query))
}

// StartProcessingNext promotes the earliest queued job by stamping asked_at with now.
//
// It returns nil without changes when a job is already processing or the queue is empty.
func (r *JobRepository) StartProcessingNext(ctx context.Context, now time.Time) (*models.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var busy bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE asked_at IS NOT NULL)`).Scan(&busy); err != nil {
		return nil, fmt.Errorf("failed to check processing job: %w", err)
	}
	if busy {
		return nil, nil
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE asked_at IS NULL ORDER BY sequence ASC LIMIT 1`
	job, err := r.optional(tx.QueryRowContext(ctx, query))
	if err != nil || job == nil {
		return nil, err
	}

	askedAt := now.UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET asked_at = ?, updated_at = ? WHERE id = ? AND asked_at IS NULL`,
		askedAt, askedAt, job.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to mark job processing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit promotion: %w", err)
	}

	job.AskedAt = &askedAt
	job.UpdatedAt = askedAt
	return job, nil
}

// PopCurrentlyProcessing removes and returns the processing job, or nil if there is none.
func (r *JobRepository) PopCurrentlyProcessing(ctx context.Context) (*models.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE asked_at IS NOT NULL LIMIT 1`
	job, err := r.optional(tx.QueryRowContext(ctx, query))
	if err != nil || job == nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, job.ID); err != nil {
		return nil, fmt.Errorf("failed to delete job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit pop: %w", err)
	}

	return job, nil
}

// ResolveProcessing deletes job id only if it is still the processing job.
//
// It reports false when the job was already evicted or resolved; callers treat that as a no-op.
func (r *JobRepository) ResolveProcessing(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ? AND asked_at IS NOT NULL`, id)
	if err != nil {
		return false, fmt.Errorf("failed to resolve job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows == 1, nil
}

// Get retrieves a job by ID.
func (r *JobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`
	job, err := r.optional(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return job, nil
}

// Update writes the mutable fields of job back to the queue.
func (r *JobRepository) Update(ctx context.Context, job *models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	meta, err := encodeMeta(job.Meta)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	var askedAt any
	if job.AskedAt != nil {
		askedAt = job.AskedAt.UTC()
	}

	query := `
		UPDATE jobs
		SET type = ?, meta = ?, room = ?, question = ?, on_timeout_message = ?, asked_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(job.Type), meta, job.Room, job.Question, job.OnTimeoutMessage, askedAt, now, job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, job.ID)
	}

	job.UpdatedAt = now
	return nil
}

// Delete removes a job by ID regardless of its state.
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}

	return nil
}

// Clear removes every job and returns how many were deleted.
func (r *JobRepository) Clear(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear jobs: %w", err)
	}
	return result.RowsAffected()
}

// List returns all jobs, the processing job first, then queued jobs in FIFO order.
func (r *JobRepository) List(ctx context.Context) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY asked_at IS NULL, sequence ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

// optional scans a single row, mapping [sql.ErrNoRows] to a nil job.
func (r *JobRepository) optional(row *sql.Row) (*models.Job, error) {
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func scanJob(s rowScanner) (*models.Job, error) {
	var (
		job     models.Job
		jobType string
		meta    string
		askedAt sql.NullTime
	)

	err := s.Scan(
		&job.ID, &job.Sequence, &jobType, &meta, &job.Room, &job.Question, &job.OnTimeoutMessage,
		&askedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job.Type = models.JobType(jobType)
	if askedAt.Valid {
		t := askedAt.Time
		job.AskedAt = &t
	}

	if err := json.Unmarshal([]byte(meta), &job.Meta); err != nil {
		return nil, fmt.Errorf("failed to decode job meta: %w", err)
	}

	return &job, nil
}

func encodeMeta(meta map[string]string) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode job meta: %w", err)
	}
	return string(b), nil
}
