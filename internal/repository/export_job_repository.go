package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-internship-api/internal/models"
)

const exportJobColumns = `id, class_id, format, status, progress, result_url, created_by, created_at, finished_at, error_message`

// ExportJobRepository persists asynchronous preference export jobs.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository constructs the repository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

// Create inserts a new job row in the QUEUED state.
func (r *ExportJobRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ExportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO export_jobs (` + exportJobColumns + `)
VALUES (:id, :class_id, :format, :status, :progress, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *ExportJobRepository) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	query := `SELECT ` + exportJobColumns + ` FROM export_jobs WHERE id = $1`
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get export job: %w", err)
	}
	return &job, nil
}

// ExportJobUpdate lists the mutable fields; nil fields are left untouched.
type ExportJobUpdate struct {
	Status       *models.ExportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update persists the provided changes for a job row.
func (r *ExportJobRepository) Update(ctx context.Context, id string, params ExportJobUpdate) error {
	set := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Progress != nil {
		add("progress", *params.Progress)
	}
	if params.ResultURL != nil {
		add("result_url", *params.ResultURL)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE export_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	return nil
}

// ListUnfinished fetches queued or interrupted jobs for startup recovery.
func (r *ExportJobRepository) ListUnfinished(ctx context.Context, limit int) ([]models.ExportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + exportJobColumns + `
FROM export_jobs WHERE status IN ($1, $2) ORDER BY created_at ASC LIMIT $3`
	var jobs []models.ExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, models.ExportStatusQueued, models.ExportStatusProcessing, limit); err != nil {
		return nil, fmt.Errorf("list unfinished export jobs: %w", err)
	}
	return jobs, nil
}

// ExpireFinishedBefore clears the download link of jobs finished before
// cutoff and returns how many rows changed.
func (r *ExportJobRepository) ExpireFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `UPDATE export_jobs SET result_url = NULL
WHERE status = $1 AND finished_at IS NOT NULL AND finished_at < $2 AND result_url IS NOT NULL`
	res, err := r.db.ExecContext(ctx, query, models.ExportStatusFinished, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire export jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire export jobs rows affected: %w", err)
	}
	return affected, nil
}
