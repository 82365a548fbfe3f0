package service

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-internship-api/internal/dto"
	"github.com/noah-isme/sma-internship-api/internal/models"
	"github.com/noah-isme/sma-internship-api/internal/repository"
	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
	"github.com/noah-isme/sma-internship-api/pkg/jobs"
)

// ExportJobType tags preference export jobs on the queue.
const ExportJobType = "preference_export"

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.ExportJobUpdate) error
	ListUnfinished(ctx context.Context, limit int) ([]models.ExportJob, error)
	ExpireFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type classResolver interface {
	ResolveClass(ctx context.Context, claims *models.JWTClaims, classID string) (*models.Class, error)
}

type exportRenderer interface {
	Render(ctx context.Context, class models.Class, format models.ExportFormat) (*RenderedExport, error)
	Store(jobID string, rendered *RenderedExport) (*ExportResult, error)
}

type exportFiles interface {
	ParseToken(token string, allowExpired bool) (string, string, time.Time, error)
	Read(relPath string) ([]byte, error)
	ContentType(format models.ExportFormat) string
	Cleanup() ([]string, error)
	ResultTTL() time.Duration
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	Data        []byte
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// ExportJobService orchestrates asynchronous export job lifecycle management.
type ExportJobService struct {
	repo    exportJobStore
	classes classResolver
	queue   jobDispatcher
	files   exportFiles
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportJobService constructs the export job service.
func NewExportJobService(repo exportJobStore, classes classResolver, queue jobDispatcher, files exportFiles, logger *zap.Logger) *ExportJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportJobService{repo: repo, classes: classes, queue: queue, files: files, logger: logger, now: time.Now}
}

// CreateJob resolves the class, persists the job and enqueues it.
func (s *ExportJobService) CreateJob(ctx context.Context, claims *models.JWTClaims, req dto.ExportRequest) (*dto.ExportJobResponse, error) {
	if !req.Format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	classID := ""
	if req.ClassID != nil {
		classID = *req.ClassID
	}
	class, err := s.classes.ResolveClass(ctx, claims, classID)
	if err != nil {
		return nil, err
	}

	job := &models.ExportJob{
		ClassID:   class.ID,
		Format:    req.Format,
		Status:    models.ExportStatusQueued,
		CreatedBy: claims.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		s.logger.Error("create export job", zap.String("class_id", class.ID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: ExportJobType}); err != nil {
		status := models.ExportStatusFailed
		msg := "failed to enqueue job"
		now := s.now().UTC()
		progress := 100
		if updateErr := s.repo.Update(ctx, job.ID, repository.ExportJobUpdate{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); updateErr != nil {
			s.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return nil, appErrors.Internal(err, "failed to enqueue export job")
	}
	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata to its creator, directors and admins.
func (s *ExportJobService) GetStatus(ctx context.Context, id string, claims *models.JWTClaims) (*dto.ExportStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Internal(err, "failed to load export job")
	}
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if job.CreatedBy != claims.UserID && claims.Role != models.RoleDirector && claims.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}

	resp := &dto.ExportStatusResponse{
		ID:         job.ID,
		ClassID:    job.ClassID,
		Format:     job.Format,
		Status:     job.Status,
		Progress:   job.Progress,
		ResultURL:  job.ResultURL,
		FinishedAt: job.FinishedAt,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates the token against the job and loads the stored file.
func (s *ExportJobService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.files.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Internal(err, "failed to load export job")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}

	data, err := s.files.Read(relPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export file expired")
		}
		s.logger.Error("read export file", zap.String("job_id", jobID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to open export file")
	}
	return &ExportDownload{
		Data:        data,
		Filename:    path.Base(relPath),
		ContentType: s.files.ContentType(job.Format),
		ExpiresAt:   expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued or interrupted jobs after a restart.
func (s *ExportJobService) RecoverPendingJobs(ctx context.Context) int {
	pending, err := s.repo.ListUnfinished(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover export jobs", zap.Error(err))
		return 0
	}
	recovered := 0
	for _, job := range pending {
		if job.Status == models.ExportStatusProcessing {
			queued := models.ExportStatusQueued
			reset := 0
			if err := s.repo.Update(ctx, job.ID, repository.ExportJobUpdate{Status: &queued, Progress: &reset}); err != nil {
				s.logger.Warn("failed to reset interrupted export job", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
		}
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: ExportJobType}); err != nil {
			s.logger.Warn("failed to requeue export job", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		recovered++
	}
	return recovered
}

// Cleanup purges stored files older than the result TTL and clears the
// download links of the jobs that produced them.
func (s *ExportJobService) Cleanup(ctx context.Context) {
	removed, err := s.files.Cleanup()
	if err != nil {
		s.logger.Warn("export file cleanup failed", zap.Error(err))
	}
	expired, err := s.repo.ExpireFinishedBefore(ctx, s.now().Add(-s.files.ResultTTL()))
	if err != nil {
		s.logger.Warn("export job expiry failed", zap.Error(err))
	}
	if len(removed) > 0 || expired > 0 {
		s.logger.Info("export cleanup", zap.Int("files_removed", len(removed)), zap.Int64("jobs_expired", expired))
	}
}

// StartCleanup schedules Cleanup with a cron spec such as "@every 1h".
// The returned scheduler must be stopped on shutdown.
func (s *ExportJobService) StartCleanup(spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(zap.NewStdLog(s.logger)))))
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.Cleanup(ctx)
	}); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

type exportClassLookup interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// ExportWorker bridges queue jobs to ExportService.
type ExportWorker struct {
	repo     exportJobStore
	classes  exportClassLookup
	exporter exportRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportWorker constructs a worker.
func NewExportWorker(repo exportJobStore, classes exportClassLookup, exporter exportRenderer, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportWorker{repo: repo, classes: classes, exporter: exporter, logger: logger, now: time.Now}
}

// Handle processes a queue job. A failed attempt puts the job back to QUEUED;
// the queue calls GiveUp once retries are exhausted.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ExportStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.ExportJobUpdate{Status: &processing, Progress: &progress}); err != nil {
		return err
	}

	result, err := w.generate(ctx, record)
	if err != nil {
		queued := models.ExportStatusQueued
		reset := 0
		msg := err.Error()
		if updateErr := w.repo.Update(ctx, job.ID, repository.ExportJobUpdate{
			Status:       &queued,
			Progress:     &reset,
			ErrorMessage: &msg,
		}); updateErr != nil {
			w.logger.Warn("failed to mark export job queued", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return err
	}

	finished := models.ExportStatusFinished
	progress = 100
	now := w.now().UTC()
	noError := ""
	if err := w.repo.Update(ctx, job.ID, repository.ExportJobUpdate{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &result.URL,
		ErrorMessage: &noError,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark export job finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	return nil
}

// GiveUp marks a job FAILED after the queue exhausted its retries.
func (w *ExportWorker) GiveUp(ctx context.Context, job jobs.Job, cause error) {
	failed := models.ExportStatusFailed
	progress := 100
	now := w.now().UTC()
	msg := "export failed"
	if cause != nil {
		msg = cause.Error()
	}
	if err := w.repo.Update(ctx, job.ID, repository.ExportJobUpdate{
		Status:       &failed,
		Progress:     &progress,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (w *ExportWorker) generate(ctx context.Context, record *models.ExportJob) (*ExportResult, error) {
	class, err := w.classes.FindByID(ctx, record.ClassID)
	if err != nil {
		return nil, err
	}
	rendered, err := w.exporter.Render(ctx, *class, record.Format)
	if err != nil {
		return nil, err
	}
	return w.exporter.Store(record.ID, rendered)
}
