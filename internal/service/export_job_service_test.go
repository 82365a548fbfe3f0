package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-internship-api/internal/dto"
	"github.com/noah-isme/sma-internship-api/internal/models"
	"github.com/noah-isme/sma-internship-api/internal/repository"
	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
	"github.com/noah-isme/sma-internship-api/pkg/export"
	"github.com/noah-isme/sma-internship-api/pkg/jobs"
	"github.com/noah-isme/sma-internship-api/pkg/storage"
)

type exportJobRepoStub struct {
	jobs       map[string]*models.ExportJob
	expiredAt  time.Time
	expireHits int64
	updateErr  error
}

func newExportJobRepoStub() *exportJobRepoStub {
	return &exportJobRepoStub{jobs: map[string]*models.ExportJob{}}
}

func (r *exportJobRepoStub) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *exportJobRepoStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (r *exportJobRepoStub) Update(ctx context.Context, id string, params repository.ExportJobUpdate) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	job, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		url := *params.ResultURL
		job.ResultURL = &url
	}
	if params.ErrorMessage != nil {
		msg := *params.ErrorMessage
		job.ErrorMessage = &msg
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *exportJobRepoStub) ListUnfinished(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var out []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusQueued || job.Status == models.ExportStatusProcessing {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (r *exportJobRepoStub) ExpireFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.expiredAt = cutoff
	return r.expireHits, nil
}

type dispatcherStub struct {
	jobs []jobs.Job
	err  error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type reportSourceStub struct {
	err error
}

func (r *reportSourceStub) Report(ctx context.Context, class models.Class) (*models.PreferenceReport, error) {
	if r.err != nil {
		return nil, r.err
	}
	row := models.RosterRow{StudentID: "s1", StudentName: "Sam", StudentNumber: "1001"}
	row.Slots[0] = &models.ReportSlot{Company: "Acme"}
	return &models.PreferenceReport{
		ClassID:      class.ID,
		ClassName:    class.Name,
		GeneratedAt:  time.Date(2024, 3, 2, 8, 5, 9, 0, time.UTC),
		Roster:       []models.RosterRow{row},
		CompanyTally: []models.TallyEntry{{Company: "Acme", Count: 1}},
	}, nil
}

type resolverStub struct{}

func (resolverStub) ResolveClass(ctx context.Context, claims *models.JWTClaims, classID string) (*models.Class, error) {
	if classID == "" || classID == "c1" {
		return &models.Class{ID: "c1", Name: "3A"}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "class is outside your homeroom")
}

type classLookupStub struct{}

func (classLookupStub) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if id == "c1" {
		return &models.Class{ID: "c1", Name: "3A"}, nil
	}
	return nil, sql.ErrNoRows
}

func newTestExportService(t *testing.T, reports reportSource) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	return NewExportService(reports, export.DefaultRegistry(""), store, signer, nil, ExportConfig{APIPrefix: "/api/v1/", ResultTTL: time.Hour}, zap.NewNop())
}

func TestExportServiceRender(t *testing.T) {
	svc := newTestExportService(t, &reportSourceStub{})

	rendered, err := svc.Render(context.Background(), models.Class{ID: "c1", Name: "3A"}, models.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "3A_student_preferences_20240302_080509.csv", rendered.Filename)
	assert.Contains(t, rendered.ContentType, "text/csv")
	assert.Contains(t, string(rendered.Data), "Sam,1001,Acme")

	_, err = svc.Render(context.Background(), models.Class{ID: "c1"}, "odt")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRenderPropagatesReportErrors(t *testing.T) {
	svc := newTestExportService(t, &reportSourceStub{err: appErrors.Clone(appErrors.ErrNotFound, "class not found")})

	_, err := svc.Render(context.Background(), models.Class{ID: "c1"}, models.ExportFormatPDF)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportJobLifecycle(t *testing.T) {
	repo := newExportJobRepoStub()
	queue := &dispatcherStub{}
	exporter := newTestExportService(t, &reportSourceStub{})
	svc := NewExportJobService(repo, resolverStub{}, queue, exporter, zap.NewNop())
	worker := NewExportWorker(repo, classLookupStub{}, exporter, zap.NewNop())
	owner := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	created, err := svc.CreateJob(context.Background(), owner, dto.ExportRequest{Format: models.ExportFormatXLSX})
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, created.Status)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, ExportJobType, queue.jobs[0].Type)

	require.NoError(t, worker.Handle(context.Background(), queue.jobs[0]))

	status, err := svc.GetStatus(context.Background(), created.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.ResultURL)
	assert.True(t, strings.HasPrefix(*status.ResultURL, "/api/v1/exports/"))

	token := strings.TrimPrefix(*status.ResultURL, "/api/v1/exports/")
	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "3A_student_preferences_20240302_080509.xlsx", download.Filename)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", download.ContentType)
	assert.NotEmpty(t, download.Data)

	_, err = svc.ResolveDownload(context.Background(), token+"x")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportJobStatusAccess(t *testing.T) {
	repo := newExportJobRepoStub()
	repo.jobs["j1"] = &models.ExportJob{ID: "j1", CreatedBy: "t1", Status: models.ExportStatusQueued}
	svc := NewExportJobService(repo, resolverStub{}, &dispatcherStub{}, newTestExportService(t, &reportSourceStub{}), zap.NewNop())

	_, err := svc.GetStatus(context.Background(), "j1", &models.JWTClaims{UserID: "t2", Role: models.RoleTeacher})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.GetStatus(context.Background(), "j1", &models.JWTClaims{UserID: "d1", Role: models.RoleDirector})
	assert.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), "missing", &models.JWTClaims{UserID: "d1", Role: models.RoleDirector})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportJobCreateValidation(t *testing.T) {
	repo := newExportJobRepoStub()
	svc := NewExportJobService(repo, resolverStub{}, &dispatcherStub{}, newTestExportService(t, &reportSourceStub{}), zap.NewNop())
	owner := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	_, err := svc.CreateJob(context.Background(), owner, dto.ExportRequest{Format: "odt"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	other := "c9"
	_, err = svc.CreateJob(context.Background(), owner, dto.ExportRequest{ClassID: &other, Format: models.ExportFormatPDF})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.jobs)
}

func TestExportJobEnqueueFailureMarksFailed(t *testing.T) {
	repo := newExportJobRepoStub()
	svc := NewExportJobService(repo, resolverStub{}, &dispatcherStub{err: errors.New("queue closed")}, newTestExportService(t, &reportSourceStub{}), zap.NewNop())

	_, err := svc.CreateJob(context.Background(), &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}, dto.ExportRequest{Format: models.ExportFormatCSV})
	require.Error(t, err)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestExportJobEnqueueFailureLogsFailedUpdate(t *testing.T) {
	repo := newExportJobRepoStub()
	repo.updateErr = errors.New("db down")
	core, logs := observer.New(zapcore.WarnLevel)
	svc := NewExportJobService(repo, resolverStub{}, &dispatcherStub{err: errors.New("queue closed")}, newTestExportService(t, &reportSourceStub{}), zap.New(core))

	_, err := svc.CreateJob(context.Background(), &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}, dto.ExportRequest{Format: models.ExportFormatCSV})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	entries := logs.FilterMessage("failed to mark export job failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "db down", entries[0].ContextMap()["error"])
}

func TestExportWorkerRetryThenGiveUp(t *testing.T) {
	repo := newExportJobRepoStub()
	repo.jobs["j1"] = &models.ExportJob{ID: "j1", ClassID: "gone", Format: models.ExportFormatCSV, Status: models.ExportStatusQueued}
	worker := NewExportWorker(repo, classLookupStub{}, newTestExportService(t, &reportSourceStub{}), zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "j1"})
	require.Error(t, err)
	assert.Equal(t, models.ExportStatusQueued, repo.jobs["j1"].Status)
	require.NotNil(t, repo.jobs["j1"].ErrorMessage)

	worker.GiveUp(context.Background(), jobs.Job{ID: "j1"}, err)
	assert.Equal(t, models.ExportStatusFailed, repo.jobs["j1"].Status)
	assert.NotNil(t, repo.jobs["j1"].FinishedAt)
}

func TestRecoverPendingJobs(t *testing.T) {
	repo := newExportJobRepoStub()
	repo.jobs["q"] = &models.ExportJob{ID: "q", Status: models.ExportStatusQueued}
	repo.jobs["p"] = &models.ExportJob{ID: "p", Status: models.ExportStatusProcessing, Progress: 10}
	repo.jobs["f"] = &models.ExportJob{ID: "f", Status: models.ExportStatusFinished}
	queue := &dispatcherStub{}
	svc := NewExportJobService(repo, resolverStub{}, queue, newTestExportService(t, &reportSourceStub{}), zap.NewNop())

	assert.Equal(t, 2, svc.RecoverPendingJobs(context.Background()))
	assert.Len(t, queue.jobs, 2)
	assert.Equal(t, models.ExportStatusQueued, repo.jobs["p"].Status)
	assert.Equal(t, 0, repo.jobs["p"].Progress)
}

func TestExportCleanupExpiresJobs(t *testing.T) {
	repo := newExportJobRepoStub()
	svc := NewExportJobService(repo, resolverStub{}, &dispatcherStub{}, newTestExportService(t, &reportSourceStub{}), zap.NewNop())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	svc.Cleanup(context.Background())
	assert.Equal(t, now.Add(-time.Hour), repo.expiredAt)
}

func TestStartCleanupRejectsBadSpec(t *testing.T) {
	svc := NewExportJobService(newExportJobRepoStub(), resolverStub{}, &dispatcherStub{}, newTestExportService(t, &reportSourceStub{}), zap.NewNop())

	_, err := svc.StartCleanup("not a spec")
	assert.Error(t, err)

	c, err := svc.StartCleanup("@every 1h")
	require.NoError(t, err)
	c.Stop()
}
