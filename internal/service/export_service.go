package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-internship-api/internal/models"
	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
	"github.com/noah-isme/sma-internship-api/pkg/export"
	"github.com/noah-isme/sma-internship-api/pkg/storage"
)

type reportSource interface {
	Report(ctx context.Context, class models.Class) (*models.PreferenceReport, error)
}

type fileStorage interface {
	Save(relPath string, data []byte) (string, error)
	Read(relPath string) ([]byte, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// RenderedExport is a rendered document ready to be streamed or stored.
type RenderedExport struct {
	Filename    string
	ContentType string
	Format      models.ExportFormat
	Data        []byte
}

// ExportResult captures stored export metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	ExpiresAt    time.Time
}

// ExportService renders class preference reports and persists rendered files.
type ExportService struct {
	reports  reportSource
	registry *export.Registry
	storage  fileStorage
	signer   *storage.SignedURLSigner
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(reports reportSource, registry *export.Registry, store fileStorage, signer *storage.SignedURLSigner, metrics *MetricsService, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = export.DefaultRegistry("")
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		reports:  reports,
		registry: registry,
		storage:  store,
		signer:   signer,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// Render builds the class report and serialises it in the requested format.
func (s *ExportService) Render(ctx context.Context, class models.Class, format models.ExportFormat) (*RenderedExport, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	renderer, err := s.registry.Get(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	start := time.Now()
	report, err := s.reports.Report(ctx, class)
	if err != nil {
		s.metrics.RecordExport(string(format), err, time.Since(start))
		return nil, err
	}

	data, err := renderer.Render(report)
	s.metrics.RecordExport(string(format), err, time.Since(start))
	if err != nil {
		s.logger.Error("render preference report", zap.String("class_id", class.ID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to render report")
	}

	return &RenderedExport{
		Filename:    export.Filename(class.Name, format, report.GeneratedAt),
		ContentType: renderer.ContentType(),
		Format:      format,
		Data:        data,
	}, nil
}

// Store writes a rendered export under the job's directory and signs a download token.
func (s *ExportService) Store(jobID string, rendered *RenderedExport) (*ExportResult, error) {
	if rendered == nil {
		return nil, fmt.Errorf("rendered export is nil")
	}
	relPath, err := s.storage.Save(path.Join(jobID, rendered.Filename), rendered.Data)
	if err != nil {
		return nil, fmt.Errorf("store export: %w", err)
	}
	token, expiresAt, err := s.signer.Generate(jobID, relPath)
	if err != nil {
		return nil, fmt.Errorf("sign export: %w", err)
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          s.downloadURL(token),
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates a download token.
func (s *ExportService) ParseToken(token string, allowExpired bool) (string, string, time.Time, error) {
	return s.signer.Parse(token, allowExpired)
}

// Read loads a stored export.
func (s *ExportService) Read(relPath string) ([]byte, error) {
	return s.storage.Read(relPath)
}

// ContentType returns the MIME type for format.
func (s *ExportService) ContentType(format models.ExportFormat) string {
	renderer, err := s.registry.Get(format)
	if err != nil {
		return "application/octet-stream"
	}
	return renderer.ContentType()
}

// Cleanup removes stored exports older than the result TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

// ResultTTL is how long stored exports stay downloadable.
func (s *ExportService) ResultTTL() time.Duration {
	return s.cfg.ResultTTL
}

func (s *ExportService) downloadURL(token string) string {
	return strings.TrimRight(s.cfg.APIPrefix, "/") + "/exports/" + token
}
