package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-internship-api/internal/dto"
	"github.com/noah-isme/sma-internship-api/internal/models"
	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
)

type announcementRepository interface {
	ListActive(ctx context.Context, now time.Time) ([]models.Announcement, error)
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement, buildNotice func(*models.Announcement) models.BroadcastNotice) (int64, error)
	Update(ctx context.Context, announcement *models.Announcement, buildNotice func(*models.Announcement) models.BroadcastNotice) (int64, error)
	Delete(ctx context.Context, id string) error
}

// AnnouncementConfig shapes broadcast notifications.
type AnnouncementConfig struct {
	PreviewLength int
	LinkPrefix    string
}

// AnnouncementService handles announcement workflows.
type AnnouncementService struct {
	repo      announcementRepository
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    AnnouncementConfig
	now       func() time.Time
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config AnnouncementConfig) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.PreviewLength <= 0 {
		config.PreviewLength = 150
	}
	if config.LinkPrefix == "" {
		config.LinkPrefix = "/announcements"
	}
	return &AnnouncementService{repo: repo, metrics: metrics, validator: validate, logger: logger, config: config, now: time.Now}
}

// ListActive returns published announcements whose window contains now.
func (s *AnnouncementService) ListActive(ctx context.Context) ([]models.Announcement, error) {
	rows, err := s.repo.ListActive(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error("list active announcements", zap.Error(err))
		return nil, appErrors.Internal(err, "failed to list announcements")
	}
	for i := range rows {
		rows[i].LinkURL = s.link(rows[i].ID)
	}
	return rows, nil
}

// List returns every announcement with pagination for the management view.
func (s *AnnouncementService) List(ctx context.Context, query dto.AnnouncementListQuery) ([]models.Announcement, *models.Pagination, error) {
	filter := models.AnnouncementFilter{Page: query.Page, PageSize: query.PageSize}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("list announcements", zap.Error(err))
		return nil, nil, appErrors.Internal(err, "failed to list announcements")
	}
	for i := range rows {
		rows[i].LinkURL = s.link(rows[i].ID)
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// Get returns an announcement by id.
func (s *AnnouncementService) Get(ctx context.Context, id string) (*models.Announcement, error) {
	ann, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		s.logger.Error("get announcement", zap.String("announcement_id", id), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to get announcement")
	}
	ann.LinkURL = s.link(ann.ID)
	return ann, nil
}

// Create stores an announcement and, when published, notifies every user.
func (s *AnnouncementService) Create(ctx context.Context, req dto.AnnouncementRequest, authorID string) (*models.Announcement, int64, error) {
	if err := s.validate(req); err != nil {
		return nil, 0, err
	}
	ann := &models.Announcement{
		Title:       strings.TrimSpace(req.Title),
		Content:     req.Content,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		IsPublished: req.IsPublished,
		CreatedBy:   authorID,
	}
	sent, err := s.repo.Create(ctx, ann, s.broadcast)
	if err != nil {
		s.logger.Error("create announcement", zap.Error(err))
		return nil, 0, appErrors.Internal(err, "failed to create announcement")
	}
	s.metrics.RecordFanout(sent)
	ann.LinkURL = s.link(ann.ID)
	return ann, sent, nil
}

// Update modifies an announcement, notifying every user again when the
// saved version is published.
func (s *AnnouncementService) Update(ctx context.Context, id string, req dto.AnnouncementRequest) (*models.Announcement, int64, error) {
	if err := s.validate(req); err != nil {
		return nil, 0, err
	}
	ann, err := s.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	ann.Title = strings.TrimSpace(req.Title)
	ann.Content = req.Content
	ann.StartTime = req.StartTime
	ann.EndTime = req.EndTime
	ann.IsPublished = req.IsPublished

	sent, err := s.repo.Update(ctx, ann, s.broadcast)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		s.logger.Error("update announcement", zap.String("announcement_id", id), zap.Error(err))
		return nil, 0, appErrors.Internal(err, "failed to update announcement")
	}
	s.metrics.RecordFanout(sent)
	return ann, sent, nil
}

// Delete removes an announcement.
func (s *AnnouncementService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		s.logger.Error("delete announcement", zap.String("announcement_id", id), zap.Error(err))
		return appErrors.Internal(err, "failed to delete announcement")
	}
	return nil
}

func (s *AnnouncementService) validate(req dto.AnnouncementRequest) error {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "title and content are required")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if req.StartTime != nil && req.EndTime != nil && req.EndTime.Before(*req.StartTime) {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must not precede start_time")
	}
	return nil
}

func (s *AnnouncementService) broadcast(ann *models.Announcement) models.BroadcastNotice {
	return models.BroadcastNotice{
		Title:   "New announcement: " + ann.Title,
		Message: Preview(ann.Content, s.config.PreviewLength),
		LinkURL: s.link(ann.ID),
	}
}

func (s *AnnouncementService) link(id string) string {
	return strings.TrimRight(s.config.LinkPrefix, "/") + "/" + id
}

// Preview truncates content to limit runes, appending "..." only when
// something was cut.
func Preview(content string, limit int) string {
	runes := []rune(content)
	if limit <= 0 || len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}
