package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-internship-api/internal/dto"
	"github.com/noah-isme/sma-internship-api/internal/models"
	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
)

type notificationRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	Create(ctx context.Context, notification *models.Notification) error
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, id string) error
}

type userLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// NotificationService serves the per-user inbox.
type NotificationService struct {
	repo      notificationRepository
	users     userLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationRepository, users userLookup, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, users: users, validator: validate, logger: logger}
}

// List returns the inbox newest first together with the unread count.
func (s *NotificationService) List(ctx context.Context, userID string) ([]models.Notification, int, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("list notifications", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, appErrors.Internal(err, "failed to list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		s.logger.Error("count unread notifications", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, appErrors.Internal(err, "failed to count notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, unread, nil
}

// MarkRead flags a single notification of the user.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.repo.MarkRead(ctx, userID, id); err != nil {
		return s.mapError(err, "mark notification read", id)
	}
	return nil
}

// MarkAllRead flags every unread notification of the user.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		s.logger.Error("mark all notifications read", zap.String("user_id", userID), zap.Error(err))
		return 0, appErrors.Internal(err, "failed to update notifications")
	}
	return updated, nil
}

// Delete removes a notification of the user.
func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return s.mapError(err, "delete notification", id)
	}
	return nil
}

// CreateResumeRejection sends a system notice telling a student their resume
// was returned.
func (s *NotificationService) CreateResumeRejection(ctx context.Context, req dto.ResumeRejectionRequest) (*models.Notification, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "student_id and reason are required")
	}

	if s.users != nil {
		exists, err := s.users.Exists(ctx, req.StudentID)
		if err != nil {
			s.logger.Error("lookup student", zap.String("student_id", req.StudentID), zap.Error(err))
			return nil, appErrors.Internal(err, "failed to lookup student")
		}
		if !exists {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
	}

	teacher := strings.TrimSpace(req.TeacherName)
	if teacher == "" {
		teacher = "Teacher"
	}
	notification := &models.Notification{
		UserID: req.StudentID,
		Title:  "Resume returned",
		Message: fmt.Sprintf("Your resume was returned by %s.\nReason: %s\nPlease revise it and upload again.",
			html.EscapeString(teacher), html.EscapeString(req.Reason)),
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		s.logger.Error("create resume rejection", zap.String("student_id", req.StudentID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to create notification")
	}
	return notification, nil
}

func (s *NotificationService) mapError(err error, action, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	s.logger.Error(action, zap.String("notification_id", id), zap.Error(err))
	return appErrors.Internal(err, "failed to update notification")
}
