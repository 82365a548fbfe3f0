package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-internship-api/internal/dto"
	"github.com/noah-isme/sma-internship-api/internal/models"
	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
)

type preferenceRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Preference, error)
	Replace(ctx context.Context, studentID string, prefs []models.Preference) error
	ReportRows(ctx context.Context, classID string) ([]models.PreferenceReportRow, error)
}

type approvedCompanyRepository interface {
	ListApproved(ctx context.Context) ([]models.Company, error)
	JobsByCompany(ctx context.Context, companyIDs []string) (map[string][]models.InternshipJob, error)
}

type classRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindHomeroomClass(ctx context.Context, teacherID string) (*models.Class, error)
}

// PreferenceConfig tunes submission validation and report timestamps.
type PreferenceConfig struct {
	RejectDuplicates bool
	Location         *time.Location
	CatalogTTL       time.Duration
}

// PreferenceService covers student submissions and class reports.
type PreferenceService struct {
	prefs     preferenceRepository
	companies approvedCompanyRepository
	classes   classRepository
	cache     *CacheService
	logger    *zap.Logger
	config    PreferenceConfig
	now       func() time.Time
}

// NewPreferenceService constructs a PreferenceService.
func NewPreferenceService(prefs preferenceRepository, companies approvedCompanyRepository, classes classRepository, cache *CacheService, logger *zap.Logger, config PreferenceConfig) *PreferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &PreferenceService{
		prefs:     prefs,
		companies: companies,
		classes:   classes,
		cache:     cache,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// Form returns the approved catalog and the student's current selections.
func (s *PreferenceService) Form(ctx context.Context, studentID string) (*models.PreferenceForm, error) {
	catalog, err := loadApprovedCatalog(ctx, s.companies, s.cache, s.config.CatalogTTL, s.logger)
	if err != nil {
		return nil, err
	}

	prefs, err := s.prefs.ListByStudent(ctx, studentID)
	if err != nil {
		s.logger.Error("list student preferences", zap.String("student_id", studentID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to load preferences")
	}

	form := &models.PreferenceForm{Companies: catalog}
	for _, pref := range prefs {
		if pref.PreferenceOrder < 1 || pref.PreferenceOrder > models.MaxPreferences {
			continue
		}
		companyID := pref.CompanyID
		form.Selected[pref.PreferenceOrder-1] = &companyID
		form.Jobs[pref.PreferenceOrder-1] = pref.JobID
	}
	return form, nil
}

// Submit replaces the student's preference set with the provided entries.
func (s *PreferenceService) Submit(ctx context.Context, studentID string, req dto.SubmitPreferencesRequest) (*dto.PreferenceSubmitResponse, error) {
	var slots [models.MaxPreferences]*models.PreferenceEntry
	for i := range req.Preferences {
		entry := req.Preferences[i]
		if entry.Rank < 1 || entry.Rank > models.MaxPreferences {
			continue
		}
		if entry.CompanyID == "" {
			slots[entry.Rank-1] = nil
			continue
		}
		if entry.JobID != nil && *entry.JobID == "" {
			entry.JobID = nil
		}
		slots[entry.Rank-1] = &entry
	}

	submittedAt := s.now().UTC()
	seen := make(map[string]int)
	prefs := make([]models.Preference, 0, models.MaxPreferences)
	for i, entry := range slots {
		if entry == nil {
			continue
		}
		if s.config.RejectDuplicates {
			if rank, ok := seen[entry.CompanyID]; ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("company selected for both rank %d and rank %d", rank, i+1))
			}
			seen[entry.CompanyID] = i + 1
		}
		prefs = append(prefs, models.Preference{
			ID:              uuid.NewString(),
			StudentID:       studentID,
			PreferenceOrder: i + 1,
			CompanyID:       entry.CompanyID,
			JobID:           entry.JobID,
			SubmittedAt:     submittedAt,
		})
	}

	if err := s.prefs.Replace(ctx, studentID, prefs); err != nil {
		s.logger.Error("replace student preferences", zap.String("student_id", studentID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to save preferences")
	}

	message := "preferences submitted"
	if len(prefs) == 0 {
		message = "preferences cleared"
	}
	return &dto.PreferenceSubmitResponse{Message: message, Preferences: prefs}, nil
}

// ResolveClass determines which class a staff member may report on.
// Teachers are bound to their homeroom class; directors and admins may pick
// any class and otherwise fall back to their own homeroom.
func (s *PreferenceService) ResolveClass(ctx context.Context, claims *models.JWTClaims, classID string) (*models.Class, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}

	switch claims.Role {
	case models.RoleTeacher:
		class, err := s.classes.FindHomeroomClass(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "not a homeroom teacher")
			}
			return nil, s.classLookupFailed(err)
		}
		if classID != "" && classID != class.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "class is outside your homeroom")
		}
		return class, nil
	case models.RoleDirector, models.RoleAdmin:
		if classID != "" {
			class, err := s.classes.FindByID(ctx, classID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
				}
				return nil, s.classLookupFailed(err)
			}
			return class, nil
		}
		class, err := s.classes.FindHomeroomClass(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "classId is required")
			}
			return nil, s.classLookupFailed(err)
		}
		return class, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot view class preferences")
	}
}

// Report builds the roster and tallies for one class.
func (s *PreferenceService) Report(ctx context.Context, class models.Class) (*models.PreferenceReport, error) {
	rows, err := s.prefs.ReportRows(ctx, class.ID)
	if err != nil {
		s.logger.Error("load preference report rows", zap.String("class_id", class.ID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to load class preferences")
	}
	return BuildPreferenceReport(class, rows, s.now().In(s.config.Location)), nil
}

// ReviewPreferences resolves the caller's class and returns its report.
func (s *PreferenceService) ReviewPreferences(ctx context.Context, claims *models.JWTClaims, classID string) (*models.PreferenceReport, error) {
	class, err := s.ResolveClass(ctx, claims, classID)
	if err != nil {
		return nil, err
	}
	return s.Report(ctx, *class)
}

func (s *PreferenceService) classLookupFailed(err error) error {
	s.logger.Error("resolve report class", zap.Error(err))
	return appErrors.Internal(err, "failed to resolve class")
}

// loadApprovedCatalog returns approved companies with their jobs, served from
// cache when possible.
func loadApprovedCatalog(ctx context.Context, repo approvedCompanyRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) ([]models.CompanyWithJobs, error) {
	return cacheAside(ctx, cache, approvedCompaniesCacheKey, ttl, func(ctx context.Context) ([]models.CompanyWithJobs, error) {
		companies, err := repo.ListApproved(ctx)
		if err != nil {
			logger.Error("list approved companies", zap.Error(err))
			return nil, appErrors.Internal(err, "failed to load companies")
		}
		catalog, err := attachJobs(ctx, repo, companies)
		if err != nil {
			logger.Error("load approved company jobs", zap.Error(err))
			return nil, appErrors.Internal(err, "failed to load company jobs")
		}
		return catalog, nil
	})
}

type jobLoader interface {
	JobsByCompany(ctx context.Context, companyIDs []string) (map[string][]models.InternshipJob, error)
}

func attachJobs(ctx context.Context, repo jobLoader, companies []models.Company) ([]models.CompanyWithJobs, error) {
	out := make([]models.CompanyWithJobs, len(companies))
	if len(companies) == 0 {
		return out, nil
	}
	ids := make([]string, len(companies))
	for i, company := range companies {
		ids[i] = company.ID
	}
	jobs, err := repo.JobsByCompany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i, company := range companies {
		list := jobs[company.ID]
		if list == nil {
			list = []models.InternshipJob{}
		}
		out[i] = models.CompanyWithJobs{Company: company, Jobs: list}
	}
	return out, nil
}
