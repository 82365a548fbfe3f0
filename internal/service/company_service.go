package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-internship-api/internal/dto"
	"github.com/noah-isme/sma-internship-api/internal/models"
	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
)

const reviewNoticeLink = "/companies/mine"

type companyRepository interface {
	CreateMany(ctx context.Context, companies []models.CompanyWithJobs) (int, error)
	GetByID(ctx context.Context, id string) (*models.Company, error)
	Status(ctx context.Context, id string) (*models.CompanyReviewStatus, error)
	ListPending(ctx context.Context) ([]models.Company, error)
	ListReviewed(ctx context.Context) ([]models.Company, error)
	ListApproved(ctx context.Context) ([]models.Company, error)
	ListByUploader(ctx context.Context, userID string) ([]models.Company, error)
	JobsByCompany(ctx context.Context, companyIDs []string) (map[string][]models.InternshipJob, error)
	Review(ctx context.Context, id string, decision models.ReviewDecision, buildNotice func(models.Company) *models.Notification) (*models.Company, bool, error)
	Delete(ctx context.Context, id string) error
}

type spreadsheetParser interface {
	Parse(r io.Reader) ([]models.Company, int, error)
}

// CompanyService handles company intake, review and lookups.
type CompanyService struct {
	repo       companyRepository
	importer   spreadsheetParser
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	catalogTTL time.Duration
	now        func() time.Time
}

// NewCompanyService constructs a CompanyService.
func NewCompanyService(repo companyRepository, importer spreadsheetParser, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, catalogTTL time.Duration) *CompanyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if importer == nil {
		importer = NewCompanyImporter()
	}
	return &CompanyService{
		repo:       repo,
		importer:   importer,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		catalogTTL: catalogTTL,
		now:        time.Now,
	}
}

// Create stores a single company submitted through the manual form.
func (s *CompanyService) Create(ctx context.Context, req dto.CreateCompanyRequest, uploader *models.JWTClaims) (*models.CompanyWithJobs, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "company_name is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	company := models.CompanyWithJobs{
		Company: s.newCompany(uploader, models.Company{
			Name:          req.Name,
			Description:   strings.TrimSpace(req.Description),
			Location:      strings.TrimSpace(req.Location),
			ContactPerson: strings.TrimSpace(req.ContactPerson),
			ContactTitle:  strings.TrimSpace(req.ContactTitle),
			ContactEmail:  strings.TrimSpace(req.ContactEmail),
			ContactPhone:  strings.TrimSpace(req.ContactPhone),
		}),
		Jobs: []models.InternshipJob{},
	}
	for _, job := range req.Jobs {
		if strings.TrimSpace(job.Title) == "" {
			continue
		}
		company.Jobs = append(company.Jobs, models.InternshipJob{
			Title:       strings.TrimSpace(job.Title),
			Description: job.Description,
			Department:  job.Department,
			Period:      job.Period,
			WorkTime:    job.WorkTime,
			Slots:       job.Slots,
			Remark:      job.Remark,
		})
	}

	batch := []models.CompanyWithJobs{company}
	if _, err := s.repo.CreateMany(ctx, batch); err != nil {
		s.logger.Error("create company", zap.String("company_name", req.Name), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to save company")
	}
	return &batch[0], nil
}

// BulkCreate stores a JSON batch of companies in one transaction.
func (s *CompanyService) BulkCreate(ctx context.Context, req dto.BulkCreateCompaniesRequest, uploader *models.JWTClaims) (*dto.CompanyImportResult, error) {
	if len(req.Companies) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "companies must be a non-empty list")
	}

	result := &dto.CompanyImportResult{}
	batch := make([]models.CompanyWithJobs, 0, len(req.Companies))
	for _, entry := range req.Companies {
		name := pickString(entry, "company_name", "公司名稱")
		if name == "" {
			result.Skipped++
			continue
		}
		batch = append(batch, models.CompanyWithJobs{
			Company: s.newCompany(uploader, models.Company{
				Name:          name,
				Description:   pickString(entry, "company_intro", "description", "公司簡介"),
				Location:      pickString(entry, "company_address", "location", "公司地址"),
				ContactPerson: pickString(entry, "contact_name", "contact_person", "聯絡人姓名"),
				ContactTitle:  pickString(entry, "contact_title", "聯絡人職稱"),
				ContactEmail:  pickString(entry, "contact_email", "聯絡信箱"),
				ContactPhone:  pickString(entry, "contact_phone", "聯絡電話"),
			}),
			Jobs: bulkJobs(entry),
		})
	}
	if len(batch) == 0 {
		return result, nil
	}

	jobs, err := s.repo.CreateMany(ctx, batch)
	if err != nil {
		s.logger.Error("bulk create companies", zap.Int("companies", len(batch)), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to save companies")
	}
	result.Companies = len(batch)
	result.Jobs = jobs
	return result, nil
}

// ImportSpreadsheet stores the companies listed in an uploaded XLSX workbook.
func (s *CompanyService) ImportSpreadsheet(ctx context.Context, r io.Reader, uploader *models.JWTClaims) (*dto.CompanyImportResult, error) {
	companies, skipped, err := s.importer.Parse(r)
	if err != nil {
		return nil, err
	}
	result := &dto.CompanyImportResult{Skipped: skipped}
	if len(companies) == 0 {
		return result, nil
	}

	batch := make([]models.CompanyWithJobs, len(companies))
	for i, company := range companies {
		batch[i] = models.CompanyWithJobs{Company: s.newCompany(uploader, company)}
	}
	if _, err := s.repo.CreateMany(ctx, batch); err != nil {
		s.logger.Error("import companies", zap.Int("companies", len(batch)), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to save companies")
	}
	result.Companies = len(batch)
	return result, nil
}

// Review approves or rejects a pending company exactly once and notifies
// the uploader in the same transaction.
func (s *CompanyService) Review(ctx context.Context, id string, req dto.ReviewCompanyRequest, reviewer *models.JWTClaims) (*models.Company, error) {
	if req.Status != models.CompanyStatusApproved && req.Status != models.CompanyStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be approved or rejected")
	}
	decision := models.ReviewDecision{
		Status:     req.Status,
		ReviewerID: reviewer.UserID,
		ReviewedAt: s.now().UTC(),
	}
	if req.Status == models.CompanyStatusRejected {
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "reason is required when rejecting")
		}
		decision.Reason = &reason
	}

	company, applied, err := s.repo.Review(ctx, id, decision, reviewNotice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "company not found")
		}
		s.logger.Error("review company", zap.String("company_id", id), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to review company")
	}
	if !applied {
		return nil, appErrors.WithDetails(appErrors.ErrAlreadyReviewed,
			fmt.Sprintf("company already reviewed (status=%s)", company.Status),
			map[string]interface{}{"status": company.Status})
	}

	s.metrics.RecordReview(string(company.Status))
	_ = s.cache.Invalidate(ctx, approvedCompaniesCacheKey)
	return company, nil
}

func reviewNotice(company models.Company) *models.Notification {
	if company.UploadedByUserID == "" {
		return nil
	}
	link := reviewNoticeLink
	message := fmt.Sprintf("Your company %q has been approved.", company.Name)
	if company.Status == models.CompanyStatusRejected {
		message = fmt.Sprintf("Your company %q was rejected. Reason: %s", company.Name, deref(company.RejectReason))
	}
	return &models.Notification{
		UserID:  company.UploadedByUserID,
		Title:   "Company review result",
		Message: message,
		LinkURL: &link,
	}
}

// ListPending returns companies awaiting review, newest first.
func (s *CompanyService) ListPending(ctx context.Context) ([]models.Company, error) {
	companies, err := s.repo.ListPending(ctx)
	if err != nil {
		s.logger.Error("list pending companies", zap.Error(err))
		return nil, appErrors.Internal(err, "failed to list companies")
	}
	return companies, nil
}

// ListReviewed returns reviewed companies, most recently reviewed first.
func (s *CompanyService) ListReviewed(ctx context.Context) ([]models.Company, error) {
	companies, err := s.repo.ListReviewed(ctx)
	if err != nil {
		s.logger.Error("list reviewed companies", zap.Error(err))
		return nil, appErrors.Internal(err, "failed to list companies")
	}
	return companies, nil
}

// ListApproved returns the approved catalog offered to students.
func (s *CompanyService) ListApproved(ctx context.Context) ([]models.CompanyWithJobs, error) {
	return loadApprovedCatalog(ctx, s.repo, s.cache, s.catalogTTL, s.logger)
}

// Get returns a company with its jobs.
func (s *CompanyService) Get(ctx context.Context, id string) (*models.CompanyWithJobs, error) {
	company, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	withJobs, err := attachJobs(ctx, s.repo, []models.Company{*company})
	if err != nil {
		s.logger.Error("load company jobs", zap.String("company_id", id), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to load company jobs")
	}
	return &withJobs[0], nil
}

// ListMine returns the caller's submissions with the first job flattened.
func (s *CompanyService) ListMine(ctx context.Context, userID string) ([]models.CompanySummary, error) {
	companies, err := s.repo.ListByUploader(ctx, userID)
	if err != nil {
		s.logger.Error("list uploader companies", zap.String("user_id", userID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to list companies")
	}
	withJobs, err := attachJobs(ctx, s.repo, companies)
	if err != nil {
		s.logger.Error("load uploader company jobs", zap.String("user_id", userID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to load company jobs")
	}

	summaries := make([]models.CompanySummary, len(withJobs))
	for i, company := range withJobs {
		summary := models.CompanySummary{CompanyWithJobs: company}
		if len(company.Jobs) > 0 {
			first := company.Jobs[0]
			summary.JobTitle = first.Title
			summary.JobDepartment = first.Department
			summary.JobPeriod = first.Period
			summary.JobWorkTime = first.WorkTime
			summary.JobSlots = first.Slots
		}
		summaries[i] = summary
	}
	return summaries, nil
}

// Status returns the review state of a company.
func (s *CompanyService) Status(ctx context.Context, id string) (*models.CompanyReviewStatus, error) {
	status, err := s.repo.Status(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "company not found")
		}
		s.logger.Error("load company status", zap.String("company_id", id), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to load company status")
	}
	return status, nil
}

// Delete removes a company and its jobs. Allowed for the uploader, directors
// and admins.
func (s *CompanyService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	company, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if company.UploadedByUserID != actor.UserID && actor.Role != models.RoleDirector && actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only the uploader can delete this company")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "company not found")
		}
		s.logger.Error("delete company", zap.String("company_id", id), zap.Error(err))
		return appErrors.Internal(err, "failed to delete company")
	}
	if company.Status == models.CompanyStatusApproved {
		_ = s.cache.Invalidate(ctx, approvedCompaniesCacheKey)
	}
	return nil
}

// DownloadDetail renders the uploader's company and its jobs as a workbook.
func (s *CompanyService) DownloadDetail(ctx context.Context, id string, actor *models.JWTClaims) (*RenderedExport, error) {
	company, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if company.UploadedByUserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "company not found")
	}

	data, err := companyWorkbook(company)
	if err != nil {
		s.logger.Error("render company detail", zap.String("company_id", id), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to render company detail")
	}
	return &RenderedExport{
		Filename:    filenameSafe(company.Name) + "_details.xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Format:      models.ExportFormatXLSX,
		Data:        data,
	}, nil
}

func (s *CompanyService) find(ctx context.Context, id string) (*models.Company, error) {
	company, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "company not found")
		}
		s.logger.Error("load company", zap.String("company_id", id), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to load company")
	}
	return company, nil
}

func (s *CompanyService) newCompany(uploader *models.JWTClaims, c models.Company) models.Company {
	c.Status = models.CompanyStatusPending
	c.SubmittedAt = s.now().UTC()
	if uploader != nil {
		c.UploadedByUserID = uploader.UserID
		c.UploadedByRole = uploader.Role
	}
	return c
}

func bulkJobs(entry map[string]interface{}) []models.InternshipJob {
	var raw []map[string]interface{}
	if list, ok := entry["internship_jobs"].([]interface{}); ok {
		for _, item := range list {
			if job, ok := item.(map[string]interface{}); ok {
				raw = append(raw, job)
			}
		}
	}
	if len(raw) == 0 {
		raw = []map[string]interface{}{{
			"title":       entry["internship_unit"],
			"description": entry["internship_content"],
			"department":  entry["department"],
			"period":      entry["internship_period"],
			"work_time":   entry["internship_time"],
			"slots":       entry["internship_quota"],
			"remark":      entry["remark"],
		}}
	}

	jobs := make([]models.InternshipJob, 0, len(raw))
	for _, job := range raw {
		title := pickString(job, "title")
		if title == "" {
			continue
		}
		jobs = append(jobs, models.InternshipJob{
			Title:       title,
			Description: pickString(job, "description"),
			Department:  pickString(job, "department"),
			Period:      pickString(job, "period"),
			WorkTime:    pickString(job, "work_time"),
			Slots:       parseSlots(job["slots"]),
			Remark:      pickString(job, "remark"),
		})
	}
	return jobs
}

// pickString returns the first non-empty value among keys.
func pickString(entry map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch v := entry[key].(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

// parseSlots reads a quota from JSON, clamped to the int4 column range.
// Negative, malformed or NaN values become 0.
func parseSlots(value interface{}) int {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || v < 0 {
			return 0
		}
		if v > math.MaxInt32 {
			return math.MaxInt32
		}
		return int(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0
		}
		if n < 0 {
			return 0
		}
		if n > math.MaxInt32 {
			return math.MaxInt32
		}
		return int(n)
	}
	return 0
}

const detailTimeLayout = "2006-01-02 15:04:05"

func companyWorkbook(company *models.CompanyWithJobs) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", "Company"); err != nil {
		return nil, err
	}
	reviewedAt := ""
	if company.ReviewedAt != nil {
		reviewedAt = company.ReviewedAt.Format(detailTimeLayout)
	}
	rows := [][]interface{}{
		{"Field", "Value"},
		{"Company Name", company.Name},
		{"Description", company.Description},
		{"Location", company.Location},
		{"Contact Person", company.ContactPerson},
		{"Contact Title", company.ContactTitle},
		{"Contact Email", company.ContactEmail},
		{"Contact Phone", company.ContactPhone},
		{"Submitted At", company.SubmittedAt.Format(detailTimeLayout)},
		{"Reviewed At", reviewedAt},
		{"Status", company.Status.Label()},
	}
	if company.RejectReason != nil {
		rows = append(rows, []interface{}{"Reject Reason", *company.RejectReason})
	}
	if err := writeRows(f, "Company", rows); err != nil {
		return nil, err
	}

	if len(company.Jobs) > 0 {
		if _, err := f.NewSheet("Jobs"); err != nil {
			return nil, err
		}
		jobRows := [][]interface{}{{"Title", "Description", "Department", "Period", "Work Time", "Slots", "Remark"}}
		for _, job := range company.Jobs {
			jobRows = append(jobRows, []interface{}{job.Title, job.Description, job.Department, job.Period, job.WorkTime, job.Slots, job.Remark})
		}
		if err := writeRows(f, "Jobs", jobRows); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

var filenameReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")

func filenameSafe(name string) string {
	name = strings.TrimSpace(filenameReplacer.Replace(name))
	if name == "" {
		return "company"
	}
	return name
}
