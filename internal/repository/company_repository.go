package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-internship-api/internal/models"
	"github.com/noah-isme/sma-internship-api/pkg/database"
)

const companyColumns = `c.id, c.company_name, c.description, c.location, c.contact_person, c.contact_title, c.contact_email, c.contact_phone,
c.uploaded_by_user_id, c.uploaded_by_role, c.status, c.reject_reason, c.submitted_at, c.reviewed_at, c.reviewed_by`

// CompanyRepository persists internship companies and their jobs.
type CompanyRepository struct {
	db *sqlx.DB
}

// NewCompanyRepository constructs a CompanyRepository.
func NewCompanyRepository(db *sqlx.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// CreateMany inserts companies with their jobs in one transaction and returns
// the number of jobs written. IDs and timestamps are filled in place.
func (r *CompanyRepository) CreateMany(ctx context.Context, companies []models.CompanyWithJobs) (int, error) {
	jobCount := 0
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const insertCompany = `INSERT INTO internship_companies (id, company_name, description, location, contact_person, contact_title, contact_email, contact_phone, uploaded_by_user_id, uploaded_by_role, status, submitted_at)
VALUES (:id, :company_name, :description, :location, :contact_person, :contact_title, :contact_email, :contact_phone, :uploaded_by_user_id, :uploaded_by_role, :status, :submitted_at)`
		const insertJob = `INSERT INTO internship_jobs (id, company_id, title, description, department, period, work_time, slots, remark)
VALUES (:id, :company_id, :title, :description, :department, :period, :work_time, :slots, :remark)`

		now := time.Now().UTC()
		for i := range companies {
			company := &companies[i]
			if company.ID == "" {
				company.ID = uuid.NewString()
			}
			if company.SubmittedAt.IsZero() {
				company.SubmittedAt = now
			}
			if company.Status == "" {
				company.Status = models.CompanyStatusPending
			}
			if _, err := tx.NamedExecContext(ctx, insertCompany, &company.Company); err != nil {
				return fmt.Errorf("insert company: %w", err)
			}
			if len(company.Jobs) == 0 {
				continue
			}
			for j := range company.Jobs {
				if company.Jobs[j].ID == "" {
					company.Jobs[j].ID = uuid.NewString()
				}
				company.Jobs[j].CompanyID = company.ID
			}
			if _, err := tx.NamedExecContext(ctx, insertJob, company.Jobs); err != nil {
				return fmt.Errorf("insert jobs: %w", err)
			}
			jobCount += len(company.Jobs)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return jobCount, nil
}

// GetByID returns a company without its jobs.
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*models.Company, error) {
	query := `SELECT ` + companyColumns + `, u.name AS uploader_name
FROM internship_companies c
LEFT JOIN users u ON u.id = c.uploaded_by_user_id
WHERE c.id = $1`
	var company models.Company
	if err := r.db.GetContext(ctx, &company, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &company, nil
}

// Status returns the review status of a company.
func (r *CompanyRepository) Status(ctx context.Context, id string) (*models.CompanyReviewStatus, error) {
	const query = `SELECT id, company_name, status, reject_reason, reviewed_at FROM internship_companies WHERE id = $1`
	var status models.CompanyReviewStatus
	if err := r.db.GetContext(ctx, &status, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get company status: %w", err)
	}
	return &status, nil
}

// ListPending returns pending companies, newest submission first.
func (r *CompanyRepository) ListPending(ctx context.Context) ([]models.Company, error) {
	query := `SELECT ` + companyColumns + `, u.name AS uploader_name
FROM internship_companies c
LEFT JOIN users u ON u.id = c.uploaded_by_user_id
WHERE c.status = $1
ORDER BY c.submitted_at DESC`
	var companies []models.Company
	if err := r.db.SelectContext(ctx, &companies, query, models.CompanyStatusPending); err != nil {
		return nil, fmt.Errorf("list pending companies: %w", err)
	}
	return companies, nil
}

// ListReviewed returns approved and rejected companies, latest review first.
func (r *CompanyRepository) ListReviewed(ctx context.Context) ([]models.Company, error) {
	query := `SELECT ` + companyColumns + `, u.name AS uploader_name, rv.name AS reviewer_name
FROM internship_companies c
LEFT JOIN users u ON u.id = c.uploaded_by_user_id
LEFT JOIN users rv ON rv.id = c.reviewed_by
WHERE c.status IN ($1, $2)
ORDER BY c.reviewed_at DESC NULLS LAST`
	var companies []models.Company
	if err := r.db.SelectContext(ctx, &companies, query, models.CompanyStatusApproved, models.CompanyStatusRejected); err != nil {
		return nil, fmt.Errorf("list reviewed companies: %w", err)
	}
	return companies, nil
}

// ListApproved returns companies open for student selection.
func (r *CompanyRepository) ListApproved(ctx context.Context) ([]models.Company, error) {
	query := `SELECT ` + companyColumns + `
FROM internship_companies c
WHERE c.status = $1
ORDER BY c.company_name ASC`
	var companies []models.Company
	if err := r.db.SelectContext(ctx, &companies, query, models.CompanyStatusApproved); err != nil {
		return nil, fmt.Errorf("list approved companies: %w", err)
	}
	return companies, nil
}

// ListByUploader returns every company submitted by the user.
func (r *CompanyRepository) ListByUploader(ctx context.Context, userID string) ([]models.Company, error) {
	query := `SELECT ` + companyColumns + `
FROM internship_companies c
WHERE c.uploaded_by_user_id = $1
ORDER BY c.submitted_at DESC`
	var companies []models.Company
	if err := r.db.SelectContext(ctx, &companies, query, userID); err != nil {
		return nil, fmt.Errorf("list companies by uploader: %w", err)
	}
	return companies, nil
}

// JobsByCompany returns jobs keyed by company id.
func (r *CompanyRepository) JobsByCompany(ctx context.Context, companyIDs []string) (map[string][]models.InternshipJob, error) {
	result := make(map[string][]models.InternshipJob, len(companyIDs))
	if len(companyIDs) == 0 {
		return result, nil
	}
	const query = `SELECT id, company_id, title, description, department, period, work_time, slots, remark
FROM internship_jobs WHERE company_id = ANY($1) ORDER BY title ASC, id ASC`
	var jobs []models.InternshipJob
	if err := r.db.SelectContext(ctx, &jobs, query, pqStringArray(companyIDs)); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	for _, job := range jobs {
		result[job.CompanyID] = append(result[job.CompanyID], job)
	}
	return result, nil
}

// Review applies decision to a pending company under a row lock. When the
// company is no longer pending nothing is written and applied is false; the
// returned company always reflects the locked row. buildNotice, when not nil,
// yields a notification written in the same transaction.
func (r *CompanyRepository) Review(ctx context.Context, id string, decision models.ReviewDecision, buildNotice func(models.Company) *models.Notification) (company *models.Company, applied bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin review transaction: %w", err)
	}
	defer func() {
		if err != nil || !applied {
			_ = tx.Rollback()
		}
	}()

	var locked models.Company
	lockQuery := `SELECT ` + companyColumns + ` FROM internship_companies c WHERE c.id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &locked, lockQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("lock company: %w", err)
	}
	if locked.Status != models.CompanyStatusPending {
		return &locked, false, nil
	}

	const update = `UPDATE internship_companies SET status = $1, reject_reason = $2, reviewed_at = $3, reviewed_by = $4 WHERE id = $5`
	if _, err = tx.ExecContext(ctx, update, decision.Status, decision.Reason, decision.ReviewedAt, decision.ReviewerID, id); err != nil {
		return nil, false, fmt.Errorf("update company status: %w", err)
	}
	locked.Status = decision.Status
	locked.RejectReason = decision.Reason
	reviewedAt := decision.ReviewedAt
	locked.ReviewedAt = &reviewedAt
	reviewer := decision.ReviewerID
	locked.ReviewedBy = &reviewer

	if buildNotice != nil {
		if notice := buildNotice(locked); notice != nil {
			if err = insertNotification(ctx, tx, notice); err != nil {
				return nil, false, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit review: %w", err)
	}
	applied = true
	return &locked, true, nil
}

// Delete removes a company and its jobs. Returns sql.ErrNoRows when absent.
func (r *CompanyRepository) Delete(ctx context.Context, id string) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM internship_jobs WHERE company_id = $1`, id); err != nil {
			return fmt.Errorf("delete jobs: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM internship_companies WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete company: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete company rows affected: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}
