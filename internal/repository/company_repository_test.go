package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-internship-api/internal/models"
)

var companyRowColumns = []string{"id", "company_name", "description", "location", "contact_person", "contact_title", "contact_email", "contact_phone",
	"uploaded_by_user_id", "uploaded_by_role", "status", "reject_reason", "submitted_at", "reviewed_at", "reviewed_by"}

func companyRow(id string, status models.CompanyStatus) []driver.Value {
	return []driver.Value{id, "Acme", "Widgets", "Taipei", "Bob", "HR", "bob@acme.test", "02-1234",
		"t1", string(models.RoleTeacher), string(status), nil, time.Now(), nil, nil}
}

func TestCompanyCreateManyInsertsCompaniesAndJobs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCompanyRepository(db)

	companies := []models.CompanyWithJobs{
		{
			Company: models.Company{Name: "Acme", UploadedByUserID: "t1", UploadedByRole: models.RoleTeacher},
			Jobs:    []models.InternshipJob{{Title: "Backend"}, {Title: "QA"}},
		},
		{Company: models.Company{Name: "Globex", UploadedByUserID: "t1", UploadedByRole: models.RoleTeacher}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO internship_companies").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO internship_jobs").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO internship_companies").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	jobs, err := repo.CreateMany(context.Background(), companies)
	require.NoError(t, err)
	assert.Equal(t, 2, jobs)
	assert.NotEmpty(t, companies[0].ID)
	assert.Equal(t, models.CompanyStatusPending, companies[0].Status)
	assert.Equal(t, companies[0].ID, companies[0].Jobs[1].CompanyID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyReviewAppliesDecisionAndNotifies(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCompanyRepository(db)

	reviewedAt := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM internship_companies c WHERE c.id = $1 FOR UPDATE")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(companyRowColumns).AddRow(companyRow("c1", models.CompanyStatusPending)...))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE internship_companies SET status = $1")).
		WithArgs(models.CompanyStatusApproved, nil, reviewedAt, "d1", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var notified string
	company, applied, err := repo.Review(context.Background(), "c1", models.ReviewDecision{
		Status:     models.CompanyStatusApproved,
		ReviewerID: "d1",
		ReviewedAt: reviewedAt,
	}, func(c models.Company) *models.Notification {
		notified = c.UploadedByUserID
		return &models.Notification{UserID: c.UploadedByUserID, Title: "approved", Message: c.Name}
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.CompanyStatusApproved, company.Status)
	assert.Equal(t, "t1", notified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyReviewRefusesDecidedCompany(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCompanyRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(companyRowColumns).AddRow(companyRow("c1", models.CompanyStatusApproved)...))
	mock.ExpectRollback()

	company, applied, err := repo.Review(context.Background(), "c1", models.ReviewDecision{Status: models.CompanyStatusRejected}, nil)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.CompanyStatusApproved, company.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyReviewMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCompanyRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("nope").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := repo.Review(context.Background(), "nope", models.ReviewDecision{Status: models.CompanyStatusApproved}, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyDeleteRemovesJobsFirst(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCompanyRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM internship_jobs WHERE company_id = $1")).WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM internship_companies WHERE id = $1")).WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyDeleteMissingRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCompanyRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM internship_jobs").WithArgs("c9").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM internship_companies").WithArgs("c9").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.Delete(context.Background(), "c9"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyJobsByCompanyGroups(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCompanyRepository(db)

	rows := sqlmock.NewRows([]string{"id", "company_id", "title", "description", "department", "period", "work_time", "slots", "remark"}).
		AddRow("j1", "c1", "Backend", "", "IT", "Summer", "9-5", 2, "").
		AddRow("j2", "c2", "QA", "", "IT", "Summer", "9-5", 1, "")
	mock.ExpectQuery(regexp.QuoteMeta("FROM internship_jobs WHERE company_id = ANY($1)")).WillReturnRows(rows)

	jobs, err := repo.JobsByCompany(context.Background(), []string{"c1", "c2"})
	require.NoError(t, err)
	assert.Len(t, jobs["c1"], 1)
	assert.Equal(t, "QA", jobs["c2"][0].Title)
}

func TestCompanyListPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCompanyRepository(db)

	columns := append(append([]string{}, companyRowColumns...), "uploader_name")
	rows := sqlmock.NewRows(columns).AddRow(append(companyRow("c1", models.CompanyStatusPending), "Ms. Lin")...)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY c.submitted_at DESC")).
		WithArgs(models.CompanyStatusPending).
		WillReturnRows(rows)

	companies, err := repo.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, companies, 1)
	require.NotNil(t, companies[0].UploaderName)
	assert.Equal(t, "Ms. Lin", *companies[0].UploaderName)
}
