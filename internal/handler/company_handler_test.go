package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-internship-api/internal/dto"
	"github.com/noah-isme/sma-internship-api/internal/models"
	"github.com/noah-isme/sma-internship-api/internal/service"
	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
)

type companyServiceMock struct {
	created     dto.CreateCompanyRequest
	imported    []byte
	reviewErr   error
	reviewed    dto.ReviewCompanyRequest
	downloadErr error
}

func (m *companyServiceMock) Create(ctx context.Context, req dto.CreateCompanyRequest, uploader *models.JWTClaims) (*models.CompanyWithJobs, error) {
	m.created = req
	return &models.CompanyWithJobs{Company: models.Company{ID: "co-1", Name: req.Name, Status: models.CompanyStatusPending}}, nil
}

func (m *companyServiceMock) BulkCreate(ctx context.Context, req dto.BulkCreateCompaniesRequest, uploader *models.JWTClaims) (*dto.CompanyImportResult, error) {
	return &dto.CompanyImportResult{Companies: len(req.Companies)}, nil
}

func (m *companyServiceMock) ImportSpreadsheet(ctx context.Context, r io.Reader, uploader *models.JWTClaims) (*dto.CompanyImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.imported = data
	return &dto.CompanyImportResult{Companies: 2}, nil
}

func (m *companyServiceMock) Review(ctx context.Context, id string, req dto.ReviewCompanyRequest, reviewer *models.JWTClaims) (*models.Company, error) {
	m.reviewed = req
	if m.reviewErr != nil {
		return nil, m.reviewErr
	}
	return &models.Company{ID: id, Status: req.Status}, nil
}

func (m *companyServiceMock) ListPending(ctx context.Context) ([]models.Company, error) {
	return []models.Company{}, nil
}

func (m *companyServiceMock) ListReviewed(ctx context.Context) ([]models.Company, error) {
	return []models.Company{}, nil
}

func (m *companyServiceMock) ListApproved(ctx context.Context) ([]models.CompanyWithJobs, error) {
	return []models.CompanyWithJobs{}, nil
}

func (m *companyServiceMock) Get(ctx context.Context, id string) (*models.CompanyWithJobs, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "company not found")
}

func (m *companyServiceMock) ListMine(ctx context.Context, userID string) ([]models.CompanySummary, error) {
	return []models.CompanySummary{}, nil
}

func (m *companyServiceMock) Status(ctx context.Context, id string) (*models.CompanyReviewStatus, error) {
	return &models.CompanyReviewStatus{ID: id, Status: models.CompanyStatusPending}, nil
}

func (m *companyServiceMock) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	return nil
}

func (m *companyServiceMock) DownloadDetail(ctx context.Context, id string, actor *models.JWTClaims) (*service.RenderedExport, error) {
	if m.downloadErr != nil {
		return nil, m.downloadErr
	}
	return &service.RenderedExport{Filename: "Acme_details.xlsx", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Data: []byte("xlsx")}, nil
}

func TestCompanyHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &companyServiceMock{}
	handler := NewCompanyHandler(mockSvc, 0)

	payload, _ := json.Marshal(map[string]interface{}{
		"company_name":    "Acme",
		"internship_jobs": []map[string]interface{}{{"title": "Intern", "slots": 2}},
	})
	c, w := newGinContext(http.MethodPost, "/companies", payload)
	withClaims(c, "teacher-1", models.RoleTeacher)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Acme", mockSvc.created.Name)
	require.Len(t, mockSvc.created.Jobs, 1)
	assert.Equal(t, 2, mockSvc.created.Jobs[0].Slots)
}

func TestCompanyHandlerImportReadsUploadedFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &companyServiceMock{}
	handler := NewCompanyHandler(mockSvc, 1<<20)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("company_file", "companies.xlsx")
	require.NoError(t, err)
	_, _ = part.Write([]byte("workbook-bytes"))
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/companies/import", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.Request = req
	withClaims(c, "teacher-1", models.RoleTeacher)

	handler.Import(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "workbook-bytes", string(mockSvc.imported))
}

func TestCompanyHandlerImportMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCompanyHandler(&companyServiceMock{}, 0)

	c, w := newGinContext(http.MethodPost, "/companies/import", []byte(`{}`))
	withClaims(c, "teacher-1", models.RoleTeacher)

	handler.Import(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompanyHandlerReviewConflictCarriesStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &companyServiceMock{
		reviewErr: appErrors.WithDetails(appErrors.ErrAlreadyReviewed, "company already reviewed (status=approved)", map[string]interface{}{"status": "approved"}),
	}
	handler := NewCompanyHandler(mockSvc, 0)

	c, w := newGinContext(http.MethodPost, "/companies/co-1/review", []byte(`{"status":"rejected","reason":"late"}`))
	c.Params = gin.Params{{Key: "id", Value: "co-1"}}
	withClaims(c, "director-1", models.RoleDirector)

	handler.Review(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, models.CompanyStatusRejected, mockSvc.reviewed.Status)
	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "approved", body["meta"]["status"])
}

func TestCompanyHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCompanyHandler(&companyServiceMock{}, 0)

	c, w := newGinContext(http.MethodGet, "/companies/nope", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}

	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompanyHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCompanyHandler(&companyServiceMock{}, 0)

	c, w := newGinContext(http.MethodGet, "/companies/co-1/download", nil)
	c.Params = gin.Params{{Key: "id", Value: "co-1"}}
	withClaims(c, "teacher-1", models.RoleTeacher)

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Acme_details.xlsx")
}
