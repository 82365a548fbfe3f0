package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-internship-api/internal/dto"
	"github.com/noah-isme/sma-internship-api/internal/models"
	"github.com/noah-isme/sma-internship-api/internal/service"
	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
	"github.com/noah-isme/sma-internship-api/pkg/response"
)

type companyService interface {
	Create(ctx context.Context, req dto.CreateCompanyRequest, uploader *models.JWTClaims) (*models.CompanyWithJobs, error)
	BulkCreate(ctx context.Context, req dto.BulkCreateCompaniesRequest, uploader *models.JWTClaims) (*dto.CompanyImportResult, error)
	ImportSpreadsheet(ctx context.Context, r io.Reader, uploader *models.JWTClaims) (*dto.CompanyImportResult, error)
	Review(ctx context.Context, id string, req dto.ReviewCompanyRequest, reviewer *models.JWTClaims) (*models.Company, error)
	ListPending(ctx context.Context) ([]models.Company, error)
	ListReviewed(ctx context.Context) ([]models.Company, error)
	ListApproved(ctx context.Context) ([]models.CompanyWithJobs, error)
	Get(ctx context.Context, id string) (*models.CompanyWithJobs, error)
	ListMine(ctx context.Context, userID string) ([]models.CompanySummary, error)
	Status(ctx context.Context, id string) (*models.CompanyReviewStatus, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	DownloadDetail(ctx context.Context, id string, actor *models.JWTClaims) (*service.RenderedExport, error)
}

// CompanyHandler exposes company intake and review endpoints.
type CompanyHandler struct {
	service        companyService
	uploadMaxBytes int64
}

// NewCompanyHandler constructs the handler. uploadMaxBytes bounds spreadsheet uploads.
func NewCompanyHandler(svc companyService, uploadMaxBytes int64) *CompanyHandler {
	if uploadMaxBytes <= 0 {
		uploadMaxBytes = 5 << 20
	}
	return &CompanyHandler{service: svc, uploadMaxBytes: uploadMaxBytes}
}

// Create godoc
// @Summary Submit a company
// @Tags Companies
// @Accept json
// @Produce json
// @Param payload body dto.CreateCompanyRequest true "Company"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /companies [post]
func (h *CompanyHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CreateCompanyRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid company payload"))
		return
	}
	company, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, company)
}

// BulkCreate godoc
// @Summary Submit several companies at once
// @Tags Companies
// @Accept json
// @Produce json
// @Param payload body dto.BulkCreateCompaniesRequest true "Companies"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /companies/bulk [post]
func (h *CompanyHandler) BulkCreate(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.BulkCreateCompaniesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid companies payload"))
		return
	}
	result, err := h.service.BulkCreate(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Import godoc
// @Summary Import companies from a spreadsheet
// @Tags Companies
// @Accept multipart/form-data
// @Produce json
// @Param company_file formData file true "XLSX workbook"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /companies/import [post]
func (h *CompanyHandler) Import(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploadMaxBytes)
	header, err := c.FormFile("company_file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.ErrPayloadTooLarge)
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "company_file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "company_file could not be read"))
		return
	}
	defer file.Close() //nolint:errcheck

	result, err := h.service.ImportSpreadsheet(c.Request.Context(), file, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Review godoc
// @Summary Approve or reject a company
// @Tags Companies
// @Accept json
// @Produce json
// @Param id path string true "Company ID"
// @Param payload body dto.ReviewCompanyRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /companies/{id}/review [post]
func (h *CompanyHandler) Review(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.ReviewCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	company, err := h.service.Review(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ReviewCompanyResponse{ID: company.ID, Status: company.Status, Reason: company.RejectReason}, nil)
}

// ListPending godoc
// @Summary List companies awaiting review
// @Tags Companies
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /companies/pending [get]
func (h *CompanyHandler) ListPending(c *gin.Context) {
	items, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ListReviewed godoc
// @Summary List reviewed companies
// @Tags Companies
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /companies/reviewed [get]
func (h *CompanyHandler) ListReviewed(c *gin.Context) {
	items, err := h.service.ListReviewed(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ListApproved godoc
// @Summary List approved companies with jobs
// @Tags Companies
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /companies/approved [get]
func (h *CompanyHandler) ListApproved(c *gin.Context) {
	items, err := h.service.ListApproved(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ListMine godoc
// @Summary List my submitted companies
// @Tags Companies
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /companies/mine [get]
func (h *CompanyHandler) ListMine(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	items, err := h.service.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get company with jobs
// @Tags Companies
// @Produce json
// @Param id path string true "Company ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /companies/{id} [get]
func (h *CompanyHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Status godoc
// @Summary Get company review status
// @Tags Companies
// @Produce json
// @Param id path string true "Company ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /companies/{id}/status [get]
func (h *CompanyHandler) Status(c *gin.Context) {
	item, err := h.service.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete a company and its jobs
// @Tags Companies
// @Param id path string true "Company ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /companies/{id} [delete]
func (h *CompanyHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Download godoc
// @Summary Download company details as XLSX
// @Tags Companies
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Company ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /companies/{id}/download [get]
func (h *CompanyHandler) Download(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	file, err := h.service.DownloadDetail(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
