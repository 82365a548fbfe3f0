package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-internship-api/internal/dto"
	"github.com/noah-isme/sma-internship-api/internal/models"
	"github.com/noah-isme/sma-internship-api/internal/service"
	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
	"github.com/noah-isme/sma-internship-api/pkg/response"
)

type preferenceService interface {
	Form(ctx context.Context, studentID string) (*models.PreferenceForm, error)
	Submit(ctx context.Context, studentID string, req dto.SubmitPreferencesRequest) (*dto.PreferenceSubmitResponse, error)
	ResolveClass(ctx context.Context, claims *models.JWTClaims, classID string) (*models.Class, error)
	ReviewPreferences(ctx context.Context, claims *models.JWTClaims, classID string) (*models.PreferenceReport, error)
}

type classExporter interface {
	Render(ctx context.Context, class models.Class, format models.ExportFormat) (*service.RenderedExport, error)
}

// PreferenceHandler exposes student preference and class report endpoints.
type PreferenceHandler struct {
	service  preferenceService
	exporter classExporter
}

// NewPreferenceHandler constructs the handler.
func NewPreferenceHandler(svc preferenceService, exporter classExporter) *PreferenceHandler {
	return &PreferenceHandler{service: svc, exporter: exporter}
}

// Form godoc
// @Summary Get my preference form
// @Description Approved companies with jobs and the caller's five ranked slots.
// @Tags Preferences
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /preferences/me [get]
func (h *PreferenceHandler) Form(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	form, err := h.service.Form(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, form, nil)
}

// Submit godoc
// @Summary Replace my preferences
// @Tags Preferences
// @Accept json
// @Produce json
// @Param payload body dto.SubmitPreferencesRequest true "Ranked preferences"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /preferences/me [put]
func (h *PreferenceHandler) Submit(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.SubmitPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preferences payload"))
		return
	}
	res, err := h.service.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// ClassReport godoc
// @Summary Review a class's preferences
// @Tags Preferences
// @Produce json
// @Param classId query string false "Class ID (defaults to the caller's homeroom)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /preferences/class [get]
func (h *PreferenceHandler) ClassReport(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.ClassReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	report, err := h.service.ReviewPreferences(c.Request.Context(), claims, query.ClassID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Export godoc
// @Summary Download a class preference report
// @Tags Preferences
// @Produce application/octet-stream
// @Param classId query string false "Class ID (defaults to the caller's homeroom)"
// @Param format query string false "xlsx, docx, pdf or csv (default xlsx)"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /preferences/class/export [get]
func (h *PreferenceHandler) Export(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.ClassReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	if query.Format == "" {
		query.Format = models.ExportFormatXLSX
	}
	class, err := h.service.ResolveClass(c.Request.Context(), claims, query.ClassID)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.Render(c.Request.Context(), *class, query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
