package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-internship-api/internal/models"
	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
	"github.com/noah-isme/sma-internship-api/pkg/response"
)

type roleSelector interface {
	SelectRole(ctx context.Context, req models.SelectRoleRequest) (*models.TokenResponse, error)
}

// AuthHandler exposes the development role picker and identity echo.
type AuthHandler struct {
	service roleSelector
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc roleSelector) *AuthHandler {
	return &AuthHandler{service: svc}
}

// SelectRole godoc
// @Summary Issue a token for a development identity
// @Description Looks up the user by username and role and issues an access token. Not routed in production.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.SelectRoleRequest true "Identity"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/select-role [post]
func (h *AuthHandler) SelectRole(c *gin.Context) {
	var req models.SelectRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid select-role payload"))
		return
	}

	res, err := h.service.SelectRole(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Me godoc
// @Summary Get current user
// @Description Returns the identity carried by the access token
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}

	info := models.UserInfo{
		ID:   claims.UserID,
		Name: claims.Name,
		Role: claims.Role,
	}

	response.JSON(c, http.StatusOK, info, nil)
}
