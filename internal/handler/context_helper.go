package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-internship-api/internal/middleware"
	"github.com/noah-isme/sma-internship-api/internal/models"
	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
	"github.com/noah-isme/sma-internship-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// requireClaims writes a 401 and returns nil when the request carries no identity.
func requireClaims(c *gin.Context) *models.JWTClaims {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	return claims
}
