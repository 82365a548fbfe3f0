package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SelectRoleRequest picks a development identity by username and role.
type SelectRoleRequest struct {
	Username string   `json:"username" validate:"required"`
	Role     UserRole `json:"role" validate:"required"`
}

// TokenResponse returns an issued access token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Name     string   `json:"name"`
	Role     UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Name   string   `json:"name"`
	jwt.RegisteredClaims
}
