package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
	// RoleService is granted to upload tooling authenticating with client credentials.
	RoleService UserRole = "SERVICE"
)

// ClientTokenRequest exchanges machine client credentials for an access token.
type ClientTokenRequest struct {
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

// ClientTokenResponse returns the issued access token.
type ClientTokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email,omitempty"`
	// Batches lists the batches a teacher is assigned to.
	Batches []string `json:"batches,omitempty"`
	jwt.RegisteredClaims
}

// CanAccessBatch reports whether the claims grant access to batchID.
func (c *JWTClaims) CanAccessBatch(batchID string) bool {
	switch c.Role {
	case RoleAdmin, RoleService:
		return true
	case RoleTeacher:
		for _, b := range c.Batches {
			if b == batchID {
				return true
			}
		}
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
