package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AppMetadata is the provider-managed metadata block carrying the application role.
type AppMetadata struct {
	Role UserRole `json:"role"`
}

// JWTClaims represents the access token payload issued by the auth provider.
type JWTClaims struct {
	Email       string      `json:"email"`
	AppMetadata AppMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

// Principal converts verified claims into the acting identity.
func (c *JWTClaims) Principal() *Principal {
	if c == nil {
		return nil
	}
	role := UserRole(strings.ToUpper(strings.TrimSpace(string(c.AppMetadata.Role))))
	switch role {
	case RoleSuperAdmin, RoleAdmin:
	default:
		role = RoleUser
	}
	return &Principal{UserID: c.Subject, Email: c.Email, Role: role}
}
