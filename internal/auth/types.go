package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents JWT token claims
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RoleAdmin is the only role the site knows
const RoleAdmin = "admin"

// LoginRequest contains the admin password
type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// Token is the response to a successful login
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
}

// Service defines the authentication service interface
type Service interface {
	// Enabled reports whether an admin password is configured
	Enabled() bool

	// Login checks the admin password and returns a session token
	Login(ctx context.Context, req LoginRequest) (*Token, error)

	// ValidateToken validates an access token and returns the claims
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}
