package auth

import (
	"context"

	"go.uber.org/zap"
)

// service implements the Service interface
type service struct {
	passwordHash string
	jwt          *JWTManager
	logger       *zap.Logger
}

// NewService creates a new authentication service. An empty password hash
// disables authentication.
func NewService(passwordHash string, jwt *JWTManager, logger *zap.Logger) Service {
	return &service{
		passwordHash: passwordHash,
		jwt:          jwt,
		logger:       logger.With(zap.String("component", "auth")),
	}
}

func (s *service) Enabled() bool {
	return s.passwordHash != ""
}

// Login checks the admin password and returns a session token
func (s *service) Login(ctx context.Context, req LoginRequest) (*Token, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	if err := CheckPassword(s.passwordHash, req.Password); err != nil {
		s.logger.Warn("admin login failed")
		return nil, ErrInvalidCredentials
	}

	accessToken, expiresAt, err := s.jwt.GenerateAccessToken()
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin logged in", zap.Time("expires_at", expiresAt))

	return &Token{
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
		TokenType:   "Bearer",
	}, nil
}

// ValidateToken validates an access token and returns the claims
func (s *service) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	return s.jwt.ValidateAccessToken(token)
}
