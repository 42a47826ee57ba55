package auth

import "errors"

var (
	// ErrInvalidCredentials is returned when the admin password does not match
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned when a token is invalid or expired
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrWeakPassword is returned when a password doesn't meet requirements
	ErrWeakPassword = errors.New("password does not meet requirements")

	// ErrDisabled is returned when no admin password is configured
	ErrDisabled = errors.New("admin authentication is not configured")
)
