package handlers

import (
	"errors"
	"net/http"

	"github.com/blakestevenson/watchlog/internal/auth"
	"github.com/blakestevenson/watchlog/internal/httputil"
	"github.com/blakestevenson/watchlog/internal/validation"
	"go.uber.org/zap"
)

// AuthHandler handles admin login
type AuthHandler struct {
	authService auth.Service
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService auth.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validation.Struct(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err, "validation error")
		return
	}

	token, err := h.authService.Login(r.Context(), req)
	if err != nil {
		h.handleAuthError(w, err, "login failed")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, token)
}

// handleAuthError maps authentication errors to HTTP responses
func (h *AuthHandler) handleAuthError(w http.ResponseWriter, err error, defaultMsg string) {
	h.logger.Warn(defaultMsg, zap.Error(err))

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		httputil.RespondErrorMessage(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrDisabled):
		httputil.RespondErrorMessage(w, http.StatusNotFound, "admin login is not enabled")
	default:
		httputil.RespondErrorMessage(w, http.StatusInternalServerError, defaultMsg)
	}
}
