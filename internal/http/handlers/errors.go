package handlers

import (
	"errors"
	"net/http"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/blakestevenson/watchlog/internal/httputil"
	"go.uber.org/zap"
)

const (
	msgMissingCredentials = "Server configuration error: Missing Contentful credentials"
	msgDuplicate          = "Movie already exists in catalogue"
	msgNotFound           = "Movie not found"
	msgConflict           = "Catalogue was changed by another writer, please retry"
)

// respondWriteError maps a failed catalogue write to the {success, message} envelope
func respondWriteError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	switch {
	case errors.Is(err, catalogue.ErrNotConfigured):
		logger.Error("catalogue store is not configured", zap.String("action", action), zap.Error(err))
		httputil.RespondFailure(w, http.StatusInternalServerError, msgMissingCredentials)
	case errors.Is(err, catalogue.ErrDuplicateItem):
		httputil.RespondFailure(w, http.StatusBadRequest, msgDuplicate)
	case errors.Is(err, catalogue.ErrNotFound):
		httputil.RespondFailure(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, catalogue.ErrVersionConflict):
		logger.Warn("catalogue write lost to a concurrent writer", zap.String("action", action), zap.Error(err))
		httputil.RespondFailure(w, http.StatusConflict, msgConflict)
	default:
		httputil.LogError(logger, err, "catalogue write failed", zap.String("action", action))
		httputil.RespondFailure(w, http.StatusInternalServerError, "Failed to "+action+": "+err.Error())
	}
}

// decodeBody decodes a write request, answering 413 or 400 itself when it cannot
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := httputil.DecodeJSON(r, v)
	if err == nil {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		httputil.RespondFailure(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return false
	}
	httputil.RespondFailure(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
	return false
}
