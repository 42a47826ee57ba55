package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/blakestevenson/watchlog/internal/enrich"
	"github.com/blakestevenson/watchlog/internal/httputil"
	"go.uber.org/zap"
)

// EnrichHandler runs interactive enrichment from the admin page
type EnrichHandler struct {
	service *enrich.Service
	logger  *zap.Logger
}

// NewEnrichHandler creates a new enrichment handler
func NewEnrichHandler(service *enrich.Service, logger *zap.Logger) *EnrichHandler {
	return &EnrichHandler{
		service: service,
		logger:  logger,
	}
}

// Run handles POST /api/enrich?type&limit. Rate-limited items are skipped, not retried.
func (h *EnrichHandler) Run(w http.ResponseWriter, r *http.Request) {
	opts := enrich.Options{Mode: enrich.ModeInteractive}

	if s := r.URL.Query().Get("type"); s != "" {
		t, err := catalogue.ParseMediaType(s)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, err, "invalid media type")
			return
		}
		opts.Type = t
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			httputil.RespondErrorMessage(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = limit
	}

	report, err := h.service.Run(r.Context(), opts)
	if err != nil {
		if errors.Is(err, catalogue.ErrNotConfigured) {
			httputil.RespondFailure(w, http.StatusInternalServerError, msgMissingCredentials)
			return
		}
		httputil.LogError(h.logger, err, "enrichment failed")
		httputil.RespondFailure(w, http.StatusInternalServerError, "Failed to enrich catalogue: "+err.Error())
		return
	}

	httputil.RespondJSON(w, http.StatusOK, report)
}
