package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/blakestevenson/watchlog/internal/httputil"
	"github.com/blakestevenson/watchlog/internal/tmdb"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// TMDBHandler proxies metadata lookups for the admin page so the API key stays on the server
type TMDBHandler struct {
	provider tmdb.Provider
	logger   *zap.Logger
}

// NewTMDBHandler creates a new metadata proxy handler
func NewTMDBHandler(provider tmdb.Provider, logger *zap.Logger) *TMDBHandler {
	return &TMDBHandler{
		provider: provider,
		logger:   logger,
	}
}

// Search handles GET /api/tmdb/search?type&query&page
func (h *TMDBHandler) Search(w http.ResponseWriter, r *http.Request) {
	t, ok := h.mediaType(w, r.URL.Query().Get("type"))
	if !ok {
		return
	}
	query := r.URL.Query().Get("query")
	if query == "" {
		httputil.RespondErrorMessage(w, http.StatusBadRequest, "query is required")
		return
	}

	page, err := h.provider.Search(r.Context(), t, query, pageParam(r))
	if err != nil {
		h.respondProviderError(w, err, "search failed")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, page)
}

// Popular handles GET /api/tmdb/popular?type&page
func (h *TMDBHandler) Popular(w http.ResponseWriter, r *http.Request) {
	t, ok := h.mediaType(w, r.URL.Query().Get("type"))
	if !ok {
		return
	}

	page, err := h.provider.Popular(r.Context(), t, pageParam(r))
	if err != nil {
		h.respondProviderError(w, err, "popular lookup failed")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, page)
}

// Details handles GET /api/tmdb/{type}/{id}
func (h *TMDBHandler) Details(w http.ResponseWriter, r *http.Request) {
	t, ok := h.mediaType(w, chi.URLParam(r, "type"))
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.RespondErrorMessage(w, http.StatusBadRequest, "invalid ID")
		return
	}

	details, err := h.provider.Details(r.Context(), t, id)
	if err != nil {
		h.respondProviderError(w, err, "details lookup failed")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, details)
}

func (h *TMDBHandler) mediaType(w http.ResponseWriter, s string) (catalogue.MediaType, bool) {
	t, err := catalogue.ParseMediaType(s)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err, "invalid media type")
		return "", false
	}
	return t, true
}

func (h *TMDBHandler) respondProviderError(w http.ResponseWriter, err error, msg string) {
	var rl *tmdb.RateLimitError
	switch {
	case errors.Is(err, tmdb.ErrAPIKeyMissing):
		h.logger.Error("metadata provider is not configured", zap.Error(err))
		httputil.RespondErrorMessage(w, http.StatusInternalServerError, "Server configuration error: Missing TMDB API key")
	case errors.As(err, &rl):
		if rl.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
		}
		httputil.RespondError(w, http.StatusTooManyRequests, err, msg)
	case errors.Is(err, tmdb.ErrRateLimited):
		httputil.RespondError(w, http.StatusTooManyRequests, err, msg)
	case errors.Is(err, tmdb.ErrNotFound):
		httputil.RespondErrorMessage(w, http.StatusNotFound, "not found on TMDB")
	case errors.Is(err, tmdb.ErrUnavailable):
		httputil.RespondError(w, http.StatusServiceUnavailable, err, msg)
	default:
		httputil.LogError(h.logger, err, msg)
		httputil.RespondError(w, http.StatusBadGateway, err, msg)
	}
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
