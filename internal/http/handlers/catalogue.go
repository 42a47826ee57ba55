package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/blakestevenson/watchlog/internal/httputil"
	"github.com/blakestevenson/watchlog/internal/validation"
	"go.uber.org/zap"
)

// CatalogueHandler serves the catalogue read and write endpoints
type CatalogueHandler struct {
	service catalogue.Service
	logger  *zap.Logger
}

// NewCatalogueHandler creates a new catalogue handler
func NewCatalogueHandler(service catalogue.Service, logger *zap.Logger) *CatalogueHandler {
	return &CatalogueHandler{
		service: service,
		logger:  logger,
	}
}

type listQuery struct {
	Type string `json:"type" validate:"omitempty,oneof=movie tv"`
	Sort string `json:"sort" validate:"omitempty,oneof=latest earliest rating_desc rating_asc"`
}

type moviesResponse struct {
	Movies     []catalogue.Item `json:"movies"`
	Pagination any              `json:"pagination"`
}

// ListMovies handles GET /api/movies
func (h *CatalogueHandler) ListMovies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lq := listQuery{Type: q.Get("type"), Sort: q.Get("sort")}
	if err := validation.Struct(&lq); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err, "invalid query parameters")
		return
	}

	// Unparseable pages fall back to the first page
	page, _ := strconv.Atoi(q.Get("page"))

	result := h.service.ListItems(r.Context(), catalogue.QueryParams{
		Type:   catalogue.MediaType(lq.Type),
		Sort:   catalogue.Sort(lq.Sort),
		Search: q.Get("search"),
		Page:   page,
	})

	resp := moviesResponse{Movies: result.Items, Pagination: struct{}{}}
	if result.Pagination != nil {
		resp.Pagination = result.Pagination
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// Stats handles GET /api/stats. A failed read answers with empty stats.
func (h *CatalogueHandler) Stats(w http.ResponseWriter, r *http.Request) {
	t, err := catalogue.ParseMediaType(r.URL.Query().Get("type"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err, "invalid query parameters")
		return
	}

	stats, err := h.service.Stats(r.Context(), t)
	if err != nil {
		h.logger.Warn("failed to compute stats", zap.String("type", string(t)), zap.Error(err))
		empty := catalogue.Aggregate(nil, t)
		stats = &empty
	}
	httputil.RespondJSON(w, http.StatusOK, stats)
}

// AddMovie handles POST /api/add-movie
func (h *CatalogueHandler) AddMovie(w http.ResponseWriter, r *http.Request) {
	var item catalogue.Item
	if !decodeBody(w, r, &item) {
		return
	}
	if item.ID == 0 {
		httputil.RespondFailure(w, http.StatusBadRequest, "Movie id is required")
		return
	}

	if err := h.service.AddItem(r.Context(), item); err != nil {
		respondWriteError(w, h.logger, err, "add movie")
		return
	}

	h.logger.Info("movie added", zap.Int64("id", item.ID), zap.String("title", item.DisplayTitle()))
	httputil.RespondSuccess(w, "Movie added successfully!")
}

type updateRequest struct {
	ID      int64            `json:"id" validate:"required"`
	Updates catalogue.Fields `json:"updates" validate:"required"`
}

type updateResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Movie   *catalogue.Item `json:"movie"`
}

// UpdateMovie handles POST /api/update-movie
func (h *CatalogueHandler) UpdateMovie(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.Struct(&req); err != nil {
		httputil.RespondFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.service.UpdateItem(r.Context(), req.ID, req.Updates)
	if err != nil {
		respondWriteError(w, h.logger, err, "update movie")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, updateResponse{
		Success: true,
		Message: "Movie updated successfully!",
		Movie:   item,
	})
}

type deleteRequest struct {
	ID int64 `json:"id" validate:"required"`
}

// DeleteMovie handles POST /api/delete-movie
func (h *CatalogueHandler) DeleteMovie(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.Struct(&req); err != nil {
		httputil.RespondFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.DeleteItem(r.Context(), req.ID); err != nil {
		respondWriteError(w, h.logger, err, "delete movie")
		return
	}

	httputil.RespondSuccess(w, "Movie deleted successfully!")
}

type batchRequest struct {
	Changes []catalogue.Change `json:"changes" validate:"required,min=1,dive"`
}

// BatchUpdate handles POST /api/batch-update
func (h *CatalogueHandler) BatchUpdate(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Changes) == 0 {
		httputil.RespondFailure(w, http.StatusBadRequest, "No changes provided")
		return
	}
	if err := validation.Struct(&req); err != nil {
		httputil.RespondFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("processing batch", zap.Int("changes", len(req.Changes)))

	stats, err := h.service.ApplyChanges(r.Context(), req.Changes)
	if err != nil {
		respondWriteError(w, h.logger, err, "apply batch updates")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, httputil.Result{
		Success: true,
		Message: fmt.Sprintf("Saved: %d added, %d updated, %d deleted", stats.Added, stats.Updated, stats.Deleted),
		Stats:   stats,
	})
}

// SaveMovies handles POST /api/save-movies, replacing the whole catalogue
func (h *CatalogueHandler) SaveMovies(w http.ResponseWriter, r *http.Request) {
	var items []catalogue.Item
	if !decodeBody(w, r, &items) {
		return
	}

	if err := h.service.ReplaceAll(r.Context(), items); err != nil {
		respondWriteError(w, h.logger, err, "save movies")
		return
	}

	h.logger.Info("catalogue replaced", zap.Int("items", len(items)))
	httputil.RespondSuccess(w, "Movies saved successfully!")
}
