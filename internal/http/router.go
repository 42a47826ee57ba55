package http

import (
	"net/http"
	"time"

	"github.com/blakestevenson/watchlog/internal/auth"
	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/blakestevenson/watchlog/internal/enrich"
	"github.com/blakestevenson/watchlog/internal/http/handlers"
	"github.com/blakestevenson/watchlog/internal/httputil"
	"github.com/blakestevenson/watchlog/internal/tmdb"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options tunes the router's request limits
type Options struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	MaxBodyBytes      int64
}

// Services are the dependencies the routes call into. Provider and Enricher may be
// nil, in which case their routes are not mounted.
type Services struct {
	Catalogue catalogue.Service
	Auth      auth.Service
	Provider  tmdb.Provider
	Enricher  *enrich.Service
}

// NewRouter creates and configures the HTTP router
func NewRouter(svc Services, opts Options, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(RecoverMiddleware(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(CORSMiddleware())
	r.Use(middleware.Compress(5))

	// Handlers
	catalogueHandler := handlers.NewCatalogueHandler(svc.Catalogue, logger)
	authHandler := handlers.NewAuthHandler(svc.Auth, logger)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(RateLimitMiddleware(opts.RateLimitRequests, opts.RateLimitWindow))

		// Public routes
		r.Get("/movies", catalogueHandler.ListMovies)
		r.Get("/stats", catalogueHandler.Stats)
		r.Post("/auth/login", authHandler.Login)

		// Admin routes
		r.Group(func(r chi.Router) {
			if opts.MaxBodyBytes > 0 {
				r.Use(middleware.RequestSize(opts.MaxBodyBytes))
			}
			r.Use(AdminMiddleware(svc.Auth, logger))

			r.Post("/add-movie", catalogueHandler.AddMovie)
			r.Post("/update-movie", catalogueHandler.UpdateMovie)
			r.Post("/delete-movie", catalogueHandler.DeleteMovie)
			r.Post("/batch-update", catalogueHandler.BatchUpdate)
			r.Post("/save-movies", catalogueHandler.SaveMovies)

			if svc.Provider != nil {
				tmdbHandler := handlers.NewTMDBHandler(svc.Provider, logger)
				r.Route("/tmdb", func(r chi.Router) {
					r.Get("/search", tmdbHandler.Search)
					r.Get("/popular", tmdbHandler.Popular)
					r.Get("/{type}/{id}", tmdbHandler.Details)
				})
			}

			if svc.Enricher != nil {
				r.Post("/enrich", handlers.NewEnrichHandler(svc.Enricher, logger).Run)
			}
		})
	})

	return r
}
