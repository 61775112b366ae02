package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/Raumain/flashcards/cmd/flashcards-api/middleware"
	"github.com/Raumain/flashcards/internal/app"
)

// NewRouter creates the API router with all routes configured.
func NewRouter(a *app.App) http.Handler {
	cfg := a.Config
	logger := a.Logger

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Retry-After", "X-Request-ID"},
		AllowCredentials: true,
	}).Handler)
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))

	r.Get("/health", Health)
	r.Get("/ready", Ready(a.Ready))

	stats := NewStatsCache(a.Cache, cfg.Cache.TTL, logger)
	auth := middleware.NewAuthenticator(cfg.Auth)

	generate := NewGenerateHandler(logger, a.Pipeline, a.Validator, stats, cfg.Pipeline.MaxFileSize())
	thematics := NewThematicHandler(logger, a.Thematics, a.Flashcards, a.Reconciler, stats)
	flashcards := NewFlashcardHandler(logger, a.Flashcards, stats)
	study := NewStudyHandler(logger, a.Study, stats)
	metrics := NewMetricsHandler(logger, a.DB, stats)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Authenticate)

		// Anonymous callers may generate; their results are not saved.
		r.Post("/generate", generate.Generate)
		r.Post("/generate/stream", generate.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)

			r.Get("/me", Me)
			r.Get("/metrics", metrics.Get)

			r.Route("/thematics", func(r chi.Router) {
				r.Get("/", thematics.List)
				r.Post("/", thematics.Create)
				r.Get("/recent", thematics.Recent)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", thematics.Get)
					r.Patch("/", thematics.Update)
					r.Delete("/", thematics.Delete)
					r.Get("/flashcards", thematics.Flashcards)
					r.Post("/flashcards", thematics.SaveFlashcards)
				})
			})

			r.Route("/flashcards", func(r chi.Router) {
				r.Get("/", flashcards.List)
				r.Post("/by-thematics", flashcards.ByThematics)
				r.Get("/{id}", flashcards.Get)
				r.Delete("/{id}", flashcards.Delete)
			})

			r.Route("/study", func(r chi.Router) {
				r.Post("/", study.Record)
				r.Get("/revision", study.Revision)
			})
		})
	})

	return r
}
