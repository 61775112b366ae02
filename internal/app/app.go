// Package app assembles the flashcards service from configuration. Both the
// HTTP server and the CLI build their dependencies through it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Raumain/flashcards/internal/cache"
	"github.com/Raumain/flashcards/internal/config"
	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/llm"
	"github.com/Raumain/flashcards/internal/observability"
	"github.com/Raumain/flashcards/internal/pdf"
	"github.com/Raumain/flashcards/internal/pipeline"
	"github.com/Raumain/flashcards/internal/ratelimit"
	"github.com/Raumain/flashcards/internal/reconcile"
	"github.com/Raumain/flashcards/internal/storage"
)

const serviceName = "flashcards"

// App holds the wired service components.
type App struct {
	Config *config.Config
	Logger *observability.Logger

	DB    *sql.DB
	Cache cache.Client

	Limiter    *ratelimit.Limiter
	Validator  *pdf.Validator
	Rasterizer *pdf.Rasterizer
	Generator  *llm.Client
	Reconciler *reconcile.Reconciler
	Pipeline   *pipeline.Service

	Thematics  *storage.ThematicRepository
	Flashcards *storage.FlashcardRepository
	Study      *storage.StudyRepository
}

// NewLogger builds the service logger from the observability section.
func NewLogger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: serviceName,
	})
}

// OpenDatabase opens the configured database and applies pending migrations.
func OpenDatabase(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*sql.DB, error) {
	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	applied, err := storage.NewMigrator(db, cfg.Database.Driver).Up(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	if len(applied) > 0 {
		logger.Info().Strs("versions", applied).Msg("migrations applied")
	}
	return db, nil
}

// New wires every component. The caller must Close the returned App.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	db, err := OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db

	if a.Cache, err = newCache(ctx, cfg.Cache); err != nil {
		a.Close()
		return nil, err
	}

	limiterCfg := ratelimit.Config{
		Window:        cfg.RateLimit.Window,
		MaxRequests:   cfg.RateLimit.MaxRequests,
		MaxConcurrent: cfg.RateLimit.MaxConcurrent,
		SweepInterval: cfg.RateLimit.SweepInterval,
	}
	if cfg.RateLimit.Store == "redis" {
		limiterCfg.Counter = a.Cache
	}
	a.Limiter = ratelimit.New(limiterCfg, logger)

	p := cfg.Pipeline
	a.Validator = pdf.NewValidator(p.MaxFileSize())
	a.Rasterizer = pdf.NewRasterizer(newEngine(p), a.Validator, logger)
	optimizer := pdf.NewOptimizer(pdf.OptimizerOptions{
		MaxWidth:  p.MaxWidth,
		Quality:   p.Quality,
		BatchSize: p.BatchSize,
	}, logger)

	retry := llm.DefaultRetryConfig()
	retry.MaxRetries = cfg.Generation.MaxRetries
	a.Generator, err = llm.NewClient(llm.Options{
		APIKey:            cfg.Generation.APIKey,
		BaseURL:           cfg.Generation.BaseURL,
		Model:             cfg.Generation.Model,
		Timeout:           cfg.Generation.Timeout,
		Retry:             retry,
		RequestsPerSecond: cfg.Generation.RequestsPerSecond,
		Burst:             cfg.Generation.Burst,
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	extractor, err := llm.NewThematicExtractor(llm.ThematicOptions{
		APIKey:  cfg.Thematic.APIKey,
		BaseURL: cfg.Thematic.BaseURL,
		Model:   cfg.Thematic.Model,
		Timeout: cfg.Thematic.Timeout,
		Pages:   p.ThematicPages,
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Reconciler = reconcile.New(db, extractor, p.ThematicPages, logger)

	a.Pipeline = pipeline.NewService(a.Limiter, a.Rasterizer, optimizer, a.Generator, a.Reconciler, pipeline.Options{
		Raster:     rasterOptions(p),
		MaxPayload: p.MaxPayload(),
	}, logger)

	a.Thematics = storage.NewThematicRepository(db)
	a.Flashcards = storage.NewFlashcardRepository(db)
	a.Study = storage.NewStudyRepository(db)

	if cfg.Generation.APIKey == "" {
		logger.Warn().Msg("OPENROUTER_API_KEY not set, generation requests will fail")
	}
	logger.Info().
		Str("database", cfg.Database.Driver).
		Str("cache", cfg.Cache.Driver).
		Str("engine", p.Engine).
		Str("model", cfg.Generation.Model).
		Msg("application initialized")
	return a, nil
}

// Ready reports whether the database answers and the rasterizer tool is
// installed.
func (a *App) Ready(ctx context.Context) error {
	if err := a.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := a.Rasterizer.Check(ctx); err != nil {
		return fmt.Errorf("rasterizer: %w", err)
	}
	return nil
}

// Close releases every component opened by New.
func (a *App) Close() error {
	var errs []error
	if a.Limiter != nil {
		a.Limiter.Close()
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Client, error) {
	if cfg.Driver != "redis" {
		return cache.NewMemoryClient(cfg.MaxEntries), nil
	}
	c, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("connect cache: %w", err)
	}
	return c, nil
}

func rasterOptions(p config.PipelineConfig) domain.RasterOptions {
	return domain.RasterOptions{
		Density:  p.Density,
		MaxWidth: p.MaxWidth,
		Quality:  p.Quality,
		MaxPages: p.MaxPages,
	}
}

func newEngine(p config.PipelineConfig) pdf.Engine {
	if p.Engine == "fitz" {
		return pdf.NewFitzEngine()
	}
	return pdf.NewPdftoppmEngine(p.PdftoppmPath)
}
