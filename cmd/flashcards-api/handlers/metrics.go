package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Raumain/flashcards/cmd/flashcards-api/middleware"
	"github.com/Raumain/flashcards/internal/cache"
	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/observability"
	"github.com/Raumain/flashcards/internal/storage"
)

// StatsCache holds per-user dashboard metrics until the next write.
type StatsCache struct {
	cache  cache.Client
	ttl    time.Duration
	logger *observability.Logger
}

func NewStatsCache(c cache.Client, ttl time.Duration, logger *observability.Logger) *StatsCache {
	return &StatsCache{cache: c, ttl: ttl, logger: logger.WithComponent("stats-cache")}
}

func metricsKey(userID string) string {
	return cache.UserCacheKey(userID, "metrics")
}

func (s *StatsCache) get(ctx context.Context, userID string) (*domain.DashboardMetrics, bool) {
	raw, err := s.cache.Get(ctx, metricsKey(userID))
	if err != nil {
		return nil, false
	}
	var m domain.DashboardMetrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return &m, true
}

func (s *StatsCache) set(ctx context.Context, userID string, m *domain.DashboardMetrics) {
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, metricsKey(userID), raw, s.ttl); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache metrics")
	}
}

// Invalidate drops everything cached for userID. Cache errors are logged.
func (s *StatsCache) Invalidate(ctx context.Context, userID string) {
	if err := s.cache.DeleteByPrefix(ctx, cache.UserCacheKey(userID)+":"); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to invalidate cache")
	}
}

// MetricsHandler serves the study dashboard.
type MetricsHandler struct {
	logger *observability.Logger
	db     *sql.DB
	stats  *StatsCache
	now    func() time.Time
}

func NewMetricsHandler(logger *observability.Logger, db *sql.DB, stats *StatsCache) *MetricsHandler {
	return &MetricsHandler{logger: logger, db: db, stats: stats, now: time.Now}
}

// Get handles GET /api/v1/metrics.
func (h *MetricsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	if m, ok := h.stats.get(ctx, userID); ok {
		writeData(w, http.StatusOK, m)
		return
	}

	m, err := storage.Dashboard(ctx, h.db, userID, h.now())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.stats.set(ctx, userID, m)
	writeData(w, http.StatusOK, m)
}
