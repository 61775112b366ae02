// Package ratelimit admits generation requests per client: a fixed window
// caps how many start, and a FIFO gate caps how many run at once.
package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/observability"
)

const (
	DefaultWindow        = 60 * time.Second
	DefaultMaxRequests   = 10
	DefaultMaxConcurrent = 2
	DefaultSweepInterval = 5 * time.Minute
)

// WindowCounter is a shared fixed-window counter, used when several
// instances must agree on request counts.
type WindowCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Config holds the admission limits.
type Config struct {
	Window        time.Duration
	MaxRequests   int
	MaxConcurrent int
	SweepInterval time.Duration
	// Counter, when set, replaces the in-process window count. Concurrency
	// is always tracked locally.
	Counter WindowCounter
}

type entry struct {
	count   int
	resetAt time.Time
	active  int
	waiters []chan struct{}
}

// Limiter tracks admission state per client key.
type Limiter struct {
	cfg    Config
	logger *observability.Logger

	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a limiter and starts its sweeper. Call Close to stop it.
func New(cfg Config, logger *observability.Logger) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultMaxRequests
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	l := &Limiter{
		cfg:     cfg,
		logger:  logger.WithComponent("ratelimit"),
		entries: make(map[string]*entry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Admit counts a request against key's window and waits for a concurrency
// slot. A request refused by the window does not consume a slot. The
// returned release must be called once the work is done; extra calls are
// no-ops.
func (l *Limiter) Admit(ctx context.Context, key string) (func(), error) {
	if err := l.count(ctx, key); err != nil {
		return nil, err
	}

	l.mu.Lock()
	e := l.entry(key)
	if e.active < l.cfg.MaxConcurrent {
		e.active++
		l.mu.Unlock()
		return l.releaser(key), nil
	}

	ready := make(chan struct{})
	e.waiters = append(e.waiters, ready)
	queued := len(e.waiters)
	l.mu.Unlock()

	l.logger.Debug().Str("client", key).Int("position", queued).Msg("waiting for generation slot")

	select {
	case <-ready:
		return l.releaser(key), nil
	case <-ctx.Done():
		l.mu.Lock()
		removed := removeWaiter(e, ready)
		l.mu.Unlock()
		if !removed {
			// The slot was handed over while we were giving up.
			l.release(key)
		}
		return nil, ctx.Err()
	}
}

func (l *Limiter) count(ctx context.Context, key string) error {
	if l.cfg.Counter != nil {
		n, left, err := l.cfg.Counter.Incr(ctx, "ratelimit:"+key, l.cfg.Window)
		if err == nil {
			if n > int64(l.cfg.MaxRequests) {
				return l.limited(key, left)
			}
			return nil
		}
		l.logger.Warn().Err(err).Msg("shared rate limit counter unavailable, counting locally")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.entry(key)
	if !now.Before(e.resetAt) {
		e.count = 0
		e.resetAt = now.Add(l.cfg.Window)
	}
	if e.count >= l.cfg.MaxRequests {
		return l.limited(key, e.resetAt.Sub(now))
	}
	e.count++
	return nil
}

func (l *Limiter) limited(key string, left time.Duration) error {
	retryAfter := max(1, int(math.Ceil(left.Seconds())))
	l.logger.Info().Str("client", key).Int("retry_after", retryAfter).Msg("rate limit exceeded")
	return domain.RateLimited("Trop de requêtes. Veuillez réessayer plus tard.", retryAfter)
}

// entry returns key's state, creating it. Callers hold l.mu.
func (l *Limiter) entry(key string) *entry {
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	return e
}

func (l *Limiter) releaser(key string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { l.release(key) })
	}
}

// release hands the slot to the oldest waiter, or frees it.
func (l *Limiter) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return
	}
	if len(e.waiters) > 0 {
		next := e.waiters[0]
		e.waiters = e.waiters[1:]
		close(next)
		return
	}
	if e.active > 0 {
		e.active--
	}
}

func removeWaiter(e *entry, ch chan struct{}) bool {
	for i, w := range e.waiters {
		if w == ch {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Sweep drops idle entries whose window has ended and returns how many were
// removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, e := range l.entries {
		if !now.Before(e.resetAt) && e.active == 0 && len(e.waiters) == 0 {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debug().Int("removed", n).Msg("swept rate limit entries")
			}
		}
	}
}

// Active returns the number of running requests for key.
func (l *Limiter) Active(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok {
		return e.active
	}
	return 0
}

// Close stops the sweeper.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// ClientKey identifies the caller: the first X-Forwarded-For hop, then
// X-Real-IP, then "unknown".
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return "unknown"
}
