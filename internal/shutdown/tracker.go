// Package shutdown tracks in-flight requests so the server can drain
// accounting work before closing the database, and optionally stop itself
// after a quiet period on scale-to-zero platforms.
package shutdown

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// BusyFunc reports whether background work is in progress.
type BusyFunc func() bool

// Config holds configuration for a Tracker.
type Config struct {
	// IdleTimeout signals Idle after this long without tracked requests.
	// Zero disables idle detection; draining works regardless.
	IdleTimeout time.Duration
	// ExcludePaths are URL prefixes that do not count as activity (health checks, metrics).
	ExcludePaths []string
	// Busy, when set, keeps the tracker from going idle.
	Busy   BusyFunc
	Logger *slog.Logger
}

// Tracker counts in-flight requests and the time since the last one.
type Tracker struct {
	cfg          Config
	inFlight     atomic.Int64
	lastActivity atomic.Int64 // unix nanos
	idle         chan struct{}
	stop         chan struct{}
	stopOnce     sync.Once
}

// NewTracker creates a tracker. Call Start to enable idle detection.
func NewTracker(cfg Config) *Tracker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	t := &Tracker{
		cfg:  cfg,
		idle: make(chan struct{}),
		stop: make(chan struct{}),
	}
	t.touch()
	return t
}

func (t *Tracker) touch() {
	t.lastActivity.Store(time.Now().UnixNano())
}

// Middleware counts requests outside ExcludePaths.
func (t *Tracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, p := range t.cfg.ExcludePaths {
			if strings.HasPrefix(r.URL.Path, p) {
				next.ServeHTTP(w, r)
				return
			}
		}

		t.inFlight.Add(1)
		t.touch()
		defer func() {
			t.touch()
			t.inFlight.Add(-1)
		}()
		next.ServeHTTP(w, r)
	})
}

// InFlight returns the number of tracked requests being served.
func (t *Tracker) InFlight() int64 {
	return t.inFlight.Load()
}

// Drain blocks until no tracked request is in flight or ctx is done.
func (t *Tracker) Drain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for t.InFlight() > 0 {
		select {
		case <-ctx.Done():
			t.cfg.Logger.Warn("drain timed out", "in_flight", t.InFlight())
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Idle returns a channel closed once the idle timeout elapses.
// It never closes when idle detection is disabled.
func (t *Tracker) Idle() <-chan struct{} {
	return t.idle
}

// Start begins idle detection if IdleTimeout is set.
func (t *Tracker) Start() {
	if t.cfg.IdleTimeout <= 0 {
		return
	}
	t.cfg.Logger.Info("idle monitoring started", "timeout", t.cfg.IdleTimeout, "exclude_paths", t.cfg.ExcludePaths)
	go t.run(checkInterval(t.cfg.IdleTimeout))
}

// Stop ends idle detection.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// checkInterval polls six times per timeout, clamped to [1s, 30s].
func checkInterval(timeout time.Duration) time.Duration {
	return min(max(timeout/6, time.Second), 30*time.Second)
}

func (t *Tracker) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if t.InFlight() > 0 || (t.cfg.Busy != nil && t.cfg.Busy()) {
				t.touch()
				continue
			}
			idleFor := time.Since(time.Unix(0, t.lastActivity.Load()))
			if idleFor >= t.cfg.IdleTimeout {
				t.cfg.Logger.Info("idle timeout reached, signaling graceful shutdown",
					"idle_time", idleFor,
					"timeout", t.cfg.IdleTimeout,
				)
				close(t.idle)
				return
			}
		}
	}
}
