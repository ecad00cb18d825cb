package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/wallet-engine/internal/metrics"
	"github.com/jmylchreest/wallet-engine/internal/repository"
)

// CleanupService purges idempotency keys once retries can no longer arrive.
// Transactions are never deleted; they are the audit trail.
type CleanupService struct {
	idempotency repository.IdempotencyRepository
	now         func() time.Time
	logger      *slog.Logger
	running     atomic.Bool
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(idempotency repository.IdempotencyRepository, logger *slog.Logger) *CleanupService {
	return &CleanupService{
		idempotency: idempotency,
		now:         time.Now,
		logger:      logger.With("component", "cleanup"),
	}
}

// CleanupResult contains the results of a cleanup operation.
type CleanupResult struct {
	KeysDeleted int64
	Cutoff      time.Time
}

// PurgeIdempotencyKeys deletes keys recorded more than retention ago.
func (s *CleanupService) PurgeIdempotencyKeys(ctx context.Context, retention time.Duration) (*CleanupResult, error) {
	s.running.Store(true)
	defer s.running.Store(false)

	cutoff := s.now().Add(-retention)
	s.logger.InfoContext(ctx, "starting idempotency key cleanup",
		"retention", retention.String(),
		"cutoff", cutoff.Format(time.RFC3339),
	)

	deleted, err := s.idempotency.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		metrics.CleanupRuns.WithLabelValues("error").Inc()
		return nil, internalError("purge idempotency keys", err)
	}
	metrics.CleanupRuns.WithLabelValues("ok").Inc()
	metrics.IdempotencyKeysPurged.Add(float64(deleted))

	s.logger.InfoContext(ctx, "cleanup completed", "keys_deleted", deleted)
	return &CleanupResult{KeysDeleted: deleted, Cutoff: cutoff}, nil
}

// Running reports whether a purge is in progress.
func (s *CleanupService) Running() bool {
	return s.running.Load()
}

// RunScheduledCleanup runs the cleanup task as a background goroutine.
// It runs immediately on start and then at the specified interval.
func (s *CleanupService) RunScheduledCleanup(ctx context.Context, retention, interval time.Duration) {
	s.logger.InfoContext(ctx, "starting scheduled cleanup",
		"retention", retention.String(),
		"interval", interval.String(),
	)

	if _, err := s.PurgeIdempotencyKeys(ctx, retention); err != nil {
		s.logger.ErrorContext(ctx, "initial cleanup failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "scheduled cleanup stopped")
			return
		case <-ticker.C:
			if _, err := s.PurgeIdempotencyKeys(ctx, retention); err != nil {
				s.logger.ErrorContext(ctx, "scheduled cleanup failed", "error", err)
			}
		}
	}
}
