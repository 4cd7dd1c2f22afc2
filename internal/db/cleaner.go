package db

import (
	"context"
	"time"

	"github.com/hase-lab/accountd/internal/metrics"
	"go.uber.org/zap"
)

// SessionPurger deletes sessions that ended before cutoff.
type SessionPurger interface {
	DeleteStaleSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// StartSessionCleaner periodically removes sessions that expired or were
// revoked more than retention ago. It stops when ctx is done.
func StartSessionCleaner(
	ctx context.Context,
	purger SessionPurger,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-retention)
				removed, err := purger.DeleteStaleSessions(ctx, cutoff)
				if err != nil {
					log.Error("failed to clean stale sessions", zap.Error(err))
					continue
				}
				if removed > 0 {
					metrics.RecordSessionsCleaned(removed)
					log.Info("cleaned stale sessions", zap.Int64("removed", removed))
				}
			}
		}
	}()
}
