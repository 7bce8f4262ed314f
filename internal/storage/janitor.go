package storage

import (
	"context"
	"log/slog"
	"time"
)

// RunJanitor evicts terminal jobs older than retention every interval until ctx is done.
// A non-positive retention disables eviction and returns immediately.
func (s *Storage) RunJanitor(ctx context.Context, interval, retention time.Duration) {
	if retention <= 0 {
		s.logger.Debug("Job janitor disabled - unbounded retention")
		return
	}

	if interval <= 0 {
		interval = retention
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Job janitor started",
		slog.Duration("interval", interval),
		slog.Duration("retention", retention),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Job janitor stopped - context canceled")
			return

		case <-ticker.C:
			removed := s.PruneFinalized(ctx, s.now().Add(-retention))
			if removed > 0 {
				s.logger.Info("Expired jobs evicted",
					slog.Int("removed", removed),
				)
			}
		}
	}
}
