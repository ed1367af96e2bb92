package ledger

import (
	"context"
	"log/slog"
	"time"
)

type Sweeper struct {
	Ledger   Ledger
	Interval time.Duration
	Logger   *slog.Logger
}

// Run purges expired records every Interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.Ledger.PurgeExpired(ctx)
	if err != nil {
		s.Logger.Error("ledger_sweep_failed", "error", err)
		return
	}
	if n > 0 {
		s.Logger.Info("ledger_sweep", "purged", n)
	}
}
