package metrics

import (
	"context"
	"log/slog"
	"time"
)

// Stats is a point-in-time snapshot of server activity.
type Stats struct {
	Sessions int
	Pending  int
	Clients  int
}

// RunStats logs a snapshot every interval until ctx is canceled. Quiet
// periods with no sessions and no pending traffic are skipped.
func RunStats(ctx context.Context, interval time.Duration, snapshot func() Stats) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := snapshot()
			if s.Sessions > 0 || s.Pending > 0 {
				slog.Info("server stats",
					"sessions", s.Sessions,
					"pending", s.Pending,
					"world_clients", s.Clients)
			}
		}
	}
}
