package visit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunOverdueSweeper calls SweepOverdue every interval until ctx is done.
func RunOverdueSweeper(ctx context.Context, svc Service, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		logger.Info("overdue sweeper disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := svc.SweepOverdue(ctx); err != nil && ctx.Err() == nil {
			logger.Error("overdue sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
