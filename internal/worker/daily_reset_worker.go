package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/conversation-queue-service/internal/service"
)

// StartDailyResetWorker zeroes per-agent daily counters at each local
// midnight until the context is cancelled.
func StartDailyResetWorker(ctx context.Context, queueService *service.QueueService, logger *zap.Logger) {
	go func() {
		for {
			now := time.Now()
			next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
			timer := time.NewTimer(next.Sub(now))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				queueService.ResetDailyCounters()
				logger.Info("daily agent counters reset")
			}
		}
	}()
}
