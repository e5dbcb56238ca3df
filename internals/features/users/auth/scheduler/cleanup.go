package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CleanupSchedule runs daily at 03:10.
const CleanupSchedule = "10 3 * * *"

// staleAfter keeps used or expired credentials around for a day for support lookups.
const staleAfter = 24 * time.Hour

type Purger interface {
	PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// RegisterTokenCleanup adds the daily magic-link/OTP cleanup to c.
func RegisterTokenCleanup(c *cron.Cron, p Purger, log *zap.Logger) (cron.EntryID, error) {
	log = log.Named("token_cleanup")
	return c.AddFunc(CleanupSchedule, func() {
		RunTokenCleanup(context.Background(), p, log)
	})
}

func RunTokenCleanup(ctx context.Context, p Purger, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	n, err := p.PurgeStale(ctx, time.Now().Add(-staleAfter))
	if err != nil {
		log.Error("cleanup failed", zap.Error(err))
		return
	}
	log.Info("cleanup finished", zap.Int64("deleted", n))
}
