package scheduler

import (
	"context"
	"errors"
	"time"

	"templeseva_backend/internals/features/donations/donations/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const runTimeout = 10 * time.Minute

type Runner interface {
	Run(ctx context.Context, opts service.ReconcileOptions) (service.Report, error)
	Defaults() service.ReconcileOptions
}

// RegisterReconcile schedules reconciliation runs on the cron schedule. An empty schedule
// schedules nothing.
func RegisterReconcile(c *cron.Cron, schedule string, r Runner, log *zap.Logger) error {
	if schedule == "" {
		return nil
	}
	log = log.Named("reconcile_job")
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		if _, err := r.Run(ctx, r.Defaults()); err != nil {
			if errors.Is(err, service.ErrReconcileRunning) {
				log.Info("previous run still active, skipped")
				return
			}
			log.Error("scheduled reconciliation failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	log.Info("reconciliation scheduled", zap.String("schedule", schedule))
	return nil
}
