package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"templeseva_backend/internals/features/donations/donations/model"
	"templeseva_backend/internals/features/donations/donations/repository"

	"go.uber.org/zap"
)

var ErrReconcileRunning = errors.New("reconciliation already running")

type ReconcileOptions struct {
	// OlderThan skips donations younger than this; they may still be paying.
	OlderThan time.Duration
	// MaxAge skips donations older than this. Zero means no bound.
	MaxAge    time.Duration
	BatchSize int
}

type Report struct {
	Checked   int `json:"checked"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Errors    int `json:"errors"`
}

// Reconciler re-polls the gateway for donations stuck in PENDING.
type Reconciler struct {
	repo      repository.Repository
	processor *Processor
	defaults  ReconcileOptions
	running   atomic.Bool
	log       *zap.Logger
	now       func() time.Time
}

func NewReconciler(repo repository.Repository, processor *Processor, defaults ReconcileOptions, log *zap.Logger) *Reconciler {
	if defaults.BatchSize <= 0 {
		defaults.BatchSize = 100
	}
	return &Reconciler{
		repo:      repo,
		processor: processor,
		defaults:  defaults,
		log:       log.Named("reconcile"),
		now:       time.Now,
	}
}

func (r *Reconciler) Defaults() ReconcileOptions { return r.defaults }

// Run checks one batch, oldest first. A gateway error on one donation is
// counted and the batch continues. Runs in the same process never overlap;
// runs from other processes are serialized per donation by the row lock.
func (r *Reconciler) Run(ctx context.Context, opts ReconcileOptions) (Report, error) {
	var rep Report
	if !r.running.CompareAndSwap(false, true) {
		return rep, ErrReconcileRunning
	}
	defer r.running.Store(false)

	if opts.BatchSize <= 0 {
		opts.BatchSize = r.defaults.BatchSize
	}

	now := r.now()
	before := now.Add(-opts.OlderThan)
	var after time.Time
	if opts.MaxAge > 0 {
		after = now.Add(-opts.MaxAge)
	}

	pending, err := r.repo.ListStalePending(ctx, before, after, opts.BatchSize)
	if err != nil {
		return rep, err
	}

	for i := range pending {
		if err := ctx.Err(); err != nil {
			r.log.Warn("reconciliation interrupted", zap.Int("checked", rep.Checked), zap.Error(err))
			return rep, err
		}
		r.check(ctx, &pending[i], &rep)
	}

	r.log.Info("reconciliation finished",
		zap.Int("checked", rep.Checked),
		zap.Int("succeeded", rep.Succeeded),
		zap.Int("failed", rep.Failed),
		zap.Int("errors", rep.Errors),
	)
	return rep, nil
}

func (r *Reconciler) check(ctx context.Context, d *model.Donation, rep *Report) {
	rep.Checked++
	res, err := r.processor.Refresh(ctx, d, model.EventSourcePoll)
	if err != nil {
		rep.Errors++
		r.log.Warn("status poll failed",
			zap.String("merchant_order_id", d.DonationMerchantOrderID),
			zap.Error(err),
		)
		return
	}
	switch res.Outcome {
	case OutcomePaid:
		rep.Succeeded++
	case OutcomeFailed:
		rep.Failed++
	}
}
