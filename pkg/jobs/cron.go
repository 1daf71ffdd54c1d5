// Package jobs runs scheduled maintenance for subscriptions.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jordanlanch/colorbook/pkg/logger"
)

// sweepTimeout bounds a single expiry sweep
const sweepTimeout = 5 * time.Minute

// ExpiryStore downgrades subscriptions whose expiry has passed.
type ExpiryStore interface {
	DowngradeAllExpired(ctx context.Context, now time.Time) (int64, error)
}

// CronManager manages scheduled jobs
type CronManager struct {
	cron   *cron.Cron
	store  ExpiryStore
	logger logger.Logger
	now    func() time.Time
}

// NewCronManager creates a new cron manager
func NewCronManager(store ExpiryStore, log logger.Logger) *CronManager {
	if log == nil {
		log = logger.Discard()
	}

	return &CronManager{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		store:  store,
		logger: log.With("component", "jobs"),
		now:    time.Now,
	}
}

// SetupJobs registers the expiry sweep on a standard five-field cron
// schedule. Requests still downgrade lazily between sweeps; the sweep keeps
// stored state honest for users who never come back.
func (cm *CronManager) SetupJobs(schedule string) error {
	_, err := cm.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		if _, err := cm.SweepExpired(ctx); err != nil {
			cm.logger.Error("expiry sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid expiry sweep schedule %q: %w", schedule, err)
	}

	cm.logger.Info("cron jobs configured", "expiry_sweep", schedule)
	return nil
}

// SweepExpired downgrades all expired subscriptions now. It is also what the
// scheduled job runs.
func (cm *CronManager) SweepExpired(ctx context.Context) (int64, error) {
	n, err := cm.store.DowngradeAllExpired(ctx, cm.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		cm.logger.Info("expired subscriptions downgraded", "count", n)
	}
	return n, nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Info("starting cron scheduler")
	cm.cron.Start()
}

// Stop stops the scheduler and waits for a running job to finish or ctx to
// expire.
func (cm *CronManager) Stop(ctx context.Context) {
	cm.logger.Info("stopping cron scheduler")
	select {
	case <-cm.cron.Stop().Done():
	case <-ctx.Done():
		cm.logger.Warn("cron job still running at shutdown")
	}
}
