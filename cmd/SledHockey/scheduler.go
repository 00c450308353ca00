package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sebuszqo/SledHockey/internal/config"
	log "github.com/sirupsen/logrus"
)

const sweepTimeout = 5 * time.Minute

type abandonedSweeper interface {
	SweepAbandoned(ctx context.Context, olderThan time.Duration) (int, error)
}

// StartSweepScheduler cancels stale pending payment intents on the configured
// schedule. Overlapping runs are skipped.
func StartSweepScheduler(sweeper abandonedSweeper, cfg config.DonationConfig) (*cron.Cron, error) {
	logger := log.WithField("component", "sweeper")
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(cfg.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		canceled, err := sweeper.SweepAbandoned(ctx, cfg.PendingIntentTTL)
		if err != nil {
			logger.WithError(err).Error("error sweeping abandoned payment intents")
			return
		}
		logger.WithField("canceled", canceled).Info("abandoned payment intents swept")
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
