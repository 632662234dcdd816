// Package jobs runs background maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// DefaultPurgeSchedule runs the OAuth state purge every fifteen minutes.
const DefaultPurgeSchedule = "*/15 * * * *"

// StatePurger deletes expired OAuth states.
type StatePurger interface {
	PurgeExpiredStates(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron   *cron.Cron
	purger StatePurger
}

func NewScheduler(purger StatePurger) *Scheduler {
	return &Scheduler{cron: cron.New(), purger: purger}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context, purgeSchedule string) error {
	if purgeSchedule == "" {
		purgeSchedule = DefaultPurgeSchedule
	}
	if _, err := s.cron.AddFunc(purgeSchedule, func() { PurgeStates(ctx, s.purger) }); err != nil {
		return fmt.Errorf("schedule state purge %q: %w", purgeSchedule, err)
	}
	s.cron.Start()
	log.WithField("purge_schedule", purgeSchedule).Info("scheduler started")
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info("scheduler stopped")
}

// PurgeStates runs one purge and logs the outcome.
func PurgeStates(ctx context.Context, purger StatePurger) int64 {
	n, err := purger.PurgeExpiredStates(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] purge expired oauth states failed")
		return 0
	}
	if n > 0 {
		log.WithField("purged", n).Info("[CRON] purged expired oauth states")
	}
	return n
}
