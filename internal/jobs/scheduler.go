// Package jobs runs the background reconciliation sweep on a cron schedule.
// Each tick picks rounds stuck in "resulted" and reconciles them so wagers
// deferred by an earlier run still get paid.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/settlement-engine/internal/common"
	"serotonyl.ru/settlement-engine/internal/features/rounds"
	"serotonyl.ru/settlement-engine/internal/features/settlement"
)

type RoundLister interface {
	ListByState(ctx context.Context, state rounds.State, minAge time.Duration, limit int) ([]*rounds.Round, error)
}

type Reconciler interface {
	ReconcileRound(ctx context.Context, roundID int64) (settlement.Summary, error)
}

// SweepOptions configure the sweep.
type SweepOptions struct {
	Schedule string // cron expression, e.g. "@every 5m"
	MinAge   time.Duration
	Batch    int
	Location *time.Location
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron       *cron.Cron
	rounds     RoundLister
	reconciler Reconciler
	opts       SweepOptions

	// a slow sweep must not overlap with the next tick
	running sync.Mutex
}

func NewScheduler(lister RoundLister, reconciler Reconciler, opts SweepOptions) *Scheduler {
	if opts.Schedule == "" {
		opts.Schedule = "@every 5m"
	}
	if opts.Batch <= 0 {
		opts.Batch = 50
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(opts.Location)),
		rounds:     lister,
		reconciler: reconciler,
		opts:       opts,
	}
}

// Start registers the sweep and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.opts.Schedule, func() { s.Sweep(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	log.WithFields(log.Fields{
		"schedule": s.opts.Schedule,
		"min_age":  s.opts.MinAge.String(),
		"batch":    s.opts.Batch,
	}).Info("reconcile sweep scheduled")
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("scheduler stopped")
}

// SweepStats counts what one sweep did.
type SweepStats struct {
	Rounds  int
	Settled int
	Skipped int
	Failed  int
	Paid    int64
}

// Sweep reconciles one batch of resulted rounds. Rounds locked by another
// run are skipped quietly and picked up next tick.
func (s *Scheduler) Sweep(ctx context.Context) SweepStats {
	var stats SweepStats
	if !s.running.TryLock() {
		log.Debug("[CRON] previous sweep still running")
		return stats
	}
	defer s.running.Unlock()

	list, err := s.rounds.ListByState(ctx, rounds.StateResulted, s.opts.MinAge, s.opts.Batch)
	if err != nil {
		log.WithError(err).Error("[CRON] list resulted rounds")
		return stats
	}

	for _, r := range list {
		if ctx.Err() != nil {
			break
		}
		stats.Rounds++
		summary, err := s.reconciler.ReconcileRound(ctx, r.ID)
		switch {
		case errors.Is(err, common.ErrSettlementInProgress):
			stats.Skipped++
		case err != nil:
			stats.Failed++
			log.WithError(err).WithField("round_id", r.ID).Error("[CRON] reconcile failed")
		default:
			stats.Paid += summary.TotalPaid
			if summary.RoundSettled {
				stats.Settled++
			}
		}
	}

	if stats.Rounds > 0 {
		log.WithFields(log.Fields{
			"rounds":  stats.Rounds,
			"settled": stats.Settled,
			"skipped": stats.Skipped,
			"failed":  stats.Failed,
			"paid":    common.FormatAmount(stats.Paid),
		}).Info("[CRON] reconcile sweep finished")
	}
	return stats
}
