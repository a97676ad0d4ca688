// Package sweepersvc runs the periodic safety net behind time-driven progress
// transitions: users who never come back still get invalidated or unlocked on
// schedule.
package sweepersvc

import (
	"context"
	"time"

	"github.com/voicelab/auris/core"
	"github.com/voicelab/auris/core/progress"
)

type Sweeper struct {
	repo     progress.Repository
	svc      *progress.Service
	clock    core.Clock
	log      core.Logger
	interval time.Duration
}

func NewSweeper(repo progress.Repository, svc *progress.Service, clock core.Clock, log core.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{repo: repo, svc: svc, clock: clock, log: log, interval: interval}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepExpired(ctx); err != nil {
				s.log.Error("sweeping expired progress", "error", err)
			}
		}
	}
}

// SweepExpired reconciles every progress record whose due date or unlock timer
// has elapsed. Individual failures are logged and skipped so one bad record
// cannot stall the sweep.
func (s *Sweeper) SweepExpired(ctx context.Context) error {
	refs, err := s.repo.QueryExpired(ctx, s.clock.Now())
	if err != nil {
		return err
	}

	var aligned int
	for _, ref := range refs {
		if _, err := s.svc.Align(ctx, progress.Actor{ID: ref.UserID}); err != nil {
			s.log.Error("aligning progress", "progress", ref.ProgressID, "error", err)
			continue
		}
		aligned++
	}
	if len(refs) > 0 {
		s.log.Info("progress sweep done", "expired", len(refs), "aligned", aligned)
	}
	return nil
}
