package progress

import (
	"context"
	"time"

	"github.com/voicelab/auris/core"
	"github.com/voicelab/auris/core/program"
)

// Align reconciles the actor's progress with the wall clock: an elapsed due
// date invalidates the active session, an elapsed unlock timer promotes the
// next track(s) to READY. Safe to call any number of times; a record that is
// already aligned comes back untouched.
func (svc *Service) Align(ctx context.Context, actor Actor) (UserProgress, error) {
	up, err := svc.repo.GetUserProgress(ctx, actor.ID)
	if err != nil {
		return UserProgress{}, err
	}
	prog, err := svc.programs.GetByID(ctx, up.ProgramID)
	if err != nil {
		return UserProgress{}, err
	}

	now := svc.clock.Now()
	if !alignProgress(&up, prog, now) {
		return up, nil
	}
	return up, svc.saveActive(ctx, &up, now)
}

// alignProgress applies elapsed-time transitions in place and reports whether
// anything changed. Invalidation wins over unlocking when both have elapsed.
func alignProgress(up *UserProgress, prog program.Program, now time.Time) bool {
	if up.Status == StatusInvalid || up.Status == StatusDone {
		return false
	}
	sess := up.ActiveSession()
	if sess == nil {
		return false
	}

	if up.NextDueDate != nil && now.After(*up.NextDueDate) {
		invalidateSession(sess)
		up.Status = StatusInvalid
		up.NextDueDate, up.TimeoutEndDate = nil, nil
		return true
	}

	if up.Status == StatusWaiting && up.TimeoutEndDate != nil && now.After(*up.TimeoutEndDate) {
		unlockSession(sess, up.FavoriteFeature, up.IsLastSession(prog))
		up.Status = StatusReady
		// the due-date safety net stays armed until the submission lands
		up.TimeoutEndDate = nil
		return true
	}
	return false
}

// Revalidate reopens an invalidated progress, restoring every INVALID track of
// the active session to an actionable state. A pending assessment still gates
// the trainings.
func (svc *Service) Revalidate(ctx context.Context, actor Actor) (UserProgress, error) {
	up, err := svc.repo.GetUserProgress(ctx, actor.ID)
	if err != nil {
		return UserProgress{}, err
	}
	sess := up.ActiveSession()
	if sess == nil {
		return up, nil
	}
	prog, err := svc.programs.GetByID(ctx, up.ProgramID)
	if err != nil {
		return UserProgress{}, err
	}

	// settle any transition that already elapsed before recovering
	now := svc.clock.Now()
	aligned := alignProgress(&up, prog, now)
	if up.Status != StatusInvalid {
		if aligned {
			return up, svc.saveActive(ctx, &up, now)
		}
		return up, nil
	}

	restore := func(st *Status) {
		if *st == StatusInvalid {
			*st = StatusWaiting
		}
	}
	restore(&sess.AssessmentStatus)
	restore(&sess.TrainingRoughnessStatus)
	restore(&sess.TrainingBreathinessStatus)
	unlockSession(sess, up.FavoriteFeature, up.IsLastSession(prog))

	up.Status = StatusReady
	up.NextDueDate, up.TimeoutEndDate = nil, nil
	return up, svc.saveActive(ctx, &up, now)
}

// ClearTimeout forces the unlock step without waiting for the timer, for
// support tooling. A progress that is not waiting is left alone.
func (svc *Service) ClearTimeout(ctx context.Context, actor Actor) (UserProgress, error) {
	up, err := svc.repo.GetUserProgress(ctx, actor.ID)
	if err != nil {
		return UserProgress{}, err
	}
	if up.Status != StatusWaiting {
		return up, nil
	}
	sess := up.ActiveSession()
	if sess == nil {
		return up, nil
	}
	prog, err := svc.programs.GetByID(ctx, up.ProgramID)
	if err != nil {
		return UserProgress{}, err
	}

	unlockSession(sess, up.FavoriteFeature, up.IsLastSession(prog))
	up.Status = StatusReady
	up.TimeoutEndDate = nil
	return up, svc.saveActive(ctx, &up, svc.clock.Now())
}

func invalidateSession(sess *Session) {
	invalidate := func(st *Status) {
		if *st == StatusReady || *st == StatusWaiting {
			*st = StatusInvalid
		}
	}
	invalidate(&sess.AssessmentStatus)
	invalidate(&sess.TrainingRoughnessStatus)
	invalidate(&sess.TrainingBreathinessStatus)
}

// unlockSession promotes the next actionable track(s): a waiting assessment
// first; otherwise all waiting trainings on the last session or while no
// favorite is set; otherwise the favorite's track, falling back to its
// sibling.
func unlockSession(sess *Session, favorite program.Feature, last bool) {
	if sess.AssessmentStatus == StatusWaiting {
		sess.AssessmentStatus = StatusReady
		return
	}

	promote := func(f program.Feature) bool {
		if sess.TrainingStatus(f) == StatusWaiting {
			sess.SetTrainingStatus(f, StatusReady)
			return true
		}
		return false
	}
	if last || !favorite.IsValid() {
		promote(program.Roughness)
		promote(program.Breathiness)
		return
	}
	if !promote(favorite) {
		promote(favorite.Other())
	}
}

// saveActive persists the active session and the progress record atomically.
func (svc *Service) saveActive(ctx context.Context, up *UserProgress, now time.Time) error {
	sess := up.ActiveSession()
	sess.UpdatedAt = now
	up.UpdatedAt = now
	return core.RunAtomic(ctx, svc.db, func(tx core.DBTransactor) error {
		if err := svc.repo.UpdateSession(ctx, up.ID, len(up.Sessions), sess, tx); err != nil {
			return err
		}
		return svc.repo.UpdateUserProgress(ctx, up, tx)
	})
}
