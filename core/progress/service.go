package progress

import (
	"context"
	"errors"
	"time"

	"github.com/voicelab/auris/core"
	"github.com/voicelab/auris/core/answer"
	"github.com/voicelab/auris/core/program"
)

var (
	// errors
	ErrNotFound          = errors.New("progress not found")
	ErrExists            = errors.New("user is already enrolled in a program")
	ErrNotReady          = errors.New("this step is not ready for submission")
	ErrInvalidated       = errors.New("progress has been invalidated")
	ErrAssessmentNotDone = errors.New("the session's assessment must be completed first")
)

type (
	// Actor is the authenticated user an operation runs on behalf of. Name and
	// Email feed the notification emails; background jobs leave them empty.
	Actor struct {
		ID    string
		Name  string
		Email string
	}

	// UserRef identifies a progress record due for reconciliation.
	UserRef struct {
		ProgressID string `db:"id"`
		UserID     string `db:"user_id"`
	}

	Repository interface {
		GetUserProgress(ctx context.Context, userID string, exec ...core.DBExecutor) (UserProgress, error)
		CreateUserProgress(ctx context.Context, up *UserProgress, exec ...core.DBExecutor) error
		UpdateUserProgress(ctx context.Context, up *UserProgress, exec ...core.DBExecutor) error
		// CreateSession appends a session at the 1-based position.
		CreateSession(ctx context.Context, progressID string, position int, sess *Session, exec ...core.DBExecutor) error
		UpdateSession(ctx context.Context, progressID string, position int, sess *Session, exec ...core.DBExecutor) error
		DeleteSessions(ctx context.Context, progressID string, exec ...core.DBExecutor) error
		// QueryExpired returns every progress record whose due date or unlock
		// timer has passed.
		QueryExpired(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]UserRef, error)
	}

	// ProgramLookup is the slice of the program service this package needs.
	ProgramLookup interface {
		GetByID(ctx context.Context, id string) (program.Program, error)
	}

	Service struct {
		db        core.DB
		repo      Repository
		programs  ProgramLookup
		scores    *answer.Service
		mailSvc   core.EmailService
		mailSched core.EmailScheduler
		clock     core.Clock
		log       core.Logger
		cooldown  core.CooldownConfig
	}
)

func NewService(
	db core.DB,
	repo Repository,
	programs ProgramLookup,
	scores *answer.Service,
	mailSvc core.EmailService,
	mailSched core.EmailScheduler,
	clock core.Clock,
	log core.Logger,
	cooldown core.CooldownConfig,
) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		programs:  programs,
		scores:    scores,
		mailSvc:   mailSvc,
		mailSched: mailSched,
		clock:     clock,
		log:       log,
		cooldown:  cooldown,
	}
}

// Enroll creates the actor's progress on a program, opening the first session
// with its assessment ready.
func (svc *Service) Enroll(ctx context.Context, actor Actor, programID string) (UserProgress, error) {
	if _, err := svc.repo.GetUserProgress(ctx, actor.ID); err == nil {
		return UserProgress{}, ErrExists
	} else if err != ErrNotFound {
		return UserProgress{}, err
	}

	prog, err := svc.programs.GetByID(ctx, programID)
	if err != nil {
		return UserProgress{}, err
	}

	now := svc.clock.Now()
	up := UserProgress{
		UserID:    actor.ID,
		ProgramID: prog.ID,
		Status:    StatusReady,
		CreatedAt: now,
		UpdatedAt: now,
	}
	sess := NewSession(1, svc.cooldown.AssessmentEvery)
	sess.CreatedAt, sess.UpdatedAt = now, now

	err = core.RunAtomic(ctx, svc.db, func(tx core.DBTransactor) error {
		if err := svc.repo.CreateUserProgress(ctx, &up, tx); err != nil {
			return err
		}
		return svc.repo.CreateSession(ctx, up.ID, 1, &sess, tx)
	})
	if err != nil {
		return UserProgress{}, err
	}
	up.Sessions = []Session{sess}
	return up, nil
}

func (svc *Service) Get(ctx context.Context, actor Actor) (UserProgress, error) {
	return svc.repo.GetUserProgress(ctx, actor.ID)
}

// SubmitAssessment grades an assessment run and opens the session's trainings.
// Both trainings open at once on the first and last sessions; otherwise only
// the favorite's opens, and with no favorite yet both stay queued.
func (svc *Service) SubmitAssessment(ctx context.Context, actor Actor, in AssessmentInput) (UserProgress, error) {
	up, err := svc.repo.GetUserProgress(ctx, actor.ID)
	if err != nil {
		return UserProgress{}, err
	}
	if up.Status == StatusInvalid {
		return UserProgress{}, ErrInvalidated
	}
	if up.Status != StatusReady {
		return UserProgress{}, ErrNotReady
	}
	sess := up.ActiveSession()
	if sess == nil || sess.AssessmentStatus != StatusReady {
		return UserProgress{}, ErrNotReady
	}

	prog, err := svc.programs.GetByID(ctx, up.ProgramID)
	if err != nil {
		return UserProgress{}, err
	}
	threshold := prog.Threshold(len(up.Sessions))
	rough, breath, err := svc.scores.ComputeAssessmentResults(prog.Assessment, in.Audios, threshold)
	if err != nil {
		return UserProgress{}, err
	}

	now := svc.clock.Now()
	sess.AssessmentStatus = StatusDone
	sess.AssessmentRoughnessResults = &TrackResults{StartDate: in.StartDate, EndDate: in.EndDate, Audios: rough}
	sess.AssessmentBreathinessResults = &TrackResults{StartDate: in.StartDate, EndDate: in.EndDate, Audios: breath}
	sess.UpdatedAt = now

	first := len(up.Sessions) == 1
	if first || up.IsLastSession(prog) {
		sess.AdvanceTraining(program.Roughness, StatusReady)
		sess.AdvanceTraining(program.Breathiness, StatusReady)
	} else if up.FavoriteFeature.IsValid() {
		sess.AdvanceTraining(up.FavoriteFeature, StatusReady)
	}

	due := in.StartDate.Add(svc.cooldown.AssessmentDue)
	up.Status = StatusReady
	up.NextDueDate = &due
	up.TimeoutEndDate = nil
	if err = svc.saveActive(ctx, &up, now); err != nil {
		return UserProgress{}, err
	}
	return up, nil
}

// SubmitTraining grades a training run for one feature and moves the session
// forward: into a one-day rest when the sibling training is still pending,
// into the week-long between-sessions rest when the session completes, or to
// the finished state after the last session.
func (svc *Service) SubmitTraining(ctx context.Context, actor Actor, in TrainingInput) (UserProgress, error) {
	up, err := svc.repo.GetUserProgress(ctx, actor.ID)
	if err != nil {
		return UserProgress{}, err
	}
	if up.Status == StatusInvalid {
		return UserProgress{}, ErrInvalidated
	}
	if up.Status != StatusReady {
		return UserProgress{}, ErrNotReady
	}
	sess := up.ActiveSession()
	if sess == nil {
		return UserProgress{}, ErrNotFound
	}
	if !sess.AssessmentStatus.Finished() {
		return UserProgress{}, ErrAssessmentNotDone
	}
	if sess.TrainingStatus(in.Feature) != StatusReady {
		return UserProgress{}, ErrNotReady
	}

	prog, err := svc.programs.GetByID(ctx, up.ProgramID)
	if err != nil {
		return UserProgress{}, err
	}
	threshold := prog.Threshold(len(up.Sessions))
	results, err := svc.scores.ComputeTrainingResults(prog.Training, in.Feature, in.Audios, threshold)
	if err != nil {
		return UserProgress{}, err
	}

	now := svc.clock.Now()
	prev := *sess
	sess.SetTrainingStatus(in.Feature, StatusDone)
	sess.SetTrainingResults(in.Feature, &TrackResults{StartDate: in.StartDate, EndDate: in.EndDate, Audios: results})
	sess.UpdatedAt = now

	// the first feature a user ever trains becomes their favorite
	if !up.FavoriteFeature.IsValid() {
		up.FavoriteFeature = in.Feature
	}

	last := up.IsLastSession(prog)
	otherStatus := StatusWaiting
	if last {
		otherStatus = StatusReady
	}
	sess.AdvanceTraining(in.Feature.Other(), otherStatus)

	var newSess *Session
	switch ClassifyTransition(prev, *sess) {
	case CooldownSingleFeature:
		due := in.StartDate.Add(svc.cooldown.TrainingDue)
		timeout := in.StartDate.Add(svc.cooldown.TrainingTimeout)
		up.Status = StatusWaiting
		up.NextDueDate, up.TimeoutEndDate = &due, &timeout

	case CooldownSessionComplete:
		if last {
			up.Status = StatusDone
			up.NextDueDate, up.TimeoutEndDate = nil, nil
			break
		}
		marker := sessionMarker(sess, up.FavoriteFeature)
		due := marker.Add(svc.cooldown.SessionDue)
		timeout := marker.Add(svc.cooldown.SessionTimeout)
		up.Status = StatusWaiting
		up.NextDueDate, up.TimeoutEndDate = &due, &timeout

		next := NewSession(len(up.Sessions)+1, svc.cooldown.AssessmentEvery)
		next.CreatedAt, next.UpdatedAt = now, now
		newSess = &next
	}
	up.UpdatedAt = now

	err = core.RunAtomic(ctx, svc.db, func(tx core.DBTransactor) error {
		if err := svc.repo.UpdateSession(ctx, up.ID, len(up.Sessions), sess, tx); err != nil {
			return err
		}
		if newSess != nil {
			if err := svc.repo.CreateSession(ctx, up.ID, len(up.Sessions)+1, newSess, tx); err != nil {
				return err
			}
		}
		return svc.repo.UpdateUserProgress(ctx, &up, tx)
	})
	if err != nil {
		return UserProgress{}, err
	}
	if newSess != nil {
		up.Sessions = append(up.Sessions, *newSess)
	}

	switch {
	case up.Status == StatusDone:
		svc.sendProgramCompletedEmail(actor)
	case up.Status == StatusWaiting:
		svc.sendCooldownEmail(ctx, actor, up)
	}
	return up, nil
}

// Restart wipes every session and reopens the program from session one.
func (svc *Service) Restart(ctx context.Context, actor Actor) (UserProgress, error) {
	up, err := svc.repo.GetUserProgress(ctx, actor.ID)
	if err != nil {
		return UserProgress{}, err
	}

	now := svc.clock.Now()
	sess := NewSession(1, svc.cooldown.AssessmentEvery)
	sess.CreatedAt, sess.UpdatedAt = now, now

	up.Status = StatusReady
	up.NextDueDate, up.TimeoutEndDate = nil, nil
	up.FavoriteFeature = ""
	up.UpdatedAt = now

	err = core.RunAtomic(ctx, svc.db, func(tx core.DBTransactor) error {
		if err := svc.repo.DeleteSessions(ctx, up.ID, tx); err != nil {
			return err
		}
		if err := svc.repo.CreateSession(ctx, up.ID, 1, &sess, tx); err != nil {
			return err
		}
		return svc.repo.UpdateUserProgress(ctx, &up, tx)
	})
	if err != nil {
		return UserProgress{}, err
	}
	up.Sessions = []Session{sess}
	return up, nil
}

// sessionMarker is the instant the completed session began: the assessment's
// start when the session had one, else the favorite training's start.
func sessionMarker(sess *Session, favorite program.Feature) time.Time {
	if sess.AssessmentStatus == StatusDone && sess.AssessmentRoughnessResults != nil {
		return sess.AssessmentRoughnessResults.StartDate
	}
	if res := sess.TrainingResults(favorite); res != nil {
		return res.StartDate
	}
	return sess.UpdatedAt
}
