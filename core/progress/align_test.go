package progress

import (
	"context"
	"testing"
	"time"

	"github.com/voicelab/auris/core/program"
)

func timePtr(t time.Time) *time.Time { return &t }

func seedProgress(
	t *testing.T,
	env *testEnv,
	status Status,
	due, timeout *time.Time,
	favorite program.Feature,
	sessions ...Session,
) UserProgress {
	t.Helper()
	ctx := context.Background()
	up := UserProgress{
		UserID:          testActor.ID,
		ProgramID:       env.prog.ID,
		Status:          status,
		NextDueDate:     due,
		TimeoutEndDate:  timeout,
		FavoriteFeature: favorite,
	}
	if err := env.repo.CreateUserProgress(ctx, &up); err != nil {
		t.Fatalf("seeding progress failed: %v", err)
	}
	for i := range sessions {
		if err := env.repo.CreateSession(ctx, up.ID, i+1, &sessions[i]); err != nil {
			t.Fatalf("seeding session %d failed: %v", i+1, err)
		}
	}
	up.Sessions = sessions
	return up
}

func TestAlign_noopWhileOnTime(t *testing.T) {
	env := newTestEnv(testProgram())
	now := env.clock.Now()
	seedProgress(t, env, StatusReady, timePtr(now.Add(time.Hour)), nil, "",
		Session{AssessmentStatus: StatusReady, TrainingRoughnessStatus: StatusWaiting, TrainingBreathinessStatus: StatusWaiting})

	up, err := env.svc.Align(context.Background(), testActor)
	if err != nil {
		t.Fatalf("Align() failed: %v", err)
	}
	if up.Status != StatusReady {
		t.Errorf("Status = %s; want %s", up.Status, StatusReady)
	}
	if up.NextDueDate == nil {
		t.Error("NextDueDate was cleared on a record that is on time")
	}
}

func TestAlign_invalidate(t *testing.T) {
	env := newTestEnv(testProgram())
	ctx := context.Background()
	now := env.clock.Now()
	seedProgress(t, env, StatusWaiting, timePtr(now.Add(-time.Minute)), timePtr(now.Add(-time.Hour)), program.Roughness,
		Session{AssessmentStatus: StatusDone, TrainingRoughnessStatus: StatusDone, TrainingBreathinessStatus: StatusWaiting})

	up, err := env.svc.Align(ctx, testActor)
	if err != nil {
		t.Fatalf("Align() failed: %v", err)
	}
	if up.Status != StatusInvalid {
		t.Errorf("Status = %s; want %s", up.Status, StatusInvalid)
	}
	sess := up.ActiveSession()
	// finished tracks keep their history, open ones are voided
	if sess.AssessmentStatus != StatusDone || sess.TrainingRoughnessStatus != StatusDone {
		t.Errorf("finished tracks changed: %s/%s", sess.AssessmentStatus, sess.TrainingRoughnessStatus)
	}
	if sess.TrainingBreathinessStatus != StatusInvalid {
		t.Errorf("TrainingBreathinessStatus = %s; want %s", sess.TrainingBreathinessStatus, StatusInvalid)
	}
	if up.NextDueDate != nil || up.TimeoutEndDate != nil {
		t.Error("invalidation should clear both dates")
	}

	// a second pass finds nothing left to do
	again, err := env.svc.Align(ctx, testActor)
	if err != nil {
		t.Fatalf("second Align() failed: %v", err)
	}
	if !again.UpdatedAt.Equal(up.UpdatedAt) {
		t.Error("Align() touched an already-invalidated record")
	}
}

func TestAlign_unlockAssessmentFirst(t *testing.T) {
	env := newTestEnv(testProgram())
	now := env.clock.Now()
	seedProgress(t, env, StatusWaiting, timePtr(now.Add(48*time.Hour)), timePtr(now.Add(-time.Minute)), program.Roughness,
		Session{AssessmentStatus: StatusWaiting, TrainingRoughnessStatus: StatusWaiting, TrainingBreathinessStatus: StatusWaiting})

	up, err := env.svc.Align(context.Background(), testActor)
	if err != nil {
		t.Fatalf("Align() failed: %v", err)
	}
	sess := up.ActiveSession()
	if sess.AssessmentStatus != StatusReady {
		t.Errorf("AssessmentStatus = %s; want %s", sess.AssessmentStatus, StatusReady)
	}
	if sess.TrainingRoughnessStatus != StatusWaiting || sess.TrainingBreathinessStatus != StatusWaiting {
		t.Error("trainings should stay pending while the assessment gates them")
	}
	if up.Status != StatusReady {
		t.Errorf("Status = %s; want %s", up.Status, StatusReady)
	}
	if up.TimeoutEndDate != nil {
		t.Error("TimeoutEndDate should be cleared by the unlock")
	}
	if up.NextDueDate == nil {
		t.Error("NextDueDate must survive the unlock as a safety net")
	}
}

func TestAlign_unlockFavorite(t *testing.T) {
	env := newTestEnv(testProgram())
	now := env.clock.Now()
	seedProgress(t, env, StatusWaiting, timePtr(now.Add(48*time.Hour)), timePtr(now.Add(-time.Minute)), program.Breathiness,
		Session{AssessmentStatus: StatusNotNeeded, TrainingRoughnessStatus: StatusWaiting, TrainingBreathinessStatus: StatusWaiting})

	up, err := env.svc.Align(context.Background(), testActor)
	if err != nil {
		t.Fatalf("Align() failed: %v", err)
	}
	sess := up.ActiveSession()
	if sess.TrainingBreathinessStatus != StatusReady {
		t.Errorf("TrainingBreathinessStatus = %s; want %s", sess.TrainingBreathinessStatus, StatusReady)
	}
	if sess.TrainingRoughnessStatus != StatusWaiting {
		t.Errorf("TrainingRoughnessStatus = %s; want %s", sess.TrainingRoughnessStatus, StatusWaiting)
	}
}

func TestAlign_unlockOtherWhenFavoriteDone(t *testing.T) {
	env := newTestEnv(testProgram())
	now := env.clock.Now()
	seedProgress(t, env, StatusWaiting, timePtr(now.Add(48*time.Hour)), timePtr(now.Add(-time.Minute)), program.Breathiness,
		Session{AssessmentStatus: StatusNotNeeded, TrainingRoughnessStatus: StatusWaiting, TrainingBreathinessStatus: StatusDone})

	up, err := env.svc.Align(context.Background(), testActor)
	if err != nil {
		t.Fatalf("Align() failed: %v", err)
	}
	if got := up.ActiveSession().TrainingRoughnessStatus; got != StatusReady {
		t.Errorf("TrainingRoughnessStatus = %s; want %s", got, StatusReady)
	}
}

func TestAlign_unlockAllOnLastSession(t *testing.T) {
	env := newTestEnv(testProgram())
	now := env.clock.Now()
	done := Session{AssessmentStatus: StatusDone, TrainingRoughnessStatus: StatusDone, TrainingBreathinessStatus: StatusDone}
	last := Session{AssessmentStatus: StatusNotNeeded, TrainingRoughnessStatus: StatusWaiting, TrainingBreathinessStatus: StatusWaiting}
	seedProgress(t, env, StatusWaiting, timePtr(now.Add(48*time.Hour)), timePtr(now.Add(-time.Minute)), program.Roughness,
		done, done, done, last)

	up, err := env.svc.Align(context.Background(), testActor)
	if err != nil {
		t.Fatalf("Align() failed: %v", err)
	}
	sess := up.ActiveSession()
	if sess.TrainingRoughnessStatus != StatusReady || sess.TrainingBreathinessStatus != StatusReady {
		t.Errorf("last-session unlock = %s/%s; want both %s",
			sess.TrainingRoughnessStatus, sess.TrainingBreathinessStatus, StatusReady)
	}
}

func TestAlign_invalidateWinsOverUnlock(t *testing.T) {
	env := newTestEnv(testProgram())
	now := env.clock.Now()
	seedProgress(t, env, StatusWaiting, timePtr(now.Add(-time.Minute)), timePtr(now.Add(-time.Hour)), program.Roughness,
		Session{AssessmentStatus: StatusNotNeeded, TrainingRoughnessStatus: StatusWaiting, TrainingBreathinessStatus: StatusWaiting})

	up, err := env.svc.Align(context.Background(), testActor)
	if err != nil {
		t.Fatalf("Align() failed: %v", err)
	}
	if up.Status != StatusInvalid {
		t.Errorf("Status = %s; want %s", up.Status, StatusInvalid)
	}
}

func TestClearTimeout(t *testing.T) {
	env := newTestEnv(testProgram())
	ctx := context.Background()
	now := env.clock.Now()
	seedProgress(t, env, StatusWaiting, timePtr(now.Add(48*time.Hour)), timePtr(now.Add(time.Hour)), program.Roughness,
		Session{AssessmentStatus: StatusNotNeeded, TrainingRoughnessStatus: StatusWaiting, TrainingBreathinessStatus: StatusWaiting})

	// the timer has not elapsed yet; the override unlocks anyway
	up, err := env.svc.ClearTimeout(ctx, testActor)
	if err != nil {
		t.Fatalf("ClearTimeout() failed: %v", err)
	}
	if up.Status != StatusReady {
		t.Errorf("Status = %s; want %s", up.Status, StatusReady)
	}
	if up.TimeoutEndDate != nil {
		t.Error("TimeoutEndDate should be cleared")
	}
	if got := up.ActiveSession().TrainingRoughnessStatus; got != StatusReady {
		t.Errorf("TrainingRoughnessStatus = %s; want %s", got, StatusReady)
	}

	// not waiting: nothing to do
	again, err := env.svc.ClearTimeout(ctx, testActor)
	if err != nil {
		t.Fatalf("second ClearTimeout() failed: %v", err)
	}
	if again.Status != StatusReady {
		t.Errorf("Status = %s; want %s", again.Status, StatusReady)
	}
}

func TestRevalidate(t *testing.T) {
	env := newTestEnv(testProgram())
	ctx := context.Background()
	seedProgress(t, env, StatusInvalid, nil, nil, program.Roughness,
		Session{AssessmentStatus: StatusInvalid, TrainingRoughnessStatus: StatusInvalid, TrainingBreathinessStatus: StatusInvalid})

	up, err := env.svc.Revalidate(ctx, testActor)
	if err != nil {
		t.Fatalf("Revalidate() failed: %v", err)
	}
	if up.Status != StatusReady {
		t.Errorf("Status = %s; want %s", up.Status, StatusReady)
	}
	sess := up.ActiveSession()
	if sess.AssessmentStatus != StatusReady {
		t.Errorf("AssessmentStatus = %s; want %s", sess.AssessmentStatus, StatusReady)
	}
	// the restored assessment gates the trainings again
	if sess.TrainingRoughnessStatus != StatusWaiting || sess.TrainingBreathinessStatus != StatusWaiting {
		t.Errorf("trainings = %s/%s; want both %s",
			sess.TrainingRoughnessStatus, sess.TrainingBreathinessStatus, StatusWaiting)
	}

	// already valid: left alone
	again, err := env.svc.Revalidate(ctx, testActor)
	if err != nil {
		t.Fatalf("second Revalidate() failed: %v", err)
	}
	if again.Status != StatusReady {
		t.Errorf("Status = %s; want %s", again.Status, StatusReady)
	}
}

func TestRevalidate_favoriteFirst(t *testing.T) {
	env := newTestEnv(testProgram())
	seedProgress(t, env, StatusInvalid, nil, nil, program.Breathiness,
		Session{AssessmentStatus: StatusDone, TrainingRoughnessStatus: StatusInvalid, TrainingBreathinessStatus: StatusInvalid})

	up, err := env.svc.Revalidate(context.Background(), testActor)
	if err != nil {
		t.Fatalf("Revalidate() failed: %v", err)
	}
	sess := up.ActiveSession()
	// only the favorite reopens; the sibling queues behind it again
	if sess.TrainingBreathinessStatus != StatusReady {
		t.Errorf("TrainingBreathinessStatus = %s; want %s", sess.TrainingBreathinessStatus, StatusReady)
	}
	if sess.TrainingRoughnessStatus != StatusWaiting {
		t.Errorf("TrainingRoughnessStatus = %s; want %s", sess.TrainingRoughnessStatus, StatusWaiting)
	}
}

func TestRevalidate_trainingsOnly(t *testing.T) {
	env := newTestEnv(testProgram())
	seedProgress(t, env, StatusInvalid, nil, nil, program.Roughness,
		Session{AssessmentStatus: StatusDone, TrainingRoughnessStatus: StatusDone, TrainingBreathinessStatus: StatusInvalid})

	up, err := env.svc.Revalidate(context.Background(), testActor)
	if err != nil {
		t.Fatalf("Revalidate() failed: %v", err)
	}
	sess := up.ActiveSession()
	if sess.TrainingBreathinessStatus != StatusReady {
		t.Errorf("TrainingBreathinessStatus = %s; want %s", sess.TrainingBreathinessStatus, StatusReady)
	}
	if sess.TrainingRoughnessStatus != StatusDone {
		t.Errorf("TrainingRoughnessStatus = %s; want %s", sess.TrainingRoughnessStatus, StatusDone)
	}
}
