package progress

import (
	"context"
	"testing"
	"time"

	"github.com/voicelab/auris/core"
	"github.com/voicelab/auris/core/answer"
	"github.com/voicelab/auris/core/program"
)

var testCooldown = core.CooldownConfig{
	AssessmentDue:   24 * time.Hour,
	TrainingDue:     72 * time.Hour,
	TrainingTimeout: 23 * time.Hour,
	SessionDue:      216 * time.Hour,
	SessionTimeout:  167 * time.Hour,
	AssessmentEvery: 3,
}

var testActor = Actor{ID: "user1", Name: "Dani", Email: "dani@test.com"}

func testProgram() program.Program {
	return program.Program{
		ID:                "prog1",
		Name:              "Base Program",
		NumberOfSessions:  4,
		SessionThresholds: []float64{60, 70, 80, 90},
		Assessment: []program.ReferenceItem{
			{Identifier: "a1", Roughness: []float64{10, 30}, Breathiness: []float64{20, 40}},
		},
		Training: []program.ReferenceItem{
			{Identifier: "t1", Roughness: []float64{40, 60}, Breathiness: []float64{30, 50}},
		},
	}
}

type testEnv struct {
	svc   *Service
	repo  *memRepo
	clock *fakeClock
	mail  *recorderEmailService
	sched *recorderScheduler
	prog  program.Program
}

func newTestEnv(prog program.Program) *testEnv {
	env := &testEnv{
		repo:  newMemRepo(),
		clock: newFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
		mail:  &recorderEmailService{},
		sched: &recorderScheduler{},
		prog:  prog,
	}
	env.svc = NewService(
		fakeDB{}, env.repo, stubPrograms{prog: prog}, answer.NewService(),
		env.mail, env.sched, env.clock, core.NewNopLogger(), testCooldown,
	)
	return env
}

// perfectAssessment rates both features inside the reference bands.
func (env *testEnv) perfectAssessment() AssessmentInput {
	now := env.clock.Now()
	return AssessmentInput{
		StartDate: now,
		EndDate:   now.Add(10 * time.Minute),
		Audios:    []answer.AssessmentAudio{{Identifier: "a1", Roughness: 20, Breathiness: 30}},
	}
}

func (env *testEnv) perfectTraining(f program.Feature) TrainingInput {
	now := env.clock.Now()
	value := 50.0
	if f == program.Breathiness {
		value = 40.0
	}
	return TrainingInput{
		Feature:   f,
		StartDate: now,
		EndDate:   now.Add(15 * time.Minute),
		Audios:    []answer.TrainingAudio{{Identifier: "t1", Value: value}},
	}
}

func mustEnroll(t *testing.T, env *testEnv) UserProgress {
	t.Helper()
	up, err := env.svc.Enroll(context.Background(), testActor, env.prog.ID)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return up
}

func TestEnroll(t *testing.T) {
	env := newTestEnv(testProgram())
	ctx := context.Background()

	up := mustEnroll(t, env)
	if up.Status != StatusReady {
		t.Errorf("Status = %s; want %s", up.Status, StatusReady)
	}
	if len(up.Sessions) != 1 {
		t.Fatalf("len(Sessions) = %d; want 1", len(up.Sessions))
	}
	sess := up.Sessions[0]
	if sess.AssessmentStatus != StatusReady {
		t.Errorf("AssessmentStatus = %s; want %s", sess.AssessmentStatus, StatusReady)
	}
	if sess.TrainingRoughnessStatus != StatusWaiting || sess.TrainingBreathinessStatus != StatusWaiting {
		t.Errorf("trainings = %s/%s; want both %s",
			sess.TrainingRoughnessStatus, sess.TrainingBreathinessStatus, StatusWaiting)
	}
	if up.NextDueDate != nil || up.TimeoutEndDate != nil {
		t.Error("a fresh enrollment should carry no dates")
	}

	if _, err := env.svc.Enroll(ctx, testActor, env.prog.ID); err != ErrExists {
		t.Errorf("second Enroll() err = %v; want %v", err, ErrExists)
	}
	if _, err := env.svc.Enroll(ctx, Actor{ID: "user2"}, "nope"); err != program.ErrNotFound {
		t.Errorf("Enroll(unknown program) err = %v; want %v", err, program.ErrNotFound)
	}
}

func TestSubmitAssessment(t *testing.T) {
	env := newTestEnv(testProgram())
	ctx := context.Background()
	mustEnroll(t, env)

	in := env.perfectAssessment()
	up, err := env.svc.SubmitAssessment(ctx, testActor, in)
	if err != nil {
		t.Fatalf("SubmitAssessment() failed: %v", err)
	}

	sess := up.ActiveSession()
	if sess.AssessmentStatus != StatusDone {
		t.Errorf("AssessmentStatus = %s; want %s", sess.AssessmentStatus, StatusDone)
	}
	// first session: both trainings open at once
	if sess.TrainingRoughnessStatus != StatusReady || sess.TrainingBreathinessStatus != StatusReady {
		t.Errorf("trainings = %s/%s; want both %s",
			sess.TrainingRoughnessStatus, sess.TrainingBreathinessStatus, StatusReady)
	}
	for _, res := range []*TrackResults{sess.AssessmentRoughnessResults, sess.AssessmentBreathinessResults} {
		if res == nil {
			t.Fatal("assessment results not stored")
		}
		if !res.StartDate.Equal(in.StartDate) || !res.EndDate.Equal(in.EndDate) {
			t.Errorf("result dates = %v/%v; want %v/%v", res.StartDate, res.EndDate, in.StartDate, in.EndDate)
		}
		if len(res.Audios) != 1 || res.Audios[0].Score != 100 || !res.Audios[0].Passed {
			t.Errorf("Audios = %+v; want one passing audio scored 100", res.Audios)
		}
	}

	if up.Status != StatusReady {
		t.Errorf("Status = %s; want %s", up.Status, StatusReady)
	}
	wantDue := in.StartDate.Add(testCooldown.AssessmentDue)
	if up.NextDueDate == nil || !up.NextDueDate.Equal(wantDue) {
		t.Errorf("NextDueDate = %v; want %v", up.NextDueDate, wantDue)
	}
	if up.TimeoutEndDate != nil {
		t.Errorf("TimeoutEndDate = %v; want nil", up.TimeoutEndDate)
	}

	if _, err = env.svc.SubmitAssessment(ctx, testActor, in); err != ErrNotReady {
		t.Errorf("second SubmitAssessment() err = %v; want %v", err, ErrNotReady)
	}
}

func TestSubmitAssessment_midSessionNoFavorite(t *testing.T) {
	env := newTestEnv(testProgram())
	done := Session{AssessmentStatus: StatusNotNeeded, TrainingRoughnessStatus: StatusDone, TrainingBreathinessStatus: StatusDone}
	seedProgress(t, env, StatusReady, nil, nil, "",
		done, done,
		Session{AssessmentStatus: StatusReady, TrainingRoughnessStatus: StatusWaiting, TrainingBreathinessStatus: StatusWaiting})

	up, err := env.svc.SubmitAssessment(context.Background(), testActor, env.perfectAssessment())
	if err != nil {
		t.Fatalf("SubmitAssessment() failed: %v", err)
	}

	// neither first nor last session and no favorite yet: the trainings stay
	// queued until the unlock timer picks one
	sess := up.ActiveSession()
	if sess.AssessmentStatus != StatusDone {
		t.Errorf("AssessmentStatus = %s; want %s", sess.AssessmentStatus, StatusDone)
	}
	if sess.TrainingRoughnessStatus != StatusWaiting || sess.TrainingBreathinessStatus != StatusWaiting {
		t.Errorf("trainings = %s/%s; want both %s",
			sess.TrainingRoughnessStatus, sess.TrainingBreathinessStatus, StatusWaiting)
	}
}

func TestSubmitRequiresReadyStatus(t *testing.T) {
	// a stored status that disagrees with the track statuses still gates
	env := newTestEnv(testProgram())
	ctx := context.Background()
	seedProgress(t, env, StatusWaiting, nil, nil, "",
		Session{AssessmentStatus: StatusReady, TrainingRoughnessStatus: StatusReady, TrainingBreathinessStatus: StatusReady})

	if _, err := env.svc.SubmitAssessment(ctx, testActor, env.perfectAssessment()); err != ErrNotReady {
		t.Errorf("SubmitAssessment() err = %v; want %v", err, ErrNotReady)
	}
	if _, err := env.svc.SubmitTraining(ctx, testActor, env.perfectTraining(program.Roughness)); err != ErrNotReady {
		t.Errorf("SubmitTraining() err = %v; want %v", err, ErrNotReady)
	}
}

func TestSubmitTraining_requiresAssessment(t *testing.T) {
	env := newTestEnv(testProgram())
	mustEnroll(t, env)

	_, err := env.svc.SubmitTraining(context.Background(), testActor, env.perfectTraining(program.Roughness))
	if err != ErrAssessmentNotDone {
		t.Errorf("SubmitTraining() err = %v; want %v", err, ErrAssessmentNotDone)
	}
}

func TestSubmitTraining_singleFeatureCooldown(t *testing.T) {
	env := newTestEnv(testProgram())
	ctx := context.Background()
	mustEnroll(t, env)
	if _, err := env.svc.SubmitAssessment(ctx, testActor, env.perfectAssessment()); err != nil {
		t.Fatalf("SubmitAssessment() failed: %v", err)
	}

	in := env.perfectTraining(program.Roughness)
	up, err := env.svc.SubmitTraining(ctx, testActor, in)
	if err != nil {
		t.Fatalf("SubmitTraining() failed: %v", err)
	}

	sess := up.ActiveSession()
	if sess.TrainingRoughnessStatus != StatusDone {
		t.Errorf("TrainingRoughnessStatus = %s; want %s", sess.TrainingRoughnessStatus, StatusDone)
	}
	// the open sibling goes back to waiting for the duration of the pause
	if sess.TrainingBreathinessStatus != StatusWaiting {
		t.Errorf("TrainingBreathinessStatus = %s; want %s", sess.TrainingBreathinessStatus, StatusWaiting)
	}
	if up.FavoriteFeature != program.Roughness {
		t.Errorf("FavoriteFeature = %s; want %s", up.FavoriteFeature, program.Roughness)
	}
	if up.Status != StatusWaiting {
		t.Errorf("Status = %s; want %s", up.Status, StatusWaiting)
	}
	wantDue := in.StartDate.Add(testCooldown.TrainingDue)
	wantTimeout := in.StartDate.Add(testCooldown.TrainingTimeout)
	if up.NextDueDate == nil || !up.NextDueDate.Equal(wantDue) {
		t.Errorf("NextDueDate = %v; want %v", up.NextDueDate, wantDue)
	}
	if up.TimeoutEndDate == nil || !up.TimeoutEndDate.Equal(wantTimeout) {
		t.Errorf("TimeoutEndDate = %v; want %v", up.TimeoutEndDate, wantTimeout)
	}

	sent := env.mail.Sent()
	if len(sent) != 1 {
		t.Fatalf("len(sent emails) = %d; want 1", len(sent))
	}
	if sent[0].TemplateName != cooldownTmpl || sent[0].To[0].Address != testActor.Email {
		t.Errorf("email = %q to %q; want %q to %q",
			sent[0].TemplateName, sent[0].To[0].Address, cooldownTmpl, testActor.Email)
	}
	queued := env.sched.Queued()
	if len(queued) != 1 {
		t.Fatalf("len(queued reminders) = %d; want 1", len(queued))
	}
	if !queued[0].sendAt.Equal(wantTimeout) || queued[0].progressID != up.ID {
		t.Errorf("reminder at %v for %q; want %v for %q",
			queued[0].sendAt, queued[0].progressID, wantTimeout, up.ID)
	}

	// the completed track cannot be resubmitted, the waiting one not yet
	if _, err = env.svc.SubmitTraining(ctx, testActor, env.perfectTraining(program.Roughness)); err != ErrNotReady {
		t.Errorf("resubmit err = %v; want %v", err, ErrNotReady)
	}
	if _, err = env.svc.SubmitTraining(ctx, testActor, env.perfectTraining(program.Breathiness)); err != ErrNotReady {
		t.Errorf("waiting track err = %v; want %v", err, ErrNotReady)
	}
}

func TestSubmitTraining_sessionComplete(t *testing.T) {
	env := newTestEnv(testProgram())
	ctx := context.Background()
	mustEnroll(t, env)

	assessment := env.perfectAssessment()
	if _, err := env.svc.SubmitAssessment(ctx, testActor, assessment); err != nil {
		t.Fatalf("SubmitAssessment() failed: %v", err)
	}
	if _, err := env.svc.SubmitTraining(ctx, testActor, env.perfectTraining(program.Roughness)); err != nil {
		t.Fatalf("SubmitTraining(roughness) failed: %v", err)
	}

	env.clock.Advance(24 * time.Hour)
	if _, err := env.svc.Align(ctx, testActor); err != nil {
		t.Fatalf("Align() failed: %v", err)
	}

	up, err := env.svc.SubmitTraining(ctx, testActor, env.perfectTraining(program.Breathiness))
	if err != nil {
		t.Fatalf("SubmitTraining(breathiness) failed: %v", err)
	}

	if len(up.Sessions) != 2 {
		t.Fatalf("len(Sessions) = %d; want 2", len(up.Sessions))
	}
	done := up.Sessions[0]
	if !done.AllFinished() {
		t.Errorf("first session not finished: %+v", done)
	}
	next := up.Sessions[1]
	if next.AssessmentStatus != StatusNotNeeded {
		t.Errorf("next AssessmentStatus = %s; want %s", next.AssessmentStatus, StatusNotNeeded)
	}
	if next.TrainingRoughnessStatus != StatusWaiting || next.TrainingBreathinessStatus != StatusWaiting {
		t.Errorf("next trainings = %s/%s; want both %s",
			next.TrainingRoughnessStatus, next.TrainingBreathinessStatus, StatusWaiting)
	}

	// the between-sessions pause is anchored at the assessment's start
	if up.Status != StatusWaiting {
		t.Errorf("Status = %s; want %s", up.Status, StatusWaiting)
	}
	wantDue := assessment.StartDate.Add(testCooldown.SessionDue)
	wantTimeout := assessment.StartDate.Add(testCooldown.SessionTimeout)
	if up.NextDueDate == nil || !up.NextDueDate.Equal(wantDue) {
		t.Errorf("NextDueDate = %v; want %v", up.NextDueDate, wantDue)
	}
	if up.TimeoutEndDate == nil || !up.TimeoutEndDate.Equal(wantTimeout) {
		t.Errorf("TimeoutEndDate = %v; want %v", up.TimeoutEndDate, wantTimeout)
	}
}

func TestRestart(t *testing.T) {
	env := newTestEnv(testProgram())
	ctx := context.Background()
	mustEnroll(t, env)
	if _, err := env.svc.SubmitAssessment(ctx, testActor, env.perfectAssessment()); err != nil {
		t.Fatalf("SubmitAssessment() failed: %v", err)
	}
	if _, err := env.svc.SubmitTraining(ctx, testActor, env.perfectTraining(program.Breathiness)); err != nil {
		t.Fatalf("SubmitTraining() failed: %v", err)
	}

	up, err := env.svc.Restart(ctx, testActor)
	if err != nil {
		t.Fatalf("Restart() failed: %v", err)
	}
	if up.Status != StatusReady || up.FavoriteFeature != "" {
		t.Errorf("Status/Favorite = %s/%q; want %s and empty", up.Status, up.FavoriteFeature, StatusReady)
	}
	if up.NextDueDate != nil || up.TimeoutEndDate != nil {
		t.Error("Restart() should clear both dates")
	}
	if len(up.Sessions) != 1 {
		t.Fatalf("len(Sessions) = %d; want 1", len(up.Sessions))
	}
	if up.Sessions[0].AssessmentStatus != StatusReady {
		t.Errorf("AssessmentStatus = %s; want %s", up.Sessions[0].AssessmentStatus, StatusReady)
	}
}

// TestProgramWalkthrough drives a user through a whole four-session program:
// assessments on sessions one and three, favorite-first training order in
// between, both trainings open at once on the last session, and a finished
// program at the end.
func TestProgramWalkthrough(t *testing.T) {
	env := newTestEnv(testProgram())
	ctx := context.Background()
	mustEnroll(t, env)

	align := func() UserProgress {
		t.Helper()
		up, err := env.svc.Align(ctx, testActor)
		if err != nil {
			t.Fatalf("Align() failed: %v", err)
		}
		return up
	}
	train := func(f program.Feature) UserProgress {
		t.Helper()
		up, err := env.svc.SubmitTraining(ctx, testActor, env.perfectTraining(f))
		if err != nil {
			t.Fatalf("SubmitTraining(%s) failed: %v", f, err)
		}
		return up
	}
	assess := func() UserProgress {
		t.Helper()
		up, err := env.svc.SubmitAssessment(ctx, testActor, env.perfectAssessment())
		if err != nil {
			t.Fatalf("SubmitAssessment() failed: %v", err)
		}
		return up
	}

	// session 1: assessment, then both trainings with a rest in between
	assess()
	train(program.Roughness)
	env.clock.Advance(24 * time.Hour)
	align()
	up := train(program.Breathiness)
	if len(up.Sessions) != 2 {
		t.Fatalf("after session 1: len(Sessions) = %d; want 2", len(up.Sessions))
	}

	// session 2: no assessment; the favorite unlocks first
	env.clock.Advance(144 * time.Hour)
	up = align()
	sess := up.ActiveSession()
	if sess.TrainingRoughnessStatus != StatusReady || sess.TrainingBreathinessStatus != StatusWaiting {
		t.Fatalf("session 2 unlock = %s/%s; want %s/%s", sess.TrainingRoughnessStatus,
			sess.TrainingBreathinessStatus, StatusReady, StatusWaiting)
	}
	train(program.Roughness)
	env.clock.Advance(24 * time.Hour)
	align()
	up = train(program.Breathiness)
	if len(up.Sessions) != 3 {
		t.Fatalf("after session 2: len(Sessions) = %d; want 3", len(up.Sessions))
	}

	// session 3: the pending assessment unlocks before any training
	env.clock.Advance(144 * time.Hour)
	up = align()
	sess = up.ActiveSession()
	if sess.AssessmentStatus != StatusReady {
		t.Fatalf("session 3 AssessmentStatus = %s; want %s", sess.AssessmentStatus, StatusReady)
	}
	if sess.TrainingRoughnessStatus != StatusWaiting || sess.TrainingBreathinessStatus != StatusWaiting {
		t.Fatal("session 3 trainings should stay pending until the assessment is done")
	}
	up = assess()
	sess = up.ActiveSession()
	if sess.TrainingRoughnessStatus != StatusReady || sess.TrainingBreathinessStatus != StatusWaiting {
		t.Fatalf("after session 3 assessment: trainings = %s/%s; want favorite first",
			sess.TrainingRoughnessStatus, sess.TrainingBreathinessStatus)
	}
	train(program.Roughness)
	env.clock.Advance(24 * time.Hour)
	align()
	up = train(program.Breathiness)
	if len(up.Sessions) != 4 {
		t.Fatalf("after session 3: len(Sessions) = %d; want 4", len(up.Sessions))
	}

	// session 4 (last): both trainings open at once, no rest in between
	env.clock.Advance(144 * time.Hour)
	up = align()
	sess = up.ActiveSession()
	if sess.AssessmentStatus != StatusNotNeeded {
		t.Fatalf("session 4 AssessmentStatus = %s; want %s", sess.AssessmentStatus, StatusNotNeeded)
	}
	if sess.TrainingRoughnessStatus != StatusReady || sess.TrainingBreathinessStatus != StatusReady {
		t.Fatalf("session 4 unlock = %s/%s; want both %s",
			sess.TrainingRoughnessStatus, sess.TrainingBreathinessStatus, StatusReady)
	}
	up = train(program.Roughness)
	if up.Status != StatusReady {
		t.Fatalf("no pause expected on the last session; Status = %s", up.Status)
	}
	up = train(program.Breathiness)

	if up.Status != StatusDone {
		t.Errorf("final Status = %s; want %s", up.Status, StatusDone)
	}
	if up.NextDueDate != nil || up.TimeoutEndDate != nil {
		t.Error("a finished program should carry no dates")
	}
	if up.FavoriteFeature != program.Roughness {
		t.Errorf("FavoriteFeature = %s; want %s", up.FavoriteFeature, program.Roughness)
	}

	sent := env.mail.Sent()
	if got := sent[len(sent)-1].TemplateName; got != programCompletedTmpl {
		t.Errorf("last email template = %q; want %q", got, programCompletedTmpl)
	}
	var cooldowns int
	for _, msg := range sent {
		if msg.TemplateName == cooldownTmpl {
			cooldowns++
		}
	}
	if cooldowns != 6 {
		t.Errorf("cooldown emails = %d; want 6", cooldowns)
	}
	if got := len(env.sched.Queued()); got != 6 {
		t.Errorf("queued reminders = %d; want 6", got)
	}
}
