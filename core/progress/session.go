package progress

import "github.com/voicelab/auris/core/program"

// CooldownKind classifies the rest period implied by a session update.
type CooldownKind int

const (
	CooldownNone CooldownKind = iota
	// CooldownSingleFeature follows completion of one training track while the
	// session still has pending work.
	CooldownSingleFeature
	// CooldownSessionComplete follows completion of the whole session.
	CooldownSessionComplete
	// CooldownInvalidate marks a session that was invalidated by elapsed time.
	CooldownInvalidate
)

// NewSession builds the session at 1-based position index. The very first
// session always opens with its assessment ready; later sessions get an
// assessment only at every assessmentEvery-th position, pending until the
// trainings complete.
func NewSession(index, assessmentEvery int) Session {
	sess := Session{
		AssessmentStatus:          StatusNotNeeded,
		TrainingRoughnessStatus:   StatusWaiting,
		TrainingBreathinessStatus: StatusWaiting,
	}
	switch {
	case index == 1:
		sess.AssessmentStatus = StatusReady
	case assessmentEvery > 0 && index%assessmentEvery == 0:
		sess.AssessmentStatus = StatusWaiting
	}
	return sess
}

// ClassifyTransition compares a session before and after an update and names
// the cooldown the update triggers. Track completions are recognized on the
// READY to DONE edge only, so replaying the same write is inert.
func ClassifyTransition(prev, next Session) CooldownKind {
	completed := func(before, after Status) bool {
		return before == StatusReady && after == StatusDone
	}
	invalidated := func(before, after Status) bool {
		return before != StatusInvalid && after == StatusInvalid
	}

	// a training completion pauses the session only while its sibling still waits
	singleFeature := (completed(prev.TrainingRoughnessStatus, next.TrainingRoughnessStatus) &&
		next.TrainingBreathinessStatus == StatusWaiting) ||
		(completed(prev.TrainingBreathinessStatus, next.TrainingBreathinessStatus) &&
			next.TrainingRoughnessStatus == StatusWaiting)
	anyDone := completed(prev.AssessmentStatus, next.AssessmentStatus) ||
		completed(prev.TrainingRoughnessStatus, next.TrainingRoughnessStatus) ||
		completed(prev.TrainingBreathinessStatus, next.TrainingBreathinessStatus)

	switch {
	case singleFeature:
		return CooldownSingleFeature
	case anyDone && next.AllFinished():
		return CooldownSessionComplete
	case invalidated(prev.AssessmentStatus, next.AssessmentStatus) ||
		invalidated(prev.TrainingRoughnessStatus, next.TrainingRoughnessStatus) ||
		invalidated(prev.TrainingBreathinessStatus, next.TrainingBreathinessStatus):
		return CooldownInvalidate
	}
	return CooldownNone
}

// AdvanceTraining moves a training track to the given status unless the track
// is already finished. It reports whether the status changed.
func (s *Session) AdvanceTraining(f program.Feature, to Status) bool {
	if cur := s.TrainingStatus(f); cur.Finished() || cur == to {
		return false
	}
	s.SetTrainingStatus(f, to)
	return true
}
