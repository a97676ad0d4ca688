package progress

import (
	"time"

	"github.com/voicelab/auris/core/answer"
	"github.com/voicelab/auris/core/program"
)

// Status is the state of a track or of the overall progress.
type Status string

const (
	StatusNotNeeded Status = "NOT_NEEDED"
	StatusWaiting   Status = "WAITING"
	StatusReady     Status = "READY"
	StatusDone      Status = "DONE"
	StatusInvalid   Status = "INVALID"
)

// Finished reports whether a track needs no further work.
func (s Status) Finished() bool {
	return s == StatusDone || s == StatusNotNeeded
}

func (s Status) IsValid() bool {
	switch s {
	case StatusNotNeeded, StatusWaiting, StatusReady, StatusDone, StatusInvalid:
		return true
	}
	return false
}

type (
	// TrackResults is the payload of a completed track.
	TrackResults struct {
		StartDate time.Time            `json:"start_date"`
		EndDate   time.Time            `json:"end_date"`
		Audios    []answer.AudioResult `json:"audios"`
	}

	// Session holds the three track statuses of one training session and the
	// result payloads of the tracks completed so far.
	Session struct {
		ID                        string `json:"id"`
		AssessmentStatus          Status `json:"assessment_status"`
		TrainingRoughnessStatus   Status `json:"training_roughness_status"`
		TrainingBreathinessStatus Status `json:"training_breathiness_status"`

		AssessmentRoughnessResults   *TrackResults `json:"assessment_roughness_results,omitempty"`
		AssessmentBreathinessResults *TrackResults `json:"assessment_breathiness_results,omitempty"`
		TrainingRoughnessResults     *TrackResults `json:"training_roughness_results,omitempty"`
		TrainingBreathinessResults   *TrackResults `json:"training_breathiness_results,omitempty"`

		CreatedAt time.Time `json:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at"` // UTC
	}

	// UserProgress is one user's walk through one program. The last session is
	// the active one; sessions are append-only.
	UserProgress struct {
		ID        string `json:"id"`
		UserID    string `json:"user_id"`
		ProgramID string `json:"program_id"`
		Status    Status `json:"status"`

		NextDueDate     *time.Time      `json:"next_due_date,omitempty"`
		TimeoutEndDate  *time.Time      `json:"timeout_end_date,omitempty"`
		FavoriteFeature program.Feature `json:"favorite_feature,omitempty"` // empty until the first training submission

		Sessions []Session `json:"sessions"`

		CreatedAt time.Time `json:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at"` // UTC
	}
)

func (s *Session) TrainingStatus(f program.Feature) Status {
	if f == program.Roughness {
		return s.TrainingRoughnessStatus
	}
	return s.TrainingBreathinessStatus
}

func (s *Session) SetTrainingStatus(f program.Feature, st Status) {
	if f == program.Roughness {
		s.TrainingRoughnessStatus = st
	} else {
		s.TrainingBreathinessStatus = st
	}
}

func (s *Session) TrainingResults(f program.Feature) *TrackResults {
	if f == program.Roughness {
		return s.TrainingRoughnessResults
	}
	return s.TrainingBreathinessResults
}

func (s *Session) SetTrainingResults(f program.Feature, res *TrackResults) {
	if f == program.Roughness {
		s.TrainingRoughnessResults = res
	} else {
		s.TrainingBreathinessResults = res
	}
}

// AllFinished reports whether every track is DONE or NOT_NEEDED.
func (s *Session) AllFinished() bool {
	return s.AssessmentStatus.Finished() &&
		s.TrainingRoughnessStatus.Finished() &&
		s.TrainingBreathinessStatus.Finished()
}

// AnyInvalid reports whether any track has been invalidated.
func (s *Session) AnyInvalid() bool {
	return s.AssessmentStatus == StatusInvalid ||
		s.TrainingRoughnessStatus == StatusInvalid ||
		s.TrainingBreathinessStatus == StatusInvalid
}

// ActiveSession returns the last (current) session, or nil when none exists.
func (up *UserProgress) ActiveSession() *Session {
	if len(up.Sessions) == 0 {
		return nil
	}
	return &up.Sessions[len(up.Sessions)-1]
}

// IsLastSession reports whether the active session is the program's final one.
func (up *UserProgress) IsLastSession(prog program.Program) bool {
	return len(up.Sessions) == prog.NumberOfSessions
}
