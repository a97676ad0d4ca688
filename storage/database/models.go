package database

import (
	"encoding/json"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/voicelab/auris/core/progress"
)

type (
	programRow struct {
		ID                string    `db:"id"`
		Name              string    `db:"name"`
		NumberOfSessions  int       `db:"number_of_sessions"`
		SessionThresholds null.JSON `db:"session_thresholds"`
		Assessment        null.JSON `db:"assessment"`
		Training          null.JSON `db:"training"`
		CreatedAt         time.Time `db:"created_at"`
		UpdatedAt         time.Time `db:"updated_at"`
	}

	userProgressRow struct {
		ID              string      `db:"id"`
		UserID          string      `db:"user_id"`
		ProgramID       string      `db:"program_id"`
		Status          string      `db:"status"`
		NextDueDate     null.Time   `db:"next_due_date"`
		TimeoutEndDate  null.Time   `db:"timeout_end_date"`
		FavoriteFeature null.String `db:"favorite_feature"`
		CreatedAt       time.Time   `db:"created_at"`
		UpdatedAt       time.Time   `db:"updated_at"`
	}

	sessionRow struct {
		ID                           string    `db:"id"`
		ProgressID                   string    `db:"progress_id"`
		Position                     int       `db:"position"`
		AssessmentStatus             string    `db:"assessment_status"`
		TrainingRoughnessStatus      string    `db:"training_roughness_status"`
		TrainingBreathinessStatus    string    `db:"training_breathiness_status"`
		AssessmentRoughnessResults   null.JSON `db:"assessment_roughness_results"`
		AssessmentBreathinessResults null.JSON `db:"assessment_breathiness_results"`
		TrainingRoughnessResults     null.JSON `db:"training_roughness_results"`
		TrainingBreathinessResults   null.JSON `db:"training_breathiness_results"`
		CreatedAt                    time.Time `db:"created_at"`
		UpdatedAt                    time.Time `db:"updated_at"`
	}

	queuedEmailRow struct {
		ID            string      `db:"id"`
		ToName        string      `db:"to_name"`
		ToEmail       string      `db:"to_email"`
		Subject       string      `db:"subject"`
		ScheduledTime time.Time   `db:"scheduled_time"`
		TemplateName  string      `db:"template_name"`
		TemplateData  null.JSON   `db:"template_data"`
		ProgressID    null.String `db:"progress_id"`
		Stale         bool        `db:"stale"`
		CreatedAt     time.Time   `db:"created_at"`

		ProgressTimeoutEndDate null.Time `db:"progress_timeout_end_date"`
	}
)

func packJSON(v interface{}) (null.JSON, error) {
	if v == nil {
		return null.JSON{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return null.JSON{}, err
	}
	return null.JSONFrom(b), nil
}

func packResults(res *progress.TrackResults) (null.JSON, error) {
	if res == nil {
		return null.JSON{}, nil
	}
	return packJSON(res)
}

func unpackResults(j null.JSON) (*progress.TrackResults, error) {
	if !j.Valid {
		return nil, nil
	}
	var res progress.TrackResults
	if err := json.Unmarshal(j.JSON, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
