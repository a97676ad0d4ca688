package program

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("program not found")

// DefaultPassThreshold is the score needed to pass an audio item when a
// program defines no per-session threshold.
const DefaultPassThreshold = 100

// Feature is one of the two perceptual dimensions being trained and assessed.
type Feature string

const (
	Roughness   Feature = "roughness"
	Breathiness Feature = "breathiness"
)

func (f Feature) IsValid() bool {
	return f == Roughness || f == Breathiness
}

// Other returns the feature this one is paired with.
func (f Feature) Other() Feature {
	if f == Roughness {
		return Breathiness
	}
	return Roughness
}

type (
	// ReferenceItem is a reference audio, keyed by identifier, carrying the
	// specialists' reference values for both features.
	ReferenceItem struct {
		Identifier  string    `json:"identifier"`
		Roughness   []float64 `json:"roughness"`
		Breathiness []float64 `json:"breathiness"`
	}

	// Program is a multi-session training program. Immutable at runtime.
	Program struct {
		ID                string          `json:"id"`
		Name              string          `json:"name"`
		NumberOfSessions  int             `json:"number_of_sessions"`
		SessionThresholds []float64       `json:"session_thresholds"`
		Assessment        []ReferenceItem `json:"assessment"`
		Training          []ReferenceItem `json:"training"`
		CreatedAt         time.Time       `json:"created_at"` // UTC
		UpdatedAt         time.Time       `json:"updated_at"` // UTC
	}
)

func (item ReferenceItem) Values(f Feature) []float64 {
	if f == Roughness {
		return item.Roughness
	}
	return item.Breathiness
}

// Threshold returns the pass threshold for the given 1-based session index.
func (p Program) Threshold(sessionIndex int) float64 {
	if sessionIndex >= 1 && sessionIndex <= len(p.SessionThresholds) {
		return p.SessionThresholds[sessionIndex-1]
	}
	return DefaultPassThreshold
}
