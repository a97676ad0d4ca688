package answer

import (
	"math"
	"strings"
	"testing"

	"github.com/voicelab/auris/core"
	"github.com/voicelab/auris/core/program"
)

func TestComputeScore(t *testing.T) {
	svc := NewService()

	tests := []struct {
		name      string
		answer    float64
		values    []float64
		threshold float64
		wantScore float64
		wantPass  bool
		wantErr   bool
	}{
		{name: "empty reference values", answer: 10, values: nil, threshold: 100, wantErr: true},
		{name: "answer inside band", answer: 25, values: []float64{20, 30}, threshold: 100, wantScore: 100, wantPass: true},
		{name: "answer at lower bound", answer: 20, values: []float64{20, 30}, threshold: 100, wantScore: 100, wantPass: true},
		{name: "answer at upper bound", answer: 30, values: []float64{20, 30}, threshold: 100, wantScore: 100, wantPass: true},
		{name: "single reference value exact", answer: 40, values: []float64{40}, threshold: 100, wantScore: 100, wantPass: true},
		// spread = max(|100-30|, |0-20|) = 70; score = 100*(1 - dev/70)
		{name: "one unit above band", answer: 31, values: []float64{20, 30}, threshold: 100, wantScore: 98.57, wantPass: false},
		{name: "seven units above band", answer: 37, values: []float64{20, 30}, threshold: 100, wantScore: 90, wantPass: false},
		{name: "below band", answer: 13, values: []float64{20, 30}, threshold: 100, wantScore: 90, wantPass: false},
		{name: "way outside band goes negative", answer: 100, values: []float64{20, 30}, threshold: 100, wantScore: 0, wantPass: false},
		// threshold only moves the pass flag, never the score
		{name: "lenient threshold passes", answer: 37, values: []float64{20, 30}, threshold: 90, wantScore: 90, wantPass: true},
		{name: "lenient threshold borderline", answer: 38, values: []float64{20, 30}, threshold: 90, wantScore: 88.57, wantPass: false},
		// degenerate spread: band covers the whole scale
		{name: "zero spread inside band", answer: 50, values: []float64{0, 100}, threshold: 100, wantScore: 100, wantPass: true},
		{name: "zero spread outside band", answer: 101, values: []float64{0, 100}, threshold: 100, wantScore: 0, wantPass: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ComputeScore(tt.answer, tt.values, tt.threshold)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ComputeScore() expected an error")
				}
				if !core.IsValidationError(err) {
					t.Errorf("ComputeScore() error = %v, want a validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ComputeScore() failed: %v", err)
			}
			if got.Score != tt.wantScore {
				t.Errorf("ComputeScore() score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.Passed != tt.wantPass {
				t.Errorf("ComputeScore() passed = %v, want %v", got.Passed, tt.wantPass)
			}
		})
	}
}

func TestComputeScoreMonotonicOutsideBand(t *testing.T) {
	svc := NewService()
	values := []float64{20, 30}

	prev := math.Inf(1)
	for _, answer := range []float64{31, 33, 36, 40, 50, 70} {
		got, err := svc.ComputeScore(answer, values, 100)
		if err != nil {
			t.Fatalf("ComputeScore(%v) failed: %v", answer, err)
		}
		if got.Score >= prev {
			t.Errorf("ComputeScore(%v) = %v, want < %v", answer, got.Score, prev)
		}
		prev = got.Score
	}
}

func TestComputeAssessmentResults(t *testing.T) {
	svc := NewService()
	items := []program.ReferenceItem{
		{Identifier: "a1", Roughness: []float64{10, 20}, Breathiness: []float64{30, 40}},
		{Identifier: "a2", Roughness: []float64{50, 60}, Breathiness: []float64{5, 15}},
	}
	audios := []AssessmentAudio{
		{Identifier: "a1", Duration: 3.2, NumberOfAudioClicks: 2, Roughness: 15, Breathiness: 35},
		{Identifier: "a2", Duration: 4.1, NumberOfAudioClicks: 1, Roughness: 55, Breathiness: 10},
	}

	rough, breath, err := svc.ComputeAssessmentResults(items, audios, 100)
	if err != nil {
		t.Fatalf("ComputeAssessmentResults() failed: %v", err)
	}
	if len(rough) != 2 || len(breath) != 2 {
		t.Fatalf("ComputeAssessmentResults() = %d roughness, %d breathiness results, want 2 each", len(rough), len(breath))
	}
	for i, res := range append(append([]AudioResult{}, rough...), breath...) {
		if res.Score != 100 || !res.Passed {
			t.Errorf("result[%d] = %+v, want a perfect in-band score", i, res)
		}
	}
	if rough[0].Answer != 15 || breath[0].Answer != 35 {
		t.Errorf("per-feature answers mixed up: %v / %v", rough[0].Answer, breath[0].Answer)
	}
}

func TestComputeAssessmentResultsUnknownIdentifier(t *testing.T) {
	svc := NewService()
	items := []program.ReferenceItem{{Identifier: "a1", Roughness: []float64{10}, Breathiness: []float64{10}}}
	audios := []AssessmentAudio{{Identifier: "nope", Roughness: 10, Breathiness: 10}}

	if _, _, err := svc.ComputeAssessmentResults(items, audios, 100); !core.IsValidationError(err) {
		t.Errorf("ComputeAssessmentResults() error = %v, want a validation error", err)
	}
}

func TestUnknownIdentifierSuggestion(t *testing.T) {
	svc := NewService()
	items := []program.ReferenceItem{
		{Identifier: "audio-042", Roughness: []float64{10}, Breathiness: []float64{10}},
	}

	// a near-miss gets a hint
	audios := []TrainingAudio{{Identifier: "audio-42", Value: 10}}
	_, err := svc.ComputeTrainingResults(items, program.Roughness, audios, 100)
	if err == nil || !strings.Contains(err.(*core.ValidationError).Fields[0].Error, `did you mean "audio-042"?`) {
		t.Errorf("ComputeTrainingResults() error = %v, want a suggestion", err)
	}

	// a completely different identifier does not
	audios = []TrainingAudio{{Identifier: "zzz", Value: 10}}
	_, err = svc.ComputeTrainingResults(items, program.Roughness, audios, 100)
	if err == nil || strings.Contains(err.(*core.ValidationError).Fields[0].Error, "did you mean") {
		t.Errorf("ComputeTrainingResults() error = %v, want no suggestion", err)
	}
}

func TestComputeTrainingResults(t *testing.T) {
	svc := NewService()
	items := []program.ReferenceItem{
		{Identifier: "t1", Roughness: []float64{20, 30}, Breathiness: []float64{60, 70}},
	}

	t.Run("scores the requested feature", func(t *testing.T) {
		audios := []TrainingAudio{{Identifier: "t1", Duration: 2.5, NumberOfAttempts: 2, NumberOfAudioClicks: 3, Value: 65}}
		results, err := svc.ComputeTrainingResults(items, program.Breathiness, audios, 100)
		if err != nil {
			t.Fatalf("ComputeTrainingResults() failed: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("ComputeTrainingResults() = %d results, want 1", len(results))
		}
		res := results[0]
		if res.Score != 100 || !res.Passed || res.NumberOfAttempts != 2 {
			t.Errorf("ComputeTrainingResults() = %+v, want perfect score with 2 attempts", res)
		}
	})

	t.Run("defaults attempts to 1", func(t *testing.T) {
		audios := []TrainingAudio{{Identifier: "t1", Value: 25}}
		results, err := svc.ComputeTrainingResults(items, program.Roughness, audios, 100)
		if err != nil {
			t.Fatalf("ComputeTrainingResults() failed: %v", err)
		}
		if results[0].NumberOfAttempts != 1 {
			t.Errorf("NumberOfAttempts = %d, want 1", results[0].NumberOfAttempts)
		}
	})

	t.Run("unknown identifier", func(t *testing.T) {
		audios := []TrainingAudio{{Identifier: "missing", Value: 25}}
		if _, err := svc.ComputeTrainingResults(items, program.Roughness, audios, 100); !core.IsValidationError(err) {
			t.Errorf("ComputeTrainingResults() error = %v, want a validation error", err)
		}
	})
}
