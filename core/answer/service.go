package answer

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/voicelab/auris/core"
	"github.com/voicelab/auris/core/program"
)

var (
	// errors
	ErrNoReferenceValues = errors.New("no reference values to score against")
	ErrUnknownIdentifier = errors.New("no reference audio for this identifier")
)

// bounds of the rating scale
const (
	topScore = 100.0
	minScore = 0.0
)

type (
	// Score is the outcome of grading a single answer.
	Score struct {
		Score  float64 `json:"score"`
		Passed bool    `json:"passed"`
	}

	// AssessmentAudio is one submitted assessment item; the listener rates
	// both features on every audio.
	AssessmentAudio struct {
		Identifier          string  `json:"identifier"`
		Duration            float64 `json:"duration"`
		NumberOfAudioClicks int     `json:"number_of_audio_clicks"`
		Roughness           float64 `json:"roughness"`
		Breathiness         float64 `json:"breathiness"`
	}

	// TrainingAudio is one submitted training item; a training run rates a
	// single feature.
	TrainingAudio struct {
		Identifier          string  `json:"identifier"`
		Duration            float64 `json:"duration"`
		NumberOfAttempts    int     `json:"number_of_attempts"`
		NumberOfAudioClicks int     `json:"number_of_audio_clicks"`
		Value               float64 `json:"value"`
	}

	// AudioResult is a graded audio item, stored on the session.
	AudioResult struct {
		Identifier          string  `json:"identifier"`
		Answer              float64 `json:"answer"`
		Duration            float64 `json:"duration"`
		Score               float64 `json:"score"`
		Passed              bool    `json:"passed"`
		NumberOfAudioClicks int     `json:"number_of_audio_clicks"`
		NumberOfAttempts    int     `json:"number_of_attempts,omitempty"`
	}

	Service struct{}
)

func NewService() *Service {
	return &Service{}
}

// ComputeScore grades an answer against the reference values of an audio.
//
// An answer inside [min(values), max(values)] deviates by zero and scores 100.
// Outside the band, the score falls linearly with the distance to the nearest
// bound, hitting zero once the distance reaches the band's spread: the larger
// of how far the reference max sits below the top of the scale and how far the
// reference min sits above its bottom.
func (svc *Service) ComputeScore(answerVal float64, values []float64, threshold float64) (Score, error) {
	if len(values) == 0 {
		return Score{}, core.NewValidationError(ErrNoReferenceValues,
			core.FieldError{Field: "values", Error: ErrNoReferenceValues.Error()})
	}

	max, min := values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}

	dev := deviation(answerVal, min, max)
	spread := math.Max(math.Abs(topScore-max), math.Abs(minScore-min))

	raw := forecast(dev, []float64{0, spread}, []float64{1, 0})
	if math.IsNaN(raw) {
		// spread == 0: the reference band covers the whole scale and the
		// regression slope is 0/0. Perfect answers keep their 100.
		if dev == 0 {
			raw = 1
		} else {
			raw = 0
		}
	}

	score := math.Round(raw*topScore*100) / 100
	return Score{Score: score, Passed: score >= threshold}, nil
}

// ComputeAssessmentResults grades every submitted audio against the program's
// assessment references, once per feature.
func (svc *Service) ComputeAssessmentResults(
	items []program.ReferenceItem,
	audios []AssessmentAudio,
	threshold float64,
) (roughness, breathiness []AudioResult, err error) {
	refs := referenceMap(items)

	roughness = make([]AudioResult, 0, len(audios))
	breathiness = make([]AudioResult, 0, len(audios))
	for _, audio := range audios {
		ref, ok := refs[audio.Identifier]
		if !ok {
			return nil, nil, unknownIdentifierErr(audio.Identifier, refs)
		}

		roughScore, err := svc.ComputeScore(audio.Roughness, ref.Roughness, threshold)
		if err != nil {
			return nil, nil, err
		}
		breathScore, err := svc.ComputeScore(audio.Breathiness, ref.Breathiness, threshold)
		if err != nil {
			return nil, nil, err
		}

		roughness = append(roughness, AudioResult{
			Identifier:          audio.Identifier,
			Answer:              audio.Roughness,
			Duration:            audio.Duration,
			Score:               roughScore.Score,
			Passed:              roughScore.Passed,
			NumberOfAudioClicks: audio.NumberOfAudioClicks,
		})
		breathiness = append(breathiness, AudioResult{
			Identifier:          audio.Identifier,
			Answer:              audio.Breathiness,
			Duration:            audio.Duration,
			Score:               breathScore.Score,
			Passed:              breathScore.Passed,
			NumberOfAudioClicks: audio.NumberOfAudioClicks,
		})
	}
	return roughness, breathiness, nil
}

// ComputeTrainingResults grades every submitted audio against the program's
// training references for a single feature.
func (svc *Service) ComputeTrainingResults(
	items []program.ReferenceItem,
	feature program.Feature,
	audios []TrainingAudio,
	threshold float64,
) ([]AudioResult, error) {
	refs := referenceMap(items)

	results := make([]AudioResult, 0, len(audios))
	for _, audio := range audios {
		ref, ok := refs[audio.Identifier]
		if !ok {
			return nil, unknownIdentifierErr(audio.Identifier, refs)
		}

		score, err := svc.ComputeScore(audio.Value, ref.Values(feature), threshold)
		if err != nil {
			return nil, err
		}

		attempts := audio.NumberOfAttempts
		if attempts == 0 {
			attempts = 1
		}
		results = append(results, AudioResult{
			Identifier:          audio.Identifier,
			Answer:              audio.Value,
			Duration:            audio.Duration,
			Score:               score.Score,
			Passed:              score.Passed,
			NumberOfAudioClicks: audio.NumberOfAudioClicks,
			NumberOfAttempts:    attempts,
		})
	}
	return results, nil
}

// deviation is zero when v falls within [min,max], else the absolute distance
// outside the nearest bound.
func deviation(v, min, max float64) float64 {
	var dev float64
	if v > max {
		dev += v - max
	}
	if v < min {
		dev += min - v
	}
	return dev
}

// forecast evaluates at targetX the least-squares line through the known
// points. With two points this is exact interpolation, except when both x
// values coincide and the slope degenerates to NaN.
func forecast(targetX float64, knownX, knownY []float64) float64 {
	meanX := mean(knownX)
	meanY := mean(knownY)

	var numerator, denominator float64
	for i := range knownX {
		dx := knownX[i] - meanX
		dy := knownY[i] - meanY
		numerator += dx * dy
		denominator += dx * dx
	}

	slope := numerator / denominator
	intercept := meanY - slope*meanX
	return intercept + slope*targetX
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func referenceMap(items []program.ReferenceItem) map[string]program.ReferenceItem {
	refs := make(map[string]program.ReferenceItem, len(items))
	for _, item := range items {
		refs[item.Identifier] = item
	}
	return refs
}

// minIdentifierSim is the similarity ratio above which an unknown identifier
// gets a "did you mean" hint.
const minIdentifierSim = 0.6

func unknownIdentifierErr(identifier string, refs map[string]program.ReferenceItem) error {
	errStr := fmt.Sprintf("%v: %s", ErrUnknownIdentifier, identifier)
	if closest := closestIdentifier(identifier, refs); closest != "" {
		errStr = fmt.Sprintf("%s (did you mean %q?)", errStr, closest)
	}
	return core.NewValidationError(ErrUnknownIdentifier,
		core.FieldError{Field: "identifier", Error: errStr})
}

func closestIdentifier(identifier string, refs map[string]program.ReferenceItem) string {
	var closest string
	best := minIdentifierSim
	for known := range refs {
		ratio := difflib.NewMatcher(strings.Split(identifier, ""), strings.Split(known, "")).QuickRatio()
		if ratio >= best {
			closest, best = known, ratio
		}
	}
	return closest
}
