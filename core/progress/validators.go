package progress

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/voicelab/auris/core"
	"github.com/voicelab/auris/core/answer"
	"github.com/voicelab/auris/core/program"
)

var (
	featureTag  = "feature"
	featureText = "must be one of roughness or breathiness"
)

// RegisterValidators adds this package's custom validation tags. Call once
// after core.InitValidators.
func RegisterValidators() {
	_ = core.Validate.RegisterValidation(featureTag, featureValidation)
	core.RegisterCustomTranslation(core.Validate, core.Translator, featureTag, featureText)
}

func featureValidation(fl validator.FieldLevel) bool {
	return program.Feature(fl.Field().String()).IsValid()
}

// EnrollInput enrolls the actor in a program.
type EnrollInput struct {
	ProgramID string `json:"program_id" validate:"required"`
}

func (in *EnrollInput) Validate() error {
	in.ProgramID = core.CleanString(in.ProgramID)
	return core.Validate.Struct(in)
}

// AssessmentInput is a completed assessment run.
type AssessmentInput struct {
	StartDate time.Time                `json:"start_date" validate:"required"`
	EndDate   time.Time                `json:"end_date" validate:"required,gtefield=StartDate"`
	Audios    []answer.AssessmentAudio `json:"audios" validate:"required,min=1,dive"`
}

func (in *AssessmentInput) Validate() error {
	return core.Validate.Struct(in)
}

// TrainingInput is a completed training run for one feature.
type TrainingInput struct {
	Feature   program.Feature        `json:"feature" validate:"required,feature"`
	StartDate time.Time              `json:"start_date" validate:"required"`
	EndDate   time.Time              `json:"end_date" validate:"required,gtefield=StartDate"`
	Audios    []answer.TrainingAudio `json:"audios" validate:"required,min=1,dive"`
}

func (in *TrainingInput) Validate() error {
	return core.Validate.Struct(in)
}
