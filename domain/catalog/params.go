package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// AddRecordingParams carries one recording registration. Path arrives as
// its own transport argument, so it is excluded from the JSON blob.
type AddRecordingParams struct {
	Path        string `json:"-" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// AddEffectParams carries one effect registration.
type AddEffectParams struct {
	Path        string `json:"-" validate:"required"`
	Name        string `json:"name"`
	Description string `json:"description" validate:"required"`
}

// AddSegmentParams carries one segment ingest request. Description arrives
// as its own transport argument. Frequency bounds come together or not at
// all, with low strictly below high.
type AddSegmentParams struct {
	Description    string  `json:"-" validate:"required"`
	SourcePath     string  `json:"source_path" validate:"required"`
	SegmentationID string  `json:"segmentation_id"`
	Start          float64 `json:"start" validate:"gte=0,lt=1"`
	End            float64 `json:"end" validate:"gtfield=Start,lte=1"`
	FreqLow        float64 `json:"freq_low" validate:"required_with=FreqHigh,omitempty,gt=0"`
	FreqHigh       float64 `json:"freq_high" validate:"required_with=FreqLow,omitempty,gtfield=FreqLow"`
	Duration       float64 `json:"duration" validate:"omitempty,gt=0"`
}

// AddPresetParams carries one preset ingest request.
type AddPresetParams struct {
	Description string      `json:"-" validate:"required"`
	EffectPath  string      `json:"effect_path" validate:"required"`
	Parameters  []Parameter `json:"parameters" validate:"dive"`
}

// DecodeParams decodes a JSON document into a params struct. Unknown
// fields fail the decode so malformed requests are reported rather than
// silently truncated.
func DecodeParams(data []byte, params any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

// ValidateParams checks a params struct against its validation tags. It is
// separate from DecodeParams because transport arguments (path, description)
// are filled in after the blob is decoded.
func ValidateParams(params any) error {
	if err := validate.Struct(params); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}
