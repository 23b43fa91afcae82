package catalog

import (
	"encoding/json"
	"time"
)

// Parameter is one named control value in a preset's ordered parameter
// list. The list is serialized to JSON for storage and for the wire, so
// fields stay exported.
type Parameter struct {
	Name  string  `json:"name" validate:"required"`
	Value float64 `json:"value"`
}

// Preset is a named configuration of an effect. Like a segment, an indexed
// preset owns exactly one vector-index row.
type Preset struct {
	id            int64
	effectPath    string
	parameters    []Parameter
	description   string
	embeddingText string
	row           int
	createdAt     time.Time
}

// NewPreset creates a Preset with no index row assigned.
func NewPreset(effectPath string, parameters []Parameter, description, embeddingText string) Preset {
	return Preset{
		effectPath:    effectPath,
		parameters:    copyParameters(parameters),
		description:   description,
		embeddingText: embeddingText,
		row:           UnassignedRow,
		createdAt:     time.Now(),
	}
}

// ReconstructPreset reconstructs a Preset from persistence.
func ReconstructPreset(
	id int64,
	effectPath string,
	parameters []Parameter,
	description, embeddingText string,
	row int,
	createdAt time.Time,
) Preset {
	return Preset{
		id:            id,
		effectPath:    effectPath,
		parameters:    copyParameters(parameters),
		description:   description,
		embeddingText: embeddingText,
		row:           row,
		createdAt:     createdAt,
	}
}

// ID returns the store identifier (zero until persisted).
func (p Preset) ID() int64 { return p.id }

// EffectPath returns the path of the effect this preset configures.
func (p Preset) EffectPath() string { return p.effectPath }

// Parameters returns the ordered parameter list.
func (p Preset) Parameters() []Parameter {
	return copyParameters(p.parameters)
}

// ParametersJSON returns the parameter list as a JSON array string, the
// form carried in manifestation payloads.
func (p Preset) ParametersJSON() string {
	data, err := json.Marshal(p.parameters)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// Description returns the human description.
func (p Preset) Description() string { return p.description }

// EmbeddingText returns the composed text the embedding was built from.
func (p Preset) EmbeddingText() string { return p.embeddingText }

// Row returns the vector-index row, or UnassignedRow.
func (p Preset) Row() int { return p.row }

// CreatedAt returns the creation timestamp.
func (p Preset) CreatedAt() time.Time { return p.createdAt }

// WithRow returns a copy bound to a vector-index row.
func (p Preset) WithRow(row int) Preset {
	p.row = row
	return p
}

// WithEmbedding returns a copy with the embedding text and row replaced
// together, keeping the document atomic under rebuild.
func (p Preset) WithEmbedding(text string, row int) Preset {
	p.embeddingText = text
	p.row = row
	return p
}

func copyParameters(parameters []Parameter) []Parameter {
	out := make([]Parameter, len(parameters))
	copy(out, parameters)
	return out
}
