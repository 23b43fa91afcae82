package persistence

import (
	"encoding/json"

	"github.com/hibikido/hibikido/domain/catalog"
)

// RecordingMapper maps between domain Recording and RecordingModel.
type RecordingMapper struct{}

// ToDomain converts a RecordingModel to a domain Recording.
func (m RecordingMapper) ToDomain(e RecordingModel) catalog.Recording {
	return catalog.ReconstructRecording(e.ID, e.Path, e.Description, e.CreatedAt)
}

// ToModel converts a domain Recording to a RecordingModel.
func (m RecordingMapper) ToModel(r catalog.Recording) RecordingModel {
	return RecordingModel{
		ID:          r.ID(),
		Path:        r.Path(),
		Description: r.Description(),
		CreatedAt:   r.CreatedAt(),
	}
}

// SegmentationMapper maps between domain Segmentation and SegmentationModel.
type SegmentationMapper struct{}

// ToDomain converts a SegmentationModel to a domain Segmentation.
func (m SegmentationMapper) ToDomain(e SegmentationModel) catalog.Segmentation {
	return catalog.ReconstructSegmentation(
		e.ID,
		e.Method,
		decodeParameterMap(e.Parameters),
		e.Description,
		e.CreatedAt,
	)
}

// ToModel converts a domain Segmentation to a SegmentationModel.
func (m SegmentationMapper) ToModel(s catalog.Segmentation) SegmentationModel {
	return SegmentationModel{
		ID:          s.ID(),
		Method:      s.Method(),
		Parameters:  encodeParameterMap(s.Parameters()),
		Description: s.Description(),
		CreatedAt:   s.CreatedAt(),
	}
}

// SegmentMapper maps between domain Segment and SegmentModel.
type SegmentMapper struct{}

// ToDomain converts a SegmentModel to a domain Segment.
func (m SegmentMapper) ToDomain(e SegmentModel) catalog.Segment {
	return catalog.ReconstructSegment(
		e.ID,
		e.SourcePath,
		e.SegmentationID,
		e.Start,
		e.End,
		e.Description,
		e.EmbeddingText,
		rowFromDB(e.EmbeddingRow),
		e.FreqLow,
		e.FreqHigh,
		e.Duration,
		e.CreatedAt,
	)
}

// ToModel converts a domain Segment to a SegmentModel.
func (m SegmentMapper) ToModel(s catalog.Segment) SegmentModel {
	return SegmentModel{
		ID:             s.ID(),
		SourcePath:     s.SourcePath(),
		SegmentationID: s.SegmentationID(),
		Start:          s.Start(),
		End:            s.End(),
		Description:    s.Description(),
		EmbeddingText:  s.EmbeddingText(),
		EmbeddingRow:   rowToDB(s.Row()),
		FreqLow:        s.FreqLow(),
		FreqHigh:       s.FreqHigh(),
		Duration:       s.Duration(),
		CreatedAt:      s.CreatedAt(),
	}
}

// EffectMapper maps between domain Effect and EffectModel.
type EffectMapper struct{}

// ToDomain converts an EffectModel to a domain Effect.
func (m EffectMapper) ToDomain(e EffectModel) catalog.Effect {
	return catalog.ReconstructEffect(e.ID, e.Path, e.Name, e.Description, e.CreatedAt)
}

// ToModel converts a domain Effect to an EffectModel.
func (m EffectMapper) ToModel(e catalog.Effect) EffectModel {
	return EffectModel{
		ID:          e.ID(),
		Path:        e.Path(),
		Name:        e.Name(),
		Description: e.Description(),
		CreatedAt:   e.CreatedAt(),
	}
}

// PresetMapper maps between domain Preset and PresetModel.
type PresetMapper struct{}

// ToDomain converts a PresetModel to a domain Preset.
func (m PresetMapper) ToDomain(e PresetModel) catalog.Preset {
	return catalog.ReconstructPreset(
		e.ID,
		e.EffectPath,
		decodeParameterList(e.Parameters),
		e.Description,
		e.EmbeddingText,
		rowFromDB(e.EmbeddingRow),
		e.CreatedAt,
	)
}

// ToModel converts a domain Preset to a PresetModel.
func (m PresetMapper) ToModel(p catalog.Preset) PresetModel {
	return PresetModel{
		ID:            p.ID(),
		EffectPath:    p.EffectPath(),
		Parameters:    p.ParametersJSON(),
		Description:   p.Description(),
		EmbeddingText: p.EmbeddingText(),
		EmbeddingRow:  rowToDB(p.Row()),
		CreatedAt:     p.CreatedAt(),
	}
}

// PerformanceMapper maps between domain Performance and PerformanceModel.
// Invocations live in their own table; the store loads and attaches them.
type PerformanceMapper struct{}

// ToDomain converts a PerformanceModel to a domain Performance without
// its invocation log.
func (m PerformanceMapper) ToDomain(e PerformanceModel) catalog.Performance {
	return catalog.ReconstructPerformance(e.ID, e.Date, nil)
}

// ToModel converts a domain Performance to a PerformanceModel.
func (m PerformanceMapper) ToModel(p catalog.Performance) PerformanceModel {
	return PerformanceModel{
		ID:   p.ID(),
		Date: p.Date(),
	}
}

// InvocationMapper maps between domain Invocation and InvocationModel.
type InvocationMapper struct{}

// ToDomain converts an InvocationModel to a domain Invocation.
func (m InvocationMapper) ToDomain(e InvocationModel) catalog.Invocation {
	return catalog.NewInvocation(e.Text, e.SegmentID, e.EffectID, e.Offset)
}

// ToModel converts a domain Invocation to an InvocationModel. The
// performance id is assigned by the store.
func (m InvocationMapper) ToModel(i catalog.Invocation) InvocationModel {
	return InvocationModel{
		Text:      i.Text(),
		SegmentID: i.SegmentID(),
		EffectID:  i.EffectID(),
		Offset:    i.Offset(),
	}
}

// rowToDB converts a domain row to its nullable column value.
func rowToDB(row int) *int {
	if row < 0 {
		return nil
	}
	return &row
}

// rowFromDB converts a nullable row column to the domain value.
func rowFromDB(row *int) int {
	if row == nil {
		return catalog.UnassignedRow
	}
	return *row
}

func encodeParameterMap(params map[string]any) string {
	data, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeParameterMap(s string) map[string]any {
	if s == "" {
		return nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(s), &params); err != nil {
		return nil
	}
	return params
}

func decodeParameterList(s string) []catalog.Parameter {
	if s == "" {
		return nil
	}
	var params []catalog.Parameter
	if err := json.Unmarshal([]byte(s), &params); err != nil {
		return nil
	}
	return params
}
