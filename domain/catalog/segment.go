package catalog

import "time"

// UnassignedRow marks a segment or preset that holds no vector-index row,
// either because it has not been indexed yet or because its re-embedding
// failed during a rebuild.
const UnassignedRow = -1

// Segment is a slice of a recording, addressed by normalized time within
// the source file. Each indexed segment owns exactly one vector-index row;
// the row is UnassignedRow until the index accepts the embedding.
//
// Frequency bounds and duration are optional metadata used by the
// orchestrator's admission policy. A zero value means unset; use HasBand
// and HasDuration before reading them.
type Segment struct {
	id             int64
	sourcePath     string
	segmentationID string
	start          float64
	end            float64
	description    string
	embeddingText  string
	row            int
	freqLow        float64
	freqHigh       float64
	duration       float64
	createdAt      time.Time
}

// NewSegment creates a Segment with no index row assigned.
func NewSegment(sourcePath, segmentationID string, start, end float64, description, embeddingText string) Segment {
	return Segment{
		sourcePath:     sourcePath,
		segmentationID: segmentationID,
		start:          start,
		end:            end,
		description:    description,
		embeddingText:  embeddingText,
		row:            UnassignedRow,
		createdAt:      time.Now(),
	}
}

// ReconstructSegment reconstructs a Segment from persistence.
func ReconstructSegment(
	id int64,
	sourcePath, segmentationID string,
	start, end float64,
	description, embeddingText string,
	row int,
	freqLow, freqHigh, duration float64,
	createdAt time.Time,
) Segment {
	return Segment{
		id:             id,
		sourcePath:     sourcePath,
		segmentationID: segmentationID,
		start:          start,
		end:            end,
		description:    description,
		embeddingText:  embeddingText,
		row:            row,
		freqLow:        freqLow,
		freqHigh:       freqHigh,
		duration:       duration,
		createdAt:      createdAt,
	}
}

// ID returns the store identifier (zero until persisted).
func (s Segment) ID() int64 { return s.id }

// SourcePath returns the path of the recording this segment slices.
func (s Segment) SourcePath() string { return s.sourcePath }

// SegmentationID returns the id of the segmentation run that produced it.
func (s Segment) SegmentationID() string { return s.segmentationID }

// Start returns the normalized start position in [0.0, 1.0).
func (s Segment) Start() float64 { return s.start }

// End returns the normalized end position in (start, 1.0].
func (s Segment) End() float64 { return s.end }

// Description returns the human description.
func (s Segment) Description() string { return s.description }

// EmbeddingText returns the composed text the embedding was built from.
func (s Segment) EmbeddingText() string { return s.embeddingText }

// Row returns the vector-index row, or UnassignedRow.
func (s Segment) Row() int { return s.row }

// FreqLow returns the low frequency bound in Hz (0 when unset).
func (s Segment) FreqLow() float64 { return s.freqLow }

// FreqHigh returns the high frequency bound in Hz (0 when unset).
func (s Segment) FreqHigh() float64 { return s.freqHigh }

// Duration returns the expected playback duration in seconds (0 when unset).
func (s Segment) Duration() float64 { return s.duration }

// CreatedAt returns the creation timestamp.
func (s Segment) CreatedAt() time.Time { return s.createdAt }

// HasBand reports whether frequency bounds are set.
func (s Segment) HasBand() bool { return s.freqLow > 0 && s.freqHigh > 0 }

// HasDuration reports whether a duration is set.
func (s Segment) HasDuration() bool { return s.duration > 0 }

// WithBand returns a copy with frequency bounds set.
func (s Segment) WithBand(low, high float64) Segment {
	s.freqLow = low
	s.freqHigh = high
	return s
}

// WithDuration returns a copy with the duration set.
func (s Segment) WithDuration(seconds float64) Segment {
	s.duration = seconds
	return s
}

// WithRow returns a copy bound to a vector-index row.
func (s Segment) WithRow(row int) Segment {
	s.row = row
	return s
}

// WithEmbedding returns a copy with the embedding text and row replaced
// together, keeping the document atomic under rebuild.
func (s Segment) WithEmbedding(text string, row int) Segment {
	s.embeddingText = text
	s.row = row
	return s
}
