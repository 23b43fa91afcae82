package persistence

import "time"

// RecordingModel represents a source recording in the database.
type RecordingModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Path        string    `gorm:"column:path;uniqueIndex;size:1024"`
	Description string    `gorm:"column:description;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

// TableName returns the table name.
func (RecordingModel) TableName() string {
	return "recordings"
}

// SegmentationModel represents a segmentation run in the database.
type SegmentationModel struct {
	ID          string    `gorm:"column:id;primaryKey;size:255"`
	Method      string    `gorm:"column:method;size:255"`
	Parameters  string    `gorm:"column:parameters;type:text"`
	Description string    `gorm:"column:description;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

// TableName returns the table name.
func (SegmentationModel) TableName() string {
	return "segmentations"
}

// SegmentModel represents a recording segment in the database.
// EmbeddingRow is nullable: NULL marks a segment that has no vector
// index row yet, so the unique index tolerates any number of them.
type SegmentModel struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SourcePath     string    `gorm:"column:source_path;index;size:1024"`
	SegmentationID string    `gorm:"column:segmentation_id;index;size:255"`
	Start          float64   `gorm:"column:start"`
	End            float64   `gorm:"column:end"`
	Description    string    `gorm:"column:description;type:text"`
	EmbeddingText  string    `gorm:"column:embedding_text;type:text"`
	EmbeddingRow   *int      `gorm:"column:embedding_row;uniqueIndex"`
	FreqLow        float64   `gorm:"column:freq_low;default:0"`
	FreqHigh       float64   `gorm:"column:freq_high;default:0"`
	Duration       float64   `gorm:"column:duration;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
}

// TableName returns the table name.
func (SegmentModel) TableName() string {
	return "segments"
}

// EffectModel represents a sound effect in the database.
type EffectModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Path        string    `gorm:"column:path;uniqueIndex;size:1024"`
	Name        string    `gorm:"column:name;size:255"`
	Description string    `gorm:"column:description;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

// TableName returns the table name.
func (EffectModel) TableName() string {
	return "effects"
}

// PresetModel represents an effect preset in the database. Parameters is
// a JSON array of name/value pairs.
type PresetModel struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	EffectPath    string    `gorm:"column:effect_path;index;size:1024"`
	Parameters    string    `gorm:"column:parameters;type:text"`
	Description   string    `gorm:"column:description;type:text"`
	EmbeddingText string    `gorm:"column:embedding_text;type:text"`
	EmbeddingRow  *int      `gorm:"column:embedding_row;uniqueIndex"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
}

// TableName returns the table name.
func (PresetModel) TableName() string {
	return "presets"
}

// PerformanceModel represents a performance session in the database.
type PerformanceModel struct {
	ID        string    `gorm:"column:id;primaryKey;size:255"`
	Date      time.Time `gorm:"column:date"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName returns the table name.
func (PerformanceModel) TableName() string {
	return "performances"
}

// InvocationModel represents one logged invocation within a performance.
type InvocationModel struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PerformanceID string    `gorm:"column:performance_id;index;size:255"`
	Text          string    `gorm:"column:text;type:text"`
	SegmentID     int64     `gorm:"column:segment_id;default:0"`
	EffectID      int64     `gorm:"column:effect_id;default:0"`
	Offset        float64   `gorm:"column:time_offset"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
}

// TableName returns the table name.
func (InvocationModel) TableName() string {
	return "invocations"
}
