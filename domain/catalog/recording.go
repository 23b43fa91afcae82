// Package catalog provides the document model for the sound catalog:
// recordings and their segments, effects and their presets, segmentation
// runs, and performance logs. Stores enforce referential integrity between
// the collections; vector-index rows are recorded on segments and presets
// but owned by the index.
package catalog

import "time"

// Recording is an immutable source audio file registered in the catalog.
// Recordings are keyed by their unique file path and referenced by segments.
type Recording struct {
	id          int64
	path        string
	description string
	createdAt   time.Time
}

// NewRecording creates a Recording for a file path.
func NewRecording(path, description string) Recording {
	return Recording{
		path:        path,
		description: description,
		createdAt:   time.Now(),
	}
}

// ReconstructRecording reconstructs a Recording from persistence.
func ReconstructRecording(id int64, path, description string, createdAt time.Time) Recording {
	return Recording{
		id:          id,
		path:        path,
		description: description,
		createdAt:   createdAt,
	}
}

// ID returns the store identifier (zero until persisted).
func (r Recording) ID() int64 { return r.id }

// Path returns the unique file path.
func (r Recording) Path() string { return r.path }

// Description returns the human description.
func (r Recording) Description() string { return r.description }

// CreatedAt returns the creation timestamp.
func (r Recording) CreatedAt() time.Time { return r.createdAt }

// WithDescription returns a copy with an updated description.
func (r Recording) WithDescription(description string) Recording {
	r.description = description
	return r
}
