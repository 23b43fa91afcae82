package catalog

import "time"

// Effect is a processing tool registered in the catalog, keyed by its
// unique path and referenced by presets.
type Effect struct {
	id          int64
	path        string
	name        string
	description string
	createdAt   time.Time
}

// NewEffect creates an Effect.
func NewEffect(path, name, description string) Effect {
	return Effect{
		path:        path,
		name:        name,
		description: description,
		createdAt:   time.Now(),
	}
}

// ReconstructEffect reconstructs an Effect from persistence.
func ReconstructEffect(id int64, path, name, description string, createdAt time.Time) Effect {
	return Effect{
		id:          id,
		path:        path,
		name:        name,
		description: description,
		createdAt:   createdAt,
	}
}

// ID returns the store identifier (zero until persisted).
func (e Effect) ID() int64 { return e.id }

// Path returns the unique effect path.
func (e Effect) Path() string { return e.path }

// Name returns the effect name.
func (e Effect) Name() string { return e.name }

// Description returns the human description.
func (e Effect) Description() string { return e.description }

// CreatedAt returns the creation timestamp.
func (e Effect) CreatedAt() time.Time { return e.createdAt }

// WithDescription returns a copy with an updated description.
func (e Effect) WithDescription(description string) Effect {
	e.description = description
	return e
}
