package catalog

import "time"

// DefaultSegmentationID is the natural key of the segmentation that
// auto-generated full-length segments are filed under. It is created on
// first use.
const DefaultSegmentationID = "manual"

// Segmentation is a named method or run that produced a batch of segments.
// It is keyed by a natural string id such as "manual".
type Segmentation struct {
	id          string
	method      string
	parameters  map[string]any
	description string
	createdAt   time.Time
}

// NewSegmentation creates a Segmentation.
func NewSegmentation(id, method string, parameters map[string]any, description string) Segmentation {
	return Segmentation{
		id:          id,
		method:      method,
		parameters:  copyParameterMap(parameters),
		description: description,
		createdAt:   time.Now(),
	}
}

// ReconstructSegmentation reconstructs a Segmentation from persistence.
func ReconstructSegmentation(id, method string, parameters map[string]any, description string, createdAt time.Time) Segmentation {
	return Segmentation{
		id:          id,
		method:      method,
		parameters:  copyParameterMap(parameters),
		description: description,
		createdAt:   createdAt,
	}
}

// ID returns the natural key.
func (s Segmentation) ID() string { return s.id }

// Method returns the segmentation method name.
func (s Segmentation) Method() string { return s.method }

// Parameters returns the open-form parameter map.
func (s Segmentation) Parameters() map[string]any {
	return copyParameterMap(s.parameters)
}

// Description returns the human description.
func (s Segmentation) Description() string { return s.description }

// CreatedAt returns the creation timestamp.
func (s Segmentation) CreatedAt() time.Time { return s.createdAt }

func copyParameterMap(parameters map[string]any) map[string]any {
	if parameters == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(parameters))
	for k, v := range parameters {
		out[k] = v
	}
	return out
}
