package catalog

import (
	"fmt"
	"time"
)

// Invocation is one logged query within a performance: the raw text cast by
// the client, the top matched documents, and the offset from the start of
// the session. Zero ids mean no match in that collection.
type Invocation struct {
	text      string
	segmentID int64
	effectID  int64
	offset    float64
}

// NewInvocation creates an Invocation.
func NewInvocation(text string, segmentID, effectID int64, offset float64) Invocation {
	return Invocation{
		text:      text,
		segmentID: segmentID,
		effectID:  effectID,
		offset:    offset,
	}
}

// Text returns the raw query text.
func (i Invocation) Text() string { return i.text }

// SegmentID returns the id of the top segment hit (0 when none).
func (i Invocation) SegmentID() int64 { return i.segmentID }

// EffectID returns the id of the top effect hit (0 when none).
func (i Invocation) EffectID() int64 { return i.effectID }

// Offset returns seconds elapsed since the performance started.
func (i Invocation) Offset() float64 { return i.offset }

// Performance is one server session with an append-only invocation log.
// The server opens one per process.
type Performance struct {
	id          string
	date        time.Time
	invocations []Invocation
}

// NewPerformance creates a Performance starting at date, with an id derived
// from it. Nanosecond precision keeps ids unique across quick restarts
// against the same store.
func NewPerformance(date time.Time) Performance {
	return Performance{
		id:   fmt.Sprintf("performance_%s", date.Format(time.RFC3339Nano)),
		date: date,
	}
}

// ReconstructPerformance reconstructs a Performance from persistence.
func ReconstructPerformance(id string, date time.Time, invocations []Invocation) Performance {
	out := make([]Invocation, len(invocations))
	copy(out, invocations)
	return Performance{
		id:          id,
		date:        date,
		invocations: out,
	}
}

// ID returns the natural key (performance_<RFC3339Nano start>).
func (p Performance) ID() string { return p.id }

// Date returns the session start instant.
func (p Performance) Date() time.Time { return p.date }

// Invocations returns the logged invocations in append order.
func (p Performance) Invocations() []Invocation {
	out := make([]Invocation, len(p.invocations))
	copy(out, p.invocations)
	return out
}
