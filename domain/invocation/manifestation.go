package invocation

import "time"

// Manifestation is the payload of one /manifest event: everything a client
// needs to realize an admitted sound. Parameters are carried as a JSON
// array string ("[]" for segments).
type Manifestation struct {
	collection  string
	score       float64
	path        string
	description string
	start       float64
	end         float64
	paramsJSON  string
}

// NewManifestation creates a Manifestation.
func NewManifestation(collection string, score float64, path, description string, start, end float64, paramsJSON string) Manifestation {
	return Manifestation{
		collection:  collection,
		score:       score,
		path:        path,
		description: description,
		start:       start,
		end:         end,
		paramsJSON:  paramsJSON,
	}
}

// Collection returns the source collection tag ("segments" or "presets").
func (m Manifestation) Collection() string { return m.collection }

// Score returns the similarity score from the originating search.
func (m Manifestation) Score() float64 { return m.score }

// Path returns the source file or effect path.
func (m Manifestation) Path() string { return m.path }

// Description returns the human description.
func (m Manifestation) Description() string { return m.description }

// Start returns the normalized start position within the source.
func (m Manifestation) Start() float64 { return m.start }

// End returns the normalized end position within the source.
func (m Manifestation) End() float64 { return m.end }

// ParamsJSON returns the parameters as a JSON array string.
func (m Manifestation) ParamsJSON() string { return m.paramsJSON }

// Candidate is one queued manifestation awaiting admission: the payload to
// emit, the sound identity and band for niche accounting, and the enqueue
// instant that fixes FIFO order.
type Candidate struct {
	soundID    int64
	payload    Manifestation
	band       Band
	duration   float64
	enqueuedAt time.Time
}

// NewCandidate creates a Candidate.
func NewCandidate(soundID int64, payload Manifestation, band Band, duration float64, enqueuedAt time.Time) Candidate {
	return Candidate{
		soundID:    soundID,
		payload:    payload,
		band:       band,
		duration:   duration,
		enqueuedAt: enqueuedAt,
	}
}

// SoundID returns the sound identity used for niche accounting.
func (c Candidate) SoundID() int64 { return c.soundID }

// Payload returns the manifestation to emit on admission.
func (c Candidate) Payload() Manifestation { return c.payload }

// Band returns the frequency band the sound will occupy.
func (c Candidate) Band() Band { return c.band }

// Duration returns how long the admitted niche lasts, in seconds.
func (c Candidate) Duration() float64 { return c.duration }

// EnqueuedAt returns the enqueue instant.
func (c Candidate) EnqueuedAt() time.Time { return c.enqueuedAt }
