package invocation

import "time"

// Niche is an occupied time-frequency rectangle: one admitted sound holding
// its band until the end instant. Niches are ephemeral orchestrator state,
// never persisted.
type Niche struct {
	soundID int64
	start   time.Time
	end     time.Time
	band    Band
}

// NewNiche creates a Niche.
func NewNiche(soundID int64, start, end time.Time, band Band) Niche {
	return Niche{
		soundID: soundID,
		start:   start,
		end:     end,
		band:    band,
	}
}

// SoundID returns the id of the admitted sound.
func (n Niche) SoundID() int64 { return n.soundID }

// Start returns the admission instant.
func (n Niche) Start() time.Time { return n.start }

// End returns the instant the niche frees its band.
func (n Niche) End() time.Time { return n.end }

// Band returns the occupied frequency band.
func (n Niche) Band() Band { return n.band }

// Expired reports whether the niche has ended at now (now >= end).
func (n Niche) Expired(now time.Time) bool {
	return !now.Before(n.end)
}

// Conflicts reports whether admitting the candidate band alongside this
// niche would exceed the overlap threshold.
func (n Niche) Conflicts(candidate Band, threshold float64) bool {
	return n.band.Overlap(candidate) > threshold
}
