// Package invocation provides the value types behind sound manifestation:
// frequency bands with logarithmic overlap, active niches, and the
// candidate payloads queued for admission.
package invocation

import "math"

// Band is a frequency interval in Hz.
type Band struct {
	low  float64
	high float64
}

// NewBand creates a Band.
func NewBand(low, high float64) Band {
	return Band{low: low, high: high}
}

// Low returns the low bound in Hz.
func (b Band) Low() float64 { return b.low }

// High returns the high bound in Hz.
func (b Band) High() float64 { return b.high }

// Overlap returns the logarithmic overlap of two bands as
// intersection-over-union on log2-scaled bounds, in [0, 1]. Bounds are
// clamped to 1 Hz before scaling. A zero union (both bands collapse to the
// same single frequency) counts as no overlap.
func (b Band) Overlap(other Band) float64 {
	lo1 := math.Log2(max(b.low, 1))
	hi1 := math.Log2(max(b.high, 1))
	lo2 := math.Log2(max(other.low, 1))
	hi2 := math.Log2(max(other.high, 1))

	inter := max(0, min(hi1, hi2)-max(lo1, lo2))
	union := max(hi1, hi2) - min(lo1, lo2)
	if union == 0 {
		return 0
	}
	return inter / union
}
