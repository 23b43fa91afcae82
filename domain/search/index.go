package search

import "errors"

// Collection tags recorded in the index's row side-map.
const (
	CollectionSegments = "segments"
	CollectionPresets  = "presets"
)

// ErrDimensionMismatch indicates a vector of the wrong width was offered
// to the index.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Index is an append-only store of unit vectors. Rows are assigned
// monotonically from 0 and never reused; each row carries the collection
// tag of the document that owns it. Implementations are not safe for
// concurrent use; callers serialize access.
type Index interface {
	// Add appends a vector under a collection tag and returns its row.
	Add(vector []float64, collection string) (int, error)

	// Search returns up to k rows by descending inner product with the
	// query, ties broken by lower row.
	Search(query []float64, k int) ([]Match, error)

	// CollectionOf returns the collection tag a row was added under.
	CollectionOf(row int) (string, bool)

	// Size returns the number of rows.
	Size() int

	// Save persists the index to its configured path.
	Save() error

	// Load restores the index from its configured path.
	Load() error

	// Reset drops all rows.
	Reset()
}

// Match is one vector search hit.
type Match struct {
	row   int
	score float64
}

// NewMatch creates a Match.
func NewMatch(row int, score float64) Match {
	return Match{row: row, score: score}
}

// Row returns the index row of the hit.
func (m Match) Row() int { return m.row }

// Score returns the inner product with the query, in [-1, 1] for unit
// vectors.
func (m Match) Score() float64 { return m.score }
