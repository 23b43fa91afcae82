// Package embed provides a deterministic in-process embedder for tests.
//
// Vectors are bag-of-words sums of per-token hash vectors, so texts that
// share vocabulary score high and disjoint texts score near zero. Texts
// with identical token multisets embed to identical vectors.
package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/hibikido/hibikido/domain/search"
)

// Fake implements search.Embedder without a model. The same text always
// embeds to the same L2-normalized vector.
type Fake struct {
	mu    sync.Mutex
	calls [][]string
	fail  map[string]struct{}
}

var _ search.Embedder = (*Fake)(nil)

// NewFake creates a deterministic fake embedder.
func NewFake() *Fake {
	return &Fake{fail: make(map[string]struct{})}
}

// Embed returns one vector per input text. A batch containing a text
// marked with SetFail fails as a whole, the way a real provider rejects
// an entire request.
func (f *Fake) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, slices.Clone(texts))
	for _, text := range texts {
		if _, bad := f.fail[text]; bad {
			f.mu.Unlock()
			return nil, fmt.Errorf("embed batch containing %q: rejected", text)
		}
	}
	f.mu.Unlock()

	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = vectorFor(text)
	}
	return vectors, nil
}

// SetFail marks a text so that any batch containing it fails.
func (f *Fake) SetFail(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[text] = struct{}{}
}

// ClearFail unmarks a text previously marked with SetFail.
func (f *Fake) ClearFail(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.fail, text)
}

// Calls returns a copy of every batch passed to Embed.
func (f *Fake) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([][]string, len(f.calls))
	for i, batch := range f.calls {
		calls[i] = slices.Clone(batch)
	}
	return calls
}

// vectorFor sums per-token hash vectors and normalizes. Whitespace-only
// text embeds to the zero vector.
func vectorFor(text string) []float64 {
	vector := make([]float64, search.Dimension)
	for _, token := range strings.Fields(text) {
		addTokenVector(vector, token)
	}
	var norm float64
	for _, v := range vector {
		norm += v * v
	}
	if norm == 0 {
		return vector
	}
	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] /= norm
	}
	return vector
}

// addTokenVector accumulates the token's hash-derived components, four
// digest bytes per dimension mapped into [-1, 1).
func addTokenVector(vector []float64, token string) {
	var counter int
	var block [sha256.Size]byte
	used := len(block)
	for i := range vector {
		if used == len(block) {
			block = sha256.Sum256(fmt.Appendf(nil, "%s|%d", token, counter))
			counter++
			used = 0
		}
		u := binary.BigEndian.Uint32(block[used : used+4])
		vector[i] += float64(u)/float64(math.MaxUint32)*2 - 1
		used += 4
	}
}
