package search

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/hibikido/hibikido/domain/search"
)

// flatIndexMagic identifies the index file format.
var flatIndexMagic = [4]byte{'H', 'B', 'I', 'X'}

// flatIndexVersion is the current file format version.
const flatIndexVersion uint32 = 1

// Collection tags are stored as single bytes on disk.
const (
	tagSegments byte = 0
	tagPresets  byte = 1
)

func collectionTag(collection string) (byte, bool) {
	switch collection {
	case search.CollectionSegments:
		return tagSegments, true
	case search.CollectionPresets:
		return tagPresets, true
	default:
		return 0, false
	}
}

func tagCollection(tag byte) (string, bool) {
	switch tag {
	case tagSegments:
		return search.CollectionSegments, true
	case tagPresets:
		return search.CollectionPresets, true
	default:
		return "", false
	}
}

// FlatIndex is an exhaustive-scan vector index held in memory and
// persisted to a single file. Rows are append-only; vectors are expected
// to be unit length so the inner product is the cosine similarity.
// Not safe for concurrent use; callers serialize access.
type FlatIndex struct {
	path        string
	dimension   int
	vectors     [][]float64
	collections []string
}

// NewFlatIndex creates an empty index persisting to path.
func NewFlatIndex(path string, dimension int) *FlatIndex {
	return &FlatIndex{
		path:      path,
		dimension: dimension,
	}
}

// Add appends a vector under a collection tag and returns its row.
func (x *FlatIndex) Add(vector []float64, collection string) (int, error) {
	if len(vector) != x.dimension {
		return 0, fmt.Errorf("%w: got %d, index expects %d", search.ErrDimensionMismatch, len(vector), x.dimension)
	}
	if _, ok := collectionTag(collection); !ok {
		return 0, fmt.Errorf("unknown collection %q", collection)
	}

	row := len(x.vectors)
	vec := make([]float64, len(vector))
	copy(vec, vector)
	x.vectors = append(x.vectors, vec)
	x.collections = append(x.collections, collection)
	return row, nil
}

// Search returns up to k rows by descending inner product with the query,
// ties broken by lower row.
func (x *FlatIndex) Search(query []float64, k int) ([]search.Match, error) {
	if len(query) != x.dimension {
		return nil, fmt.Errorf("%w: got %d, index expects %d", search.ErrDimensionMismatch, len(query), x.dimension)
	}
	if k <= 0 || len(x.vectors) == 0 {
		return []search.Match{}, nil
	}

	matches := make([]search.Match, len(x.vectors))
	for row, vec := range x.vectors {
		var dot float64
		for i, v := range vec {
			dot += v * query[i]
		}
		matches[row] = search.NewMatch(row, dot)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score() != matches[j].Score() {
			return matches[i].Score() > matches[j].Score()
		}
		return matches[i].Row() < matches[j].Row()
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// CollectionOf returns the collection tag a row was added under.
func (x *FlatIndex) CollectionOf(row int) (string, bool) {
	if row < 0 || row >= len(x.collections) {
		return "", false
	}
	return x.collections[row], true
}

// Size returns the number of rows.
func (x *FlatIndex) Size() int {
	return len(x.vectors)
}

// Reset drops all rows.
func (x *FlatIndex) Reset() {
	x.vectors = nil
	x.collections = nil
}

// Save persists the index to its configured path. The file is written to
// a temporary sibling and renamed into place so readers never observe a
// partial index.
func (x *FlatIndex) Save() error {
	dir := filepath.Dir(x.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(x.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	w := bufio.NewWriter(tmp)
	if err := x.write(w); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	if err := os.Rename(tmp.Name(), x.path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

func (x *FlatIndex) write(w *bufio.Writer) error {
	if _, err := w.Write(flatIndexMagic[:]); err != nil {
		return err
	}
	header := []uint32{flatIndexVersion, uint32(x.dimension), uint32(len(x.vectors))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	for _, collection := range x.collections {
		tag, _ := collectionTag(collection)
		if err := w.WriteByte(tag); err != nil {
			return err
		}
	}

	// Vectors are stored as float32, matching what embedding models emit.
	row := make([]float32, x.dimension)
	for _, vec := range x.vectors {
		for i, v := range vec {
			row[i] = float32(v)
		}
		if err := binary.Write(w, binary.LittleEndian, row); err != nil {
			return err
		}
	}
	return nil
}

// Load restores the index from its configured path. A missing file loads
// an empty index. In-memory state is replaced only after a full read
// succeeds.
func (x *FlatIndex) Load() error {
	f, err := os.Open(x.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			x.Reset()
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer func() { _ = f.Close() }()

	vectors, collections, err := x.read(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("read index file %s: %w", x.path, err)
	}

	x.vectors = vectors
	x.collections = collections
	return nil
}

func (x *FlatIndex) read(r *bufio.Reader) ([][]float64, []string, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, nil, err
	}
	if magic != flatIndexMagic {
		return nil, nil, errors.New("not an index file")
	}

	var version, dimension, count uint32
	for _, v := range []*uint32{&version, &dimension, &count} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, nil, err
		}
	}
	if version != flatIndexVersion {
		return nil, nil, fmt.Errorf("unsupported index version %d", version)
	}
	if int(dimension) != x.dimension {
		return nil, nil, fmt.Errorf("%w: file has %d, index expects %d", search.ErrDimensionMismatch, dimension, x.dimension)
	}

	collections := make([]string, count)
	for i := range collections {
		tag, err := r.ReadByte()
		if err != nil {
			return nil, nil, err
		}
		collection, ok := tagCollection(tag)
		if !ok {
			return nil, nil, fmt.Errorf("unknown collection tag %d at row %d", tag, i)
		}
		collections[i] = collection
	}

	vectors := make([][]float64, count)
	row := make([]float32, x.dimension)
	for i := range vectors {
		if err := binary.Read(r, binary.LittleEndian, row); err != nil {
			return nil, nil, err
		}
		vec := make([]float64, x.dimension)
		for j, v := range row {
			vec[j] = float64(v)
		}
		vectors[i] = vec
	}

	return vectors, collections, nil
}
