package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fyrsmithlabs/askcatalog/internal/catalog"
)

// Embedder embeds entry texts, one vector per text.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Match is one search result.
type Match struct {
	Row      int
	Distance float32
	Entry    catalog.Entry
}

// Index is an immutable set of entry embeddings.
type Index struct {
	manifest Manifest
	entries  []catalog.Entry
	vectors  []float32
	chromem  *chromemSearcher
}

// Build embeds the description of every entry. Row i holds entries[i].
func Build(ctx context.Context, embedder Embedder, entries []catalog.Entry, opts Options) (*Index, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = embedText(e)
	}
	embeddings, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d entries: %w", len(entries), err)
	}
	if len(embeddings) != len(entries) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d entries", len(embeddings), len(entries))
	}

	dim := len(embeddings[0])
	if dim == 0 {
		return nil, fmt.Errorf("embedder returned empty vectors")
	}
	flat := make([]float32, 0, len(entries)*dim)
	for i, v := range embeddings {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		flat = append(flat, v...)
	}

	m := Manifest{
		IndexVersion: indexVersion,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		ModelID:      opts.ModelID,
		Dim:          dim,
		Rows:         len(entries),
		Backend:      opts.backend(),
	}
	return newIndex(ctx, m, append([]catalog.Entry(nil), entries...), flat)
}

func newIndex(ctx context.Context, m Manifest, entries []catalog.Entry, vectors []float32) (*Index, error) {
	idx := &Index{manifest: m, entries: entries, vectors: vectors}
	switch m.Backend {
	case BackendFlat:
	case BackendChromem:
		s, err := newChromemSearcher(ctx, m.Dim, vectors)
		if err != nil {
			return nil, err
		}
		idx.chromem = s
	default:
		return nil, fmt.Errorf("unknown index backend %q", m.Backend)
	}
	return idx, nil
}

// embedText is the description, or the name when the description is blank.
func embedText(e catalog.Entry) string {
	if d := e.Description(); d != "" {
		return d
	}
	if n := e.Name(); n != "" {
		return n
	}
	return e.ID()
}

// Len returns the number of rows.
func (x *Index) Len() int { return len(x.entries) }

// Dim returns the vector dimension.
func (x *Index) Dim() int { return x.manifest.Dim }

// Manifest returns the index manifest.
func (x *Index) Manifest() Manifest { return x.manifest }

// Entry returns the entry at row.
func (x *Index) Entry(row int) (catalog.Entry, bool) {
	if row < 0 || row >= len(x.entries) {
		return catalog.Entry{}, false
	}
	return x.entries[row], true
}

// Entries returns a copy of the entries in row order.
func (x *Index) Entries() []catalog.Entry {
	return append([]catalog.Entry(nil), x.entries...)
}

func (x *Index) row(i int) []float32 {
	d := x.manifest.Dim
	return x.vectors[i*d : (i+1)*d]
}

// Search returns up to k rows nearest to query, closest first. k is clamped to
// the number of rows; equal distances keep row order.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	if len(query) != x.manifest.Dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), x.manifest.Dim)
	}
	if k <= 0 || len(x.entries) == 0 {
		return nil, nil
	}
	if k > len(x.entries) {
		k = len(x.entries)
	}
	if x.chromem != nil {
		matches, err := x.chromem.search(ctx, query, k)
		if err != nil {
			return nil, err
		}
		for i := range matches {
			matches[i].Entry = x.entries[matches[i].Row]
		}
		return matches, nil
	}

	matches := make([]Match, len(x.entries))
	for i := range x.entries {
		matches[i] = Match{Row: i, Distance: squaredL2(query, x.row(i)), Entry: x.entries[i]}
	}
	sortMatches(matches)
	return matches[:k], nil
}

func sortMatches(m []Match) {
	sort.SliceStable(m, func(i, j int) bool {
		if m[i].Distance != m[j].Distance {
			return m[i].Distance < m[j].Distance
		}
		return m[i].Row < m[j].Row
	})
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
