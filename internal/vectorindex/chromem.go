package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/philippgille/chromem-go"
)

const chromemCollection = "catalog"

var errPrecomputed = errors.New("chromem collection only accepts precomputed embeddings")

// chromemSearcher answers queries through an in-memory chromem-go collection.
// Document ids are row numbers, since capability and application ids may
// overlap.
type chromemSearcher struct {
	collection *chromem.Collection
}

func newChromemSearcher(ctx context.Context, dim int, vectors []float32) (*chromemSearcher, error) {
	db := chromem.NewDB()
	noEmbed := func(context.Context, string) ([]float32, error) { return nil, errPrecomputed }
	collection, err := db.CreateCollection(chromemCollection, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("creating chromem collection: %w", err)
	}

	rows := len(vectors) / dim
	docs := make([]chromem.Document, rows)
	for i := 0; i < rows; i++ {
		// chromem normalizes in place; keep the index vectors untouched.
		emb := make([]float32, dim)
		copy(emb, vectors[i*dim:(i+1)*dim])
		docs[i] = chromem.Document{ID: strconv.Itoa(i), Embedding: emb}
	}
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return nil, fmt.Errorf("adding chromem documents: %w", err)
	}
	return &chromemSearcher{collection: collection}, nil
}

func (s *chromemSearcher) search(ctx context.Context, query []float32, k int) ([]Match, error) {
	q := append([]float32(nil), query...)
	results, err := s.collection.QueryEmbedding(ctx, q, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying chromem: %w", err)
	}
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		row, err := strconv.Atoi(r.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: chromem document id %q", ErrIndexCorrupt, r.ID)
		}
		matches = append(matches, Match{Row: row, Distance: 1 - r.Similarity})
	}
	sortMatches(matches)
	return matches, nil
}
