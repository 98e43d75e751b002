package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/index"
)

const collectionName = "chunks"

// Index keeps chunk vectors in an in-memory chromem-go collection. Results
// are ranked by cosine similarity, which orders normalised vectors the same
// way as Euclidean distance.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
}

var _ index.Index = (*Index)(nil)

// NewIndex initializes an empty in-memory database.
func NewIndex() *Index {
	return &Index{db: chromem.NewDB()}
}

// Build drops the collection and re-adds every vector, keyed by position.
func (m *Index) Build(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return index.ErrNoVectors
	}
	if err := m.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	m.collection = nil

	// vectors are always supplied, so no embedding func is needed
	c, err := m.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	docs := make([]chromem.Document, len(vectors))
	for i, v := range vectors {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(i),
			Embedding: v,
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	m.collection = c

	log.Debug().Int("documents", c.Count()).Msg("Built chromem collection")
	return nil
}

// Search returns up to k positions, most similar first.
func (m *Index) Search(ctx context.Context, query []float32, k int) ([]int, error) {
	if m.collection == nil || k <= 0 {
		return nil, nil
	}
	n := min(k, m.collection.Count())
	if n == 0 {
		return nil, nil
	}

	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: query,
		NResults:       n,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	positions := make([]int, 0, len(results))
	for _, r := range results {
		pos, err := strconv.Atoi(r.ID)
		if err != nil {
			return nil, fmt.Errorf("unexpected document id %q: %w", r.ID, err)
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func (m *Index) Size() int {
	if m.collection == nil {
		return 0
	}
	return m.collection.Count()
}
