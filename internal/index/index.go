// Package index defines the nearest-neighbour index used for retrieval and an
// exact in-memory implementation.
package index

import (
	"context"
	"errors"
)

// ErrNoVectors is returned when an index is built over zero vectors.
var ErrNoVectors = errors.New("index: no vectors to build")

// Index maps vector positions to nearest-neighbour search results. Positions
// are the order in which vectors were passed to Build.
type Index interface {
	// Build replaces any previous contents with vectors.
	Build(ctx context.Context, vectors [][]float32) error
	// Search returns up to k positions, nearest first. An index that was
	// never built returns an empty result.
	Search(ctx context.Context, query []float32, k int) ([]int, error)
	Size() int
}

// Factory creates an empty index.
type Factory func() (Index, error)
