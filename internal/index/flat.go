package index

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// Flat is an exact index ranking by squared Euclidean distance. Equal
// distances keep insertion order.
type Flat struct {
	dim     int
	vectors [][]float32
}

func NewFlat() *Flat {
	return &Flat{}
}

func (f *Flat) Build(_ context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return ErrNoVectors
	}
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("index: empty vector at position 0")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("index: vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	f.dim = dim
	f.vectors = slices.Clone(vectors)
	return nil
}

func (f *Flat) Search(_ context.Context, query []float32, k int) ([]int, error) {
	if len(f.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("index: query has dimension %d, want %d", len(query), f.dim)
	}

	type hit struct {
		pos  int
		dist float64
	}
	hits := make([]hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = hit{pos: i, dist: squaredL2(v, query)}
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return cmp.Compare(a.dist, b.dist) })

	k = min(k, len(hits))
	out := make([]int, k)
	for i := range out {
		out[i] = hits[i].pos
	}
	return out, nil
}

func (f *Flat) Size() int {
	return len(f.vectors)
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
