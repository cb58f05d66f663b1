// Package flat implements an exact inner-product vector index. Rows are kept
// in insertion order in one contiguous float32 slice.
package flat

import (
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

// Index is immutable once returned; Add produces a new value.
type Index struct {
	dim  int
	rows int
	data []float32
}

// Build creates an index from a non-empty set of equally sized vectors.
func Build(vectors [][]float32) (*Index, error) {
	if len(vectors) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build index", fmt.Errorf("no vectors"))
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build index", fmt.Errorf("zero-length vector"))
	}
	ix := &Index{dim: dim}
	return ix.Add(vectors)
}

// Add returns a new index holding the existing rows followed by vectors.
// On a nil or empty index it behaves like Build. NaN and infinite components
// are rejected so that every score stays comparable.
func (ix *Index) Add(vectors [][]float32) (*Index, error) {
	if ix == nil || ix.dim == 0 {
		return Build(vectors)
	}
	for i, v := range vectors {
		if len(v) != ix.dim {
			return nil, domain.WrapError(domain.ErrDimensionMismatch, "add vectors",
				fmt.Errorf("vector %d has dimension %d, index has %d", i, len(v), ix.dim))
		}
		if !finite(v) {
			return nil, domain.WrapError(domain.ErrInvalidInput, "add vectors",
				fmt.Errorf("vector %d has a non-finite component", i))
		}
	}

	data := make([]float32, 0, len(ix.data)+len(vectors)*ix.dim)
	data = append(data, ix.data...)
	for _, v := range vectors {
		data = append(data, v...)
	}
	return &Index{dim: ix.dim, rows: ix.rows + len(vectors), data: data}, nil
}

func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return ix.rows
}

func (ix *Index) Dimension() int {
	if ix == nil {
		return 0
	}
	return ix.dim
}

func (ix *Index) row(i int) []float32 {
	return ix.data[i*ix.dim : (i+1)*ix.dim]
}

// Search returns up to k rows ordered by descending inner product with
// query. Equal scores are ordered by ascending row.
func (ix *Index) Search(query []float32, k int) ([]domain.Hit, error) {
	if ix.Len() == 0 || k <= 0 {
		return []domain.Hit{}, nil
	}
	if len(query) != ix.dim {
		return nil, domain.WrapError(domain.ErrDimensionMismatch, "search index",
			fmt.Errorf("query has dimension %d, index has %d", len(query), ix.dim))
	}
	if !finite(query) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search index", fmt.Errorf("query has a non-finite component"))
	}

	hits := make([]domain.Hit, ix.rows)
	for row := 0; row < ix.rows; row++ {
		hits[row] = domain.Hit{Row: row, Score: dot(query, ix.row(row))}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Row < hits[j].Row
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func finite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
