package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/kirillkom/askmydocs/internal/core/domain"
	"github.com/kirillkom/askmydocs/internal/core/ports"
)

const normTolerance = 1e-3

// Gateway batches texts through an embedding model and checks the shape of
// what comes back. It adds no caching and no retries of its own.
type Gateway struct {
	model            ports.EmbeddingModel
	batchSize        int
	verifyNormalized bool
}

func NewGateway(model ports.EmbeddingModel, batchSize int, verifyNormalized bool) *Gateway {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Gateway{model: model, batchSize: batchSize, verifyNormalized: verifyNormalized}
}

// Embed returns one vector per text, in input order. Any failure fails the
// whole call.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += g.batchSize {
		end := min(start+g.batchSize, len(texts))
		batch := texts[start:end]

		vectors, err := g.model.Embed(ctx, batch)
		if err != nil {
			return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed texts", err)
		}
		if len(vectors) != len(batch) {
			return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed texts",
				fmt.Errorf("model returned %d vectors for %d texts", len(vectors), len(batch)))
		}
		out = append(out, vectors...)
	}
	if err := g.check(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *Gateway) check(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return domain.WrapError(domain.ErrEmbeddingUnavailable, "check vectors", fmt.Errorf("model returned empty vector"))
	}
	for i, v := range vectors {
		if len(v) != dim {
			return domain.WrapError(domain.ErrDimensionMismatch, "check vectors",
				fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim))
		}
		if !g.verifyNormalized {
			continue
		}
		if n := norm(v); math.Abs(n-1) > normTolerance {
			return domain.WrapError(domain.ErrEmbeddingUnavailable, "check vectors",
				fmt.Errorf("vector %d has norm %.4f, expected unit length", i, n))
		}
	}
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
