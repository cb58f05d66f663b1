package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

type modelFake struct {
	calls   [][]string
	err     error
	vectors func(texts []string) [][]float32
}

func (m *modelFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.calls = append(m.calls, append([]string(nil), texts...))
	if m.err != nil {
		return nil, m.err
	}
	if m.vectors != nil {
		return m.vectors(texts), nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestEmbedBatchesInOrder(t *testing.T) {
	model := &modelFake{vectors: func(texts []string) [][]float32 {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = []float32{float32(len(text)), 0}
		}
		return out
	}}
	gw := NewGateway(model, 2, false)

	vectors, err := gw.Embed(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(model.calls) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(model.calls))
	}
	for i, v := range vectors {
		if int(v[0]) != i+1 {
			t.Fatalf("vector %d out of order: %v", i, v)
		}
	}
}

func TestEmbedEmptyInputSkipsModel(t *testing.T) {
	model := &modelFake{}
	vectors, err := NewGateway(model, 4, true).Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 0 || len(model.calls) != 0 {
		t.Fatalf("expected no vectors and no calls, got %d/%d", len(vectors), len(model.calls))
	}
}

func TestEmbedWrapsModelFailure(t *testing.T) {
	gw := NewGateway(&modelFake{err: errors.New("connection refused")}, 4, false)
	_, err := gw.EmbedQuery(context.Background(), "q")
	if !domain.IsKind(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected embedding unavailable, got %v", err)
	}
}

func TestEmbedRejectsShortOrMixedResults(t *testing.T) {
	short := &modelFake{vectors: func([]string) [][]float32 { return [][]float32{{1, 0}} }}
	if _, err := NewGateway(short, 4, false).Embed(context.Background(), []string{"a", "b"}); !domain.IsKind(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected embedding unavailable for short result, got %v", err)
	}

	mixed := &modelFake{vectors: func([]string) [][]float32 { return [][]float32{{1, 0}, {1, 0, 0}} }}
	if _, err := NewGateway(mixed, 4, false).Embed(context.Background(), []string{"a", "b"}); !domain.IsKind(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestEmbedVerifiesUnitNorm(t *testing.T) {
	model := &modelFake{vectors: func([]string) [][]float32 { return [][]float32{{3, 4}} }}
	if _, err := NewGateway(model, 4, true).Embed(context.Background(), []string{"a"}); !domain.IsKind(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected norm check failure, got %v", err)
	}
	if _, err := NewGateway(model, 4, false).Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("unexpected error without verification: %v", err)
	}
}
