package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/askmydocs/internal/core/domain"
	"github.com/kirillkom/askmydocs/internal/core/ports"
)

const defaultTopK = 5

// Retriever embeds a query and resolves the nearest index rows to chunk
// records. It works on one snapshot so the index and metadata it reads
// always agree.
type Retriever struct {
	embedder ports.Embedder
	topK     int
}

func NewRetriever(embedder ports.Embedder, topK int) *Retriever {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Retriever{embedder: embedder, topK: topK}
}

// Retrieve returns at most k results ranked from 1. A k of zero or less uses
// the configured default. A nil or empty snapshot yields no results.
func (r *Retriever) Retrieve(ctx context.Context, snap ports.IndexSnapshot, query string, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		k = r.topK
	}
	if snap == nil || snap.Len() == 0 {
		return []domain.RetrievalResult{}, nil
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := snap.Search(vector, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	out := make([]domain.RetrievalResult, 0, len(hits))
	for i, hit := range hits {
		rec, err := snap.Record(hit.Row)
		if err != nil {
			return nil, fmt.Errorf("resolve row %d: %w", hit.Row, err)
		}
		out = append(out, domain.RetrievalResult{
			DocID:   rec.DocID,
			ChunkID: rec.ChunkID,
			Text:    rec.Text,
			Source:  rec.Source,
			Rank:    i + 1,
			Score:   hit.Score,
		})
	}
	return out, nil
}
