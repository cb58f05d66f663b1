package ports

import (
	"context"
	"io"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

// DocumentIngestor is the inbound contract for file uploads.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Upload, error)
}

// QuestionAnswerer is the inbound contract for retrieval-augmented answers.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question string, provider domain.Provider) (*domain.Answer, error)
}

// ChunkSearcher returns the top-k chunks for a query without generation.
type ChunkSearcher interface {
	Search(ctx context.Context, query string, k int) ([]domain.RetrievalResult, error)
}

// UploadReader is the inbound read model for upload state.
type UploadReader interface {
	GetByID(ctx context.Context, id string) (*domain.Upload, error)
}

// UploadProcessor is the inbound contract for asynchronous upload processing.
type UploadProcessor interface {
	ProcessByID(ctx context.Context, uploadID string) error
}

// CorpusIndexer builds or extends the index from a documents directory.
// AppendFrom reads dir, a subdirectory of root or root itself, and keeps ids
// relative to root.
type CorpusIndexer interface {
	Rebuild(ctx context.Context, root string) (*domain.IndexReport, error)
	AppendFrom(ctx context.Context, root, dir string) (*domain.IndexReport, error)
}

// StatsReader exposes aggregated query outcomes.
type StatsReader interface {
	Snapshot() domain.QueryStats
}
