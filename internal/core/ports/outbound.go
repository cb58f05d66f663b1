package ports

import (
	"context"
	"io"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

// UploadRepository persists and reads upload state.
type UploadRepository interface {
	Create(ctx context.Context, upload *domain.Upload) error
	GetByID(ctx context.Context, id string) (*domain.Upload, error)
	UpdateStatus(ctx context.Context, id string, status domain.UploadStatus, errMessage string) error
	SaveChunkCount(ctx context.Context, id string, chunks int) error
	ListByStatus(ctx context.Context, status domain.UploadStatus) ([]domain.Upload, error)
}

// ObjectStorage stores uploaded source files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes upload events.
type MessageQueue interface {
	PublishUploadReceived(ctx context.Context, uploadID string) error
	SubscribeUploadReceived(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored upload.
type TextExtractor interface {
	Extract(ctx context.Context, upload *domain.Upload) (string, error)
}

// CorpusLoader reads every supported file under dir as a Document whose id
// is the path relative to root.
type CorpusLoader interface {
	Load(ctx context.Context, root, dir string) ([]domain.Document, error)
}

// UploadCorpus gives a full rebuild access to uploads that live outside the
// documents directory.
type UploadCorpus interface {
	IndexedUploadIDs(ctx context.Context) ([]string, error)
	// Documents reads the given uploads back as documents. Uploads that can
	// no longer be read are marked failed and left out.
	Documents(ctx context.Context, ids []string) ([]domain.Document, error)
	RecordChunkCounts(ctx context.Context, counts map[string]int) error
}

// Chunker splits text and documents into bounded chunks.
type Chunker interface {
	Split(text string) []string
	ChunkDocuments(docs []domain.Document) []domain.Chunk
}

// EmbeddingModel is the raw embedding backend. Vectors are expected to be
// unit length so that inner product equals cosine similarity.
type EmbeddingModel interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// AnswerGenerator turns a composed prompt into answer text.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// IndexSnapshot is an immutable view of the vector index and its row-aligned
// chunk metadata. Row i of the index describes record i.
type IndexSnapshot interface {
	Len() int
	Dimension() int
	Search(queryVector []float32, k int) ([]domain.Hit, error)
	Record(row int) (domain.Chunk, error)
	HasDocument(docID string) bool
}

// IndexStore publishes snapshots and serializes writers. Append rejects chunk
// ids that are already indexed with domain.ErrInvalidInput.
type IndexStore interface {
	// Current returns nil when no index has been built or loaded.
	Current() IndexSnapshot
	Replace(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (int, error)
	Append(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (int, error)
	// Refresh picks up a pair persisted by another process since the last
	// read or write.
	Refresh(ctx context.Context) error
}
