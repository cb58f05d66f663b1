package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/askmydocs/internal/core/domain"
	"github.com/kirillkom/askmydocs/internal/core/ports"
)

// IndexCorpusUseCase builds the index from a documents directory. Rebuild
// replaces every row; AppendFrom keeps existing rows and adds new ones at
// the end. With an upload corpus attached, a rebuild also re-indexes every
// upload the registry reports as indexed.
type IndexCorpusUseCase struct {
	loader   ports.CorpusLoader
	chunker  ports.Chunker
	embedder ports.Embedder
	index    ports.IndexStore
	uploads  ports.UploadCorpus
}

func NewIndexCorpusUseCase(
	loader ports.CorpusLoader,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.IndexStore,
) *IndexCorpusUseCase {
	return &IndexCorpusUseCase{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
	}
}

// WithUploads makes Rebuild carry indexed uploads over into the new index.
func (uc *IndexCorpusUseCase) WithUploads(uploads ports.UploadCorpus) *IndexCorpusUseCase {
	uc.uploads = uploads
	return uc
}

func (uc *IndexCorpusUseCase) Rebuild(ctx context.Context, root string) (*domain.IndexReport, error) {
	docs, err := uc.loader.Load(ctx, root, root)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	if uc.uploads == nil {
		return uc.RebuildDocuments(ctx, docs)
	}

	uploadIDs, err := uc.uploads.IndexedUploadIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexed uploads: %w", err)
	}
	uploadDocs, err := uc.uploads.Documents(ctx, uploadIDs)
	if err != nil {
		return nil, fmt.Errorf("read indexed uploads: %w", err)
	}

	report, chunks, err := uc.rebuild(ctx, append(docs, uploadDocs...))
	if err != nil {
		return nil, err
	}
	if err := uc.uploads.RecordChunkCounts(ctx, chunkCounts(chunks, uploadDocs)); err != nil {
		return nil, fmt.Errorf("record upload chunk counts: %w", err)
	}

	// An upload whose rows were appended before the replace but whose status
	// turned indexed after the listing above is missing from the new index.
	late, err := uc.missingUploads(ctx)
	if err != nil {
		return nil, err
	}
	if len(late) > 0 {
		lateDocs, err := uc.uploads.Documents(ctx, late)
		if err != nil {
			return nil, fmt.Errorf("read late uploads: %w", err)
		}
		appended, lateChunks, err := uc.appendDocuments(ctx, lateDocs)
		if err != nil {
			return nil, fmt.Errorf("append late uploads: %w", err)
		}
		if err := uc.uploads.RecordChunkCounts(ctx, chunkCounts(lateChunks, lateDocs)); err != nil {
			return nil, fmt.Errorf("record upload chunk counts: %w", err)
		}
		report.Documents += appended.Documents
		report.Chunks += appended.Chunks
		report.TotalRows = appended.TotalRows
		slog.Info("index_rebuild_late_uploads", "uploads", len(lateDocs), "chunks", appended.Chunks)
	}
	return report, nil
}

// AppendFrom reads dir with ids relative to root and appends every document
// that is not indexed yet.
func (uc *IndexCorpusUseCase) AppendFrom(ctx context.Context, root, dir string) (*domain.IndexReport, error) {
	docs, err := uc.loader.Load(ctx, root, dir)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	return uc.AppendDocuments(ctx, docs)
}

// RebuildDocuments refuses to publish an empty index: a rebuild that found
// nothing leaves the previous index in place.
func (uc *IndexCorpusUseCase) RebuildDocuments(ctx context.Context, docs []domain.Document) (*domain.IndexReport, error) {
	report, _, err := uc.rebuild(ctx, docs)
	return report, err
}

func (uc *IndexCorpusUseCase) rebuild(ctx context.Context, docs []domain.Document) (*domain.IndexReport, []domain.Chunk, error) {
	start := time.Now()
	chunks := uc.chunker.ChunkDocuments(docs)
	if len(chunks) == 0 {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "rebuild index", errors.New("no chunks produced from corpus"))
	}
	vectors, err := embedChunks(ctx, uc.embedder, chunks)
	if err != nil {
		return nil, nil, err
	}

	total, err := uc.index.Replace(ctx, chunks, vectors)
	if err != nil {
		return nil, nil, fmt.Errorf("replace index: %w", err)
	}
	report := uc.report(docs, chunks, vectors, total, start)
	slog.Info("index_rebuilt",
		"documents", report.Documents,
		"chunks", report.Chunks,
		"total_rows", report.TotalRows,
		"dimension", report.Dimension,
		"duration_ms", report.DurationMS,
	)
	return report, chunks, nil
}

// AppendDocuments skips documents that already have rows, so running an
// append twice over the same directory adds nothing the second time. With
// nothing left to add it is a no-op that reports the current size.
func (uc *IndexCorpusUseCase) AppendDocuments(ctx context.Context, docs []domain.Document) (*domain.IndexReport, error) {
	report, _, err := uc.appendDocuments(ctx, docs)
	return report, err
}

func (uc *IndexCorpusUseCase) appendDocuments(ctx context.Context, docs []domain.Document) (*domain.IndexReport, []domain.Chunk, error) {
	start := time.Now()
	if err := uc.index.Refresh(ctx); err != nil {
		return nil, nil, fmt.Errorf("refresh index: %w", err)
	}

	fresh := docs[:0:0]
	if snap := uc.index.Current(); snap != nil {
		for _, doc := range docs {
			if !snap.HasDocument(doc.ID) {
				fresh = append(fresh, doc)
			}
		}
	} else {
		fresh = append(fresh, docs...)
	}
	if skipped := len(docs) - len(fresh); skipped > 0 {
		slog.Info("index_append_skipped_indexed", "documents", skipped)
	}

	chunks := uc.chunker.ChunkDocuments(fresh)
	var vectors [][]float32
	if len(chunks) > 0 {
		var err error
		vectors, err = embedChunks(ctx, uc.embedder, chunks)
		if err != nil {
			return nil, nil, err
		}
	}

	total, err := uc.index.Append(ctx, chunks, vectors)
	if err != nil {
		return nil, nil, fmt.Errorf("append to index: %w", err)
	}
	report := uc.report(fresh, chunks, vectors, total, start)
	slog.Info("index_appended",
		"documents", report.Documents,
		"chunks", report.Chunks,
		"total_rows", report.TotalRows,
		"duration_ms", report.DurationMS,
	)
	return report, chunks, nil
}

func (uc *IndexCorpusUseCase) missingUploads(ctx context.Context) ([]string, error) {
	ids, err := uc.uploads.IndexedUploadIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexed uploads: %w", err)
	}
	if err := uc.index.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("refresh index: %w", err)
	}
	snap := uc.index.Current()
	var missing []string
	for _, id := range ids {
		if snap == nil || !snap.HasDocument(id) {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (uc *IndexCorpusUseCase) report(docs []domain.Document, chunks []domain.Chunk, vectors [][]float32, total int, start time.Time) *domain.IndexReport {
	report := &domain.IndexReport{
		Documents:  len(docs),
		Chunks:     len(chunks),
		TotalRows:  total,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if len(vectors) > 0 {
		report.Dimension = len(vectors[0])
	} else if snap := uc.index.Current(); snap != nil {
		report.Dimension = snap.Dimension()
	}
	return report
}

// embedChunks returns one vector per chunk, in chunk order.
func embedChunks(ctx context.Context, embedder ports.Embedder, chunks []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrEmbeddingUnavailable,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}

// chunkCounts counts chunks per document for the given documents only.
func chunkCounts(chunks []domain.Chunk, docs []domain.Document) map[string]int {
	counts := make(map[string]int, len(docs))
	for _, doc := range docs {
		counts[doc.ID] = 0
	}
	for _, chunk := range chunks {
		if _, ok := counts[chunk.DocID]; ok {
			counts[chunk.DocID]++
		}
	}
	return counts
}
