package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/askmydocs/internal/core/domain"
	"github.com/kirillkom/askmydocs/internal/core/ports"
)

// ProcessUploadUseCase extracts, chunks and embeds one stored upload and
// appends it to the index.
type ProcessUploadUseCase struct {
	repo      ports.UploadRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	index     ports.IndexStore
}

func NewProcessUploadUseCase(
	repo ports.UploadRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.IndexStore,
) *ProcessUploadUseCase {
	return &ProcessUploadUseCase{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
	}
}

func (uc *ProcessUploadUseCase) ProcessByID(ctx context.Context, uploadID string) error {
	if err := uc.markStatus(ctx, uploadID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	chunks, err := uc.processPipeline(ctx, uploadID)
	if err != nil {
		if failErr := uc.markFailed(ctx, uploadID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveChunkCount(ctx, uploadID, chunks); err != nil {
		return fmt.Errorf("save chunk count: %w", err)
	}
	if err := uc.markStatus(ctx, uploadID, domain.StatusIndexed, ""); err != nil {
		return fmt.Errorf("set status=indexed: %w", err)
	}
	return nil
}

func (uc *ProcessUploadUseCase) processPipeline(ctx context.Context, uploadID string) (int, error) {
	upload, err := uc.repo.GetByID(ctx, uploadID)
	if err != nil {
		return 0, fmt.Errorf("fetch upload by id: %w", err)
	}

	doc, err := uploadDocument(ctx, uc.extractor, upload)
	if err != nil {
		return 0, err
	}
	chunks := uc.chunker.ChunkDocuments([]domain.Document{doc})
	if len(chunks) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "chunk upload", errors.New("chunking produced zero chunks"))
	}

	// A redelivered event for an upload whose rows are already in the index
	// only needs its status brought up to date.
	if err := uc.index.Refresh(ctx); err != nil {
		return 0, fmt.Errorf("refresh index: %w", err)
	}
	if snap := uc.index.Current(); snap != nil && snap.HasDocument(upload.ID) {
		slog.Info("upload_already_indexed", "upload_id", upload.ID, "chunks", len(chunks))
		return len(chunks), nil
	}

	vectors, err := embedChunks(ctx, uc.embedder, chunks)
	if err != nil {
		return 0, err
	}
	if _, err := uc.index.Append(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("append to index: %w", err)
	}
	return len(chunks), nil
}

func (uc *ProcessUploadUseCase) markStatus(ctx context.Context, uploadID string, status domain.UploadStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, uploadID, status, errMessage)
}

func (uc *ProcessUploadUseCase) markFailed(ctx context.Context, uploadID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, uploadID, domain.StatusFailed, processErr.Error())
}
