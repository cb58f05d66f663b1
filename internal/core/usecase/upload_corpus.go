package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/askmydocs/internal/core/domain"
	"github.com/kirillkom/askmydocs/internal/core/ports"
)

// UploadDocuments reads indexed uploads back from object storage so that a
// full rebuild keeps them next to the documents directory.
type UploadDocuments struct {
	repo      ports.UploadRepository
	extractor ports.TextExtractor
}

func NewUploadDocuments(repo ports.UploadRepository, extractor ports.TextExtractor) *UploadDocuments {
	return &UploadDocuments{repo: repo, extractor: extractor}
}

func (u *UploadDocuments) IndexedUploadIDs(ctx context.Context) ([]string, error) {
	uploads, err := u.repo.ListByStatus(ctx, domain.StatusIndexed)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(uploads))
	for i, upload := range uploads {
		ids[i] = upload.ID
	}
	return ids, nil
}

func (u *UploadDocuments) Documents(ctx context.Context, ids []string) ([]domain.Document, error) {
	docs := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		upload, err := u.repo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetch upload %s: %w", id, err)
		}
		doc, err := uploadDocument(ctx, u.extractor, upload)
		if err != nil {
			slog.Warn("rebuild_upload_skipped", "upload_id", id, "error", err)
			if markErr := u.repo.UpdateStatus(ctx, id, domain.StatusFailed, err.Error()); markErr != nil {
				return nil, fmt.Errorf("mark upload %s failed: %w", id, markErr)
			}
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (u *UploadDocuments) RecordChunkCounts(ctx context.Context, counts map[string]int) error {
	for id, n := range counts {
		if err := u.repo.SaveChunkCount(ctx, id, n); err != nil {
			return err
		}
	}
	return nil
}

// uploadDocument extracts a stored upload as the document the index keys by
// upload id.
func uploadDocument(ctx context.Context, extractor ports.TextExtractor, upload *domain.Upload) (domain.Document, error) {
	text, err := extractor.Extract(ctx, upload)
	if err != nil {
		return domain.Document{}, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.Document{}, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}
	return domain.Document{ID: upload.ID, Text: text, Source: upload.Filename}, nil
}
