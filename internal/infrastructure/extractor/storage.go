package extractor

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/askmydocs/internal/core/domain"
	"github.com/kirillkom/askmydocs/internal/core/ports"
)

// StorageExtractor reads uploads back from object storage.
type StorageExtractor struct {
	storage ports.ObjectStorage
}

func NewStorageExtractor(storage ports.ObjectStorage) *StorageExtractor {
	return &StorageExtractor{storage: storage}
}

func (e *StorageExtractor) Extract(ctx context.Context, upload *domain.Upload) (string, error) {
	reader, err := e.storage.Open(ctx, upload.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}
	return Extract(upload.Filename, raw)
}
