package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

func TestUploadDocumentsListsIndexedUploads(t *testing.T) {
	repo := &processRepoFake{listed: []domain.Upload{{ID: "up-1"}, {ID: "up-2"}}}
	corpus := NewUploadDocuments(repo, &extractorFake{text: "x"})

	ids, err := corpus.IndexedUploadIDs(context.Background())
	if err != nil {
		t.Fatalf("IndexedUploadIDs() error = %v", err)
	}
	if repo.listedStatus != domain.StatusIndexed {
		t.Fatalf("expected indexed uploads to be listed, got status %q", repo.listedStatus)
	}
	if len(ids) != 2 || ids[0] != "up-1" || ids[1] != "up-2" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestUploadDocumentsReadsUploadsAsDocuments(t *testing.T) {
	repo := &processRepoFake{upload: &domain.Upload{ID: "up-1", Filename: "france.txt"}}
	corpus := NewUploadDocuments(repo, &extractorFake{text: "Paris is the capital of France."})

	docs, err := corpus.Documents(context.Background(), []string{"up-1"})
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "up-1" || docs[0].Source != "france.txt" {
		t.Fatalf("unexpected documents %+v", docs)
	}
	if len(repo.statusCalls) != 0 {
		t.Fatalf("readable uploads must keep their status, got %+v", repo.statusCalls)
	}
}

func TestUploadDocumentsMarksUnreadableUploadFailed(t *testing.T) {
	repo := &processRepoFake{upload: &domain.Upload{ID: "up-1", Filename: "gone.pdf"}}
	corpus := NewUploadDocuments(repo, &extractorFake{err: errors.New("open source document: no such file")})

	docs, err := corpus.Documents(context.Background(), []string{"up-1"})
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("unreadable upload must be left out, got %+v", docs)
	}
	if len(repo.statusCalls) != 1 || repo.statusCalls[0].status != domain.StatusFailed {
		t.Fatalf("expected the upload to be marked failed, got %+v", repo.statusCalls)
	}
}

func TestUploadDocumentsRecordsChunkCounts(t *testing.T) {
	repo := &processRepoFake{}
	corpus := NewUploadDocuments(repo, &extractorFake{})

	if err := corpus.RecordChunkCounts(context.Background(), map[string]int{"up-1": 3}); err != nil {
		t.Fatalf("RecordChunkCounts() error = %v", err)
	}
	if repo.chunkCount != 3 {
		t.Fatalf("expected chunk count 3, got %d", repo.chunkCount)
	}
}
