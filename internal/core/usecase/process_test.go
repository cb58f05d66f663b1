package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/askmydocs/internal/core/domain"
	"github.com/kirillkom/askmydocs/internal/infrastructure/chunking"
	"github.com/kirillkom/askmydocs/internal/infrastructure/vector/indexstate"
)

type statusCall struct {
	status domain.UploadStatus
	errMsg string
}

type processRepoFake struct {
	upload        *domain.Upload
	getErr        error
	statusErr     error
	failStatusErr error
	statusCalls   []statusCall
	chunkCount    int
	listed        []domain.Upload
	listedStatus  domain.UploadStatus
}

func (f *processRepoFake) Create(context.Context, *domain.Upload) error { return nil }

func (f *processRepoFake) GetByID(context.Context, string) (*domain.Upload, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyUpload := *f.upload
	return &copyUpload, nil
}

func (f *processRepoFake) UpdateStatus(_ context.Context, _ string, status domain.UploadStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if status == domain.StatusFailed && f.failStatusErr != nil {
		return f.failStatusErr
	}
	if f.statusErr != nil {
		return f.statusErr
	}
	return nil
}

func (f *processRepoFake) SaveChunkCount(_ context.Context, _ string, chunks int) error {
	f.chunkCount = chunks
	return nil
}

func (f *processRepoFake) ListByStatus(_ context.Context, status domain.UploadStatus) ([]domain.Upload, error) {
	f.listedStatus = status
	return f.listed, nil
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Upload) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type shortEmbedderFake struct{}

func (shortEmbedderFake) Embed(context.Context, []string) ([][]float32, error) {
	return [][]float32{}, nil
}

func (shortEmbedderFake) EmbedQuery(context.Context, string) ([]float32, error) { return nil, nil }

func newProcessUseCase(repo *processRepoFake, extractor *extractorFake, state *indexstate.State) *ProcessUploadUseCase {
	return NewProcessUploadUseCase(repo, extractor, chunking.NewSplitter(700, 100), &keywordEmbedder{}, state)
}

func TestProcessByIDAppendsUploadToIndex(t *testing.T) {
	repo := &processRepoFake{upload: &domain.Upload{ID: "up-1", Filename: "france.txt"}}
	state := indexstate.New("", "")
	uc := newProcessUseCase(repo, &extractorFake{text: "Paris is the capital of France."}, state)

	if err := uc.ProcessByID(context.Background(), "up-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected 2 status calls, got %d", len(repo.statusCalls))
	}
	if repo.statusCalls[0].status != domain.StatusProcessing || repo.statusCalls[1].status != domain.StatusIndexed {
		t.Fatalf("unexpected status sequence: %+v", repo.statusCalls)
	}
	if repo.chunkCount != 1 {
		t.Fatalf("expected chunk count 1, got %d", repo.chunkCount)
	}

	snap := state.Current()
	if snap == nil || snap.Len() != 1 {
		t.Fatalf("expected one indexed row")
	}
	rec, err := snap.Record(0)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if rec.DocID != "up-1" || rec.ChunkID != "up-1_0" || rec.Source != "france.txt" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestProcessByIDMarksFailedOnExtractError(t *testing.T) {
	repo := &processRepoFake{upload: &domain.Upload{ID: "up-1", Filename: "a.pdf"}}
	uc := newProcessUseCase(repo, &extractorFake{err: errors.New("extract fail")}, indexstate.New("", ""))

	err := uc.ProcessByID(context.Background(), "up-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected processing + failed status updates, got %d", len(repo.statusCalls))
	}
	if repo.statusCalls[1].status != domain.StatusFailed || !strings.Contains(repo.statusCalls[1].errMsg, "extract fail") {
		t.Fatalf("expected failed status, got %+v", repo.statusCalls[1])
	}
}

func TestProcessByIDRejectsBlankText(t *testing.T) {
	repo := &processRepoFake{upload: &domain.Upload{ID: "up-1", Filename: "blank.txt"}}
	uc := newProcessUseCase(repo, &extractorFake{text: " \n\t "}, indexstate.New("", ""))

	err := uc.ProcessByID(context.Background(), "up-1")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestProcessByIDMarksFailedOnVectorMismatch(t *testing.T) {
	repo := &processRepoFake{upload: &domain.Upload{ID: "up-1", Filename: "a.txt"}}
	state := indexstate.New("", "")
	uc := NewProcessUploadUseCase(repo, &extractorFake{text: "text"}, chunking.NewSplitter(700, 100), shortEmbedderFake{}, state)

	err := uc.ProcessByID(context.Background(), "up-1")
	if !domain.IsKind(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected embedding unavailable, got %v", err)
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("expected final failed status, got %+v", repo.statusCalls)
	}
	if state.Current() != nil {
		t.Fatalf("nothing must be published on failure")
	}
}

func TestProcessByIDReportsMarkFailedError(t *testing.T) {
	repo := &processRepoFake{
		getErr:        domain.ErrDocumentNotFound,
		failStatusErr: errors.New("db down"),
	}
	uc := newProcessUseCase(repo, &extractorFake{text: "x"}, indexstate.New("", ""))

	err := uc.ProcessByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found to be preserved, got %v", err)
	}
	if !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected mark-failed error in message, got %v", err)
	}
}

func TestProcessByIDIsIdempotentForIndexedUpload(t *testing.T) {
	repo := &processRepoFake{upload: &domain.Upload{ID: "up-1", Filename: "france.txt"}}
	state := indexstate.New("", "")
	uc := newProcessUseCase(repo, &extractorFake{text: "Paris is the capital of France."}, state)

	for i := 0; i < 2; i++ {
		if err := uc.ProcessByID(context.Background(), "up-1"); err != nil {
			t.Fatalf("ProcessByID() attempt %d error = %v", i+1, err)
		}
	}
	if got := state.Current().Len(); got != 1 {
		t.Fatalf("redelivery must not duplicate rows, got %d", got)
	}
	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.StatusIndexed || repo.chunkCount != 1 {
		t.Fatalf("expected indexed status with 1 chunk, got %+v chunks=%d", last, repo.chunkCount)
	}
}
