package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

type indexerFake struct {
	rebuildRoot string
	appendRoot  string
	appendDir   string
}

func (f *indexerFake) Rebuild(_ context.Context, root string) (*domain.IndexReport, error) {
	f.rebuildRoot = root
	return &domain.IndexReport{Documents: 2, Chunks: 5, TotalRows: 5, Dimension: 384}, nil
}

func (f *indexerFake) AppendFrom(_ context.Context, root, dir string) (*domain.IndexReport, error) {
	f.appendRoot = root
	f.appendDir = dir
	return &domain.IndexReport{Documents: 1, Chunks: 2, TotalRows: 7, Dimension: 384}, nil
}

type answererFake struct {
	answer   *domain.Answer
	provider domain.Provider
}

func (f *answererFake) Answer(_ context.Context, _ string, provider domain.Provider) (*domain.Answer, error) {
	f.provider = provider
	return f.answer, nil
}

type searcherFake struct {
	k int
}

func (f *searcherFake) Search(_ context.Context, _ string, k int) ([]domain.RetrievalResult, error) {
	f.k = k
	return []domain.RetrievalResult{
		{DocID: "france.txt", ChunkID: "france.txt_0", Text: "Paris is the capital of France.", Source: "france.txt", Rank: 1, Score: 0.81},
	}, nil
}

type fixture struct {
	indexer  *indexerFake
	answerer *answererFake
	searcher *searcherFake
	resolved int
}

func newFixture() *fixture {
	return &fixture{
		indexer: &indexerFake{},
		answerer: &answererFake{answer: &domain.Answer{
			Status:   domain.AnswerOK,
			Text:     "Paris [france.txt]",
			Provider: domain.ProviderOllama,
			Chunks:   []domain.RetrievalResult{{Source: "france.txt", Rank: 1, Score: 0.81}},
		}},
		searcher: &searcherFake{},
	}
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(func() (*Services, error) {
		f.resolved++
		return &Services{
			Indexer:  f.indexer,
			Answerer: f.answerer,
			Searcher: f.searcher,
			DocsDir:  "/srv/docs",
			TopK:     5,
		}, nil
	})
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestIndexUsesConfiguredDocsDir(t *testing.T) {
	f := newFixture()
	out, err := f.run(t, "index")
	if err != nil {
		t.Fatalf("index error = %v", err)
	}
	if f.indexer.rebuildRoot != "/srv/docs" {
		t.Fatalf("expected /srv/docs, got %q", f.indexer.rebuildRoot)
	}
	if !strings.Contains(out, "rebuilt 5 chunks from 2 documents") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestAppendHonorsDocsFlag(t *testing.T) {
	f := newFixture()
	if _, err := f.run(t, "append", "--docs", "/srv/docs/new"); err != nil {
		t.Fatalf("append error = %v", err)
	}
	if f.indexer.appendRoot != "/srv/docs" || f.indexer.appendDir != "/srv/docs/new" {
		t.Fatalf("expected ids relative to /srv/docs for /srv/docs/new, got root=%q dir=%q",
			f.indexer.appendRoot, f.indexer.appendDir)
	}
}

func TestSearchDefaultsTopKAndPrintsJSON(t *testing.T) {
	f := newFixture()
	out, err := f.run(t, "search", "--json", "capital")
	if err != nil {
		t.Fatalf("search error = %v", err)
	}
	if f.searcher.k != 5 {
		t.Fatalf("expected k=5, got %d", f.searcher.k)
	}
	var results []domain.RetrievalResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if len(results) != 1 || results[0].Source != "france.txt" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	f := newFixture()
	_, err := f.run(t, "search")
	if err == nil || !strings.Contains(err.Error(), "accepts 1 arg(s)") {
		t.Fatalf("expected argument error, got %v", err)
	}
	if f.resolved != 0 {
		t.Fatalf("services must not be resolved on argument errors")
	}
}

func TestAskPrintsAnswerAndSources(t *testing.T) {
	f := newFixture()
	out, err := f.run(t, "ask", "-p", "Gemini", "What is the capital of France?")
	if err != nil {
		t.Fatalf("ask error = %v", err)
	}
	if f.answerer.provider != domain.ProviderGemini {
		t.Fatalf("expected provider gemini, got %q", f.answerer.provider)
	}
	if !strings.Contains(out, "Paris [france.txt]") || !strings.Contains(out, "[1] france.txt") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestAskFailsWhenIndexNotReady(t *testing.T) {
	f := newFixture()
	f.answerer.answer = &domain.Answer{
		Status: domain.AnswerNotReady,
		Text:   "Index not ready. Run indexing first.",
		Error:  "index not ready: run indexing first",
		Chunks: []domain.RetrievalResult{},
	}
	out, err := f.run(t, "ask", "anything")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(out, "Index not ready") {
		t.Fatalf("expected not-ready message, got %q", out)
	}
}

func TestResolveErrorIsReported(t *testing.T) {
	root := NewRootCommand(func() (*Services, error) { return nil, errors.New("corrupt index") })
	root.SetArgs([]string{"index"})
	root.SetOut(new(bytes.Buffer))
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "corrupt index") {
		t.Fatalf("expected resolve error, got %v", err)
	}
}
