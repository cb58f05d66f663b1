package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

type answererFake struct {
	answer   *domain.Answer
	err      error
	provider domain.Provider
}

func (f *answererFake) Answer(_ context.Context, _ string, provider domain.Provider) (*domain.Answer, error) {
	f.provider = provider
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type searcherFake struct {
	k       int
	results []domain.RetrievalResult
	err     error
}

func (f *searcherFake) Search(_ context.Context, _ string, k int) ([]domain.RetrievalResult, error) {
	f.k = k
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("expected tool content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestSearchToolUsesDefaultK(t *testing.T) {
	searcher := &searcherFake{results: []domain.RetrievalResult{{ChunkID: "a.txt_0", Source: "a.txt", Rank: 1}}}
	srv := NewServer(&answererFake{}, searcher, 4)

	res, err := srv.handleSearch(context.Background(), callRequest(searchToolName, map[string]any{"query": "alpha"}))
	if err != nil {
		t.Fatalf("handleSearch() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if searcher.k != 4 {
		t.Fatalf("expected default k=4, got %d", searcher.k)
	}

	var body struct {
		Results []domain.RetrievalResult `json:"results"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatalf("decode tool output: %v", err)
	}
	if len(body.Results) != 1 || body.Results[0].ChunkID != "a.txt_0" {
		t.Fatalf("unexpected results %+v", body.Results)
	}
}

func TestSearchToolRequiresQuery(t *testing.T) {
	srv := NewServer(&answererFake{}, &searcherFake{}, 4)

	res, err := srv.handleSearch(context.Background(), callRequest(searchToolName, map[string]any{}))
	if err != nil {
		t.Fatalf("handleSearch() error = %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error for missing query")
	}
}

func TestSearchToolReportsNotReady(t *testing.T) {
	searcher := &searcherFake{err: domain.WrapError(domain.ErrIndexNotReady, "search", errors.New("run indexing first"))}
	srv := NewServer(&answererFake{}, searcher, 4)

	res, err := srv.handleSearch(context.Background(), callRequest(searchToolName, map[string]any{"query": "x", "k": 2}))
	if err != nil {
		t.Fatalf("handleSearch() error = %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error")
	}
	if searcher.k != 2 {
		t.Fatalf("expected k=2, got %d", searcher.k)
	}
}

func TestAskToolReturnsAnswer(t *testing.T) {
	answerer := &answererFake{answer: &domain.Answer{
		Status:   domain.AnswerOK,
		Text:     "Paris [france.txt]",
		Provider: domain.ProviderOpenAI,
		Chunks:   []domain.RetrievalResult{{Source: "france.txt", Rank: 1}},
	}}
	srv := NewServer(answerer, &searcherFake{}, 4)

	res, err := srv.handleAsk(context.Background(), callRequest(askToolName, map[string]any{
		"question": "capital of France?",
		"provider": "OpenAI",
	}))
	if err != nil {
		t.Fatalf("handleAsk() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if answerer.provider != domain.ProviderOpenAI {
		t.Fatalf("expected provider openai, got %q", answerer.provider)
	}

	var got domain.Answer
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode tool output: %v", err)
	}
	if got.Text != "Paris [france.txt]" || len(got.Chunks) != 1 {
		t.Fatalf("unexpected answer %+v", got)
	}
}

func TestAskToolSurfacesNotReadyAsError(t *testing.T) {
	answerer := &answererFake{answer: &domain.Answer{
		Status: domain.AnswerNotReady,
		Text:   "Index not ready. Run indexing first.",
		Chunks: []domain.RetrievalResult{},
	}}
	srv := NewServer(answerer, &searcherFake{}, 4)

	res, err := srv.handleAsk(context.Background(), callRequest(askToolName, map[string]any{"question": "q"}))
	if err != nil {
		t.Fatalf("handleAsk() error = %v", err)
	}
	if !res.IsError || resultText(t, res) != "Index not ready. Run indexing first." {
		t.Fatalf("expected not-ready tool error, got %+v", res)
	}
}

func TestMCPServerRegistersTools(t *testing.T) {
	srv := NewServer(&answererFake{}, &searcherFake{}, 4).MCPServer("test")
	tools := srv.ListTools()
	for _, name := range []string{searchToolName, askToolName} {
		if _, ok := tools[name]; !ok {
			t.Fatalf("expected tool %q to be registered", name)
		}
	}
}
