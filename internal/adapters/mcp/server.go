// Package mcpadapter exposes retrieval and question answering as MCP tools
// so that editor agents can query the indexed corpus over stdio.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/askmydocs/internal/core/domain"
	"github.com/kirillkom/askmydocs/internal/core/ports"
)

const (
	serverName = "askmydocs"

	searchToolName = "search_documents"
	askToolName    = "ask_documents"
)

type Server struct {
	answerer ports.QuestionAnswerer
	searcher ports.ChunkSearcher
	topK     int
}

func NewServer(answerer ports.QuestionAnswerer, searcher ports.ChunkSearcher, topK int) *Server {
	if topK <= 0 {
		topK = 5
	}
	return &Server{answerer: answerer, searcher: searcher, topK: topK}
}

// MCPServer builds the protocol server with both tools registered.
func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool(searchToolName,
		mcp.WithDescription("Return the most relevant chunks of the indexed documents for a query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text search query")),
		mcp.WithNumber("k", mcp.Description("Number of chunks to return")),
	), s.handleSearch)

	srv.AddTool(mcp.NewTool(askToolName,
		mcp.WithDescription("Answer a question from the indexed documents and cite the sources used."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question to answer")),
		mcp.WithString("provider",
			mcp.Description("Generation backend"),
			mcp.Enum(string(domain.ProviderOllama), string(domain.ProviderGemini), string(domain.ProviderOpenAI)),
		),
	), s.handleAsk)

	return srv
}

func (s *Server) ServeStdio(version string) error {
	return server.ServeStdio(s.MCPServer(version))
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	k := req.GetInt("k", s.topK)

	results, err := s.searcher.Search(ctx, query, k)
	if err != nil {
		slog.Warn("mcp_tool_failed", "tool", searchToolName, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"results": results})
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	provider := domain.Provider(strings.ToLower(req.GetString("provider", "")))

	answer, err := s.answerer.Answer(ctx, question, provider)
	if err != nil {
		slog.Warn("mcp_tool_failed", "tool", askToolName, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	if answer.Degraded() && answer.Status != domain.AnswerNoContext {
		return mcp.NewToolResultError(answer.Text), nil
	}
	return jsonResult(answer)
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
