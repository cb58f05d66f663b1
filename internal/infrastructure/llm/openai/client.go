package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/askmydocs/internal/infrastructure/llm/llmhttp"
	"github.com/kirillkom/askmydocs/internal/infrastructure/resilience"
)

// Generator talks to any OpenAI-compatible chat completions endpoint.
type Generator struct {
	model     string
	transport *llmhttp.Transport
}

func NewGenerator(baseURL, apiKey, model string, timeout time.Duration, exec *resilience.Executor) *Generator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	headers := map[string]string{}
	if strings.TrimSpace(apiKey) != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}
	return &Generator{
		model: model,
		transport: &llmhttp.Transport{
			Vendor:     "openai",
			BaseURL:    baseURL,
			Headers:    headers,
			HTTPClient: &http.Client{Timeout: timeout},
			Executor:   exec,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:    g.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	var resp chatResponse
	if err := g.transport.PostJSON(ctx, "/chat/completions", req, &resp, "chat"); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
