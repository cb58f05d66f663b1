package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/askmydocs/internal/infrastructure/llm/llmhttp"
	"github.com/kirillkom/askmydocs/internal/infrastructure/resilience"
)

var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not set")

// Generator calls the generateContent endpoint of the Gemini API.
type Generator struct {
	model     string
	apiKey    string
	transport *llmhttp.Transport
}

func NewGenerator(baseURL, apiKey, model string, timeout time.Duration, exec *resilience.Executor) *Generator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Generator{
		model:  model,
		apiKey: apiKey,
		transport: &llmhttp.Transport{
			Vendor:     "gemini",
			BaseURL:    baseURL,
			Headers:    map[string]string{"x-goog-api-key": apiKey},
			HTTPClient: &http.Client{Timeout: timeout},
			Executor:   exec,
		},
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		return "", ErrMissingAPIKey
	}
	req := generateRequest{Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}}}
	path := "/v1beta/models/" + url.PathEscape(g.model) + ":generateContent"

	var resp generateResponse
	if err := g.transport.PostJSON(ctx, path, req, &resp, "generate"); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String()), nil
}
