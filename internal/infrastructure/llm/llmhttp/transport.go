// Package llmhttp is the JSON-over-HTTP transport shared by the model
// provider adapters.
package llmhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/askmydocs/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx reply from a provider.
type HTTPStatusError struct {
	Vendor     string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s status: %s", e.Vendor, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Vendor, e.Operation, e.Status, body)
}

// Transport posts JSON to one provider through the resilience executor.
type Transport struct {
	Vendor     string
	BaseURL    string
	Headers    map[string]string
	HTTPClient *http.Client
	Executor   *resilience.Executor
}

// PostJSON sends payload to BaseURL+path and decodes the reply into out.
// The operation name selects the circuit breaker.
func (t *Transport) PostJSON(ctx context.Context, path string, payload, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}
	call := func(ctx context.Context) error {
		return t.post(ctx, path, body, out, operation)
	}
	if t.Executor == nil {
		return call(ctx)
	}
	return t.Executor.Run(ctx, t.Vendor+"."+operation, call, Classify)
}

func (t *Transport) post(ctx context.Context, path string, body []byte, out any, operation string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(t.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}

	client := t.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request: %w", t.Vendor, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Vendor:     t.Vendor,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// Classify maps transport errors for the executor: cancellation is neither
// retried nor counted, 4xx replies are the caller's fault, and network or
// 5xx failures trip the breaker.
func Classify(err error) resilience.Verdict {
	switch {
	case err == nil:
		return resilience.Verdict{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Verdict{}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if retryableStatus(statusErr.StatusCode) {
			return resilience.Verdict{Retryable: true, CountsAsFailure: true}
		}
		return resilience.Verdict{}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Verdict{Retryable: true, CountsAsFailure: true}
	}
	return resilience.Verdict{CountsAsFailure: true}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
