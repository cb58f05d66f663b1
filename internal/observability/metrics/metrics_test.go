package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestHTTPMetricsRecordRequestsAndAnswers(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.TrackIndexRows(func() int { return 42 })

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/documents/abc", nil))
	m.RecordAnswer("ask", "ok", "ollama", 3, 120*time.Millisecond)

	out := scrape(t, m.Handler())
	for _, want := range []string{
		`askmydocs_http_requests_total{method="GET",path="/v1/documents/{upload_id}",service="api",status="202"} 1`,
		`askmydocs_rag_answers_total{endpoint="ask",provider="ollama",service="api",status="ok"} 1`,
		`askmydocs_index_rows{service="api"} 42`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in scrape output:\n%s", want, out)
		}
	}
}

func TestWorkerMetricsTrackOutcomes(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartUpload()
	m.FinishUpload(time.Second, errors.New("boom"))
	m.AddIndexedChunks(5)
	m.ObserveQueueLag(-time.Second)

	out := scrape(t, m.Handler())
	for _, want := range []string{
		`askmydocs_worker_upload_process_total{service="worker",status="error"} 1`,
		`askmydocs_worker_chunks_indexed_total{service="worker"} 5`,
		`askmydocs_worker_upload_process_in_flight{service="worker"} 0`,
		`askmydocs_worker_queue_lag_seconds_count{service="worker"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in scrape output:\n%s", want, out)
		}
	}
}
