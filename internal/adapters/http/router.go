package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kirillkom/askmydocs/internal/config"
	"github.com/kirillkom/askmydocs/internal/core/domain"
	"github.com/kirillkom/askmydocs/internal/core/ports"
	"github.com/kirillkom/askmydocs/internal/observability/metrics"
)

const (
	maxUploadBytes   = 64 << 20
	backpressureWait = 250 * time.Millisecond
)

// Deps are the inbound ports served by the router. Ingest and Uploads may be
// nil when the API runs without a registry; upload routes then answer 503.
type Deps struct {
	Answerer ports.QuestionAnswerer
	Searcher ports.ChunkSearcher
	Indexer  ports.CorpusIndexer
	Stats    ports.StatsReader
	Ingest   ports.DocumentIngestor
	Uploads  ports.UploadReader
	Metrics  *metrics.HTTPServerMetrics
}

type Router struct {
	cfg  config.Config
	deps Deps

	rebuilding atomic.Bool
	background func(func())
}

func NewRouter(cfg config.Config, deps Deps) *Router {
	return &Router{
		cfg:        cfg,
		deps:       deps,
		background: func(fn func()) { go fn() },
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getUploadByID)
	mux.HandleFunc("/v1/index/rebuild", rt.rebuildIndex)
	mux.HandleFunc("/v1/stats", rt.stats)
	if rt.deps.Metrics != nil {
		mux.Handle("/metrics", rt.deps.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.deps.Metrics != nil {
		handler = rt.deps.Metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question string `json:"question"`
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	start := time.Now()
	provider := domain.Provider(strings.ToLower(strings.TrimSpace(req.Provider)))
	answer, err := rt.deps.Answerer.Answer(r.Context(), req.Question, provider)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordAnswer("ask", string(answer.Status), string(answer.Provider), len(answer.Chunks), time.Since(start))
	}

	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query string `json:"query"`
		K     int    `json:"k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	if req.K <= 0 {
		req.K = rt.cfg.RAGTopK
	}

	results, err := rt.deps.Searcher.Search(r.Context(), req.Query, req.K)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordSearch()
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.deps.Ingest == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "uploads are disabled"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	upload, err := rt.deps.Ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, upload)
}

func (rt *Router) getUploadByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.deps.Uploads == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "uploads are disabled"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "upload id is required"})
		return
	}

	upload, err := rt.deps.Uploads.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, upload)
}

// rebuildIndex starts a full rebuild of DocsDir and returns immediately.
// Queries keep using the previous index until the new one is published.
func (rt *Router) rebuildIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if !rt.rebuilding.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "index rebuild already running"})
		return
	}

	requestID := requestIDFromContext(r.Context())
	root := rt.cfg.DocsDir
	rt.background(func() {
		defer rt.rebuilding.Store(false)
		report, err := rt.deps.Indexer.Rebuild(context.Background(), root)
		if err != nil {
			slog.Error("index_rebuild_failed", "request_id", requestID, "docs_dir", root, "error", err)
			return
		}
		slog.Info("index_rebuild_finished",
			"request_id", requestID,
			"docs_dir", root,
			"total_rows", report.TotalRows,
			"duration_ms", report.DurationMS,
		)
	})

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "docs_dir": root})
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, rt.deps.Stats.Snapshot())
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_error",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
