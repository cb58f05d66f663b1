package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/kirillkom/askmydocs/internal/config"
	"github.com/kirillkom/askmydocs/internal/core/domain"
)

func coreConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		ChunkSize:      700,
		ChunkOverlap:   100,
		RAGTopK:        5,
		EmbedBatchSize: 16,
		LLMProvider:    "ollama",
		OllamaURL:      "http://127.0.0.1:1",
		IndexPath:      filepath.Join(dir, "vectors.index"),
		MetadataPath:   filepath.Join(dir, "metadata.json"),
	}
}

func TestNewCoreStartsWithoutIndex(t *testing.T) {
	core, err := NewCore(coreConfig(t))
	if err != nil {
		t.Fatalf("NewCore() error = %v", err)
	}
	if core.IndexRows() != 0 {
		t.Fatalf("expected empty index, got %d rows", core.IndexRows())
	}

	answer, err := core.QueryUC.Answer(context.Background(), "What is the capital of France?", "")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Status != domain.AnswerNotReady {
		t.Fatalf("expected not_ready before indexing, got %s", answer.Status)
	}
}

func TestNewCoreRejectsInvalidConfig(t *testing.T) {
	cfg := coreConfig(t)
	cfg.ChunkOverlap = cfg.ChunkSize

	if _, err := NewCore(cfg); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestResiliencePolicyFollowsConfig(t *testing.T) {
	cfg := coreConfig(t)
	cfg.RetryMaxAttempts = 3
	cfg.BreakerEnabled = false

	policy := resiliencePolicy(cfg)
	if policy.MaxAttempts != 3 || policy.Breaker.Enabled {
		t.Fatalf("unexpected policy %+v", policy)
	}
}

func TestRebuildStopsWhenUploadRegistryIsDetached(t *testing.T) {
	core, err := NewCore(coreConfig(t))
	if err != nil {
		t.Fatalf("NewCore() error = %v", err)
	}
	core.IndexUC.WithUploads(DetachedUploads{Err: errors.New("connection refused")})

	_, err = core.IndexUC.Rebuild(context.Background(), t.TempDir())
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary failure while the registry is away, got %v", err)
	}
	if core.Index.Current() != nil {
		t.Fatalf("nothing must be published")
	}
}
