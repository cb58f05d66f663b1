package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/askmydocs/internal/config"
	"github.com/kirillkom/askmydocs/internal/core/domain"
	"github.com/kirillkom/askmydocs/internal/core/ports"
	"github.com/kirillkom/askmydocs/internal/core/usecase"
	"github.com/kirillkom/askmydocs/internal/infrastructure/chunking"
	"github.com/kirillkom/askmydocs/internal/infrastructure/corpus"
	"github.com/kirillkom/askmydocs/internal/infrastructure/embedding"
	"github.com/kirillkom/askmydocs/internal/infrastructure/extractor"
	"github.com/kirillkom/askmydocs/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/askmydocs/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/askmydocs/internal/infrastructure/llm/openai"
	"github.com/kirillkom/askmydocs/internal/infrastructure/queue/nats"
	"github.com/kirillkom/askmydocs/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/askmydocs/internal/infrastructure/resilience"
	"github.com/kirillkom/askmydocs/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/askmydocs/internal/infrastructure/vector/indexstate"
)

// Core is everything needed to build and query the index. It has no
// network dependencies besides the model providers.
type Core struct {
	Config config.Config

	Index    *indexstate.State
	Chunker  *chunking.Splitter
	Embedder *embedding.Gateway
	Stats    *usecase.QueryStats

	QueryUC *usecase.QueryUseCase
	IndexUC *usecase.IndexCorpusUseCase
}

func NewCore(cfg config.Config) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	index, err := indexstate.Open(cfg.IndexPath, cfg.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	executor := resilience.NewExecutor(resiliencePolicy(cfg))
	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, cfg.OllamaTimeout(), executor)
	embedder := embedding.NewGateway(ollama.NewEmbedder(ollamaClient), cfg.EmbedBatchSize, cfg.EmbedVerifyNormalized)

	generators := map[domain.Provider]ports.AnswerGenerator{
		domain.ProviderOllama: ollama.NewGenerator(ollamaClient),
		domain.ProviderGemini: gemini.NewGenerator(cfg.GeminiURL, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeout(), executor),
		domain.ProviderOpenAI: openai.NewGenerator(cfg.OpenAIURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAITimeout(), executor),
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	stats := usecase.NewQueryStats()
	retriever := usecase.NewRetriever(embedder, cfg.RAGTopK)

	return &Core{
		Config:   cfg,
		Index:    index,
		Chunker:  chunker,
		Embedder: embedder,
		Stats:    stats,

		QueryUC: usecase.NewQueryUseCase(index, retriever, generators, domain.Provider(cfg.LLMProvider), stats),
		IndexUC: usecase.NewIndexCorpusUseCase(corpus.NewLoader(), chunker, embedder, index),
	}, nil
}

// IndexRows reports the size of the published index, zero when none exists.
func (c *Core) IndexRows() int {
	snap := c.Index.Current()
	if snap == nil {
		return 0
	}
	return snap.Len()
}

type Options struct {
	// QueueLagObserver receives the publish-to-delivery delay of consumed
	// upload events.
	QueueLagObserver func(time.Duration)
}

// App is Core plus the upload pipeline: registry, object storage and queue.
type App struct {
	*Core

	Queue     ports.MessageQueue
	Repo      ports.UploadRepository
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.UploadProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	core, err := NewCore(cfg)
	if err != nil {
		return nil, err
	}

	registry, err := OpenRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}
	core.AttachUploads(registry)

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resiliencePolicy(cfg)),
		LagObserver:        opts.QueueLagObserver,
	})
	if err != nil {
		registry.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ingestUC := usecase.NewIngestUploadUseCase(registry.Repo, registry.Storage, queue, extractor.Supported)
	processUC := usecase.NewProcessUploadUseCase(registry.Repo, extractor.NewStorageExtractor(registry.Storage), core.Chunker, core.Embedder, core.Index)

	return &App{
		Core:  core,
		Queue: queue,
		Repo:  registry.Repo,

		IngestUC:  ingestUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			registry.Close()
		},
	}, nil
}

// Registry is the upload registry together with the storage that holds the
// uploaded files.
type Registry struct {
	Repo    *postgres.UploadRepository
	Storage *localfs.Storage

	db *sql.DB
}

func OpenRegistry(ctx context.Context, cfg config.Config) (*Registry, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewUploadRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	return &Registry{Repo: repo, Storage: storage, db: db}, nil
}

func (r *Registry) Close() {
	_ = r.db.Close()
}

// AttachUploads makes full rebuilds re-index every upload the registry
// reports as indexed.
func (c *Core) AttachUploads(registry *Registry) {
	c.IndexUC.WithUploads(usecase.NewUploadDocuments(registry.Repo, extractor.NewStorageExtractor(registry.Storage)))
}

// DetachedUploads stands in for a registry that could not be opened. Every
// call fails, so a rebuild stops instead of dropping the uploaded documents.
type DetachedUploads struct {
	Err error
}

func (d DetachedUploads) IndexedUploadIDs(context.Context) ([]string, error) {
	return nil, d.unavailable()
}

func (d DetachedUploads) Documents(context.Context, []string) ([]domain.Document, error) {
	return nil, d.unavailable()
}

func (d DetachedUploads) RecordChunkCounts(context.Context, map[string]int) error {
	return d.unavailable()
}

func (d DetachedUploads) unavailable() error {
	return domain.WrapError(domain.ErrTemporary, "upload registry",
		fmt.Errorf("unavailable (%v); set UPLOADS_ENABLED=false to index DOCS_DIR only", d.Err))
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func resiliencePolicy(cfg config.Config) resilience.Policy {
	policy := resilience.DefaultPolicy()
	if cfg.RetryMaxAttempts > 0 {
		policy.MaxAttempts = cfg.RetryMaxAttempts
	}
	policy.Breaker.Enabled = cfg.BreakerEnabled
	return policy
}
