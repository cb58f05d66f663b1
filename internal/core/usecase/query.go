package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/askmydocs/internal/core/domain"
	"github.com/kirillkom/askmydocs/internal/core/ports"
)

const (
	notReadyText  = "Index not ready. Run indexing first."
	notReadyError = "index not ready: run indexing first"
	noContextText = "I cannot find an answer in the documents."
)

var providerNames = map[domain.Provider]string{
	domain.ProviderOllama: "Ollama",
	domain.ProviderGemini: "Gemini",
	domain.ProviderOpenAI: "OpenAI",
}

type QueryUseCase struct {
	index           ports.IndexStore
	retriever       *Retriever
	generators      map[domain.Provider]ports.AnswerGenerator
	defaultProvider domain.Provider
	stats           *QueryStats
}

func NewQueryUseCase(
	index ports.IndexStore,
	retriever *Retriever,
	generators map[domain.Provider]ports.AnswerGenerator,
	defaultProvider domain.Provider,
	stats *QueryStats,
) *QueryUseCase {
	if defaultProvider == "" {
		defaultProvider = domain.ProviderOllama
	}
	if stats == nil {
		stats = NewQueryStats()
	}
	return &QueryUseCase{
		index:           index,
		retriever:       retriever,
		generators:      generators,
		defaultProvider: defaultProvider,
		stats:           stats,
	}
}

// Answer retrieves context for question and asks the selected provider to
// answer from it. Collaborator failures come back as an Answer with a
// non-ok Status; the error return is reserved for invalid input and broken
// index invariants.
func (uc *QueryUseCase) Answer(ctx context.Context, question string, provider domain.Provider) (*domain.Answer, error) {
	start := time.Now()
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer question", errors.New("question is empty"))
	}
	if provider == "" {
		provider = uc.defaultProvider
	}

	answer, err := uc.answer(ctx, question, provider)
	if err != nil {
		slog.Error("rag_answer_failed", "provider", provider, "error", err)
		return nil, err
	}

	elapsed := time.Since(start)
	answer.DurationMS = elapsed.Milliseconds()
	uc.stats.Record(!answer.Degraded(), elapsed)

	slog.Info("rag_answer",
		"status", answer.Status,
		"provider", answer.Provider,
		"chunks", len(answer.Chunks),
		"duration_ms", answer.DurationMS,
	)
	return answer, nil
}

func (uc *QueryUseCase) answer(ctx context.Context, question string, provider domain.Provider) (*domain.Answer, error) {
	snap := uc.index.Current()
	if snap == nil {
		return &domain.Answer{
			Status: domain.AnswerNotReady,
			Text:   notReadyText,
			Error:  notReadyError,
			Chunks: []domain.RetrievalResult{},
		}, nil
	}

	chunks, err := uc.retriever.Retrieve(ctx, snap, question, 0)
	if err != nil {
		if domain.IsKind(err, domain.ErrEmbeddingUnavailable) {
			return &domain.Answer{
				Status: domain.AnswerEmbeddingUnavailable,
				Text:   "Error communicating with the embedding model: " + err.Error(),
				Error:  err.Error(),
				Chunks: []domain.RetrievalResult{},
			}, nil
		}
		return nil, err
	}
	if len(chunks) == 0 {
		return &domain.Answer{
			Status: domain.AnswerNoContext,
			Text:   noContextText,
			Chunks: chunks,
		}, nil
	}

	gen, ok := uc.generators[provider]
	if !ok || gen == nil {
		msg := fmt.Sprintf("Error: unknown LLM provider '%s'", provider)
		return &domain.Answer{
			Status:   domain.AnswerGenerationUnavailable,
			Text:     msg,
			Error:    domain.WrapError(domain.ErrGenerationUnavailable, "select provider", fmt.Errorf("unknown provider %q", provider)).Error(),
			Chunks:   chunks,
			Provider: provider,
		}, nil
	}

	text, err := gen.Generate(ctx, composePrompt(question, chunks))
	if err != nil {
		name := providerNames[provider]
		return &domain.Answer{
			Status:   domain.AnswerGenerationUnavailable,
			Text:     fmt.Sprintf("Error communicating with %s: %v", name, err),
			Error:    domain.WrapError(domain.ErrGenerationUnavailable, "generate answer", err).Error(),
			Chunks:   chunks,
			Provider: provider,
		}, nil
	}

	return &domain.Answer{
		Status:   domain.AnswerOK,
		Text:     text,
		Chunks:   chunks,
		Provider: provider,
	}, nil
}

// Search runs retrieval without generation. Unlike Answer it reports a
// missing index as domain.ErrIndexNotReady.
func (uc *QueryUseCase) Search(ctx context.Context, query string, k int) ([]domain.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query is empty"))
	}
	snap := uc.index.Current()
	if snap == nil {
		return nil, domain.WrapError(domain.ErrIndexNotReady, "search", errors.New(notReadyError))
	}
	return uc.retriever.Retrieve(ctx, snap, query, k)
}

func (uc *QueryUseCase) Stats() domain.QueryStats {
	return uc.stats.Snapshot()
}
