package domain

// Provider selects the generation backend.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

type RetrievalResult struct {
	DocID   string  `json:"doc_id"`
	ChunkID string  `json:"chunk_id"`
	Text    string  `json:"text"`
	Source  string  `json:"source"`
	Rank    int     `json:"rank"`
	Score   float64 `json:"score"`
}

type AnswerStatus string

const (
	AnswerOK                    AnswerStatus = "ok"
	AnswerNotReady              AnswerStatus = "not_ready"
	AnswerNoContext             AnswerStatus = "no_context"
	AnswerEmbeddingUnavailable  AnswerStatus = "embedding_unavailable"
	AnswerGenerationUnavailable AnswerStatus = "generation_unavailable"
)

// Answer is the user-facing result of a question. Collaborator failures are
// reported through Status and Text rather than as Go errors so that retrieved
// chunks stay available.
type Answer struct {
	Status     AnswerStatus      `json:"status"`
	Text       string            `json:"answer"`
	Chunks     []RetrievalResult `json:"chunks"`
	Provider   Provider          `json:"provider,omitempty"`
	Error      string            `json:"error,omitempty"`
	DurationMS int64             `json:"duration_ms"`
}

// Degraded reports whether the answer was produced without a successful
// generation call.
func (a *Answer) Degraded() bool {
	return a == nil || a.Status != AnswerOK
}

// Hit is a raw index match: a row position and its inner-product score.
type Hit struct {
	Row   int
	Score float64
}

// QueryStats aggregates question outcomes since process start.
type QueryStats struct {
	TotalQueries      int64   `json:"total_queries"`
	SuccessfulQueries int64   `json:"successful_queries"`
	SuccessRate       float64 `json:"success_rate"`
	AvgLatencyMS      float64 `json:"avg_latency_ms"`
}
