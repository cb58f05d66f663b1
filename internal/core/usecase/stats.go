package usecase

import (
	"sync"
	"time"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

// QueryStats counts answered questions since process start. A query is
// successful when generation produced an answer.
type QueryStats struct {
	mu           sync.Mutex
	total        int64
	successful   int64
	totalLatency time.Duration
}

func NewQueryStats() *QueryStats {
	return &QueryStats{}
}

func (s *QueryStats) Record(success bool, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if success {
		s.successful++
	}
	s.totalLatency += latency
}

func (s *QueryStats) Snapshot() domain.QueryStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := domain.QueryStats{
		TotalQueries:      s.total,
		SuccessfulQueries: s.successful,
	}
	if s.total > 0 {
		out.SuccessRate = float64(s.successful) / float64(s.total)
		out.AvgLatencyMS = float64(s.totalLatency.Milliseconds()) / float64(s.total)
	}
	return out
}
