package resilience

import "time"

// Policy controls how a call to an external collaborator is guarded. The
// default is a single attempt behind a circuit breaker: callers decide
// whether to try again.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	Breaker BreakerPolicy
}

type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    1,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      5,
			FailureRatio:     0.6,
			OpenTimeout:      20 * time.Second,
			HalfOpenMaxCalls: 1,
		},
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = max(def.MaxBackoff, p.InitialBackoff)
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.Breaker.MinRequests == 0 {
		p.Breaker.MinRequests = def.Breaker.MinRequests
	}
	if p.Breaker.FailureRatio <= 0 || p.Breaker.FailureRatio > 1 {
		p.Breaker.FailureRatio = def.Breaker.FailureRatio
	}
	if p.Breaker.OpenTimeout <= 0 {
		p.Breaker.OpenTimeout = def.Breaker.OpenTimeout
	}
	if p.Breaker.HalfOpenMaxCalls == 0 {
		p.Breaker.HalfOpenMaxCalls = def.Breaker.HalfOpenMaxCalls
	}
	return p
}

// delay returns the wait before the given retry (1-based).
func (p Policy) delay(retry int) time.Duration {
	d := float64(p.InitialBackoff)
	for i := 1; i < retry; i++ {
		d *= p.Multiplier
		if time.Duration(d) >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return min(time.Duration(d), p.MaxBackoff)
}
