package venue

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bisttrading/platform/internal/execution/metrics"
)

// BreakerState represents the state of the circuit breaker.
type BreakerState int32

const (
	// StateClosed - normal operation, calls pass through
	StateClosed BreakerState = iota
	// StateOpen - calls fail fast without a network attempt
	StateOpen
	// StateHalfOpen - a limited number of trial calls test recovery
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds circuit breaker tuning.
type BreakerConfig struct {
	Name                   string
	WindowSize             int
	MinimumCalls           int
	FailureRateThreshold   float64
	SlowCallRateThreshold  float64
	SlowCallDuration       time.Duration
	OpenStateWait          time.Duration
	HalfOpenPermittedCalls int
}

type callOutcome struct {
	failed bool
	slow   bool
}

// CircuitBreaker tracks call outcomes over a count-based sliding window and
// opens when the failure rate or the slow-call rate crosses its threshold.
// A slow call is one whose duration reaches SlowCallDuration; it counts
// toward the slow rate even when it succeeds.
type CircuitBreaker struct {
	cfg    BreakerConfig
	logger *zap.Logger

	mu            sync.Mutex
	state         BreakerState
	window        []callOutcome
	next          int
	observed      int
	openedAt      time.Time
	halfOpenLeft  int
	halfOpenInUse int
}

// NewCircuitBreaker creates a closed breaker with an empty window.
func NewCircuitBreaker(cfg BreakerConfig, logger *zap.Logger) *CircuitBreaker {
	cb := &CircuitBreaker{
		cfg:    cfg,
		logger: logger,
		window: make([]callOutcome, cfg.WindowSize),
	}
	metrics.BreakerState.WithLabelValues(cfg.Name).Set(float64(StateClosed))
	return cb
}

// Allow reports whether a call may proceed. In the open state it flips to
// half-open once the wait has elapsed; in half-open it admits at most the
// permitted number of in-flight trial calls.
func (cb *CircuitBreaker) Allow(now time.Time) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if now.Sub(cb.openedAt) < cb.cfg.OpenStateWait {
			return false
		}
		cb.transition(StateHalfOpen)
		cb.halfOpenLeft = cb.cfg.HalfOpenPermittedCalls
		cb.halfOpenInUse = 1
		cb.halfOpenLeft--
		return true
	case StateHalfOpen:
		if cb.halfOpenLeft <= 0 {
			return false
		}
		cb.halfOpenLeft--
		cb.halfOpenInUse++
		return true
	default:
		return false
	}
}

// Record feeds one completed call outcome into the window and drives state
// transitions.
func (cb *CircuitBreaker) Record(now time.Time, duration time.Duration, failed bool) {
	slow := duration >= cb.cfg.SlowCallDuration

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.halfOpenInUse--
		if failed {
			// Any failed trial re-opens immediately.
			cb.transition(StateOpen)
			cb.openedAt = now
			cb.resetWindow()
			return
		}
		if cb.halfOpenLeft == 0 && cb.halfOpenInUse == 0 {
			// Every permitted trial succeeded.
			cb.transition(StateClosed)
			cb.resetWindow()
		}
		return
	case StateOpen:
		// A straggler from before the state change; the window restarts
		// when the breaker closes, so drop it.
		return
	}

	cb.window[cb.next] = callOutcome{failed: failed, slow: slow}
	cb.next = (cb.next + 1) % len(cb.window)
	if cb.observed < len(cb.window) {
		cb.observed++
	}

	if cb.observed < cb.cfg.MinimumCalls {
		return
	}

	var failures, slows int
	for i := 0; i < cb.observed; i++ {
		if cb.window[i].failed {
			failures++
		}
		if cb.window[i].slow {
			slows++
		}
	}
	failureRate := float64(failures) / float64(cb.observed)
	slowRate := float64(slows) / float64(cb.observed)

	if failureRate >= cb.cfg.FailureRateThreshold || slowRate >= cb.cfg.SlowCallRateThreshold {
		cb.transition(StateOpen)
		cb.openedAt = now
		cb.logger.Warn("circuit breaker opened",
			zap.String("name", cb.cfg.Name),
			zap.Float64("failure_rate", failureRate),
			zap.Float64("slow_call_rate", slowRate),
			zap.Int("observed", cb.observed))
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) resetWindow() {
	for i := range cb.window {
		cb.window[i] = callOutcome{}
	}
	cb.next = 0
	cb.observed = 0
}

func (cb *CircuitBreaker) transition(to BreakerState) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	metrics.BreakerState.WithLabelValues(cb.cfg.Name).Set(float64(to))
	cb.logger.Info("circuit breaker state change",
		zap.String("name", cb.cfg.Name),
		zap.String("from", from.String()),
		zap.String("to", to.String()))
}
