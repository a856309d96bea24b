package venue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestBreaker(t *testing.T) *CircuitBreaker {
	t.Helper()
	return NewCircuitBreaker(BreakerConfig{
		Name:                   "test",
		WindowSize:             10,
		MinimumCalls:           5,
		FailureRateThreshold:   0.5,
		SlowCallRateThreshold:  0.5,
		SlowCallDuration:       10 * time.Second,
		OpenStateWait:          30 * time.Second,
		HalfOpenPermittedCalls: 3,
	}, zaptest.NewLogger(t))
}

func recordN(cb *CircuitBreaker, now time.Time, n int, duration time.Duration, failed bool) {
	for i := 0; i < n; i++ {
		cb.Record(now, duration, failed)
	}
}

func TestBreakerStaysClosedBelowMinimumCalls(t *testing.T) {
	cb := newTestBreaker(t)
	now := time.Now()

	// Four outcomes, all failed, still below the five-call minimum.
	recordN(cb, now, 4, time.Millisecond, true)

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow(now))
}

func TestBreakerOpensAtFailureRate(t *testing.T) {
	cb := newTestBreaker(t)
	now := time.Now()

	recordN(cb, now, 3, time.Millisecond, false)
	recordN(cb, now, 3, time.Millisecond, true) // 3/6 = 50%

	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow(now), "open breaker must fail fast")
}

func TestBreakerOpensAtSlowCallRate(t *testing.T) {
	cb := newTestBreaker(t)
	now := time.Now()

	// Successful but slow calls still open the breaker.
	recordN(cb, now, 3, 11*time.Second, false)
	recordN(cb, now, 3, time.Millisecond, false)

	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerHalfOpenClosesWhenAllTrialsSucceed(t *testing.T) {
	cb := newTestBreaker(t)
	now := time.Now()

	recordN(cb, now, 5, time.Millisecond, true)
	require.Equal(t, StateOpen, cb.State())

	// Before the wait elapses the breaker stays shut.
	assert.False(t, cb.Allow(now.Add(29*time.Second)))

	later := now.Add(31 * time.Second)
	for i := 0; i < 3; i++ {
		require.True(t, cb.Allow(later), "trial %d should be admitted", i+1)
		cb.Record(later, time.Millisecond, false)
	}
	assert.Equal(t, StateClosed, cb.State())

	// Window restarted: old failures are gone.
	recordN(cb, later, 4, time.Millisecond, true)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenReopensOnTrialFailure(t *testing.T) {
	cb := newTestBreaker(t)
	now := time.Now()

	recordN(cb, now, 5, time.Millisecond, true)
	require.Equal(t, StateOpen, cb.State())

	later := now.Add(31 * time.Second)
	require.True(t, cb.Allow(later))
	cb.Record(later, time.Millisecond, true)

	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow(later))

	// The wait restarts from the re-open.
	assert.False(t, cb.Allow(later.Add(29*time.Second)))
	assert.True(t, cb.Allow(later.Add(31*time.Second)))
}

func TestBreakerHalfOpenBoundsTrialCalls(t *testing.T) {
	cb := newTestBreaker(t)
	now := time.Now()

	recordN(cb, now, 5, time.Millisecond, true)
	later := now.Add(31 * time.Second)

	for i := 0; i < 3; i++ {
		require.True(t, cb.Allow(later))
	}
	// Fourth concurrent trial is rejected while the first three are in flight.
	assert.False(t, cb.Allow(later))
}

func TestBreakerSlidingWindowEvictsOldOutcomes(t *testing.T) {
	cb := newTestBreaker(t)
	now := time.Now()

	// Three failures spread out so no prefix reaches the 50% rate.
	for i := 0; i < 9; i++ {
		cb.Record(now, time.Millisecond, i%3 == 2)
	}
	require.Equal(t, StateClosed, cb.State())

	// Ten successes push those failures out of the ten-slot window; the
	// four fresh failures alone stay below the threshold.
	recordN(cb, now, 10, time.Millisecond, false)
	recordN(cb, now, 4, time.Millisecond, true)

	assert.Equal(t, StateClosed, cb.State())
}
