package venue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bisttrading/platform/internal/execution/metrics"
	"github.com/bisttrading/platform/internal/execution/model"
)

// RetryConfig holds the bounded retry policy for venue calls.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// Backoff returns the wait before the given retry (0 = first retry),
// growing exponentially and capped at MaxBackoff.
func (c RetryConfig) Backoff(retry int) time.Duration {
	if retry < 0 {
		return c.InitialBackoff
	}
	d := float64(c.InitialBackoff)
	for i := 0; i < retry; i++ {
		d *= c.BackoffMultiplier
		if time.Duration(d) >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if time.Duration(d) > c.MaxBackoff {
		return c.MaxBackoff
	}
	return time.Duration(d)
}

// Gateway performs single logical venue operations under the composed
// resilience policy: every attempt runs under a hard deadline, transient
// failures are retried with exponential backoff up to the attempt bound, and
// the circuit breaker fails calls fast once the venue looks unhealthy. The
// gateway has no order-lifecycle knowledge.
type Gateway struct {
	client      Client
	breaker     *CircuitBreaker
	retry       RetryConfig
	callTimeout time.Duration
	logger      *zap.Logger

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGateway wraps client with the given resilience configuration.
func NewGateway(client Client, breaker *CircuitBreaker, retry RetryConfig, callTimeout time.Duration, logger *zap.Logger) *Gateway {
	return &Gateway{
		client:      client,
		breaker:     breaker,
		retry:       retry,
		callTimeout: callTimeout,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SubmitOrder submits a new order under the resilience policy.
func (g *Gateway) SubmitOrder(ctx context.Context, req *model.OrderRequest) (*model.OrderResponse, error) {
	return g.execute(ctx, "submit", func(ctx context.Context) (*model.OrderResponse, error) {
		return g.client.SubmitOrder(ctx, req)
	})
}

// ModifyOrder modifies an existing order (cancel-and-replace at the venue).
func (g *Gateway) ModifyOrder(ctx context.Context, req *ModifyRequest) (*model.OrderResponse, error) {
	return g.execute(ctx, "modify", func(ctx context.Context) (*model.OrderResponse, error) {
		return g.client.ModifyOrder(ctx, req)
	})
}

// CancelOrder cancels an order.
func (g *Gateway) CancelOrder(ctx context.Context, clientOrderID, venueOrderID string) (*model.OrderResponse, error) {
	return g.execute(ctx, "cancel", func(ctx context.Context) (*model.OrderResponse, error) {
		return g.client.CancelOrder(ctx, clientOrderID, venueOrderID)
	})
}

// QueryOrder fetches the venue's current view of an order.
func (g *Gateway) QueryOrder(ctx context.Context, clientOrderID string) (*model.OrderResponse, error) {
	return g.execute(ctx, "query", func(ctx context.Context) (*model.OrderResponse, error) {
		return g.client.QueryOrder(ctx, clientOrderID)
	})
}

func (g *Gateway) execute(ctx context.Context, operation string, call func(context.Context) (*model.OrderResponse, error)) (*model.OrderResponse, error) {
	var lastErr *Error

	for attempt := 0; attempt < g.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := g.sleep(ctx, g.retry.Backoff(attempt-1)); err != nil {
				return nil, AsError(err)
			}
		}

		now := time.Now()
		if !g.breaker.Allow(now) {
			metrics.VenueCalls.WithLabelValues(operation, "circuit_open").Inc()
			return nil, &Error{Kind: KindCircuitOpen, Message: "service temporarily unavailable"}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
		resp, err := call(attemptCtx)
		cancel()
		elapsed := time.Since(now)
		metrics.VenueCallDuration.WithLabelValues(operation).Observe(elapsed.Seconds())

		if err == nil {
			g.breaker.Record(time.Now(), elapsed, false)
			metrics.VenueCalls.WithLabelValues(operation, "success").Inc()
			return resp, nil
		}

		lastErr = AsError(err)
		// Client-side errors (validation, auth) say nothing about venue
		// health; the breaker window ignores them entirely.
		if lastErr.Retryable() {
			g.breaker.Record(time.Now(), elapsed, true)
		}
		metrics.VenueCalls.WithLabelValues(operation, lastErr.Kind.String()).Inc()

		if !lastErr.Retryable() {
			g.logger.Debug("venue call failed, not retryable",
				zap.String("operation", operation),
				zap.String("kind", lastErr.Kind.String()),
				zap.Error(lastErr))
			return nil, lastErr
		}

		g.logger.Warn("venue call failed, will retry",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", g.retry.MaxAttempts),
			zap.String("kind", lastErr.Kind.String()),
			zap.Duration("elapsed", elapsed))
	}

	g.logger.Error("venue call exhausted retries",
		zap.String("operation", operation),
		zap.Int("attempts", g.retry.MaxAttempts),
		zap.Error(lastErr))
	return nil, lastErr
}
