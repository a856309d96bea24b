// Package venue defines the broker client contract and wraps it with the
// resilience policies (circuit breaker, bounded retry, per-attempt timeout)
// that shield the execution pipeline from venue instability.
package venue

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/bisttrading/platform/internal/execution/model"
)

// ModifyRequest carries the replacement values for a cancel-and-replace
// modify at the venue. Zero values leave the corresponding field unchanged.
type ModifyRequest struct {
	ClientOrderID string
	VenueOrderID  string
	NewPrice      decimal.Decimal
	NewQuantity   int64
}

// Client performs single logical venue operations over the network. The
// bundled implementation is the AlgoLab REST client in the algolab
// sub-package; tests substitute fakes. Errors returned by a Client must be
// classifiable via AsError so the gateway can decide retry eligibility.
type Client interface {
	SubmitOrder(ctx context.Context, req *model.OrderRequest) (*model.OrderResponse, error)
	ModifyOrder(ctx context.Context, req *ModifyRequest) (*model.OrderResponse, error)
	CancelOrder(ctx context.Context, clientOrderID, venueOrderID string) (*model.OrderResponse, error)
	QueryOrder(ctx context.Context, clientOrderID string) (*model.OrderResponse, error)
}
