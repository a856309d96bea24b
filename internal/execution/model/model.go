// Package model defines the order types shared by the execution pipeline.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order sides
const (
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"
)

// Order types
const (
	OrderTypeMarket    = "MARKET"
	OrderTypeLimit     = "LIMIT"
	OrderTypeStop      = "STOP"
	OrderTypeStopLimit = "STOP_LIMIT"
)

// Time in force
const (
	TimeInForceDay = "DAY" // Valid for the trading day (BIST default)
	TimeInForceGTC = "GTC" // Good Till Cancelled
	TimeInForceIOC = "IOC" // Immediate Or Cancel
	TimeInForceFOK = "FOK" // Fill Or Kill
)

// OrderStatus is the venue-visible lifecycle status of an order. The
// transition legality table lives in the tracker package; status values here
// are plain tags.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusPendingCancel   OrderStatus = "PENDING_CANCEL"
	OrderStatusCancelRejected  OrderStatus = "CANCEL_REJECTED"
)

func (s OrderStatus) String() string { return string(s) }

// OrderRequest is the immutable trade intent handed to the execution
// pipeline. ClientOrderID is caller-assigned and must be unique per caller.
type OrderRequest struct {
	ClientOrderID string          `json:"client_order_id"`
	AccountID     string          `json:"account_id"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	Quantity      int64           `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	StopPrice     decimal.Decimal `json:"stop_price"`
	TimeInForce   string          `json:"time_in_force"`
	MarginBuy     bool            `json:"margin_buy"`
	ShortSale     bool            `json:"short_sale"`
}

// Validate checks the structural invariants of a request before any risk or
// venue interaction.
func (r *OrderRequest) Validate() error {
	if r.ClientOrderID == "" {
		return fmt.Errorf("client order id is required")
	}
	if r.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	switch r.Side {
	case OrderSideBuy, OrderSideSell:
	default:
		return fmt.Errorf("invalid order side: %q", r.Side)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", r.Quantity)
	}
	switch r.Type {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if r.Price.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("limit order requires a positive price")
		}
	case OrderTypeStop:
		if r.StopPrice.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("stop order requires a positive stop price")
		}
	case OrderTypeStopLimit:
		if r.Price.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("stop limit order requires a positive price")
		}
		if r.StopPrice.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("stop limit order requires a positive stop price")
		}
	default:
		return fmt.Errorf("invalid order type: %q", r.Type)
	}
	return nil
}

// Notional returns price x quantity for orders that carry a price, and zero
// for market orders.
func (r *OrderRequest) Notional() decimal.Decimal {
	if r.Price.IsZero() {
		return decimal.Zero
	}
	return r.Price.Mul(decimal.NewFromInt(r.Quantity))
}

// OrderResponse is the venue's view of an order after an operation or a
// stream update. FilledQuantity is cumulative.
type OrderResponse struct {
	VenueOrderID      string          `json:"venue_order_id"`
	ClientOrderID     string          `json:"client_order_id"`
	Symbol            string          `json:"symbol"`
	Status            OrderStatus     `json:"status"`
	FilledQuantity    int64           `json:"filled_quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	LastFillQuantity  int64           `json:"last_fill_quantity"`
	LastFillPrice     decimal.Decimal `json:"last_fill_price"`
	AveragePrice      decimal.Decimal `json:"average_price"`
	Commission        decimal.Decimal `json:"commission"`
	Reason            string          `json:"reason"`
	Timestamp         time.Time       `json:"timestamp"`
}
