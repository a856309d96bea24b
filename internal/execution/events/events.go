// Package events defines the order lifecycle event taxonomy and the
// notifier that fans events out to subscribers.
package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType enumerates the lifecycle transitions an order can report.
type EventType string

const (
	OrderSubmitted       EventType = "ORDER_SUBMITTED"
	OrderPartiallyFilled EventType = "ORDER_PARTIALLY_FILLED"
	OrderFilled          EventType = "ORDER_FILLED"
	OrderCancelled       EventType = "ORDER_CANCELLED"
	OrderRejected        EventType = "ORDER_REJECTED"
	OrderExpired         EventType = "ORDER_EXPIRED"
	OrderModified        EventType = "ORDER_MODIFIED"
)

// OrderEvent is an immutable snapshot of an order taken at the moment of a
// status transition. All value fields are copies; subscribers never see live
// tracker state.
type OrderEvent struct {
	ID                string          `json:"id"`
	Type              EventType       `json:"type"`
	ClientOrderID     string          `json:"client_order_id"`
	VenueOrderID      string          `json:"venue_order_id,omitempty"`
	Symbol            string          `json:"symbol"`
	Side              string          `json:"side"`
	OrderType         string          `json:"order_type"`
	Quantity          int64           `json:"quantity"`
	FilledQuantity    int64           `json:"filled_quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	Price             decimal.Decimal `json:"price"`
	AveragePrice      decimal.Decimal `json:"average_price"`
	LastFillQuantity  int64           `json:"last_fill_quantity,omitempty"`
	LastFillPrice     decimal.Decimal `json:"last_fill_price"`
	Commission        decimal.Decimal `json:"commission"`
	Reason            string          `json:"reason,omitempty"`
	Timestamp         time.Time       `json:"timestamp"`
}
