package algolab

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bisttrading/platform/internal/execution/model"
)

// Wire DTOs for the AlgoLab order API. Field names follow the venue's
// snake_case JSON contract.

type orderPayload struct {
	ClientOrderID string `json:"client_order_id"`
	AccountID     string `json:"account_id,omitempty"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Quantity      int64  `json:"quantity"`
	Price         string `json:"price,omitempty"`
	StopPrice     string `json:"stop_price,omitempty"`
	TimeInForce   string `json:"time_in_force,omitempty"`
	MarginBuy     bool   `json:"margin_buy,omitempty"`
	ShortSale     bool   `json:"short_sale,omitempty"`
}

type modifyPayload struct {
	ClientOrderID string `json:"client_order_id"`
	Price         string `json:"price,omitempty"`
	Quantity      int64  `json:"quantity,omitempty"`
}

type orderReply struct {
	OrderID           string          `json:"order_id"`
	ClientOrderID     string          `json:"client_order_id"`
	Symbol            string          `json:"symbol"`
	Status            string          `json:"status"`
	FilledQuantity    int64           `json:"filled_quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	LastFillQuantity  int64           `json:"last_fill_quantity"`
	LastFillPrice     decimal.Decimal `json:"last_fill_price"`
	AveragePrice      decimal.Decimal `json:"average_price"`
	Commission        decimal.Decimal `json:"commission"`
	RejectReason      string          `json:"reject_reason"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type errorReply struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r *orderReply) toResponse() *model.OrderResponse {
	ts := r.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return &model.OrderResponse{
		VenueOrderID:      r.OrderID,
		ClientOrderID:     r.ClientOrderID,
		Symbol:            r.Symbol,
		Status:            model.OrderStatus(r.Status),
		FilledQuantity:    r.FilledQuantity,
		RemainingQuantity: r.RemainingQuantity,
		LastFillQuantity:  r.LastFillQuantity,
		LastFillPrice:     r.LastFillPrice,
		AveragePrice:      r.AveragePrice,
		Commission:        r.Commission,
		Reason:            r.RejectReason,
		Timestamp:         ts,
	}
}
