// Package tracker owns the live, in-memory state of every order that has
// not yet reached a terminal status. It is the only writer of that state:
// venue responses are folded in through ApplyVenueResponse, illegal or stale
// updates are dropped, and each accepted status transition produces exactly
// one lifecycle event.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bisttrading/platform/internal/execution/events"
	"github.com/bisttrading/platform/internal/execution/metrics"
	"github.com/bisttrading/platform/internal/execution/model"
)

// Publisher receives one event per accepted status transition. The notifier
// implements it; tests use recording fakes.
type Publisher interface {
	Publish(events.OrderEvent)
}

// TrackedOrder is the tracker's view of one order. Values returned from
// queries are copies; only the tracker mutates the live instance.
type TrackedOrder struct {
	ClientOrderID     string
	VenueOrderID      string
	Symbol            string
	Side              string
	Type              string
	Quantity          int64
	Price             decimal.Decimal
	Status            model.OrderStatus
	PreviousStatus    model.OrderStatus
	FilledQuantity    int64
	RemainingQuantity int64
	AveragePrice      decimal.Decimal
	LastFillQuantity  int64
	LastFillPrice     decimal.Decimal
	Commission        decimal.Decimal
	RejectReason      string
	SubmittedAt       time.Time
	LastUpdated       time.Time
}

type entry struct {
	mu      sync.Mutex
	order   TrackedOrder
	removed bool
}

// Config tunes the staleness sweep.
type Config struct {
	SweepInterval time.Duration
	StaleAfter    time.Duration
}

// Tracker holds the live order set. Contention is scoped per order: the
// index lock only guards the two maps, each entry carries its own mutex, so
// updates for different orders proceed concurrently while one order's
// updates are serialized.
type Tracker struct {
	cfg       Config
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time

	mu         sync.RWMutex
	orders     map[string]*entry // keyed by client order id
	venueIndex map[string]string // venue order id -> client order id
}

// New creates an empty tracker.
func New(cfg Config, publisher Publisher, logger *zap.Logger) *Tracker {
	return &Tracker{
		cfg:        cfg,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
		orders:     make(map[string]*entry),
		venueIndex: make(map[string]string),
	}
}

// StartTracking inserts the order in status NEW. It fails if the client
// order id is already tracked.
func (t *Tracker) StartTracking(req *model.OrderRequest) error {
	now := t.now()
	e := &entry{order: TrackedOrder{
		ClientOrderID:     req.ClientOrderID,
		Symbol:            req.Symbol,
		Side:              req.Side,
		Type:              req.Type,
		Quantity:          req.Quantity,
		Price:             req.Price,
		Status:            model.OrderStatusNew,
		RemainingQuantity: req.Quantity,
		SubmittedAt:       now,
		LastUpdated:       now,
	}}

	t.mu.Lock()
	if _, exists := t.orders[req.ClientOrderID]; exists {
		t.mu.Unlock()
		return fmt.Errorf("order %s is already tracked", req.ClientOrderID)
	}
	t.orders[req.ClientOrderID] = e
	t.mu.Unlock()

	metrics.ActiveOrders.Inc()
	t.logger.Debug("started tracking order",
		zap.String("client_order_id", req.ClientOrderID),
		zap.String("symbol", req.Symbol))
	return nil
}

// ApplyVenueResponse folds one venue response into the tracked order. The
// update is idempotent and out-of-order safe: an illegal transition, a
// duplicate fill, or an update for an unknown or already-removed order is
// logged and dropped, never surfaced as an error.
func (t *Tracker) ApplyVenueResponse(resp *model.OrderResponse) {
	e := t.lookup(resp.ClientOrderID, resp.VenueOrderID)
	if e == nil {
		metrics.DroppedTransitions.WithLabelValues("unknown_order").Inc()
		t.logger.Debug("venue response for unknown order",
			zap.String("client_order_id", resp.ClientOrderID),
			zap.String("venue_order_id", resp.VenueOrderID))
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		metrics.DroppedTransitions.WithLabelValues("already_final").Inc()
		t.logger.Debug("venue response for removed order",
			zap.String("client_order_id", e.order.ClientOrderID))
		return
	}

	o := &e.order
	statusChanged := resp.Status != o.Status
	if statusChanged && !CanTransition(o.Status, resp.Status) {
		metrics.DroppedTransitions.WithLabelValues("illegal_transition").Inc()
		t.logger.Debug("dropping illegal transition",
			zap.String("client_order_id", o.ClientOrderID),
			zap.String("from", o.Status.String()),
			zap.String("to", resp.Status.String()))
		return
	}

	// A modify is cancel-and-replace at the venue, so the venue id can
	// change over the order's life; the reverse index follows it.
	if resp.VenueOrderID != "" && resp.VenueOrderID != o.VenueOrderID {
		t.mu.Lock()
		if o.VenueOrderID != "" {
			delete(t.venueIndex, o.VenueOrderID)
		}
		t.venueIndex[resp.VenueOrderID] = o.ClientOrderID
		t.mu.Unlock()
		o.VenueOrderID = resp.VenueOrderID
	}

	fillDelta := resp.FilledQuantity - o.FilledQuantity
	if !statusChanged && fillDelta <= 0 {
		// Duplicate or reordered response; nothing new to apply.
		return
	}
	if fillDelta < 0 {
		// Status advanced but the fill figure ran backwards; keep our
		// totals, they are at least as fresh.
		fillDelta = 0
	}

	if fillDelta > 0 {
		t.applyFill(o, resp, fillDelta)
	}
	if !resp.Commission.IsZero() {
		o.Commission = resp.Commission
	}
	if resp.Reason != "" {
		o.RejectReason = resp.Reason
	}
	o.LastUpdated = t.now()

	if statusChanged {
		o.PreviousStatus = o.Status
		o.Status = resp.Status
		t.logger.Info("order status changed",
			zap.String("client_order_id", o.ClientOrderID),
			zap.String("from", o.PreviousStatus.String()),
			zap.String("to", o.Status.String()),
			zap.Int64("filled", o.FilledQuantity),
			zap.Int64("remaining", o.RemainingQuantity))
		t.publishTransition(o)
		if IsFinal(o.Status) {
			t.remove(e)
		}
	}
}

// ApplyReplacement resets the tracked order to the replacement created by a
// cancel-and-replace modify. The client order id is preserved; the venue
// fills the replacement from zero, so quantity and fill totals restart. This
// is an orchestrator-driven reset, not a venue transition, so it bypasses
// the transition table.
func (t *Tracker) ApplyReplacement(clientOrderID, venueOrderID string, newQuantity int64, newPrice decimal.Decimal) {
	e := t.lookup(clientOrderID, "")
	if e == nil {
		t.logger.Debug("replacement for unknown order",
			zap.String("client_order_id", clientOrderID))
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return
	}

	o := &e.order
	if newQuantity > 0 {
		o.Quantity = newQuantity
	}
	if !newPrice.IsZero() {
		o.Price = newPrice
	}
	o.PreviousStatus = o.Status
	o.Status = model.OrderStatusNew
	o.FilledQuantity = 0
	o.RemainingQuantity = o.Quantity
	o.AveragePrice = decimal.Zero
	o.LastFillQuantity = 0
	o.LastFillPrice = decimal.Zero
	o.LastUpdated = t.now()

	if venueOrderID != "" && venueOrderID != o.VenueOrderID {
		t.mu.Lock()
		if o.VenueOrderID != "" {
			delete(t.venueIndex, o.VenueOrderID)
		}
		t.venueIndex[venueOrderID] = o.ClientOrderID
		t.mu.Unlock()
		o.VenueOrderID = venueOrderID
	}

	t.logger.Info("order replaced",
		zap.String("client_order_id", o.ClientOrderID),
		zap.String("venue_order_id", o.VenueOrderID),
		zap.Int64("quantity", o.Quantity),
		zap.String("price", o.Price.String()))
}

// MarkFailed transitions an order directly to REJECTED, used when the
// gateway fails before the venue ever acknowledged it.
func (t *Tracker) MarkFailed(clientOrderID, reason string) {
	e := t.lookup(clientOrderID, "")
	if e == nil {
		t.logger.Debug("mark failed for unknown order",
			zap.String("client_order_id", clientOrderID))
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return
	}

	o := &e.order
	if !CanTransition(o.Status, model.OrderStatusRejected) {
		metrics.DroppedTransitions.WithLabelValues("illegal_transition").Inc()
		t.logger.Debug("cannot mark order failed",
			zap.String("client_order_id", clientOrderID),
			zap.String("status", o.Status.String()))
		return
	}

	o.PreviousStatus = o.Status
	o.Status = model.OrderStatusRejected
	o.RejectReason = reason
	o.LastUpdated = t.now()

	t.logger.Info("order marked failed",
		zap.String("client_order_id", clientOrderID),
		zap.String("reason", reason))
	t.publishTransition(o)
	t.remove(e)
}

// Get returns a copy of the tracked order for the client order id.
func (t *Tracker) Get(clientOrderID string) (TrackedOrder, bool) {
	e := t.lookup(clientOrderID, "")
	if e == nil {
		return TrackedOrder{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return TrackedOrder{}, false
	}
	return e.order, true
}

// GetByVenueID returns a copy of the tracked order for the venue order id.
func (t *Tracker) GetByVenueID(venueOrderID string) (TrackedOrder, bool) {
	e := t.lookup("", venueOrderID)
	if e == nil {
		return TrackedOrder{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return TrackedOrder{}, false
	}
	return e.order, true
}

// ActiveCount returns the number of currently tracked orders.
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.orders)
}

// Snapshot returns copies of all currently tracked orders.
func (t *Tracker) Snapshot() []TrackedOrder {
	t.mu.RLock()
	entries := make([]*entry, 0, len(t.orders))
	for _, e := range t.orders {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	out := make([]TrackedOrder, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed {
			out = append(out, e.order)
		}
		e.mu.Unlock()
	}
	return out
}

// RunSweeper periodically removes orders whose last update is older than the
// staleness horizon. A stale entry means the venue and the tracker have
// desynchronized, so the removal is logged at warn.
func (t *Tracker) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *Tracker) sweep() {
	cutoff := t.now().Add(-t.cfg.StaleAfter)

	t.mu.RLock()
	entries := make([]*entry, 0, len(t.orders))
	for _, e := range t.orders {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		if !e.removed && e.order.LastUpdated.Before(cutoff) {
			t.logger.Warn("removing stale tracked order",
				zap.String("client_order_id", e.order.ClientOrderID),
				zap.String("status", e.order.Status.String()),
				zap.Time("last_updated", e.order.LastUpdated))
			t.remove(e)
		}
		e.mu.Unlock()
	}
}

// lookup resolves an entry by client order id, falling back to the venue
// order id index.
func (t *Tracker) lookup(clientOrderID, venueOrderID string) *entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if clientOrderID != "" {
		if e, ok := t.orders[clientOrderID]; ok {
			return e
		}
	}
	if venueOrderID != "" {
		if cid, ok := t.venueIndex[venueOrderID]; ok {
			return t.orders[cid]
		}
	}
	return nil
}

// applyFill recomputes the fill totals and the volume-weighted average
// price from the fill delta. Caller holds the entry lock.
func (t *Tracker) applyFill(o *TrackedOrder, resp *model.OrderResponse, delta int64) {
	fillPrice := resp.LastFillPrice
	if fillPrice.IsZero() {
		fillPrice = resp.AveragePrice
	}
	if fillPrice.IsZero() {
		fillPrice = o.Price
	}

	if !fillPrice.IsZero() {
		prev := o.AveragePrice.Mul(decimal.NewFromInt(o.FilledQuantity))
		add := fillPrice.Mul(decimal.NewFromInt(delta))
		o.AveragePrice = prev.Add(add).Div(decimal.NewFromInt(o.FilledQuantity + delta))
	}

	o.FilledQuantity += delta
	o.RemainingQuantity = o.Quantity - o.FilledQuantity
	if o.RemainingQuantity < 0 {
		o.RemainingQuantity = 0
	}
	o.LastFillQuantity = delta
	if !resp.LastFillPrice.IsZero() {
		o.LastFillPrice = resp.LastFillPrice
	} else {
		o.LastFillPrice = fillPrice
	}
}

// remove drops the entry from both indices. Caller holds the entry lock.
func (t *Tracker) remove(e *entry) {
	e.removed = true
	t.mu.Lock()
	delete(t.orders, e.order.ClientOrderID)
	if e.order.VenueOrderID != "" {
		delete(t.venueIndex, e.order.VenueOrderID)
	}
	t.mu.Unlock()
	metrics.ActiveOrders.Dec()
}

// publishTransition emits the event matching the order's new status. Caller
// holds the entry lock; the event carries copies only. Transitions into
// PENDING_CANCEL and CANCEL_REJECTED have no member in the event taxonomy
// and are not published.
func (t *Tracker) publishTransition(o *TrackedOrder) {
	var evType events.EventType
	switch o.Status {
	case model.OrderStatusPartiallyFilled:
		evType = events.OrderPartiallyFilled
	case model.OrderStatusFilled:
		evType = events.OrderFilled
	case model.OrderStatusCancelled:
		evType = events.OrderCancelled
	case model.OrderStatusRejected:
		evType = events.OrderRejected
	case model.OrderStatusExpired:
		evType = events.OrderExpired
	default:
		return
	}
	t.publisher.Publish(t.eventFor(o, evType))
}

func (t *Tracker) eventFor(o *TrackedOrder, evType events.EventType) events.OrderEvent {
	return events.OrderEvent{
		ID:                uuid.NewString(),
		Type:              evType,
		ClientOrderID:     o.ClientOrderID,
		VenueOrderID:      o.VenueOrderID,
		Symbol:            o.Symbol,
		Side:              o.Side,
		OrderType:         o.Type,
		Quantity:          o.Quantity,
		FilledQuantity:    o.FilledQuantity,
		RemainingQuantity: o.RemainingQuantity,
		Price:             o.Price,
		AveragePrice:      o.AveragePrice,
		LastFillQuantity:  o.LastFillQuantity,
		LastFillPrice:     o.LastFillPrice,
		Commission:        o.Commission,
		Reason:            o.RejectReason,
		Timestamp:         t.now(),
	}
}

// PublishModified emits a Modified event for the order; used by the
// orchestrator after a successful cancel-and-replace.
func (t *Tracker) PublishModified(clientOrderID string) {
	e := t.lookup(clientOrderID, "")
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return
	}
	t.publisher.Publish(t.eventFor(&e.order, events.OrderModified))
}

// PublishSubmitted emits a Submitted event for the order; used by the
// orchestrator once the venue acknowledges a submission.
func (t *Tracker) PublishSubmitted(clientOrderID string) {
	e := t.lookup(clientOrderID, "")
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return
	}
	t.publisher.Publish(t.eventFor(&e.order, events.OrderSubmitted))
}
