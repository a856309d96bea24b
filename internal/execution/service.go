// Package execution composes the risk gate, the resilient venue gateway,
// the lifecycle tracker and the event notifier into the public submit,
// modify and cancel operations.
package execution

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bisttrading/platform/internal/execution/metrics"
	"github.com/bisttrading/platform/internal/execution/model"
	"github.com/bisttrading/platform/internal/execution/risk"
	"github.com/bisttrading/platform/internal/execution/tracker"
	"github.com/bisttrading/platform/internal/execution/venue"
)

// Result is the outcome of a submit, modify or cancel operation. Reason is
// set iff the operation was not accepted.
type Result struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

func accepted() Result              { return Result{Accepted: true} }
func notAccepted(why string) Result { return Result{Accepted: false, Reason: why} }

// VenueGateway is the slice of the resilient gateway the orchestrator uses.
type VenueGateway interface {
	SubmitOrder(ctx context.Context, req *model.OrderRequest) (*model.OrderResponse, error)
	ModifyOrder(ctx context.Context, req *venue.ModifyRequest) (*model.OrderResponse, error)
	CancelOrder(ctx context.Context, clientOrderID, venueOrderID string) (*model.OrderResponse, error)
	QueryOrder(ctx context.Context, clientOrderID string) (*model.OrderResponse, error)
}

// Runner is a background loop owned by the service, stopped via its
// context. The staleness sweeper and the venue order stream are runners.
type Runner func(ctx context.Context)

// Service is the submission orchestrator.
type Service struct {
	gate    *risk.Gate
	gateway VenueGateway
	tracker *tracker.Tracker
	logger  *zap.Logger

	runners []Runner
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// modifyMu serializes modify/cancel decisions per order against each
	// other; venue responses still flow through the tracker's own locks.
	modifyMu sync.Mutex
}

// NewService wires the pipeline together.
func NewService(gate *risk.Gate, gateway VenueGateway, trk *tracker.Tracker, logger *zap.Logger) *Service {
	s := &Service{gate: gate, gateway: gateway, tracker: trk, logger: logger}
	s.runners = append(s.runners, trk.RunSweeper)
	return s
}

// AddRunner registers an additional background loop to start with the
// service. Must be called before Start.
func (s *Service) AddRunner(r Runner) {
	s.runners = append(s.runners, r)
}

// Start launches the service's background loops.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for _, r := range s.runners {
		r := r
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			r(ctx)
		}()
	}
}

// Stop cancels the background loops and waits for them to exit.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Submit runs the request through the risk gate and, on approval, tracks it
// and submits it to the venue. A risk rejection returns immediately: nothing
// is tracked and no venue call is made.
func (s *Service) Submit(ctx context.Context, req *model.OrderRequest) Result {
	decision := s.gate.Evaluate(ctx, req)
	if !decision.Approved {
		metrics.OrdersSubmitted.WithLabelValues("risk_rejected").Inc()
		s.logger.Info("order rejected by risk gate",
			zap.String("client_order_id", req.ClientOrderID),
			zap.String("reason", decision.Reason))
		return notAccepted(decision.Reason)
	}

	if err := s.tracker.StartTracking(req); err != nil {
		metrics.OrdersSubmitted.WithLabelValues("duplicate").Inc()
		return notAccepted(err.Error())
	}

	resp, err := s.gateway.SubmitOrder(ctx, req)
	if err != nil {
		metrics.OrdersSubmitted.WithLabelValues("venue_failed").Inc()
		ve := venue.AsError(err)
		s.logger.Warn("venue submission failed",
			zap.String("client_order_id", req.ClientOrderID),
			zap.String("kind", ve.Kind.String()),
			zap.Error(ve))
		s.tracker.MarkFailed(req.ClientOrderID, ve.Message)
		return notAccepted(ve.Message)
	}

	s.tracker.ApplyVenueResponse(resp)
	s.tracker.PublishSubmitted(req.ClientOrderID)
	metrics.OrdersSubmitted.WithLabelValues("accepted").Inc()
	return accepted()
}

// Modify adjusts an active order's price and/or quantity. The venue treats
// modification as cancel-and-replace; the caller keeps the original client
// order id, and the replacement's venue id arrives with the modify ack.
func (s *Service) Modify(ctx context.Context, clientOrderID string, newPrice decimal.Decimal, newQuantity int64) Result {
	s.modifyMu.Lock()
	defer s.modifyMu.Unlock()

	o, ok := s.tracker.Get(clientOrderID)
	if !ok {
		return notAccepted("order not found")
	}
	if !tracker.IsModifiable(o.Status) {
		return notAccepted("order cannot be modified in status " + o.Status.String())
	}

	resp, err := s.gateway.ModifyOrder(ctx, &venue.ModifyRequest{
		ClientOrderID: clientOrderID,
		VenueOrderID:  o.VenueOrderID,
		NewPrice:      newPrice,
		NewQuantity:   newQuantity,
	})
	if err != nil {
		ve := venue.AsError(err)
		s.logger.Warn("venue modify failed",
			zap.String("client_order_id", clientOrderID),
			zap.String("kind", ve.Kind.String()),
			zap.Error(ve))
		return notAccepted(ve.Message)
	}

	// The venue cancelled the original and created a replacement: reset the
	// tracked order to the replacement, then tell subscribers it changed.
	s.tracker.ApplyReplacement(clientOrderID, resp.VenueOrderID, newQuantity, newPrice)
	s.tracker.PublishModified(clientOrderID)
	return accepted()
}

// Cancel requests cancellation of an active order. The tracked order moves
// to PENDING_CANCEL optimistically before the venue call; the venue's
// response resolves it to CANCELLED or CANCEL_REJECTED, and a fill that
// raced the cancel wins.
func (s *Service) Cancel(ctx context.Context, clientOrderID string) Result {
	s.modifyMu.Lock()
	defer s.modifyMu.Unlock()

	o, ok := s.tracker.Get(clientOrderID)
	if !ok {
		return notAccepted("order not found")
	}
	if !tracker.IsCancellable(o.Status) {
		return notAccepted("order cannot be cancelled in status " + o.Status.String())
	}

	s.tracker.ApplyVenueResponse(&model.OrderResponse{
		ClientOrderID:  clientOrderID,
		Status:         model.OrderStatusPendingCancel,
		FilledQuantity: o.FilledQuantity,
	})

	resp, err := s.gateway.CancelOrder(ctx, clientOrderID, o.VenueOrderID)
	if err != nil {
		ve := venue.AsError(err)
		s.logger.Warn("venue cancel failed",
			zap.String("client_order_id", clientOrderID),
			zap.String("kind", ve.Kind.String()),
			zap.Error(ve))
		s.tracker.ApplyVenueResponse(&model.OrderResponse{
			ClientOrderID:  clientOrderID,
			Status:         model.OrderStatusCancelRejected,
			FilledQuantity: o.FilledQuantity,
			Reason:         ve.Message,
		})
		return notAccepted(ve.Message)
	}

	resp.ClientOrderID = clientOrderID
	s.tracker.ApplyVenueResponse(resp)
	return accepted()
}

// Order returns the tracked order for the client order id.
func (s *Service) Order(clientOrderID string) (tracker.TrackedOrder, bool) {
	return s.tracker.Get(clientOrderID)
}

// OrderByVenueID returns the tracked order for the venue order id.
func (s *Service) OrderByVenueID(venueOrderID string) (tracker.TrackedOrder, bool) {
	return s.tracker.GetByVenueID(venueOrderID)
}

// ActiveOrders returns the number of currently tracked orders.
func (s *Service) ActiveOrders() int {
	return s.tracker.ActiveCount()
}

// Orders returns copies of all currently tracked orders.
func (s *Service) Orders() []tracker.TrackedOrder {
	return s.tracker.Snapshot()
}

// HandleVenueUpdate feeds a streamed venue update into the tracker; wired
// as the order stream's handler.
func (s *Service) HandleVenueUpdate(resp *model.OrderResponse) {
	s.tracker.ApplyVenueResponse(resp)
}
