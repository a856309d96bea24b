package tracker

import "github.com/bisttrading/platform/internal/execution/model"

// transitions is the single legality table for order status changes. A
// status absent from the map is terminal.
var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusNew: {
		model.OrderStatusPartiallyFilled,
		model.OrderStatusFilled,
		model.OrderStatusCancelled,
		model.OrderStatusRejected,
		model.OrderStatusExpired,
		model.OrderStatusPendingCancel,
	},
	model.OrderStatusPartiallyFilled: {
		model.OrderStatusPartiallyFilled,
		model.OrderStatusFilled,
		model.OrderStatusCancelled,
		model.OrderStatusExpired,
		model.OrderStatusPendingCancel,
	},
	// A cancel can race a fill: the venue may report the order filled (or
	// partially filled then filled) while the cancel is in flight.
	model.OrderStatusPendingCancel: {
		model.OrderStatusCancelled,
		model.OrderStatusCancelRejected,
		model.OrderStatusFilled,
	},
	// A rejected cancel leaves the order live in its last good state.
	model.OrderStatusCancelRejected: {
		model.OrderStatusPartiallyFilled,
		model.OrderStatusFilled,
		model.OrderStatusCancelled,
		model.OrderStatusExpired,
		model.OrderStatusPendingCancel,
	},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to model.OrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsFinal reports whether the status is terminal.
func IsFinal(s model.OrderStatus) bool {
	switch s {
	case model.OrderStatusFilled, model.OrderStatusCancelled,
		model.OrderStatusRejected, model.OrderStatusExpired:
		return true
	default:
		return false
	}
}

// IsActive reports whether the order is still working at the venue.
// CANCEL_REJECTED is excluded: the venue may still move such an order
// (see the transition table), but callers wait for it to resolve before
// issuing another cancel or modify.
func IsActive(s model.OrderStatus) bool {
	return s == model.OrderStatusNew || s == model.OrderStatusPartiallyFilled
}

// IsCancellable reports whether a cancel may be requested.
func IsCancellable(s model.OrderStatus) bool {
	return IsActive(s)
}

// IsModifiable reports whether a modify may be requested. Orders with a
// cancel in flight are not modifiable.
func IsModifiable(s model.OrderStatus) bool {
	return IsActive(s)
}
