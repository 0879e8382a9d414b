package order

import (
	"fmt"

	"github.com/weddify/binks/internal/apperr"
	"github.com/weddify/binks/internal/model"
)

var (
	ErrInvalidStatus       = apperr.BadRequest("invalid order status transition")
	ErrUnknownStatus       = apperr.BadRequest("unknown order status")
	ErrOrderCancelled      = apperr.BadRequest("order is already cancelled")
	ErrOrderAlreadyExpired = apperr.BadRequest("order is already expired")
	ErrOrderCompleted      = apperr.BadRequest("cannot cancel a completed order")
)

// validTransitions defines allowed state transitions
var validTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderPending:         {model.OrderAwaitingPayment, model.OrderPaid, model.OrderCancelled, model.OrderExpired},
	model.OrderAwaitingPayment: {model.OrderPaid, model.OrderCancelled, model.OrderExpired},
	model.OrderPaid:            {model.OrderCompleted, model.OrderRefunded, model.OrderFailed},
	model.OrderCompleted:       {model.OrderRefunded, model.OrderFailed},
	model.OrderCancelled:       {}, // terminal state
	model.OrderExpired:         {}, // terminal state
	model.OrderRefunded:        {}, // terminal state
	model.OrderFailed:          {}, // terminal state
}

// unpaid are the states that still hold reserved stock.
var unpaid = []model.OrderStatus{model.OrderPending, model.OrderAwaitingPayment}

// CanTransition checks if an order in from may move to target.
func CanTransition(from, target model.OrderStatus) bool {
	for _, s := range validTransitions[from] {
		if s == target {
			return true
		}
	}
	return false
}

// KnownStatus reports whether s is a defined order status.
func KnownStatus(s model.OrderStatus) bool {
	_, ok := validTransitions[s]
	return ok
}

// transitionError returns an appropriate error for an invalid transition
func transitionError(from, target model.OrderStatus) error {
	switch {
	case from == model.OrderCancelled:
		return ErrOrderCancelled
	case from == model.OrderExpired:
		return ErrOrderAlreadyExpired
	case from == model.OrderCompleted && (target == model.OrderCancelled || target == model.OrderExpired):
		return ErrOrderCompleted
	default:
		return apperr.Wrap(apperr.KindBadRequest,
			fmt.Sprintf("cannot transition from %s to %s", from, target), ErrInvalidStatus)
	}
}

func isUnpaid(s model.OrderStatus) bool {
	return s == model.OrderPending || s == model.OrderAwaitingPayment
}
