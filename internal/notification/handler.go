package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/weddify/binks/internal/domain/order"
	"github.com/weddify/binks/internal/events"
	"github.com/weddify/binks/internal/model"
)

// OrderReader loads an order with its delivered stock. *order.Service satisfies it.
type OrderReader interface {
	Get(ctx context.Context, id string) (*model.Order, error)
}

// Mailer sends the delivery email. *email.Service satisfies it.
type Mailer interface {
	SendCredentialDelivery(to string, o *model.Order) error
}

// Handler processes events for sending notifications
type Handler struct {
	orders OrderReader
	mailer Mailer
}

// NewHandler creates a new notification handler
func NewHandler(orders OrderReader, mailer Mailer) *Handler {
	return &Handler{
		orders: orders,
		mailer: mailer,
	}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event events.Event
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	if event.EventType == order.EventOrderCompleted {
		return h.handleOrderCompleted(ctx, event)
	}
	return nil
}

func (h *Handler) handleOrderCompleted(ctx context.Context, event events.Event) error {
	var e order.OrderCompleted
	if err := json.Unmarshal(event.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal OrderCompleted event: %v", err)
		return err
	}

	log.Printf("[Notifier] Processing OrderCompleted event for order %s", e.OrderID)

	o, err := h.orders.Get(ctx, e.OrderID)
	if err != nil {
		log.Printf("[Notifier] Error loading order %s: %v", e.OrderID, err)
		return err
	}

	to := o.BuyerEmail
	if to == "" {
		to = e.BuyerEmail
	}
	if err := h.mailer.SendCredentialDelivery(to, o); err != nil {
		log.Printf("[Notifier] Failed to send email to %s: %v", to, err)
		return err
	}

	log.Printf("[Notifier] Credentials for order %s sent to %s", o.ID, to)
	return nil
}
