package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/weddify/binks/internal/apperr"
	"github.com/weddify/binks/internal/domain/order"
	"github.com/weddify/binks/internal/events"
	"github.com/weddify/binks/internal/gateway/pakasir"
	"github.com/weddify/binks/internal/infrastructure/store"
	"github.com/weddify/binks/internal/model"
)

const gatewayName = "pakasir"

var (
	ErrPaymentNotFound   = apperr.NotFound("payment")
	ErrUnsupportedMethod = apperr.BadRequest("unsupported payment method")
	ErrInvalidPayload    = apperr.BadRequest("Invalid payload")
	ErrAmountMismatch    = apperr.BadRequest("payment amount does not match")
	ErrUnknownStatus     = apperr.BadRequest("unknown payment status")
	ErrSandboxOnly       = apperr.BadRequest("Simulation only available in sandbox mode")
	ErrOrderNotPending   = apperr.BadRequest("order is no longer pending")
)

// Gateway is the subset of the Pakasir client the service depends on.
type Gateway interface {
	CreateTransaction(ctx context.Context, req pakasir.CreateRequest) (*pakasir.Transaction, error)
	TransactionDetail(ctx context.Context, orderID string) (*pakasir.TransactionDetail, error)
	SimulatePayment(ctx context.Context, orderID string) error
}

type Config struct {
	SandboxMode bool
}

type Service struct {
	store     store.Store
	orders    *order.Service
	gateway   Gateway
	publisher events.Publisher
	cfg       Config
	now       func() time.Time
}

func NewService(st store.Store, orders *order.Service, gateway Gateway, publisher events.Publisher, cfg Config) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		store:     st,
		orders:    orders,
		gateway:   gateway,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create opens a gateway transaction for an order. An unpaid order that
// already has a pending payment gets that payment back.
func (s *Service) Create(ctx context.Context, orderID, method string) (*model.Payment, error) {
	if !pakasir.ValidMethod(method) {
		return nil, ErrUnsupportedMethod
	}

	var (
		o        *model.Order
		existing *model.Payment
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		o, err = tx.GetOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return order.ErrOrderNotFound
			}
			return err
		}
		existing, err = tx.FindPayment(ctx, orderID, model.PaymentPending)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	unpaid := o.Status == model.OrderPending || o.Status == model.OrderAwaitingPayment
	if unpaid && existing != nil {
		return existing, nil
	}
	if o.Status != model.OrderPending {
		return nil, apperr.BadRequest(fmt.Sprintf("Cannot create payment for %s order", o.Status))
	}
	if s.now().After(o.ExpiresAt) {
		return nil, apperr.OrderExpired()
	}

	gtx, err := s.gateway.CreateTransaction(ctx, pakasir.CreateRequest{
		OrderID: o.ID,
		Amount:  o.Total,
		Method:  method,
	})
	if err != nil {
		log.Printf("[Payment] Gateway create failed for %s: %v", o.ID, err)
		return nil, apperr.Internal("Payment gateway error", err)
	}

	now := s.now()
	p := &model.Payment{
		ID:             uuid.New().String(),
		OrderID:        o.ID,
		Gateway:        gatewayName,
		GatewayOrderID: gtx.OrderID,
		Method:         method,
		MethodName:     pakasir.MethodName(method),
		Amount:         o.Total,
		TotalAmount:    gtx.Total,
		PaymentNumber:  gtx.PaymentNumber(),
		Status:         model.PaymentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.TotalAmount == 0 {
		p.TotalAmount = p.Amount
	}
	if fee := p.TotalAmount - p.Amount; fee > 0 {
		p.Fee = fee
	}
	if !gtx.ExpiredAt.IsZero() {
		expires := gtx.ExpiredAt
		p.ExpiresAt = &expires
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}
		ok, err := tx.UpdateOrderStatus(ctx, o.ID, model.OrderAwaitingPayment, []model.OrderStatus{model.OrderPending}, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderNotPending
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Payment] Created %s for order %s via %s (%d)", p.ID, o.ID, method, p.TotalAmount)
	events.Emit(ctx, s.publisher, AggregateType, p.ID, EventPaymentCreated, PaymentCreated{
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		Method:        p.Method,
		TotalAmount:   p.TotalAmount,
		PaymentNumber: p.PaymentNumber,
		ExpiresAt:     p.ExpiresAt,
	})
	return p, nil
}

// CheckStatus polls the gateway for a payment and settles the order when it
// has been paid. Gateway failures return the stored payment unchanged.
func (s *Service) CheckStatus(ctx context.Context, paymentID string) (*model.Payment, error) {
	p, err := s.getPayment(ctx, func(tx store.Tx) (*model.Payment, error) {
		return tx.GetPayment(ctx, paymentID)
	})
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, p)
}

// CheckStatusByOrder polls the latest payment of an order.
func (s *Service) CheckStatusByOrder(ctx context.Context, orderID string) (*model.Payment, error) {
	p, err := s.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, p)
}

func (s *Service) refresh(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	if p.Status.IsTerminal() {
		return p, nil
	}

	detail, err := s.gateway.TransactionDetail(ctx, p.GatewayOrderID)
	if err != nil {
		log.Printf("[Payment] Status check failed for %s: %v", p.ID, err)
		return p, nil
	}

	status, ok := mapStatus(detail.Status)
	if !ok {
		log.Printf("[Payment] Ignoring unknown gateway status %q for %s", detail.Status, p.ID)
		return p, nil
	}

	if status != p.Status {
		paidAt := s.paidAt(status, detail.CompletedAt)
		updated, err := s.updateStatus(ctx, p.ID, status, paidAt, nil)
		if err != nil {
			return nil, err
		}
		p = updated
		log.Printf("[Payment] %s is now %s", p.ID, p.Status)
	}

	if status == model.PaymentCompleted {
		if _, err := s.orders.MarkAsPaid(ctx, p.OrderID); err != nil {
			log.Printf("[Payment] Failed to complete order %s after payment %s: %v", p.OrderID, p.ID, err)
		}
	}
	return p, nil
}

// HandleWebhook applies a gateway notification. Errors from settling the
// order are returned so the gateway retries the delivery.
func (s *Service) HandleWebhook(ctx context.Context, payload pakasir.WebhookPayload, raw []byte) (*model.Payment, error) {
	if payload.OrderID == "" || payload.Status == "" {
		return nil, ErrInvalidPayload
	}
	status, ok := mapStatus(payload.Status)
	if !ok {
		return nil, ErrUnknownStatus
	}

	p, err := s.getPayment(ctx, func(tx store.Tx) (*model.Payment, error) {
		return tx.GetPaymentByGatewayOrderID(ctx, payload.OrderID)
	})
	if err != nil {
		return nil, err
	}
	if payload.Amount != 0 && payload.Amount != p.Amount {
		log.Printf("[Webhook] Amount mismatch for %s: got %d, expected %d", payload.OrderID, payload.Amount, p.Amount)
		return nil, ErrAmountMismatch
	}

	if p.Status.IsTerminal() {
		if p.Status == model.PaymentCompleted && status == model.PaymentCompleted {
			// Redelivered confirmation; MarkAsPaid is a no-op once delivered.
			if _, err := s.orders.MarkAsPaid(ctx, p.OrderID); err != nil {
				return nil, err
			}
		} else {
			log.Printf("[Webhook] Payment %s is already %s, ignoring %s", p.ID, p.Status, status)
		}
		return p, nil
	}

	var webhook json.RawMessage
	if json.Valid(raw) {
		webhook = raw
	}
	p, err = s.updateStatus(ctx, p.ID, status, s.paidAt(status, payload.CompletedAt), webhook)
	if err != nil {
		return nil, err
	}

	if p.Status == model.PaymentCompleted {
		if _, err := s.orders.MarkAsPaid(ctx, p.OrderID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// GetByOrderID returns the most recent payment of an order.
func (s *Service) GetByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	return s.getPayment(ctx, func(tx store.Tx) (*model.Payment, error) {
		return tx.FindPayment(ctx, orderID, "")
	})
}

// Simulate settles the latest payment of an order in a sandbox project.
func (s *Service) Simulate(ctx context.Context, orderID string) error {
	if !s.cfg.SandboxMode {
		return ErrSandboxOnly
	}
	p, err := s.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.gateway.SimulatePayment(ctx, p.GatewayOrderID); err != nil {
		return apperr.Internal("Failed to simulate payment", err)
	}
	log.Printf("[Payment] Simulated payment for order %s", orderID)
	return nil
}

func (s *Service) getPayment(ctx context.Context, find func(tx store.Tx) (*model.Payment, error)) (*model.Payment, error) {
	var p *model.Payment
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		p, err = find(tx)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

func (s *Service) updateStatus(ctx context.Context, id string, status model.PaymentStatus, paidAt *time.Time, webhook json.RawMessage) (*model.Payment, error) {
	return s.getPayment(ctx, func(tx store.Tx) (*model.Payment, error) {
		updated, err := tx.UpdatePaymentStatus(ctx, id, status, paidAt, webhook, s.now())
		if err != nil {
			return nil, err
		}
		if !updated {
			log.Printf("[Payment] %s already settled, kept its status", id)
		}
		return tx.GetPayment(ctx, id)
	})
}

func (s *Service) paidAt(status model.PaymentStatus, completedAt *time.Time) *time.Time {
	if status != model.PaymentCompleted {
		return nil
	}
	if completedAt != nil && !completedAt.IsZero() {
		t := *completedAt
		return &t
	}
	t := s.now()
	return &t
}

// mapStatus translates a gateway status into a payment status.
func mapStatus(gatewayStatus string) (model.PaymentStatus, bool) {
	switch gatewayStatus {
	case pakasir.StatusPaid, string(model.PaymentCompleted):
		return model.PaymentCompleted, true
	case pakasir.StatusPending:
		return model.PaymentPending, true
	case pakasir.StatusExpired:
		return model.PaymentExpired, true
	case pakasir.StatusCancelled:
		return model.PaymentCancelled, true
	case string(model.PaymentFailed):
		return model.PaymentFailed, true
	default:
		return "", false
	}
}
