package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weddify/binks/internal/domain/order"
	"github.com/weddify/binks/internal/events"
	"github.com/weddify/binks/internal/model"
)

type fakeOrders struct {
	orders map[string]*model.Order
}

func (f *fakeOrders) Get(_ context.Context, id string) (*model.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

type sentMail struct {
	to    string
	order *model.Order
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendCredentialDelivery(to string, o *model.Order) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, order: o})
	return nil
}

func newTestHandler() (*Handler, *fakeMailer) {
	orders := &fakeOrders{orders: map[string]*model.Order{
		"INV-1": {ID: "INV-1", BuyerEmail: "buyer@example.com", Status: model.OrderCompleted},
	}}
	mailer := &fakeMailer{}
	return NewHandler(orders, mailer), mailer
}

func encode(t *testing.T, eventType, orderID string, data any) []byte {
	t.Helper()
	event, err := events.New(order.AggregateType, orderID, eventType, data)
	require.NoError(t, err)
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return raw
}

func TestHandler_OrderCompleted_SendsEmail(t *testing.T) {
	h, mailer := newTestHandler()
	value := encode(t, order.EventOrderCompleted, "INV-1", order.OrderCompleted{
		OrderID: "INV-1", BuyerEmail: "buyer@example.com", CompletedAt: time.Now(),
	})

	err := h.HandleEvent(context.Background(), []byte("INV-1"), value)

	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "buyer@example.com", mailer.sent[0].to)
	assert.Equal(t, "INV-1", mailer.sent[0].order.ID)
}

func TestHandler_IgnoresOtherEvents(t *testing.T) {
	h, mailer := newTestHandler()
	value := encode(t, order.EventOrderCreated, "INV-1", order.OrderCreated{OrderID: "INV-1"})

	err := h.HandleEvent(context.Background(), []byte("INV-1"), value)

	require.NoError(t, err)
	assert.Empty(t, mailer.sent)
}

func TestHandler_Errors(t *testing.T) {
	t.Run("malformed message", func(t *testing.T) {
		h, _ := newTestHandler()
		assert.Error(t, h.HandleEvent(context.Background(), nil, []byte("{not json")))
	})

	t.Run("unknown order", func(t *testing.T) {
		h, mailer := newTestHandler()
		value := encode(t, order.EventOrderCompleted, "INV-404", order.OrderCompleted{OrderID: "INV-404"})

		err := h.HandleEvent(context.Background(), nil, value)

		assert.ErrorIs(t, err, order.ErrOrderNotFound)
		assert.Empty(t, mailer.sent)
	})

	t.Run("smtp failure", func(t *testing.T) {
		h, mailer := newTestHandler()
		mailer.err = errors.New("connection refused")
		value := encode(t, order.EventOrderCompleted, "INV-1", order.OrderCompleted{OrderID: "INV-1"})

		err := h.HandleEvent(context.Background(), nil, value)

		assert.ErrorIs(t, err, mailer.err)
	})
}
