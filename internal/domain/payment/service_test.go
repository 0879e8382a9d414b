package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weddify/binks/internal/apperr"
	"github.com/weddify/binks/internal/domain/coupon"
	"github.com/weddify/binks/internal/domain/order"
	"github.com/weddify/binks/internal/gateway/pakasir"
	"github.com/weddify/binks/internal/infrastructure/store/mocks"
	"github.com/weddify/binks/internal/model"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeGateway records calls and returns canned answers.
type fakeGateway struct {
	createCalls   []pakasir.CreateRequest
	detailCalls   []string
	simulateCalls []string

	createErr error
	detail    *pakasir.TransactionDetail
	detailErr error
}

func (g *fakeGateway) CreateTransaction(_ context.Context, req pakasir.CreateRequest) (*pakasir.Transaction, error) {
	g.createCalls = append(g.createCalls, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &pakasir.Transaction{
		OrderID:   req.OrderID,
		QRString:  "QR-" + req.OrderID,
		Total:     req.Amount + 500,
		ExpiredAt: fixedNow.Add(30 * time.Minute),
	}, nil
}

func (g *fakeGateway) TransactionDetail(_ context.Context, orderID string) (*pakasir.TransactionDetail, error) {
	g.detailCalls = append(g.detailCalls, orderID)
	if g.detailErr != nil {
		return nil, g.detailErr
	}
	return g.detail, nil
}

func (g *fakeGateway) SimulatePayment(_ context.Context, orderID string) error {
	g.simulateCalls = append(g.simulateCalls, orderID)
	return nil
}

type fixture struct {
	svc     *Service
	orders  *order.Service
	store   *mocks.MemoryStore
	gateway *fakeGateway
}

func newTestPaymentService(t *testing.T, cfg Config) *fixture {
	t.Helper()
	st := mocks.NewMemoryStore()
	st.AddProduct(model.Product{ID: "p1", Slug: "netflix-1m", Title: "Netflix 1 Month", Price: 50000, IsActive: true})
	st.AddStock("p1", 2)

	clock := func() time.Time { return fixedNow }
	orders := order.NewService(st, coupon.NewEvaluator().WithClock(clock), order.Config{},
		order.WithClock(clock),
		order.WithUniqueCode(func() int64 { return 7 }),
	)
	gw := &fakeGateway{}
	svc := NewService(st, orders, gw, nil, cfg).WithClock(clock)
	return &fixture{svc: svc, orders: orders, store: st, gateway: gw}
}

func (f *fixture) placeOrder(t *testing.T) *model.Order {
	t.Helper()
	o, err := f.orders.Create(context.Background(), order.CreateInput{
		BuyerEmail: "buyer@example.com",
		Items:      []order.ItemInput{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)
	return o
}

func orderStatus(t *testing.T, st *mocks.MemoryStore, id string) model.OrderStatus {
	t.Helper()
	o, ok := st.Order(id)
	require.True(t, ok)
	return o.Status
}

// ============================================
// Create Tests
// ============================================

func TestService_Create_Success(t *testing.T) {
	f := newTestPaymentService(t, Config{})
	o := f.placeOrder(t)

	p, err := f.svc.Create(context.Background(), o.ID, "qris")

	require.NoError(t, err)
	assert.Equal(t, o.ID, p.OrderID)
	assert.Equal(t, "pakasir", p.Gateway)
	assert.Equal(t, o.ID, p.GatewayOrderID)
	assert.Equal(t, "QRIS", p.MethodName)
	assert.Equal(t, o.Total, p.Amount)
	assert.Equal(t, o.Total+500, p.TotalAmount)
	assert.Equal(t, int64(500), p.Fee)
	assert.Equal(t, "QR-"+o.ID, p.PaymentNumber)
	assert.Equal(t, model.PaymentPending, p.Status)
	require.NotNil(t, p.ExpiresAt)

	require.Len(t, f.gateway.createCalls, 1)
	assert.Equal(t, o.Total, f.gateway.createCalls[0].Amount)
	assert.Equal(t, model.OrderAwaitingPayment, orderStatus(t, f.store, o.ID))
	assert.Len(t, f.store.Payments(), 1)
}

func TestService_Create_ReturnsExistingPending(t *testing.T) {
	f := newTestPaymentService(t, Config{})
	o := f.placeOrder(t)

	first, err := f.svc.Create(context.Background(), o.ID, "qris")
	require.NoError(t, err)
	second, err := f.svc.Create(context.Background(), o.ID, "bni_va")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.gateway.createCalls, 1)
	assert.Len(t, f.store.Payments(), 1)
}

func TestService_Create_Rejections(t *testing.T) {
	f := newTestPaymentService(t, Config{})
	o := f.placeOrder(t)

	_, err := f.svc.Create(context.Background(), o.ID, "cash")
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	_, err = f.svc.Create(context.Background(), "INV-MISSING", "qris")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	_, err = f.orders.Cancel(context.Background(), o.ID)
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), o.ID, "qris")
	assert.ErrorIs(t, err, apperr.ErrBadRequest)

	assert.Empty(t, f.gateway.createCalls)
}

func TestService_Create_GatewayFailure(t *testing.T) {
	f := newTestPaymentService(t, Config{})
	o := f.placeOrder(t)
	f.gateway.createErr = &pakasir.APIError{StatusCode: 502, Body: "bad gateway"}

	_, err := f.svc.Create(context.Background(), o.ID, "qris")

	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, model.OrderPending, orderStatus(t, f.store, o.ID))
	assert.Empty(t, f.store.Payments())
}

// ============================================
// CheckStatus Tests
// ============================================

func TestService_CheckStatus_PaidCompletesOrder(t *testing.T) {
	f := newTestPaymentService(t, Config{})
	o := f.placeOrder(t)
	p, err := f.svc.Create(context.Background(), o.ID, "qris")
	require.NoError(t, err)
	f.gateway.detail = &pakasir.TransactionDetail{OrderID: o.ID, Status: "paid", Amount: o.Total}

	got, err := f.svc.CheckStatus(context.Background(), p.ID)

	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, got.Status)
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, fixedNow, *got.PaidAt)
	assert.Equal(t, model.OrderCompleted, orderStatus(t, f.store, o.ID))
	assert.Equal(t, 1, f.store.CountStock("p1", model.StockSold))
}

func TestService_CheckStatus_TerminalSkipsGateway(t *testing.T) {
	f := newTestPaymentService(t, Config{})
	o := f.placeOrder(t)
	p, err := f.svc.Create(context.Background(), o.ID, "qris")
	require.NoError(t, err)
	f.gateway.detail = &pakasir.TransactionDetail{OrderID: o.ID, Status: "paid"}
	_, err = f.svc.CheckStatus(context.Background(), p.ID)
	require.NoError(t, err)

	got, err := f.svc.CheckStatus(context.Background(), p.ID)

	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, got.Status)
	assert.Len(t, f.gateway.detailCalls, 1)
}

func TestService_CheckStatus_GatewayErrorReturnsStored(t *testing.T) {
	f := newTestPaymentService(t, Config{})
	o := f.placeOrder(t)
	p, err := f.svc.Create(context.Background(), o.ID, "qris")
	require.NoError(t, err)
	f.gateway.detailErr = errors.New("timeout")

	got, err := f.svc.CheckStatus(context.Background(), p.ID)

	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, got.Status)
	assert.Equal(t, model.OrderAwaitingPayment, orderStatus(t, f.store, o.ID))
}

func TestService_CheckStatus_Expired(t *testing.T) {
	f := newTestPaymentService(t, Config{})
	o := f.placeOrder(t)
	p, err := f.svc.Create(context.Background(), o.ID, "qris")
	require.NoError(t, err)
	f.gateway.detail = &pakasir.TransactionDetail{OrderID: o.ID, Status: "expired"}

	got, err := f.svc.CheckStatusByOrder(context.Background(), o.ID)

	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, model.PaymentExpired, got.Status)
	assert.Nil(t, got.PaidAt)
	assert.Equal(t, model.OrderAwaitingPayment, orderStatus(t, f.store, o.ID))
}

func TestService_CheckStatus_NotFound(t *testing.T) {
	f := newTestPaymentService(t, Config{})

	_, err := f.svc.CheckStatus(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

// ============================================
// Webhook Tests
// ============================================

func TestService_HandleWebhook_Paid(t *testing.T) {
	f := newTestPaymentService(t, Config{})
	o := f.placeOrder(t)
	_, err := f.svc.Create(context.Background(), o.ID, "qris")
	require.NoError(t, err)
	raw := []byte(`{"order_id":"` + o.ID + `","status":"paid"}`)

	p, err := f.svc.HandleWebhook(context.Background(), pakasir.WebhookPayload{OrderID: o.ID, Status: "paid", Amount: o.Total}, raw)

	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, p.Status)
	assert.JSONEq(t, string(raw), string(f.store.Payments()[0].WebhookData))
	assert.Equal(t, model.OrderCompleted, orderStatus(t, f.store, o.ID))
}

func TestService_HandleWebhook_Duplicate(t *testing.T) {
	f := newTestPaymentService(t, Config{})
	o := f.placeOrder(t)
	_, err := f.svc.Create(context.Background(), o.ID, "qris")
	require.NoError(t, err)
	payload := pakasir.WebhookPayload{OrderID: o.ID, Status: "paid"}

	_, err = f.svc.HandleWebhook(context.Background(), payload, nil)
	require.NoError(t, err)
	_, err = f.svc.HandleWebhook(context.Background(), payload, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, f.store.CountStock("p1", model.StockSold))
	assert.Equal(t, 1, f.store.Product("p1").SoldCount)
}

func TestService_HandleWebhook_LateStatusKeepsCompletedPayment(t *testing.T) {
	f := newTestPaymentService(t, Config{})
	o := f.placeOrder(t)
	_, err := f.svc.Create(context.Background(), o.ID, "qris")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.svc.HandleWebhook(ctx, pakasir.WebhookPayload{OrderID: o.ID, Status: "paid"}, nil)
	require.NoError(t, err)
	late := []byte(`{"order_id":"` + o.ID + `","status":"expired"}`)
	p, err := f.svc.HandleWebhook(ctx, pakasir.WebhookPayload{OrderID: o.ID, Status: "expired"}, late)

	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, p.Status)
	stored := f.store.Payments()[0]
	assert.Equal(t, model.PaymentCompleted, stored.Status)
	assert.NotNil(t, stored.PaidAt)
	assert.Empty(t, stored.WebhookData)
	assert.Equal(t, model.OrderCompleted, orderStatus(t, f.store, o.ID))
}

func TestService_HandleWebhook_Rejections(t *testing.T) {
	f := newTestPaymentService(t, Config{})
	o := f.placeOrder(t)
	_, err := f.svc.Create(context.Background(), o.ID, "qris")
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload pakasir.WebhookPayload
		wantErr error
	}{
		{"missing order id", pakasir.WebhookPayload{Status: "paid"}, ErrInvalidPayload},
		{"missing status", pakasir.WebhookPayload{OrderID: o.ID}, ErrInvalidPayload},
		{"unknown status", pakasir.WebhookPayload{OrderID: o.ID, Status: "refunding"}, ErrUnknownStatus},
		{"unknown payment", pakasir.WebhookPayload{OrderID: "INV-OTHER", Status: "paid"}, ErrPaymentNotFound},
		{"amount mismatch", pakasir.WebhookPayload{OrderID: o.ID, Status: "paid", Amount: 1}, ErrAmountMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.HandleWebhook(context.Background(), tt.payload, nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, model.OrderAwaitingPayment, orderStatus(t, f.store, o.ID))
}

func TestService_HandleWebhook_OrderFailurePropagates(t *testing.T) {
	f := newTestPaymentService(t, Config{})
	o := f.placeOrder(t)
	_, err := f.svc.Create(context.Background(), o.ID, "qris")
	require.NoError(t, err)
	_, err = f.orders.Cancel(context.Background(), o.ID)
	require.NoError(t, err)

	_, err = f.svc.HandleWebhook(context.Background(), pakasir.WebhookPayload{OrderID: o.ID, Status: "paid"}, nil)

	assert.ErrorIs(t, err, order.ErrOrderCancelled)
}

// ============================================
// Simulate Tests
// ============================================

func TestService_Simulate(t *testing.T) {
	f := newTestPaymentService(t, Config{SandboxMode: true})
	o := f.placeOrder(t)
	_, err := f.svc.Create(context.Background(), o.ID, "qris")
	require.NoError(t, err)

	require.NoError(t, f.svc.Simulate(context.Background(), o.ID))
	assert.Equal(t, []string{o.ID}, f.gateway.simulateCalls)

	err = f.svc.Simulate(context.Background(), "INV-MISSING")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestService_Simulate_ProductionRejected(t *testing.T) {
	f := newTestPaymentService(t, Config{SandboxMode: false})

	err := f.svc.Simulate(context.Background(), "INV-1")

	assert.ErrorIs(t, err, ErrSandboxOnly)
	assert.Empty(t, f.gateway.simulateCalls)
}
