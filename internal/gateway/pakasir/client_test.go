package pakasir

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", ProjectSlug: "binks", APIKey: "key-123"}, srv.Client())
}

// ============================================
// Client Tests
// ============================================

func TestClient_CreateTransaction(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transactioncreate/qris", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("X-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"order_id":"INV-1","qr_string":"000201...","total":50500,"expired_at":"2026-03-10T13:00:00Z"}`))
	})

	tx, err := client.CreateTransaction(context.Background(), CreateRequest{OrderID: "INV-1", Amount: 50007, Method: "qris"})

	require.NoError(t, err)
	assert.Equal(t, "INV-1", tx.OrderID)
	assert.Equal(t, "000201...", tx.PaymentNumber())
	assert.Equal(t, int64(50500), tx.Total)
	assert.Equal(t, time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC), tx.ExpiredAt)

	assert.Equal(t, "binks", got["project"])
	assert.Equal(t, "INV-1", got["order_id"])
	assert.Equal(t, float64(50007), got["amount"])
	assert.Equal(t, "qris", got["method"])
}

func TestClient_CreateTransaction_VirtualAccount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"order_id":"INV-2","va_number":"8808123456","total":75000,"expired_at":"2026-03-10T13:00:00Z"}`))
	})

	tx, err := client.CreateTransaction(context.Background(), CreateRequest{OrderID: "INV-2", Amount: 75000, Method: "bni_va"})

	require.NoError(t, err)
	assert.Equal(t, "8808123456", tx.PaymentNumber())
}

func TestClient_CreateTransaction_UnknownMethod(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("gateway should not be called")
	})

	_, err := client.CreateTransaction(context.Background(), CreateRequest{OrderID: "INV-1", Amount: 1, Method: "cash"})

	assert.Error(t, err)
}

func TestClient_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid api key"}`))
	})

	_, err := client.CreateTransaction(context.Background(), CreateRequest{OrderID: "INV-1", Amount: 1, Method: "qris"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "invalid api key")
}

func TestClient_TransactionDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/transactiondetail", r.URL.Path)
		assert.Equal(t, "INV-1", r.URL.Query().Get("order_id"))
		assert.Equal(t, "binks", r.URL.Query().Get("project"))
		w.Write([]byte(`{"order_id":"INV-1","status":"paid","amount":50007,"payment_method":"qris","completed_at":"2026-03-10T12:05:00Z"}`))
	})

	detail, err := client.TransactionDetail(context.Background(), "INV-1")

	require.NoError(t, err)
	assert.Equal(t, StatusPaid, detail.Status)
	assert.Equal(t, int64(50007), detail.Amount)
	require.NotNil(t, detail.CompletedAt)
	assert.Equal(t, 5, detail.CompletedAt.Minute())
}

func TestClient_SimulatePayment(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/paymentsimulation", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "INV-1", body["order_id"])
		w.WriteHeader(http.StatusOK)
	})

	err := client.SimulatePayment(context.Background(), "INV-1")

	require.NoError(t, err)
	assert.True(t, called)
}

func TestClient_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.TransactionDetail(ctx, "INV-1")

	assert.ErrorIs(t, err, context.Canceled)
}

// ============================================
// Methods and Signature Tests
// ============================================

func TestMethods(t *testing.T) {
	assert.Len(t, Methods(), 9)
	assert.True(t, ValidMethod("permata_va"))
	assert.False(t, ValidMethod("gopay"))
	assert.Equal(t, "CIMB Niaga Virtual Account", MethodName("cimb_niaga_va"))
	assert.Equal(t, "gopay", MethodName("gopay"))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"order_id":"INV-1","status":"paid","amount":50007}`)
	sig := Sign("s3cret", body)

	tests := []struct {
		name   string
		secret string
		body   []byte
		header string
		want   bool
	}{
		{"valid", "s3cret", body, sig, true},
		{"valid with prefix", "s3cret", body, "sha256=" + sig, true},
		{"wrong secret", "other", body, sig, false},
		{"tampered body", "s3cret", []byte(`{"order_id":"INV-1","status":"paid","amount":1}`), sig, false},
		{"not hex", "s3cret", body, "zzzz", false},
		{"missing header", "s3cret", body, "", false},
		{"empty secret", "", body, sig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifySignature(tt.secret, tt.body, tt.header))
		})
	}
}
