package mocks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weddify/binks/internal/infrastructure/store"
	"github.com/weddify/binks/internal/model"
)

var errRollback = errors.New("rollback")

func ptr[T any](v T) *T { return &v }

func newSeededStore() *MemoryStore {
	st := NewMemoryStore()
	st.AddProduct(model.Product{ID: "p1", Slug: "netflix-1m", Title: "Netflix 1 Month", Price: 50000, IsActive: true})
	st.AddStock("p1", 1)
	st.AddCoupon(model.Coupon{
		ID: "c1", Code: "HEMAT", Type: model.CouponPercentage, Value: 10,
		MaxDiscount: ptr[int64](20000), IsActive: true,
	})
	return st
}

// ============================================
// Rollback Tests
// ============================================

func TestMemoryStore_RollbackDiscardsInPlaceMutations(t *testing.T) {
	st := newSeededStore()
	ctx := context.Background()
	stockID := st.StockItems("p1")[0].ID

	err := st.WithTx(ctx, func(tx store.Tx) error {
		it, err := tx.GetStockItem(ctx, stockID)
		require.NoError(t, err)
		it.Credentials["password"] = "changed"

		reserved, err := tx.ReserveAvailable(ctx, "p1", "item-1", 1, time.Now())
		require.NoError(t, err)
		reserved[0].Credentials["email"] = "changed@example.com"

		c, err := tx.GetCoupon(ctx, "c1")
		require.NoError(t, err)
		*c.MaxDiscount = 1
		return errRollback
	})

	require.ErrorIs(t, err, errRollback)
	committed := st.StockItems("p1")[0]
	assert.Equal(t, "secret", committed.Credentials["password"])
	assert.Equal(t, "acc1@example.com", committed.Credentials["email"])
	assert.Equal(t, model.StockAvailable, committed.Status)
	assert.Equal(t, int64(20000), *st.Coupon("c1").MaxDiscount)
}

func TestMemoryStore_InsertCopiesCallerValues(t *testing.T) {
	st := newSeededStore()
	ctx := context.Background()
	creds := map[string]string{"email": "a@example.com"}

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertStockItems(ctx, []model.StockItem{{
			ID: "s-new", ProductID: "p1", Credentials: creds, Status: model.StockAvailable,
		}})
	}))
	creds["email"] = "changed@example.com"

	items := st.StockItems("p1")
	require.Len(t, items, 2)
	assert.Equal(t, "a@example.com", items[1].Credentials["email"])
}

// ============================================
// Payment Tests
// ============================================

func TestMemoryStore_UpdatePaymentStatusKeepsTerminal(t *testing.T) {
	st := newSeededStore()
	ctx := context.Background()
	paidAt := time.Now()

	var first, second bool
	err := st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertPayment(ctx, &model.Payment{ID: "pay-1", OrderID: "INV-1", Status: model.PaymentPending}); err != nil {
			return err
		}
		var err error
		if first, err = tx.UpdatePaymentStatus(ctx, "pay-1", model.PaymentCompleted, &paidAt, nil, paidAt); err != nil {
			return err
		}
		second, err = tx.UpdatePaymentStatus(ctx, "pay-1", model.PaymentExpired, nil, nil, paidAt)
		return err
	})

	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)
	p := st.Payments()[0]
	assert.Equal(t, model.PaymentCompleted, p.Status)
	assert.NotNil(t, p.PaidAt)
}

// ============================================
// Product Lock Tests
// ============================================

func TestMemoryStore_SetStockCountRequiresLock(t *testing.T) {
	st := newSeededStore()
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx store.Tx) error {
		return tx.SetStockCount(ctx, "p1", 0)
	})
	assert.Error(t, err)
	assert.Equal(t, 1, st.Product("p1").StockCount)

	err = st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.LockProduct(ctx, "p1"); err != nil {
			return err
		}
		return tx.SetStockCount(ctx, "p1", 0)
	})
	require.NoError(t, err)
	assert.Equal(t, 0, st.Product("p1").StockCount)
	assert.Equal(t, []string{"p1"}, st.ProductLocks)
}

func TestMemoryStore_LockProductUnknown(t *testing.T) {
	st := newSeededStore()
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx store.Tx) error {
		return tx.LockProduct(ctx, "missing")
	})

	assert.ErrorIs(t, err, store.ErrNotFound)
}
