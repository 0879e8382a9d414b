package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weddify/binks/internal/apperr"
	"github.com/weddify/binks/internal/infrastructure/store"
	"github.com/weddify/binks/internal/infrastructure/store/mocks"
	"github.com/weddify/binks/internal/model"
)

func newTestStore() *mocks.MemoryStore {
	st := mocks.NewMemoryStore()
	st.AddProduct(model.Product{ID: "p1", Slug: "netflix-1m", Title: "Netflix 1 Month", Price: 50000, IsActive: true})
	st.AddProduct(model.Product{ID: "p2", Slug: "spotify-1m", Title: "Spotify 1 Month", Price: 25000, IsActive: true})
	return st
}

func inTx(t *testing.T, st *mocks.MemoryStore, fn func(l *Ledger) error) error {
	t.Helper()
	return st.WithTx(context.Background(), func(tx store.Tx) error {
		return fn(NewLedger(tx))
	})
}

func assertCounterMatches(t *testing.T, st *mocks.MemoryStore, productID string) {
	t.Helper()
	assert.Equal(t, st.CountStock(productID, model.StockAvailable), st.Product(productID).StockCount)
}

// ============================================
// Reserve Tests
// ============================================

func TestLedger_Reserve_Exact(t *testing.T) {
	st := newTestStore()
	st.AddStock("p1", 3)

	var reserved []model.StockItem
	err := inTx(t, st, func(l *Ledger) error {
		var err error
		reserved, err = l.ReserveFor(context.Background(), "p1", "item-1", 2)
		return err
	})

	require.NoError(t, err)
	assert.Len(t, reserved, 2)
	for _, it := range reserved {
		assert.Equal(t, model.StockReserved, it.Status)
		assert.Equal(t, "item-1", it.OrderItemID)
		assert.NotNil(t, it.ReservedAt)
	}
	assert.Equal(t, 1, st.Product("p1").StockCount)
	assertCounterMatches(t, st, "p1")
}

func TestLedger_Reserve_InsertionOrder(t *testing.T) {
	st := newTestStore()
	ids := st.AddStock("p1", 3)

	var reserved []model.StockItem
	err := inTx(t, st, func(l *Ledger) error {
		var err error
		reserved, err = l.Reserve(context.Background(), "p1", 2)
		return err
	})

	require.NoError(t, err)
	require.Len(t, reserved, 2)
	assert.Equal(t, ids[0], reserved[0].ID)
	assert.Equal(t, ids[1], reserved[1].ID)
}

func TestLedger_Reserve_InsufficientLeavesNothingReserved(t *testing.T) {
	st := newTestStore()
	st.AddStock("p1", 1)

	// The ledger must undo its own partial pick, even before the
	// surrounding unit of work rolls back.
	var reservedInside int
	err := inTx(t, st, func(l *Ledger) error {
		_, err := l.Reserve(context.Background(), "p1", 2)
		n, _ := l.tx.CountStock(context.Background(), "p1", model.StockReserved)
		reservedInside = n
		return err
	})

	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, 0, reservedInside)
	assert.Equal(t, 1, st.CountStock("p1", model.StockAvailable))
	assert.Equal(t, 1, st.Product("p1").StockCount)
}

func TestLedger_Reserve_InvalidQuantity(t *testing.T) {
	st := newTestStore()

	for _, qty := range []int{0, -1} {
		err := inTx(t, st, func(l *Ledger) error {
			_, err := l.Reserve(context.Background(), "p1", qty)
			return err
		})
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
}

func TestLedger_Reserve_DoesNotTouchOtherProducts(t *testing.T) {
	st := newTestStore()
	st.AddStock("p1", 2)
	st.AddStock("p2", 2)

	err := inTx(t, st, func(l *Ledger) error {
		_, err := l.Reserve(context.Background(), "p1", 2)
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 0, st.Product("p1").StockCount)
	assert.Equal(t, 2, st.Product("p2").StockCount)
}

func TestLedger_Reserve_UnknownProduct(t *testing.T) {
	st := newTestStore()

	err := inTx(t, st, func(l *Ledger) error {
		_, err := l.Reserve(context.Background(), "missing", 1)
		return err
	})

	assert.ErrorIs(t, err, ErrProductNotFound)
}

// ============================================
// Product Lock Tests
// ============================================

func TestLedger_MutationsLockProductBeforeRecount(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, st *mocks.MemoryStore) string
		run   func(ctx context.Context, l *Ledger, stockID string) error
	}{
		{
			name: "reserve",
			run: func(ctx context.Context, l *Ledger, _ string) error {
				_, err := l.ReserveFor(ctx, "p1", "item-1", 1)
				return err
			},
		},
		{
			name: "release",
			setup: func(t *testing.T, st *mocks.MemoryStore) string {
				require.NoError(t, inTx(t, st, func(l *Ledger) error {
					_, err := l.ReserveFor(context.Background(), "p1", "item-1", 2)
					return err
				}))
				return ""
			},
			run: func(ctx context.Context, l *Ledger, _ string) error {
				_, err := l.ReleaseReserved(ctx, "item-1")
				return err
			},
		},
		{
			name: "bulk add",
			run: func(ctx context.Context, l *Ledger, _ string) error {
				_, err := l.BulkAdd(ctx, "p1", []map[string]string{{"email": "new@example.com"}})
				return err
			},
		},
		{
			name: "remove",
			setup: func(t *testing.T, st *mocks.MemoryStore) string {
				return st.StockItems("p1")[0].ID
			},
			run: func(ctx context.Context, l *Ledger, stockID string) error {
				return l.Remove(ctx, stockID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore()
			st.AddStock("p1", 3)
			var stockID string
			if tt.setup != nil {
				stockID = tt.setup(t, st)
			}
			st.ProductLocks = nil

			err := inTx(t, st, func(l *Ledger) error {
				return tt.run(context.Background(), l, stockID)
			})

			require.NoError(t, err)
			assert.Equal(t, []string{"p1"}, st.ProductLocks)
			assertCounterMatches(t, st, "p1")
		})
	}
}

// ============================================
// AssignToOrder Tests
// ============================================

func TestLedger_AssignToOrder(t *testing.T) {
	st := newTestStore()
	st.AddStock("p1", 2)

	err := inTx(t, st, func(l *Ledger) error {
		ctx := context.Background()
		reserved, err := l.ReserveFor(ctx, "p1", "item-1", 2)
		if err != nil {
			return err
		}
		return l.AssignToOrder(ctx, ids(reserved), "item-1", "buyer@example.com")
	})

	require.NoError(t, err)
	for _, it := range st.StockItems("p1") {
		assert.Equal(t, model.StockSold, it.Status)
		assert.Equal(t, "item-1", it.OrderItemID)
		assert.Equal(t, "buyer@example.com", it.BuyerEmail)
		assert.NotNil(t, it.SoldAt)
		assert.Nil(t, it.ReservedAt)
	}
	assert.Equal(t, 0, st.Product("p1").StockCount)
}

func TestLedger_AssignToOrder_RejectsAvailableItems(t *testing.T) {
	st := newTestStore()
	ids := st.AddStock("p1", 1)

	err := inTx(t, st, func(l *Ledger) error {
		return l.AssignToOrder(context.Background(), ids, "item-1", "buyer@example.com")
	})

	assert.ErrorIs(t, err, ErrStockNotReserved)
	assert.Equal(t, model.StockAvailable, st.StockItems("p1")[0].Status)
}

// ============================================
// ReleaseReserved Tests
// ============================================

func TestLedger_ReleaseReserved(t *testing.T) {
	st := newTestStore()
	st.AddStock("p1", 3)

	var released int
	err := inTx(t, st, func(l *Ledger) error {
		ctx := context.Background()
		if _, err := l.ReserveFor(ctx, "p1", "item-1", 2); err != nil {
			return err
		}
		var err error
		released, err = l.ReleaseReserved(ctx, "item-1")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 2, released)
	assert.Equal(t, 3, st.Product("p1").StockCount)
	for _, it := range st.StockItems("p1") {
		assert.Equal(t, model.StockAvailable, it.Status)
		assert.Empty(t, it.OrderItemID)
		assert.Empty(t, it.BuyerEmail)
		assert.Nil(t, it.ReservedAt)
		assert.Nil(t, it.SoldAt)
	}
}

func TestLedger_ReleaseReserved_NoOp(t *testing.T) {
	st := newTestStore()
	st.AddStock("p1", 1)

	var released int
	err := inTx(t, st, func(l *Ledger) error {
		var err error
		released, err = l.ReleaseReserved(context.Background(), "unknown-item")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 0, released)
	assert.Equal(t, 1, st.Product("p1").StockCount)
}

func TestLedger_ReleaseReserved_KeepsSoldItems(t *testing.T) {
	st := newTestStore()
	st.AddStock("p1", 2)

	err := inTx(t, st, func(l *Ledger) error {
		ctx := context.Background()
		reserved, err := l.ReserveFor(ctx, "p1", "item-1", 2)
		if err != nil {
			return err
		}
		if err := l.AssignToOrder(ctx, ids(reserved[:1]), "item-1", "buyer@example.com"); err != nil {
			return err
		}
		_, err = l.ReleaseReserved(ctx, "item-1")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 1, st.CountStock("p1", model.StockSold))
	assert.Equal(t, 1, st.CountStock("p1", model.StockAvailable))
	assertCounterMatches(t, st, "p1")
}

// ============================================
// BulkAdd / Remove Tests
// ============================================

func TestLedger_BulkAdd(t *testing.T) {
	st := newTestStore()

	err := inTx(t, st, func(l *Ledger) error {
		_, err := l.BulkAdd(context.Background(), "p1", []map[string]string{
			{"email": "a@example.com", "password": "x"},
			{"email": "b@example.com", "password": "y"},
		})
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 2, st.Product("p1").StockCount)
	assertCounterMatches(t, st, "p1")
}

func TestLedger_BulkAdd_Validation(t *testing.T) {
	tests := []struct {
		name      string
		productID string
		creds     []map[string]string
		wantErr   error
	}{
		{"empty list", "p1", nil, ErrNoCredentials},
		{"unknown product", "missing", []map[string]string{{"k": "v"}}, ErrProductNotFound},
		{"empty record", "p1", []map[string]string{{}}, apperr.ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore()
			err := inTx(t, st, func(l *Ledger) error {
				_, err := l.BulkAdd(context.Background(), tt.productID, tt.creds)
				return err
			})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, st.Product("p1").StockCount)
		})
	}
}

func TestService_Remove(t *testing.T) {
	st := newTestStore()
	ids := st.AddStock("p1", 2)
	svc := NewService(st)

	require.NoError(t, svc.Remove(context.Background(), ids[0]))

	assert.Equal(t, 1, st.Product("p1").StockCount)
	assertCounterMatches(t, st, "p1")
}

func TestService_Remove_ReservedItem(t *testing.T) {
	st := newTestStore()
	ids := st.AddStock("p1", 1)
	require.NoError(t, inTx(t, st, func(l *Ledger) error {
		_, err := l.Reserve(context.Background(), "p1", 1)
		return err
	}))

	err := NewService(st).Remove(context.Background(), ids[0])

	assert.ErrorIs(t, err, ErrStockInUse)
	assert.Equal(t, model.StockReserved, st.StockItems("p1")[0].Status)
}

func TestService_Remove_NotFound(t *testing.T) {
	err := NewService(newTestStore()).Remove(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrStockNotFound))
}

func TestService_ListByProductAndCount(t *testing.T) {
	st := newTestStore()
	st.AddStock("p1", 5)
	svc := NewService(st)
	ctx := context.Background()

	items, err := svc.ListByProduct(ctx, "p1", model.StockAvailable, 2, 1)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	n, err := svc.Count(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}
