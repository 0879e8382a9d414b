package stock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/weddify/binks/internal/apperr"
	"github.com/weddify/binks/internal/infrastructure/store"
	"github.com/weddify/binks/internal/model"
)

var (
	ErrInvalidQuantity  = apperr.BadRequest("quantity must be positive")
	ErrNoCredentials    = apperr.BadRequest("at least one credential record is required")
	ErrProductNotFound  = apperr.NotFound("product")
	ErrStockNotFound    = apperr.NotFound("stock item")
	ErrStockNotReserved = apperr.BadRequest("stock item is not reserved")
	ErrStockInUse       = apperr.BadRequest("only available stock can be removed")
)

// Ledger tracks individual credential records through
// available -> reserved -> sold. It works inside the caller's unit of work,
// and every mutation refreshes the product's cached stock counter in it.
// Mutations lock the product row first so concurrent recounts of the same
// product run one after another.
type Ledger struct {
	tx  store.Tx
	now func() time.Time
}

func NewLedger(tx store.Tx) *Ledger {
	return &Ledger{tx: tx, now: time.Now}
}

// WithClock overrides the ledger clock.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Reserve holds quantity available items of a product that are not yet tied
// to an order item.
func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int) ([]model.StockItem, error) {
	return l.ReserveFor(ctx, productID, "", quantity)
}

// ReserveFor holds exactly quantity available items for orderItemID. When
// fewer are available nothing stays reserved and InsufficientStock is returned.
func (l *Ledger) ReserveFor(ctx context.Context, productID, orderItemID string, quantity int) ([]model.StockItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if err := l.lock(ctx, productID); err != nil {
		return nil, err
	}

	items, err := l.tx.ReserveAvailable(ctx, productID, orderItemID, quantity, l.now())
	if err != nil {
		return nil, fmt.Errorf("reserve stock: %w", err)
	}

	if len(items) < quantity {
		if len(items) > 0 {
			if err := l.tx.ReleaseStockItems(ctx, ids(items), l.now()); err != nil {
				return nil, fmt.Errorf("undo partial reservation: %w", err)
			}
		}
		log.Printf("[Stock] Insufficient stock for product %s: wanted %d, got %d", productID, quantity, len(items))
		return nil, apperr.InsufficientStock(productID)
	}

	if err := l.recount(ctx, productID); err != nil {
		return nil, err
	}
	return items, nil
}

// AssignToOrder sells reserved items to the buyer of an order item.
func (l *Ledger) AssignToOrder(ctx context.Context, stockItemIDs []string, orderItemID, buyerEmail string) error {
	if len(stockItemIDs) == 0 {
		return nil
	}

	n, err := l.tx.MarkStockSold(ctx, stockItemIDs, orderItemID, buyerEmail, l.now())
	if err != nil {
		return fmt.Errorf("assign stock: %w", err)
	}
	if n != len(stockItemIDs) {
		return ErrStockNotReserved
	}
	return nil
}

// ReleaseReserved returns the reserved items of an order item to available.
// Releasing an order item without reservations is a no-op.
func (l *Ledger) ReleaseReserved(ctx context.Context, orderItemID string) (int, error) {
	held, err := l.tx.ListStockByOrderItem(ctx, orderItemID, model.StockReserved)
	if err != nil {
		return 0, fmt.Errorf("list reserved stock: %w", err)
	}
	if len(held) == 0 {
		return 0, nil
	}

	var products []string
	seen := make(map[string]bool)
	for _, it := range held {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			products = append(products, it.ProductID)
		}
	}
	sort.Strings(products)
	for _, productID := range products {
		if err := l.lock(ctx, productID); err != nil {
			return 0, err
		}
	}

	n, err := l.tx.ReleaseStock(ctx, orderItemID, l.now())
	if err != nil {
		return 0, fmt.Errorf("release stock: %w", err)
	}

	for _, productID := range products {
		if err := l.recount(ctx, productID); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// BulkAdd appends available credential records to a product.
func (l *Ledger) BulkAdd(ctx context.Context, productID string, credentials []map[string]string) ([]model.StockItem, error) {
	if len(credentials) == 0 {
		return nil, ErrNoCredentials
	}
	if err := l.lock(ctx, productID); err != nil {
		return nil, err
	}

	now := l.now()
	items := make([]model.StockItem, len(credentials))
	for i, creds := range credentials {
		if len(creds) == 0 {
			return nil, apperr.BadRequest(fmt.Sprintf("credential record %d is empty", i+1))
		}
		items[i] = model.StockItem{
			ID:          uuid.New().String(),
			ProductID:   productID,
			Credentials: creds,
			Status:      model.StockAvailable,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	if err := l.tx.InsertStockItems(ctx, items); err != nil {
		return nil, fmt.Errorf("insert stock: %w", err)
	}
	if err := l.recount(ctx, productID); err != nil {
		return nil, err
	}

	log.Printf("[Stock] Added %d items to product %s", len(items), productID)
	return items, nil
}

// Remove deletes an available item.
func (l *Ledger) Remove(ctx context.Context, stockItemID string) error {
	item, err := l.tx.GetStockItem(ctx, stockItemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrStockNotFound
		}
		return err
	}
	if err := l.lock(ctx, item.ProductID); err != nil {
		return err
	}

	deleted, err := l.tx.DeleteStockItem(ctx, stockItemID)
	if err != nil {
		return fmt.Errorf("delete stock: %w", err)
	}
	if !deleted {
		return ErrStockInUse
	}
	return l.recount(ctx, item.ProductID)
}

// recount sets the product's cached counter to its live available count.
func (l *Ledger) recount(ctx context.Context, productID string) error {
	n, err := l.tx.CountStock(ctx, productID, model.StockAvailable)
	if err != nil {
		return fmt.Errorf("count stock: %w", err)
	}
	if err := l.tx.SetStockCount(ctx, productID, n); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("update stock count: %w", err)
	}
	return nil
}

func (l *Ledger) lock(ctx context.Context, productID string) error {
	if err := l.tx.LockProduct(ctx, productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("lock product: %w", err)
	}
	return nil
}

func ids(items []model.StockItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
