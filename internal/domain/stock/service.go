package stock

import (
	"context"

	"github.com/weddify/binks/internal/infrastructure/store"
	"github.com/weddify/binks/internal/model"
)

// Service exposes the ledger to admin callers, one unit of work per call.
type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

func (s *Service) BulkAdd(ctx context.Context, productID string, credentials []map[string]string) ([]model.StockItem, error) {
	var items []model.StockItem
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		items, err = NewLedger(tx).BulkAdd(ctx, productID, credentials)
		return err
	})
	return items, err
}

func (s *Service) Remove(ctx context.Context, stockItemID string) error {
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		return NewLedger(tx).Remove(ctx, stockItemID)
	})
}

func (s *Service) ListByProduct(ctx context.Context, productID string, status model.StockStatus, limit, offset int) ([]model.StockItem, error) {
	var items []model.StockItem
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		items, err = tx.ListStock(ctx, productID, status, limit, offset)
		return err
	})
	return items, err
}

// Count returns the live number of available items.
func (s *Service) Count(ctx context.Context, productID string) (int, error) {
	var n int
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		n, err = tx.CountStock(ctx, productID, model.StockAvailable)
		return err
	})
	return n, err
}
