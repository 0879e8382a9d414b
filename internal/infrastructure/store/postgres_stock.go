package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/weddify/binks/internal/model"
)

const stockColumns = `id, product_id, credentials, status, order_item_id, buyer_email, reserved_at, sold_at, created_at, updated_at`

func scanStockItem(row rowScanner) (*model.StockItem, error) {
	var (
		item        model.StockItem
		creds       []byte
		orderItemID sql.NullString
		buyerEmail  sql.NullString
		reservedAt  sql.NullTime
		soldAt      sql.NullTime
	)
	err := row.Scan(&item.ID, &item.ProductID, &creds, &item.Status, &orderItemID, &buyerEmail,
		&reservedAt, &soldAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(creds, &item.Credentials); err != nil {
		return nil, err
	}
	item.OrderItemID = orderItemID.String
	item.BuyerEmail = buyerEmail.String
	item.ReservedAt = timePtr(reservedAt)
	item.SoldAt = timePtr(soldAt)
	return &item, nil
}

func (t *pgTx) queryStock(ctx context.Context, query string, args ...any) ([]model.StockItem, error) {
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var items []model.StockItem
	for rows.Next() {
		item, err := scanStockItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (t *pgTx) InsertStockItems(ctx context.Context, items []model.StockItem) error {
	for _, item := range items {
		creds, err := json.Marshal(item.Credentials)
		if err != nil {
			return err
		}
		_, err = t.q.ExecContext(ctx,
			`INSERT INTO stock_items (id, product_id, credentials, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $5)`,
			item.ID, item.ProductID, string(creds), string(item.Status), item.CreatedAt)
		if err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (t *pgTx) GetStockItem(ctx context.Context, id string) (*model.StockItem, error) {
	item, err := scanStockItem(t.q.QueryRowContext(ctx,
		`SELECT `+stockColumns+` FROM stock_items WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return item, nil
}

func (t *pgTx) ReserveAvailable(ctx context.Context, productID, orderItemID string, limit int, at time.Time) ([]model.StockItem, error) {
	return t.queryStock(ctx,
		`UPDATE stock_items s
		    SET status = 'reserved', order_item_id = $3, reserved_at = $4, updated_at = $4
		   FROM (SELECT id FROM stock_items
		          WHERE product_id = $1 AND status = 'available'
		          ORDER BY created_at, id
		          LIMIT $2
		          FOR UPDATE SKIP LOCKED) picked
		  WHERE s.id = picked.id
		RETURNING s.id, s.product_id, s.credentials, s.status, s.order_item_id, s.buyer_email,
		          s.reserved_at, s.sold_at, s.created_at, s.updated_at`,
		productID, limit, nullString(orderItemID), at)
}

func (t *pgTx) ListStockByOrderItem(ctx context.Context, orderItemID string, status model.StockStatus) ([]model.StockItem, error) {
	return t.queryStock(ctx,
		`SELECT `+stockColumns+` FROM stock_items
		  WHERE order_item_id = $1 AND ($2 = '' OR status = $2)
		  ORDER BY created_at, id`,
		orderItemID, string(status))
}

func (t *pgTx) MarkStockSold(ctx context.Context, ids []string, orderItemID, buyerEmail string, at time.Time) (int, error) {
	res, err := t.q.ExecContext(ctx,
		`UPDATE stock_items
		    SET status = 'sold', order_item_id = $2, buyer_email = $3, sold_at = $4,
		        reserved_at = NULL, updated_at = $4
		  WHERE id = ANY($1) AND status = 'reserved'`,
		pq.Array(ids), orderItemID, buyerEmail, at)
	if err != nil {
		return 0, mapErr(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (t *pgTx) ReleaseStock(ctx context.Context, orderItemID string, at time.Time) (int, error) {
	res, err := t.q.ExecContext(ctx,
		`UPDATE stock_items
		    SET status = 'available', order_item_id = NULL, buyer_email = NULL,
		        reserved_at = NULL, sold_at = NULL, updated_at = $2
		  WHERE order_item_id = $1 AND status = 'reserved'`,
		orderItemID, at)
	if err != nil {
		return 0, mapErr(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (t *pgTx) ReleaseStockItems(ctx context.Context, ids []string, at time.Time) error {
	_, err := t.q.ExecContext(ctx,
		`UPDATE stock_items
		    SET status = 'available', order_item_id = NULL, buyer_email = NULL,
		        reserved_at = NULL, sold_at = NULL, updated_at = $2
		  WHERE id = ANY($1) AND status = 'reserved'`,
		pq.Array(ids), at)
	return mapErr(err)
}

func (t *pgTx) DeleteStockItem(ctx context.Context, id string) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`DELETE FROM stock_items WHERE id = $1 AND status = 'available'`, id)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	if _, err := t.GetStockItem(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (t *pgTx) ListStock(ctx context.Context, productID string, status model.StockStatus, limit, offset int) ([]model.StockItem, error) {
	if limit <= 0 {
		limit = 50
	}
	return t.queryStock(ctx,
		`SELECT `+stockColumns+` FROM stock_items
		  WHERE product_id = $1 AND ($2 = '' OR status = $2)
		  ORDER BY created_at, id
		  LIMIT $3 OFFSET $4`,
		productID, string(status), limit, offset)
}

func (t *pgTx) CountStock(ctx context.Context, productID string, status model.StockStatus) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stock_items WHERE product_id = $1 AND ($2 = '' OR status = $2)`,
		productID, string(status)).Scan(&n)
	return n, mapErr(err)
}
