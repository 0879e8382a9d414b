package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/weddify/binks/internal/model"
)

const orderColumns = `id, user_id, buyer_name, buyer_email, buyer_phone, subtotal, discount, service_fee,
	unique_code, total, coupon_id, coupon_code, status, notes, expires_at, completed_at, created_at, updated_at`

const orderItemColumns = `id, order_id, product_id, product_title, product_image, unit_price, quantity,
	total_price, delivery_status, created_at, updated_at`

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		o           model.Order
		userID      sql.NullString
		couponID    sql.NullString
		couponCode  sql.NullString
		completedAt sql.NullTime
	)
	err := row.Scan(&o.ID, &userID, &o.BuyerName, &o.BuyerEmail, &o.BuyerPhone, &o.Subtotal, &o.Discount,
		&o.ServiceFee, &o.UniqueCode, &o.Total, &couponID, &couponCode, &o.Status, &o.Notes,
		&o.ExpiresAt, &completedAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.UserID = userID.String
	o.CouponID = couponID.String
	o.CouponCode = couponCode.String
	o.CompletedAt = timePtr(completedAt)
	return &o, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *model.Order) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, buyer_name, buyer_email, buyer_phone, subtotal, discount,
		                     service_fee, unique_code, total, coupon_id, coupon_code, status, notes,
		                     expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)`,
		o.ID, nullString(o.UserID), o.BuyerName, o.BuyerEmail, o.BuyerPhone, o.Subtotal, o.Discount,
		o.ServiceFee, o.UniqueCode, o.Total, nullString(o.CouponID), nullString(o.CouponCode),
		o.Status, o.Notes, o.ExpiresAt, o.CreatedAt)
	if err != nil {
		return mapErr(err)
	}

	for _, item := range o.Items {
		_, err := t.q.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, product_title, product_image, unit_price,
			                          quantity, total_price, delivery_status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
			item.ID, o.ID, item.ProductID, item.ProductTitle, item.ProductImage, item.UnitPrice,
			item.Quantity, item.TotalPrice, item.DeliveryStatus, item.CreatedAt)
		if err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (t *pgTx) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return t.loadOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (t *pgTx) LockOrder(ctx context.Context, id string) (*model.Order, error) {
	return t.loadOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) loadOrder(ctx context.Context, query, id string) (*model.Order, error) {
	o, err := scanOrder(t.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err)
	}

	rows, err := t.q.QueryContext(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductTitle, &item.ProductImage,
			&item.UnitPrice, &item.Quantity, &item.TotalPrice, &item.DeliveryStatus,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

func (t *pgTx) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	var total int
	err := t.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)`,
		f.UserID, string(f.Status)).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := t.q.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		  WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)
		  ORDER BY created_at DESC
		  LIMIT $3 OFFSET $4`,
		f.UserID, string(f.Status), limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	return orders, total, rows.Err()
}

func (t *pgTx) UpdateOrderStatus(ctx context.Context, id string, to model.OrderStatus, from []model.OrderStatus, at time.Time) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`UPDATE orders
		    SET status = $2,
		        completed_at = CASE WHEN $2 = 'completed' THEN $3 ELSE completed_at END,
		        updated_at = $3
		  WHERE id = $1 AND (cardinality($4::text[]) = 0 OR status = ANY($4))`,
		id, string(to), at, pq.Array(statusStrings(from)))
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (t *pgTx) UpdateDeliveryStatus(ctx context.Context, orderItemID string, status model.DeliveryStatus, at time.Time) error {
	return t.execOne(ctx,
		`UPDATE order_items SET delivery_status = $2, updated_at = $3 WHERE id = $1`,
		orderItemID, string(status), at)
}

func (t *pgTx) ListExpiredOrderIDs(ctx context.Context, now time.Time, statuses []model.OrderStatus) ([]string, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT id FROM orders WHERE status = ANY($1) AND expires_at < $2 ORDER BY expires_at`,
		pq.Array(statusStrings(statuses)), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
