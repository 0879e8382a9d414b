package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/weddify/binks/internal/model"
)

const paymentColumns = `id, order_id, gateway, gateway_order_id, method, method_name, amount, fee,
	total_amount, payment_number, status, expires_at, paid_at, webhook_data, created_at, updated_at`

func scanPayment(row rowScanner) (*model.Payment, error) {
	var (
		p         model.Payment
		number    sql.NullString
		expiresAt sql.NullTime
		paidAt    sql.NullTime
		webhook   []byte
	)
	err := row.Scan(&p.ID, &p.OrderID, &p.Gateway, &p.GatewayOrderID, &p.Method, &p.MethodName,
		&p.Amount, &p.Fee, &p.TotalAmount, &number, &p.Status, &expiresAt, &paidAt, &webhook,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.PaymentNumber = number.String
	p.ExpiresAt = timePtr(expiresAt)
	p.PaidAt = timePtr(paidAt)
	if len(webhook) > 0 {
		p.WebhookData = json.RawMessage(webhook)
	}
	return &p, nil
}

func (t *pgTx) InsertPayment(ctx context.Context, p *model.Payment) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO payments (id, order_id, gateway, gateway_order_id, method, method_name, amount, fee,
		                       total_amount, payment_number, status, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`,
		p.ID, p.OrderID, p.Gateway, p.GatewayOrderID, p.Method, p.MethodName, p.Amount, p.Fee,
		p.TotalAmount, nullString(p.PaymentNumber), string(p.Status), nullTime(p.ExpiresAt), p.CreatedAt)
	return mapErr(err)
}

func (t *pgTx) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	p, err := scanPayment(t.q.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func (t *pgTx) FindPayment(ctx context.Context, orderID string, status model.PaymentStatus) (*model.Payment, error) {
	p, err := scanPayment(t.q.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		  WHERE order_id = $1 AND ($2 = '' OR status = $2)
		  ORDER BY created_at DESC LIMIT 1`,
		orderID, string(status)))
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func (t *pgTx) GetPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Payment, error) {
	p, err := scanPayment(t.q.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		  WHERE gateway_order_id = $1
		  ORDER BY created_at DESC LIMIT 1`,
		gatewayOrderID))
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func (t *pgTx) UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus, paidAt *time.Time, webhook json.RawMessage, at time.Time) (bool, error) {
	var payload any
	if len(webhook) > 0 {
		payload = string(webhook)
	}
	terminal := make([]string, len(model.TerminalPaymentStatuses))
	for i, s := range model.TerminalPaymentStatuses {
		terminal[i] = string(s)
	}
	res, err := t.q.ExecContext(ctx,
		`UPDATE payments
		    SET status = $2, paid_at = $3, webhook_data = COALESCE($4::jsonb, webhook_data), updated_at = $5
		  WHERE id = $1 AND status <> ALL($6)`,
		id, string(status), nullTime(paidAt), payload, at, pq.Array(terminal))
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
