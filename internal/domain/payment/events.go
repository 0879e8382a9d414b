package payment

import "time"

const AggregateType = "Payment"

const EventPaymentCreated = "PaymentCreated"

type PaymentCreated struct {
	PaymentID     string     `json:"payment_id"`
	OrderID       string     `json:"order_id"`
	Method        string     `json:"method"`
	TotalAmount   int64      `json:"total_amount"`
	PaymentNumber string     `json:"payment_number,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}
