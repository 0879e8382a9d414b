package order

import (
	"time"

	"github.com/weddify/binks/internal/model"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderCompleted = "OrderCompleted"
	EventOrderCancelled = "OrderCancelled"
	EventOrderExpired   = "OrderExpired"
)

type ItemSummary struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type OrderCreated struct {
	OrderID    string        `json:"order_id"`
	UserID     string        `json:"user_id,omitempty"`
	BuyerEmail string        `json:"buyer_email"`
	Items      []ItemSummary `json:"items"`
	Discount   int64         `json:"discount"`
	Total      int64         `json:"total"`
	ExpiresAt  time.Time     `json:"expires_at"`
}

type OrderCompleted struct {
	OrderID     string    `json:"order_id"`
	BuyerEmail  string    `json:"buyer_email"`
	Total       int64     `json:"total"`
	CompletedAt time.Time `json:"completed_at"`
}

// OrderCancelled is published for both cancellation and expiry.
type OrderCancelled struct {
	OrderID     string            `json:"order_id"`
	Status      model.OrderStatus `json:"status"`
	Released    int               `json:"released"`
	CancelledAt time.Time         `json:"cancelled_at"`
}

func summarize(items []model.OrderItem) []ItemSummary {
	out := make([]ItemSummary, len(items))
	for i, it := range items {
		out[i] = ItemSummary{
			ProductID: it.ProductID,
			Title:     it.ProductTitle,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	return out
}
