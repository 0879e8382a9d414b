package model

import (
	"encoding/json"
	"slices"
	"time"
)

// Product is a catalog entry. StockCount and SoldCount are cached counters
// derived from the stock ledger.
type Product struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Price       int64     `json:"price"`
	IsActive    bool      `json:"is_active"`
	StockCount  int       `json:"stock_count"`
	SoldCount   int       `json:"sold_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type StockStatus string

const (
	StockAvailable StockStatus = "available"
	StockReserved  StockStatus = "reserved"
	StockSold      StockStatus = "sold"
)

// StockItem is one redeemable credential set bound to a product.
type StockItem struct {
	ID          string            `json:"id"`
	ProductID   string            `json:"product_id"`
	Credentials map[string]string `json:"credentials"`
	Status      StockStatus       `json:"status"`
	OrderItemID string            `json:"order_item_id,omitempty"`
	BuyerEmail  string            `json:"buyer_email,omitempty"`
	ReservedAt  *time.Time        `json:"reserved_at,omitempty"`
	SoldAt      *time.Time        `json:"sold_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type OrderStatus string

const (
	OrderPending         OrderStatus = "pending"
	OrderAwaitingPayment OrderStatus = "awaiting_payment"
	OrderPaid            OrderStatus = "paid"
	OrderCompleted       OrderStatus = "completed"
	OrderCancelled       OrderStatus = "cancelled"
	OrderExpired         OrderStatus = "expired"
	OrderRefunded        OrderStatus = "refunded"
	OrderFailed          OrderStatus = "failed"
)

type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "pending"
	DeliveryProcessing DeliveryStatus = "processing"
	DeliveryDelivered  DeliveryStatus = "delivered"
	DeliveryFailed     DeliveryStatus = "failed"
)

// Order is one checkout. Total = Subtotal - Discount + ServiceFee + UniqueCode.
type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id,omitempty"`
	BuyerName   string      `json:"buyer_name,omitempty"`
	BuyerEmail  string      `json:"buyer_email"`
	BuyerPhone  string      `json:"buyer_phone,omitempty"`
	Subtotal    int64       `json:"subtotal"`
	Discount    int64       `json:"discount"`
	ServiceFee  int64       `json:"service_fee"`
	UniqueCode  int64       `json:"unique_code"`
	Total       int64       `json:"total"`
	CouponID    string      `json:"coupon_id,omitempty"`
	CouponCode  string      `json:"coupon_code,omitempty"`
	Status      OrderStatus `json:"status"`
	Notes       string      `json:"notes,omitempty"`
	ExpiresAt   time.Time   `json:"expires_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Items       []OrderItem `json:"items"`
}

// OrderItem snapshots the product at purchase time.
type OrderItem struct {
	ID             string         `json:"id"`
	OrderID        string         `json:"order_id"`
	ProductID      string         `json:"product_id"`
	ProductTitle   string         `json:"product_title"`
	ProductImage   string         `json:"product_image,omitempty"`
	UnitPrice      int64          `json:"unit_price"`
	Quantity       int            `json:"quantity"`
	TotalPrice     int64          `json:"total_price"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	StockItems     []StockItem    `json:"stock_items,omitempty"`
}

// OrderFilter narrows order listings. Zero values mean no filter.
type OrderFilter struct {
	UserID string
	Status OrderStatus
	Limit  int
	Offset int
}

type CouponType string

const (
	CouponPercentage CouponType = "PERCENTAGE"
	CouponFixed      CouponType = "FIXED"
)

// Coupon is a discount rule. Nil pointers mean "no limit".
type Coupon struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	Description  string     `json:"description,omitempty"`
	Type         CouponType `json:"type"`
	Value        int64      `json:"value"`
	MaxDiscount  *int64     `json:"max_discount,omitempty"`
	MinPurchase  *int64     `json:"min_purchase,omitempty"`
	UsageLimit   *int       `json:"usage_limit,omitempty"`
	UsageCount   int        `json:"usage_count"`
	UsagePerUser *int       `json:"usage_per_user,omitempty"`
	StartsAt     *time.Time `json:"starts_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CouponUsage records one redemption of a coupon by an order.
type CouponUsage struct {
	ID             string    `json:"id"`
	CouponID       string    `json:"coupon_id"`
	OrderID        string    `json:"order_id"`
	UserID         string    `json:"user_id,omitempty"`
	DiscountAmount int64     `json:"discount_amount"`
	CreatedAt      time.Time `json:"created_at"`
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentAwaiting  PaymentStatus = "awaiting"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentExpired   PaymentStatus = "expired"
	PaymentCancelled PaymentStatus = "cancelled"
)

// TerminalPaymentStatuses are the statuses a payment never leaves.
var TerminalPaymentStatuses = []PaymentStatus{PaymentCompleted, PaymentFailed, PaymentCancelled}

// IsTerminal reports whether a payment no longer needs polling.
func (s PaymentStatus) IsTerminal() bool {
	return slices.Contains(TerminalPaymentStatuses, s)
}

// Payment is one gateway transaction attempt for an order.
type Payment struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	Gateway        string          `json:"gateway"`
	GatewayOrderID string          `json:"gateway_order_id"`
	Method         string          `json:"method"`
	MethodName     string          `json:"method_name"`
	Amount         int64           `json:"amount"`
	Fee            int64           `json:"fee"`
	TotalAmount    int64           `json:"total_amount"`
	PaymentNumber  string          `json:"payment_number,omitempty"`
	Status         PaymentStatus   `json:"status"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	WebhookData    json.RawMessage `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
