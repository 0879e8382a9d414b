package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/weddify/binks/internal/model"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// Store runs units of work. Everything fn does through tx commits together
// or not at all.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of repositories available inside a unit of work.
type Tx interface {
	ProductRepository
	StockRepository
	OrderRepository
	CouponRepository
	PaymentRepository
}

type ProductRepository interface {
	// GetProduct looks a product up by id or slug.
	GetProduct(ctx context.Context, idOrSlug string) (*model.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error)
	// InsertProduct stores a new product. A taken id or slug yields ErrDuplicateKey.
	InsertProduct(ctx context.Context, p *model.Product) error
	// UpdateProduct rewrites the editable catalogue fields; counters are untouched.
	UpdateProduct(ctx context.Context, p *model.Product) error
	// LockProduct holds the product row until the unit of work ends. Stock
	// mutations take it before recounting so counters cannot be overwritten
	// with a stale count.
	LockProduct(ctx context.Context, productID string) error
	SetStockCount(ctx context.Context, productID string, count int) error
	AddSoldCount(ctx context.Context, productID string, delta int) error
}

type StockRepository interface {
	InsertStockItems(ctx context.Context, items []model.StockItem) error
	GetStockItem(ctx context.Context, id string) (*model.StockItem, error)

	// ReserveAvailable atomically flips up to limit available items of the
	// product to reserved and binds them to orderItemID (may be empty).
	// Rows locked by concurrent reservations are skipped, never shared.
	ReserveAvailable(ctx context.Context, productID, orderItemID string, limit int, at time.Time) ([]model.StockItem, error)

	// ListStockByOrderItem returns the items bound to an order item. An empty
	// status returns every status.
	ListStockByOrderItem(ctx context.Context, orderItemID string, status model.StockStatus) ([]model.StockItem, error)

	// MarkStockSold moves the given reserved items to sold and returns how many
	// rows changed. Items not currently reserved are left alone.
	MarkStockSold(ctx context.Context, ids []string, orderItemID, buyerEmail string, at time.Time) (int, error)

	// ReleaseStock returns the reserved items of an order item to available.
	ReleaseStock(ctx context.Context, orderItemID string, at time.Time) (int, error)

	// ReleaseStockItems returns specific reserved items to available.
	ReleaseStockItems(ctx context.Context, ids []string, at time.Time) error

	// DeleteStockItem removes an available item; it reports false when the
	// item exists but is not available.
	DeleteStockItem(ctx context.Context, id string) (bool, error)

	ListStock(ctx context.Context, productID string, status model.StockStatus, limit, offset int) ([]model.StockItem, error)
	CountStock(ctx context.Context, productID string, status model.StockStatus) (int, error)
}

type OrderRepository interface {
	// InsertOrder stores the order and its items. A taken id yields ErrDuplicateKey.
	InsertOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)

	// LockOrder is GetOrder holding the order row until the unit of work ends.
	LockOrder(ctx context.Context, id string) (*model.Order, error)

	ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, int, error)

	// UpdateOrderStatus sets the status only if the current status is one of
	// from (any status when from is empty) and reports whether it did.
	// Moving to completed also stamps completed_at.
	UpdateOrderStatus(ctx context.Context, id string, to model.OrderStatus, from []model.OrderStatus, at time.Time) (bool, error)

	UpdateDeliveryStatus(ctx context.Context, orderItemID string, status model.DeliveryStatus, at time.Time) error

	// ListExpiredOrderIDs returns orders in one of statuses whose expiry is before now.
	ListExpiredOrderIDs(ctx context.Context, now time.Time, statuses []model.OrderStatus) ([]string, error)
}

type CouponRepository interface {
	GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error)
	GetCoupon(ctx context.Context, id string) (*model.Coupon, error)
	ListCoupons(ctx context.Context) ([]model.Coupon, error)
	InsertCoupon(ctx context.Context, c *model.Coupon) error
	SetCouponActive(ctx context.Context, id string, active bool, at time.Time) error

	// CountCouponUsage counts redemptions of a coupon by a user.
	CountCouponUsage(ctx context.Context, couponID, userID string) (int, error)

	// ClaimCouponUse increments the usage counter unless the limit is reached.
	ClaimCouponUse(ctx context.Context, couponID string, at time.Time) (bool, error)
	InsertCouponUsage(ctx context.Context, u *model.CouponUsage) error
}

type PaymentRepository interface {
	InsertPayment(ctx context.Context, p *model.Payment) error
	GetPayment(ctx context.Context, id string) (*model.Payment, error)

	// FindPayment returns the newest payment of an order, restricted to status
	// unless it is empty.
	FindPayment(ctx context.Context, orderID string, status model.PaymentStatus) (*model.Payment, error)

	// GetPaymentByGatewayOrderID returns the newest payment for a gateway order id.
	GetPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Payment, error)

	// UpdatePaymentStatus writes status and paidAt unless the payment is
	// already terminal, and reports whether it did. A nil webhook keeps the
	// stored payload.
	UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus, paidAt *time.Time, webhook json.RawMessage, at time.Time) (bool, error)
}
