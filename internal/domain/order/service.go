package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/weddify/binks/internal/apperr"
	"github.com/weddify/binks/internal/domain/coupon"
	"github.com/weddify/binks/internal/domain/stock"
	"github.com/weddify/binks/internal/events"
	"github.com/weddify/binks/internal/infrastructure/store"
	"github.com/weddify/binks/internal/model"
)

const AggregateType = "Order"

// maxIDAttempts bounds invoice id regeneration on primary key conflicts.
const maxIDAttempts = 5

const defaultExpiryWindow = 60 * time.Minute

var (
	ErrOrderNotFound      = apperr.NotFound("order")
	ErrProductNotFound    = apperr.NotFound("product")
	ErrProductUnavailable = apperr.BadRequest("product is not available for purchase")
	ErrEmptyOrder         = apperr.BadRequest("order must have at least one item")
	ErrInvalidQuantity    = apperr.BadRequest("quantity must be positive")
	ErrBuyerEmailRequired = apperr.BadRequest("buyer email is required")
	ErrIDExhausted        = apperr.Conflict("could not allocate a unique order id")
	ErrConcurrentUpdate   = apperr.Conflict("order was modified concurrently")
)

// Config holds checkout policy.
type Config struct {
	// ExpiryWindow is how long an unpaid order holds its stock.
	ExpiryWindow time.Duration
	// ServiceFee is added to every order total.
	ServiceFee int64
	// StrictCoupons rejects checkout on an invalid coupon instead of
	// continuing without a discount.
	StrictCoupons bool
}

type ItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CreateInput struct {
	UserID     string      `json:"-"`
	BuyerName  string      `json:"buyer_name"`
	BuyerEmail string      `json:"buyer_email"`
	BuyerPhone string      `json:"buyer_phone"`
	Notes      string      `json:"notes"`
	Items      []ItemInput `json:"items"`
	CouponCode string      `json:"coupon_code"`
}

type Service struct {
	store      store.Store
	coupons    *coupon.Evaluator
	publisher  events.Publisher
	cfg        Config
	now        func() time.Time
	uniqueCode func() int64
	newID      func(time.Time) string
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithUniqueCode(fn func() int64) Option {
	return func(s *Service) { s.uniqueCode = fn }
}

func WithIDGenerator(fn func(time.Time) string) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(st store.Store, evaluator *coupon.Evaluator, cfg Config, opts ...Option) *Service {
	if cfg.ExpiryWindow <= 0 {
		cfg.ExpiryWindow = defaultExpiryWindow
	}
	s := &Service{
		store:      st,
		coupons:    evaluator,
		publisher:  events.NopPublisher{},
		cfg:        cfg,
		now:        time.Now,
		uniqueCode: RandomUniqueCode,
		newID:      GenerateID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateID returns an invoice id of the form INV-YYYYMMDD-XXXXX.
func GenerateID(t time.Time) string {
	suffix := make([]byte, 5)
	for i := range suffix {
		suffix[i] = idAlphabet[rand.Intn(len(idAlphabet))]
	}
	return "INV-" + t.Format("20060102") + "-" + string(suffix)
}

// RandomUniqueCode returns the transfer disambiguation code in [1, 999].
func RandomUniqueCode() int64 {
	return rand.Int63n(999) + 1
}

// ============================================
// Checkout
// ============================================

// Create places an order: it snapshots products, applies the coupon policy,
// reserves stock per line and persists everything in one unit of work.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Order, error) {
	items, err := normalizeItems(in.Items)
	if err != nil {
		return nil, err
	}
	in.BuyerEmail = strings.TrimSpace(in.BuyerEmail)
	if in.BuyerEmail == "" {
		return nil, ErrBuyerEmailRequired
	}

	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		now := s.now()
		o, err := s.create(ctx, s.newID(now), now, in, items)
		if errors.Is(err, store.ErrDuplicateKey) {
			log.Printf("[Order] Invoice id collision (attempt %d/%d), retrying", attempt, maxIDAttempts)
			continue
		}
		if errors.Is(err, coupon.ErrUsageLimitReached) && !s.cfg.StrictCoupons && in.CouponCode != "" {
			// Another checkout took the last use between Validate and RecordUsage.
			log.Printf("[Order] Coupon %q ran out during checkout, retrying without it", in.CouponCode)
			in.CouponCode = ""
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Printf("[Order] Created %s: %d items, total %d", o.ID, len(o.Items), o.Total)
		events.Emit(ctx, s.publisher, AggregateType, o.ID, EventOrderCreated, OrderCreated{
			OrderID:    o.ID,
			UserID:     o.UserID,
			BuyerEmail: o.BuyerEmail,
			Items:      summarize(o.Items),
			Discount:   o.Discount,
			Total:      o.Total,
			ExpiresAt:  o.ExpiresAt,
		})
		return o, nil
	}
	return nil, ErrIDExhausted
}

func (s *Service) create(ctx context.Context, id string, now time.Time, in CreateInput, items []ItemInput) (*model.Order, error) {
	var created *model.Order
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		o := &model.Order{
			ID:         id,
			UserID:     in.UserID,
			BuyerName:  strings.TrimSpace(in.BuyerName),
			BuyerEmail: in.BuyerEmail,
			BuyerPhone: strings.TrimSpace(in.BuyerPhone),
			Notes:      in.Notes,
			Status:     model.OrderPending,
			ExpiresAt:  now.Add(s.cfg.ExpiryWindow),
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		for _, it := range items {
			p, err := tx.GetProduct(ctx, it.ProductID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrProductNotFound
				}
				return err
			}
			if !p.IsActive {
				return ErrProductUnavailable
			}
			line := model.OrderItem{
				ID:             uuid.New().String(),
				OrderID:        id,
				ProductID:      p.ID,
				ProductTitle:   p.Title,
				ProductImage:   p.Image,
				UnitPrice:      p.Price,
				Quantity:       it.Quantity,
				TotalPrice:     p.Price * int64(it.Quantity),
				DeliveryStatus: model.DeliveryPending,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			o.Items = append(o.Items, line)
			o.Subtotal += line.TotalPrice
		}

		applied, err := s.applyCoupon(ctx, tx, o, in.CouponCode)
		if err != nil {
			return err
		}

		o.ServiceFee = s.cfg.ServiceFee
		o.UniqueCode = s.uniqueCode()
		o.Total = o.Subtotal - o.Discount + o.ServiceFee + o.UniqueCode

		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}

		ledger := stock.NewLedger(tx).WithClock(s.now)
		for _, line := range byProduct(o.Items) {
			if _, err := ledger.ReserveFor(ctx, line.ProductID, line.ID, line.Quantity); err != nil {
				return err
			}
		}

		if applied != nil {
			if err := s.coupons.RecordUsage(ctx, tx, applied.Coupon, o.ID, o.UserID, o.Discount); err != nil {
				return err
			}
		}

		created = o
		return nil
	})
	return created, err
}

// applyCoupon sets the discount on o. Under the lenient policy an invalid
// code is logged and ignored.
func (s *Service) applyCoupon(ctx context.Context, tx store.Tx, o *model.Order, code string) (*coupon.Result, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}

	res, err := s.coupons.Validate(ctx, tx, code, o.Subtotal, o.UserID)
	if err != nil {
		if s.cfg.StrictCoupons || apperr.KindOf(err) != apperr.KindInvalidCoupon {
			return nil, err
		}
		log.Printf("[Order] Ignoring coupon %q on %s: %v", code, o.ID, err)
		return nil, nil
	}

	o.Discount = res.Discount
	o.CouponID = res.Coupon.ID
	o.CouponCode = res.Coupon.Code
	return res, nil
}

// normalizeItems validates quantities and merges lines for the same product.
func normalizeItems(in []ItemInput) ([]ItemInput, error) {
	if len(in) == 0 {
		return nil, ErrEmptyOrder
	}
	index := make(map[string]int)
	var out []ItemInput
	for _, it := range in {
		it.ProductID = strings.TrimSpace(it.ProductID)
		if it.ProductID == "" {
			return nil, apperr.BadRequest("product_id is required")
		}
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if i, ok := index[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

// byProduct orders lines by product id so workflows running side by side
// lock product rows in the same order.
func byProduct(items []model.OrderItem) []model.OrderItem {
	out := slices.Clone(items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// ============================================
// Queries
// ============================================

// Get returns an order with its items and the credentials delivered to them.
func (s *Service) Get(ctx context.Context, id string) (*model.Order, error) {
	var o *model.Order
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		o, err = s.load(ctx, tx, id, false)
		return err
	})
	return o, err
}

func (s *Service) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, int, error) {
	if filter.Status != "" && !KnownStatus(filter.Status) {
		return nil, 0, ErrUnknownStatus
	}
	var (
		orders []model.Order
		total  int
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		orders, total, err = tx.ListOrders(ctx, filter)
		return err
	})
	return orders, total, err
}

func (s *Service) load(ctx context.Context, tx store.Tx, id string, lock bool) (*model.Order, error) {
	var (
		o   *model.Order
		err error
	)
	if lock {
		o, err = tx.LockOrder(ctx, id)
	} else {
		o, err = tx.GetOrder(ctx, id)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	for i := range o.Items {
		sold, err := tx.ListStockByOrderItem(ctx, o.Items[i].ID, model.StockSold)
		if err != nil {
			return nil, err
		}
		o.Items[i].StockItems = sold
	}
	return o, nil
}

// ============================================
// Fulfilment
// ============================================

// MarkAsPaid confirms payment and delivers the reserved credentials. Calling
// it again for an order that is already paid or completed returns the order
// unchanged, so duplicate gateway confirmations are harmless.
func (s *Service) MarkAsPaid(ctx context.Context, id string) (*model.Order, error) {
	var (
		result    *model.Order
		delivered bool
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := s.load(ctx, tx, id, true)
		if err != nil {
			return err
		}

		switch {
		case o.Status == model.OrderPaid || o.Status == model.OrderCompleted:
			result = o
			return nil
		case !isUnpaid(o.Status):
			return transitionError(o.Status, model.OrderPaid)
		}

		now := s.now()
		if now.After(o.ExpiresAt) {
			return apperr.OrderExpired()
		}

		ok, err := tx.UpdateOrderStatus(ctx, id, model.OrderPaid, unpaid, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentUpdate
		}

		ledger := stock.NewLedger(tx).WithClock(s.now)
		for _, item := range byProduct(o.Items) {
			if err := s.deliverItem(ctx, tx, ledger, o, item, now); err != nil {
				return err
			}
		}

		if _, err := tx.UpdateOrderStatus(ctx, id, model.OrderCompleted, []model.OrderStatus{model.OrderPaid}, now); err != nil {
			return err
		}

		result, err = s.load(ctx, tx, id, false)
		delivered = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}

	if delivered {
		log.Printf("[Order] %s paid and delivered to %s", result.ID, result.BuyerEmail)
		completedAt := s.now()
		if result.CompletedAt != nil {
			completedAt = *result.CompletedAt
		}
		events.Emit(ctx, s.publisher, AggregateType, result.ID, EventOrderCompleted, OrderCompleted{
			OrderID:     result.ID,
			BuyerEmail:  result.BuyerEmail,
			Total:       result.Total,
			CompletedAt: completedAt,
		})
	}
	return result, nil
}

// deliverItem sells the item's reserved stock to the buyer. If some of the
// reservation is missing it tries to reserve the shortfall first.
func (s *Service) deliverItem(ctx context.Context, tx store.Tx, ledger *stock.Ledger, o *model.Order, item model.OrderItem, now time.Time) error {
	held, err := tx.ListStockByOrderItem(ctx, item.ID, model.StockReserved)
	if err != nil {
		return err
	}
	if len(held) > item.Quantity {
		held = held[:item.Quantity]
	}
	if missing := item.Quantity - len(held); missing > 0 {
		log.Printf("[Order] %s item %s is missing %d reserved units, topping up", o.ID, item.ID, missing)
		extra, err := ledger.ReserveFor(ctx, item.ProductID, item.ID, missing)
		if err != nil {
			return err
		}
		held = append(held, extra...)
	}

	ids := make([]string, len(held))
	for i, it := range held {
		ids[i] = it.ID
	}
	if err := ledger.AssignToOrder(ctx, ids, item.ID, o.BuyerEmail); err != nil {
		return err
	}
	if err := tx.UpdateDeliveryStatus(ctx, item.ID, model.DeliveryDelivered, now); err != nil {
		return err
	}
	return tx.AddSoldCount(ctx, item.ProductID, item.Quantity)
}

// ============================================
// Cancellation and expiry
// ============================================

// Cancel releases the order's reserved stock and marks it cancelled.
func (s *Service) Cancel(ctx context.Context, id string) (*model.Order, error) {
	return s.terminate(ctx, id, model.OrderCancelled, nil)
}

// ExpirePendingOrders expires every unpaid order whose expiry has passed,
// each in its own unit of work, and returns how many were expired.
func (s *Service) ExpirePendingOrders(ctx context.Context) (int, error) {
	now := s.now()

	var ids []string
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		ids, err = tx.ListExpiredOrderIDs(ctx, now, unpaid)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list expired orders: %w", err)
	}

	expired := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		_, err := s.terminate(ctx, id, model.OrderExpired, func(o *model.Order) bool {
			return o.ExpiresAt.Before(now)
		})
		if err != nil {
			// Typically paid between listing and locking.
			log.Printf("[Order] Skipping expiry of %s: %v", id, err)
			continue
		}
		expired++
	}

	if expired > 0 {
		log.Printf("[Order] Expired %d of %d overdue orders", expired, len(ids))
	}
	return expired, nil
}

var errNotDue = apperr.BadRequest("order is not due for expiry")

// terminate moves an unpaid order to cancelled or expired and returns its
// stock. due, when set, is re-checked under the row lock.
func (s *Service) terminate(ctx context.Context, id string, target model.OrderStatus, due func(*model.Order) bool) (*model.Order, error) {
	var (
		result   *model.Order
		released int
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := s.load(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, target) {
			return transitionError(o.Status, target)
		}
		if due != nil && !due(o) {
			return errNotDue
		}

		ledger := stock.NewLedger(tx).WithClock(s.now)
		for _, item := range byProduct(o.Items) {
			n, err := ledger.ReleaseReserved(ctx, item.ID)
			if err != nil {
				return err
			}
			released += n
		}

		ok, err := tx.UpdateOrderStatus(ctx, id, target, unpaid, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentUpdate
		}

		result, err = s.load(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	eventType := EventOrderCancelled
	if target == model.OrderExpired {
		eventType = EventOrderExpired
	}
	log.Printf("[Order] %s %s, released %d stock items", id, target, released)
	events.Emit(ctx, s.publisher, AggregateType, id, eventType, OrderCancelled{
		OrderID:     id,
		Status:      target,
		Released:    released,
		CancelledAt: result.UpdatedAt,
	})
	return result, nil
}

// ============================================
// Admin
// ============================================

// UpdateStatus is the administrative override. Transitions with side effects
// go through the workflows that own them.
func (s *Service) UpdateStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	if !KnownStatus(status) {
		return nil, ErrUnknownStatus
	}

	switch status {
	case model.OrderCancelled, model.OrderExpired:
		return s.terminate(ctx, id, status, nil)
	case model.OrderPaid, model.OrderCompleted:
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if isUnpaid(current.Status) {
			return s.MarkAsPaid(ctx, id)
		}
	}

	var result *model.Order
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := s.load(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, status) {
			return transitionError(o.Status, status)
		}
		ok, err := tx.UpdateOrderStatus(ctx, id, status, []model.OrderStatus{o.Status}, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentUpdate
		}
		result, err = s.load(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Order] %s status set to %s by admin", id, status)
	return result, nil
}
