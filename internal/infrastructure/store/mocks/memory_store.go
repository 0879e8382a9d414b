package mocks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/weddify/binks/internal/infrastructure/store"
	"github.com/weddify/binks/internal/model"
)

// MemoryStore is an in-memory implementation of store.Store for testing.
// WithTx works on a copy of the data and only publishes it when fn succeeds,
// so rollbacks behave like the database.
type MemoryStore struct {
	mu sync.Mutex
	st *state

	// For tracking calls in tests
	TxCount int
	// ProductLocks lists every LockProduct call, committed or not.
	ProductLocks []string
	// InsertOrderErrs are returned, in order, by the next InsertOrder calls.
	InsertOrderErrs []error
	// RejectCouponClaims makes the next N ClaimCouponUse calls report the
	// limit as reached.
	RejectCouponClaims int
}

type state struct {
	products   map[string]model.Product
	stock      map[string]model.StockItem
	stockSeq   []string
	orders     map[string]model.Order
	items      map[string]model.OrderItem
	itemSeq    []string
	coupons    map[string]model.Coupon
	usages     []model.CouponUsage
	payments   map[string]model.Payment
	paymentSeq []string
}

func newState() *state {
	return &state{
		products: make(map[string]model.Product),
		stock:    make(map[string]model.StockItem),
		orders:   make(map[string]model.Order),
		items:    make(map[string]model.OrderItem),
		coupons:  make(map[string]model.Coupon),
		payments: make(map[string]model.Payment),
	}
}

// clone deep-copies the state so nothing a transaction touches is shared
// with the committed data.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.stock {
		c.stock[k] = cloneStockItem(v)
	}
	for k, v := range s.orders {
		c.orders[k] = cloneOrder(v)
	}
	for k, v := range s.items {
		c.items[k] = cloneOrderItem(v)
	}
	for k, v := range s.coupons {
		c.coupons[k] = cloneCoupon(v)
	}
	for k, v := range s.payments {
		c.payments[k] = clonePayment(v)
	}
	c.stockSeq = append([]string(nil), s.stockSeq...)
	c.itemSeq = append([]string(nil), s.itemSeq...)
	c.usages = append([]model.CouponUsage(nil), s.usages...)
	c.paymentSeq = append([]string(nil), s.paymentSeq...)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStockItem(it model.StockItem) model.StockItem {
	it.Credentials = maps.Clone(it.Credentials)
	it.ReservedAt = clonePtr(it.ReservedAt)
	it.SoldAt = clonePtr(it.SoldAt)
	return it
}

func cloneStockItems(items []model.StockItem) []model.StockItem {
	if items == nil {
		return nil
	}
	out := make([]model.StockItem, len(items))
	for i, it := range items {
		out[i] = cloneStockItem(it)
	}
	return out
}

func cloneOrderItem(item model.OrderItem) model.OrderItem {
	item.StockItems = cloneStockItems(item.StockItems)
	return item
}

func cloneOrder(o model.Order) model.Order {
	o.CompletedAt = clonePtr(o.CompletedAt)
	if o.Items != nil {
		items := make([]model.OrderItem, len(o.Items))
		for i, item := range o.Items {
			items[i] = cloneOrderItem(item)
		}
		o.Items = items
	}
	return o
}

func cloneCoupon(c model.Coupon) model.Coupon {
	c.MaxDiscount = clonePtr(c.MaxDiscount)
	c.MinPurchase = clonePtr(c.MinPurchase)
	c.UsageLimit = clonePtr(c.UsageLimit)
	c.UsagePerUser = clonePtr(c.UsagePerUser)
	c.StartsAt = clonePtr(c.StartsAt)
	c.ExpiresAt = clonePtr(c.ExpiresAt)
	return c
}

func clonePayment(p model.Payment) model.Payment {
	p.ExpiresAt = clonePtr(p.ExpiresAt)
	p.PaidAt = clonePtr(p.PaidAt)
	p.WebhookData = json.RawMessage(bytes.Clone(p.WebhookData))
	return p
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: newState()}
}

var _ store.Store = (*MemoryStore)(nil)

// WithTx runs fn against a private copy of the data and commits it on success.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TxCount++
	work := m.st.clone()
	if err := fn(&memTx{st: work, parent: m, locked: make(map[string]bool)}); err != nil {
		return err
	}
	m.st = work
	return nil
}

// ============================================
// Seeding and inspection helpers
// ============================================

// AddProduct seeds a product.
func (m *MemoryStore) AddProduct(p model.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
		p.UpdatedAt = p.CreatedAt
	}
	m.st.products[p.ID] = p
}

// AddStock seeds n available items for a product and refreshes its counter.
func (m *MemoryStore) AddStock(productID string, n int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		item := model.StockItem{
			ID:          uuid.New().String(),
			ProductID:   productID,
			Credentials: map[string]string{"email": fmt.Sprintf("acc%d@example.com", len(m.st.stockSeq)+1), "password": "secret"},
			Status:      model.StockAvailable,
			CreatedAt:   time.Now(),
		}
		m.st.stock[item.ID] = item
		m.st.stockSeq = append(m.st.stockSeq, item.ID)
		ids = append(ids, item.ID)
	}
	p := m.st.products[productID]
	p.StockCount = m.st.count(productID, model.StockAvailable)
	m.st.products[productID] = p
	return ids
}

// AddCoupon seeds a coupon.
func (m *MemoryStore) AddCoupon(c model.Coupon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.coupons[c.ID] = cloneCoupon(c)
}

// AddOrder seeds an order with its items.
func (m *MemoryStore) AddOrder(o model.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.putOrder(&o)
}

// Product returns the committed product.
func (m *MemoryStore) Product(id string) model.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.products[id]
}

// StockItems returns the committed stock of a product in insertion order.
func (m *MemoryStore) StockItems(productID string) []model.StockItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.stockWhere(func(it model.StockItem) bool { return it.ProductID == productID })
}

// CountStock counts committed stock of a product with a status.
func (m *MemoryStore) CountStock(productID string, status model.StockStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.count(productID, status)
}

// Order returns the committed order with items, or false.
func (m *MemoryStore) Order(id string) (model.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.st.order(id)
	if err != nil {
		return model.Order{}, false
	}
	return *o, true
}

// OrderCount returns the number of committed orders.
func (m *MemoryStore) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.st.orders)
}

// Coupon returns the committed coupon.
func (m *MemoryStore) Coupon(id string) model.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneCoupon(m.st.coupons[id])
}

// CouponUsages returns the committed coupon usages.
func (m *MemoryStore) CouponUsages() []model.CouponUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.CouponUsage(nil), m.st.usages...)
}

// Payments returns the committed payments in insertion order.
func (m *MemoryStore) Payments() []model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Payment, 0, len(m.st.paymentSeq))
	for _, id := range m.st.paymentSeq {
		out = append(out, clonePayment(m.st.payments[id]))
	}
	return out
}

// ============================================
// state helpers
// ============================================

func (s *state) count(productID string, status model.StockStatus) int {
	n := 0
	for _, it := range s.stock {
		if it.ProductID == productID && (status == "" || it.Status == status) {
			n++
		}
	}
	return n
}

func (s *state) stockWhere(match func(model.StockItem) bool) []model.StockItem {
	var out []model.StockItem
	for _, id := range s.stockSeq {
		it, ok := s.stock[id]
		if ok && match(it) {
			out = append(out, cloneStockItem(it))
		}
	}
	return out
}

func (s *state) putOrder(o *model.Order) {
	head := cloneOrder(*o)
	head.Items = nil
	s.orders[o.ID] = head
	for _, item := range o.Items {
		item.OrderID = o.ID
		item.StockItems = nil
		if _, exists := s.items[item.ID]; !exists {
			s.itemSeq = append(s.itemSeq, item.ID)
		}
		s.items[item.ID] = item
	}
}

func (s *state) order(id string) (*model.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	o = cloneOrder(o)
	o.Items = nil
	for _, itemID := range s.itemSeq {
		if item := s.items[itemID]; item.OrderID == id {
			o.Items = append(o.Items, cloneOrderItem(item))
		}
	}
	return &o, nil
}

// ============================================
// memTx implements store.Tx
// ============================================

type memTx struct {
	st     *state
	parent *MemoryStore
	// locked holds the products locked by LockProduct in this transaction.
	locked map[string]bool
}

var _ store.Tx = (*memTx)(nil)

func (t *memTx) GetProduct(ctx context.Context, idOrSlug string) (*model.Product, error) {
	if p, ok := t.st.products[idOrSlug]; ok {
		return &p, nil
	}
	for _, p := range t.st.products {
		if p.Slug == idOrSlug {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	var out []model.Product
	for _, p := range t.st.products {
		if !activeOnly || p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) InsertProduct(ctx context.Context, p *model.Product) error {
	if _, ok := t.st.products[p.ID]; ok {
		return store.ErrDuplicateKey
	}
	for _, existing := range t.st.products {
		if existing.Slug == p.Slug {
			return store.ErrDuplicateKey
		}
	}
	t.st.products[p.ID] = *p
	return nil
}

func (t *memTx) UpdateProduct(ctx context.Context, p *model.Product) error {
	existing, ok := t.st.products[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	for _, other := range t.st.products {
		if other.ID != p.ID && other.Slug == p.Slug {
			return store.ErrDuplicateKey
		}
	}
	existing.Slug = p.Slug
	existing.Title = p.Title
	existing.Description = p.Description
	existing.Image = p.Image
	existing.Price = p.Price
	existing.IsActive = p.IsActive
	existing.UpdatedAt = p.UpdatedAt
	t.st.products[p.ID] = existing
	return nil
}

func (t *memTx) LockProduct(ctx context.Context, productID string) error {
	if _, ok := t.st.products[productID]; !ok {
		return store.ErrNotFound
	}
	t.locked[productID] = true
	t.parent.ProductLocks = append(t.parent.ProductLocks, productID)
	return nil
}

// SetStockCount refuses to write a counter for a product this transaction
// has not locked, mirroring what keeps the Postgres counter consistent.
func (t *memTx) SetStockCount(ctx context.Context, productID string, count int) error {
	p, ok := t.st.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	if !t.locked[productID] {
		return fmt.Errorf("stock count of %s written without LockProduct", productID)
	}
	p.StockCount = count
	t.st.products[productID] = p
	return nil
}

func (t *memTx) AddSoldCount(ctx context.Context, productID string, delta int) error {
	p, ok := t.st.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	p.SoldCount += delta
	t.st.products[productID] = p
	return nil
}

func (t *memTx) InsertStockItems(ctx context.Context, items []model.StockItem) error {
	for _, item := range items {
		if _, exists := t.st.stock[item.ID]; exists {
			return store.ErrDuplicateKey
		}
		t.st.stock[item.ID] = cloneStockItem(item)
		t.st.stockSeq = append(t.st.stockSeq, item.ID)
	}
	return nil
}

func (t *memTx) GetStockItem(ctx context.Context, id string) (*model.StockItem, error) {
	it, ok := t.st.stock[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	it = cloneStockItem(it)
	return &it, nil
}

func (t *memTx) ReserveAvailable(ctx context.Context, productID, orderItemID string, limit int, at time.Time) ([]model.StockItem, error) {
	var out []model.StockItem
	for _, id := range t.st.stockSeq {
		if len(out) >= limit {
			break
		}
		it, ok := t.st.stock[id]
		if !ok || it.ProductID != productID || it.Status != model.StockAvailable {
			continue
		}
		ts := at
		it.Status = model.StockReserved
		it.OrderItemID = orderItemID
		it.ReservedAt = &ts
		it.UpdatedAt = at
		t.st.stock[id] = it
		out = append(out, cloneStockItem(it))
	}
	return out, nil
}

func (t *memTx) ListStockByOrderItem(ctx context.Context, orderItemID string, status model.StockStatus) ([]model.StockItem, error) {
	return t.st.stockWhere(func(it model.StockItem) bool {
		return it.OrderItemID == orderItemID && (status == "" || it.Status == status)
	}), nil
}

func (t *memTx) MarkStockSold(ctx context.Context, ids []string, orderItemID, buyerEmail string, at time.Time) (int, error) {
	n := 0
	for _, id := range ids {
		it, ok := t.st.stock[id]
		if !ok || it.Status != model.StockReserved {
			continue
		}
		ts := at
		it.Status = model.StockSold
		it.OrderItemID = orderItemID
		it.BuyerEmail = buyerEmail
		it.SoldAt = &ts
		it.ReservedAt = nil
		it.UpdatedAt = at
		t.st.stock[id] = it
		n++
	}
	return n, nil
}

func release(it model.StockItem, at time.Time) model.StockItem {
	it.Status = model.StockAvailable
	it.OrderItemID = ""
	it.BuyerEmail = ""
	it.ReservedAt = nil
	it.SoldAt = nil
	it.UpdatedAt = at
	return it
}

func (t *memTx) ReleaseStock(ctx context.Context, orderItemID string, at time.Time) (int, error) {
	n := 0
	for id, it := range t.st.stock {
		if it.OrderItemID == orderItemID && it.Status == model.StockReserved {
			t.st.stock[id] = release(it, at)
			n++
		}
	}
	return n, nil
}

func (t *memTx) ReleaseStockItems(ctx context.Context, ids []string, at time.Time) error {
	for _, id := range ids {
		if it, ok := t.st.stock[id]; ok && it.Status == model.StockReserved {
			t.st.stock[id] = release(it, at)
		}
	}
	return nil
}

func (t *memTx) DeleteStockItem(ctx context.Context, id string) (bool, error) {
	it, ok := t.st.stock[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if it.Status != model.StockAvailable {
		return false, nil
	}
	delete(t.st.stock, id)
	return true, nil
}

func (t *memTx) ListStock(ctx context.Context, productID string, status model.StockStatus, limit, offset int) ([]model.StockItem, error) {
	all := t.st.stockWhere(func(it model.StockItem) bool {
		return it.ProductID == productID && (status == "" || it.Status == status)
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (t *memTx) CountStock(ctx context.Context, productID string, status model.StockStatus) (int, error) {
	return t.st.count(productID, status), nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *model.Order) error {
	if errs := t.parent.InsertOrderErrs; len(errs) > 0 {
		t.parent.InsertOrderErrs = errs[1:]
		if errs[0] != nil {
			return errs[0]
		}
	}
	if _, exists := t.st.orders[o.ID]; exists {
		return store.ErrDuplicateKey
	}
	t.st.putOrder(o)
	return nil
}

func (t *memTx) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return t.st.order(id)
}

func (t *memTx) LockOrder(ctx context.Context, id string) (*model.Order, error) {
	return t.st.order(id)
}

func (t *memTx) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, int, error) {
	var all []model.Order
	for _, o := range t.st.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	if f.Offset >= len(all) {
		return nil, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && f.Limit < len(all) {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, id string, to model.OrderStatus, from []model.OrderStatus, at time.Time) (bool, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return false, nil
	}
	if len(from) > 0 {
		allowed := false
		for _, s := range from {
			if o.Status == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return false, nil
		}
	}
	o.Status = to
	o.UpdatedAt = at
	if to == model.OrderCompleted {
		ts := at
		o.CompletedAt = &ts
	}
	t.st.orders[id] = o
	return true, nil
}

func (t *memTx) UpdateDeliveryStatus(ctx context.Context, orderItemID string, status model.DeliveryStatus, at time.Time) error {
	item, ok := t.st.items[orderItemID]
	if !ok {
		return store.ErrNotFound
	}
	item.DeliveryStatus = status
	item.UpdatedAt = at
	t.st.items[orderItemID] = item
	return nil
}

func (t *memTx) ListExpiredOrderIDs(ctx context.Context, now time.Time, statuses []model.OrderStatus) ([]string, error) {
	var ids []string
	for _, o := range t.st.orders {
		if !o.ExpiresAt.Before(now) {
			continue
		}
		for _, s := range statuses {
			if o.Status == s {
				ids = append(ids, o.ID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (t *memTx) GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	for _, c := range t.st.coupons {
		if c.Code == code {
			c = cloneCoupon(c)
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) GetCoupon(ctx context.Context, id string) (*model.Coupon, error) {
	c, ok := t.st.coupons[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c = cloneCoupon(c)
	return &c, nil
}

func (t *memTx) ListCoupons(ctx context.Context) ([]model.Coupon, error) {
	var out []model.Coupon
	for _, c := range t.st.coupons {
		out = append(out, cloneCoupon(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *memTx) InsertCoupon(ctx context.Context, c *model.Coupon) error {
	for _, existing := range t.st.coupons {
		if existing.Code == c.Code || existing.ID == c.ID {
			return store.ErrDuplicateKey
		}
	}
	t.st.coupons[c.ID] = cloneCoupon(*c)
	return nil
}

func (t *memTx) SetCouponActive(ctx context.Context, id string, active bool, at time.Time) error {
	c, ok := t.st.coupons[id]
	if !ok {
		return store.ErrNotFound
	}
	c.IsActive = active
	c.UpdatedAt = at
	t.st.coupons[id] = c
	return nil
}

func (t *memTx) CountCouponUsage(ctx context.Context, couponID, userID string) (int, error) {
	n := 0
	for _, u := range t.st.usages {
		if u.CouponID == couponID && u.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) ClaimCouponUse(ctx context.Context, couponID string, at time.Time) (bool, error) {
	c, ok := t.st.coupons[couponID]
	if !ok {
		return false, store.ErrNotFound
	}
	if t.parent.RejectCouponClaims > 0 {
		t.parent.RejectCouponClaims--
		return false, nil
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return false, nil
	}
	c.UsageCount++
	c.UpdatedAt = at
	t.st.coupons[couponID] = c
	return true, nil
}

func (t *memTx) InsertCouponUsage(ctx context.Context, u *model.CouponUsage) error {
	t.st.usages = append(t.st.usages, *u)
	return nil
}

func (t *memTx) InsertPayment(ctx context.Context, p *model.Payment) error {
	if _, exists := t.st.payments[p.ID]; exists {
		return store.ErrDuplicateKey
	}
	t.st.payments[p.ID] = clonePayment(*p)
	t.st.paymentSeq = append(t.st.paymentSeq, p.ID)
	return nil
}

func (t *memTx) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	p, ok := t.st.payments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p = clonePayment(p)
	return &p, nil
}

// latestPayment scans newest first.
func (t *memTx) latestPayment(match func(model.Payment) bool) (*model.Payment, error) {
	for i := len(t.st.paymentSeq) - 1; i >= 0; i-- {
		p := t.st.payments[t.st.paymentSeq[i]]
		if match(p) {
			p = clonePayment(p)
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) FindPayment(ctx context.Context, orderID string, status model.PaymentStatus) (*model.Payment, error) {
	return t.latestPayment(func(p model.Payment) bool {
		return p.OrderID == orderID && (status == "" || p.Status == status)
	})
}

func (t *memTx) GetPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Payment, error) {
	return t.latestPayment(func(p model.Payment) bool { return p.GatewayOrderID == gatewayOrderID })
}

func (t *memTx) UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus, paidAt *time.Time, webhook json.RawMessage, at time.Time) (bool, error) {
	p, ok := t.st.payments[id]
	if !ok || p.Status.IsTerminal() {
		return false, nil
	}
	p.Status = status
	p.PaidAt = clonePtr(paidAt)
	if len(webhook) > 0 {
		p.WebhookData = json.RawMessage(bytes.Clone(webhook))
	}
	p.UpdatedAt = at
	t.st.payments[id] = p
	return true, nil
}
