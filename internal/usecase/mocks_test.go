package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"shopfront-backend/internal/domain"
	infracache "shopfront-backend/internal/infrastructure/cache"
	"shopfront-backend/internal/payment"
)

// memDB is an in-memory store with the same conditional update semantics as
// the Postgres repositories. Do snapshots the whole state and restores it when
// fn fails. Transactions run one at a time, which stands in for row locks.
type memDB struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	locked   map[string]int // order id -> GetByIDForUpdate calls
	products map[string]*domain.Product
	invLogs  []domain.InventoryLog
	carts    map[string]*domain.Cart // by user id
	coupons  map[string]*domain.Coupon
	orders   map[string]*domain.Order
	history  []domain.OrderHistory
	intents  []*domain.PaymentIntent
	outbox   []domain.OutboxEvent
}

type memSnapshot struct {
	products map[string]*domain.Product
	invLogs  []domain.InventoryLog
	carts    map[string]*domain.Cart
	coupons  map[string]*domain.Coupon
	orders   map[string]*domain.Order
	history  []domain.OrderHistory
	intents  []*domain.PaymentIntent
	outbox   []domain.OutboxEvent
}

func newMemDB() *memDB {
	return &memDB{
		products: map[string]*domain.Product{},
		carts:    map[string]*domain.Cart{},
		coupons:  map[string]*domain.Coupon{},
		orders:   map[string]*domain.Order{},
		locked:   map[string]int{},
	}
}

func cloneProduct(p *domain.Product) *domain.Product { cp := *p; return &cp }

func cloneCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = append([]domain.CartItem(nil), c.Items...)
	return &cp
}

func cloneCoupon(c *domain.Coupon) *domain.Coupon {
	cp := *c
	cp.UsedBy = append([]string(nil), c.UsedBy...)
	return &cp
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp
}

func cloneIntent(in *domain.PaymentIntent) *domain.PaymentIntent {
	cp := *in
	cp.Metadata = domain.JSONB{}.Merge(in.Metadata)
	return &cp
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := memSnapshot{
		products: map[string]*domain.Product{},
		invLogs:  append([]domain.InventoryLog(nil), db.invLogs...),
		carts:    map[string]*domain.Cart{},
		coupons:  map[string]*domain.Coupon{},
		orders:   map[string]*domain.Order{},
		history:  append([]domain.OrderHistory(nil), db.history...),
		outbox:   append([]domain.OutboxEvent(nil), db.outbox...),
	}
	for k, v := range db.products {
		s.products[k] = cloneProduct(v)
	}
	for k, v := range db.carts {
		s.carts[k] = cloneCart(v)
	}
	for k, v := range db.coupons {
		s.coupons[k] = cloneCoupon(v)
	}
	for k, v := range db.orders {
		s.orders[k] = cloneOrder(v)
	}
	for _, v := range db.intents {
		s.intents = append(s.intents, cloneIntent(v))
	}
	return s
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.products = s.products
	db.invLogs = s.invLogs
	db.carts = s.carts
	db.coupons = s.coupons
	db.orders = s.orders
	db.history = s.history
	db.intents = s.intents
	db.outbox = s.outbox
}

type memTxKey struct{}

func (db *memDB) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	db.txMu.Lock()
	defer db.txMu.Unlock()
	snap := db.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

// --- Products ---

type memProducts struct{ db *memDB }

func (r memProducts) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (r memProducts) GetByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Product
	for _, id := range ids {
		if p, ok := r.db.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r memProducts) AdjustStock(_ context.Context, adj domain.StockAdjustment) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.products[adj.ProductID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	next := p.Stock + adj.Delta
	if next < 0 {
		if adj.Guard == domain.StockGuardStrict {
			return 0, domain.ErrInsufficientStock
		}
		next = 0
	}
	r.db.invLogs = append(r.db.invLogs, domain.InventoryLog{
		ID:          uuid.NewString(),
		ProductID:   p.ID,
		Change:      next - p.Stock,
		Reason:      adj.Reason,
		ReferenceID: adj.ReferenceID,
		CreatedAt:   time.Now(),
	})
	p.Stock = next
	return next, nil
}

// --- Carts ---

type memCarts struct{ db *memDB }

func (r memCarts) GetOrCreate(_ context.Context, userID string) (*domain.Cart, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if c, ok := r.db.carts[userID]; ok {
		return cloneCart(c), nil
	}
	c := &domain.Cart{ID: uuid.NewString(), UserID: userID, IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	r.db.carts[userID] = c
	return cloneCart(c), nil
}

func (r memCarts) GetActiveByUserID(_ context.Context, userID string) (*domain.Cart, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.carts[userID]
	if !ok || !c.IsActive {
		return nil, domain.ErrNotFound
	}
	return cloneCart(c), nil
}

func (r memCarts) Save(_ context.Context, cart *domain.Cart) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := cloneCart(cart)
	cp.UpdatedAt = time.Now()
	r.db.carts[cart.UserID] = cp
	return nil
}

func (r memCarts) Clear(_ context.Context, userID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.carts[userID]
	if !ok {
		return nil
	}
	c.Items = nil
	c.DetachCoupon()
	c.Subtotal, c.TotalDiscount, c.Total = decimal.Zero, decimal.Zero, decimal.Zero
	return nil
}

// --- Coupons ---

type memCoupons struct{ db *memDB }

func (r memCoupons) Create(_ context.Context, c *domain.Coupon) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.coupons[c.ID] = cloneCoupon(c)
	return nil
}

func (r memCoupons) GetByID(_ context.Context, id string) (*domain.Coupon, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.coupons[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneCoupon(c), nil
}

func (r memCoupons) GetByCode(_ context.Context, code string) (*domain.Coupon, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.coupons {
		if c.Code == code {
			return cloneCoupon(c), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memCoupons) List(_ context.Context, limit, offset int) ([]domain.Coupon, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	all := make([]domain.Coupon, 0, len(r.db.coupons))
	for _, c := range r.db.coupons {
		all = append(all, *cloneCoupon(c))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	total := int64(len(all))
	if offset >= len(all) {
		return []domain.Coupon{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r memCoupons) Update(_ context.Context, c *domain.Coupon) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.coupons[c.ID]; !ok {
		return domain.ErrNotFound
	}
	r.db.coupons[c.ID] = cloneCoupon(c)
	return nil
}

func (r memCoupons) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.coupons, id)
	return nil
}

func (r memCoupons) IncrementUsage(_ context.Context, couponID, userID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.coupons[couponID]
	if !ok {
		return domain.ErrNotFound
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return domain.ErrCouponExhausted
	}
	if c.UsesBy(userID) >= c.PerUserLimit {
		return domain.ErrCouponExhausted
	}
	c.UsageCount++
	c.UsedBy = append(c.UsedBy, userID)
	return nil
}

// --- Orders ---

type memOrders struct{ db *memDB }

func (r memOrders) Create(_ context.Context, o *domain.Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r memOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r memOrders) GetByIDForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	if ctx.Value(memTxKey{}) == nil {
		return nil, errors.New("GetByIDForUpdate outside a transaction")
	}
	r.db.mu.Lock()
	r.db.locked[id]++
	r.db.mu.Unlock()
	return r.GetByID(ctx, id)
}

func (r memOrders) List(_ context.Context, f domain.OrderFilter) ([]domain.Order, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var all []domain.Order
	for _, o := range r.db.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
			continue
		}
		if f.CreatedFrom != nil && o.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && o.CreatedAt.After(*f.CreatedTo) {
			continue
		}
		all = append(all, *cloneOrder(o))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	offset := (f.Page - 1) * f.Limit
	if offset >= len(all) {
		return []domain.Order{}, total, nil
	}
	end := offset + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r memOrders) UpdateStatus(_ context.Context, id, from string, upd domain.StatusUpdate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok || o.Status != from {
		return domain.ErrNotFound
	}
	o.Status = upd.Status
	if upd.ShippedAt != nil {
		o.ShippedAt = upd.ShippedAt
	}
	if upd.DeliveredAt != nil {
		o.DeliveredAt = upd.DeliveredAt
	}
	if upd.CancelledAt != nil {
		o.CancelledAt = upd.CancelledAt
	}
	if upd.CancellationReason != nil {
		o.CancellationReason = upd.CancellationReason
	}
	if upd.InventoryCommitted != nil {
		o.InventoryCommitted = *upd.InventoryCommitted
	}
	o.UpdatedAt = time.Now()
	return nil
}

func (r memOrders) MarkPaid(_ context.Context, id string, ref *string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if o.PaymentStatus == domain.PaymentStatusPaid {
		return false, nil
	}
	now := time.Now()
	o.PaymentStatus = domain.PaymentStatusPaid
	o.PaidAt = &now
	if ref != nil {
		o.PaymentReference = ref
	}
	return true, nil
}

func (r memOrders) mutate(id string, fn func(o *domain.Order)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(o)
	return nil
}

func (r memOrders) UpdatePaymentStatus(_ context.Context, id, status string) error {
	return r.mutate(id, func(o *domain.Order) { o.PaymentStatus = status })
}

func (r memOrders) SetPaymentIntent(_ context.Context, id, intentID string) error {
	return r.mutate(id, func(o *domain.Order) { o.PaymentIntentID = &intentID })
}

func (r memOrders) SetInventoryCommitted(_ context.Context, id string, committed bool) error {
	return r.mutate(id, func(o *domain.Order) { o.InventoryCommitted = committed })
}

func (r memOrders) ListStalePending(_ context.Context, method string, cutoff time.Time, limit int) ([]domain.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Order
	for _, o := range r.db.orders {
		if o.PaymentMethod == method && o.Status == domain.OrderStatusPending &&
			o.PaymentStatus != domain.PaymentStatusPaid && o.CreatedAt.Before(cutoff) {
			out = append(out, *cloneOrder(o))
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memOrders) Stats(_ context.Context) (*domain.OrderStats, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s := &domain.OrderStats{ByStatus: map[string]int64{}, ByPaymentStatus: map[string]int64{}, PaidRevenue: decimal.Zero, RefundedAmount: decimal.Zero}
	for _, o := range r.db.orders {
		s.TotalOrders++
		s.ByStatus[o.Status]++
		s.ByPaymentStatus[o.PaymentStatus]++
		switch o.PaymentStatus {
		case domain.PaymentStatusPaid:
			s.PaidRevenue = s.PaidRevenue.Add(o.Total)
		case domain.PaymentStatusRefunded:
			s.RefundedAmount = s.RefundedAmount.Add(o.Total)
		}
	}
	return s, nil
}

func (r memOrders) CreateHistory(_ context.Context, h *domain.OrderHistory) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	h.ID = uuid.NewString()
	h.CreatedAt = time.Now()
	r.db.history = append(r.db.history, *h)
	return nil
}

func (r memOrders) GetHistory(_ context.Context, orderID string) ([]domain.OrderHistory, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.OrderHistory
	for _, h := range r.db.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

// --- Payment intents ---

type memIntents struct{ db *memDB }

func (r memIntents) Create(_ context.Context, in *domain.PaymentIntent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.intents = append(r.db.intents, cloneIntent(in))
	return nil
}

func (r memIntents) find(match func(*domain.PaymentIntent) bool) (*domain.PaymentIntent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := len(r.db.intents) - 1; i >= 0; i-- {
		if match(r.db.intents[i]) {
			return cloneIntent(r.db.intents[i]), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memIntents) GetByID(_ context.Context, id string) (*domain.PaymentIntent, error) {
	return r.find(func(in *domain.PaymentIntent) bool { return in.ID == id })
}

func (r memIntents) FindByProviderReference(_ context.Context, ref string) (*domain.PaymentIntent, error) {
	return r.find(func(in *domain.PaymentIntent) bool {
		return (in.ProviderSessionID != nil && *in.ProviderSessionID == ref) ||
			(in.ProviderIntentID != nil && *in.ProviderIntentID == ref)
	})
}

func (r memIntents) FindLatestByOrderID(_ context.Context, orderID string) (*domain.PaymentIntent, error) {
	return r.find(func(in *domain.PaymentIntent) bool { return in.OrderID == orderID })
}

func (r memIntents) UpdateStatus(_ context.Context, id string, upd domain.IntentUpdate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, in := range r.db.intents {
		if in.ID != id {
			continue
		}
		in.Status = upd.Status
		if upd.ProviderIntentID != nil {
			in.ProviderIntentID = upd.ProviderIntentID
		}
		if upd.CompletedAt != nil {
			in.CompletedAt = upd.CompletedAt
		}
		if upd.CollectedAt != nil {
			in.CollectedAt = upd.CollectedAt
		}
		if upd.FailureReason != nil {
			in.FailureReason = upd.FailureReason
		}
		in.Metadata = in.Metadata.Merge(upd.Metadata)
		return nil
	}
	return domain.ErrNotFound
}

// --- Outbox ---

type memOutbox struct{ db *memDB }

func (r memOutbox) Enqueue(_ context.Context, ev *domain.OutboxEvent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.outbox = append(r.db.outbox, *ev)
	return nil
}

func (r memOutbox) FetchUnpublished(_ context.Context, limit int) ([]domain.OutboxEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.OutboxEvent
	for _, ev := range r.db.outbox {
		if ev.PublishedAt == nil && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r memOutbox) MarkPublished(_ context.Context, ids []string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for i := range r.db.outbox {
		for _, id := range ids {
			if r.db.outbox[i].ID == id {
				r.db.outbox[i].PublishedAt = &now
			}
		}
	}
	return nil
}

func (db *memDB) lockedReads(orderID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.locked[orderID]
}

func (db *memDB) eventTypes() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []string
	for _, ev := range db.outbox {
		out = append(out, ev.EventType)
	}
	return out
}

// --- Dedup ---

type memDedup struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func (d *memDedup) Claim(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.claimed[id] {
		return false, nil
	}
	d.claimed[id] = true
	return true, nil
}

func (d *memDedup) Release(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.claimed, id)
	return nil
}

// --- Card processor ---

type scriptedProvider struct {
	mu             sync.Mutex
	sessions       int
	sessionErr     error
	intentStatus   map[string]string
	refunds        []string
	events         map[string]*payment.WebhookEvent
	lastSessionReq payment.SessionParams
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{intentStatus: map[string]string{}, events: map[string]*payment.WebhookEvent{}}
}

func (p *scriptedProvider) CreateCheckoutSession(_ context.Context, params payment.SessionParams) (*payment.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessionErr != nil {
		return nil, p.sessionErr
	}
	p.sessions++
	p.lastSessionReq = params
	id := "cs_" + uuid.NewString()[:8]
	return &payment.Session{ID: id, URL: "https://pay.example/" + id, AmountTotal: params.Amount, Currency: params.Currency}, nil
}

func (p *scriptedProvider) CreatePaymentIntent(_ context.Context, params payment.IntentParams) (*payment.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := "pi_" + uuid.NewString()[:8]
	p.intentStatus[id] = payment.ProviderStatusRequiresPaymentMethod
	return &payment.Intent{ID: id, Status: p.intentStatus[id], ClientSecret: id + "_secret", Amount: params.Amount, Currency: params.Currency}, nil
}

func (p *scriptedProvider) RetrievePaymentIntent(_ context.Context, id string) (*payment.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	status, ok := p.intentStatus[id]
	if !ok {
		status = payment.ProviderStatusSucceeded
	}
	return &payment.Intent{ID: id, Status: status}, nil
}

func (p *scriptedProvider) Refund(_ context.Context, intentID, _ string) (*payment.Refund, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunds = append(p.refunds, intentID)
	return &payment.Refund{ID: "re_" + intentID, Status: "succeeded"}, nil
}

func (p *scriptedProvider) ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if signature != "valid" {
		return nil, payment.ErrInvalidSignature
	}
	ev, ok := p.events[string(payload)]
	if !ok {
		return nil, payment.ErrInvalidSignature
	}
	return ev, nil
}

// --- Fixture ---

type fixture struct {
	db        *memDB
	provider  *scriptedProvider
	dedup     *memDedup
	coupons   *CouponUsecase
	carts     *CartUsecase
	checkout  *CheckoutUsecase
	finalizer *PaymentFinalizer
	orders    *OrderUsecase
	payments  *PaymentUsecase
	webhooks  *WebhookUsecase
	sweeper   *OrderSweeper
	products  *ProductUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newMemDB()
	products := memProducts{db}
	carts := memCarts{db}
	coupons := memCoupons{db}
	orders := memOrders{db}
	intents := memIntents{db}
	outbox := memOutbox{db}
	provider := newScriptedProvider()
	dedup := &memDedup{claimed: map[string]bool{}}
	cacheService := infracache.NewMemoryCache(time.Minute, time.Minute)

	registry := payment.NewRegistry(
		payment.NewCardStrategy(provider, intents, "http://shop.test"),
		payment.NewDeferredStrategy(intents),
	)

	couponUC := NewCouponUsecase(coupons)
	finalizer := NewPaymentFinalizer(orders, products, coupons, carts, outbox, db)
	orderUC := NewOrderUsecase(orders, products, intents, outbox, db, cacheService, time.Minute)

	return &fixture{
		db:        db,
		provider:  provider,
		dedup:     dedup,
		coupons:   couponUC,
		carts:     NewCartUsecase(carts, products, coupons, couponUC, CartLimits{MaxQuantity: 1000, MaxItems: 100}),
		checkout:  NewCheckoutUsecase(carts, products, coupons, orders, outbox, couponUC, registry, db, "usd"),
		finalizer: finalizer,
		orders:    orderUC,
		payments:  NewPaymentUsecase(orders, intents, products, outbox, registry, finalizer, db, cacheService, "usd"),
		webhooks:  NewWebhookUsecase(provider, intents, orders, outbox, finalizer, dedup, db),
		sweeper:   NewOrderSweeper(orderUC, orders, 30*time.Minute, time.Minute),
		products:  NewProductUsecase(products),
	}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) addProduct(t *testing.T, name, price, discount string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		ID:       uuid.NewString(),
		Name:     name,
		Price:    d(price),
		Discount: d(discount),
		Stock:    stock,
		IsActive: true,
	}
	f.db.mu.Lock()
	f.db.products[p.ID] = cloneProduct(p)
	f.db.mu.Unlock()
	return p
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.products[productID]
	require.True(t, ok)
	return p.Stock
}

func (f *fixture) setProduct(productID string, fn func(p *domain.Product)) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	fn(f.db.products[productID])
}

func (f *fixture) addCoupon(t *testing.T, code, kind, value string, mutate func(c *domain.Coupon)) *domain.Coupon {
	t.Helper()
	c := &domain.Coupon{
		ID:              uuid.NewString(),
		Code:            code,
		DiscountType:    kind,
		DiscountValue:   d(value),
		MinimumPurchase: decimal.Zero,
		ValidFrom:       time.Now().Add(-time.Hour),
		ValidTo:         time.Now().Add(24 * time.Hour),
		PerUserLimit:    1,
		IsActive:        true,
	}
	if mutate != nil {
		mutate(c)
	}
	f.db.mu.Lock()
	f.db.coupons[c.ID] = cloneCoupon(c)
	f.db.mu.Unlock()
	return c
}

func (f *fixture) coupon(t *testing.T, id string) *domain.Coupon {
	t.Helper()
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.coupons[id]
	require.True(t, ok)
	return cloneCoupon(c)
}

func (f *fixture) order(t *testing.T, id string) *domain.Order {
	t.Helper()
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	o, ok := f.db.orders[id]
	require.True(t, ok)
	return cloneOrder(o)
}

func (f *fixture) counts() (orders, intents int) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return len(f.db.orders), len(f.db.intents)
}

func testAddress() domain.ShippingAddress {
	return domain.ShippingAddress{Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701", Country: "US"}
}

func (f *fixture) checkoutWith(t *testing.T, userID, method string) *CheckoutResult {
	t.Helper()
	res, err := f.checkout.CreateCheckout(context.Background(), userID, CheckoutRequest{
		ShippingAddress: testAddress(),
		PaymentMethod:   method,
	})
	require.NoError(t, err)
	return res
}
