package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopfront-backend/internal/domain"
	"shopfront-backend/internal/infrastructure/metrics"
	"shopfront-backend/internal/payment"
	"shopfront-backend/internal/pricing"
	"shopfront-backend/pkg/logger"
)

type CheckoutRequest struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	ShippingCost    *decimal.Decimal       `json:"shippingCost"`
	Notes           *string                `json:"notes"`
}

type CheckoutResult struct {
	Order   *domain.Order            `json:"order"`
	Payment domain.PaymentDescriptor `json:"paymentIntent"`
}

// CheckoutUsecase turns the user's cart into a PENDING order and starts payment.
type CheckoutUsecase struct {
	cartRepo    domain.CartRepository
	productRepo domain.ProductRepository
	couponRepo  domain.CouponRepository
	orderRepo   domain.OrderRepository
	coupons     *CouponUsecase
	payments    *payment.Registry
	effects     *orderEffects
	txManager   domain.TransactionManager
	currency    string
	now         func() time.Time
}

func NewCheckoutUsecase(
	cartRepo domain.CartRepository,
	productRepo domain.ProductRepository,
	couponRepo domain.CouponRepository,
	orderRepo domain.OrderRepository,
	outboxRepo domain.OutboxRepository,
	coupons *CouponUsecase,
	payments *payment.Registry,
	txManager domain.TransactionManager,
	currency string,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		couponRepo:  couponRepo,
		orderRepo:   orderRepo,
		coupons:     coupons,
		payments:    payments,
		effects: &orderEffects{
			orderRepo:   orderRepo,
			productRepo: productRepo,
			couponRepo:  couponRepo,
			cartRepo:    cartRepo,
			outboxRepo:  outboxRepo,
		},
		txManager: txManager,
		currency:  currency,
		now:       time.Now,
	}
}

func validateAddress(a domain.ShippingAddress) error {
	fields := []struct{ name, value string }{
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zipCode", a.ZipCode},
		{"country", a.Country},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return domain.NewBadRequest("Shipping address %s is required", f.name)
		}
	}
	return nil
}

// GenerateOrderNumber returns ORD-YYYYMMDD-XXXXXX.
func GenerateOrderNumber(t time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return "ORD-" + t.UTC().Format("20060102") + "-" + suffix
}

func (u *CheckoutUsecase) CreateCheckout(ctx context.Context, userID string, req CheckoutRequest) (res *CheckoutResult, err error) {
	defer func() {
		outcome := "created"
		if err != nil {
			outcome = domain.KindOf(err).String()
		}
		metrics.CheckoutsTotal.WithLabelValues(req.PaymentMethod, outcome).Inc()
	}()

	// 1. Request checks
	strategy, err := u.payments.Get(req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if err := validateAddress(req.ShippingAddress); err != nil {
		return nil, err
	}
	if req.Notes != nil && len(*req.Notes) > domain.MaxNotesLength {
		return nil, domain.NewBadRequest("Notes cannot exceed %d characters", domain.MaxNotesLength)
	}
	shipping := decimal.Zero
	if req.ShippingCost != nil {
		if req.ShippingCost.IsNegative() {
			return nil, domain.NewBadRequest("Shipping cost cannot be negative")
		}
		shipping = *req.ShippingCost
	}

	// 2. Load cart
	cart, err := u.cartRepo.GetActiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound("Cart not found")
		}
		return nil, errors.Wrap(err, "get cart")
	}
	if len(cart.Items) == 0 {
		return nil, domain.NewBadRequest("Cart is empty")
	}

	// 3. Validate products and snapshot lines
	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, ci := range cart.Items {
		product, err := u.productRepo.GetByID(ctx, ci.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.NewNotFound("Product %s not found", ci.ProductID)
			}
			return nil, errors.Wrap(err, "get product")
		}
		if !product.IsActive {
			return nil, domain.NewBadRequest("Product %s is no longer available", product.Name)
		}
		if product.Stock < ci.Quantity {
			return nil, domain.NewBadRequest("Insufficient stock for %s. Available: %d, Requested: %d", product.Name, product.Stock, ci.Quantity)
		}
		items = append(items, domain.OrderItem{
			ProductID:   ci.ProductID,
			ProductName: product.Name,
			Quantity:    ci.Quantity,
			Price:       ci.Price,
			Discount:    ci.Discount,
			Total:       pricing.RoundMoney(pricing.ItemTotal(ci.Price, ci.Discount, ci.Quantity)),
		})
	}

	// 4. Totals from the cart lines, never from cached cart fields
	totals := pricing.CartTotals(cartLines(cart.Items), decimal.Zero)
	couponDiscount := decimal.Zero
	if cart.HasCoupon() {
		coupon, err := u.couponRepo.GetByID(ctx, *cart.CouponID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.NewBadRequest("Applied coupon no longer exists")
			}
			return nil, errors.Wrap(err, "get coupon")
		}
		v, err := u.coupons.Require(ctx, coupon.Code, totals.Subtotal, userID)
		if err != nil {
			return nil, err
		}
		couponDiscount = v.DiscountAmount
	}
	subtotal := totals.Subtotal.Add(totals.TotalDiscount)

	now := u.now().UTC()
	order := &domain.Order{
		ID:              uuid.NewString(),
		OrderNumber:     GenerateOrderNumber(now),
		UserID:          userID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		Subtotal:        subtotal,
		TotalDiscount:   totals.TotalDiscount,
		CouponID:        cart.CouponID,
		CouponCode:      cart.CouponCode,
		CouponDiscount:  couponDiscount,
		ShippingCost:    shipping,
		Total:           pricing.OrderTotal(subtotal, totals.TotalDiscount, couponDiscount, shipping),
		PaymentMethod:   strategy.Method(),
		PaymentStatus:   domain.PaymentStatusPending,
		Status:          domain.OrderStatusPending,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// 5. Order, intent and (for binding methods) inventory in one transaction
	var intent *domain.PaymentIntent
	err = u.txManager.Do(ctx, func(txCtx context.Context) error {
		if err := u.orderRepo.Create(txCtx, order); err != nil {
			return errors.Wrap(err, "create order")
		}

		in, err := strategy.CreateIntent(txCtx, order, u.currency)
		if err != nil {
			return err
		}
		intent = in
		if err := u.orderRepo.SetPaymentIntent(txCtx, order.ID, intent.ID); err != nil {
			return errors.Wrap(err, "link payment intent")
		}
		order.PaymentIntentID = &intent.ID

		if strategy.SettlesImmediately() {
			if err := u.effects.commitInventory(txCtx, order, commitStrict, domain.StockReasonOrderPlaced); err != nil {
				return err
			}
		}

		if err := u.effects.history(txCtx, order.ID, nil, order.Status, "Order placed", &userID); err != nil {
			return err
		}
		return u.effects.publish(txCtx, order, domain.EventOrderCreated, "")
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			logger.WithContext(ctx).Error().Err(err).Str("user_id", userID).Msg("Checkout failed")
		}
		return nil, err
	}

	logger.WithContext(ctx).Info().
		Str("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Str("payment_method", order.PaymentMethod).
		Str("total", order.Total.StringFixed(2)).
		Msg("Checkout created")

	return &CheckoutResult{Order: order, Payment: intent.Descriptor()}, nil
}
