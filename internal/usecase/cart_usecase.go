package usecase

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"shopfront-backend/internal/domain"
	"shopfront-backend/internal/pricing"
	"shopfront-backend/pkg/logger"
)

type CartLimits struct {
	MaxQuantity int // per line
	MaxItems    int // distinct lines
}

// CartUsecase owns the user's cart. Every mutation recomputes the derived totals.
type CartUsecase struct {
	cartRepo    domain.CartRepository
	productRepo domain.ProductRepository
	couponRepo  domain.CouponRepository
	coupons     *CouponUsecase
	limits      CartLimits
}

func NewCartUsecase(cartRepo domain.CartRepository, productRepo domain.ProductRepository, couponRepo domain.CouponRepository, coupons *CouponUsecase, limits CartLimits) *CartUsecase {
	return &CartUsecase{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		couponRepo:  couponRepo,
		coupons:     coupons,
		limits:      limits,
	}
}

func cartLines(items []domain.CartItem) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.Line{Price: it.Price, Discount: it.Discount, Quantity: it.Quantity})
	}
	return lines
}

// applyTotals writes line totals and cart totals for the given coupon discount.
func applyTotals(cart *domain.Cart, couponDiscount decimal.Decimal) {
	for i := range cart.Items {
		it := &cart.Items[i]
		it.Total = pricing.RoundMoney(pricing.ItemTotal(it.Price, it.Discount, it.Quantity))
	}
	totals := pricing.CartTotals(cartLines(cart.Items), couponDiscount)
	cart.Subtotal = totals.Subtotal
	cart.TotalDiscount = totals.TotalDiscount
	cart.CouponDiscount = totals.CouponDiscount
	cart.Total = totals.Total
}

// recompute refreshes totals. An attached coupon is validated again against
// the current subtotal and detached when it no longer applies.
func (u *CartUsecase) recompute(ctx context.Context, cart *domain.Cart) error {
	if !cart.HasCoupon() || len(cart.Items) == 0 {
		cart.DetachCoupon()
		applyTotals(cart, decimal.Zero)
		return nil
	}

	detach := func(why string) error {
		logger.WithContext(ctx).Info().Str("cart_id", cart.ID).Str("reason", why).Msg("Coupon detached from cart")
		cart.DetachCoupon()
		applyTotals(cart, decimal.Zero)
		return nil
	}

	coupon, err := u.couponRepo.GetByID(ctx, *cart.CouponID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return detach("Coupon no longer exists")
		}
		return errors.Wrap(err, "load cart coupon")
	}

	subtotal := pricing.CartTotals(cartLines(cart.Items), decimal.Zero).Subtotal
	v, err := u.coupons.Validate(ctx, coupon.Code, subtotal, cart.UserID)
	if err != nil {
		return errors.Wrap(err, "validate cart coupon")
	}
	if !v.Valid {
		return detach(v.Message)
	}

	cart.CouponCode = &v.Coupon.Code
	applyTotals(cart, v.DiscountAmount)
	return nil
}

func (u *CartUsecase) checkQuantity(qty int) error {
	if qty < 1 || qty > u.limits.MaxQuantity {
		return domain.NewBadRequest("Quantity must be between 1 and %d", u.limits.MaxQuantity)
	}
	return nil
}

func (u *CartUsecase) loadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := u.cartRepo.GetActiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound("Cart not found")
		}
		return nil, errors.Wrap(err, "get cart")
	}
	return cart, nil
}

func (u *CartUsecase) loadProduct(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := u.productRepo.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound("Product not found")
		}
		return nil, errors.Wrap(err, "get product")
	}
	return product, nil
}

// GetCart returns the user's cart, creating it on first access. Lines whose
// product is gone, inactive or short on stock are dropped.
func (u *CartUsecase) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := u.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get or create cart")
	}
	if len(cart.Items) == 0 {
		return cart, nil
	}

	ids := make([]string, 0, len(cart.Items))
	for _, it := range cart.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := u.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load cart products")
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	valid := cart.Items[:0:0]
	for _, it := range cart.Items {
		p, ok := byID[it.ProductID]
		if !ok || !p.IsActive || p.Stock < it.Quantity {
			continue
		}
		valid = append(valid, it)
	}
	dropped := len(cart.Items) - len(valid)
	if dropped == 0 && !cart.HasCoupon() {
		return cart, nil
	}
	if dropped > 0 {
		logger.WithContext(ctx).Info().
			Str("cart_id", cart.ID).
			Int("dropped", dropped).
			Msg("Dropped unavailable cart items")
		cart.Items = valid
	}

	hadCoupon := cart.HasCoupon()
	if err := u.recompute(ctx, cart); err != nil {
		return nil, err
	}
	if dropped == 0 && cart.HasCoupon() == hadCoupon {
		return cart, nil
	}
	if err := u.cartRepo.Save(ctx, cart); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return cart, nil
}

func (u *CartUsecase) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if err := u.checkQuantity(quantity); err != nil {
		return nil, err
	}

	// 1. Product checks
	product, err := u.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, domain.NewBadRequest("Product is not available")
	}
	if product.Stock < quantity {
		return nil, domain.NewBadRequest("Insufficient stock. Available: %d, Requested: %d", product.Stock, quantity)
	}

	// 2. Get cart (create if not exists)
	cart, err := u.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get or create cart")
	}

	// 3. Merge or append
	if idx, ok := cart.FindItem(productID); ok {
		newQty := cart.Items[idx].Quantity + quantity
		if product.Stock < newQty {
			return nil, domain.NewBadRequest("Insufficient stock. Available: %d, Requested: %d", product.Stock, newQty)
		}
		if err := u.checkQuantity(newQty); err != nil {
			return nil, err
		}
		cart.Items[idx].Quantity = newQty
	} else {
		if len(cart.Items) >= u.limits.MaxItems {
			return nil, domain.NewBadRequest("Cart cannot have more than %d items", u.limits.MaxItems)
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    quantity,
			Price:       product.Price,
			Discount:    product.Discount,
		})
	}

	// 4. Recalculate and persist
	if err := u.recompute(ctx, cart); err != nil {
		return nil, err
	}
	if err := u.cartRepo.Save(ctx, cart); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return cart, nil
}

func (u *CartUsecase) UpdateItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if err := u.checkQuantity(quantity); err != nil {
		return nil, err
	}

	cart, err := u.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx, ok := cart.FindItem(productID)
	if !ok {
		return nil, domain.NewNotFound("Item not found in cart")
	}

	product, err := u.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Stock < quantity {
		return nil, domain.NewBadRequest("Insufficient stock. Available: %d, Requested: %d", product.Stock, quantity)
	}

	cart.Items[idx].Quantity = quantity
	if err := u.recompute(ctx, cart); err != nil {
		return nil, err
	}
	if err := u.cartRepo.Save(ctx, cart); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return cart, nil
}

func (u *CartUsecase) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	cart, err := u.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx, ok := cart.FindItem(productID)
	if !ok {
		return nil, domain.NewNotFound("Item not found in cart")
	}

	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	if err := u.recompute(ctx, cart); err != nil {
		return nil, err
	}
	if err := u.cartRepo.Save(ctx, cart); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return cart, nil
}

func (u *CartUsecase) Clear(ctx context.Context, userID string) (*domain.Cart, error) {
	if _, err := u.loadCart(ctx, userID); err != nil {
		return nil, err
	}
	if err := u.cartRepo.Clear(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}
	return u.loadCart(ctx, userID)
}

func (u *CartUsecase) Summary(ctx context.Context, userID string) (*domain.CartSummary, error) {
	cart, err := u.cartRepo.GetActiveByUserID(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, errors.Wrap(err, "get cart")
	}
	if cart == nil || len(cart.Items) == 0 {
		return &domain.CartSummary{}, nil
	}

	totals := pricing.CartTotals(cartLines(cart.Items), cart.CouponDiscount)
	return &domain.CartSummary{
		ItemCount:      totals.ItemCount,
		LineCount:      len(cart.Items),
		Subtotal:       totals.Subtotal,
		TotalDiscount:  totals.TotalDiscount,
		CouponCode:     cart.CouponCode,
		CouponDiscount: totals.CouponDiscount,
		Total:          totals.Total,
	}, nil
}

func (u *CartUsecase) ApplyCoupon(ctx context.Context, userID, code string) (*domain.Cart, error) {
	cart, err := u.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, domain.NewBadRequest("Cart is empty")
	}

	subtotal := pricing.CartTotals(cartLines(cart.Items), decimal.Zero).Subtotal
	v, err := u.coupons.Require(ctx, code, subtotal, userID)
	if err != nil {
		return nil, err
	}

	cart.CouponID = &v.Coupon.ID
	cart.CouponCode = &v.Coupon.Code
	applyTotals(cart, v.DiscountAmount)
	if err := u.cartRepo.Save(ctx, cart); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return cart, nil
}

func (u *CartUsecase) RemoveCoupon(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := u.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !cart.HasCoupon() {
		return nil, domain.NewBadRequest("No coupon applied to cart")
	}

	cart.DetachCoupon()
	applyTotals(cart, decimal.Zero)
	if err := u.cartRepo.Save(ctx, cart); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return cart, nil
}
