package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopfront-backend/internal/domain"
	"shopfront-backend/pkg/logger"
)

// CouponUsecase validates coupons against carts and handles admin coupon management.
type CouponUsecase struct {
	couponRepo domain.CouponRepository
	now        func() time.Time
}

func NewCouponUsecase(couponRepo domain.CouponRepository) *CouponUsecase {
	return &CouponUsecase{
		couponRepo: couponRepo,
		now:        time.Now,
	}
}

// Validate checks code against cartTotal for userID. An unusable coupon is a
// verdict, not an error: the returned error is only set for store failures.
func (uc *CouponUsecase) Validate(ctx context.Context, code string, cartTotal decimal.Decimal, userID string) (*domain.CouponValidation, error) {
	reject := func(msg string) (*domain.CouponValidation, error) {
		return &domain.CouponValidation{Valid: false, Message: msg}, nil
	}

	// 1. Existence and time window
	coupon, err := uc.couponRepo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return reject("Coupon not found or expired")
		}
		return nil, errors.Wrap(err, "get coupon")
	}
	if !coupon.IsActive {
		return reject("Coupon is not active")
	}
	if !coupon.ActiveAt(uc.now()) {
		return reject("Coupon is not valid at this time")
	}

	// 2. Minimum purchase
	if cartTotal.LessThan(coupon.MinimumPurchase) {
		return reject("Minimum purchase of " + coupon.MinimumPurchase.StringFixed(2) + " required")
	}

	// 3. Global cap
	if coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit {
		return reject("Coupon usage limit reached")
	}

	// 4. Per-user cap
	if coupon.UsesBy(userID) >= coupon.PerUserLimit {
		return reject("You have reached the maximum usage limit for this coupon")
	}

	return &domain.CouponValidation{
		Valid:          true,
		Coupon:         coupon,
		DiscountAmount: coupon.DiscountFor(cartTotal),
	}, nil
}

// Require is Validate with the rejection turned into a BadRequest.
func (uc *CouponUsecase) Require(ctx context.Context, code string, cartTotal decimal.Decimal, userID string) (*domain.CouponValidation, error) {
	v, err := uc.Validate(ctx, code, cartTotal, userID)
	if err != nil {
		return nil, err
	}
	if !v.Valid {
		return nil, domain.NewBadRequest("%s", v.Message)
	}
	return v, nil
}

// --- Admin ---

// CouponRequest is the admin input for creating or replacing a coupon.
type CouponRequest struct {
	Code            string           `json:"code"`
	Description     string           `json:"description"`
	DiscountType    string           `json:"discountType"`
	DiscountValue   decimal.Decimal  `json:"discountValue"`
	MinimumPurchase *decimal.Decimal `json:"minimumPurchase"`
	MaximumDiscount *decimal.Decimal `json:"maximumDiscount"`
	ValidFrom       string           `json:"validFrom"` // ISO8601
	ValidTo         string           `json:"validTo"`   // ISO8601
	UsageLimit      *int             `json:"usageLimit"`
	PerUserLimit    *int             `json:"perUserLimit"`
	IsActive        *bool            `json:"isActive"`
}

func (uc *CouponUsecase) buildCoupon(req CouponRequest) (*domain.Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if len(code) < domain.MinCouponCodeLength || len(code) > domain.MaxCouponCodeLength {
		return nil, domain.NewBadRequest("Coupon code must be between %d and %d characters", domain.MinCouponCodeLength, domain.MaxCouponCodeLength)
	}
	if len(req.Description) > domain.MaxCouponDescription {
		return nil, domain.NewBadRequest("Description cannot exceed %d characters", domain.MaxCouponDescription)
	}
	if req.DiscountType != domain.DiscountTypePercentage && req.DiscountType != domain.DiscountTypeFixed {
		return nil, domain.NewBadRequest("Discount type must be PERCENTAGE or FIXED")
	}
	if !req.DiscountValue.IsPositive() {
		return nil, domain.NewBadRequest("Discount value must be greater than 0")
	}
	if req.DiscountType == domain.DiscountTypePercentage && req.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return nil, domain.NewBadRequest("Percentage discount cannot exceed 100%%")
	}

	validFrom, err := parseISO8601(req.ValidFrom)
	if err != nil {
		return nil, domain.NewBadRequest("Invalid validFrom date")
	}
	validTo, err := parseISO8601(req.ValidTo)
	if err != nil {
		return nil, domain.NewBadRequest("Invalid validTo date")
	}
	if !validTo.After(validFrom) {
		return nil, domain.NewBadRequest("Valid to date must be after valid from date")
	}

	c := &domain.Coupon{
		Code:            code,
		Description:     req.Description,
		DiscountType:    req.DiscountType,
		DiscountValue:   req.DiscountValue,
		MinimumPurchase: decimal.Zero,
		ValidFrom:       validFrom,
		ValidTo:         validTo,
		UsageLimit:      req.UsageLimit,
		PerUserLimit:    domain.DefaultCouponPerUserCap,
		IsActive:        true,
	}
	if req.MinimumPurchase != nil {
		if req.MinimumPurchase.IsNegative() {
			return nil, domain.NewBadRequest("Minimum purchase cannot be negative")
		}
		c.MinimumPurchase = *req.MinimumPurchase
	}
	if req.MaximumDiscount != nil && req.DiscountType == domain.DiscountTypePercentage {
		if !req.MaximumDiscount.IsPositive() {
			return nil, domain.NewBadRequest("Maximum discount must be greater than 0")
		}
		c.MaximumDiscount = req.MaximumDiscount
	}
	if req.UsageLimit != nil && *req.UsageLimit < 1 {
		return nil, domain.NewBadRequest("Usage limit must be at least 1")
	}
	if req.PerUserLimit != nil {
		if *req.PerUserLimit < 1 {
			return nil, domain.NewBadRequest("Per user limit must be at least 1")
		}
		c.PerUserLimit = *req.PerUserLimit
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	return c, nil
}

func (uc *CouponUsecase) CreateCoupon(ctx context.Context, req CouponRequest, adminID string) (*domain.Coupon, error) {
	coupon, err := uc.buildCoupon(req)
	if err != nil {
		return nil, err
	}

	// Check for duplicate code
	if _, err := uc.couponRepo.GetByCode(ctx, coupon.Code); err == nil {
		return nil, domain.NewBadRequest("Coupon code already exists")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, errors.Wrap(err, "check coupon code")
	}

	now := uc.now().UTC()
	coupon.ID = uuid.NewString()
	coupon.UsedBy = []string{}
	coupon.CreatedAt = now
	coupon.UpdatedAt = now
	if adminID != "" {
		coupon.CreatedBy = &adminID
	}

	if err := uc.couponRepo.Create(ctx, coupon); err != nil {
		return nil, errors.Wrap(err, "create coupon")
	}
	logger.WithContext(ctx).Info().Str("coupon_code", coupon.Code).Str("admin_id", adminID).Msg("Coupon created")
	return coupon, nil
}

func (uc *CouponUsecase) ListCoupons(ctx context.Context, page, limit int) ([]domain.Coupon, domain.Pagination, error) {
	page, limit = domain.NormalizePage(page, limit)
	coupons, total, err := uc.couponRepo.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, domain.Pagination{}, errors.Wrap(err, "list coupons")
	}
	return coupons, domain.NewPagination(page, limit, total), nil
}

func (uc *CouponUsecase) GetCoupon(ctx context.Context, id string) (*domain.Coupon, error) {
	coupon, err := uc.couponRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound("Coupon not found")
		}
		return nil, errors.Wrap(err, "get coupon")
	}
	return coupon, nil
}

// UpdateCoupon replaces the editable fields of a coupon. Usage counters are kept.
func (uc *CouponUsecase) UpdateCoupon(ctx context.Context, id string, req CouponRequest) (*domain.Coupon, error) {
	existing, err := uc.GetCoupon(ctx, id)
	if err != nil {
		return nil, err
	}

	coupon, err := uc.buildCoupon(req)
	if err != nil {
		return nil, err
	}

	// Check for duplicate code (if changed)
	if coupon.Code != existing.Code {
		if _, err := uc.couponRepo.GetByCode(ctx, coupon.Code); err == nil {
			return nil, domain.NewBadRequest("Coupon code already exists")
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, errors.Wrap(err, "check coupon code")
		}
	}

	coupon.ID = existing.ID
	coupon.UsageCount = existing.UsageCount
	coupon.UsedBy = existing.UsedBy
	coupon.CreatedBy = existing.CreatedBy
	coupon.CreatedAt = existing.CreatedAt
	coupon.UpdatedAt = uc.now().UTC()
	if req.IsActive == nil {
		coupon.IsActive = existing.IsActive
	}

	if err := uc.couponRepo.Update(ctx, coupon); err != nil {
		return nil, errors.Wrap(err, "update coupon")
	}
	return coupon, nil
}

func (uc *CouponUsecase) DeleteCoupon(ctx context.Context, id string) error {
	if _, err := uc.GetCoupon(ctx, id); err != nil {
		return err
	}
	return uc.couponRepo.Delete(ctx, id)
}

// parseISO8601 parses an ISO8601 date string.
func parseISO8601(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("invalid date format")
}
