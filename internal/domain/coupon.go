package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Coupon struct {
	ID              string           `json:"id"`
	Code            string           `json:"code"`
	Description     string           `json:"description"`
	DiscountType    string           `json:"discountType"` // PERCENTAGE, FIXED
	DiscountValue   decimal.Decimal  `json:"discountValue"`
	MinimumPurchase decimal.Decimal  `json:"minimumPurchase"`
	MaximumDiscount *decimal.Decimal `json:"maximumDiscount"` // percentage coupons only
	ValidFrom       time.Time        `json:"validFrom"`
	ValidTo         time.Time        `json:"validTo"`
	UsageLimit      *int             `json:"usageLimit"`
	UsageCount      int              `json:"usageCount"`
	PerUserLimit    int              `json:"perUserLimit"`
	UsedBy          []string         `json:"usedBy"`
	IsActive        bool             `json:"isActive"`
	CreatedBy       *string          `json:"createdBy"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// UsesBy counts how many times userID redeemed the coupon.
func (c *Coupon) UsesBy(userID string) int {
	n := 0
	for _, id := range c.UsedBy {
		if id == userID {
			n++
		}
	}
	return n
}

func (c *Coupon) ActiveAt(t time.Time) bool {
	return !t.Before(c.ValidFrom) && !t.After(c.ValidTo)
}

// DiscountFor computes the discount this coupon grants on cartTotal, rounded to cents.
// It never exceeds cartTotal.
func (c *Coupon) DiscountFor(cartTotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.DiscountType {
	case DiscountTypePercentage:
		d = cartTotal.Mul(c.DiscountValue).Div(hundred)
		if c.MaximumDiscount != nil && d.GreaterThan(*c.MaximumDiscount) {
			d = *c.MaximumDiscount
		}
	case DiscountTypeFixed:
		d = decimal.Min(c.DiscountValue, cartTotal)
	}
	if d.IsNegative() {
		d = decimal.Zero
	}
	if d.GreaterThan(cartTotal) {
		d = cartTotal
	}
	return d.Round(2)
}

// CouponValidation is the validator verdict. Message is set when Valid is false.
type CouponValidation struct {
	Valid          bool            `json:"valid"`
	Coupon         *Coupon         `json:"coupon,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Message        string          `json:"message,omitempty"`
}

type CouponRepository interface {
	Create(ctx context.Context, coupon *Coupon) error
	GetByID(ctx context.Context, id string) (*Coupon, error)
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context, limit, offset int) ([]Coupon, int64, error)
	Update(ctx context.Context, coupon *Coupon) error
	Delete(ctx context.Context, id string) error
	// IncrementUsage bumps the usage count and appends userID to the redeemer list
	// only while both the global and the per-user caps allow it. Otherwise it
	// returns ErrCouponExhausted.
	IncrementUsage(ctx context.Context, couponID, userID string) error
}
