package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// --- Cart Entities ---

type Cart struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Items          []CartItem      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TotalDiscount  decimal.Decimal `json:"totalDiscount"`
	CouponID       *string         `json:"couponId"`
	CouponCode     *string         `json:"couponCode"`
	CouponDiscount decimal.Decimal `json:"couponDiscount"`
	Total          decimal.Decimal `json:"total"`
	IsActive       bool            `json:"isActive"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type CartItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`    // unit price when added
	Discount    decimal.Decimal `json:"discount"` // percent when added
	Total       decimal.Decimal `json:"total"`
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) FindItem(productID string) (int, bool) {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i, true
		}
	}
	return -1, false
}

func (c *Cart) HasCoupon() bool {
	return c.CouponID != nil
}

// DetachCoupon clears the coupon reference. Totals must be recomputed afterwards.
func (c *Cart) DetachCoupon() {
	c.CouponID = nil
	c.CouponCode = nil
	c.CouponDiscount = decimal.Zero
}

// CartSummary is the lightweight view used by the header badge.
type CartSummary struct {
	ItemCount      int             `json:"itemCount"`
	LineCount      int             `json:"lineCount"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TotalDiscount  decimal.Decimal `json:"totalDiscount"`
	CouponCode     *string         `json:"couponCode"`
	CouponDiscount decimal.Decimal `json:"couponDiscount"`
	Total          decimal.Decimal `json:"total"`
}

type CartRepository interface {
	// GetOrCreate returns the active cart of userID, creating an empty one if needed.
	GetOrCreate(ctx context.Context, userID string) (*Cart, error)
	// GetActiveByUserID returns ErrNotFound when the user has no active cart.
	GetActiveByUserID(ctx context.Context, userID string) (*Cart, error)
	// Save replaces the items and derived totals of cart.
	Save(ctx context.Context, cart *Cart) error
	// Clear empties the active cart of userID and detaches its coupon.
	Clear(ctx context.Context, userID string) error
}
