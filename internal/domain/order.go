package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type OrderFilter struct {
	Page          int
	Limit         int
	UserID        string
	Status        string
	PaymentStatus string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

type ShippingAddress struct {
	Street  string  `json:"street"`
	City    string  `json:"city"`
	State   string  `json:"state"`
	ZipCode string  `json:"zipCode"`
	Country string  `json:"country"`
	Phone   *string `json:"phone,omitempty"`
}

// --- Order Entities ---

type Order struct {
	ID                 string          `json:"id"`
	OrderNumber        string          `json:"orderNumber"`
	UserID             string          `json:"userId"`
	Items              []OrderItem     `json:"items"`
	ShippingAddress    ShippingAddress `json:"shippingAddress"`
	Subtotal           decimal.Decimal `json:"subtotal"` // gross, before product discounts
	TotalDiscount      decimal.Decimal `json:"totalDiscount"`
	CouponID           *string         `json:"couponId"`
	CouponCode         *string         `json:"couponCode"`
	CouponDiscount     decimal.Decimal `json:"couponDiscount"`
	ShippingCost       decimal.Decimal `json:"shippingCost"`
	Total              decimal.Decimal `json:"total"`
	PaymentMethod      string          `json:"paymentMethod"`
	PaymentStatus      string          `json:"paymentStatus"`
	PaymentIntentID    *string         `json:"paymentIntentId"`
	PaymentReference   *string         `json:"paymentReference"`
	Status             string          `json:"status"`
	Notes              *string         `json:"notes"`
	InventoryCommitted bool            `json:"inventoryCommitted"`
	PaidAt             *time.Time      `json:"paidAt"`
	ShippedAt          *time.Time      `json:"shippedAt"`
	DeliveredAt        *time.Time      `json:"deliveredAt"`
	CancelledAt        *time.Time      `json:"cancelledAt"`
	CancellationReason *string         `json:"cancellationReason"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// OrderItem is a snapshot taken at checkout. It never changes afterwards.
type OrderItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// StatusUpdate carries the fields written together with a status change.
// Nil pointers leave the column untouched.
type StatusUpdate struct {
	Status             string
	ShippedAt          *time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason *string
	InventoryCommitted *bool
}

type OrderHistory struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"orderId"`
	PreviousStatus *string   `json:"previousStatus"`
	NewStatus      string    `json:"newStatus"`
	Reason         *string   `json:"reason"`
	CreatedBy      *string   `json:"createdBy"` // UserID
	CreatedAt      time.Time `json:"createdAt"`
}

type OrderStats struct {
	TotalOrders     int64            `json:"totalOrders"`
	ByStatus        map[string]int64 `json:"byStatus"`
	ByPaymentStatus map[string]int64 `json:"byPaymentStatus"`
	PaidRevenue     decimal.Decimal  `json:"paidRevenue"`
	RefundedAmount  decimal.Decimal  `json:"refundedAmount"`
}

// --- Interfaces ---

type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// GetByIDForUpdate reads the order and locks its row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, filter OrderFilter) ([]Order, int64, error)
	// UpdateStatus applies upd only while the order is still in status from.
	// It returns ErrNotFound when the order moved on in between.
	UpdateStatus(ctx context.Context, id, from string, upd StatusUpdate) error
	// MarkPaid flips paymentStatus to PAID unless it already is, reporting
	// whether this call made the change.
	MarkPaid(ctx context.Context, id string, reference *string) (bool, error)
	UpdatePaymentStatus(ctx context.Context, id, status string) error
	SetPaymentIntent(ctx context.Context, id, intentID string) error
	SetInventoryCommitted(ctx context.Context, id string, committed bool) error
	// ListStalePending returns unpaid PENDING orders of method created before cutoff.
	ListStalePending(ctx context.Context, method string, cutoff time.Time, limit int) ([]Order, error)
	Stats(ctx context.Context) (*OrderStats, error)

	CreateHistory(ctx context.Context, history *OrderHistory) error
	GetHistory(ctx context.Context, orderID string) ([]OrderHistory, error)
}
