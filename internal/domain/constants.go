package domain

// Order Statuses
const (
	OrderStatusPending    = "PENDING"
	OrderStatusConfirmed  = "CONFIRMED"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusShipped    = "SHIPPED"
	OrderStatusDelivered  = "DELIVERED"
	OrderStatusCancelled  = "CANCELLED"
	OrderStatusRefunded   = "REFUNDED"
)

// Payment Statuses (order level)
const (
	PaymentStatusPending  = "PENDING"
	PaymentStatusPaid     = "PAID"
	PaymentStatusFailed   = "FAILED"
	PaymentStatusRefunded = "REFUNDED"
)

// Payment Intent Statuses
const (
	IntentStatusPending    = "PENDING"
	IntentStatusProcessing = "PROCESSING"
	IntentStatusSucceeded  = "SUCCEEDED"
	IntentStatusFailed     = "FAILED"
	IntentStatusCancelled  = "CANCELLED"
)

// Payment Methods
const (
	PaymentMethodStripe = "STRIPE"
	PaymentMethodCOD    = "COD"
)

// Coupon discount types
const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED"
)

// Roles carried in access tokens
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Outbox event types
const (
	EventOrderCreated       = "order.created"
	EventOrderPaid          = "order.paid"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderRefunded      = "order.refunded"
	EventPaymentFailed      = "payment.failed"
)

// Inventory log reasons
const (
	StockReasonOrderPlaced    = "order_placed"
	StockReasonPaymentSettled = "payment_settled"
	StockReasonOrderCancelled = "order_cancelled"
	StockReasonManual         = "manual_adjustment"
)

// Limits
const (
	MaxNotesLength          = 500
	MaxCouponDescription    = 200
	MinCouponCodeLength     = 3
	MaxCouponCodeLength     = 50
	DefaultPageLimit        = 10
	MaxPageLimit            = 100
	DefaultCouponPerUserCap = 1
)

var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

var PaymentMethods = []string{
	PaymentMethodStripe,
	PaymentMethodCOD,
}
