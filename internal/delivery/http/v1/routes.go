package v1

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shopfront-backend/internal/delivery/http/middleware"
)

// Handlers groups everything the router mounts. Webhook is nil when no card
// processor is configured.
type Handlers struct {
	Cart       *CartHandler
	Coupon     *CouponHandler
	Checkout   *CheckoutHandler
	Order      *OrderHandler
	AdminOrder *AdminOrderHandler
	Payment    *PaymentHandler
	Product    *ProductHandler
	Webhook    *WebhookHandler
	Health     *HealthHandler
}

// RegisterRoutes mounts the API on mux.
func RegisterRoutes(mux *http.ServeMux, h Handlers) {
	auth := func(fn http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(fn)
	}
	admin := func(fn http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(middleware.AdminMiddleware(fn))
	}

	// Public
	mux.HandleFunc("GET /health", h.Health.Health)
	mux.HandleFunc("GET /api/v1/health", h.Health.Health)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/v1/products/{id}", h.Product.GetProduct)
	if h.Webhook != nil {
		mux.HandleFunc("POST /api/v1/webhooks/stripe", h.Webhook.Stripe)
	}

	// Cart
	mux.Handle("GET /api/v1/cart", auth(h.Cart.GetCart))
	mux.Handle("GET /api/v1/cart/summary", auth(h.Cart.GetSummary))
	mux.Handle("POST /api/v1/cart/items", auth(h.Cart.AddItem))
	mux.Handle("PUT /api/v1/cart/items/{productId}", auth(h.Cart.UpdateItem))
	mux.Handle("DELETE /api/v1/cart/items/{productId}", auth(h.Cart.RemoveItem))
	mux.Handle("DELETE /api/v1/cart", auth(h.Cart.Clear))
	mux.Handle("POST /api/v1/cart/coupon", auth(h.Cart.ApplyCoupon))
	mux.Handle("DELETE /api/v1/cart/coupon", auth(h.Cart.RemoveCoupon))
	mux.Handle("POST /api/v1/coupons/validate", auth(h.Coupon.Validate))

	// Checkout & Orders
	mux.Handle("POST /api/v1/checkout", auth(h.Checkout.Checkout))
	mux.Handle("GET /api/v1/orders", auth(h.Order.ListMyOrders))
	mux.Handle("GET /api/v1/orders/{id}", auth(h.Order.GetOrder))
	mux.Handle("PATCH /api/v1/orders/{id}/cancel", auth(h.Order.CancelOrder))

	// Payments
	mux.Handle("POST /api/v1/payments/intents", auth(h.Payment.CreateIntent))
	mux.Handle("GET /api/v1/payments/intents/{id}", auth(h.Payment.GetIntent))
	mux.Handle("POST /api/v1/payments/intents/{id}/confirm", auth(h.Payment.ConfirmIntent))

	// Admin
	mux.Handle("GET /api/v1/admin/orders", admin(h.AdminOrder.ListOrders))
	mux.Handle("GET /api/v1/admin/orders/stats", admin(h.AdminOrder.GetStats))
	mux.Handle("GET /api/v1/admin/orders/{id}", admin(h.Order.GetOrder))
	mux.Handle("PATCH /api/v1/admin/orders/{id}/status", admin(h.AdminOrder.UpdateStatus))
	mux.Handle("GET /api/v1/admin/orders/{id}/history", admin(h.AdminOrder.GetOrderHistory))
	mux.Handle("POST /api/v1/admin/orders/{id}/refund", admin(h.Payment.RefundOrder))
	mux.Handle("POST /api/v1/admin/payments/{id}/collect", admin(h.Payment.CollectCash))

	mux.Handle("GET /api/v1/admin/coupons", admin(h.Coupon.ListCoupons))
	mux.Handle("POST /api/v1/admin/coupons", admin(h.Coupon.CreateCoupon))
	mux.Handle("GET /api/v1/admin/coupons/{id}", admin(h.Coupon.GetCoupon))
	mux.Handle("PUT /api/v1/admin/coupons/{id}", admin(h.Coupon.UpdateCoupon))
	mux.Handle("DELETE /api/v1/admin/coupons/{id}", admin(h.Coupon.DeleteCoupon))

	mux.Handle("PATCH /api/v1/admin/products/{id}/stock", admin(h.Product.AdjustStock))
}
