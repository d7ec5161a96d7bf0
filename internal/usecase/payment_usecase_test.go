package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfront-backend/internal/domain"
	"shopfront-backend/internal/payment"
)

// cardOrder checks out two kettles with a coupon on card and returns the result.
func cardOrder(t *testing.T, f *fixture) (*CheckoutResult, *domain.Product, *domain.Coupon) {
	t.Helper()
	ctx := context.Background()
	p := f.addProduct(t, "Kettle", "100", "10", 10)
	c := f.addCoupon(t, "SAVE10", domain.DiscountTypePercentage, "10", nil)
	_, err := f.carts.AddItem(ctx, "u1", p.ID, 2)
	require.NoError(t, err)
	_, err = f.carts.ApplyCoupon(ctx, "u1", "SAVE10")
	require.NoError(t, err)
	return f.checkoutWith(t, "u1", domain.PaymentMethodStripe), p, c
}

func TestFinalizeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, p, c := cardOrder(t, f)
	ref := "pi_123"

	applied, err := f.finalizer.Finalize(ctx, res.Order.ID, &ref)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = f.finalizer.Finalize(ctx, res.Order.ID, &ref)
	require.NoError(t, err)
	assert.False(t, applied)

	o := f.order(t, res.Order.ID)
	assert.Equal(t, domain.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, domain.OrderStatusConfirmed, o.Status)
	assert.True(t, o.InventoryCommitted)
	require.NotNil(t, o.PaidAt)
	require.NotNil(t, o.PaymentReference)
	assert.Equal(t, ref, *o.PaymentReference)

	assert.Equal(t, 8, f.stock(t, p.ID))
	assert.Equal(t, 1, f.coupon(t, c.ID).UsageCount)

	cart, err := f.carts.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	assert.Equal(t, []string{domain.EventOrderCreated, domain.EventOrderPaid}, f.db.eventTypes())
}

func TestFinalizeAfterStockRanOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, p, _ := cardOrder(t, f)
	f.setProduct(p.ID, func(p *domain.Product) { p.Stock = 1 })

	applied, err := f.finalizer.Finalize(ctx, res.Order.ID, nil)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 0, f.stock(t, p.ID))
	assert.Equal(t, domain.PaymentStatusPaid, f.order(t, res.Order.ID).PaymentStatus)
}

func TestFinalizeUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.finalizer.Finalize(context.Background(), "missing", nil)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestConfirmIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, p, _ := cardOrder(t, f)

	// a hosted checkout intent has no processor intent until the session completes
	_, err := f.payments.ConfirmIntent(ctx, res.Payment.PaymentIntentID, "u1")
	assert.Equal(t, "Payment has not been started with the processor yet", domain.PublicMessage(err))

	direct, err := f.payments.CreateDirectIntent(ctx, res.Order.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, direct.ClientSecret)

	again, err := f.payments.CreateDirectIntent(ctx, res.Order.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, direct.ID, again.ID)

	_, err = f.payments.ConfirmIntent(ctx, direct.ID, "u2")
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	_, err = f.payments.ConfirmIntent(ctx, direct.ID, "u1")
	assert.Equal(t, "Payment method is required", domain.PublicMessage(err))

	f.provider.intentStatus[*direct.ProviderIntentID] = payment.ProviderStatusSucceeded
	out, err := f.payments.ConfirmIntent(ctx, direct.ID, "u1")
	require.NoError(t, err)
	assert.True(t, out.Succeeded)

	o := f.order(t, res.Order.ID)
	assert.Equal(t, domain.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, domain.OrderStatusConfirmed, o.Status)
	assert.Equal(t, 8, f.stock(t, p.ID))

	_, err = f.payments.CreateDirectIntent(ctx, res.Order.ID, "u1")
	assert.Equal(t, "Order is already paid", domain.PublicMessage(err))
}

func TestCollectCashPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Kettle", "100", "0", 10)
	_, err := f.carts.AddItem(ctx, "u1", p.ID, 2)
	require.NoError(t, err)
	cod := f.checkoutWith(t, "u1", domain.PaymentMethodCOD)
	assert.Equal(t, 8, f.stock(t, p.ID))

	out, err := f.payments.CollectCashPayment(ctx, cod.Payment.PaymentIntentID, "admin-1")
	require.NoError(t, err)
	assert.True(t, out.Succeeded)

	o := f.order(t, cod.Order.ID)
	assert.Equal(t, domain.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, domain.OrderStatusConfirmed, o.Status)
	// committed at checkout, not again on collection
	assert.Equal(t, 8, f.stock(t, p.ID))

	intent, err := f.payments.GetIntent(ctx, cod.Payment.PaymentIntentID, &domain.User{ID: "admin-1", Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusSucceeded, intent.Status)
	assert.Equal(t, "admin-1", intent.Metadata["collectedBy"])
	require.NotNil(t, intent.CollectedAt)

	_, err = f.payments.CollectCashPayment(ctx, cod.Payment.PaymentIntentID, "admin-1")
	assert.Equal(t, "Payment already collected", domain.PublicMessage(err))

	_, err = f.payments.GetIntent(ctx, cod.Payment.PaymentIntentID, &domain.User{ID: "u2", Role: domain.RoleUser})
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestCollectCashRejectsCardIntent(t *testing.T) {
	f := newFixture(t)
	res, _, _ := cardOrder(t, f)
	_, err := f.payments.CollectCashPayment(context.Background(), res.Payment.PaymentIntentID, "admin-1")
	assert.Equal(t, "Payment intent is not COD", domain.PublicMessage(err))
}

func TestRefundOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, p, _ := cardOrder(t, f)

	_, err := f.payments.RefundOrder(ctx, res.Order.ID, "admin-1")
	assert.Equal(t, "Only paid orders can be refunded", domain.PublicMessage(err))

	direct, err := f.payments.CreateDirectIntent(ctx, res.Order.ID, "u1")
	require.NoError(t, err)
	f.provider.intentStatus[*direct.ProviderIntentID] = payment.ProviderStatusSucceeded
	_, err = f.payments.ConfirmIntent(ctx, direct.ID, "u1")
	require.NoError(t, err)
	require.Equal(t, 8, f.stock(t, p.ID))

	out, err := f.payments.RefundOrder(ctx, res.Order.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "re_"+*direct.ProviderIntentID, out.RefundID)
	assert.Equal(t, domain.OrderStatusRefunded, out.Order.Status)
	assert.Equal(t, domain.PaymentStatusRefunded, out.Order.PaymentStatus)
	assert.False(t, out.Order.InventoryCommitted)
	assert.Equal(t, 10, f.stock(t, p.ID))
	assert.Equal(t, []string{*direct.ProviderIntentID}, f.provider.refunds)

	_, err = f.payments.RefundOrder(ctx, res.Order.ID, "admin-1")
	assert.Equal(t, "Only paid orders can be refunded", domain.PublicMessage(err))
}

func TestRefundRejectsCashOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Kettle", "100", "0", 10)
	_, err := f.carts.AddItem(ctx, "u1", p.ID, 1)
	require.NoError(t, err)
	cod := f.checkoutWith(t, "u1", domain.PaymentMethodCOD)

	_, err = f.payments.RefundOrder(ctx, cod.Order.ID, "admin-1")
	assert.Equal(t, "Refunds are only supported for card payments", domain.PublicMessage(err))
}
