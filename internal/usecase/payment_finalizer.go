package usecase

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"shopfront-backend/internal/domain"
	"shopfront-backend/internal/infrastructure/metrics"
	"shopfront-backend/pkg/logger"
)

// PaymentFinalizer commits the effects of a successful payment exactly once
// per order, however many times it is invoked.
type PaymentFinalizer struct {
	orderRepo domain.OrderRepository
	effects   *orderEffects
	txManager domain.TransactionManager
}

func NewPaymentFinalizer(
	orderRepo domain.OrderRepository,
	productRepo domain.ProductRepository,
	couponRepo domain.CouponRepository,
	cartRepo domain.CartRepository,
	outboxRepo domain.OutboxRepository,
	txManager domain.TransactionManager,
) *PaymentFinalizer {
	return &PaymentFinalizer{
		orderRepo: orderRepo,
		effects: &orderEffects{
			orderRepo:   orderRepo,
			productRepo: productRepo,
			couponRepo:  couponRepo,
			cartRepo:    cartRepo,
			outboxRepo:  outboxRepo,
		},
		txManager: txManager,
	}
}

// Finalize marks orderID paid and commits its inventory unless that already
// happened. It reports whether this call did the work.
func (f *PaymentFinalizer) Finalize(ctx context.Context, orderID string, providerRef *string) (bool, error) {
	log := logger.WithContext(ctx)
	var applied bool
	var method string

	err := f.txManager.Do(ctx, func(txCtx context.Context) error {
		applied = false

		// 1. Load and lock the order so a concurrent cancel waits for us
		order, err := f.orderRepo.GetByIDForUpdate(txCtx, orderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewNotFound("Order not found")
			}
			return errors.Wrap(err, "get order")
		}
		method = order.PaymentMethod

		// 2. Guard: the conditional update is the real de-duplication point
		if order.PaymentStatus == domain.PaymentStatusPaid {
			return nil
		}
		changed, err := f.orderRepo.MarkPaid(txCtx, orderID, providerRef)
		if err != nil {
			return errors.Wrap(err, "mark order paid")
		}
		if !changed {
			return nil
		}
		applied = true
		now := time.Now().UTC()
		order.PaymentStatus = domain.PaymentStatusPaid
		order.PaymentReference = providerRef
		order.PaidAt = &now

		// 3. Inventory, coupon and cart
		switch {
		case order.Status == domain.OrderStatusCancelled:
			log.Warn().Str("order_id", orderID).Msg("Payment received for cancelled order, inventory not committed")
		case order.InventoryCommitted:
			// committed at checkout
		default:
			if err := f.effects.commitInventory(txCtx, order, commitSettled, domain.StockReasonPaymentSettled); err != nil {
				return err
			}
		}

		// 4. A paid PENDING order is confirmed
		if order.Status == domain.OrderStatusPending {
			if err := f.orderRepo.UpdateStatus(txCtx, orderID, domain.OrderStatusPending, domain.StatusUpdate{Status: domain.OrderStatusConfirmed}); err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					return errors.Wrap(err, "confirm order")
				}
			} else {
				prev := domain.OrderStatusPending
				order.Status = domain.OrderStatusConfirmed
				metrics.OrderTransitionsTotal.WithLabelValues(prev, order.Status).Inc()
				if err := f.effects.history(txCtx, orderID, &prev, order.Status, "Payment received", nil); err != nil {
					return err
				}
			}
		}

		// 5. Event
		return f.effects.publish(txCtx, order, domain.EventOrderPaid, "")
	})
	if err != nil {
		metrics.PaymentsFinalizedTotal.WithLabelValues(method, "error").Inc()
		return false, err
	}

	outcome := "duplicate"
	if applied {
		outcome = "finalized"
		log.Info().Str("order_id", orderID).Msg("Payment finalized")
	}
	metrics.PaymentsFinalizedTotal.WithLabelValues(method, outcome).Inc()
	return applied, nil
}
