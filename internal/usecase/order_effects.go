package usecase

import (
	"context"

	"github.com/go-faster/errors"

	"shopfront-backend/internal/domain"
	"shopfront-backend/pkg/logger"
)

// orderEffects applies the side effects an order has on shared resources.
// Callers run it inside a transaction.
type orderEffects struct {
	orderRepo   domain.OrderRepository
	productRepo domain.ProductRepository
	couponRepo  domain.CouponRepository
	cartRepo    domain.CartRepository
	outboxRepo  domain.OutboxRepository
}

type commitMode int

const (
	// commitStrict fails on insufficient stock or an exhausted coupon.
	commitStrict commitMode = iota
	// commitSettled is used once money was taken: stock is clamped at zero and
	// an exhausted coupon is logged and skipped.
	commitSettled
)

// commitInventory deducts stock, consumes the coupon, clears the cart and marks
// the order as committed.
func (e *orderEffects) commitInventory(ctx context.Context, order *domain.Order, mode commitMode, reason string) error {
	log := logger.WithContext(ctx)

	guard := domain.StockGuardStrict
	if mode == commitSettled {
		guard = domain.StockGuardFloor
	}

	// 1. Stock
	for _, item := range order.Items {
		_, err := e.productRepo.AdjustStock(ctx, domain.StockAdjustment{
			ProductID:   item.ProductID,
			Delta:       -item.Quantity,
			Guard:       guard,
			Reason:      reason,
			ReferenceID: &order.ID,
		})
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				return domain.NewBadRequest("Insufficient stock for %s", item.ProductName).WithCause(err)
			}
			if errors.Is(err, domain.ErrNotFound) {
				if mode == commitSettled {
					log.Warn().Str("product_id", item.ProductID).Str("order_id", order.ID).Msg("Product gone while committing paid order")
					continue
				}
				return domain.NewNotFound("Product %s not found", item.ProductID)
			}
			return errors.Wrapf(err, "adjust stock for %s", item.ProductID)
		}
	}

	// 2. Coupon usage
	if order.CouponID != nil {
		err := e.couponRepo.IncrementUsage(ctx, *order.CouponID, order.UserID)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrCouponExhausted) && mode == commitSettled:
			log.Warn().Str("coupon_id", *order.CouponID).Str("order_id", order.ID).Msg("Coupon cap reached before paid order was committed")
		case errors.Is(err, domain.ErrCouponExhausted):
			return domain.NewBadRequest("Coupon usage limit reached").WithCause(err)
		case errors.Is(err, domain.ErrNotFound):
			log.Warn().Str("coupon_id", *order.CouponID).Msg("Coupon deleted before order was committed")
		default:
			return errors.Wrap(err, "increment coupon usage")
		}
	}

	// 3. Cart
	if err := e.cartRepo.Clear(ctx, order.UserID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return errors.Wrap(err, "clear cart")
	}

	// 4. Flag
	if err := e.orderRepo.SetInventoryCommitted(ctx, order.ID, true); err != nil {
		return errors.Wrap(err, "mark inventory committed")
	}
	order.InventoryCommitted = true
	return nil
}

// restoreStock puts the order's quantities back on the shelf.
func (e *orderEffects) restoreStock(ctx context.Context, order *domain.Order) error {
	for _, item := range order.Items {
		_, err := e.productRepo.AdjustStock(ctx, domain.StockAdjustment{
			ProductID:   item.ProductID,
			Delta:       item.Quantity,
			Guard:       domain.StockGuardFloor,
			Reason:      domain.StockReasonOrderCancelled,
			ReferenceID: &order.ID,
		})
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.WithContext(ctx).Warn().Str("product_id", item.ProductID).Msg("Cannot restock deleted product")
				continue
			}
			return errors.Wrapf(err, "restock %s", item.ProductID)
		}
	}
	return nil
}

func (e *orderEffects) publish(ctx context.Context, order *domain.Order, eventType, reason string) error {
	ev, err := domain.NewOutboxEvent(order.ID, eventType, domain.NewOrderEvent(order, reason))
	if err != nil {
		return err
	}
	if err := e.outboxRepo.Enqueue(ctx, ev); err != nil {
		return errors.Wrap(err, "enqueue event")
	}
	return nil
}

func (e *orderEffects) history(ctx context.Context, orderID string, previous *string, next, reason string, actorID *string) error {
	h := &domain.OrderHistory{
		OrderID:        orderID,
		PreviousStatus: previous,
		NewStatus:      next,
		CreatedBy:      actorID,
	}
	if reason != "" {
		h.Reason = &reason
	}
	if err := e.orderRepo.CreateHistory(ctx, h); err != nil {
		return errors.Wrap(err, "record history")
	}
	return nil
}
