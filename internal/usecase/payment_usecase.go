package usecase

import (
	"context"

	"github.com/go-faster/errors"

	"shopfront-backend/internal/domain"
	"shopfront-backend/internal/payment"
	"shopfront-backend/pkg/cache"
	"shopfront-backend/pkg/logger"
)

// directIntentCreator is implemented by strategies that can start an embedded
// card payment for an existing order.
type directIntentCreator interface {
	CreateDirectIntent(ctx context.Context, order *domain.Order, currency string) (*domain.PaymentIntent, error)
}

// PaymentUsecase covers the payment operations that happen after checkout.
type PaymentUsecase struct {
	orderRepo  domain.OrderRepository
	intentRepo domain.PaymentIntentRepository
	payments   *payment.Registry
	finalizer  *PaymentFinalizer
	effects    *orderEffects
	txManager  domain.TransactionManager
	cache      cache.CacheService
	currency   string
}

func NewPaymentUsecase(
	orderRepo domain.OrderRepository,
	intentRepo domain.PaymentIntentRepository,
	productRepo domain.ProductRepository,
	outboxRepo domain.OutboxRepository,
	payments *payment.Registry,
	finalizer *PaymentFinalizer,
	txManager domain.TransactionManager,
	cacheService cache.CacheService,
	currency string,
) *PaymentUsecase {
	return &PaymentUsecase{
		orderRepo:  orderRepo,
		intentRepo: intentRepo,
		payments:   payments,
		finalizer:  finalizer,
		effects: &orderEffects{
			orderRepo:   orderRepo,
			productRepo: productRepo,
			outboxRepo:  outboxRepo,
		},
		txManager: txManager,
		cache:     cacheService,
		currency:  currency,
	}
}

func (u *PaymentUsecase) getIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	intent, err := u.intentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound("Payment intent not found")
		}
		return nil, errors.Wrap(err, "get payment intent")
	}
	return intent, nil
}

func (u *PaymentUsecase) getOrder(ctx context.Context, id string) (*domain.Order, error) {
	return loadOrder(u.orderRepo.GetByID(ctx, id))
}

// GetIntent returns an intent to its owner or to an admin.
func (u *PaymentUsecase) GetIntent(ctx context.Context, id string, user *domain.User) (*domain.PaymentIntent, error) {
	intent, err := u.getIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() && intent.UserID != user.ID {
		return nil, domain.NewForbidden("Forbidden")
	}
	return intent, nil
}

// CreateDirectIntent starts an embedded card payment for an unpaid card order.
func (u *PaymentUsecase) CreateDirectIntent(ctx context.Context, orderID, userID string) (*domain.PaymentIntent, error) {
	order, err := u.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.NewForbidden("You can only pay for your own orders")
	}
	if order.PaymentMethod != domain.PaymentMethodStripe {
		return nil, domain.NewBadRequest("Order is not payable by card")
	}
	if order.PaymentStatus == domain.PaymentStatusPaid {
		return nil, domain.NewBadRequest("Order is already paid")
	}
	if domain.IsTerminalOrderStatus(order.Status) {
		return nil, domain.NewBadRequest("Cannot pay for order with status %s", order.Status)
	}

	// Reuse an open direct intent
	latest, err := u.intentRepo.FindLatestByOrderID(ctx, orderID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, errors.Wrap(err, "find payment intent")
	}
	if latest != nil && latest.ClientSecret != nil && !latest.IsTerminal() {
		return latest, nil
	}

	strategy, err := u.payments.Get(domain.PaymentMethodStripe)
	if err != nil {
		return nil, err
	}
	direct, ok := strategy.(directIntentCreator)
	if !ok {
		return nil, domain.NewBadRequest("Direct card payments are not available")
	}

	var intent *domain.PaymentIntent
	err = u.txManager.Do(ctx, func(txCtx context.Context) error {
		in, err := direct.CreateDirectIntent(txCtx, order, u.currency)
		if err != nil {
			return err
		}
		intent = in
		if err := u.orderRepo.SetPaymentIntent(txCtx, order.ID, in.ID); err != nil {
			return errors.Wrap(err, "link payment intent")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}

// ConfirmIntent lets the owner poll the processor for a card payment.
func (u *PaymentUsecase) ConfirmIntent(ctx context.Context, intentID, userID string) (*payment.ConfirmResult, error) {
	intent, err := u.getIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.UserID != userID {
		return nil, domain.NewForbidden("Forbidden")
	}
	if intent.Method != domain.PaymentMethodStripe {
		return nil, domain.NewBadRequest("Only STRIPE payments can be confirmed by users")
	}

	strategy, err := u.payments.Get(intent.Method)
	if err != nil {
		return nil, err
	}
	res, err := strategy.Confirm(ctx, intent, userID)
	if err != nil {
		return nil, err
	}
	if res.Succeeded {
		if _, err := u.finalizer.Finalize(ctx, intent.OrderID, res.ProviderReference); err != nil {
			return nil, err
		}
		u.cache.Delete(orderStatsCacheKey)
	}
	return res, nil
}

// CollectCashPayment records that staff collected a cash on delivery payment.
func (u *PaymentUsecase) CollectCashPayment(ctx context.Context, intentID, adminID string) (*payment.ConfirmResult, error) {
	intent, err := u.getIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Method != domain.PaymentMethodCOD {
		return nil, domain.NewBadRequest("Payment intent is not COD")
	}

	strategy, err := u.payments.Get(intent.Method)
	if err != nil {
		return nil, err
	}

	var res *payment.ConfirmResult
	err = u.txManager.Do(ctx, func(txCtx context.Context) error {
		r, err := strategy.Confirm(txCtx, intent, adminID)
		if err != nil {
			return err
		}
		res = r
		_, err = u.finalizer.Finalize(txCtx, intent.OrderID, r.ProviderReference)
		return err
	})
	if err != nil {
		return nil, err
	}

	u.cache.Delete(orderStatsCacheKey)
	logger.WithContext(ctx).Info().Str("intent_id", intentID).Str("admin_id", adminID).Msg("Cash payment collected")
	return res, nil
}

type RefundResult struct {
	RefundID string        `json:"refundId"`
	Status   string        `json:"status"`
	Order    *domain.Order `json:"order"`
}

// RefundOrder refunds a paid card order in full.
func (u *PaymentUsecase) RefundOrder(ctx context.Context, orderID, adminID string) (*RefundResult, error) {
	order, err := u.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != domain.PaymentMethodStripe {
		return nil, domain.NewBadRequest("Refunds are only supported for card payments")
	}
	if order.PaymentStatus != domain.PaymentStatusPaid {
		return nil, domain.NewBadRequest("Only paid orders can be refunded")
	}

	intent, err := u.intentRepo.FindLatestByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewBadRequest("Card payment intent not found for this order")
		}
		return nil, errors.Wrap(err, "find payment intent")
	}

	strategy, err := u.payments.Get(order.PaymentMethod)
	if err != nil {
		return nil, err
	}

	// 1. Processor refund. The idempotency key makes a retry after a failed commit safe.
	refund, err := strategy.Refund(ctx, intent)
	if err != nil {
		return nil, err
	}

	// 2. Order bookkeeping
	var updated *domain.Order
	err = u.txManager.Do(ctx, func(txCtx context.Context) error {
		current, err := loadOrder(u.orderRepo.GetByIDForUpdate(txCtx, orderID))
		if err != nil {
			return err
		}
		if err := u.orderRepo.UpdatePaymentStatus(txCtx, orderID, domain.PaymentStatusRefunded); err != nil {
			return errors.Wrap(err, "mark payment refunded")
		}

		upd := domain.StatusUpdate{Status: domain.OrderStatusRefunded}
		unshipped := current.Status == domain.OrderStatusPending ||
			current.Status == domain.OrderStatusConfirmed ||
			current.Status == domain.OrderStatusProcessing
		if unshipped && current.InventoryCommitted {
			if err := u.effects.restoreStock(txCtx, current); err != nil {
				return err
			}
			released := false
			upd.InventoryCommitted = &released
		}
		if current.Status != domain.OrderStatusRefunded {
			if err := u.orderRepo.UpdateStatus(txCtx, orderID, current.Status, upd); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return domain.NewConflict("Order was modified concurrently, please retry")
				}
				return errors.Wrap(err, "mark order refunded")
			}
			prev := current.Status
			if err := u.effects.history(txCtx, orderID, &prev, domain.OrderStatusRefunded, "Payment refunded", &adminID); err != nil {
				return err
			}
		}

		updated, err = u.getOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		return u.effects.publish(txCtx, updated, domain.EventOrderRefunded, refund.ID)
	})
	if err != nil {
		logger.WithContext(ctx).Error().Err(err).Str("order_id", orderID).Str("refund_id", refund.ID).Msg("Refund issued but order update failed")
		return nil, err
	}

	u.cache.Delete(orderStatsCacheKey)
	logger.WithContext(ctx).Info().Str("order_id", orderID).Str("refund_id", refund.ID).Msg("Order refunded")
	return &RefundResult{RefundID: refund.ID, Status: refund.Status, Order: updated}, nil
}
