package usecase

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"shopfront-backend/internal/domain"
	"shopfront-backend/internal/infrastructure/metrics"
	"shopfront-backend/pkg/cache"
	"shopfront-backend/pkg/logger"
)

const orderStatsCacheKey = "stats:orders"

// OrderUsecase is the order status machine plus order queries.
type OrderUsecase struct {
	orderRepo  domain.OrderRepository
	intentRepo domain.PaymentIntentRepository
	effects    *orderEffects
	txManager  domain.TransactionManager
	cache      cache.CacheService
	statsTTL   time.Duration
	now        func() time.Time
}

func NewOrderUsecase(
	orderRepo domain.OrderRepository,
	productRepo domain.ProductRepository,
	intentRepo domain.PaymentIntentRepository,
	outboxRepo domain.OutboxRepository,
	txManager domain.TransactionManager,
	cacheService cache.CacheService,
	statsTTL time.Duration,
) *OrderUsecase {
	return &OrderUsecase{
		orderRepo:  orderRepo,
		intentRepo: intentRepo,
		effects: &orderEffects{
			orderRepo:   orderRepo,
			productRepo: productRepo,
			outboxRepo:  outboxRepo,
		},
		txManager: txManager,
		cache:     cacheService,
		statsTTL:  statsTTL,
		now:       time.Now,
	}
}

func (u *OrderUsecase) getOrder(ctx context.Context, id string) (*domain.Order, error) {
	return loadOrder(u.orderRepo.GetByID(ctx, id))
}

// lockOrder is getOrder for callers about to decide a transition.
func (u *OrderUsecase) lockOrder(ctx context.Context, id string) (*domain.Order, error) {
	return loadOrder(u.orderRepo.GetByIDForUpdate(ctx, id))
}

func loadOrder(order *domain.Order, err error) (*domain.Order, error) {
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound("Order not found")
		}
		return nil, errors.Wrap(err, "get order")
	}
	return order, nil
}

// GetOrder returns an order to its owner or to an admin.
func (u *OrderUsecase) GetOrder(ctx context.Context, id string, user *domain.User) (*domain.Order, error) {
	order, err := u.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() && order.UserID != user.ID {
		return nil, domain.NewForbidden("You can only view your own orders")
	}
	return order, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID string, page, limit int, status string) ([]domain.Order, domain.Pagination, error) {
	return u.ListOrders(ctx, domain.OrderFilter{Page: page, Limit: limit, UserID: userID, Status: status})
}

func (u *OrderUsecase) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, domain.Pagination, error) {
	if filter.Status != "" && !domain.IsValidOrderStatus(filter.Status) {
		return nil, domain.Pagination{}, domain.NewBadRequest("Invalid order status: %s", filter.Status)
	}
	filter.Page, filter.Limit = domain.NormalizePage(filter.Page, filter.Limit)

	orders, total, err := u.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, domain.Pagination{}, errors.Wrap(err, "list orders")
	}
	return orders, domain.NewPagination(filter.Page, filter.Limit, total), nil
}

func (u *OrderUsecase) GetOrderHistory(ctx context.Context, orderID string) ([]domain.OrderHistory, error) {
	if _, err := u.getOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return u.orderRepo.GetHistory(ctx, orderID)
}

// GetStats returns order statistics, served from cache while fresh.
func (u *OrderUsecase) GetStats(ctx context.Context) (*domain.OrderStats, error) {
	if cached, found := u.cache.Get(orderStatsCacheKey); found {
		if stats, ok := cached.(*domain.OrderStats); ok {
			return stats, nil
		}
	}

	stats, err := u.orderRepo.Stats(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "order stats")
	}
	u.cache.Set(orderStatsCacheKey, stats, u.statsTTL)
	return stats, nil
}

// UpdateStatus is the staff entry point of the status machine.
func (u *OrderUsecase) UpdateStatus(ctx context.Context, orderID, newStatus, reason, actorID string) (*domain.Order, error) {
	if !domain.IsValidOrderStatus(newStatus) {
		return nil, domain.NewBadRequest("Invalid order status: %s", newStatus)
	}

	var updated *domain.Order
	err := u.txManager.Do(ctx, func(txCtx context.Context) error {
		order, err := u.lockOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		updated, err = u.transition(txCtx, order, newStatus, reason, &actorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	u.cache.Delete(orderStatsCacheKey)
	return updated, nil
}

// CancelOrder lets the owner cancel while the order is PENDING or CONFIRMED.
func (u *OrderUsecase) CancelOrder(ctx context.Context, orderID, userID, reason string) (*domain.Order, error) {
	var updated *domain.Order
	err := u.txManager.Do(ctx, func(txCtx context.Context) error {
		order, err := u.lockOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return domain.NewForbidden("You can only cancel your own orders")
		}
		if !domain.CustomerCancellable(order.Status) {
			return domain.NewBadRequest("Cannot cancel order with status %s. Only PENDING or CONFIRMED orders can be cancelled.", order.Status)
		}
		updated, err = u.transition(txCtx, order, domain.OrderStatusCancelled, reason, &userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	u.cache.Delete(orderStatsCacheKey)
	return updated, nil
}

// transition moves order to status `to` with its side effects. Callers hold a
// transaction and read order through lockOrder.
func (u *OrderUsecase) transition(ctx context.Context, order *domain.Order, to, reason string, actorID *string) (*domain.Order, error) {
	from := order.Status
	if !domain.CanTransition(from, to) {
		return nil, domain.NewBadRequest("Cannot change status from %s to %s", from, to)
	}

	now := u.now().UTC()
	upd := domain.StatusUpdate{Status: to}

	switch to {
	case domain.OrderStatusCancelled:
		if order.InventoryCommitted {
			if err := u.effects.restoreStock(ctx, order); err != nil {
				return nil, err
			}
			released := false
			upd.InventoryCommitted = &released
		}
		upd.CancelledAt = &now
		if reason != "" {
			upd.CancellationReason = &reason
		}
		if err := u.cancelOpenIntent(ctx, order.ID); err != nil {
			return nil, err
		}
	case domain.OrderStatusShipped:
		if order.ShippedAt == nil {
			upd.ShippedAt = &now
		}
	case domain.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			upd.DeliveredAt = &now
		}
	}

	if err := u.orderRepo.UpdateStatus(ctx, order.ID, from, upd); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewConflict("Order was modified concurrently, please retry")
		}
		return nil, errors.Wrap(err, "update order status")
	}

	if err := u.effects.history(ctx, order.ID, &from, to, reason, actorID); err != nil {
		return nil, err
	}

	updated, err := u.getOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if err := u.effects.publish(ctx, updated, domain.EventOrderStatusChanged, reason); err != nil {
		return nil, err
	}

	metrics.OrderTransitionsTotal.WithLabelValues(from, to).Inc()
	logger.WithContext(ctx).Info().
		Str("order_id", order.ID).
		Str("from", from).
		Str("to", to).
		Msg("Order status changed")
	return updated, nil
}

func (u *OrderUsecase) cancelOpenIntent(ctx context.Context, orderID string) error {
	intent, err := u.intentRepo.FindLatestByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "find payment intent")
	}
	if intent.IsTerminal() {
		return nil
	}
	if err := u.intentRepo.UpdateStatus(ctx, intent.ID, domain.IntentUpdate{
		Status:   domain.IntentStatusCancelled,
		Metadata: domain.JSONB{"cancelledWithOrder": true},
	}); err != nil {
		return errors.Wrap(err, "cancel payment intent")
	}
	return nil
}
