package usecase

import (
	"context"
	"time"

	"shopfront-backend/internal/domain"
	"shopfront-backend/pkg/logger"
)

const sweepBatchSize = 100

// OrderSweeper cancels card orders whose customer never completed payment.
type OrderSweeper struct {
	orders    *OrderUsecase
	orderRepo domain.OrderRepository
	ttl       time.Duration
	interval  time.Duration
	now       func() time.Time
}

func NewOrderSweeper(orders *OrderUsecase, orderRepo domain.OrderRepository, ttl, interval time.Duration) *OrderSweeper {
	return &OrderSweeper{
		orders:    orders,
		orderRepo: orderRepo,
		ttl:       ttl,
		interval:  interval,
		now:       time.Now,
	}
}

// Run sweeps until ctx is cancelled.
func (s *OrderSweeper) Run(ctx context.Context) {
	log := logger.WithContext(ctx)
	log.Info().Dur("ttl", s.ttl).Dur("interval", s.interval).Msg("Order sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Order sweeper stopped")
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("Order sweep failed")
			} else if n > 0 {
				log.Info().Int("cancelled", n).Msg("Expired unpaid orders cancelled")
			}
		}
	}
}

// Sweep cancels one batch of expired orders and returns how many were cancelled.
func (s *OrderSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	stale, err := s.orderRepo.ListStalePending(ctx, domain.PaymentMethodStripe, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, o := range stale {
		err := s.orders.txManager.Do(ctx, func(txCtx context.Context) error {
			order, err := s.orders.lockOrder(txCtx, o.ID)
			if err != nil {
				return err
			}
			if order.Status != domain.OrderStatusPending || order.PaymentStatus == domain.PaymentStatusPaid {
				return nil
			}
			_, err = s.orders.transition(txCtx, order, domain.OrderStatusCancelled, "Payment not completed in time", nil)
			return err
		})
		if err != nil {
			logger.WithContext(ctx).Warn().Err(err).Str("order_id", o.ID).Msg("Failed to cancel expired order")
			continue
		}
		cancelled++
	}
	if cancelled > 0 {
		s.orders.cache.Delete(orderStatsCacheKey)
	}
	return cancelled, nil
}
