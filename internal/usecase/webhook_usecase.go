package usecase

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"shopfront-backend/internal/domain"
	"shopfront-backend/internal/infrastructure/metrics"
	"shopfront-backend/internal/payment"
	"shopfront-backend/pkg/logger"
)

// WebhookUsecase processes verified card processor callbacks.
type WebhookUsecase struct {
	provider   payment.Provider
	intentRepo domain.PaymentIntentRepository
	orderRepo  domain.OrderRepository
	finalizer  *PaymentFinalizer
	effects    *orderEffects
	dedup      domain.EventDeduplicator
	txManager  domain.TransactionManager
}

func NewWebhookUsecase(
	provider payment.Provider,
	intentRepo domain.PaymentIntentRepository,
	orderRepo domain.OrderRepository,
	outboxRepo domain.OutboxRepository,
	finalizer *PaymentFinalizer,
	dedup domain.EventDeduplicator,
	txManager domain.TransactionManager,
) *WebhookUsecase {
	return &WebhookUsecase{
		provider:   provider,
		intentRepo: intentRepo,
		orderRepo:  orderRepo,
		finalizer:  finalizer,
		effects:    &orderEffects{orderRepo: orderRepo, outboxRepo: outboxRepo},
		dedup:      dedup,
		txManager:  txManager,
	}
}

// errUnmatched marks events that reference no stored payment intent.
var errUnmatched = errors.New("no matching payment intent")

// HandleEvent verifies and applies one webhook delivery. A returned error
// other than BadRequest should make the processor retry.
func (u *WebhookUsecase) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	log := logger.WithContext(ctx)

	ev, err := u.provider.ParseWebhook(payload, signature)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		if errors.Is(err, payment.ErrInvalidSignature) {
			return domain.NewBadRequest("Invalid webhook signature").WithCause(err)
		}
		return domain.NewBadRequest("Invalid webhook payload").WithCause(err)
	}

	// De-duplication by event id. A failed attempt releases its claim.
	claimed, err := u.dedup.Claim(ctx, ev.ID)
	if err != nil {
		log.Warn().Err(err).Str("event_id", ev.ID).Msg("Webhook dedup unavailable, relying on finalizer guard")
		claimed = true
	}
	if !claimed {
		metrics.WebhookEventsTotal.WithLabelValues(ev.Type, "duplicate").Inc()
		log.Info().Str("event_id", ev.ID).Str("type", ev.Type).Msg("Duplicate webhook event")
		return nil
	}

	err = u.dispatch(ctx, ev)
	switch {
	case err == nil:
		metrics.WebhookEventsTotal.WithLabelValues(ev.Type, "processed").Inc()
		return nil
	case errors.Is(err, errUnmatched):
		metrics.WebhookEventsTotal.WithLabelValues(ev.Type, "unmatched").Inc()
		log.Warn().Str("event_id", ev.ID).Str("type", ev.Type).Str("object_id", ev.ObjectID).Msg("Webhook event has no matching payment intent")
		return nil
	default:
		metrics.WebhookEventsTotal.WithLabelValues(ev.Type, "error").Inc()
		if relErr := u.dedup.Release(ctx, ev.ID); relErr != nil {
			log.Warn().Err(relErr).Str("event_id", ev.ID).Msg("Failed to release webhook event claim")
		}
		log.Error().Err(err).Str("event_id", ev.ID).Str("type", ev.Type).Msg("Webhook processing failed")
		return err
	}
}

func (u *WebhookUsecase) dispatch(ctx context.Context, ev *payment.WebhookEvent) error {
	switch ev.Type {
	case payment.EventPaymentIntentSucceeded:
		return u.onIntentSucceeded(ctx, ev)
	case payment.EventPaymentIntentFailed:
		return u.onIntentFailed(ctx, ev)
	case payment.EventCheckoutCompleted:
		return u.onCheckoutCompleted(ctx, ev)
	default:
		logger.WithContext(ctx).Debug().Str("type", ev.Type).Msg("Unhandled webhook event type")
		return nil
	}
}

func (u *WebhookUsecase) findIntent(ctx context.Context, ref string) (*domain.PaymentIntent, error) {
	if ref == "" {
		return nil, errUnmatched
	}
	intent, err := u.intentRepo.FindByProviderReference(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errUnmatched
		}
		return nil, errors.Wrap(err, "find payment intent")
	}
	return intent, nil
}

// settle marks intent succeeded and finalizes its order in one transaction.
func (u *WebhookUsecase) settle(ctx context.Context, intent *domain.PaymentIntent, providerIntentID string) error {
	return u.txManager.Do(ctx, func(txCtx context.Context) error {
		if intent.Status != domain.IntentStatusSucceeded {
			now := time.Now().UTC()
			upd := domain.IntentUpdate{
				Status:           domain.IntentStatusSucceeded,
				ProviderIntentID: &providerIntentID,
				CompletedAt:      &now,
			}
			if err := u.intentRepo.UpdateStatus(txCtx, intent.ID, upd); err != nil {
				return errors.Wrap(err, "mark intent succeeded")
			}
		}
		_, err := u.finalizer.Finalize(txCtx, intent.OrderID, &providerIntentID)
		return err
	})
}

func (u *WebhookUsecase) onIntentSucceeded(ctx context.Context, ev *payment.WebhookEvent) error {
	intent, err := u.findIntent(ctx, ev.ObjectID)
	if err != nil {
		return err
	}
	return u.settle(ctx, intent, ev.ObjectID)
}

func (u *WebhookUsecase) onCheckoutCompleted(ctx context.Context, ev *payment.WebhookEvent) error {
	intent, err := u.findIntent(ctx, ev.ObjectID)
	if err != nil {
		return err
	}
	if ev.PaymentIntentID == "" {
		logger.WithContext(ctx).Info().Str("session_id", ev.ObjectID).Msg("Checkout session completed without payment intent")
		return nil
	}

	pi, err := u.provider.RetrievePaymentIntent(ctx, ev.PaymentIntentID)
	if err != nil {
		return errors.Wrap(err, "retrieve payment intent")
	}
	if pi.Status == payment.ProviderStatusSucceeded {
		return u.settle(ctx, intent, pi.ID)
	}

	// Remember the intent id so later payment_intent.* events match.
	status := intent.Status
	if pi.Status == payment.ProviderStatusProcessing {
		status = domain.IntentStatusProcessing
	}
	if err := u.intentRepo.UpdateStatus(ctx, intent.ID, domain.IntentUpdate{
		Status:           status,
		ProviderIntentID: &pi.ID,
	}); err != nil {
		return errors.Wrap(err, "link provider intent")
	}
	return nil
}

func (u *WebhookUsecase) onIntentFailed(ctx context.Context, ev *payment.WebhookEvent) error {
	intent, err := u.findIntent(ctx, ev.ObjectID)
	if err != nil {
		return err
	}

	reason := ev.FailureMessage
	if reason == "" {
		reason = "Payment failed"
	}

	return u.txManager.Do(ctx, func(txCtx context.Context) error {
		if intent.Status != domain.IntentStatusSucceeded {
			if err := u.intentRepo.UpdateStatus(txCtx, intent.ID, domain.IntentUpdate{
				Status:        domain.IntentStatusFailed,
				FailureReason: &reason,
			}); err != nil {
				return errors.Wrap(err, "mark intent failed")
			}
		}

		order, err := u.orderRepo.GetByIDForUpdate(txCtx, intent.OrderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return errUnmatched
			}
			return errors.Wrap(err, "get order")
		}
		if order.PaymentStatus == domain.PaymentStatusPaid {
			return nil
		}
		if err := u.orderRepo.UpdatePaymentStatus(txCtx, order.ID, domain.PaymentStatusFailed); err != nil {
			return errors.Wrap(err, "mark order payment failed")
		}
		order.PaymentStatus = domain.PaymentStatusFailed
		return u.effects.publish(txCtx, order, domain.EventPaymentFailed, reason)
	})
}
