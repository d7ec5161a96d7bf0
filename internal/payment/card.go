package payment

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"shopfront-backend/internal/domain"
	"shopfront-backend/internal/pricing"
)

// CardStrategy collects payment through the card processor's hosted checkout.
// Nothing is committed until the processor reports success.
type CardStrategy struct {
	provider    Provider
	intents     domain.PaymentIntentRepository
	frontendURL string
}

func NewCardStrategy(provider Provider, intents domain.PaymentIntentRepository, frontendURL string) *CardStrategy {
	return &CardStrategy{
		provider:    provider,
		intents:     intents,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

var _ Strategy = (*CardStrategy)(nil)

func (s *CardStrategy) Method() string { return domain.PaymentMethodStripe }

func (s *CardStrategy) SettlesImmediately() bool { return false }

func orderMetadata(order *domain.Order) map[string]string {
	return map[string]string{
		"orderId":     order.ID,
		"userId":      order.UserID,
		"orderNumber": order.OrderNumber,
	}
}

func (s *CardStrategy) CreateIntent(ctx context.Context, order *domain.Order, currency string) (*domain.PaymentIntent, error) {
	amount := pricing.ToMinorUnits(order.Total)
	session, err := s.provider.CreateCheckoutSession(ctx, SessionParams{
		Amount:         amount,
		Currency:       strings.ToLower(currency),
		Description:    "Order #" + order.OrderNumber,
		SuccessURL:     s.frontendURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:      s.frontendURL + "/checkout/cancel",
		Metadata:       orderMetadata(order),
		IdempotencyKey: "checkout-" + order.ID,
	})
	if err != nil {
		return nil, domain.NewBadRequest("Failed to create checkout session: %s", err.Error()).WithCause(err)
	}

	now := time.Now().UTC()
	intent := &domain.PaymentIntent{
		ID:                uuid.NewString(),
		OrderID:           order.ID,
		UserID:            order.UserID,
		Method:            domain.PaymentMethodStripe,
		Amount:            amount,
		Currency:          currency,
		Status:            domain.IntentStatusPending,
		ProviderSessionID: &session.ID,
		CheckoutURL:       &session.URL,
		Metadata: domain.JSONB{
			"sessionId":   session.ID,
			"orderNumber": order.OrderNumber,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if session.PaymentIntentID != "" {
		intent.ProviderIntentID = &session.PaymentIntentID
	}
	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, errors.Wrap(err, "create card intent")
	}
	return intent, nil
}

// CreateDirectIntent starts an embedded card payment for order and returns the
// stored intent carrying the client secret.
func (s *CardStrategy) CreateDirectIntent(ctx context.Context, order *domain.Order, currency string) (*domain.PaymentIntent, error) {
	amount := pricing.ToMinorUnits(order.Total)
	pi, err := s.provider.CreatePaymentIntent(ctx, IntentParams{
		Amount:         amount,
		Currency:       strings.ToLower(currency),
		Metadata:       orderMetadata(order),
		IdempotencyKey: "intent-" + order.ID,
	})
	if err != nil {
		return nil, domain.NewBadRequest("Failed to create payment intent: %s", err.Error()).WithCause(err)
	}

	now := time.Now().UTC()
	intent := &domain.PaymentIntent{
		ID:               uuid.NewString(),
		OrderID:          order.ID,
		UserID:           order.UserID,
		Method:           domain.PaymentMethodStripe,
		Amount:           amount,
		Currency:         currency,
		Status:           domain.IntentStatusPending,
		ProviderIntentID: &pi.ID,
		ClientSecret:     &pi.ClientSecret,
		Metadata: domain.JSONB{
			"providerIntentId": pi.ID,
			"orderNumber":      order.OrderNumber,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, errors.Wrap(err, "create direct intent")
	}
	return intent, nil
}

// Confirm reads the processor status of intent and stores the mapped status.
func (s *CardStrategy) Confirm(ctx context.Context, intent *domain.PaymentIntent, actorID string) (*ConfirmResult, error) {
	if intent.ProviderIntentID == nil {
		return nil, domain.NewBadRequest("Payment has not been started with the processor yet")
	}

	pi, err := s.provider.RetrievePaymentIntent(ctx, *intent.ProviderIntentID)
	if err != nil {
		return nil, domain.NewBadRequest("Failed to confirm payment: %s", err.Error()).WithCause(err)
	}

	now := time.Now().UTC()
	switch pi.Status {
	case ProviderStatusSucceeded:
		upd := domain.IntentUpdate{Status: domain.IntentStatusSucceeded, CompletedAt: &now}
		if pi.ReceiptEmail != "" {
			upd.Metadata = domain.JSONB{"receipt": pi.ReceiptEmail}
		}
		if err := s.intents.UpdateStatus(ctx, intent.ID, upd); err != nil {
			return nil, errors.Wrap(err, "mark intent succeeded")
		}
		intent.Status = domain.IntentStatusSucceeded
		intent.CompletedAt = &now
		return &ConfirmResult{Succeeded: true, Status: pi.Status, ProviderReference: &pi.ID}, nil

	case ProviderStatusRequiresPaymentMethod:
		return nil, domain.NewBadRequest("Payment method is required")

	case ProviderStatusCanceled:
		if err := s.intents.UpdateStatus(ctx, intent.ID, domain.IntentUpdate{Status: domain.IntentStatusCancelled}); err != nil {
			return nil, errors.Wrap(err, "mark intent cancelled")
		}
		intent.Status = domain.IntentStatusCancelled
		return &ConfirmResult{Status: pi.Status}, nil

	case ProviderStatusProcessing:
		if intent.Status != domain.IntentStatusProcessing {
			if err := s.intents.UpdateStatus(ctx, intent.ID, domain.IntentUpdate{Status: domain.IntentStatusProcessing}); err != nil {
				return nil, errors.Wrap(err, "mark intent processing")
			}
			intent.Status = domain.IntentStatusProcessing
		}
		return &ConfirmResult{Status: pi.Status}, nil
	}

	return &ConfirmResult{Status: pi.Status}, nil
}

// Refund issues a full refund and marks intent cancelled with the refund id.
func (s *CardStrategy) Refund(ctx context.Context, intent *domain.PaymentIntent) (*Refund, error) {
	if intent.ProviderIntentID == nil {
		return nil, domain.NewBadRequest("Card payment reference not found for this order")
	}

	refund, err := s.provider.Refund(ctx, *intent.ProviderIntentID, "refund-"+intent.OrderID)
	if err != nil {
		return nil, domain.NewBadRequest("Failed to refund payment: %s", err.Error()).WithCause(err)
	}

	upd := domain.IntentUpdate{
		Status:   domain.IntentStatusCancelled,
		Metadata: domain.JSONB{"refundId": refund.ID, "refundStatus": refund.Status},
	}
	if err := s.intents.UpdateStatus(ctx, intent.ID, upd); err != nil {
		return nil, errors.Wrap(err, "mark intent refunded")
	}
	intent.Status = domain.IntentStatusCancelled
	intent.Metadata = intent.Metadata.Merge(upd.Metadata)
	return refund, nil
}
