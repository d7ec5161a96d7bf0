package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"shopfront-backend/internal/domain"
	"shopfront-backend/internal/pricing"
)

const codCollectionNote = "Payment will be collected upon delivery"

// DeferredStrategy is cash on delivery. No processor is involved and the order
// is binding as soon as it is placed.
type DeferredStrategy struct {
	intents domain.PaymentIntentRepository
}

func NewDeferredStrategy(intents domain.PaymentIntentRepository) *DeferredStrategy {
	return &DeferredStrategy{intents: intents}
}

var _ Strategy = (*DeferredStrategy)(nil)

func (s *DeferredStrategy) Method() string { return domain.PaymentMethodCOD }

func (s *DeferredStrategy) SettlesImmediately() bool { return true }

func (s *DeferredStrategy) CreateIntent(ctx context.Context, order *domain.Order, currency string) (*domain.PaymentIntent, error) {
	ref := "cod_" + order.ID
	now := time.Now().UTC()
	intent := &domain.PaymentIntent{
		ID:               uuid.NewString(),
		OrderID:          order.ID,
		UserID:           order.UserID,
		Method:           domain.PaymentMethodCOD,
		Amount:           pricing.ToMinorUnits(order.Total),
		Currency:         currency,
		Status:           domain.IntentStatusPending,
		ProviderIntentID: &ref,
		Metadata: domain.JSONB{
			"paymentType": "cash_on_delivery",
			"note":        codCollectionNote,
			"orderNumber": order.OrderNumber,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, errors.Wrap(err, "create cod intent")
	}
	return intent, nil
}

// Confirm records that staff collected the cash.
func (s *DeferredStrategy) Confirm(ctx context.Context, intent *domain.PaymentIntent, actorID string) (*ConfirmResult, error) {
	if intent.Status == domain.IntentStatusSucceeded {
		return nil, domain.NewBadRequest("Payment already collected")
	}
	if intent.IsTerminal() {
		return nil, domain.NewBadRequest("Cannot collect payment with status %s", intent.Status)
	}

	now := time.Now().UTC()
	upd := domain.IntentUpdate{
		Status:      domain.IntentStatusSucceeded,
		CompletedAt: &now,
		CollectedAt: &now,
		Metadata:    domain.JSONB{"collectedBy": actorID},
	}
	if err := s.intents.UpdateStatus(ctx, intent.ID, upd); err != nil {
		return nil, errors.Wrap(err, "mark cod collected")
	}
	intent.Status = domain.IntentStatusSucceeded
	intent.CompletedAt = &now
	intent.CollectedAt = &now
	intent.Metadata = intent.Metadata.Merge(upd.Metadata)

	return &ConfirmResult{Succeeded: true, Status: ProviderStatusSucceeded, ProviderReference: intent.ProviderIntentID}, nil
}

func (s *DeferredStrategy) Refund(ctx context.Context, intent *domain.PaymentIntent) (*Refund, error) {
	return nil, domain.NewBadRequest("Refunds are only supported for card payments")
}
