package payment

import (
	"context"

	"shopfront-backend/internal/domain"
)

// Strategy creates and settles payment intents for one payment method.
type Strategy interface {
	Method() string
	// SettlesImmediately reports whether an order paid this way is binding at
	// creation. Checkout commits stock, coupon usage and the cart right away for
	// such methods instead of waiting for the payment finalizer.
	SettlesImmediately() bool
	CreateIntent(ctx context.Context, order *domain.Order, currency string) (*domain.PaymentIntent, error)
	// Confirm refreshes intent from the payment source and persists the new status.
	Confirm(ctx context.Context, intent *domain.PaymentIntent, actorID string) (*ConfirmResult, error)
	Refund(ctx context.Context, intent *domain.PaymentIntent) (*Refund, error)
}

type ConfirmResult struct {
	Succeeded         bool    `json:"success"`
	Status            string  `json:"status"`
	ProviderReference *string `json:"-"`
}

type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.Method()] = s
	}
	return r
}

func (r *Registry) Get(method string) (Strategy, error) {
	s, ok := r.strategies[method]
	if !ok {
		return nil, domain.NewBadRequest("Unsupported payment method: %s", method)
	}
	return s, nil
}
