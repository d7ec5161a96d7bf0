// Package payment implements the payment strategies used at checkout and the
// contract expected from the card processor.
package payment

import (
	"context"

	"github.com/go-faster/errors"
)

// Processor side statuses of a payment intent.
const (
	ProviderStatusSucceeded             = "succeeded"
	ProviderStatusProcessing            = "processing"
	ProviderStatusRequiresPaymentMethod = "requires_payment_method"
	ProviderStatusRequiresAction        = "requires_action"
	ProviderStatusCanceled              = "canceled"
)

// Webhook event types handled by the system.
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
	EventCheckoutCompleted      = "checkout.session.completed"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type SessionParams struct {
	Amount         int64
	Currency       string
	Description    string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
}

type Session struct {
	ID              string
	URL             string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
}

type IntentParams struct {
	Amount         int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

type Intent struct {
	ID             string
	Status         string
	ClientSecret   string
	Amount         int64
	Currency       string
	ReceiptEmail   string
	FailureMessage string
}

type Refund struct {
	ID     string
	Status string
	Amount int64
}

// WebhookEvent is a verified processor callback. ObjectID is the id of the
// session or intent the event is about.
type WebhookEvent struct {
	ID              string
	Type            string
	ObjectID        string
	PaymentIntentID string
	Status          string
	FailureMessage  string
	Metadata        map[string]string
}

// Provider is the card processor.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, p SessionParams) (*Session, error)
	CreatePaymentIntent(ctx context.Context, p IntentParams) (*Intent, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*Intent, error)
	Refund(ctx context.Context, intentID, idempotencyKey string) (*Refund, error)
	// ParseWebhook verifies signature against payload and decodes the event.
	// Verification failures return ErrInvalidSignature.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
