package domain

import (
	"context"
	"time"
)

type PaymentIntent struct {
	ID                string     `json:"id"`
	OrderID           string     `json:"orderId"`
	UserID            string     `json:"userId"`
	Method            string     `json:"paymentMethod"`
	Amount            int64      `json:"amount"` // minor units
	Currency          string     `json:"currency"`
	Status            string     `json:"status"`
	ProviderSessionID *string    `json:"providerSessionId"`
	ProviderIntentID  *string    `json:"providerIntentId"`
	CheckoutURL       *string    `json:"checkoutUrl,omitempty"`
	ClientSecret      *string    `json:"clientSecret,omitempty"`
	CompletedAt       *time.Time `json:"completedAt"`
	CollectedAt       *time.Time `json:"collectedAt"`
	FailureReason     *string    `json:"failureReason"`
	Metadata          JSONB      `json:"metadata"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// ProviderReference is the processor id that shows up on callbacks.
func (p *PaymentIntent) ProviderReference() *string {
	if p.ProviderIntentID != nil {
		return p.ProviderIntentID
	}
	return p.ProviderSessionID
}

func (p *PaymentIntent) IsTerminal() bool {
	switch p.Status {
	case IntentStatusSucceeded, IntentStatusFailed, IntentStatusCancelled:
		return true
	}
	return false
}

// IntentUpdate carries the fields written with an intent status change.
// Metadata is merged into the stored metadata.
type IntentUpdate struct {
	Status           string
	ProviderIntentID *string
	CompletedAt      *time.Time
	CollectedAt      *time.Time
	FailureReason    *string
	Metadata         JSONB
}

// PaymentDescriptor is what the client needs to complete payment.
type PaymentDescriptor struct {
	PaymentIntentID string  `json:"paymentIntentId"`
	Method          string  `json:"paymentMethod"`
	Status          string  `json:"status"`
	Amount          int64   `json:"amount"`
	Currency        string  `json:"currency"`
	SessionID       *string `json:"sessionId,omitempty"`
	CheckoutURL     *string `json:"checkoutUrl,omitempty"`
	ClientSecret    *string `json:"clientSecret,omitempty"`
	Note            string  `json:"note,omitempty"`
}

func (p *PaymentIntent) Descriptor() PaymentDescriptor {
	d := PaymentDescriptor{
		PaymentIntentID: p.ID,
		Method:          p.Method,
		Status:          p.Status,
		Amount:          p.Amount,
		Currency:        p.Currency,
		SessionID:       p.ProviderSessionID,
		CheckoutURL:     p.CheckoutURL,
		ClientSecret:    p.ClientSecret,
	}
	if note, ok := p.Metadata["note"].(string); ok {
		d.Note = note
	}
	return d
}

type PaymentIntentRepository interface {
	Create(ctx context.Context, intent *PaymentIntent) error
	GetByID(ctx context.Context, id string) (*PaymentIntent, error)
	// FindByProviderReference matches either the provider session id or intent id.
	FindByProviderReference(ctx context.Context, ref string) (*PaymentIntent, error)
	FindLatestByOrderID(ctx context.Context, orderID string) (*PaymentIntent, error)
	UpdateStatus(ctx context.Context, id string, upd IntentUpdate) error
}
