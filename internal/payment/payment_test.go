package payment

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfront-backend/internal/domain"
)

type fakeProvider struct {
	session    *Session
	intent     *Intent
	refund     *Refund
	err        error
	sessionReq SessionParams
	refundKey  string
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, params SessionParams) (*Session, error) {
	p.sessionReq = params
	if p.err != nil {
		return nil, p.err
	}
	return p.session, nil
}

func (p *fakeProvider) CreatePaymentIntent(_ context.Context, _ IntentParams) (*Intent, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.intent, nil
}

func (p *fakeProvider) RetrievePaymentIntent(_ context.Context, _ string) (*Intent, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.intent, nil
}

func (p *fakeProvider) Refund(_ context.Context, _ string, key string) (*Refund, error) {
	p.refundKey = key
	if p.err != nil {
		return nil, p.err
	}
	return p.refund, nil
}

func (p *fakeProvider) ParseWebhook(_ []byte, _ string) (*WebhookEvent, error) {
	return nil, ErrInvalidSignature
}

type intentStore struct {
	mu      sync.Mutex
	intents map[string]*domain.PaymentIntent
}

func newIntentStore() *intentStore {
	return &intentStore{intents: map[string]*domain.PaymentIntent{}}
}

func (s *intentStore) Create(_ context.Context, in *domain.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *in
	s.intents[in.ID] = &cp
	return nil
}

func (s *intentStore) GetByID(_ context.Context, id string) (*domain.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (s *intentStore) FindByProviderReference(_ context.Context, _ string) (*domain.PaymentIntent, error) {
	return nil, domain.ErrNotFound
}

func (s *intentStore) FindLatestByOrderID(_ context.Context, _ string) (*domain.PaymentIntent, error) {
	return nil, domain.ErrNotFound
}

func (s *intentStore) UpdateStatus(_ context.Context, id string, upd domain.IntentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intents[id]
	if !ok {
		return domain.ErrNotFound
	}
	in.Status = upd.Status
	if upd.CompletedAt != nil {
		in.CompletedAt = upd.CompletedAt
	}
	if upd.CollectedAt != nil {
		in.CollectedAt = upd.CollectedAt
	}
	in.Metadata = in.Metadata.Merge(upd.Metadata)
	return nil
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:          "order-1",
		OrderNumber: "ORD-20260101-ABCDEF",
		UserID:      "user-1",
		Total:       decimal.RequireFromString("162.00"),
	}
}

func TestRegistry(t *testing.T) {
	store := newIntentStore()
	reg := NewRegistry(NewDeferredStrategy(store), NewCardStrategy(&fakeProvider{}, store, "http://shop"))

	s, err := reg.Get(domain.PaymentMethodCOD)
	require.NoError(t, err)
	assert.True(t, s.SettlesImmediately())

	s, err = reg.Get(domain.PaymentMethodStripe)
	require.NoError(t, err)
	assert.False(t, s.SettlesImmediately())

	_, err = reg.Get("BITCOIN")
	require.Error(t, err)
	assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))
}

func TestCardCreateIntent(t *testing.T) {
	store := newIntentStore()
	provider := &fakeProvider{session: &Session{ID: "cs_1", URL: "https://pay/cs_1"}}
	s := NewCardStrategy(provider, store, "http://shop/")

	intent, err := s.CreateIntent(context.Background(), testOrder(), "USD")
	require.NoError(t, err)

	assert.Equal(t, int64(16200), intent.Amount)
	assert.Equal(t, domain.IntentStatusPending, intent.Status)
	require.NotNil(t, intent.ProviderSessionID)
	assert.Equal(t, "cs_1", *intent.ProviderSessionID)
	assert.Nil(t, intent.ProviderIntentID)

	assert.Equal(t, "usd", provider.sessionReq.Currency)
	assert.Equal(t, "http://shop/checkout/success?session_id={CHECKOUT_SESSION_ID}", provider.sessionReq.SuccessURL)
	assert.Equal(t, "http://shop/checkout/cancel", provider.sessionReq.CancelURL)
	assert.Equal(t, "order-1", provider.sessionReq.Metadata["orderId"])
	assert.Equal(t, "checkout-order-1", provider.sessionReq.IdempotencyKey)

	_, err = store.GetByID(context.Background(), intent.ID)
	require.NoError(t, err)
}

func TestCardCreateIntentProviderFailure(t *testing.T) {
	store := newIntentStore()
	s := NewCardStrategy(&fakeProvider{err: errors.New("card processor unavailable")}, store, "http://shop")

	_, err := s.CreateIntent(context.Background(), testOrder(), "usd")
	require.Error(t, err)
	assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))
	assert.Contains(t, domain.PublicMessage(err), "card processor unavailable")
	assert.Empty(t, store.intents)
}

func TestCardConfirm(t *testing.T) {
	ref := "pi_1"
	tests := []struct {
		name       string
		status     string
		wantOK     bool
		wantStatus string
		wantErr    bool
	}{
		{"succeeded", ProviderStatusSucceeded, true, domain.IntentStatusSucceeded, false},
		{"canceled", ProviderStatusCanceled, false, domain.IntentStatusCancelled, false},
		{"processing", ProviderStatusProcessing, false, domain.IntentStatusProcessing, false},
		{"requires method", ProviderStatusRequiresPaymentMethod, false, domain.IntentStatusPending, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newIntentStore()
			intent := &domain.PaymentIntent{ID: "pi-row", Status: domain.IntentStatusPending, ProviderIntentID: &ref}
			require.NoError(t, store.Create(context.Background(), intent))

			s := NewCardStrategy(&fakeProvider{intent: &Intent{ID: ref, Status: tt.status}}, store, "")
			res, err := s.Confirm(context.Background(), intent, "user-1")
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantOK, res.Succeeded)
			}
			stored, err := store.GetByID(context.Background(), "pi-row")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)
		})
	}
}

func TestCardRefund(t *testing.T) {
	store := newIntentStore()
	ref := "pi_9"
	intent := &domain.PaymentIntent{ID: "row", OrderID: "order-9", Status: domain.IntentStatusSucceeded, ProviderIntentID: &ref}
	require.NoError(t, store.Create(context.Background(), intent))

	provider := &fakeProvider{refund: &Refund{ID: "re_1", Status: "succeeded"}}
	s := NewCardStrategy(provider, store, "")

	refund, err := s.Refund(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, "re_1", refund.ID)
	assert.Equal(t, "refund-order-9", provider.refundKey)

	stored, _ := store.GetByID(context.Background(), "row")
	assert.Equal(t, domain.IntentStatusCancelled, stored.Status)
	assert.Equal(t, "re_1", stored.Metadata["refundId"])
}

func TestDeferredLifecycle(t *testing.T) {
	store := newIntentStore()
	s := NewDeferredStrategy(store)

	intent, err := s.CreateIntent(context.Background(), testOrder(), "usd")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusPending, intent.Status)
	assert.Equal(t, "cash_on_delivery", intent.Metadata["paymentType"])
	assert.Equal(t, codCollectionNote, intent.Descriptor().Note)

	res, err := s.Confirm(context.Background(), intent, "admin-1")
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	assert.NotNil(t, intent.CollectedAt)

	_, err = s.Confirm(context.Background(), intent, "admin-1")
	require.Error(t, err)
	assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))

	_, err = s.Refund(context.Background(), intent)
	assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))
}
