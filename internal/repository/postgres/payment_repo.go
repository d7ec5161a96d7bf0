package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shopfront-backend/internal/domain"
)

const (
	intentColumns = `id, order_id, user_id, method, amount, currency, status, provider_session_id,
		provider_intent_id, checkout_url, client_secret, completed_at, collected_at, failure_reason,
		metadata, created_at, updated_at`

	createIntentSQL = `INSERT INTO payment_intents (` + intentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	getIntentSQL = `SELECT ` + intentColumns + ` FROM payment_intents WHERE id = $1`

	findIntentByReferenceSQL = `SELECT ` + intentColumns + ` FROM payment_intents
		WHERE provider_session_id = $1 OR provider_intent_id = $1
		ORDER BY created_at DESC LIMIT 1`

	findLatestIntentSQL = `SELECT ` + intentColumns + ` FROM payment_intents
		WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`

	updateIntentStatusSQL = `UPDATE payment_intents SET
		status = $2,
		provider_intent_id = COALESCE($3, provider_intent_id),
		completed_at = COALESCE($4, completed_at),
		collected_at = COALESCE($5, collected_at),
		failure_reason = COALESCE($6, failure_reason),
		metadata = metadata || COALESCE($7::jsonb, '{}'::jsonb),
		updated_at = NOW()
		WHERE id = $1`
)

type paymentIntentRepository struct {
	db *pgxpool.Pool
}

var _ domain.PaymentIntentRepository = (*paymentIntentRepository)(nil)

func NewPaymentIntentRepository(db *pgxpool.Pool) domain.PaymentIntentRepository {
	return &paymentIntentRepository{db: db}
}

func scanIntent(row pgx.CollectableRow) (domain.PaymentIntent, error) {
	var p domain.PaymentIntent
	err := row.Scan(
		&p.ID, &p.OrderID, &p.UserID, &p.Method, &p.Amount, &p.Currency, &p.Status, &p.ProviderSessionID,
		&p.ProviderIntentID, &p.CheckoutURL, &p.ClientSecret, &p.CompletedAt, &p.CollectedAt,
		&p.FailureReason, &p.Metadata, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *paymentIntentRepository) one(ctx context.Context, query, arg string) (*domain.PaymentIntent, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, arg)
	if err != nil {
		return nil, notFound(err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanIntent)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *paymentIntentRepository) Create(ctx context.Context, p *domain.PaymentIntent) error {
	_, err := conn(ctx, r.db).Exec(ctx, createIntentSQL,
		p.ID, p.OrderID, p.UserID, p.Method, p.Amount, p.Currency, p.Status, p.ProviderSessionID,
		p.ProviderIntentID, p.CheckoutURL, p.ClientSecret, p.CompletedAt, p.CollectedAt,
		p.FailureReason, p.Metadata, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert payment intent")
	}
	return nil
}

func (r *paymentIntentRepository) GetByID(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	return r.one(ctx, getIntentSQL, id)
}

func (r *paymentIntentRepository) FindByProviderReference(ctx context.Context, ref string) (*domain.PaymentIntent, error) {
	return r.one(ctx, findIntentByReferenceSQL, ref)
}

func (r *paymentIntentRepository) FindLatestByOrderID(ctx context.Context, orderID string) (*domain.PaymentIntent, error) {
	return r.one(ctx, findLatestIntentSQL, orderID)
}

func (r *paymentIntentRepository) UpdateStatus(ctx context.Context, id string, upd domain.IntentUpdate) error {
	var metadata any
	if len(upd.Metadata) > 0 {
		metadata = upd.Metadata
	}
	tag, err := conn(ctx, r.db).Exec(ctx, updateIntentStatusSQL,
		id, upd.Status, upd.ProviderIntentID, upd.CompletedAt, upd.CollectedAt, upd.FailureReason, metadata,
	)
	if err != nil {
		return errors.Wrap(notFound(err), "update payment intent")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
