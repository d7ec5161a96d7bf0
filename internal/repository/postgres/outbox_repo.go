package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shopfront-backend/internal/domain"
)

const (
	enqueueOutboxSQL = `INSERT INTO outbox_events (id, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	// Rows stay locked until the caller's transaction ends, so several pollers
	// never publish the same batch.
	fetchUnpublishedSQL = `SELECT id, aggregate_id, event_type, payload, created_at, published_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	markPublishedSQL = `UPDATE outbox_events SET published_at = NOW() WHERE id::text = ANY($1::text[])`
)

type outboxRepository struct {
	db *pgxpool.Pool
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)

func NewOutboxRepository(db *pgxpool.Pool) domain.OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Enqueue(ctx context.Context, ev *domain.OutboxEvent) error {
	_, err := conn(ctx, r.db).Exec(ctx, enqueueOutboxSQL,
		ev.ID, ev.AggregateID, ev.EventType, string(ev.Payload), ev.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "enqueue outbox event")
	}
	return nil
}

func (r *outboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	rows, err := conn(ctx, r.db).Query(ctx, fetchUnpublishedSQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "fetch outbox events")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OutboxEvent, error) {
		var (
			ev      domain.OutboxEvent
			payload string
		)
		err := row.Scan(&ev.ID, &ev.AggregateID, &ev.EventType, &payload, &ev.CreatedAt, &ev.PublishedAt)
		ev.Payload = []byte(payload)
		return ev, err
	})
}

func (r *outboxRepository) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := conn(ctx, r.db).Exec(ctx, markPublishedSQL, ids)
	if err != nil {
		return errors.Wrap(err, "mark outbox published")
	}
	return nil
}
