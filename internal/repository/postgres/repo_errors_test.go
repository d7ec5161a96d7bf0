package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfront-backend/internal/domain"
)

// stubTx answers Exec, Query and QueryRow with canned results. The embedded
// pgx.Tx is nil, so any other method panics.
type stubTx struct {
	pgx.Tx
	err     error
	queries []string
}

func (s *stubTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	s.queries = append(s.queries, sql)
	if s.err != nil {
		return pgconn.CommandTag{}, s.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (s *stubTx) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	s.queries = append(s.queries, sql)
	if s.err != nil {
		return nil, s.err
	}
	return nil, pgx.ErrNoRows
}

func (s *stubTx) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	s.queries = append(s.queries, sql)
	return stubRow{err: s.err}
}

type stubRow struct{ err error }

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if ts, ok := dest[0].(*time.Time); ok {
		*ts = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return nil
}

func withStub(tx *stubTx) context.Context {
	return context.WithValue(context.Background(), txKey{}, pgx.Tx(tx))
}

func TestRepositoryWrites(t *testing.T) {
	orders := NewOrderRepository(nil)
	writes := []struct {
		name string
		msg  string
		call func(ctx context.Context) error
	}{
		{"order create", "insert order", func(ctx context.Context) error {
			return orders.Create(ctx, &domain.Order{ID: "o1"})
		}},
		{"order history", "insert order history", func(ctx context.Context) error {
			return orders.CreateHistory(ctx, &domain.OrderHistory{OrderID: "o1", NewStatus: domain.OrderStatusPending})
		}},
		{"outbox enqueue", "enqueue outbox event", func(ctx context.Context) error {
			return NewOutboxRepository(nil).Enqueue(ctx, &domain.OutboxEvent{ID: "e1", Payload: []byte(`{}`)})
		}},
		{"outbox mark published", "mark outbox published", func(ctx context.Context) error {
			return NewOutboxRepository(nil).MarkPublished(ctx, []string{"e1"})
		}},
		{"intent create", "insert payment intent", func(ctx context.Context) error {
			return NewPaymentIntentRepository(nil).Create(ctx, &domain.PaymentIntent{ID: "pi1"})
		}},
		{"coupon create", "insert coupon", func(ctx context.Context) error {
			return NewCouponRepository(nil).Create(ctx, &domain.Coupon{ID: "c1"})
		}},
		{"cart clear", "clear cart", func(ctx context.Context) error {
			return NewCartRepository(nil).Clear(ctx, "u1")
		}},
	}

	for _, w := range writes {
		t.Run(w.name+" succeeds", func(t *testing.T) {
			tx := &stubTx{}
			require.NoError(t, w.call(withStub(tx)))
			assert.Len(t, tx.queries, 1)
		})
		t.Run(w.name+" fails", func(t *testing.T) {
			cause := errors.New("connection reset")
			err := w.call(withStub(&stubTx{err: cause}))
			require.Error(t, err)
			assert.ErrorIs(t, err, cause)
			assert.Contains(t, err.Error(), w.msg)
		})
	}
}

func TestCreateHistoryStampsRow(t *testing.T) {
	h := &domain.OrderHistory{OrderID: "o1", NewStatus: domain.OrderStatusPending}
	require.NoError(t, NewOrderRepository(nil).CreateHistory(withStub(&stubTx{}), h))
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, 2026, h.CreatedAt.Year())
}

func TestMarkPublishedSkipsEmptyBatch(t *testing.T) {
	tx := &stubTx{err: errors.New("unreachable")}
	require.NoError(t, NewOutboxRepository(nil).MarkPublished(withStub(tx), nil))
	assert.Empty(t, tx.queries)
}

func TestGetOrderForUpdateLocksRow(t *testing.T) {
	tx := &stubTx{}
	orders := NewOrderRepository(nil)

	_, err := orders.GetByIDForUpdate(withStub(tx), "o1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = orders.GetByID(withStub(tx), "o1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.Len(t, tx.queries, 2)
	assert.Contains(t, tx.queries[0], "FOR UPDATE")
	assert.NotContains(t, tx.queries[1], "FOR UPDATE")
}

func TestNotFound(t *testing.T) {
	other := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"wrapped no rows", errors.Wrap(pgx.ErrNoRows, "scan"), domain.ErrNotFound},
		{"bad uuid", &pgconn.PgError{Code: "22P02"}, domain.ErrNotFound},
		{"other pg error", &pgconn.PgError{Code: "23505"}, nil},
		{"other", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := notFound(tt.err)
			if tt.want == nil {
				assert.Equal(t, tt.err, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}
