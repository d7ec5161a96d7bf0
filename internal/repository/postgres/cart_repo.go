package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shopfront-backend/internal/domain"
)

const (
	cartColumns = `id, user_id, items, subtotal, total_discount, coupon_id, coupon_code,
		coupon_discount, total, is_active, created_at, updated_at`

	getActiveCartSQL = `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1 AND is_active`

	createCartSQL = `INSERT INTO carts (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) WHERE is_active DO NOTHING`

	saveCartSQL = `UPDATE carts SET items = $2, subtotal = $3, total_discount = $4, coupon_id = $5,
		coupon_code = $6, coupon_discount = $7, total = $8, updated_at = NOW()
		WHERE id = $1`

	clearCartSQL = `UPDATE carts SET items = '[]', subtotal = 0, total_discount = 0, coupon_id = NULL,
		coupon_code = NULL, coupon_discount = 0, total = 0, updated_at = NOW()
		WHERE user_id = $1 AND is_active`
)

type cartRepository struct {
	db *pgxpool.Pool
}

var _ domain.CartRepository = (*cartRepository)(nil)

func NewCartRepository(db *pgxpool.Pool) domain.CartRepository {
	return &cartRepository{db: db}
}

func scanCart(row pgx.CollectableRow) (domain.Cart, error) {
	var c domain.Cart
	err := row.Scan(
		&c.ID, &c.UserID, &c.Items, &c.Subtotal, &c.TotalDiscount, &c.CouponID, &c.CouponCode,
		&c.CouponDiscount, &c.Total, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *cartRepository) GetActiveByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	rows, err := conn(ctx, r.db).Query(ctx, getActiveCartSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *cartRepository) GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	if _, err := conn(ctx, r.db).Exec(ctx, createCartSQL, uuid.NewString(), userID); err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	return r.GetActiveByUserID(ctx, userID)
}

func (r *cartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	items := cart.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	tag, err := conn(ctx, r.db).Exec(ctx, saveCartSQL,
		cart.ID, items, cart.Subtotal, cart.TotalDiscount, cart.CouponID,
		cart.CouponCode, cart.CouponDiscount, cart.Total,
	)
	if err != nil {
		return errors.Wrap(err, "save cart")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *cartRepository) Clear(ctx context.Context, userID string) error {
	_, err := conn(ctx, r.db).Exec(ctx, clearCartSQL, userID)
	if err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}
