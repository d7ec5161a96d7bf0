package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shopfront-backend/internal/domain"
)

const (
	couponColumns = `id, code, description, discount_type, discount_value, minimum_purchase,
		maximum_discount, valid_from, valid_to, usage_limit, usage_count, per_user_limit,
		used_by, is_active, created_by, created_at, updated_at`

	getCouponByIDSQL   = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`
	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = UPPER($1)`
	listCouponsSQL     = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	countCouponsSQL    = `SELECT COUNT(*) FROM coupons`

	createCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	updateCouponSQL = `UPDATE coupons SET code = $2, description = $3, discount_type = $4,
		discount_value = $5, minimum_purchase = $6, maximum_discount = $7, valid_from = $8,
		valid_to = $9, usage_limit = $10, per_user_limit = $11, is_active = $12, updated_at = NOW()
		WHERE id = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	// Both caps are re-checked in the UPDATE itself so concurrent redemptions
	// cannot overshoot them.
	incrementCouponUsageSQL = `UPDATE coupons
		SET usage_count = usage_count + 1, used_by = array_append(used_by, $2), updated_at = NOW()
		WHERE id = $1
		  AND (usage_limit IS NULL OR usage_count < usage_limit)
		  AND COALESCE(cardinality(array_positions(used_by, $2::text)), 0) < per_user_limit`

	couponExistsSQL = `SELECT EXISTS (SELECT 1 FROM coupons WHERE id = $1)`
)

type couponRepository struct {
	db *pgxpool.Pool
}

var _ domain.CouponRepository = (*couponRepository)(nil)

func NewCouponRepository(db *pgxpool.Pool) domain.CouponRepository {
	return &couponRepository{db: db}
}

func scanCoupon(row pgx.CollectableRow) (domain.Coupon, error) {
	var c domain.Coupon
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &c.DiscountType, &c.DiscountValue, &c.MinimumPurchase,
		&c.MaximumDiscount, &c.ValidFrom, &c.ValidTo, &c.UsageLimit, &c.UsageCount, &c.PerUserLimit,
		&c.UsedBy, &c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *couponRepository) getOne(ctx context.Context, query string, arg string) (*domain.Coupon, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, arg)
	if err != nil {
		return nil, notFound(err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *couponRepository) GetByID(ctx context.Context, id string) (*domain.Coupon, error) {
	return r.getOne(ctx, getCouponByIDSQL, id)
}

func (r *couponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	return r.getOne(ctx, getCouponByCodeSQL, code)
}

func (r *couponRepository) List(ctx context.Context, limit, offset int) ([]domain.Coupon, int64, error) {
	db := conn(ctx, r.db)

	var total int64
	if err := db.QueryRow(ctx, countCouponsSQL).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count coupons")
	}

	rows, err := db.Query(ctx, listCouponsSQL, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list coupons")
	}
	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan coupons")
	}
	return coupons, total, nil
}

func (r *couponRepository) Create(ctx context.Context, c *domain.Coupon) error {
	usedBy := c.UsedBy
	if usedBy == nil {
		usedBy = []string{}
	}
	_, err := conn(ctx, r.db).Exec(ctx, createCouponSQL,
		c.ID, c.Code, c.Description, c.DiscountType, c.DiscountValue, c.MinimumPurchase,
		c.MaximumDiscount, c.ValidFrom, c.ValidTo, c.UsageLimit, c.UsageCount, c.PerUserLimit,
		usedBy, c.IsActive, c.CreatedBy, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert coupon")
	}
	return nil
}

func (r *couponRepository) Update(ctx context.Context, c *domain.Coupon) error {
	tag, err := conn(ctx, r.db).Exec(ctx, updateCouponSQL,
		c.ID, c.Code, c.Description, c.DiscountType, c.DiscountValue, c.MinimumPurchase,
		c.MaximumDiscount, c.ValidFrom, c.ValidTo, c.UsageLimit, c.PerUserLimit, c.IsActive,
	)
	if err != nil {
		return errors.Wrap(err, "update coupon")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *couponRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.db).Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return errors.Wrap(notFound(err), "delete coupon")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *couponRepository) IncrementUsage(ctx context.Context, couponID, userID string) error {
	db := conn(ctx, r.db)

	tag, err := db.Exec(ctx, incrementCouponUsageSQL, couponID, userID)
	if err != nil {
		return errors.Wrap(err, "increment coupon usage")
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx, couponExistsSQL, couponID).Scan(&exists); err != nil {
		return errors.Wrap(err, "check coupon")
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrCouponExhausted
}
