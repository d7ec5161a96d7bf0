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
	productColumns = `id, name, price, discount, stock, is_active, created_at, updated_at`

	getProductSQL    = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	getProductsSQL   = `SELECT ` + productColumns + ` FROM products WHERE id::text = ANY($1::text[])`
	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`

	// strict: the row is only touched when the result stays non-negative
	adjustStockStrictSQL = `UPDATE products SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING stock, $2::int`

	adjustStockFloorSQL = `WITH prev AS (
			SELECT id, stock FROM products WHERE id = $1 FOR UPDATE
		)
		UPDATE products p SET stock = GREATEST(prev.stock + $2, 0), updated_at = NOW()
		FROM prev WHERE p.id = prev.id
		RETURNING p.stock, p.stock - prev.stock`

	insertInventoryLogSQL = `INSERT INTO inventory_logs (id, product_id, change, reason, reference_id)
		VALUES ($1, $2, $3, $4, $5)`
)

type productRepository struct {
	db *pgxpool.Pool
}

var _ domain.ProductRepository = (*productRepository)(nil)

func NewProductRepository(db *pgxpool.Pool) domain.ProductRepository {
	return &productRepository{db: db}
}

func scanProduct(row pgx.CollectableRow) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Discount, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	rows, err := conn(ctx, r.db).Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, notFound(err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *productRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := conn(ctx, r.db).Query(ctx, getProductsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

func (r *productRepository) AdjustStock(ctx context.Context, adj domain.StockAdjustment) (int, error) {
	db := conn(ctx, r.db)

	query := adjustStockStrictSQL
	if adj.Guard == domain.StockGuardFloor {
		query = adjustStockFloorSQL
	}

	var stock, change int
	err := db.QueryRow(ctx, query, adj.ProductID, adj.Delta).Scan(&stock, &change)
	if err != nil {
		err = notFound(err)
		if !errors.Is(err, domain.ErrNotFound) {
			return 0, errors.Wrap(err, "adjust stock")
		}
		if adj.Guard == domain.StockGuardFloor {
			return 0, domain.ErrNotFound
		}
		// strict miss: either no such product or not enough stock
		var exists bool
		if err := db.QueryRow(ctx, productExistsSQL, adj.ProductID).Scan(&exists); err != nil {
			return 0, errors.Wrap(notFound(err), "check product")
		}
		if !exists {
			return 0, domain.ErrNotFound
		}
		return 0, domain.ErrInsufficientStock
	}

	if _, err := db.Exec(ctx, insertInventoryLogSQL, uuid.NewString(), adj.ProductID, change, adj.Reason, adj.ReferenceID); err != nil {
		return 0, errors.Wrap(err, "insert inventory log")
	}
	return stock, nil
}
