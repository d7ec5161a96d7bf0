package usecase

import (
	"context"

	"github.com/go-faster/errors"

	"shopfront-backend/internal/domain"
	"shopfront-backend/pkg/logger"
)

// ProductUsecase exposes the product data checkout depends on and manual
// stock corrections by staff.
type ProductUsecase struct {
	productRepo domain.ProductRepository
}

func NewProductUsecase(productRepo domain.ProductRepository) *ProductUsecase {
	return &ProductUsecase{productRepo: productRepo}
}

func (u *ProductUsecase) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := u.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound("Product not found")
		}
		return nil, errors.Wrap(err, "get product")
	}
	return p, nil
}

// AdjustStock applies a signed correction. Stock never goes below zero.
func (u *ProductUsecase) AdjustStock(ctx context.Context, productID string, delta int, adminID string) (*domain.Product, error) {
	if delta == 0 {
		return nil, domain.NewBadRequest("Stock change must not be zero")
	}

	ref := "admin:" + adminID
	stock, err := u.productRepo.AdjustStock(ctx, domain.StockAdjustment{
		ProductID:   productID,
		Delta:       delta,
		Guard:       domain.StockGuardStrict,
		Reason:      domain.StockReasonManual,
		ReferenceID: &ref,
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, domain.NewNotFound("Product not found")
	case errors.Is(err, domain.ErrInsufficientStock):
		return nil, domain.NewBadRequest("Stock cannot go below zero")
	case err != nil:
		return nil, errors.Wrap(err, "adjust stock")
	}

	logger.WithContext(ctx).Info().
		Str("product_id", productID).
		Int("delta", delta).
		Int("stock", stock).
		Str("admin_id", adminID).
		Msg("Stock adjusted")

	return u.GetProduct(ctx, productID)
}
