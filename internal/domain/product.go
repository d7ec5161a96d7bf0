package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Product is the slice of catalog data checkout needs. Catalog management
// itself is owned by a separate service.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Discount  decimal.Decimal `json:"discount"` // percent, 0..100
	Stock     int             `json:"stock"`
	IsActive  bool            `json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// StockGuard selects the precondition of a stock adjustment.
type StockGuard int

const (
	// StockGuardStrict rejects the adjustment when it would take stock below zero.
	StockGuardStrict StockGuard = iota
	// StockGuardFloor applies the adjustment and clamps the result at zero.
	StockGuardFloor
)

type StockAdjustment struct {
	ProductID   string
	Delta       int // negative to take stock
	Guard       StockGuard
	Reason      string
	ReferenceID *string
}

type InventoryLog struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"productId"`
	Change      int       `json:"change"`
	Reason      string    `json:"reason"`
	ReferenceID *string   `json:"referenceId"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	// AdjustStock applies adj atomically and returns the new stock level.
	// A strict decrement that cannot be satisfied returns ErrInsufficientStock.
	AdjustStock(ctx context.Context, adj StockAdjustment) (int, error)
}
