package ports

import (
	"context"

	"github.com/farmconnect/marketplace-api/internal/core/domain"
)

// ListProductsFilter carries all query parameters for listing products.
type ListProductsFilter struct {
	FarmerID string          // optional: only this farmer's products
	Search   string          // optional: case-insensitive substring on name
	Category domain.Category // optional: exact match
	Page     int             // 1-based
	Limit    int             // 0 = no limit
}

// ProductUpdate holds the fields of a partial product update. Nil fields are untouched.
type ProductUpdate struct {
	Name        *string
	Price       *float64
	Quantity    *int
	Category    *domain.Category
	Image       *string
	Description *string
}

// ProductRepository defines persistence operations for the catalog.
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	FindByID(ctx context.Context, id string) (*domain.Product, error)
	// FindByIDs returns the products found, keyed by ID. Missing IDs are skipped.
	FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error)
	List(ctx context.Context, filter ListProductsFilter) ([]*domain.Product, int64, error)
	Update(ctx context.Context, id string, upd ProductUpdate) (*domain.Product, error)
	Delete(ctx context.Context, id string) error

	// DecrementStock subtracts qty only if at least qty units are in stock.
	// It reports false, without error, when the condition did not hold.
	DecrementStock(ctx context.Context, id string, qty int) (bool, error)
	IncrementStock(ctx context.Context, id string, qty int) error
}
