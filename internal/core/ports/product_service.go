package ports

import (
	"context"
	"time"
)

// CreateProductInput carries the fields of a new catalog entry.
type CreateProductInput struct {
	FarmerID    string
	Name        string
	Price       float64
	Quantity    int
	Category    string
	Image       string
	Description string
}

// UpdateProductInput carries a partial update requested by FarmerID.
type UpdateProductInput struct {
	ProductID   string
	FarmerID    string
	Name        *string
	Price       *float64
	Quantity    *int
	Category    *string
	Image       *string
	Description *string
}

// ListProductsInput carries the public catalog query.
type ListProductsInput struct {
	Search   string
	Category string
	Page     int
	Limit    int
}

// PartySummary is the display view of a user attached to products and orders.
type PartySummary struct {
	ID    string
	Name  string
	Email string
}

// ProductDetail is a product with its farmer resolved.
type ProductDetail struct {
	ID          string
	Name        string
	Price       float64
	Quantity    int
	Category    string
	Image       string
	Description string
	Farmer      PartySummary
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListProductsResult is returned by ListProducts.
type ListProductsResult struct {
	Items      []ProductDetail
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// ProductService defines use-case operations for the catalog.
type ProductService interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDetail, error)
	UpdateProduct(ctx context.Context, input UpdateProductInput) (*ProductDetail, error)
	DeleteProduct(ctx context.Context, productID, farmerID string) error
	GetProduct(ctx context.Context, productID string) (*ProductDetail, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ListProductsResult, error)
	ListFarmerProducts(ctx context.Context, farmerID string) ([]ProductDetail, error)
}

// ImageStore persists product images and returns their public URL.
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}
