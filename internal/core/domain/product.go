package domain

import (
	"errors"
	"fmt"
	"time"
)

// Category is the enumerated product category.
type Category string

const (
	CategoryVegetables Category = "vegetables"
	CategoryFruits     Category = "fruits"
	CategoryGrains     Category = "grains"
	CategoryDairy      Category = "dairy"
	CategoryHerbs      Category = "herbs"
	CategoryOther      Category = "other"
)

var ErrProductNotFound = errors.New("product not found")
var ErrInvalidCategory = errors.New("invalid category")
var ErrInsufficientStock = errors.New("insufficient quantity")

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryVegetables, CategoryFruits, CategoryGrains, CategoryDairy, CategoryHerbs, CategoryOther:
		return true
	}
	return false
}

// Product is a catalog entry owned by one farmer.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Quantity    int       `json:"quantity"`
	Category    Category  `json:"category"`
	Image       string    `json:"image"`
	Description string    `json:"description,omitempty"`
	FarmerID    string    `json:"farmer_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InsufficientStockError reports a cart line asking for more than is available.
// It matches ErrInsufficientStock with errors.Is.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient quantity for product: %s. Available: %d, Requested: %d",
		e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
