package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmconnect/marketplace-api/internal/core/domain"
	"github.com/farmconnect/marketplace-api/internal/core/ports"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type ProductService struct {
	products ports.ProductRepository
	users    ports.UserRepository
	logger   zerolog.Logger
	now      func() time.Time
}

func NewProductService(products ports.ProductRepository, users ports.UserRepository, logger zerolog.Logger) *ProductService {
	return &ProductService{products: products, users: users, logger: logger, now: time.Now}
}

func (s *ProductService) CreateProduct(ctx context.Context, in ports.CreateProductInput) (*ports.ProductDetail, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.Category == "" || strings.TrimSpace(in.Image) == "" {
		return nil, domain.Invalidf("all required fields must be provided")
	}
	if in.Price < 0 {
		return nil, domain.Invalidf("price must not be negative")
	}
	if in.Quantity < 0 {
		return nil, domain.Invalidf("quantity must not be negative")
	}
	category, err := parseCategory(in.Category)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &domain.Product{
		Name:        name,
		Price:       in.Price,
		Quantity:    in.Quantity,
		Category:    category,
		Image:       strings.TrimSpace(in.Image),
		Description: strings.TrimSpace(in.Description),
		FarmerID:    in.FarmerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Create(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("farmer_id", in.FarmerID).Msg("failed to create product")
		return nil, err
	}

	s.logger.Info().Str("product_id", p.ID).Str("farmer_id", in.FarmerID).Msg("product created")
	return s.detail(ctx, p)
}

// UpdateProduct applies a partial update. Only the owning farmer may update.
func (s *ProductService) UpdateProduct(ctx context.Context, in ports.UpdateProductInput) (*ports.ProductDetail, error) {
	if _, err := s.ownedProduct(ctx, in.ProductID, in.FarmerID); err != nil {
		return nil, err
	}

	var upd ports.ProductUpdate
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domain.Invalidf("name must not be empty")
		}
		upd.Name = &name
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return nil, domain.Invalidf("price must not be negative")
		}
		upd.Price = in.Price
	}
	if in.Quantity != nil {
		if *in.Quantity < 0 {
			return nil, domain.Invalidf("quantity must not be negative")
		}
		upd.Quantity = in.Quantity
	}
	if in.Category != nil {
		category, err := parseCategory(*in.Category)
		if err != nil {
			return nil, err
		}
		upd.Category = &category
	}
	if in.Image != nil {
		image := strings.TrimSpace(*in.Image)
		if image == "" {
			return nil, domain.Invalidf("image must not be empty")
		}
		upd.Image = &image
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		upd.Description = &desc
	}

	updated, err := s.products.Update(ctx, in.ProductID, upd)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("product_id", in.ProductID).Msg("product updated")
	return s.detail(ctx, updated)
}

// DeleteProduct removes a product. Only the owning farmer may delete.
func (s *ProductService) DeleteProduct(ctx context.Context, productID, farmerID string) error {
	if _, err := s.ownedProduct(ctx, productID, farmerID); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, productID); err != nil {
		return err
	}
	s.logger.Info().Str("product_id", productID).Msg("product deleted")
	return nil
}

func (s *ProductService) GetProduct(ctx context.Context, productID string) (*ports.ProductDetail, error) {
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, p)
}

// ListProducts searches the public catalog, newest first.
func (s *ProductService) ListProducts(ctx context.Context, in ports.ListProductsInput) (*ports.ListProductsResult, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	// Exact match; an unknown category is not an error, it just matches nothing.
	var category domain.Category
	if raw := strings.ToLower(strings.TrimSpace(in.Category)); raw != "" && raw != "all" {
		category = domain.Category(raw)
	}

	items, total, err := s.products.List(ctx, ports.ListProductsFilter{
		Search:   strings.TrimSpace(in.Search),
		Category: category,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	details, err := s.details(ctx, items)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &ports.ListProductsResult{
		Items:      details,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

// ListFarmerProducts returns every product owned by farmerID, newest first.
func (s *ProductService) ListFarmerProducts(ctx context.Context, farmerID string) ([]ports.ProductDetail, error) {
	items, _, err := s.products.List(ctx, ports.ListProductsFilter{FarmerID: farmerID})
	if err != nil {
		return nil, fmt.Errorf("list farmer products: %w", err)
	}
	return s.details(ctx, items)
}

func (s *ProductService) ownedProduct(ctx context.Context, productID, farmerID string) (*domain.Product, error) {
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.FarmerID != farmerID {
		return nil, domain.ErrForbidden
	}
	return p, nil
}

func parseCategory(raw string) (domain.Category, error) {
	c := domain.Category(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidCategory, raw)
	}
	return c, nil
}

func (s *ProductService) detail(ctx context.Context, p *domain.Product) (*ports.ProductDetail, error) {
	out, err := s.details(ctx, []*domain.Product{p})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// details resolves the farmer of each product with a single batch lookup.
func (s *ProductService) details(ctx context.Context, items []*domain.Product) ([]ports.ProductDetail, error) {
	ids := make([]string, 0, len(items))
	for _, p := range items {
		ids = append(ids, p.FarmerID)
	}
	farmers, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve farmers: %w", err)
	}

	out := make([]ports.ProductDetail, 0, len(items))
	for _, p := range items {
		out = append(out, toProductDetail(p, farmers[p.FarmerID]))
	}
	return out, nil
}

func toProductDetail(p *domain.Product, farmer *domain.User) ports.ProductDetail {
	return ports.ProductDetail{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Quantity:    p.Quantity,
		Category:    string(p.Category),
		Image:       p.Image,
		Description: p.Description,
		Farmer:      partyOf(p.FarmerID, farmer),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// partyOf builds a display summary; an unresolved user keeps only its ID.
func partyOf(id string, u *domain.User) ports.PartySummary {
	if u == nil {
		return ports.PartySummary{ID: id}
	}
	return ports.PartySummary{ID: u.ID, Name: u.Name, Email: u.Email}
}
