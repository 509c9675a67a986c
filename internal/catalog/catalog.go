// Package catalog serves the product list and turns products into cart
// entries.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/Priya8975/forge-storefront/internal/cart"
	"github.com/Priya8975/forge-storefront/internal/domain"
	"github.com/Priya8975/forge-storefront/internal/store"
	"go.uber.org/zap"
)

var ErrProductNotFound = errors.New("product not found")

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	UpsertProduct(ctx context.Context, p *domain.Product) error
}

type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, nil
}

func (s *Service) BySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return s.lookup(s.repo.GetProductBySlug(ctx, slug))
}

func (s *Service) ByID(ctx context.Context, id string) (*domain.Product, error) {
	return s.lookup(s.repo.GetProduct(ctx, id))
}

func (s *Service) lookup(p *domain.Product, err error) (*domain.Product, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading product: %w", err)
	}
	return p, nil
}

// Seed upserts the default products. Existing products with the same ids are
// overwritten.
func (s *Service) Seed(ctx context.Context) error {
	for _, p := range DefaultProducts() {
		if err := s.repo.UpsertProduct(ctx, &p); err != nil {
			return fmt.Errorf("seeding catalog: %w", err)
		}
	}
	s.logger.Info("catalog seeded", zap.Int("products", len(DefaultProducts())))
	return nil
}

// CartProduct copies the fields a cart line keeps about p.
func CartProduct(p *domain.Product) cart.Product {
	return cart.Product{
		ID:        p.ID,
		Price:     p.Price,
		SalePrice: p.SalePrice,
		Attributes: map[string]any{
			"pid":   p.PID,
			"slug":  p.Slug,
			"title": p.Title,
			"color": p.Color,
			"src":   p.Src,
		},
	}
}

func price(v float64) *float64 { return &v }

// DefaultProducts is the launch catalog.
func DefaultProducts() []domain.Product {
	return []domain.Product{
		{
			ID:          "P0001",
			PID:         "P0001",
			Slug:        "rust-casual-combo",
			Title:       "Rust Casual Combo",
			Category:    "Combos",
			Gender:      "Men",
			Color:       "Rust Orange",
			ColorHex:    "#b7410e",
			Tone:        "Warm",
			SizeOptions: []string{"M", "L", "XL"},
			Price:       59.99,
			SalePrice:   price(49.99),
			Rating:      4.7,
			Reviews:     180,
			IsNew:       true,
			Src:         "/images/products/1.jpg",
			Gallery:     []string{"/images/products/1.jpg", "/images/products/1.jpg", "/images/products/1.jpg"},
		},
		{
			ID:          "P0002",
			PID:         "P0002",
			Slug:        "beige-formal-combo",
			Title:       "Beige Formal Combo",
			Category:    "Combos",
			Gender:      "Women",
			Color:       "Beige",
			ColorHex:    "#f5f5dc",
			Tone:        "Neutral",
			SizeOptions: []string{"S", "M", "L"},
			Price:       69.99,
			SalePrice:   price(59.99),
			Rating:      4.6,
			Reviews:     150,
			IsNew:       false,
			Src:         "/images/products/2.jpg",
			Gallery:     []string{"/images/products/2.jpg", "/images/products/2.jpg", "/images/products/2.jpg"},
		},
	}
}
