package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type CatalogService struct {
	products port.ProductRepository
}

func NewCatalogService(products port.ProductRepository) *CatalogService {
	return &CatalogService{products: products}
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.products.ListProducts(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return products, nil
}

// SeedIfEmpty inserts products when the catalogue has none and reports how
// many were inserted.
func (s *CatalogService) SeedIfEmpty(ctx context.Context, products []domain.Product) (int, error) {
	count, err := s.products.CountProducts(ctx)
	if err != nil {
		return 0, storageError(err)
	}
	if count > 0 || len(products) == 0 {
		return 0, nil
	}

	if err := s.products.InsertProducts(ctx, products); err != nil {
		return 0, storageError(err)
	}
	return len(products), nil
}

// SampleProducts is the demo catalogue, with fresh ids on every call.
func SampleProducts() []domain.Product {
	return []domain.Product{
		{
			ID:          uuid.NewString(),
			Name:        "Vibe Tee",
			Price:       799,
			Image:       "https://picsum.photos/seed/tee/400/400",
			Description: "Soft cotton T-shirt with minimal Vibe logo.",
		},
		{
			ID:          uuid.NewString(),
			Name:        "Street Hoodie",
			Price:       1999,
			Image:       "https://picsum.photos/seed/hoodie/400/400",
			Description: "Cozy fleece hoodie for all seasons.",
		},
		{
			ID:          uuid.NewString(),
			Name:        "Skate Sneakers",
			Price:       2499,
			Image:       "https://picsum.photos/seed/sneakers/400/400",
			Description: "Durable sneakers with strong grip.",
		},
	}
}
