package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type ProductRepository interface {
	// ListProducts returns the whole catalogue ordered by name
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// GetProduct returns nil, nil when the product does not exist
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// GetProducts resolves ids in one round trip, missing ids are absent from the map
	GetProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error)

	CountProducts(ctx context.Context) (int, error)

	InsertProducts(ctx context.Context, products []domain.Product) error
}
