package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

// CartMutation edits a private copy of the stored cart. It may run more than
// once when the store detects a concurrent write, so it must not have side effects.
type CartMutation func(cart *domain.Cart) error

type CartRepository interface {
	// GetOrCreateCart returns the user's cart, inserting an empty one on first access
	GetOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error)

	// MutateCart applies fn and persists the result as one atomic read-modify-write.
	// Errors returned by fn are passed through unchanged.
	MutateCart(ctx context.Context, userID string, fn CartMutation) (*domain.Cart, error)
}
