package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var (
	ErrInvalidData      = errors.New("invalid data")
	ErrProductNotFound  = errors.New("product not found")
	ErrStorage          = errors.New("storage unavailable")
	ErrDuplicateRequest = errors.New("duplicate request")
)

type CartService struct {
	carts    port.CartRepository
	products port.ProductRepository
	cache    port.CacheRepository
}

// NewCartService wires the cart engine to its stores. cache may be nil, in
// which case AddItemOnce behaves like AddItem.
func NewCartService(carts port.CartRepository, products port.ProductRepository, cache port.CacheRepository) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		cache:    cache,
	}
}

// ResolveCart returns the user's cart, creating an empty one on first access.
func (s *CartService) ResolveCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidData)
	}

	cart, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, storageError(err)
	}
	return cart, nil
}

func (s *CartService) GetCart(ctx context.Context, userID string) (domain.CartView, error) {
	cart, err := s.ResolveCart(ctx, userID)
	if err != nil {
		return domain.CartView{}, err
	}
	return s.view(ctx, cart)
}

func (s *CartService) AddItem(ctx context.Context, userID, productID string, qty int) (domain.CartView, error) {
	if userID == "" {
		return domain.CartView{}, fmt.Errorf("%w: missing user id", ErrInvalidData)
	}
	if qty <= 0 {
		return domain.CartView{}, fmt.Errorf("%w: qty must be positive, got %d", ErrInvalidData, qty)
	}
	if err := validateProductID(productID); err != nil {
		return domain.CartView{}, err
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return domain.CartView{}, storageError(err)
	}
	if product == nil {
		return domain.CartView{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	cart, err := s.carts.MutateCart(ctx, userID, func(c *domain.Cart) error {
		items, err := AddLine(c.Items, product.ID, qty)
		if err != nil {
			return err
		}
		c.Items = items
		return nil
	})
	if err != nil {
		return domain.CartView{}, storageError(err)
	}

	return s.view(ctx, cart)
}

// AddItemOnce is AddItem guarded by a client supplied request id: a request
// id already seen for this user fails with ErrDuplicateRequest. The id is
// released again when the add itself fails so that the client may retry.
func (s *CartService) AddItemOnce(ctx context.Context, requestID, userID, productID string, qty int) (domain.CartView, error) {
	if requestID == "" || s.cache == nil {
		return s.AddItem(ctx, userID, productID, qty)
	}

	idempotencyKey := fmt.Sprintf("idempotency:cart:%s:%s", userID, requestID)

	ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
	if err != nil {
		return domain.CartView{}, fmt.Errorf("%w: idempotency check failed: %w", ErrStorage, err)
	}
	if !ok {
		return domain.CartView{}, ErrDuplicateRequest
	}

	view, err := s.AddItem(ctx, userID, productID, qty)
	if err != nil {
		if releaseErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), idempotencyKey); releaseErr != nil {
			return domain.CartView{}, errors.Join(err, releaseErr)
		}
		return domain.CartView{}, err
	}
	return view, nil
}

// RemoveItem drops the whole line for productID. Removing a product that is
// not in the cart succeeds and leaves the items unchanged.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (domain.CartView, error) {
	if userID == "" {
		return domain.CartView{}, fmt.Errorf("%w: missing user id", ErrInvalidData)
	}
	if err := validateProductID(productID); err != nil {
		return domain.CartView{}, err
	}

	cart, err := s.carts.MutateCart(ctx, userID, func(c *domain.Cart) error {
		c.Items = RemoveLine(c.Items, productID)
		return nil
	})
	if err != nil {
		return domain.CartView{}, storageError(err)
	}

	return s.view(ctx, cart)
}

func (s *CartService) view(ctx context.Context, cart *domain.Cart) (domain.CartView, error) {
	products := map[string]domain.Product{}
	if len(cart.Items) > 0 {
		var err error
		products, err = s.products.GetProducts(ctx, productIDs(cart.Items))
		if err != nil {
			return domain.CartView{}, storageError(err)
		}
	}
	return PriceCart(cart, products), nil
}

func validateProductID(productID string) error {
	if productID == "" {
		return fmt.Errorf("%w: missing product id", ErrInvalidData)
	}
	if err := uuid.Validate(productID); err != nil {
		return fmt.Errorf("%w: malformed product id %q", ErrInvalidData, productID)
	}
	return nil
}

// storageError classifies err for callers: engine errors pass through, the
// rest is a storage failure.
func storageError(err error) error {
	if errors.Is(err, ErrInvalidData) || errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
