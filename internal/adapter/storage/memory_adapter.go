package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// MemoryAdapter keeps products, carts and idempotency keys in process.
// It is meant for local runs and tests; nothing survives a restart.
// mu guards the maps; cart mutations are serialised per user by cartLocks.
type MemoryAdapter struct {
	mu          sync.Mutex
	products    map[string]domain.Product
	carts       map[string]*domain.Cart
	cartLocks   map[string]*sync.Mutex
	idempotency map[string]time.Time
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		products:    make(map[string]domain.Product),
		carts:       make(map[string]*domain.Cart),
		cartLocks:   make(map[string]*sync.Mutex),
		idempotency: make(map[string]time.Time),
	}
}

func (m *MemoryAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	products := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].ID < products[j].ID
	})
	return products, nil
}

func (m *MemoryAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryAdapter) GetProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]domain.Product, len(productIDs))
	for _, id := range productIDs {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *MemoryAdapter) CountProducts(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.products), nil
}

func (m *MemoryAdapter) InsertProducts(ctx context.Context, products []domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range products {
		m.products[p.ID] = p
	}
	return nil
}

// DeleteProduct removes a product from the catalogue; carts keep their references.
func (m *MemoryAdapter) DeleteProduct(productID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, productID)
}

func (m *MemoryAdapter) GetOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cartLocked(userID).Clone(), nil
}

// MutateCart holds the user's cart lock for the whole read-modify-write, so
// writers for other users proceed independently.
func (m *MemoryAdapter) MutateCart(ctx context.Context, userID string, fn port.CartMutation) (*domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock := m.cartLock(userID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	next := m.cartLocked(userID).Clone()
	m.mu.Unlock()

	if err := fn(next); err != nil {
		return nil, err
	}
	next.Version++
	next.UpdatedAt = time.Now().UTC()

	m.mu.Lock()
	m.carts[userID] = next
	m.mu.Unlock()

	return next.Clone(), nil
}

func (m *MemoryAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if expires, ok := m.idempotency[key]; ok && now.Before(expires) {
		return false, nil
	}
	m.idempotency[key] = now.Add(idempotencyKeyTTL)
	return true, nil
}

func (m *MemoryAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotency, key)
	return nil
}

func (m *MemoryAdapter) cartLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.cartLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.cartLocks[userID] = l
	}
	return l
}

func (m *MemoryAdapter) cartLocked(userID string) *domain.Cart {
	c, ok := m.carts[userID]
	if !ok {
		c = newCart(userID)
		m.carts[userID] = c
	}
	return c
}
