package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	cartKeyPrefix     = "cart:"
	idempotencyKeyTTL = 24 * time.Hour
)

type cartRecord struct {
	UserID    string           `json:"userId"`
	Items     []lineItemRecord `json:"items"`
	Version   int64            `json:"version"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type RedisAdapter struct {
	client      *redis.Client
	maxAttempts int
}

func NewRedisAdapter(client *redis.Client, maxAttempts int) *RedisAdapter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxMutateAttempts
	}
	return &RedisAdapter{client: client, maxAttempts: maxAttempts}
}

// GetOrCreateCart relies on SETNX so that only the first caller's empty cart is stored.
func (r *RedisAdapter) GetOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error) {
	key := cartKeyPrefix + userID

	data, err := encodeCart(newCart(userID))
	if err != nil {
		return nil, err
	}
	if err := r.client.SetNX(ctx, key, data, 0).Err(); err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return decodeCart(raw)
}

// MutateCart runs the read-modify-write under WATCH; a concurrent write to
// the key aborts the MULTI and the mutation is retried.
func (r *RedisAdapter) MutateCart(ctx context.Context, userID string, fn port.CartMutation) (*domain.Cart, error) {
	key := cartKeyPrefix + userID
	var result *domain.Cart

	err := withOptimisticRetry(ctx, r.maxAttempts, func() error {
		txErr := r.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := r.loadCart(ctx, tx, key, userID)
			if err != nil {
				return err
			}

			next := current.Clone()
			if err := fn(next); err != nil {
				return err
			}
			next.Version = current.Version + 1
			next.UpdatedAt = time.Now().UTC()

			data, err := encodeCart(next)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				return nil
			})
			if err != nil {
				return err
			}

			result = next
			return nil
		}, key)

		if errors.Is(txErr, redis.TxFailedErr) {
			return ErrOptimisticLock
		}
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisAdapter) loadCart(ctx context.Context, tx *redis.Tx, key, userID string) (*domain.Cart, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return newCart(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return decodeCart(raw)
}

func newCart(userID string) *domain.Cart {
	now := time.Now().UTC()
	return &domain.Cart{
		UserID:    userID,
		Items:     []domain.LineItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func encodeCart(c *domain.Cart) ([]byte, error) {
	rec := cartRecord{
		UserID:    c.UserID,
		Items:     make([]lineItemRecord, len(c.Items)),
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	for i, it := range c.Items {
		rec.Items[i] = lineItemRecord{ProductID: it.ProductID, Qty: it.Qty}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode cart: %w", err)
	}
	return data, nil
}

func decodeCart(data []byte) (*domain.Cart, error) {
	var rec cartRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	c := &domain.Cart{
		UserID:    rec.UserID,
		Items:     make([]domain.LineItem, len(rec.Items)),
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	for i, it := range rec.Items {
		c.Items[i] = domain.LineItem{ProductID: it.ProductID, Qty: it.Qty}
	}
	return c, nil
}
