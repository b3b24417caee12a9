package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type lineItemRecord struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

type MySQLAdapter struct {
	db          *sql.DB
	maxAttempts int
}

func NewMySQLAdapter(db *sql.DB, maxAttempts int) *MySQLAdapter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxMutateAttempts
	}
	return &MySQLAdapter{db: db, maxAttempts: maxAttempts}
}

func (m *MySQLAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, price, image, description
		FROM products ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Image, &p.Description); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, price, image, description
		FROM products WHERE id = ?`, productID,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Image, &p.Description)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) GetProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(productIDs)), ",")
	args := make([]any, len(productIDs))
	for i, id := range productIDs {
		args[i] = id
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, price, image, description
		FROM products WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Image, &p.Description); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

func (m *MySQLAdapter) CountProducts(ctx context.Context) (int, error) {
	var count int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

func (m *MySQLAdapter) InsertProducts(ctx context.Context, products []domain.Product) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, p := range products {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO products (id, name, price, image, description)
			VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Price, p.Image, p.Description,
		)
		if err != nil {
			return fmt.Errorf("insert product %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// GetOrCreateCart inserts with INSERT IGNORE so that concurrent first
// accesses for the same user converge on a single row.
func (m *MySQLAdapter) GetOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := m.getCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}

	now := time.Now().UTC()
	_, err = m.db.ExecContext(ctx, `
		INSERT IGNORE INTO carts (user_id, items, version, created_at, updated_at)
		VALUES (?, '[]', 0, ?, ?)`,
		userID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert cart: %w", err)
	}

	cart, err = m.getCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("cart for %s missing after insert", userID)
	}
	return cart, nil
}

// MutateCart writes with a version check and retries the whole
// read-modify-write when another writer got there first.
func (m *MySQLAdapter) MutateCart(ctx context.Context, userID string, fn port.CartMutation) (*domain.Cart, error) {
	var result *domain.Cart

	err := withOptimisticRetry(ctx, m.maxAttempts, func() error {
		current, err := m.GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}
		next.UpdatedAt = time.Now().UTC()

		items, err := encodeItems(next.Items)
		if err != nil {
			return err
		}

		res, err := m.db.ExecContext(ctx, `
			UPDATE carts
			SET items = ?, version = version + 1, updated_at = ?
			WHERE user_id = ? AND version = ?`,
			items, next.UpdatedAt, userID, current.Version,
		)
		if err != nil {
			return fmt.Errorf("update cart: %w", err)
		}

		rows, _ := res.RowsAffected()
		if rows == 0 {
			return ErrOptimisticLock
		}

		next.Version = current.Version + 1
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *MySQLAdapter) getCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var (
		c     domain.Cart
		items []byte
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT user_id, items, version, created_at, updated_at
		FROM carts WHERE user_id = ?`, userID,
	).Scan(&c.UserID, &items, &c.Version, &c.CreatedAt, &c.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}

	c.Items, err = decodeItems(items)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func encodeItems(items []domain.LineItem) ([]byte, error) {
	records := make([]lineItemRecord, len(items))
	for i, it := range items {
		records[i] = lineItemRecord{ProductID: it.ProductID, Qty: it.Qty}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode cart items: %w", err)
	}
	return data, nil
}

func decodeItems(data []byte) ([]domain.LineItem, error) {
	var records []lineItemRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}
	items := make([]domain.LineItem, len(records))
	for i, r := range records {
		items[i] = domain.LineItem{ProductID: r.ProductID, Qty: r.Qty}
	}
	return items, nil
}
