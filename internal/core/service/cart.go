package service

import (
	"fmt"

	"github.com/rl1809/storefront/internal/core/domain"
)

// AddLine merges qty units of productID into items. A product already in the
// cart has its quantity incremented; otherwise a new line is appended.
// The input slice is never modified.
func AddLine(items []domain.LineItem, productID string, qty int) ([]domain.LineItem, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: qty must be positive, got %d", ErrInvalidData, qty)
	}
	if qty > domain.MaxLineQuantity {
		return nil, fmt.Errorf("%w: qty exceeds %d", ErrInvalidData, domain.MaxLineQuantity)
	}

	out := make([]domain.LineItem, len(items), len(items)+1)
	copy(out, items)

	for i := range out {
		if out[i].ProductID != productID {
			continue
		}
		if out[i].Qty+qty > domain.MaxLineQuantity {
			return nil, fmt.Errorf("%w: qty for %s would exceed %d", ErrInvalidData, productID, domain.MaxLineQuantity)
		}
		out[i].Qty += qty
		return out, nil
	}

	return append(out, domain.LineItem{ProductID: productID, Qty: qty}), nil
}

// RemoveLine drops every line for productID. Removing an absent product
// returns an equal copy of items.
func RemoveLine(items []domain.LineItem, productID string) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, it := range items {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	return out
}

// ComputeTotal sums qty × price over items. Lines whose product has no price
// are left out of the amount and reported in unresolved.
func ComputeTotal(items []domain.LineItem, prices map[string]int64) (total int64, unresolved []string) {
	for _, it := range items {
		price, ok := prices[it.ProductID]
		if !ok {
			unresolved = append(unresolved, it.ProductID)
			continue
		}
		total += int64(it.Qty) * price
	}
	return total, unresolved
}

// PriceCart resolves cart lines against products and derives the total.
func PriceCart(cart *domain.Cart, products map[string]domain.Product) domain.CartView {
	prices := make(map[string]int64, len(products))
	for id, p := range products {
		prices[id] = p.Price
	}

	total, _ := ComputeTotal(cart.Items, prices)

	view := domain.CartView{
		UserID:    cart.UserID,
		Items:     make([]domain.CartLine, 0, len(cart.Items)),
		Total:     total,
		CreatedAt: cart.CreatedAt,
	}
	for _, it := range cart.Items {
		line := domain.CartLine{ProductID: it.ProductID, Qty: it.Qty}
		if p, ok := products[it.ProductID]; ok {
			product := p
			line.Product = &product
			line.LineTotal = int64(it.Qty) * p.Price
		} else {
			line.Unavailable = true
		}
		view.Items = append(view.Items, line)
	}
	return view
}

func productIDs(items []domain.LineItem) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	return ids
}
