package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/core/domain"
)

const (
	productP = "6f1c2b7e-0000-4000-8000-000000000001"
	productQ = "6f1c2b7e-0000-4000-8000-000000000002"
	productR = "6f1c2b7e-0000-4000-8000-000000000003"
)

func TestAddLine_AppendsNewProduct(t *testing.T) {
	items, err := AddLine(nil, productP, 2)
	require.NoError(t, err)
	assert.Equal(t, []domain.LineItem{{ProductID: productP, Qty: 2}}, items)
}

func TestAddLine_MergesRepeatedProduct(t *testing.T) {
	items, err := AddLine(nil, productP, 2)
	require.NoError(t, err)

	items, err = AddLine(items, productP, 3)
	require.NoError(t, err)

	assert.Equal(t, []domain.LineItem{{ProductID: productP, Qty: 5}}, items)
}

func TestAddLine_DoesNotModifyInput(t *testing.T) {
	in := []domain.LineItem{{ProductID: productP, Qty: 1}}

	_, err := AddLine(in, productP, 4)
	require.NoError(t, err)

	assert.Equal(t, 1, in[0].Qty)
}

func TestAddLine_RejectsInvalidQuantity(t *testing.T) {
	tests := map[string]int{
		"zero":           0,
		"negative":       -1,
		"above ceiling":  domain.MaxLineQuantity + 1,
		"very large int": int(^uint(0) >> 1),
	}

	for name, qty := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := AddLine(nil, productP, qty)
			assert.True(t, errors.Is(err, ErrInvalidData), "got %v", err)
		})
	}
}

func TestAddLine_RejectsMergeAboveCeiling(t *testing.T) {
	items := []domain.LineItem{{ProductID: productP, Qty: domain.MaxLineQuantity}}

	_, err := AddLine(items, productP, 1)
	require.ErrorIs(t, err, ErrInvalidData)

	items, err = AddLine([]domain.LineItem{{ProductID: productP, Qty: domain.MaxLineQuantity - 1}}, productP, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxLineQuantity, items[0].Qty)
}

func TestRemoveLine(t *testing.T) {
	items := []domain.LineItem{
		{ProductID: productP, Qty: 5},
		{ProductID: productQ, Qty: 1},
	}

	t.Run("drops the whole line", func(t *testing.T) {
		out := RemoveLine(items, productP)
		assert.Equal(t, []domain.LineItem{{ProductID: productQ, Qty: 1}}, out)
	})

	t.Run("absent product is a no-op", func(t *testing.T) {
		out := RemoveLine(items, productR)
		assert.Equal(t, items, out)
	})
}

func TestComputeTotal(t *testing.T) {
	items := []domain.LineItem{
		{ProductID: productP, Qty: 2},
		{ProductID: productQ, Qty: 1},
	}
	prices := map[string]int64{productP: 100, productQ: 50}

	first, unresolved := ComputeTotal(items, prices)
	second, _ := ComputeTotal(items, prices)

	assert.Equal(t, int64(250), first)
	assert.Equal(t, first, second)
	assert.Empty(t, unresolved)
}

func TestComputeTotal_SkipsUnresolvedProducts(t *testing.T) {
	items := []domain.LineItem{
		{ProductID: productP, Qty: 2},
		{ProductID: productR, Qty: 7},
	}

	total, unresolved := ComputeTotal(items, map[string]int64{productP: 100})

	assert.Equal(t, int64(200), total)
	assert.Equal(t, []string{productR}, unresolved)
}

func TestPriceCart_FlagsOrphanedLines(t *testing.T) {
	cart := &domain.Cart{
		UserID: "user-1",
		Items: []domain.LineItem{
			{ProductID: productP, Qty: 3},
			{ProductID: productR, Qty: 1},
		},
	}
	products := map[string]domain.Product{
		productP: {ID: productP, Name: "Vibe Tee", Price: 799},
	}

	view := PriceCart(cart, products)

	require.Len(t, view.Items, 2)
	assert.Equal(t, int64(3*799), view.Total)
	assert.Equal(t, int64(3*799), view.Items[0].LineTotal)
	assert.False(t, view.Items[0].Unavailable)
	require.NotNil(t, view.Items[0].Product)
	assert.Equal(t, "Vibe Tee", view.Items[0].Product.Name)

	assert.True(t, view.Items[1].Unavailable)
	assert.Nil(t, view.Items[1].Product)
	assert.Zero(t, view.Items[1].LineTotal)
}
