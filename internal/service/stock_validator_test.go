package service

import (
	"testing"

	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerdictsAllAvailable(t *testing.T) {
	products := map[int64]*models.Product{
		1: {ID: 1, Name: "Keyboard", Price: 150000, StockQuantity: 10},
		2: {ID: 2, Name: "Mouse", Price: 50000, StockQuantity: 3},
	}
	items := []CheckoutItem{
		{ProductID: 1, Quantity: 2, DisplayedPrice: 150000},
		{ProductID: 2, Quantity: 3, DisplayedPrice: 50000},
	}

	verdicts := Verdicts(items, products)
	require.Len(t, verdicts, 2)
	for _, v := range verdicts {
		assert.True(t, v.Available)
		assert.False(t, v.PriceChanged)
	}
}

func TestVerdictsInsufficientStock(t *testing.T) {
	products := map[int64]*models.Product{
		1: {ID: 1, Price: 150000, StockQuantity: 1},
	}
	items := []CheckoutItem{{ProductID: 1, Quantity: 5, DisplayedPrice: 150000}}

	verdicts := Verdicts(items, products)
	require.Len(t, verdicts, 1)
	assert.False(t, verdicts[0].Available)
	assert.Equal(t, 5, verdicts[0].Requested)
	assert.Equal(t, 1, verdicts[0].InStock)
}

func TestVerdictsPriceDrift(t *testing.T) {
	products := map[int64]*models.Product{
		1: {ID: 1, Price: 175000, StockQuantity: 10},
	}
	items := []CheckoutItem{{ProductID: 1, Quantity: 1, DisplayedPrice: 150000}}

	verdicts := Verdicts(items, products)
	require.Len(t, verdicts, 1)
	assert.True(t, verdicts[0].Available)
	assert.True(t, verdicts[0].PriceChanged)
	assert.Equal(t, int64(175000), verdicts[0].CurrentPrice)
}

func TestVerdictsUnknownProduct(t *testing.T) {
	items := []CheckoutItem{{ProductID: 99, Quantity: 1, DisplayedPrice: 1000}}

	verdicts := Verdicts(items, map[int64]*models.Product{})
	require.Len(t, verdicts, 1)
	assert.False(t, verdicts[0].Available)
	assert.Equal(t, int64(99), verdicts[0].ProductID)
}

func TestConflictingFiltersCleanVerdicts(t *testing.T) {
	verdicts := []models.StockVerdict{
		{ProductID: 1, Available: true},
		{ProductID: 2, Available: false},
		{ProductID: 3, Available: true, PriceChanged: true},
	}

	out := conflicting(verdicts)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].ProductID)
	assert.Equal(t, int64(3), out[1].ProductID)
}
