package pricing

import (
	"testing"

	"checkout-service/config"
	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCfg = config.BusinessConfig{
	Currency:              "IDR",
	FreeShippingThreshold: 500000,
	ShippingFeeStandard:   15000,
	ShippingFeeExpress:    35000,
}

func TestSubtotalUsesCurrentCatalogPrices(t *testing.T) {
	items := []models.CartItem{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, Quantity: 3},
	}
	products := map[int64]*models.Product{
		1: {ID: 1, Price: 200000},
		2: {ID: 2, Price: 100000},
	}

	subtotal, err := Subtotal(items, products)
	require.NoError(t, err)
	assert.Equal(t, int64(500000), subtotal)
}

func TestSubtotalMissingProduct(t *testing.T) {
	items := []models.CartItem{{ProductID: 9, Quantity: 1}}

	_, err := Subtotal(items, map[int64]*models.Product{})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "items", verr.Field)
}

func TestShippingFeeThreshold(t *testing.T) {
	// exactly at the threshold ships free
	fee, err := ShippingFee(testCfg, 500000, models.ShippingMethodStandard)
	require.NoError(t, err)
	assert.Equal(t, int64(0), fee)

	fee, err = ShippingFee(testCfg, 499999, models.ShippingMethodStandard)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), fee)

	fee, err = ShippingFee(testCfg, 100000, models.ShippingMethodExpress)
	require.NoError(t, err)
	assert.Equal(t, int64(35000), fee)

	_, err = ShippingFee(testCfg, 100000, "teleport")
	assert.Error(t, err)
}

func TestComputeAtFreeShippingThreshold(t *testing.T) {
	// 200,000 + 3x100,000, no coupon: subtotal 500,000, shipping 0
	breakdown := Compute(500000, 0, 0)

	assert.Equal(t, int64(500000), breakdown.Subtotal)
	assert.Equal(t, int64(0), breakdown.Discount)
	assert.Equal(t, int64(0), breakdown.ShippingFee)
	assert.Equal(t, int64(500000), breakdown.Total)
}

func TestComputeCapsDiscountAtSubtotal(t *testing.T) {
	breakdown := Compute(100000, 250000, 15000)

	assert.Equal(t, int64(100000), breakdown.Discount)
	assert.Equal(t, int64(15000), breakdown.Total)
}

func TestComputeWithDiscountAndShipping(t *testing.T) {
	breakdown := Compute(300000, 50000, 15000)

	assert.Equal(t, int64(300000-50000+15000), breakdown.Total)
	assert.Equal(t, breakdown.Subtotal-breakdown.Discount+breakdown.ShippingFee, breakdown.Total)
}
