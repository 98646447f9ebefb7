package service

import (
	"testing"

	"checkout-service/internal/gateway"
	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLineItemsSumMatchesTotal(t *testing.T) {
	order := &models.Order{
		Subtotal:       400000,
		Discount:       50000,
		ShippingFee:    15000,
		TotalAmount:    365000,
		ShippingMethod: models.ShippingMethodStandard,
		CouponCode:     "WELCOME10",
	}
	items := []models.OrderItem{
		{ProductName: "Keyboard", Quantity: 2, UnitPrice: 150000, TotalPrice: 300000},
		{ProductName: "Mouse", Quantity: 2, UnitPrice: 50000, TotalPrice: 100000},
	}

	lines := BuildLineItems(order, items)
	require.Len(t, lines, 4)

	assert.Equal(t, "Keyboard", lines[0].Name)
	assert.Equal(t, "Shipping (standard)", lines[2].Name)
	assert.Equal(t, int64(15000), lines[2].UnitAmount)
	assert.Equal(t, "Discount (WELCOME10)", lines[3].Name)
	assert.Equal(t, int64(-50000), lines[3].UnitAmount)

	assert.Equal(t, order.TotalAmount, gateway.SumLineItems(lines))
}

func TestBuildLineItemsFreeShippingNoCoupon(t *testing.T) {
	order := &models.Order{
		Subtotal:    600000,
		TotalAmount: 600000,
	}
	items := []models.OrderItem{
		{ProductName: "Monitor", Quantity: 1, UnitPrice: 600000, TotalPrice: 600000},
	}

	lines := BuildLineItems(order, items)
	require.Len(t, lines, 1)
	assert.Equal(t, order.TotalAmount, gateway.SumLineItems(lines))
}
