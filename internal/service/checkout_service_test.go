package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderNumberFormat(t *testing.T) {
	now := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	number := NewOrderNumber(now)

	parts := strings.Split(number, "-")
	require.Len(t, parts, 3)
	assert.Equal(t, "ORD", parts[0])
	assert.Equal(t, "20250314", parts[1])
	assert.Len(t, parts[2], 8)
	assert.Equal(t, strings.ToUpper(parts[2]), parts[2])
}

func TestNewOrderNumberIsUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		number := NewOrderNumber(now)
		assert.False(t, seen[number], "duplicate order number %s", number)
		seen[number] = true
	}
}

func TestValidateAddresses(t *testing.T) {
	req := &CreateOrderRequest{
		ShippingAddress: "Jl. Sudirman No. 1, Jakarta",
		BillingAddress:  "Jl. Sudirman No. 1, Jakarta",
	}
	assert.NoError(t, validateAddresses(req))

	req.ShippingAddress = "   "
	err := validateAddresses(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shipping_address")

	req.ShippingAddress = "Jl. Sudirman No. 1, Jakarta"
	req.BillingAddress = ""
	err = validateAddresses(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "billing_address")
}
