package status

import (
	"testing"

	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestOrderTransitions(t *testing.T) {
	assert.True(t, CanTransitionOrder(models.OrderStatusPending, models.OrderStatusConfirmed))
	assert.True(t, CanTransitionOrder(models.OrderStatusPending, models.OrderStatusCancelled))
	assert.True(t, CanTransitionOrder(models.OrderStatusConfirmed, models.OrderStatusCancelled))
	assert.True(t, CanTransitionOrder(models.OrderStatusConfirmed, models.OrderStatusProcessing))
	assert.True(t, CanTransitionOrder(models.OrderStatusShipped, models.OrderStatusDelivered))
	assert.True(t, CanTransitionOrder(models.OrderStatusDelivered, models.OrderStatusRefunded))

	// cancelled is only reachable from pending/confirmed
	assert.False(t, CanTransitionOrder(models.OrderStatusProcessing, models.OrderStatusCancelled))
	assert.False(t, CanTransitionOrder(models.OrderStatusShipped, models.OrderStatusCancelled))

	// no resurrection from terminal states
	assert.False(t, CanTransitionOrder(models.OrderStatusCancelled, models.OrderStatusConfirmed))
	assert.False(t, CanTransitionOrder(models.OrderStatusRefunded, models.OrderStatusPending))

	// no skipping
	assert.False(t, CanTransitionOrder(models.OrderStatusPending, models.OrderStatusShipped))
	assert.False(t, CanTransitionOrder(models.OrderStatusPending, models.OrderStatusRefunded))
}

func TestOrderPaymentTransitions(t *testing.T) {
	assert.True(t, CanTransitionOrderPayment(models.OrderPaymentStatusPending, models.OrderPaymentStatusPaid))
	assert.True(t, CanTransitionOrderPayment(models.OrderPaymentStatusPending, models.OrderPaymentStatusFailed))
	// a customer may retry after a failed attempt
	assert.True(t, CanTransitionOrderPayment(models.OrderPaymentStatusFailed, models.OrderPaymentStatusPending))
	assert.True(t, CanTransitionOrderPayment(models.OrderPaymentStatusFailed, models.OrderPaymentStatusPaid))
	assert.True(t, CanTransitionOrderPayment(models.OrderPaymentStatusPaid, models.OrderPaymentStatusRefunded))

	assert.False(t, CanTransitionOrderPayment(models.OrderPaymentStatusPaid, models.OrderPaymentStatusPending))
	assert.False(t, CanTransitionOrderPayment(models.OrderPaymentStatusRefunded, models.OrderPaymentStatusPaid))
}

func TestPaymentTransitions(t *testing.T) {
	assert.True(t, CanTransitionPayment(models.PaymentStatusPending, models.PaymentStatusCompleted))
	assert.True(t, CanTransitionPayment(models.PaymentStatusPending, models.PaymentStatusFailed))
	assert.True(t, CanTransitionPayment(models.PaymentStatusCompleted, models.PaymentStatusRefunded))

	// a completed payment never becomes pending or failed again
	assert.False(t, CanTransitionPayment(models.PaymentStatusCompleted, models.PaymentStatusPending))
	assert.False(t, CanTransitionPayment(models.PaymentStatusCompleted, models.PaymentStatusFailed))
	assert.False(t, CanTransitionPayment(models.PaymentStatusFailed, models.PaymentStatusCompleted))
}

func TestCheckReturnsDescriptiveError(t *testing.T) {
	err := CheckOrder(models.OrderStatusCancelled, models.OrderStatusConfirmed)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
	assert.Contains(t, err.Error(), "confirmed")

	assert.NoError(t, CheckOrder(models.OrderStatusPending, models.OrderStatusConfirmed))
}

func TestIsTerminalOrder(t *testing.T) {
	assert.True(t, IsTerminalOrder(models.OrderStatusCancelled))
	assert.True(t, IsTerminalOrder(models.OrderStatusRefunded))
	assert.False(t, IsTerminalOrder(models.OrderStatusPending))
	assert.False(t, IsTerminalOrder(models.OrderStatusDelivered))
}
