// Package status holds the single legal-transition table for order and
// payment statuses. Every state write in the pipeline consults it first;
// an illegal transition is a descriptive, non-fatal error that callers
// treat as a no-op, never as a reason to abort the surrounding request.
package status

import (
	"fmt"

	"checkout-service/internal/models"
)

// TransitionError describes a rejected state transition
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition: %s -> %s", e.Entity, e.From, e.To)
}

var orderTransitions = map[string][]string{
	models.OrderStatusPending:    {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed:  {models.OrderStatusProcessing, models.OrderStatusCancelled, models.OrderStatusRefunded},
	models.OrderStatusProcessing: {models.OrderStatusShipped, models.OrderStatusRefunded},
	models.OrderStatusShipped:    {models.OrderStatusDelivered, models.OrderStatusRefunded},
	models.OrderStatusDelivered:  {models.OrderStatusRefunded},
	models.OrderStatusCancelled:  {},
	models.OrderStatusRefunded:   {},
}

var orderPaymentTransitions = map[string][]string{
	models.OrderPaymentStatusPending:  {models.OrderPaymentStatusPaid, models.OrderPaymentStatusFailed},
	models.OrderPaymentStatusFailed:   {models.OrderPaymentStatusPending, models.OrderPaymentStatusPaid},
	models.OrderPaymentStatusPaid:     {models.OrderPaymentStatusRefunded},
	models.OrderPaymentStatusRefunded: {},
}

var paymentTransitions = map[string][]string{
	models.PaymentStatusPending:   {models.PaymentStatusCompleted, models.PaymentStatusFailed},
	models.PaymentStatusCompleted: {models.PaymentStatusRefunded},
	models.PaymentStatusFailed:    {},
	models.PaymentStatusRefunded:  {},
}

func allowed(table map[string][]string, from, to string) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionOrder reports whether an order may move from one status
// to another
func CanTransitionOrder(from, to string) bool {
	return allowed(orderTransitions, from, to)
}

// CanTransitionOrderPayment reports whether an order's payment status
// may move from one status to another
func CanTransitionOrderPayment(from, to string) bool {
	return allowed(orderPaymentTransitions, from, to)
}

// CanTransitionPayment reports whether a payment may move from one
// status to another
func CanTransitionPayment(from, to string) bool {
	return allowed(paymentTransitions, from, to)
}

// CheckOrder validates an order status transition
func CheckOrder(from, to string) error {
	if !CanTransitionOrder(from, to) {
		return &TransitionError{Entity: "order", From: from, To: to}
	}
	return nil
}

// CheckOrderPayment validates an order payment status transition
func CheckOrderPayment(from, to string) error {
	if !CanTransitionOrderPayment(from, to) {
		return &TransitionError{Entity: "order payment", From: from, To: to}
	}
	return nil
}

// CheckPayment validates a payment status transition
func CheckPayment(from, to string) error {
	if !CanTransitionPayment(from, to) {
		return &TransitionError{Entity: "payment", From: from, To: to}
	}
	return nil
}

// IsTerminalOrder reports whether no further automatic transition can
// occur for an order status
func IsTerminalOrder(s string) bool {
	return len(orderTransitions[s]) == 0
}
