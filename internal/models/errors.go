package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for recoverable client failures
var (
	ErrCartEmpty       = errors.New("cart is empty")
	ErrUnauthorized    = errors.New("principal is not authorized for this resource")
	ErrCouponInvalid   = errors.New("coupon is invalid or expired")
	ErrOrderNotFound   = errors.New("order not found")
	ErrPaymentNotFound = errors.New("payment not found")
)

// StockConflictError reports every item that blocked order creation,
// so the caller can re-confirm the whole cart in one round trip.
type StockConflictError struct {
	Verdicts []StockVerdict
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("stock conflict on %d item(s)", len(e.Verdicts))
}

// ValidationError carries field-level detail for invalid input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// GatewayError wraps a failed call to an external payment gateway.
// Retryable errors leave the order in pending so the caller may open
// a fresh payment attempt.
type GatewayError struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Provider, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// AmountMismatchError is an integrity failure: the amount that would be
// sent to a gateway does not equal the order total. It aborts the
// operation and is never silently corrected.
type AmountMismatchError struct {
	OrderTotal int64
	Computed   int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch: order total %d, computed %d", e.OrderTotal, e.Computed)
}
