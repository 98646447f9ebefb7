// Package gateway holds the adapters for the external payment
// gateways: a hosted-checkout provider driven by a line-item API and a
// redirect provider driven by signed charge requests. Both surface
// failures as retryable *models.GatewayError so the checkout request
// never hangs and the order stays pending for a fresh attempt.
package gateway

import (
	"checkout-service/internal/models"
)

// LineItem mirrors one order item (or the shipping fee) in a hosted
// checkout session
type LineItem struct {
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   int    `json:"quantity"`
}

// SessionRequest opens a hosted checkout session
type SessionRequest struct {
	Reference  string     `json:"reference"`
	Amount     int64      `json:"amount"`
	Currency   string     `json:"currency"`
	LineItems  []LineItem `json:"line_items"`
	SuccessURL string     `json:"success_url"`
	CancelURL  string     `json:"cancel_url"`
}

// Session is the gateway's answer to an opened hosted session
type Session struct {
	ID          string `json:"id"`
	RedirectURL string `json:"url"`
}

// ChargeRequest opens a redirect charge
type ChargeRequest struct {
	Reference  string `json:"reference"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// Charge is the gateway's answer to an opened redirect charge
type Charge struct {
	TransactionID string `json:"transaction_id"`
	RedirectURL   string `json:"redirect_url"`
}

// SumLineItems returns the total the gateway would charge for a session
func SumLineItems(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.UnitAmount * int64(item.Quantity)
	}
	return total
}

func retryable(provider string, err error) *models.GatewayError {
	return &models.GatewayError{Provider: provider, Retryable: true, Err: err}
}
