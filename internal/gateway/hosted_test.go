package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionAmountMismatchFailsBeforeNetworkCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := NewHostedClient(srv.URL, "sk_test", 5*time.Second)

	_, err := client.CreateSession(context.Background(), SessionRequest{
		Reference: "ORD-1",
		Amount:    500000,
		Currency:  "IDR",
		LineItems: []LineItem{
			{Name: "Widget", UnitAmount: 200000, Quantity: 2}, // sums to 400000
		},
	})

	var mismatch *models.AmountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, int64(500000), mismatch.OrderTotal)
	assert.Equal(t, int64(400000), mismatch.Computed)
	assert.False(t, called, "no external call may happen on an amount mismatch")
}

func TestCreateSessionSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var req SessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(515000), req.Amount)

		json.NewEncoder(w).Encode(Session{ID: "cs_123", RedirectURL: "https://pay.example.com/cs_123"})
	}))
	defer srv.Close()

	client := NewHostedClient(srv.URL, "sk_test", 5*time.Second)

	session, err := client.CreateSession(context.Background(), SessionRequest{
		Reference: "ORD-2",
		Amount:    515000,
		Currency:  "IDR",
		LineItems: []LineItem{
			{Name: "Widget", UnitAmount: 250000, Quantity: 2},
			{Name: "Shipping (standard)", UnitAmount: 15000, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_123", session.ID)
	assert.Equal(t, "https://pay.example.com/cs_123", session.RedirectURL)
}

func TestCreateSessionServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHostedClient(srv.URL, "sk_test", 5*time.Second)

	_, err := client.CreateSession(context.Background(), SessionRequest{
		Reference: "ORD-3",
		Amount:    100000,
		Currency:  "IDR",
		LineItems: []LineItem{{Name: "Widget", UnitAmount: 100000, Quantity: 1}},
	})

	var gerr *models.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.True(t, gerr.Retryable)
}

func TestCreateChargeSignsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload redirectChargePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, SignChargeRequest("merchant_secret", "M-1", payload.Reference, payload.Amount),
			payload.Signature)

		json.NewEncoder(w).Encode(Charge{TransactionID: "ptx_1", RedirectURL: "https://redirect.example.com/ptx_1"})
	}))
	defer srv.Close()

	client := NewRedirectClient(srv.URL, "M-1", "merchant_secret", 5*time.Second)

	charge, err := client.CreateCharge(context.Background(), ChargeRequest{
		Reference: "ORD-4",
		Amount:    250000,
		Currency:  "IDR",
	})
	require.NoError(t, err)
	assert.Equal(t, "ptx_1", charge.TransactionID)
}
