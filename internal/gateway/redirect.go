package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"checkout-service/internal/util"

	"go.uber.org/zap"
)

const redirectProvider = "redirect"

// RedirectClient talks to the redirect payment gateway (local payment
// network). Requests are authenticated with a per-request HMAC over the
// merchant id, reference and amount instead of a bearer token.
type RedirectClient struct {
	baseURL    string
	merchantID string
	secret     string
	client     *http.Client
	logger     *zap.Logger
}

// NewRedirectClient creates a redirect gateway client with a bounded
// request timeout
func NewRedirectClient(baseURL, merchantID, secret string, timeout time.Duration) *RedirectClient {
	return &RedirectClient{
		baseURL:    baseURL,
		merchantID: merchantID,
		secret:     secret,
		client:     &http.Client{Timeout: timeout},
		logger:     util.GetLogger(),
	}
}

type redirectChargePayload struct {
	MerchantID string `json:"merchant_id"`
	Reference  string `json:"reference"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
	Signature  string `json:"signature"`
}

// SignChargeRequest computes the provider's request signature
func SignChargeRequest(secret, merchantID, reference string, amount int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s|%s|%d", merchantID, reference, amount)
	return hex.EncodeToString(mac.Sum(nil))
}

// CreateCharge opens a charge and returns the provisional transaction
// id plus the URL the customer is redirected to
func (rc *RedirectClient) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	ctx, span := util.StartSpan(ctx, "gateway.RedirectClient.CreateCharge")
	defer span.End()

	start := time.Now()
	defer func() {
		util.GatewayRequestDuration.WithLabelValues(redirectProvider).Observe(time.Since(start).Seconds())
	}()

	payload := redirectChargePayload{
		MerchantID: rc.merchantID,
		Reference:  req.Reference,
		Amount:     req.Amount,
		Currency:   req.Currency,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		Signature:  SignChargeRequest(rc.secret, rc.merchantID, req.Reference, req.Amount),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		rc.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := rc.client.Do(httpReq)
	if err != nil {
		return nil, retryable(redirectProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, retryable(redirectProvider, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var charge Charge
	if err := json.NewDecoder(resp.Body).Decode(&charge); err != nil {
		return nil, retryable(redirectProvider, fmt.Errorf("malformed response: %w", err))
	}
	if charge.TransactionID == "" || charge.RedirectURL == "" {
		return nil, retryable(redirectProvider, fmt.Errorf("incomplete charge response"))
	}

	rc.logger.Info("Redirect charge opened",
		zap.String("reference", req.Reference),
		zap.String("tx_id", charge.TransactionID))

	return &charge, nil
}
