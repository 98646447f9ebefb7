package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

const hostedProvider = "hosted"

// HostedClient talks to the hosted-checkout gateway (card payments)
type HostedClient struct {
	baseURL   string
	secretKey string
	client    *http.Client
	logger    *zap.Logger
}

// NewHostedClient creates a hosted-checkout gateway client with a
// bounded request timeout
func NewHostedClient(baseURL, secretKey string, timeout time.Duration) *HostedClient {
	return &HostedClient{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
		logger:    util.GetLogger(),
	}
}

// CreateSession opens a hosted checkout session. The line-item sum must
// equal the requested amount; a mismatch is a fatal construction error
// raised before any network call.
func (hc *HostedClient) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	ctx, span := util.StartSpan(ctx, "gateway.HostedClient.CreateSession")
	defer span.End()

	if sum := SumLineItems(req.LineItems); sum != req.Amount {
		return nil, &models.AmountMismatchError{OrderTotal: req.Amount, Computed: sum}
	}

	start := time.Now()
	defer func() {
		util.GatewayRequestDuration.WithLabelValues(hostedProvider).Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		hc.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+hc.secretKey)

	resp, err := hc.client.Do(httpReq)
	if err != nil {
		return nil, retryable(hostedProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, retryable(hostedProvider, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, retryable(hostedProvider, fmt.Errorf("malformed response: %w", err))
	}
	if session.ID == "" || session.RedirectURL == "" {
		return nil, retryable(hostedProvider, fmt.Errorf("incomplete session response"))
	}

	hc.logger.Info("Hosted checkout session opened",
		zap.String("reference", req.Reference),
		zap.String("session_id", session.ID))

	return &session, nil
}
