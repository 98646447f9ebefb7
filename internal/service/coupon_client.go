package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// CouponClient validates coupon codes against the external promotion
// service. It satisfies pricing.CouponValidator.
type CouponClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewCouponClient creates a new coupon client with a bounded timeout
func NewCouponClient(baseURL string, timeout time.Duration) *CouponClient {
	return &CouponClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  util.GetLogger(),
	}
}

type couponResponse struct {
	Valid    bool  `json:"valid"`
	Discount int64 `json:"discount"`
}

// Validate returns the discount for a coupon code, or
// models.ErrCouponInvalid when the promotion service rejects it. The
// discount is applied against the given subtotal by the pricing engine.
func (cc *CouponClient) Validate(ctx context.Context, code string, userID, subtotal int64) (int64, error) {
	ctx, span := util.StartSpan(ctx, "CouponClient.Validate")
	defer span.End()

	endpoint := fmt.Sprintf("%s/api/v1/coupons/%s/validate?user_id=%d&subtotal=%d",
		cc.baseURL, url.PathEscape(code), userID, subtotal)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := cc.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("coupon service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, models.ErrCouponInvalid
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coupon service returned status %d", resp.StatusCode)
	}

	var result couponResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("malformed coupon response: %w", err)
	}

	if !result.Valid {
		return 0, models.ErrCouponInvalid
	}

	cc.logger.Debug("Coupon validated",
		zap.String("code", code),
		zap.Int64("discount", result.Discount))

	return result.Discount, nil
}
