package pricing

import (
	"context"
	"fmt"

	"checkout-service/config"
	"checkout-service/internal/models"
	"checkout-service/internal/redisclient"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// CouponValidator is the external coupon collaborator. It returns the
// discount amount for a code, or models.ErrCouponInvalid.
type CouponValidator interface {
	Validate(ctx context.Context, code string, userID, subtotal int64) (int64, error)
}

// Engine prices a user's current cart. Prices are always re-read from
// the catalog at call time, never taken from cart state.
type Engine struct {
	store   *store.Store
	carts   *redisclient.Client
	coupons CouponValidator
	cfg     config.BusinessConfig
	logger  *zap.Logger
}

// NewEngine creates a new pricing engine
func NewEngine(store *store.Store, carts *redisclient.Client, coupons CouponValidator, cfg config.BusinessConfig) *Engine {
	return &Engine{
		store:   store,
		carts:   carts,
		coupons: coupons,
		cfg:     cfg,
		logger:  util.GetLogger(),
	}
}

// Quote prices the user's cart with an optional coupon and shipping
// method and returns the full breakdown.
func (e *Engine) Quote(ctx context.Context, userID int64, couponCode, shippingMethod string) (*models.PricingBreakdown, error) {
	ctx, span := util.StartSpan(ctx, "pricing.Quote")
	defer span.End()

	cart, err := e.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(cart.Items) == 0 {
		return nil, models.ErrCartEmpty
	}

	productIDs := make([]int64, len(cart.Items))
	for i, item := range cart.Items {
		productIDs[i] = item.ProductID
	}

	products, err := e.store.ProductMapByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	subtotal, err := Subtotal(cart.Items, products)
	if err != nil {
		return nil, err
	}

	var discount int64
	if couponCode != "" {
		discount, err = e.coupons.Validate(ctx, couponCode, userID, subtotal)
		if err != nil {
			return nil, err
		}
	}

	fee, err := ShippingFee(e.cfg, subtotal, shippingMethod)
	if err != nil {
		return nil, err
	}

	breakdown := Compute(subtotal, discount, fee)
	e.logger.Debug("Cart priced",
		zap.Int64("user_id", userID),
		zap.Int64("subtotal", breakdown.Subtotal),
		zap.Int64("total", breakdown.Total))
	return breakdown, nil
}

// Subtotal sums current catalog price times quantity over the cart
func Subtotal(items []models.CartItem, products map[int64]*models.Product) (int64, error) {
	var subtotal int64
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return 0, &models.ValidationError{
				Field:  "items",
				Reason: fmt.Sprintf("product %d no longer exists", item.ProductID),
			}
		}
		subtotal += product.Price * int64(item.Quantity)
	}
	return subtotal, nil
}

// ShippingFee returns the fee for a shipping method. The fee is zero at
// or above the free-shipping threshold.
func ShippingFee(cfg config.BusinessConfig, subtotal int64, method string) (int64, error) {
	if subtotal >= cfg.FreeShippingThreshold {
		return 0, nil
	}

	switch method {
	case models.ShippingMethodStandard, "":
		return cfg.ShippingFeeStandard, nil
	case models.ShippingMethodExpress:
		return cfg.ShippingFeeExpress, nil
	default:
		return 0, &models.ValidationError{Field: "shipping_method", Reason: "unknown shipping method"}
	}
}

// Compute assembles the final breakdown. The discount is capped at the
// subtotal so a coupon can never drive the total negative. Tax is a
// pass-through: VAT is assumed included in listed prices.
func Compute(subtotal, discount, shippingFee int64) *models.PricingBreakdown {
	if discount > subtotal {
		discount = subtotal
	}
	return &models.PricingBreakdown{
		Subtotal:    subtotal,
		Discount:    discount,
		ShippingFee: shippingFee,
		Tax:         0,
		Total:       subtotal - discount + shippingFee,
	}
}
