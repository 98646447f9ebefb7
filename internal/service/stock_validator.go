package service

import (
	"context"
	"fmt"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// StockValidator checks availability and price drift between the time
// items entered the cart and order-placement time. Any shortfall or
// drifted price blocks order creation with an itemized report; the
// customer must re-confirm before retrying.
type StockValidator struct {
	store  *store.Store
	logger *zap.Logger
}

// NewStockValidator creates a new stock validator
func NewStockValidator(store *store.Store) *StockValidator {
	return &StockValidator{
		store:  store,
		logger: util.GetLogger(),
	}
}

// CheckoutItem is one requested line at order-placement time.
// DisplayedPrice is the unit price the UI last showed the customer.
type CheckoutItem struct {
	ProductID      int64 `json:"product_id" binding:"required"`
	Quantity       int   `json:"quantity" binding:"required,min=1"`
	DisplayedPrice int64 `json:"displayed_price" binding:"required"`
}

// Validate reads live products and returns per-item verdicts plus the
// product map for snapshotting. A *models.StockConflictError is
// returned when any item is short or has drifted in price.
func (sv *StockValidator) Validate(ctx context.Context, items []CheckoutItem) (map[int64]*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "StockValidator.Validate")
	defer span.End()

	productIDs := make([]int64, len(items))
	for i, item := range items {
		productIDs[i] = item.ProductID
	}

	products, err := sv.store.ProductMapByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	verdicts := Verdicts(items, products)
	for _, v := range verdicts {
		if !v.Available || v.PriceChanged {
			util.StockConflictsTotal.Inc()
			sv.logger.Info("Checkout blocked by stock conflict",
				zap.Int("items", len(items)))
			return nil, &models.StockConflictError{Verdicts: conflicting(verdicts)}
		}
	}

	return products, nil
}

// Verdicts builds the per-item report against live products
func Verdicts(items []CheckoutItem, products map[int64]*models.Product) []models.StockVerdict {
	verdicts := make([]models.StockVerdict, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			verdicts = append(verdicts, models.StockVerdict{
				ProductID: item.ProductID,
				Available: false,
				Requested: item.Quantity,
			})
			continue
		}

		verdicts = append(verdicts, models.StockVerdict{
			ProductID:    product.ID,
			Available:    product.StockQuantity >= item.Quantity,
			Requested:    item.Quantity,
			InStock:      product.StockQuantity,
			PriceChanged: product.Price != item.DisplayedPrice,
			CurrentPrice: product.Price,
		})
	}
	return verdicts
}

func conflicting(verdicts []models.StockVerdict) []models.StockVerdict {
	out := make([]models.StockVerdict, 0, len(verdicts))
	for _, v := range verdicts {
		if !v.Available || v.PriceChanged {
			out = append(out, v)
		}
	}
	return out
}
