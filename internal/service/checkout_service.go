package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkout-service/config"
	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/pricing"
	"checkout-service/internal/status"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutService turns a validated, priced cart into an immutable
// order with a snapshot of names and prices taken at creation time.
type CheckoutService struct {
	store          *store.Store
	validator      *StockValidator
	coupons        pricing.CouponValidator
	eventPublisher *broker.EventPublisher
	business       config.BusinessConfig
	logger         *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	store *store.Store,
	validator *StockValidator,
	coupons pricing.CouponValidator,
	eventPublisher *broker.EventPublisher,
	business config.BusinessConfig,
) *CheckoutService {
	return &CheckoutService{
		store:          store,
		validator:      validator,
		coupons:        coupons,
		eventPublisher: eventPublisher,
		business:       business,
		logger:         util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order. UserID is
// filled from the authenticated principal, never from the body.
type CreateOrderRequest struct {
	UserID          int64          `json:"-"`
	Items           []CheckoutItem `json:"items" binding:"required,min=1,dive"`
	ShippingAddress string         `json:"shipping_address" binding:"required"`
	BillingAddress  string         `json:"billing_address" binding:"required"`
	ShippingMethod  string         `json:"shipping_method" binding:"required"`
	CouponCode      string         `json:"coupon_code,omitempty"`
	Notes           string         `json:"notes,omitempty"`
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	TotalAmount int64  `json:"total_amount"`
	Status      string `json:"status"`
}

// CreateOrder validates stock, snapshots the cart into an order and
// decrements stock, all inside one storage transaction. The cart itself
// is not cleared here; that happens only when a terminal successful
// payment signal arrives.
func (cs *CheckoutService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreateOrder")
	defer span.End()

	if err := validateAddresses(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	products, err := cs.validator.Validate(ctx, req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("stock_conflict").Inc()
		return nil, err
	}

	var subtotal int64
	items := make([]models.OrderItem, len(req.Items))
	for i, item := range req.Items {
		product := products[item.ProductID]
		items[i] = models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		}
		subtotal += product.Price * int64(item.Quantity)
	}

	var discount int64
	if req.CouponCode != "" {
		discount, err = cs.coupons.Validate(ctx, req.CouponCode, req.UserID, subtotal)
		if err != nil {
			util.OrdersFailedTotal.WithLabelValues("coupon_invalid").Inc()
			return nil, err
		}
		if discount > subtotal {
			discount = subtotal
		}
	}

	shippingFee, err := pricing.ShippingFee(cs.business, subtotal, req.ShippingMethod)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	order := &models.Order{
		OrderNumber:     NewOrderNumber(time.Now()),
		UserID:          req.UserID,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.OrderPaymentStatusPending,
		Discount:        discount,
		ShippingFee:     shippingFee,
		TotalAmount:     subtotal - discount + shippingFee,
		ShippingMethod:  req.ShippingMethod,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		CouponCode:      req.CouponCode,
		Notes:           req.Notes,
	}

	if err := cs.store.CreateOrderTx(ctx, order, items); err != nil {
		var conflict *models.StockConflictError
		if errors.As(err, &conflict) {
			util.OrdersFailedTotal.WithLabelValues("stock_conflict").Inc()
			util.StockConflictsTotal.Inc()
			return nil, err
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	cs.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("total_amount", order.TotalAmount))

	eventItems := make([]models.OrderItemData, len(items))
	for i, item := range items {
		eventItems[i] = models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	event := &models.OrderCreatedEvent{
		BaseEvent:   broker.NewBaseEvent(models.EventTypeOrderCreated),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       eventItems,
	}
	if err := cs.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		cs.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return &CreateOrderResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		TotalAmount: order.TotalAmount,
		Status:      order.Status,
	}, nil
}

// GetOrder retrieves an order with its items, enforcing ownership
func (cs *CheckoutService) GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := cs.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.UserID != userID {
		return nil, nil, models.ErrUnauthorized
	}

	items, err := cs.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// ListOrders retrieves a user's orders
func (cs *CheckoutService) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	return cs.store.GetOrdersByUserID(ctx, userID)
}

// CancelOrder cancels an order and restores its stock. Only legal while
// the order is pending or confirmed; the state machine rejects the rest.
func (cs *CheckoutService) CancelOrder(ctx context.Context, userID, orderID int64, reason string) error {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CancelOrder")
	defer span.End()

	order, err := cs.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return models.ErrUnauthorized
	}

	if err := status.CheckOrder(order.Status, models.OrderStatusCancelled); err != nil {
		return err
	}

	applied, err := cs.store.CancelOrderTx(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if !applied {
		// raced with another transition; the conditional update is authoritative
		return &status.TransitionError{Entity: "order", From: order.Status, To: models.OrderStatusCancelled}
	}

	util.OrdersCancelledTotal.Inc()
	cs.logger.Info("Order cancelled",
		zap.Int64("order_id", orderID),
		zap.String("reason", reason))

	event := &models.OrderCancelledEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeOrderCancelled),
		OrderID:   orderID,
		UserID:    userID,
		Reason:    reason,
	}
	if err := cs.eventPublisher.PublishOrderCancelled(ctx, event); err != nil {
		cs.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}

	return nil
}

// NewOrderNumber builds a unique human-readable order number
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

func validateAddresses(req *CreateOrderRequest) error {
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return &models.ValidationError{Field: "shipping_address", Reason: "must not be empty"}
	}
	if strings.TrimSpace(req.BillingAddress) == "" {
		return &models.ValidationError{Field: "billing_address", Reason: "must not be empty"}
	}
	return nil
}
