package service

import (
	"context"
	"fmt"

	"checkout-service/internal/broker"
	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// HostedGateway opens hosted checkout sessions (card payments)
type HostedGateway interface {
	CreateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error)
}

// RedirectGateway opens redirect charges (local payment network)
type RedirectGateway interface {
	CreateCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error)
}

// PaymentService opens payment sessions for created orders. Each
// attempt is its own Payment row; failed attempts are kept for audit.
type PaymentService struct {
	store          *store.Store
	hosted         HostedGateway
	redirect       RedirectGateway
	eventPublisher *broker.EventPublisher
	currency       string
	logger         *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	store *store.Store,
	hosted HostedGateway,
	redirect RedirectGateway,
	eventPublisher *broker.EventPublisher,
	currency string,
) *PaymentService {
	return &PaymentService{
		store:          store,
		hosted:         hosted,
		redirect:       redirect,
		eventPublisher: eventPublisher,
		currency:       currency,
		logger:         util.GetLogger(),
	}
}

// PaymentSessionRequest asks for a payment session on an order. UserID
// is filled from the authenticated principal.
type PaymentSessionRequest struct {
	UserID        int64  `json:"-"`
	OrderID       int64  `json:"order_id" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required"`
	SuccessURL    string `json:"success_url,omitempty"`
	CancelURL     string `json:"cancel_url,omitempty"`
}

// PaymentSessionResponse is the caller's handle on the opened session.
// RedirectURL is empty for cash-on-delivery.
type PaymentSessionResponse struct {
	PaymentID     int64  `json:"payment_id"`
	PaymentMethod string `json:"payment_method"`
	Status        string `json:"status"`
	RedirectURL   string `json:"redirect_url,omitempty"`
}

// CreateSession opens a payment session for an order by the chosen
// method. The order must still be pending; a previously failed attempt
// moves the order's payment status back to pending for the retry.
func (ps *PaymentService) CreateSession(ctx context.Context, req *PaymentSessionRequest) (*PaymentSessionResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreateSession")
	defer span.End()

	order, err := ps.store.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != req.UserID {
		return nil, models.ErrUnauthorized
	}
	if order.Status != models.OrderStatusPending {
		return nil, &models.ValidationError{Field: "order_id", Reason: "order is no longer payable"}
	}
	if order.PaymentStatus == models.OrderPaymentStatusPaid {
		return nil, &models.ValidationError{Field: "order_id", Reason: "order is already paid"}
	}

	open, err := ps.store.GetOpenPaymentByOrderAndMethod(ctx, order.ID, req.PaymentMethod)
	if err != nil {
		return nil, fmt.Errorf("failed to check open payments: %w", err)
	}
	if open != nil {
		return nil, &models.ValidationError{Field: "payment_method", Reason: "a payment attempt is already in progress"}
	}

	if order.PaymentStatus == models.OrderPaymentStatusFailed {
		// retry after a failed attempt
		if _, err := ps.store.UpdateOrderPaymentStatusIf(ctx, order.ID,
			models.OrderPaymentStatusFailed, models.OrderPaymentStatusPending); err != nil {
			return nil, fmt.Errorf("failed to reopen order payment: %w", err)
		}
	}

	var resp *PaymentSessionResponse
	switch req.PaymentMethod {
	case models.PaymentMethodCOD:
		resp, err = ps.createCODPayment(ctx, order)
	case models.PaymentMethodCard:
		resp, err = ps.createHostedSession(ctx, order, req)
	case models.PaymentMethodEwallet:
		resp, err = ps.createRedirectCharge(ctx, order, req)
	default:
		return nil, &models.ValidationError{Field: "payment_method", Reason: "unsupported payment method"}
	}
	if err != nil {
		return nil, err
	}

	util.CheckoutSessionsTotal.WithLabelValues(req.PaymentMethod).Inc()
	return resp, nil
}

// createCODPayment records a pending cash-on-delivery payment. The
// order's payment stays pending until fulfillment marks it paid on
// physical delivery, but the cart is released immediately.
func (ps *PaymentService) createCODPayment(ctx context.Context, order *models.Order) (*PaymentSessionResponse, error) {
	payment := &models.Payment{
		OrderID:         order.ID,
		PaymentMethod:   models.PaymentMethodCOD,
		PaymentProvider: "cod",
		Amount:          order.TotalAmount,
		Currency:        ps.currency,
		Status:          models.PaymentStatusPending,
	}
	if err := ps.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	ps.logger.Info("Cash-on-delivery payment recorded",
		zap.Int64("order_id", order.ID),
		zap.Int64("payment_id", payment.ID))

	event := &models.CartClearRequestedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeCartClearRequested),
		UserID:    order.UserID,
		OrderID:   order.ID,
	}
	if err := ps.eventPublisher.PublishCartClearRequested(ctx, event); err != nil {
		ps.logger.Error("Failed to publish CartClearRequested event", zap.Error(err))
	}

	return &PaymentSessionResponse{
		PaymentID:     payment.ID,
		PaymentMethod: models.PaymentMethodCOD,
		Status:        payment.Status,
	}, nil
}

func (ps *PaymentService) createHostedSession(ctx context.Context, order *models.Order, req *PaymentSessionRequest) (*PaymentSessionResponse, error) {
	items, err := ps.store.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	lineItems := BuildLineItems(order, items)

	session, err := ps.hosted.CreateSession(ctx, gateway.SessionRequest{
		Reference:  order.OrderNumber,
		Amount:     order.TotalAmount,
		Currency:   ps.currency,
		LineItems:  lineItems,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		OrderID:           order.ID,
		PaymentMethod:     models.PaymentMethodCard,
		PaymentProvider:   "hosted",
		ExternalSessionID: session.ID,
		Amount:            order.TotalAmount,
		Currency:          ps.currency,
		Status:            models.PaymentStatusPending,
	}
	if err := ps.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	ps.logger.Info("Hosted checkout session persisted",
		zap.Int64("order_id", order.ID),
		zap.Int64("payment_id", payment.ID),
		zap.String("session_id", session.ID))

	return &PaymentSessionResponse{
		PaymentID:     payment.ID,
		PaymentMethod: models.PaymentMethodCard,
		Status:        payment.Status,
		RedirectURL:   session.RedirectURL,
	}, nil
}

func (ps *PaymentService) createRedirectCharge(ctx context.Context, order *models.Order, req *PaymentSessionRequest) (*PaymentSessionResponse, error) {
	charge, err := ps.redirect.CreateCharge(ctx, gateway.ChargeRequest{
		Reference:  order.OrderNumber,
		Amount:     order.TotalAmount,
		Currency:   ps.currency,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		OrderID:         order.ID,
		PaymentMethod:   models.PaymentMethodEwallet,
		PaymentProvider: "redirect",
		ProvisionalTxID: charge.TransactionID,
		Amount:          order.TotalAmount,
		Currency:        ps.currency,
		Status:          models.PaymentStatusPending,
	}
	if err := ps.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	ps.logger.Info("Redirect charge persisted",
		zap.Int64("order_id", order.ID),
		zap.Int64("payment_id", payment.ID),
		zap.String("provisional_tx_id", charge.TransactionID))

	return &PaymentSessionResponse{
		PaymentID:     payment.ID,
		PaymentMethod: models.PaymentMethodEwallet,
		Status:        payment.Status,
		RedirectURL:   charge.RedirectURL,
	}, nil
}

// ListPayments retrieves an order's payment attempts, enforcing ownership
func (ps *PaymentService) ListPayments(ctx context.Context, userID, orderID int64) ([]models.Payment, error) {
	order, err := ps.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, models.ErrUnauthorized
	}
	return ps.store.GetPaymentsByOrderID(ctx, orderID)
}

// BuildLineItems mirrors the order snapshot into gateway line items:
// one line per order item, a shipping line when a fee was charged and a
// negative discount line when a coupon applied. The sum always equals
// the order total, which the gateway client enforces before any call.
func BuildLineItems(order *models.Order, items []models.OrderItem) []gateway.LineItem {
	lines := make([]gateway.LineItem, 0, len(items)+2)
	for _, item := range items {
		lines = append(lines, gateway.LineItem{
			Name:       item.ProductName,
			UnitAmount: item.UnitPrice,
			Quantity:   item.Quantity,
		})
	}
	if order.ShippingFee > 0 {
		lines = append(lines, gateway.LineItem{
			Name:       fmt.Sprintf("Shipping (%s)", order.ShippingMethod),
			UnitAmount: order.ShippingFee,
			Quantity:   1,
		})
	}
	if order.Discount > 0 {
		lines = append(lines, gateway.LineItem{
			Name:       fmt.Sprintf("Discount (%s)", order.CouponCode),
			UnitAmount: -order.Discount,
			Quantity:   1,
		})
	}
	return lines
}
