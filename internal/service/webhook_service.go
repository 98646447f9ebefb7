package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/status"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// Gateway webhook event types
const (
	WebhookEventCheckoutCompleted = "checkout.session.completed"
	WebhookEventPaymentFailed     = "payment.failed"
	WebhookEventChargeSucceeded   = "charge.succeeded"
)

// ApplyResult classifies the outcome of reconciling one webhook event
type ApplyResult string

const (
	ResultApplied   ApplyResult = "applied"
	ResultNoop      ApplyResult = "noop"
	ResultUnmatched ApplyResult = "unmatched"
	ResultRejected  ApplyResult = "rejected"
)

// WebhookEvent is the parsed gateway callback payload
type WebhookEvent struct {
	ID   string           `json:"id"`
	Type string           `json:"type"`
	Data WebhookEventData `json:"data"`

	raw []byte
}

// WebhookEventData carries the provider identifiers for the payment
type WebhookEventData struct {
	SessionID     string `json:"session_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// reconcilerStore is the slice of the store the reconciler writes
// through. Narrowed so the reconciliation rules can be tested against a
// fake without a database.
type reconcilerStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetPaymentBySessionID(ctx context.Context, sessionID string) (*models.Payment, error)
	GetPaymentByTransactionID(ctx context.Context, txID string) (*models.Payment, error)
	GetPaymentByProvisionalTxID(ctx context.Context, txID string) (*models.Payment, error)
	CompletePaymentIf(ctx context.Context, paymentID int64, from, txID, gatewayResponse string, processedAt time.Time) (bool, error)
	UpdatePaymentStatusIf(ctx context.Context, paymentID int64, from, to, gatewayResponse string) (bool, error)
	UpdateOrderStatusIf(ctx context.Context, orderID int64, from, to string) (bool, error)
	UpdateOrderPaymentStatusIf(ctx context.Context, orderID int64, from, to string) (bool, error)
}

// reconcilerEvents is the slice of the event publisher the reconciler
// uses
type reconcilerEvents interface {
	PublishPaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
	PublishCartClearRequested(ctx context.Context, event *models.CartClearRequestedEvent) error
}

type webhookHandler func(ctx context.Context, event *WebhookEvent) (ApplyResult, error)

// WebhookService reconciles asynchronous gateway callbacks with local
// order and payment state. Every transition goes through a conditional
// update keyed on the current status, so replays and concurrent
// deliveries collapse into exactly one applied transition and any
// number of no-ops.
type WebhookService struct {
	store    reconcilerStore
	events   reconcilerEvents
	handlers map[string]webhookHandler
	logger   *zap.Logger
}

// NewWebhookService creates a new webhook reconciler
func NewWebhookService(store reconcilerStore, events reconcilerEvents) *WebhookService {
	ws := &WebhookService{
		store:  store,
		events: events,
		logger: util.GetLogger(),
	}
	ws.handlers = map[string]webhookHandler{
		WebhookEventCheckoutCompleted: ws.handleCheckoutCompleted,
		WebhookEventPaymentFailed:     ws.handlePaymentFailed,
		WebhookEventChargeSucceeded:   ws.handleChargeSucceeded,
	}
	return ws
}

// HandleEvent parses and applies one authenticated webhook payload. A
// returned error means an internal failure the gateway should retry;
// every other outcome must be acknowledged with success.
func (ws *WebhookService) HandleEvent(ctx context.Context, raw []byte) (ApplyResult, error) {
	ctx, span := util.StartSpan(ctx, "WebhookService.HandleEvent")
	defer span.End()

	var event WebhookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		ws.logger.Warn("Dropping malformed webhook payload", zap.Error(err))
		return ResultRejected, nil
	}
	event.raw = raw

	if event.ID != "" {
		processed, err := ws.store.IsEventProcessed(ctx, event.ID)
		if err != nil {
			return "", fmt.Errorf("failed to check event processed: %w", err)
		}
		if processed {
			ws.logger.Info("Webhook event already processed", zap.String("event_id", event.ID))
			util.WebhookEventsTotal.WithLabelValues(event.Type, string(ResultNoop)).Inc()
			return ResultNoop, nil
		}
	}

	handler, ok := ws.handlers[event.Type]
	if !ok {
		ws.logger.Info("Ignoring unhandled webhook event type", zap.String("type", event.Type))
		util.WebhookEventsTotal.WithLabelValues(event.Type, string(ResultNoop)).Inc()
		return ResultNoop, nil
	}

	result, err := handler(ctx, &event)
	if err != nil {
		return "", err
	}

	if event.ID != "" && result != ResultUnmatched {
		if err := ws.store.MarkEventProcessed(ctx, event.ID, event.Type); err != nil {
			ws.logger.Error("Failed to mark event processed", zap.Error(err))
		}
	}

	util.WebhookEventsTotal.WithLabelValues(event.Type, string(result)).Inc()
	return result, nil
}

// handleCheckoutCompleted settles a hosted checkout session: payment
// pending -> completed, order pending -> confirmed, order payment
// status -> paid, and the one-time cart-clear signal on the winning
// transition only.
func (ws *WebhookService) handleCheckoutCompleted(ctx context.Context, event *WebhookEvent) (ApplyResult, error) {
	payment, err := ws.store.GetPaymentBySessionID(ctx, event.Data.SessionID)
	if errors.Is(err, models.ErrPaymentNotFound) {
		ws.logger.Warn("Webhook session matches no payment",
			zap.String("event_id", event.ID),
			zap.String("session_id", event.Data.SessionID))
		return ResultUnmatched, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load payment: %w", err)
	}

	return ws.settlePayment(ctx, event, payment)
}

// handleChargeSucceeded settles a redirect charge. Matched by
// transaction id first, then by the provisional transaction id recorded
// when the charge was opened; still unmatched events are dropped rather
// than creating speculative state.
func (ws *WebhookService) handleChargeSucceeded(ctx context.Context, event *WebhookEvent) (ApplyResult, error) {
	payment, err := ws.store.GetPaymentByTransactionID(ctx, event.Data.TransactionID)
	if errors.Is(err, models.ErrPaymentNotFound) {
		payment, err = ws.store.GetPaymentByProvisionalTxID(ctx, event.Data.TransactionID)
	}
	if errors.Is(err, models.ErrPaymentNotFound) {
		ws.logger.Warn("Webhook charge matches no payment",
			zap.String("event_id", event.ID),
			zap.String("tx_id", event.Data.TransactionID))
		return ResultUnmatched, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load payment: %w", err)
	}

	return ws.settlePayment(ctx, event, payment)
}

func (ws *WebhookService) settlePayment(ctx context.Context, event *WebhookEvent, payment *models.Payment) (ApplyResult, error) {
	if payment.Status == models.PaymentStatusCompleted {
		ws.logger.Info("Payment already completed",
			zap.Int64("payment_id", payment.ID),
			zap.String("event_id", event.ID))
		return ResultNoop, nil
	}

	if err := status.CheckPayment(payment.Status, models.PaymentStatusCompleted); err != nil {
		ws.logger.Warn("Webhook transition rejected", zap.Error(err),
			zap.Int64("payment_id", payment.ID))
		return ResultRejected, nil
	}

	// the amount settled by the gateway must be the amount we asked for
	if event.Data.Amount != 0 && event.Data.Amount != payment.Amount {
		ws.logger.Error("Webhook amount does not match payment",
			zap.Int64("payment_id", payment.ID),
			zap.Int64("expected", payment.Amount),
			zap.Int64("got", event.Data.Amount))
		return ResultRejected, nil
	}

	order, err := ws.store.GetOrderByID(ctx, payment.OrderID)
	if err != nil {
		return "", fmt.Errorf("failed to load order: %w", err)
	}
	if status.IsTerminalOrder(order.Status) {
		ws.logger.Warn("Webhook against terminal order rejected",
			zap.Int64("order_id", order.ID),
			zap.String("order_status", order.Status))
		return ResultRejected, nil
	}

	txID := event.Data.TransactionID
	if txID == "" {
		txID = payment.ProvisionalTxID
	}

	applied, err := ws.store.CompletePaymentIf(ctx, payment.ID, models.PaymentStatusPending,
		txID, string(event.raw), time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to complete payment: %w", err)
	}
	if !applied {
		// a concurrent delivery won the race
		return ResultNoop, nil
	}

	if _, err := ws.store.UpdateOrderStatusIf(ctx, order.ID,
		models.OrderStatusPending, models.OrderStatusConfirmed); err != nil {
		return "", fmt.Errorf("failed to confirm order: %w", err)
	}
	if _, err := ws.store.UpdateOrderPaymentStatusIf(ctx, order.ID,
		order.PaymentStatus, models.OrderPaymentStatusPaid); err != nil {
		return "", fmt.Errorf("failed to mark order paid: %w", err)
	}

	util.PaymentCompletedTotal.Inc()
	util.OrdersConfirmedTotal.Inc()
	ws.logger.Info("Payment settled",
		zap.Int64("order_id", order.ID),
		zap.Int64("payment_id", payment.ID),
		zap.String("tx_id", txID))

	ws.publishSettled(ctx, order, payment, txID)
	return ResultApplied, nil
}

// publishSettled emits the settlement events exactly once, on the
// winning transition
func (ws *WebhookService) publishSettled(ctx context.Context, order *models.Order, payment *models.Payment, txID string) {
	completed := &models.PaymentCompletedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypePaymentCompleted),
		OrderID:   order.ID,
		PaymentID: payment.ID,
		UserID:    order.UserID,
		Amount:    payment.Amount,
		TxID:      txID,
	}
	if err := ws.events.PublishPaymentCompleted(ctx, completed); err != nil {
		ws.logger.Error("Failed to publish PaymentCompleted event", zap.Error(err))
	}

	confirmed := &models.OrderConfirmedEvent{
		BaseEvent:   broker.NewBaseEvent(models.EventTypeOrderConfirmed),
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
	}
	if err := ws.events.PublishOrderConfirmed(ctx, confirmed); err != nil {
		ws.logger.Error("Failed to publish OrderConfirmed event", zap.Error(err))
	}

	clearEvent := &models.CartClearRequestedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeCartClearRequested),
		UserID:    order.UserID,
		OrderID:   order.ID,
	}
	if err := ws.events.PublishCartClearRequested(ctx, clearEvent); err != nil {
		ws.logger.Error("Failed to publish CartClearRequested event", zap.Error(err))
	}
}

// handlePaymentFailed records a failed attempt. The order status is
// left untouched so the customer may retry with a fresh attempt.
func (ws *WebhookService) handlePaymentFailed(ctx context.Context, event *WebhookEvent) (ApplyResult, error) {
	payment, err := ws.findPayment(ctx, &event.Data)
	if errors.Is(err, models.ErrPaymentNotFound) {
		ws.logger.Warn("Failed-payment webhook matches no payment",
			zap.String("event_id", event.ID))
		return ResultUnmatched, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load payment: %w", err)
	}

	if err := status.CheckPayment(payment.Status, models.PaymentStatusFailed); err != nil {
		ws.logger.Info("Ignoring failure for non-pending payment",
			zap.Int64("payment_id", payment.ID),
			zap.String("status", payment.Status))
		return ResultNoop, nil
	}

	applied, err := ws.store.UpdatePaymentStatusIf(ctx, payment.ID,
		models.PaymentStatusPending, models.PaymentStatusFailed, string(event.raw))
	if err != nil {
		return "", fmt.Errorf("failed to mark payment failed: %w", err)
	}
	if !applied {
		return ResultNoop, nil
	}

	if _, err := ws.store.UpdateOrderPaymentStatusIf(ctx, payment.OrderID,
		models.OrderPaymentStatusPending, models.OrderPaymentStatusFailed); err != nil {
		return "", fmt.Errorf("failed to mark order payment failed: %w", err)
	}

	util.PaymentFailedTotal.Inc()
	ws.logger.Warn("Payment failed",
		zap.Int64("order_id", payment.OrderID),
		zap.Int64("payment_id", payment.ID),
		zap.String("reason", event.Data.FailureReason))

	failed := &models.PaymentFailedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypePaymentFailed),
		OrderID:   payment.OrderID,
		PaymentID: payment.ID,
		Reason:    event.Data.FailureReason,
	}
	if err := ws.events.PublishPaymentFailed(ctx, failed); err != nil {
		ws.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}

	return ResultApplied, nil
}

// findPayment locates the payment by session id, then transaction id,
// then the provisional transaction id. Never by order id alone: an
// order may have several attempts.
func (ws *WebhookService) findPayment(ctx context.Context, data *WebhookEventData) (*models.Payment, error) {
	if data.SessionID != "" {
		payment, err := ws.store.GetPaymentBySessionID(ctx, data.SessionID)
		if err == nil || !errors.Is(err, models.ErrPaymentNotFound) {
			return payment, err
		}
	}
	if data.TransactionID != "" {
		payment, err := ws.store.GetPaymentByTransactionID(ctx, data.TransactionID)
		if err == nil || !errors.Is(err, models.ErrPaymentNotFound) {
			return payment, err
		}
		return ws.store.GetPaymentByProvisionalTxID(ctx, data.TransactionID)
	}
	return nil, models.ErrPaymentNotFound
}
