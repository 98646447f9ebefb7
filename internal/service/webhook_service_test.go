package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReconcilerStore is an in-memory reconcilerStore
type fakeReconcilerStore struct {
	orders    map[int64]*models.Order
	payments  map[int64]*models.Payment
	processed map[string]bool
}

func newFakeReconcilerStore() *fakeReconcilerStore {
	return &fakeReconcilerStore{
		orders:    make(map[int64]*models.Order),
		payments:  make(map[int64]*models.Payment),
		processed: make(map[string]bool),
	}
}

func (f *fakeReconcilerStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	return f.processed[eventID], nil
}

func (f *fakeReconcilerStore) MarkEventProcessed(_ context.Context, eventID, _ string) error {
	f.processed[eventID] = true
	return nil
}

func (f *fakeReconcilerStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeReconcilerStore) GetPaymentBySessionID(_ context.Context, sessionID string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.ExternalSessionID == sessionID && sessionID != "" {
			copied := *p
			return &copied, nil
		}
	}
	return nil, models.ErrPaymentNotFound
}

func (f *fakeReconcilerStore) GetPaymentByTransactionID(_ context.Context, txID string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.ExternalTransactionID == txID && txID != "" {
			copied := *p
			return &copied, nil
		}
	}
	return nil, models.ErrPaymentNotFound
}

func (f *fakeReconcilerStore) GetPaymentByProvisionalTxID(_ context.Context, txID string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.ProvisionalTxID == txID && txID != "" {
			copied := *p
			return &copied, nil
		}
	}
	return nil, models.ErrPaymentNotFound
}

func (f *fakeReconcilerStore) CompletePaymentIf(_ context.Context, paymentID int64, from, txID, gatewayResponse string, processedAt time.Time) (bool, error) {
	p, ok := f.payments[paymentID]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = models.PaymentStatusCompleted
	p.ExternalTransactionID = txID
	p.GatewayResponse = gatewayResponse
	p.ProcessedAt = &processedAt
	return true, nil
}

func (f *fakeReconcilerStore) UpdatePaymentStatusIf(_ context.Context, paymentID int64, from, to, gatewayResponse string) (bool, error) {
	p, ok := f.payments[paymentID]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.GatewayResponse = gatewayResponse
	return true, nil
}

func (f *fakeReconcilerStore) UpdateOrderStatusIf(_ context.Context, orderID int64, from, to string) (bool, error) {
	o, ok := f.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (f *fakeReconcilerStore) UpdateOrderPaymentStatusIf(_ context.Context, orderID int64, from, to string) (bool, error) {
	o, ok := f.orders[orderID]
	if !ok || o.PaymentStatus != from {
		return false, nil
	}
	o.PaymentStatus = to
	return true, nil
}

// fakeEvents counts published events
type fakeEvents struct {
	completed  int
	failed     int
	confirmed  int
	cartClears int
}

func (f *fakeEvents) PublishPaymentCompleted(context.Context, *models.PaymentCompletedEvent) error {
	f.completed++
	return nil
}

func (f *fakeEvents) PublishPaymentFailed(context.Context, *models.PaymentFailedEvent) error {
	f.failed++
	return nil
}

func (f *fakeEvents) PublishOrderConfirmed(context.Context, *models.OrderConfirmedEvent) error {
	f.confirmed++
	return nil
}

func (f *fakeEvents) PublishCartClearRequested(context.Context, *models.CartClearRequestedEvent) error {
	f.cartClears++
	return nil
}

func seedPendingOrder(store *fakeReconcilerStore) (*models.Order, *models.Payment) {
	order := &models.Order{
		ID:            1,
		UserID:        42,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.OrderPaymentStatusPending,
		TotalAmount:   500000,
	}
	payment := &models.Payment{
		ID:                10,
		OrderID:           1,
		PaymentMethod:     models.PaymentMethodCard,
		ExternalSessionID: "cs_abc",
		Amount:            500000,
		Currency:          "IDR",
		Status:            models.PaymentStatusPending,
	}
	store.orders[order.ID] = order
	store.payments[payment.ID] = payment
	return order, payment
}

func completedPayload(eventID, sessionID string, amount int64) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"id":   eventID,
		"type": WebhookEventCheckoutCompleted,
		"data": map[string]interface{}{
			"session_id":     sessionID,
			"transaction_id": "tx_123",
			"amount":         amount,
			"currency":       "IDR",
		},
	})
	return payload
}

func TestCheckoutCompletedSettlesOrder(t *testing.T) {
	store := newFakeReconcilerStore()
	events := &fakeEvents{}
	ws := NewWebhookService(store, events)
	seedPendingOrder(store)

	result, err := ws.HandleEvent(context.Background(), completedPayload("evt_1", "cs_abc", 500000))
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result)

	assert.Equal(t, models.PaymentStatusCompleted, store.payments[10].Status)
	assert.Equal(t, "tx_123", store.payments[10].ExternalTransactionID)
	assert.NotNil(t, store.payments[10].ProcessedAt)
	assert.Equal(t, models.OrderStatusConfirmed, store.orders[1].Status)
	assert.Equal(t, models.OrderPaymentStatusPaid, store.orders[1].PaymentStatus)

	// the cart-clear signal fires exactly once, on the winning transition
	assert.Equal(t, 1, events.cartClears)
	assert.Equal(t, 1, events.completed)
	assert.Equal(t, 1, events.confirmed)
}

func TestCheckoutCompletedReplayIsNoop(t *testing.T) {
	store := newFakeReconcilerStore()
	events := &fakeEvents{}
	ws := NewWebhookService(store, events)
	order, payment := seedPendingOrder(store)

	payload := completedPayload("evt_replay", "cs_abc", 500000)

	result, err := ws.HandleEvent(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, ResultApplied, result)

	itemsBefore := *store.orders[order.ID]

	// replaying N times yields N-1 no-ops and no further state change
	for i := 0; i < 5; i++ {
		result, err = ws.HandleEvent(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, ResultNoop, result)
	}

	assert.Equal(t, itemsBefore.Status, store.orders[order.ID].Status)
	assert.Equal(t, itemsBefore.TotalAmount, store.orders[order.ID].TotalAmount)
	assert.Equal(t, models.PaymentStatusCompleted, store.payments[payment.ID].Status)
	assert.Equal(t, 1, events.cartClears)
	assert.Equal(t, 1, events.completed)
}

func TestDistinctEventForCompletedPaymentIsNoop(t *testing.T) {
	store := newFakeReconcilerStore()
	events := &fakeEvents{}
	ws := NewWebhookService(store, events)
	seedPendingOrder(store)

	_, err := ws.HandleEvent(context.Background(), completedPayload("evt_a", "cs_abc", 500000))
	require.NoError(t, err)

	// a second gateway event with a fresh id against the same session
	result, err := ws.HandleEvent(context.Background(), completedPayload("evt_b", "cs_abc", 500000))
	require.NoError(t, err)
	assert.Equal(t, ResultNoop, result)
	assert.Equal(t, 1, events.cartClears)
}

func TestCompletedAgainstCancelledOrderIsRejected(t *testing.T) {
	store := newFakeReconcilerStore()
	events := &fakeEvents{}
	ws := NewWebhookService(store, events)
	order, payment := seedPendingOrder(store)
	store.orders[order.ID].Status = models.OrderStatusCancelled

	result, err := ws.HandleEvent(context.Background(), completedPayload("evt_c", "cs_abc", 500000))
	require.NoError(t, err)
	assert.Equal(t, ResultRejected, result)

	assert.Equal(t, models.OrderStatusCancelled, store.orders[order.ID].Status)
	assert.Equal(t, models.PaymentStatusPending, store.payments[payment.ID].Status)
	assert.Zero(t, events.cartClears)
}

func TestCompletedAmountMismatchIsRejected(t *testing.T) {
	store := newFakeReconcilerStore()
	events := &fakeEvents{}
	ws := NewWebhookService(store, events)
	_, payment := seedPendingOrder(store)

	result, err := ws.HandleEvent(context.Background(), completedPayload("evt_d", "cs_abc", 499999))
	require.NoError(t, err)
	assert.Equal(t, ResultRejected, result)
	assert.Equal(t, models.PaymentStatusPending, store.payments[payment.ID].Status)
}

func TestUnmatchedSessionIsDropped(t *testing.T) {
	store := newFakeReconcilerStore()
	events := &fakeEvents{}
	ws := NewWebhookService(store, events)
	seedPendingOrder(store)

	result, err := ws.HandleEvent(context.Background(), completedPayload("evt_e", "cs_unknown", 500000))
	require.NoError(t, err)
	assert.Equal(t, ResultUnmatched, result)
	assert.Zero(t, events.cartClears)
}

func TestChargeSucceededFallsBackToProvisionalTxID(t *testing.T) {
	store := newFakeReconcilerStore()
	events := &fakeEvents{}
	ws := NewWebhookService(store, events)

	order := &models.Order{
		ID:            2,
		UserID:        43,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.OrderPaymentStatusPending,
		TotalAmount:   250000,
	}
	payment := &models.Payment{
		ID:              11,
		OrderID:         2,
		PaymentMethod:   models.PaymentMethodEwallet,
		ProvisionalTxID: "ptx_55",
		Amount:          250000,
		Currency:        "IDR",
		Status:          models.PaymentStatusPending,
	}
	store.orders[order.ID] = order
	store.payments[payment.ID] = payment

	payload, _ := json.Marshal(map[string]interface{}{
		"id":   "evt_f",
		"type": WebhookEventChargeSucceeded,
		"data": map[string]interface{}{
			"transaction_id": "ptx_55",
			"amount":         250000,
		},
	})

	result, err := ws.HandleEvent(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result)
	assert.Equal(t, models.PaymentStatusCompleted, store.payments[11].Status)
	assert.Equal(t, models.OrderStatusConfirmed, store.orders[2].Status)
}

func TestPaymentFailedLeavesOrderStatusUntouched(t *testing.T) {
	store := newFakeReconcilerStore()
	events := &fakeEvents{}
	ws := NewWebhookService(store, events)
	order, payment := seedPendingOrder(store)

	payload, _ := json.Marshal(map[string]interface{}{
		"id":   "evt_g",
		"type": WebhookEventPaymentFailed,
		"data": map[string]interface{}{
			"session_id":     "cs_abc",
			"failure_reason": "card_declined",
		},
	})

	result, err := ws.HandleEvent(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result)

	assert.Equal(t, models.PaymentStatusFailed, store.payments[payment.ID].Status)
	assert.Equal(t, models.OrderPaymentStatusFailed, store.orders[order.ID].PaymentStatus)
	// the customer may retry: order status itself stays pending
	assert.Equal(t, models.OrderStatusPending, store.orders[order.ID].Status)
	assert.Equal(t, 1, events.failed)
	assert.Zero(t, events.cartClears)
}

func TestFailedEventAfterCompletionIsNoop(t *testing.T) {
	store := newFakeReconcilerStore()
	events := &fakeEvents{}
	ws := NewWebhookService(store, events)
	order, payment := seedPendingOrder(store)

	_, err := ws.HandleEvent(context.Background(), completedPayload("evt_h", "cs_abc", 500000))
	require.NoError(t, err)

	// a late, out-of-order failure callback must not resurrect anything
	payload, _ := json.Marshal(map[string]interface{}{
		"id":   "evt_i",
		"type": WebhookEventPaymentFailed,
		"data": map[string]interface{}{"session_id": "cs_abc"},
	})
	result, err := ws.HandleEvent(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, ResultNoop, result)

	assert.Equal(t, models.PaymentStatusCompleted, store.payments[payment.ID].Status)
	assert.Equal(t, models.OrderStatusConfirmed, store.orders[order.ID].Status)
}

func TestMalformedPayloadIsRejectedWithoutError(t *testing.T) {
	store := newFakeReconcilerStore()
	ws := NewWebhookService(store, &fakeEvents{})

	result, err := ws.HandleEvent(context.Background(), []byte("not json"))
	require.NoError(t, err)
	assert.Equal(t, ResultRejected, result)
}

func TestUnknownEventTypeIsAcknowledged(t *testing.T) {
	store := newFakeReconcilerStore()
	ws := NewWebhookService(store, &fakeEvents{})

	payload := []byte(`{"id":"evt_j","type":"refund.created","data":{}}`)
	result, err := ws.HandleEvent(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, ResultNoop, result)
}
