package models

import "time"

// Event types
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderConfirmed     = "ORDER_CONFIRMED"
	EventTypeOrderCancelled     = "ORDER_CANCELLED"
	EventTypePaymentCompleted   = "PAYMENT_COMPLETED"
	EventTypePaymentFailed      = "PAYMENT_FAILED"
	EventTypeCartClearRequested = "CART_CLEAR_REQUESTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is created
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      int64           `json:"user_id"`
	TotalAmount int64           `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderConfirmedEvent published when a payment settles and the order
// advances to confirmed
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID     int64 `json:"order_id"`
	UserID      int64 `json:"user_id"`
	TotalAmount int64 `json:"total_amount"`
}

// OrderCancelledEvent published when an order is cancelled
type OrderCancelledEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Reason  string `json:"reason"`
}

// PaymentCompletedEvent published on the winning pending->completed
// transition of a payment
type PaymentCompletedEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	PaymentID int64  `json:"payment_id"`
	UserID    int64  `json:"user_id"`
	Amount    int64  `json:"amount"`
	TxID      string `json:"tx_id"`
}

// PaymentFailedEvent published when the gateway reports a failed charge
type PaymentFailedEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	PaymentID int64  `json:"payment_id"`
	Reason    string `json:"reason"`
}

// CartClearRequestedEvent is the one-time signal that a user's cart may
// be destroyed. Emitted exactly once per settled (or cash-on-delivery)
// order; the cart worker is the only consumer that touches cart state.
type CartClearRequestedEvent struct {
	BaseEvent
	UserID  int64 `json:"user_id"`
	OrderID int64 `json:"order_id"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}
