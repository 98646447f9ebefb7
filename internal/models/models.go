package models

import "time"

// Product represents a catalog product with live stock
type Product struct {
	ID            int64     `db:"id" json:"id"`
	SKU           string    `db:"sku" json:"sku"`
	Name          string    `db:"name" json:"name"`
	Price         int64     `db:"price" json:"price"`
	StockQuantity int       `db:"stock_quantity" json:"stock_quantity"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// CartItem is one line in a user's cart. Prices are never stored here;
// they are read fresh from the catalog at pricing and order time.
type CartItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Cart is the server-owned ephemeral cart, one per user
type Cart struct {
	UserID int64      `json:"user_id"`
	Items  []CartItem `json:"items"`
}

// Order represents a customer order. The item snapshot and totals are
// immutable once the order is created.
type Order struct {
	ID              int64     `db:"id" json:"id"`
	OrderNumber     string    `db:"order_number" json:"order_number"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Status          string    `db:"status" json:"status"`
	PaymentStatus   string    `db:"payment_status" json:"payment_status"`
	Subtotal        int64     `db:"subtotal" json:"subtotal"`
	Discount        int64     `db:"discount" json:"discount"`
	ShippingFee     int64     `db:"shipping_fee" json:"shipping_fee"`
	TotalAmount     int64     `db:"total_amount" json:"total_amount"`
	ShippingMethod  string    `db:"shipping_method" json:"shipping_method"`
	ShippingAddress string    `db:"shipping_address" json:"shipping_address"`
	BillingAddress  string    `db:"billing_address" json:"billing_address"`
	CouponCode      string    `db:"coupon_code" json:"coupon_code,omitempty"`
	Notes           string    `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// OrderItem is the immutable snapshot of a cart line taken at order
// creation time, independent of later catalog changes.
type OrderItem struct {
	ID          int64  `db:"id" json:"id"`
	OrderID     int64  `db:"order_id" json:"order_id"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Quantity    int    `db:"quantity" json:"quantity"`
	UnitPrice   int64  `db:"unit_price" json:"unit_price"`
	TotalPrice  int64  `db:"total_price" json:"total_price"`
}

// Payment represents one attempt to settle an order's total. A retried
// attempt creates a new row; the gateway-tracked session row is updated
// in place as its status evolves.
type Payment struct {
	ID                    int64      `db:"id" json:"id"`
	OrderID               int64      `db:"order_id" json:"order_id"`
	PaymentMethod         string     `db:"payment_method" json:"payment_method"`
	PaymentProvider       string     `db:"payment_provider" json:"payment_provider"`
	ExternalSessionID     string     `db:"external_session_id" json:"external_session_id,omitempty"`
	ExternalTransactionID string     `db:"external_transaction_id" json:"external_transaction_id,omitempty"`
	ProvisionalTxID       string     `db:"provisional_tx_id" json:"provisional_tx_id,omitempty"`
	Amount                int64      `db:"amount" json:"amount"`
	Currency              string     `db:"currency" json:"currency"`
	Status                string     `db:"status" json:"status"`
	GatewayResponse       string     `db:"gateway_response" json:"-"`
	ProcessedAt           *time.Time `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// Order payment statuses
const (
	OrderPaymentStatusPending  = "pending"
	OrderPaymentStatusPaid     = "paid"
	OrderPaymentStatusFailed   = "failed"
	OrderPaymentStatusRefunded = "refunded"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Payment methods
const (
	PaymentMethodCOD     = "cod"
	PaymentMethodCard    = "card"
	PaymentMethodEwallet = "ewallet"
)

// Shipping methods
const (
	ShippingMethodStandard = "standard"
	ShippingMethodExpress  = "express"
)

// StockVerdict is the per-item result of validating cart contents
// against live stock and current catalog prices.
type StockVerdict struct {
	ProductID    int64 `json:"product_id"`
	Available    bool  `json:"available"`
	Requested    int   `json:"requested"`
	InStock      int   `json:"in_stock"`
	PriceChanged bool  `json:"price_changed"`
	CurrentPrice int64 `json:"current_price"`
}

// PricingBreakdown is the output of the cart pricing engine, in the
// smallest currency unit.
type PricingBreakdown struct {
	Subtotal    int64 `json:"subtotal"`
	Discount    int64 `json:"discount"`
	ShippingFee int64 `json:"shipping_fee"`
	Tax         int64 `json:"tax"`
	Total       int64 `json:"total"`
}

// ProcessedEvent for webhook idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
