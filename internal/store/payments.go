package store

import (
	"context"
	"database/sql"
	"time"

	"checkout-service/internal/models"
)

// CreatePayment creates a new payment record
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (order_id, payment_method, payment_provider, external_session_id,
			external_transaction_id, provisional_tx_id, amount, currency, status, gateway_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	row := s.db.QueryRowxContext(ctx, query,
		payment.OrderID, payment.PaymentMethod, payment.PaymentProvider, payment.ExternalSessionID,
		payment.ExternalTransactionID, payment.ProvisionalTxID, payment.Amount, payment.Currency,
		payment.Status, payment.GatewayResponse)
	return row.Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
}

// GetPaymentByID retrieves a payment by ID
func (s *Store) GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, "SELECT * FROM payments WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentBySessionID locates a payment by the gateway session
// identifier. Sessions are unique across all payments.
func (s *Store) GetPaymentBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE external_session_id = $1", sessionID)
	if err == sql.ErrNoRows {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentByTransactionID locates a payment by the gateway transaction
// identifier
func (s *Store) GetPaymentByTransactionID(ctx context.Context, txID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE external_transaction_id = $1", txID)
	if err == sql.ErrNoRows {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentByProvisionalTxID locates a payment by the provisional
// transaction id recorded when the redirect charge was opened
func (s *Store) GetPaymentByProvisionalTxID(ctx context.Context, txID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE provisional_tx_id = $1", txID)
	if err == sql.ErrNoRows {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentsByOrderID retrieves all payment attempts for an order,
// newest first
func (s *Store) GetPaymentsByOrderID(ctx context.Context, orderID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM payments WHERE order_id = $1 ORDER BY created_at DESC", orderID)
	return payments, err
}

// GetOpenPaymentByOrderAndMethod retrieves the non-terminal payment for
// an order and method, if one exists. At most one may be open at a time.
func (s *Store) GetOpenPaymentByOrderAndMethod(ctx context.Context, orderID int64, method string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE order_id = $1 AND payment_method = $2 AND status = $3 ORDER BY created_at DESC LIMIT 1",
		orderID, method, models.PaymentStatusPending)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// CompletePaymentIf marks a payment completed only if it is currently in
// the expected status, recording the transaction id, the raw gateway
// response and the processed timestamp. Returns whether the update
// applied, which makes concurrent webhook retries safe.
func (s *Store) CompletePaymentIf(ctx context.Context, paymentID int64, from, txID, gatewayResponse string, processedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, external_transaction_id = $2, gateway_response = $3,
			processed_at = $4, updated_at = NOW()
		WHERE id = $5 AND status = $6`,
		models.PaymentStatusCompleted, txID, gatewayResponse, processedAt, paymentID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdatePaymentStatusIf conditionally moves a payment to a new status
func (s *Store) UpdatePaymentStatusIf(ctx context.Context, paymentID int64, from, to, gatewayResponse string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, gateway_response = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		to, gatewayResponse, paymentID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
