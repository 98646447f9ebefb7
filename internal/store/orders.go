package store

import (
	"context"
	"database/sql"
	"fmt"

	"checkout-service/internal/models"
)

// CreateOrderTx creates the order header and snapshot items and
// decrements product stock in a single transaction. Product rows are
// locked FOR UPDATE; insufficient stock or a price drift against the
// unit price carried on the items aborts the whole order with a
// *models.StockConflictError and leaves stock untouched.
func (s *Store) CreateOrderTx(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var conflicts []models.StockVerdict
	var subtotal int64

	for i := range items {
		var product models.Product
		err := tx.GetContext(ctx, &product,
			"SELECT id, name, price, stock_quantity FROM products WHERE id = $1 FOR UPDATE",
			items[i].ProductID)
		if err == sql.ErrNoRows {
			conflicts = append(conflicts, models.StockVerdict{
				ProductID: items[i].ProductID,
				Available: false,
				Requested: items[i].Quantity,
			})
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to lock product %d: %w", items[i].ProductID, err)
		}

		verdict := models.StockVerdict{
			ProductID:    product.ID,
			Available:    product.StockQuantity >= items[i].Quantity,
			Requested:    items[i].Quantity,
			InStock:      product.StockQuantity,
			PriceChanged: product.Price != items[i].UnitPrice,
			CurrentPrice: product.Price,
		}
		if !verdict.Available || verdict.PriceChanged {
			conflicts = append(conflicts, verdict)
			continue
		}

		items[i].ProductName = product.Name
		items[i].UnitPrice = product.Price
		items[i].TotalPrice = product.Price * int64(items[i].Quantity)
		subtotal += items[i].TotalPrice
	}

	if len(conflicts) > 0 {
		return &models.StockConflictError{Verdicts: conflicts}
	}

	// The recorded total must equal the snapshot sum plus shipping
	// minus discount; a divergence here is an integrity failure.
	computed := subtotal + order.ShippingFee - order.Discount
	if computed != order.TotalAmount {
		return &models.AmountMismatchError{OrderTotal: order.TotalAmount, Computed: computed}
	}
	order.Subtotal = subtotal

	query := `
		INSERT INTO orders (order_number, user_id, status, payment_status, subtotal, discount,
			shipping_fee, total_amount, shipping_method, shipping_address, billing_address,
			coupon_code, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	row := tx.QueryRowxContext(ctx, query,
		order.OrderNumber, order.UserID, order.Status, order.PaymentStatus, order.Subtotal,
		order.Discount, order.ShippingFee, order.TotalAmount, order.ShippingMethod,
		order.ShippingAddress, order.BillingAddress, order.CouponCode, order.Notes)
	if err := row.Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		err := tx.GetContext(ctx, &items[i].ID, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			items[i].OrderID, items[i].ProductID, items[i].ProductName,
			items[i].Quantity, items[i].UnitPrice, items[i].TotalPrice)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE products SET stock_quantity = stock_quantity - $1 WHERE id = $2",
			items[i].Quantity, items[i].ProductID)
		if err != nil {
			return fmt.Errorf("failed to decrement stock for product %d: %w", items[i].ProductID, err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByNumber retrieves an order by its human-readable number
func (s *Store) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE order_number = $1", number)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// UpdateOrderStatusIf moves an order to a new status only if it is
// currently in the expected one. Returns whether the update applied, so
// concurrent writers race safely without explicit locks.
func (s *Store) UpdateOrderStatusIf(ctx context.Context, orderID int64, from, to string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, orderID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateOrderPaymentStatusIf conditionally moves an order's payment status
func (s *Store) UpdateOrderPaymentStatusIf(ctx context.Context, orderID int64, from, to string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2 AND payment_status = $3",
		to, orderID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CancelOrderTx cancels an order and restores its stock in a single
// transaction. The conditional status list mirrors the transition table:
// cancellation is only legal from pending or confirmed. Returns whether
// the cancellation applied.
func (s *Store) CancelOrderTx(ctx context.Context, orderID int64) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status IN ($3, $4)",
		models.OrderStatusCancelled, orderID, models.OrderStatusPending, models.OrderStatusConfirmed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products p
		SET stock_quantity = stock_quantity + oi.quantity
		FROM order_items oi
		WHERE oi.order_id = $1 AND oi.product_id = p.id`,
		orderID)
	if err != nil {
		return false, fmt.Errorf("failed to restore stock: %w", err)
	}

	return true, tx.Commit()
}
