package worker

import (
	"context"
	"log"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/redisclient"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// CartWorker destroys carts in reaction to the one-time cart-clear
// signal. Cart clearing is strictly a server-side reaction to the
// settlement transition; clients never trigger it.
type CartWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	carts        *redisclient.Client
	logger       *zap.Logger
}

// NewCartWorker creates a new cart worker
func NewCartWorker(consumer *broker.Consumer, carts *redisclient.Client) *CartWorker {
	w := &CartWorker{
		consumer: consumer,
		carts:    carts,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnCartClearRequested(w.handleCartClearRequested)
	w.eventHandler = eventHandler

	return w
}

func (w *CartWorker) handleCartClearRequested(ctx context.Context, event *models.CartClearRequestedEvent) error {
	if err := w.carts.ClearCart(ctx, event.UserID); err != nil {
		w.logger.Error("Failed to clear cart",
			zap.Int64("user_id", event.UserID),
			zap.Int64("order_id", event.OrderID),
			zap.Error(err))
		return err
	}

	w.logger.Info("Cart cleared",
		zap.Int64("user_id", event.UserID),
		zap.Int64("order_id", event.OrderID))
	return nil
}

// Start starts the worker
func (w *CartWorker) Start(ctx context.Context) error {
	log.Println("Starting cart worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CartWorker) Stop() error {
	log.Println("Stopping cart worker...")
	return w.consumer.Close()
}
