package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/pricing"
	"checkout-service/internal/redisclient"
	"checkout-service/internal/service"
	"checkout-service/internal/status"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const signatureHeader = "X-Gateway-Signature"

// Handler contains HTTP handlers
type Handler struct {
	checkout         *service.CheckoutService
	payments         *service.PaymentService
	webhooks         *service.WebhookService
	pricing          *pricing.Engine
	carts            *redisclient.Client
	webhookSecret    string
	webhookTolerance time.Duration
	logger           *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	checkout *service.CheckoutService,
	payments *service.PaymentService,
	webhooks *service.WebhookService,
	pricingEngine *pricing.Engine,
	carts *redisclient.Client,
	webhookSecret string,
	webhookTolerance time.Duration,
) *Handler {
	return &Handler{
		checkout:         checkout,
		payments:         payments,
		webhooks:         webhooks,
		pricing:          pricingEngine,
		carts:            carts,
		webhookSecret:    webhookSecret,
		webhookTolerance: webhookTolerance,
		logger:           util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// the gateway authenticates with a signature, not a principal
	router.POST("/api/v1/webhooks/gateway", h.gatewayWebhook)

	v1 := router.Group("/api/v1")
	v1.Use(requirePrincipal())
	{
		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PATCH("/cart/items/:productId", h.updateCartItem)
		v1.DELETE("/cart/items/:productId", h.removeCartItem)
		v1.DELETE("/cart", h.clearCart)

		v1.GET("/checkout/quote", h.quote)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.GET("/orders/:id/payments", h.listPayments)

		v1.POST("/payments/sessions", h.createPaymentSession)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// requirePrincipal resolves the authenticated user id set by the
// upstream auth layer
func requirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}

func principal(c *gin.Context) int64 {
	return c.GetInt64("user_id")
}

// getCart returns the user's current cart
func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.carts.GetCart(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

type cartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// addCartItem adds quantity to a cart line
func (h *Handler) addCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	qty, err := h.carts.AddCartItem(c.Request.Context(), principal(c), req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": req.ProductID, "quantity": qty})
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// updateCartItem sets an absolute quantity; zero removes the line
func (h *Handler) updateCartItem(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.carts.SetCartItem(c.Request.Context(), principal(c), productID, req.Quantity); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": productID, "quantity": req.Quantity})
}

// removeCartItem removes one line from the cart
func (h *Handler) removeCartItem(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	if err := h.carts.RemoveCartItem(c.Request.Context(), principal(c), productID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// clearCart empties the user's cart on explicit request
func (h *Handler) clearCart(c *gin.Context) {
	if err := h.carts.ClearCart(c.Request.Context(), principal(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// quote prices the current cart without creating anything
func (h *Handler) quote(c *gin.Context) {
	breakdown, err := h.pricing.Quote(c.Request.Context(), principal(c),
		c.Query("coupon"), c.Query("shipping_method"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	req.UserID = principal(c)

	resp, err := h.checkout.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// listOrders returns the user's orders
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.checkout.ListOrders(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder is the read-only polling surface for order status
func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, items, err := h.checkout.GetOrder(c.Request.Context(), principal(c), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// cancelOrder handles customer-initiated cancellation
func (h *Handler) cancelOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req cancelOrderRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.checkout.CancelOrder(c.Request.Context(), principal(c), orderID, req.Reason); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.OrderStatusCancelled})
}

// listPayments returns an order's payment attempts
func (h *Handler) listPayments(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	payments, err := h.payments.ListPayments(c.Request.Context(), principal(c), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// createPaymentSession opens a payment session for an order
func (h *Handler) createPaymentSession(c *gin.Context) {
	var req service.PaymentSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	req.UserID = principal(c)

	resp, err := h.payments.CreateSession(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// gatewayWebhook receives asynchronous gateway callbacks. The raw body
// is read before any JSON parsing so the signature covers the exact
// wire bytes. Once authenticity is verified the response is always a
// success acknowledgment, even when the internal transition was a
// no-op, to stop the gateway from retry-storming.
func (h *Handler) gatewayWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := gateway.VerifySignature(h.webhookSecret, c.GetHeader(signatureHeader),
		body, time.Now(), h.webhookTolerance); err != nil {
		util.WebhookSignatureFailuresTotal.Inc()
		h.logger.Warn("Rejected webhook", zap.Error(err))
		// generic rejection, no detail leaked
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if _, err := h.webhooks.HandleEvent(c.Request.Context(), body); err != nil {
		h.logger.Error("Webhook reconciliation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// respondError maps domain errors onto HTTP responses
func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *models.ValidationError
	var conflict *models.StockConflictError
	var gerr *models.GatewayError
	var terr *status.TransitionError
	var mismatch *models.AmountMismatchError

	switch {
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
	case errors.Is(err, models.ErrOrderNotFound), errors.Is(err, models.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrCartEmpty), errors.Is(err, models.ErrCouponInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error(), "items": conflict.Verdicts})
	case errors.As(err, &terr):
		c.JSON(http.StatusConflict, gin.H{"error": terr.Error()})
	case errors.As(err, &gerr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway unavailable", "retryable": gerr.Retryable})
	case errors.As(err, &mismatch):
		h.logger.Error("Amount mismatch", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			code,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			code,
		).Inc()
	}
}
