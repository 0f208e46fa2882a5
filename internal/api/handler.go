package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"license-service/internal/service"
	"license-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	cartService     *service.CartService
	checkoutService *service.CheckoutService
	paymentService  *service.PaymentService
	ingestService   *service.IngestService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	cartService *service.CartService,
	checkoutService *service.CheckoutService,
	paymentService *service.PaymentService,
	ingestService *service.IngestService,
) *Handler {
	return &Handler{
		cartService:     cartService,
		checkoutService: checkoutService,
		paymentService:  paymentService,
		ingestService:   ingestService,
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

	api := router.Group("/api")
	{
		api.GET("/licenses", h.listLicenses)
		api.GET("/licenses/stats", h.licenseStats)
		api.GET("/licenses/cart/session", h.cartSession)
		api.POST("/licenses/cart/add", h.addToCart)
		api.POST("/licenses/cart/remove", h.removeFromCart)
		api.POST("/licenses/cart/checkout", h.checkout)

		api.POST("/payments/create-intent", h.createIntent)
		api.POST("/payments/confirm", h.confirmPayment)
		api.GET("/payments/transaction/:id", h.getTransaction)
		api.GET("/payments/transactions", h.listTransactions)
		api.GET("/payments/stats", h.paymentStats)

		api.POST("/webhook/brands", h.ingestBrands)
		api.DELETE("/webhook/brands", h.deleteBrands)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
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

// listLicenses returns active catalog licenses, optionally by tier
func (h *Handler) listLicenses(c *gin.Context) {
	licenses, err := h.checkoutService.ListLicenses(c.Request.Context(), c.Query("tier"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "items": licenses})
}

// licenseStats returns the aggregate counters
func (h *Handler) licenseStats(c *gin.Context) {
	stats, err := h.checkoutService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

// cartSession resumes an existing cart or opens a new one
func (h *Handler) cartSession(c *gin.Context) {
	view, err := h.cartService.OpenOrResume(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": view.SessionID,
		"session":    view.Session,
		"items":      view.Items,
	})
}

// addToCart adds a license to a cart
func (h *Handler) addToCart(c *gin.Context) {
	var req service.CartMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}

	totals, err := h.cartService.AddItem(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Added to cart",
		"total":     totals.Total,
		"care_loop": totals.CareLoop,
	})
}

// removeFromCart removes a license from a cart
func (h *Handler) removeFromCart(c *gin.Context) {
	var req service.CartMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}

	totals, err := h.cartService.RemoveItem(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Removed from cart",
		"total":     totals.Total,
		"care_loop": totals.CareLoop,
	})
}

// checkout settles a cart session
func (h *Handler) checkout(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}

	resp, err := h.checkoutService.Checkout(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"message":          "Checkout initiated",
		"transaction_id":   resp.TransactionID,
		"total_amount":     resp.TotalAmount,
		"care_loop_amount": resp.CareLoopAmount,
		"grain_count":      resp.GrainCount,
		"status":           resp.Status,
	})
}

// createIntent starts a payment for a cart session
func (h *Handler) createIntent(c *gin.Context) {
	var req service.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}

	resp, err := h.paymentService.CreateIntent(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"transaction_id": resp.TransactionID,
		"status":         resp.Status,
		"gateway":        resp.Gateway,
		"amount_cents":   resp.AmountCents,
		"currency":       resp.Currency,
		"payment_url":    resp.PaymentURL,
	})
}

// confirmPayment finalizes a pending payment
func (h *Handler) confirmPayment(c *gin.Context) {
	var req service.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}

	payment, err := h.paymentService.Confirm(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Payment confirmed",
		"transaction_id": payment.TransactionID,
		"status":         payment.Status,
	})
}

// getTransaction fetches a payment transaction by ID
func (h *Handler) getTransaction(c *gin.Context) {
	payment, err := h.paymentService.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": payment})
}

// listTransactions lists recent payment transactions
func (h *Handler) listTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	txns, err := h.paymentService.ListTransactions(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transactions": txns})
}

// paymentStats returns the aggregate payment counters
func (h *Handler) paymentStats(c *gin.Context) {
	stats, err := h.paymentService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

// ingestBrands accepts a single brand record or an array of them.
// Per-record failures are reported in the body; only a malformed envelope
// fails the call itself.
func (h *Handler) ingestBrands(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}

	var records []service.BrandRecord
	if err := json.Unmarshal(body, &records); err != nil {
		var single service.BrandRecord
		if err := json.Unmarshal(body, &single); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
			return
		}
		records = []service.BrandRecord{single}
	}

	result, err := h.ingestService.IngestBrands(c.Request.Context(), records)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// deleteBrands soft-deletes a batch of brand records
func (h *Handler) deleteBrands(c *gin.Context) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}

	deleted, err := h.ingestService.DeleteBrands(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": deleted})
}

// respondError maps the service error taxonomy onto HTTP statuses.
// Internal store errors are logged and surfaced opaquely.
func respondError(c *gin.Context, err error) {
	var conflictErr *service.ConflictError
	var validationErr *service.ValidationError

	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Not found"})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": conflictErr.Reason})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": validationErr.Error()})
	default:
		util.GetLogger().Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
