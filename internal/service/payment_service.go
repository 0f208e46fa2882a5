package service

import (
	"context"
	"fmt"
	"time"

	"license-service/internal/broker"
	"license-service/internal/models"
	"license-service/internal/redisclient"
	"license-service/internal/store"
	"license-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentService handles payment intents and their convergence with cart
// settlement. The manual gateway completes synchronously; paypal and
// stripe return a redirect reference and wait for a confirm call.
type PaymentService struct {
	store          *store.Store
	cache          *redisclient.Client
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(st *store.Store, cache *redisclient.Client, eventPublisher *broker.EventPublisher) *PaymentService {
	return &PaymentService{
		store:          st,
		cache:          cache,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// CreateIntentRequest is the body for the create-intent call
type CreateIntentRequest struct {
	SessionID     string `json:"session_id" binding:"required"`
	Gateway       string `json:"gateway" binding:"required"`
	AmountCents   int64  `json:"amount_cents" binding:"required"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customer_email" binding:"omitempty,email"`
}

// CreateIntentResponse is returned from the create-intent call
type CreateIntentResponse struct {
	TransactionID string  `json:"transaction_id"`
	Status        string  `json:"status"`
	Gateway       string  `json:"gateway"`
	AmountCents   int64   `json:"amount_cents"`
	Currency      string  `json:"currency"`
	PaymentURL    *string `json:"payment_url"`
}

// ConfirmRequest is the body for the confirm call
type ConfirmRequest struct {
	TransactionID   string `json:"transaction_id" binding:"required"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// CreateIntent validates the session and persists a payment transaction.
// Manual intents settle immediately; gateway intents stay pending until
// confirmed and do not touch the cart.
func (s *PaymentService) CreateIntent(ctx context.Context, req *CreateIntentRequest) (*CreateIntentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreateIntent")
	defer span.End()

	switch req.Gateway {
	case models.GatewayManual, models.GatewayPaypal, models.GatewayStripe:
	default:
		return nil, invalid("gateway", "unsupported gateway")
	}

	if req.Currency == "" {
		req.Currency = "USD"
	}

	sess, err := s.store.GetCartSession(ctx, req.SessionID)
	if err == store.ErrNotFound {
		return nil, invalid("session_id", "invalid cart session")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart session: %w", err)
	}
	if sess.Status != models.SessionStatusActive {
		return nil, invalid("session_id", "invalid cart session")
	}

	payment := &models.PaymentTransaction{
		TransactionID: fmt.Sprintf("TXN_%s", uuid.New().String()),
		SessionID:     req.SessionID,
		Gateway:       req.Gateway,
		AmountCents:   req.AmountCents,
		Currency:      req.Currency,
		Status:        models.PaymentStatusPending,
	}
	if req.CustomerEmail != "" {
		payment.CustomerEmail = &req.CustomerEmail
	}

	if err := s.store.CreatePaymentTransaction(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment transaction: %w", err)
	}

	util.PaymentIntentsTotal.WithLabelValues(req.Gateway).Inc()
	s.logger.Info("Payment intent created",
		zap.String("transaction_id", payment.TransactionID),
		zap.String("gateway", req.Gateway),
		zap.Int64("amount_cents", req.AmountCents))

	resp := &CreateIntentResponse{
		TransactionID: payment.TransactionID,
		Status:        models.PaymentStatusPending,
		Gateway:       req.Gateway,
		AmountCents:   req.AmountCents,
		Currency:      req.Currency,
	}

	if req.Gateway == models.GatewayManual {
		if _, err := s.completePayment(ctx, payment.TransactionID, nil); err != nil {
			return nil, err
		}
		resp.Status = models.PaymentStatusCompleted
		return resp, nil
	}

	resp.PaymentURL = redirectURL(req.Gateway, payment.TransactionID)
	return resp, nil
}

// Confirm finalizes a pending payment after the external redirect.
// Confirming an already-completed payment reports a conflict instead of
// re-clearing the cart.
func (s *PaymentService) Confirm(ctx context.Context, req *ConfirmRequest) (*models.PaymentTransaction, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Confirm")
	defer span.End()

	var intentID *string
	if req.PaymentIntentID != "" {
		intentID = &req.PaymentIntentID
	}

	return s.completePayment(ctx, req.TransactionID, intentID)
}

func (s *PaymentService) completePayment(ctx context.Context, transactionID string, intentID *string) (*models.PaymentTransaction, error) {
	payment, err := s.store.CompletePaymentTx(ctx, transactionID, intentID)
	switch err {
	case nil:
	case store.ErrNotFound:
		return nil, ErrNotFound
	case store.ErrAlreadyCompleted:
		return nil, conflict("payment already completed")
	default:
		return nil, fmt.Errorf("failed to complete payment: %w", err)
	}

	util.PaymentsCompletedTotal.Inc()
	s.logger.Info("Payment completed",
		zap.String("transaction_id", payment.TransactionID),
		zap.String("session_id", payment.SessionID))

	if s.cache != nil {
		if err := s.cache.InvalidateCartSnapshot(ctx, payment.SessionID); err != nil {
			s.logger.Warn("Failed to invalidate cart cache", zap.Error(err))
		}
	}

	if s.eventPublisher != nil {
		event := &models.PaymentCompletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypePaymentCompleted,
				Timestamp: time.Now(),
			},
			TransactionID: payment.TransactionID,
			SessionID:     payment.SessionID,
			Gateway:       payment.Gateway,
			AmountCents:   payment.AmountCents,
		}
		if err := s.eventPublisher.PublishPaymentCompleted(ctx, event); err != nil {
			s.logger.Error("Failed to publish PaymentCompleted event", zap.Error(err))
		}
	}

	return payment, nil
}

// GetTransaction retrieves a payment transaction by ID
func (s *PaymentService) GetTransaction(ctx context.Context, transactionID string) (*models.PaymentTransaction, error) {
	payment, err := s.store.GetPaymentTransaction(ctx, transactionID)
	if err == store.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment transaction: %w", err)
	}
	return payment, nil
}

// ListTransactions retrieves recent payment transactions
func (s *PaymentService) ListTransactions(ctx context.Context, status string, limit int) ([]models.PaymentTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txns, err := s.store.ListPaymentTransactions(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment transactions: %w", err)
	}
	if txns == nil {
		txns = []models.PaymentTransaction{}
	}
	return txns, nil
}

// Stats returns the aggregate payment counters
func (s *PaymentService) Stats(ctx context.Context) (*models.PaymentStats, error) {
	return s.store.PaymentStats(ctx)
}

func redirectURL(gateway, transactionID string) *string {
	var url string
	switch gateway {
	case models.GatewayPaypal:
		url = fmt.Sprintf("https://www.paypal.com/checkoutnow?token=%s", transactionID)
	case models.GatewayStripe:
		url = fmt.Sprintf("https://checkout.stripe.com/pay/%s", transactionID)
	default:
		return nil
	}
	return &url
}
