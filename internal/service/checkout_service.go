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

// CheckoutService settles active carts into checkout transactions
type CheckoutService struct {
	store          *store.Store
	cache          *redisclient.Client
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(st *store.Store, cache *redisclient.Client, eventPublisher *broker.EventPublisher) *CheckoutService {
	return &CheckoutService{
		store:          st,
		cache:          cache,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// CheckoutRequest is the body for the checkout call
type CheckoutRequest struct {
	SessionID  string `json:"session_id" binding:"required"`
	GrainCount int64  `json:"grain_count" binding:"required"`
}

// CheckoutResponse is returned after a successful settlement
type CheckoutResponse struct {
	TransactionID  int64  `json:"transaction_id"`
	TotalAmount    int64  `json:"total_amount"`
	CareLoopAmount int64  `json:"care_loop_amount"`
	GrainCount     int64  `json:"grain_count"`
	Status         string `json:"status"`
}

// Checkout settles the session: the transaction snapshot, the status flip
// and the item clearing commit atomically in the store. Re-invoking on a
// settled session fails fast with the same conflict and creates nothing.
func (s *CheckoutService) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	txn, err := s.store.CheckoutTx(ctx, req.SessionID, req.GrainCount)
	switch err {
	case nil:
	case store.ErrNotFound:
		util.CheckoutsFailedTotal.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	case store.ErrSessionNotActive:
		util.CheckoutsFailedTotal.WithLabelValues("already_settled").Inc()
		return nil, conflict("cart already settled")
	case store.ErrEmptyCart:
		util.CheckoutsFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, conflict("cart is empty")
	default:
		util.CheckoutsFailedTotal.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("failed to settle cart: %w", err)
	}

	util.CheckoutsTotal.Inc()
	s.logger.Info("Cart settled",
		zap.String("session_id", req.SessionID),
		zap.Int64("transaction_id", txn.ID),
		zap.Int64("total_amount", txn.TotalAmount))

	if s.cache != nil {
		if err := s.cache.InvalidateCartSnapshot(ctx, req.SessionID); err != nil {
			s.logger.Warn("Failed to invalidate cart cache", zap.Error(err))
		}
	}

	if s.eventPublisher != nil {
		event := &models.CartSettledEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeCartSettled,
				Timestamp: time.Now(),
			},
			SessionID:      txn.SessionID,
			TransactionID:  txn.ID,
			TotalAmount:    txn.TotalAmount,
			CareLoopAmount: txn.CareLoopAmount,
			GrainCount:     txn.GrainCount,
		}
		if err := s.eventPublisher.PublishCartSettled(ctx, event); err != nil {
			s.logger.Error("Failed to publish CartSettled event", zap.Error(err))
		}
	}

	return &CheckoutResponse{
		TransactionID:  txn.ID,
		TotalAmount:    txn.TotalAmount,
		CareLoopAmount: txn.CareLoopAmount,
		GrainCount:     txn.GrainCount,
		Status:         txn.PaymentStatus,
	}, nil
}

// ListLicenses returns the active catalog, optionally filtered by tier
func (s *CheckoutService) ListLicenses(ctx context.Context, tier string) ([]models.License, error) {
	licenses, err := s.store.ListActiveLicenses(ctx, tier)
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}
	if licenses == nil {
		licenses = []models.License{}
	}
	return licenses, nil
}

// Stats returns the aggregate license and settlement counters
func (s *CheckoutService) Stats(ctx context.Context) (*models.LicenseStats, error) {
	stats, err := s.store.LicenseStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	stats.SyncSpeed = syncSpeedMillis
	return stats, nil
}

// syncSpeedMillis is the advertised ingestion sync speed surfaced on the
// stats endpoint.
const syncSpeedMillis = 80
