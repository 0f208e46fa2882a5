package worker

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

// SettlementWorker consumes payment events and advances the matching
// checkout transactions out of "processing". This is the reconciliation
// path: without it, settled carts would carry a processing transaction
// forever.
type SettlementWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	logger       *zap.Logger
}

// NewSettlementWorker creates a new settlement worker
func NewSettlementWorker(consumer *broker.Consumer, st *store.Store) *SettlementWorker {
	w := &SettlementWorker{
		consumer: consumer,
		store:    st,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentCompleted(w.handlePaymentCompleted)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *SettlementWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting settlement worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SettlementWorker) Stop() error {
	w.logger.Info("Stopping settlement worker")
	return w.consumer.Close()
}

func (w *SettlementWorker) handlePaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	advanced, err := w.store.CompleteCheckoutForSession(ctx, event.SessionID)
	if err != nil {
		return fmt.Errorf("failed to advance checkout transaction: %w", err)
	}

	if advanced > 0 {
		util.SettlementsAdvancedTotal.Inc()
		w.logger.Info("Checkout transaction completed",
			zap.String("session_id", event.SessionID),
			zap.String("payment_transaction_id", event.TransactionID))
	}

	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

// SweepWorker expires stale pending payments and idle active carts on an
// interval. A Redis lock keeps the sweep single-flight across instances.
type SweepWorker struct {
	store          *store.Store
	cache          *redisclient.Client
	eventPublisher *broker.EventPublisher
	interval       time.Duration
	paymentTimeout int
	cartTimeout    int
	logger         *zap.Logger
}

// NewSweepWorker creates a new sweep worker. Timeouts are in seconds.
func NewSweepWorker(st *store.Store, cache *redisclient.Client, eventPublisher *broker.EventPublisher, interval time.Duration, paymentTimeout, cartTimeout int) *SweepWorker {
	return &SweepWorker{
		store:          st,
		cache:          cache,
		eventPublisher: eventPublisher,
		interval:       interval,
		paymentTimeout: paymentTimeout,
		cartTimeout:    cartTimeout,
		logger:         util.GetLogger(),
	}
}

// Start runs the sweep loop until the context is cancelled
func (w *SweepWorker) Start(ctx context.Context) {
	w.logger.Info("Starting sweep worker",
		zap.Duration("interval", w.interval),
		zap.Int("payment_timeout_seconds", w.paymentTimeout),
		zap.Int("cart_timeout_seconds", w.cartTimeout))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Sweep worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) {
	if w.cache != nil {
		acquired, err := w.cache.AcquireLock(ctx, "settlement-sweep", w.interval)
		if err != nil {
			w.logger.Warn("Sweep lock acquisition failed", zap.Error(err))
			return
		}
		if !acquired {
			return
		}
		defer func() {
			if err := w.cache.ReleaseLock(ctx, "settlement-sweep"); err != nil {
				w.logger.Warn("Failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	expired, err := w.store.ExpireStalePayments(ctx, w.paymentTimeout)
	if err != nil {
		w.logger.Error("Failed to expire stale payments", zap.Error(err))
	} else if len(expired) > 0 {
		util.PaymentsExpiredTotal.Add(float64(len(expired)))
		w.logger.Info("Expired stale pending payments", zap.Int("count", len(expired)))
		for _, p := range expired {
			w.publishPaymentFailed(ctx, p.TransactionID, p.SessionID)
		}
	}

	abandoned, err := w.store.ExpireIdleCarts(ctx, w.cartTimeout)
	if err != nil {
		w.logger.Error("Failed to expire idle carts", zap.Error(err))
	} else if len(abandoned) > 0 {
		util.CartsAbandonedTotal.Add(float64(len(abandoned)))
		w.logger.Info("Abandoned idle carts", zap.Int("count", len(abandoned)))
		if w.cache != nil {
			for _, sessionID := range abandoned {
				if err := w.cache.InvalidateCartSnapshot(ctx, sessionID); err != nil {
					w.logger.Warn("Failed to invalidate abandoned cart cache",
						zap.String("session_id", sessionID), zap.Error(err))
				}
			}
		}
	}
}

func (w *SweepWorker) publishPaymentFailed(ctx context.Context, transactionID, sessionID string) {
	if w.eventPublisher == nil {
		return
	}
	event := &models.PaymentFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentFailed,
			Timestamp: time.Now(),
		},
		TransactionID: transactionID,
		SessionID:     sessionID,
		Reason:        "payment timeout",
	}
	if err := w.eventPublisher.PublishPaymentFailed(ctx, event); err != nil {
		w.logger.Error("Failed to publish PaymentFailed event",
			zap.String("transaction_id", transactionID), zap.Error(err))
	}
}
