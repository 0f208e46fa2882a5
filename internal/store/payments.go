package store

import (
	"context"
	"database/sql"
	"fmt"

	"license-service/internal/models"
)

// CreatePaymentTransaction persists a new payment transaction
func (s *Store) CreatePaymentTransaction(ctx context.Context, p *models.PaymentTransaction) error {
	query := `
		INSERT INTO payment_transactions
		(transaction_id, session_id, gateway, amount_cents, currency, status, customer_email)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	row := s.db.QueryRowxContext(ctx, query,
		p.TransactionID, p.SessionID, p.Gateway, p.AmountCents, p.Currency, p.Status, p.CustomerEmail)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create payment transaction: %w", err)
	}
	return nil
}

// GetPaymentTransaction retrieves a payment transaction by ID
func (s *Store) GetPaymentTransaction(ctx context.Context, transactionID string) (*models.PaymentTransaction, error) {
	var p models.PaymentTransaction
	err := s.db.GetContext(ctx, &p,
		"SELECT * FROM payment_transactions WHERE transaction_id = $1", transactionID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPaymentTransactions retrieves recent payment transactions,
// optionally filtered by status
func (s *Store) ListPaymentTransactions(ctx context.Context, status string, limit int) ([]models.PaymentTransaction, error) {
	var txns []models.PaymentTransaction
	if status != "" {
		err := s.db.SelectContext(ctx, &txns,
			"SELECT * FROM payment_transactions WHERE status = $1 ORDER BY created_at DESC LIMIT $2",
			status, limit)
		return txns, err
	}
	err := s.db.SelectContext(ctx, &txns,
		"SELECT * FROM payment_transactions ORDER BY created_at DESC LIMIT $1", limit)
	return txns, err
}

// CompletePaymentTx transitions a pending payment to completed and applies
// the settlement effect to its cart session in the same transaction. A
// payment that is already completed returns ErrAlreadyCompleted without
// touching the cart again.
func (s *Store) CompletePaymentTx(ctx context.Context, transactionID string, paymentIntentID *string) (*models.PaymentTransaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var p models.PaymentTransaction
	err = tx.GetContext(ctx, &p,
		"SELECT * FROM payment_transactions WHERE transaction_id = $1 FOR UPDATE", transactionID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock payment transaction: %w", err)
	}

	if p.Status == models.PaymentStatusCompleted {
		return nil, ErrAlreadyCompleted
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payment_transactions
		SET status = $1, payment_intent_id = $2, updated_at = NOW()
		WHERE transaction_id = $3`,
		models.PaymentStatusCompleted, paymentIntentID, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete payment transaction: %w", err)
	}

	// The session may already have settled through checkout; only an
	// active session gets the clearing effect.
	status, err := lockSession(ctx, tx, p.SessionID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	if err == nil && status == models.SessionStatusActive {
		if err := settleSession(ctx, tx, p.SessionID); err != nil {
			return nil, err
		}
	}

	p.Status = models.PaymentStatusCompleted
	p.PaymentIntentID = paymentIntentID
	return &p, tx.Commit()
}

// ExpireStalePayments marks pending payments older than the cutoff as
// failed and returns the expired transactions so the caller can publish
// their failure.
func (s *Store) ExpireStalePayments(ctx context.Context, pendingSeconds int) ([]models.PaymentTransaction, error) {
	var expired []models.PaymentTransaction
	err := s.db.SelectContext(ctx, &expired, `
		UPDATE payment_transactions
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND created_at < NOW() - ($3 * INTERVAL '1 second')
		RETURNING transaction_id, session_id`,
		models.PaymentStatusFailed, models.PaymentStatusPending, pendingSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to expire stale payments: %w", err)
	}
	return expired, nil
}

// PaymentStats computes the aggregate payment counters
func (s *Store) PaymentStats(ctx context.Context) (*models.PaymentStats, error) {
	stats := &models.PaymentStats{}

	if err := s.db.GetContext(ctx, &stats.TotalRevenueCents,
		"SELECT COALESCE(SUM(amount_cents), 0) FROM payment_transactions WHERE status = $1",
		models.PaymentStatusCompleted); err != nil {
		return nil, fmt.Errorf("failed to sum payment revenue: %w", err)
	}

	if err := s.db.GetContext(ctx, &stats.TotalTransactions,
		"SELECT COUNT(*) FROM payment_transactions"); err != nil {
		return nil, fmt.Errorf("failed to count payment transactions: %w", err)
	}

	if err := s.db.GetContext(ctx, &stats.CompletedTransactions,
		"SELECT COUNT(*) FROM payment_transactions WHERE status = $1",
		models.PaymentStatusCompleted); err != nil {
		return nil, fmt.Errorf("failed to count completed transactions: %w", err)
	}

	if stats.TotalTransactions > 0 {
		stats.SuccessRate = stats.CompletedTransactions * 100 / stats.TotalTransactions
	}
	return stats, nil
}

// CompleteCheckoutForSession advances a session's processing checkout
// transaction to completed. Used by the settlement worker.
func (s *Store) CompleteCheckoutForSession(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE checkout_transactions
		SET payment_status = $1, updated_at = NOW()
		WHERE session_id = $2 AND payment_status = $3`,
		models.CheckoutStatusCompleted, sessionID, models.CheckoutStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to complete checkout transaction: %w", err)
	}
	return res.RowsAffected()
}
