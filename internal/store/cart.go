package store

import (
	"context"
	"database/sql"
	"fmt"

	"license-service/internal/models"
)

// CreateCartSession creates a new active cart session with zero totals
func (s *Store) CreateCartSession(ctx context.Context, sessionID string) (*models.CartSession, error) {
	var sess models.CartSession
	err := s.db.GetContext(ctx, &sess, `
		INSERT INTO cart_sessions (session_id, status, total_amount, care_loop_amount)
		VALUES ($1, $2, 0, 0)
		RETURNING *`,
		sessionID, models.SessionStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart session: %w", err)
	}
	return &sess, nil
}

// GetCartSession retrieves a cart session by ID
func (s *Store) GetCartSession(ctx context.Context, sessionID string) (*models.CartSession, error) {
	var sess models.CartSession
	err := s.db.GetContext(ctx, &sess,
		"SELECT * FROM cart_sessions WHERE session_id = $1", sessionID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetCartItems retrieves all items in a cart with license details joined
func (s *Store) GetCartItems(ctx context.Context, sessionID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT ci.id, ci.session_id, ci.license_id, ci.price_cents, ci.created_at,
		       l.name, l.license_code, l.tier, l.category
		FROM cart_items ci
		JOIN licenses l ON ci.license_id = l.id
		WHERE ci.session_id = $1
		ORDER BY ci.created_at`, sessionID)
	return items, err
}

// AddCartItemTx inserts a cart item with the given snapshotted price and
// recomputes the session totals, all inside one transaction holding a row
// lock on the session. Concurrent mutators on the same session serialize
// on that lock, so the stored total always equals the item sum.
func (s *Store) AddCartItemTx(ctx context.Context, sessionID string, licenseID, priceCents int64) (total, careLoop int64, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	status, err := lockSession(ctx, tx, sessionID)
	if err != nil {
		return 0, 0, err
	}
	if status != models.SessionStatusActive {
		return 0, 0, ErrSessionNotActive
	}

	var exists bool
	err = tx.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM cart_items WHERE session_id = $1 AND license_id = $2)",
		sessionID, licenseID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to check cart item: %w", err)
	}
	if exists {
		return 0, 0, ErrDuplicateItem
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO cart_items (session_id, license_id, price_cents) VALUES ($1, $2, $3)",
		sessionID, licenseID, priceCents)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to insert cart item: %w", err)
	}

	total, careLoop, err = recomputeTotals(ctx, tx, sessionID)
	if err != nil {
		return 0, 0, err
	}

	return total, careLoop, tx.Commit()
}

// RemoveCartItemTx deletes a cart item if present and recomputes the
// session totals in the same transaction. Removing an absent item is a
// no-op, not an error.
func (s *Store) RemoveCartItemTx(ctx context.Context, sessionID string, licenseID int64) (total, careLoop int64, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	status, err := lockSession(ctx, tx, sessionID)
	if err != nil {
		return 0, 0, err
	}
	if status != models.SessionStatusActive {
		return 0, 0, ErrSessionNotActive
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM cart_items WHERE session_id = $1 AND license_id = $2",
		sessionID, licenseID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete cart item: %w", err)
	}

	total, careLoop, err = recomputeTotals(ctx, tx, sessionID)
	if err != nil {
		return 0, 0, err
	}

	return total, careLoop, tx.Commit()
}

// CheckoutTx settles an active cart: it creates the checkout transaction
// snapshot, flips the session to completed and clears its items. The three
// effects commit together or not at all.
func (s *Store) CheckoutTx(ctx context.Context, sessionID string, grainCount int64) (*models.CheckoutTransaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var sess models.CartSession
	err = tx.GetContext(ctx, &sess,
		"SELECT * FROM cart_sessions WHERE session_id = $1 FOR UPDATE", sessionID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart session: %w", err)
	}

	if sess.Status != models.SessionStatusActive {
		return nil, ErrSessionNotActive
	}
	if sess.TotalAmount == 0 {
		return nil, ErrEmptyCart
	}

	var txn models.CheckoutTransaction
	err = tx.GetContext(ctx, &txn, `
		INSERT INTO checkout_transactions (session_id, total_amount, care_loop_amount, grain_count, payment_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *`,
		sessionID, sess.TotalAmount, sess.CareLoopAmount, grainCount, models.CheckoutStatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout transaction: %w", err)
	}

	if err := settleSession(ctx, tx, sessionID); err != nil {
		return nil, err
	}

	return &txn, tx.Commit()
}

// ExpireIdleCarts marks active carts idle past the cutoff as abandoned and
// clears their items. Returns the expired session IDs so the caller can
// drop any cached snapshots.
func (s *Store) ExpireIdleCarts(ctx context.Context, idleSeconds int) ([]string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM cart_items WHERE session_id IN (
			SELECT session_id FROM cart_sessions
			WHERE status = $1 AND updated_at < NOW() - ($2 * INTERVAL '1 second')
		)`,
		models.SessionStatusActive, idleSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to clear idle cart items: %w", err)
	}

	var expired []string
	err = tx.SelectContext(ctx, &expired, `
		UPDATE cart_sessions
		SET status = $1, total_amount = 0, care_loop_amount = 0, updated_at = NOW()
		WHERE status = $2 AND updated_at < NOW() - ($3 * INTERVAL '1 second')
		RETURNING session_id`,
		models.SessionStatusAbandoned, models.SessionStatusActive, idleSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to expire idle carts: %w", err)
	}

	return expired, tx.Commit()
}

// lockSession locks the session row and returns its status
func lockSession(ctx context.Context, tx queryer, sessionID string) (string, error) {
	var status string
	err := tx.GetContext(ctx, &status,
		"SELECT status FROM cart_sessions WHERE session_id = $1 FOR UPDATE", sessionID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to lock cart session: %w", err)
	}
	return status, nil
}

// recomputeTotals sums the session's items and persists total and fee.
// Must run inside a transaction holding the session lock.
func recomputeTotals(ctx context.Context, tx queryer, sessionID string) (total, careLoop int64, err error) {
	err = tx.GetContext(ctx, &total,
		"SELECT COALESCE(SUM(price_cents), 0) FROM cart_items WHERE session_id = $1", sessionID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum cart items: %w", err)
	}

	careLoop = models.CareLoop(total)

	_, err = tx.ExecContext(ctx,
		"UPDATE cart_sessions SET total_amount = $1, care_loop_amount = $2, updated_at = NOW() WHERE session_id = $3",
		total, careLoop, sessionID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to update cart totals: %w", err)
	}

	return total, careLoop, nil
}

// settleSession flips a session to completed and deletes its items.
// Must run inside a transaction holding the session lock.
func settleSession(ctx context.Context, tx queryer, sessionID string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE cart_sessions SET status = $1, updated_at = NOW() WHERE session_id = $2",
		models.SessionStatusCompleted, sessionID)
	if err != nil {
		return fmt.Errorf("failed to complete cart session: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM cart_items WHERE session_id = $1", sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	return nil
}
