package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"license-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Sentinel errors surfaced to the service layer. The services translate
// these into the API error taxonomy; store methods never format
// client-facing messages.
var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateItem    = errors.New("license already in cart")
	ErrSessionNotActive = errors.New("cart session is not active")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrAlreadyCompleted = errors.New("transaction already completed")
)

type Store struct {
	db *sqlx.DB
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx, letting the
// per-session helpers run inside transactions.
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// New connects to Postgres and returns a store
func New(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests with sqlmock
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetActiveLicense retrieves an active license by ID
func (s *Store) GetActiveLicense(ctx context.Context, id int64) (*models.License, error) {
	var lic models.License
	err := s.db.GetContext(ctx, &lic,
		"SELECT * FROM licenses WHERE id = $1 AND is_active = TRUE", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lic, nil
}

// ListActiveLicenses retrieves active licenses, optionally filtered by tier
func (s *Store) ListActiveLicenses(ctx context.Context, tier string) ([]models.License, error) {
	var licenses []models.License
	if tier != "" {
		err := s.db.SelectContext(ctx, &licenses,
			"SELECT * FROM licenses WHERE is_active = TRUE AND tier = $1 ORDER BY tier, price_cents DESC", tier)
		return licenses, err
	}
	err := s.db.SelectContext(ctx, &licenses,
		"SELECT * FROM licenses WHERE is_active = TRUE ORDER BY tier, price_cents DESC")
	return licenses, err
}

// LicenseStats computes the aggregate counters for the stats endpoint
func (s *Store) LicenseStats(ctx context.Context) (*models.LicenseStats, error) {
	stats := &models.LicenseStats{}

	if err := s.db.GetContext(ctx, &stats.TotalLicenses,
		"SELECT COUNT(*) FROM licenses WHERE is_active = TRUE"); err != nil {
		return nil, fmt.Errorf("failed to count licenses: %w", err)
	}

	if err := s.db.GetContext(ctx, &stats.TotalRevenue,
		"SELECT COALESCE(SUM(total_amount), 0) FROM checkout_transactions WHERE payment_status = $1",
		models.CheckoutStatusProcessing); err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}

	if err := s.db.GetContext(ctx, &stats.ActiveCarts,
		"SELECT COUNT(*) FROM cart_sessions WHERE status = $1",
		models.SessionStatusActive); err != nil {
		return nil, fmt.Errorf("failed to count active carts: %w", err)
	}

	return stats, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
