package models

import "time"

// License represents a purchasable license in the catalog
type License struct {
	ID          int64     `db:"id" json:"id"`
	LicenseCode string    `db:"license_code" json:"license_code"`
	Name        string    `db:"name" json:"name"`
	Tier        string    `db:"tier" json:"tier"`
	Category    string    `db:"category" json:"category"`
	PriceCents  int64     `db:"price_cents" json:"price_cents"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CartSession represents a mutable pre-settlement cart
type CartSession struct {
	SessionID      string    `db:"session_id" json:"session_id"`
	Status         string    `db:"status" json:"status"`
	TotalAmount    int64     `db:"total_amount" json:"total_amount"`
	CareLoopAmount int64     `db:"care_loop_amount" json:"care_loop_amount"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// CartItem represents a license placed in a cart, with the price
// snapshotted at add time. License display fields are joined in.
type CartItem struct {
	ID          int64     `db:"id" json:"id"`
	SessionID   string    `db:"session_id" json:"session_id"`
	LicenseID   int64     `db:"license_id" json:"license_id"`
	PriceCents  int64     `db:"price_cents" json:"price_cents"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	Name        string    `db:"name" json:"name"`
	LicenseCode string    `db:"license_code" json:"license_code"`
	Tier        string    `db:"tier" json:"tier"`
	Category    string    `db:"category" json:"category"`
}

// CheckoutTransaction is the immutable settlement record for a cart session
type CheckoutTransaction struct {
	ID             int64     `db:"id" json:"id"`
	SessionID      string    `db:"session_id" json:"session_id"`
	TotalAmount    int64     `db:"total_amount" json:"total_amount"`
	CareLoopAmount int64     `db:"care_loop_amount" json:"care_loop_amount"`
	GrainCount     int64     `db:"grain_count" json:"grain_count"`
	PaymentStatus  string    `db:"payment_status" json:"payment_status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// PaymentTransaction tracks an external payment attempt for a session
type PaymentTransaction struct {
	TransactionID   string    `db:"transaction_id" json:"transaction_id"`
	SessionID       string    `db:"session_id" json:"session_id"`
	Gateway         string    `db:"gateway" json:"gateway"`
	AmountCents     int64     `db:"amount_cents" json:"amount_cents"`
	Currency        string    `db:"currency" json:"currency"`
	Status          string    `db:"status" json:"status"`
	PaymentIntentID *string   `db:"payment_intent_id" json:"payment_intent_id,omitempty"`
	CustomerEmail   *string   `db:"customer_email" json:"customer_email,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Brand is an externally sourced catalog record, upserted by (name, system)
type Brand struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	System      string    `db:"system" json:"system"`
	Tier        string    `db:"tier" json:"tier"`
	Category    string    `db:"category" json:"category"`
	Description string    `db:"description" json:"description"`
	Emoji       string    `db:"emoji" json:"emoji"`
	Fee         *string   `db:"fee" json:"fee,omitempty"`
	Royalty     *string   `db:"royalty" json:"royalty,omitempty"`
	Division    *string   `db:"division" json:"division,omitempty"`
	VaultMeshID *string   `db:"vault_mesh_id" json:"vault_mesh_id,omitempty"`
	ParentID    *string   `db:"parent_id" json:"parent_id,omitempty"`
	UsePhrase   *string   `db:"use_phrase" json:"use_phrase,omitempty"`
	Subnodes    *string   `db:"subnodes" json:"subnodes,omitempty"`
	Metadata    *string   `db:"metadata" json:"metadata,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// BrandSystem is the denormalized per-system brand count
type BrandSystem struct {
	SystemKey   string    `db:"system_key" json:"system_key"`
	SystemName  string    `db:"system_name" json:"system_name"`
	TotalBrands int       `db:"total_brands" json:"total_brands"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// LicenseStats are the aggregate counters served by the stats endpoint
type LicenseStats struct {
	TotalLicenses int64 `json:"total_licenses"`
	TotalRevenue  int64 `json:"total_revenue"`
	ActiveCarts   int64 `json:"active_carts"`
	SyncSpeed     int64 `json:"sync_speed"`
}

// PaymentStats are the aggregate counters for the payments surface
type PaymentStats struct {
	TotalRevenueCents     int64 `json:"total_revenue_cents"`
	TotalTransactions     int64 `json:"total_transactions"`
	CompletedTransactions int64 `json:"completed_transactions"`
	SuccessRate           int64 `json:"success_rate"`
}

// Cart session statuses
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusAbandoned = "abandoned"
)

// Checkout transaction statuses
const (
	CheckoutStatusProcessing = "processing"
	CheckoutStatusCompleted  = "completed"
	CheckoutStatusFailed     = "failed"
)

// Payment transaction statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Payment gateways
const (
	GatewayManual = "manual"
	GatewayPaypal = "paypal"
	GatewayStripe = "stripe"
)

// CareLoopRate is the fixed surcharge applied to cart totals, in percent
const CareLoopRate = 15

// CareLoop computes the care loop surcharge for a cart total,
// floored to whole minor-currency units.
func CareLoop(total int64) int64 {
	return total * CareLoopRate / 100
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
