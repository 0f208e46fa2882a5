package models

import "time"

// Event types
const (
	EventTypeCartSettled      = "CART_SETTLED"
	EventTypePaymentCompleted = "PAYMENT_COMPLETED"
	EventTypePaymentFailed    = "PAYMENT_FAILED"
	EventTypeBrandsIngested   = "BRANDS_INGESTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CartSettledEvent published when a cart session is checked out
type CartSettledEvent struct {
	BaseEvent
	SessionID      string `json:"session_id"`
	TransactionID  int64  `json:"transaction_id"`
	TotalAmount    int64  `json:"total_amount"`
	CareLoopAmount int64  `json:"care_loop_amount"`
	GrainCount     int64  `json:"grain_count"`
}

// PaymentCompletedEvent published when a payment transaction completes
type PaymentCompletedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	SessionID     string `json:"session_id"`
	Gateway       string `json:"gateway"`
	AmountCents   int64  `json:"amount_cents"`
}

// PaymentFailedEvent published when a pending payment expires or fails
type PaymentFailedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	SessionID     string `json:"session_id"`
	Reason        string `json:"reason"`
}

// BrandsIngestedEvent published after a webhook ingestion batch
type BrandsIngestedEvent struct {
	BaseEvent
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Errors   int      `json:"errors"`
	Systems  []string `json:"systems"`
}
