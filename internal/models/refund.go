package models

import "time"

type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundCompleted RefundStatus = "completed"
	RefundFailed    RefundStatus = "failed"
)

// RefundRecord tracks one monetary refund for a cancelled reservation.
// RefundedAmount never exceeds RequestedAmount, and a completed record is
// immutable — a second refund attempt for the same reservation is rejected.
type RefundRecord struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	ReservationID   uint         `gorm:"not null;uniqueIndex" json:"reservation_id"`
	RequestedAmount float64      `gorm:"not null" json:"requested_amount"`
	RefundedAmount  float64      `gorm:"not null;default:0" json:"refunded_amount"`
	Status          RefundStatus `gorm:"type:varchar(10);not null;default:'pending'" json:"status"`
	GatewayTxnID    string       `json:"gateway_txn_id,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// PointsTransaction is one immutable row in the loyalty ledger. Amount is
// signed: awards positive, deductions negative. The unique idempotency key
// makes retried writes no-ops, so sweep re-runs and refund retries can
// never double-apply.
type PointsTransaction struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         string    `gorm:"not null;index" json:"user_id"`
	Amount         int       `gorm:"not null" json:"amount"`
	ReservationID  uint      `gorm:"not null;index" json:"reservation_id"`
	IdempotencyKey string    `gorm:"not null;uniqueIndex" json:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"`
}
