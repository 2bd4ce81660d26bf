package service

import (
	"context"
	"fmt"

	"github.com/bookwell/reservation-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Points event types. Keys derived from these make every ledger write
// single-shot per reservation.
const (
	PointsEventBookingPaid = "booking_paid"
	PointsEventCompleted   = "reservation_completed"
	PointsEventRefund      = "refund"
)

// PointsLedger is the loyalty-points contract. Both operations are
// idempotent: a repeated idempotency key is a silent no-op, so sweep
// re-runs and refund retries cannot double-apply.
type PointsLedger interface {
	Award(ctx context.Context, tx *gorm.DB, userID string, amount int, reservationID uint, key string) error
	Deduct(ctx context.Context, tx *gorm.DB, userID string, amount int, reservationID uint, key string) error
}

// PointsKey derives the deterministic idempotency key for a reservation
// event.
func PointsKey(reservationID uint, event string) string {
	return fmt.Sprintf("%d:%s", reservationID, event)
}

type gormPointsLedger struct{}

// NewPointsLedger returns the ledger backed by the points_transactions
// table. Writes ride the caller's transaction so a rolled-back cancellation
// also rolls back its deduction.
func NewPointsLedger() PointsLedger {
	return gormPointsLedger{}
}

func (gormPointsLedger) Award(ctx context.Context, tx *gorm.DB, userID string, amount int, reservationID uint, key string) error {
	return insertLedgerRow(ctx, tx, userID, amount, reservationID, key)
}

func (gormPointsLedger) Deduct(ctx context.Context, tx *gorm.DB, userID string, amount int, reservationID uint, key string) error {
	return insertLedgerRow(ctx, tx, userID, -amount, reservationID, key)
}

func insertLedgerRow(ctx context.Context, tx *gorm.DB, userID string, amount int, reservationID uint, key string) error {
	if amount == 0 {
		return nil
	}
	row := &models.PointsTransaction{
		UserID:         userID,
		Amount:         amount,
		ReservationID:  reservationID,
		IdempotencyKey: key,
	}
	// Duplicate key -> no-op. The ledger, not the caller, owns retry safety.
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(row).Error
}
