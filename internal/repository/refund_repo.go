package repository

import (
	"context"

	"github.com/bookwell/reservation-service/internal/models"
	"gorm.io/gorm"
)

type RefundRepository interface {
	Create(ctx context.Context, tx *gorm.DB, record *models.RefundRecord) error
	FindByReservation(ctx context.Context, tx *gorm.DB, reservationID uint) (*models.RefundRecord, error)
	MarkCompleted(ctx context.Context, tx *gorm.DB, id uint, refundedAmount float64, gatewayTxnID string) error
}

type refundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) RefundRepository {
	return &refundRepository{db: db}
}

func (r *refundRepository) Create(ctx context.Context, tx *gorm.DB, record *models.RefundRecord) error {
	return tx.WithContext(ctx).Create(record).Error
}

func (r *refundRepository) FindByReservation(ctx context.Context, tx *gorm.DB, reservationID uint) (*models.RefundRecord, error) {
	var record models.RefundRecord
	err := tx.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *refundRepository) MarkCompleted(ctx context.Context, tx *gorm.DB, id uint, refundedAmount float64, gatewayTxnID string) error {
	return tx.WithContext(ctx).
		Model(&models.RefundRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          models.RefundCompleted,
			"refunded_amount": refundedAmount,
			"gateway_txn_id":  gatewayTxnID,
		}).Error
}
