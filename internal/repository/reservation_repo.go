package repository

import (
	"context"
	"time"

	"github.com/bookwell/reservation-service/internal/models"
	"gorm.io/gorm"
)

type ReservationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error
	FindByID(ctx context.Context, id uint) (*models.Reservation, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Reservation, error)
	FindByShop(ctx context.Context, shopID uint, status *models.ReservationStatus) ([]models.Reservation, error)
	FindActiveByShopDate(ctx context.Context, shopID uint, date time.Time) ([]models.Reservation, error)
	CountActiveOverlapping(ctx context.Context, tx *gorm.DB, shopID uint, date time.Time, startMin, endMin int) (int64, error)
	UpdateStatusGuarded(ctx context.Context, tx *gorm.DB, id uint, from, to models.ReservationStatus, updates map[string]any) (int64, error)
	SetCheckedIn(ctx context.Context, tx *gorm.DB, id uint, at time.Time) (int64, error)
	AppendStatusLog(ctx context.Context, tx *gorm.DB, entry *models.ReservationStatusLog) error
	FindSweepEligible(ctx context.Context, tx *gorm.DB, until time.Time) ([]models.Reservation, error)
	GetDB() *gorm.DB
}

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) GetDB() *gorm.DB {
	return r.db
}

func (r *reservationRepository) Create(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error {
	return tx.WithContext(ctx).Create(reservation).Error
}

func (r *reservationRepository) FindByID(ctx context.Context, id uint) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).Preload("Items").First(&reservation, id).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// FindByIDForUpdate locks the reservation row for the rest of the
// transaction so a concurrent transition cannot interleave.
func (r *reservationRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := tx.WithContext(ctx).
		Set("gorm:query_option", "FOR UPDATE").
		First(&reservation, id).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *reservationRepository) FindByShop(ctx context.Context, shopID uint, status *models.ReservationStatus) ([]models.Reservation, error) {
	var reservations []models.Reservation
	q := r.db.WithContext(ctx).Where("shop_id = ?", shopID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if err := q.Order("date ASC, start_minute ASC").Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// FindActiveByShopDate is the snapshot read behind the slot listing. It is
// deliberately lock-free; the booking path re-checks under its lock.
func (r *reservationRepository) FindActiveByShopDate(ctx context.Context, shopID uint, date time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND date = ? AND status IN ?",
			shopID, date.Format("2006-01-02"), activeStatuses()).
		Order("start_minute ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// CountActiveOverlapping counts committed active reservations whose span
// intersects [startMin, endMin). Runs inside the caller's transaction so
// the advisory-locked recheck sees current rows.
func (r *reservationRepository) CountActiveOverlapping(ctx context.Context, tx *gorm.DB, shopID uint, date time.Time, startMin, endMin int) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("shop_id = ? AND date = ? AND status IN ? AND start_minute < ? AND end_minute > ?",
			shopID, date.Format("2006-01-02"), activeStatuses(), endMin, startMin).
		Count(&count).Error
	return count, err
}

// UpdateStatusGuarded applies the transition only when the row still holds
// the expected current status, returning the affected-row count. Zero rows
// means a concurrent transition won; callers treat that as a conflict.
func (r *reservationRepository) UpdateStatusGuarded(ctx context.Context, tx *gorm.DB, id uint, from, to models.ReservationStatus, updates map[string]any) (int64, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	res := tx.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *reservationRepository) SetCheckedIn(ctx context.Context, tx *gorm.DB, id uint, at time.Time) (int64, error) {
	res := tx.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status = ? AND checked_in_at IS NULL", id, models.StatusConfirmed).
		Update("checked_in_at", at)
	return res.RowsAffected, res.Error
}

func (r *reservationRepository) AppendStatusLog(ctx context.Context, tx *gorm.DB, entry *models.ReservationStatusLog) error {
	return tx.WithContext(ctx).Create(entry).Error
}

// FindSweepEligible returns active reservations dated up to and including
// until, oldest span first, so repeated sweeps progress rows in a stable
// order.
func (r *reservationRepository) FindSweepEligible(ctx context.Context, tx *gorm.DB, until time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := tx.WithContext(ctx).
		Where("status IN ? AND date <= ?", activeStatuses(), until.Format("2006-01-02")).
		Order("date ASC, start_minute ASC, id ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func activeStatuses() []models.ReservationStatus {
	return []models.ReservationStatus{models.StatusRequested, models.StatusConfirmed}
}
