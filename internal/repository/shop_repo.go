package repository

import (
	"context"
	"time"

	"github.com/bookwell/reservation-service/internal/models"
	"gorm.io/gorm"
)

// ShopRepository is the read-only availability source: shop capacity,
// operating schedules, and the service catalogue. Shop CRUD belongs to the
// profile service; nothing here writes.
type ShopRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Shop, error)
	GetSchedule(ctx context.Context, shopID uint, date time.Time) (*models.ShopSchedule, error)
	FindServices(ctx context.Context, shopID uint, ids []uint) ([]models.Service, error)
}

type shopRepository struct {
	db *gorm.DB
}

func NewShopRepository(db *gorm.DB) ShopRepository {
	return &shopRepository{db: db}
}

func (r *shopRepository) FindByID(ctx context.Context, id uint) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).First(&shop, id).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

// GetSchedule returns the operating window for the weekday of date, or
// gorm.ErrRecordNotFound when the shop is closed that day.
func (r *shopRepository) GetSchedule(ctx context.Context, shopID uint, date time.Time) (*models.ShopSchedule, error) {
	var schedule models.ShopSchedule
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND weekday = ?", shopID, int(date.Weekday())).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

// FindServices returns the requested services in the order their IDs were
// given. Missing or foreign-shop IDs are simply absent from the result;
// the caller decides whether that is an error.
func (r *shopRepository) FindServices(ctx context.Context, shopID uint, ids []uint) ([]models.Service, error) {
	var services []models.Service
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND id IN ?", shopID, ids).
		Find(&services).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]models.Service, len(services))
	for _, s := range services {
		byID[s.ID] = s
	}
	ordered := make([]models.Service, 0, len(services))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered, nil
}
