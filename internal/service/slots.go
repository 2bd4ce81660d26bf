package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bookwell/reservation-service/internal/models"
	"github.com/bookwell/reservation-service/internal/repository"
	"github.com/bookwell/reservation-service/pkg/cache"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Slot is one candidate span in a shop's day: its start offset and whether
// the full requested span starting there is currently free.
type Slot struct {
	StartMinute int  `json:"start_minute"`
	Available   bool `json:"available"`
}

type SlotService interface {
	GetAvailableSlots(ctx context.Context, shopID uint, date time.Time, serviceIDs []uint) ([]Slot, error)
}

type slotService struct {
	shopRepo        repository.ShopRepository
	reservationRepo repository.ReservationRepository
	slotCache       *cache.SlotCache
	defaultCapacity int
	logger          *zap.Logger
}

func NewSlotService(
	shopRepo repository.ShopRepository,
	reservationRepo repository.ReservationRepository,
	slotCache *cache.SlotCache,
	defaultCapacity int,
	logger *zap.Logger,
) SlotService {
	return &slotService{
		shopRepo:        shopRepo,
		reservationRepo: reservationRepo,
		slotCache:       slotCache,
		defaultCapacity: defaultCapacity,
		logger:          logger,
	}
}

// GetAvailableSlots computes the advisory slot listing for a shop/date/
// service-set. The read is a snapshot with no locking: a slot shown as
// available can still lose the race at booking time, where the
// authoritative recheck lives.
func (s *slotService) GetAvailableSlots(ctx context.Context, shopID uint, date time.Time, serviceIDs []uint) ([]Slot, error) {
	if len(serviceIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one service is required", ErrValidation)
	}

	day := date.Format("2006-01-02")
	if payload, ok := s.slotCache.Get(ctx, shopID, day, serviceIDs); ok {
		var cached []Slot
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
		s.logger.Warn("discarding corrupt slot cache entry",
			zap.Uint("shop_id", shopID), zap.String("date", day))
	}

	shop, err := s.shopRepo.FindByID(ctx, shopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShopNotFound
		}
		return nil, err
	}

	schedule, err := s.shopRepo.GetSchedule(ctx, shopID, date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Closed that day: empty listing, not an error.
			return []Slot{}, nil
		}
		return nil, err
	}

	services, err := s.shopRepo.FindServices(ctx, shopID, serviceIDs)
	if err != nil {
		return nil, err
	}
	if len(services) != len(serviceIDs) {
		return nil, fmt.Errorf("%w: unknown service for shop %d", ErrValidation, shopID)
	}

	existing, err := s.reservationRepo.FindActiveByShopDate(ctx, shopID, date)
	if err != nil {
		return nil, err
	}

	slots := BuildSlots(schedule, services, existing, capacityOf(shop, s.defaultCapacity))

	if payload, err := json.Marshal(slots); err == nil {
		s.slotCache.Set(ctx, shopID, day, serviceIDs, payload)
	}
	return slots, nil
}

// BuildSlots walks the open window in granularity steps and marks each
// candidate span free or taken against the given reservations. Candidates
// crossing the break window or running past close are not emitted. Pure;
// callers supply the snapshot.
func BuildSlots(schedule *models.ShopSchedule, services []models.Service, existing []models.Reservation, capacity int) []Slot {
	span := TotalSpanMinutes(services)
	if span <= 0 {
		return []Slot{}
	}
	if capacity < 1 {
		capacity = 1
	}

	step := schedule.SlotGranularity
	if step <= 0 {
		step = 30
	}

	slots := []Slot{}
	for start := schedule.OpenMinute; start+span <= schedule.CloseMinute; start += step {
		end := start + span
		if schedule.HasBreak() && start < schedule.BreakEndMin && end > schedule.BreakStartMin {
			continue
		}

		occupied := 0
		for _, r := range existing {
			if r.StartMinute < end && r.EndMinute > start {
				occupied++
			}
		}
		slots = append(slots, Slot{StartMinute: start, Available: occupied < capacity})
	}
	return slots
}

// TotalSpanMinutes sums service durations and buffers into the contiguous
// span a booking of all of them occupies.
func TotalSpanMinutes(services []models.Service) int {
	total := 0
	for _, svc := range services {
		total += svc.DurationMin + svc.BufferMin
	}
	return total
}

func capacityOf(shop *models.Shop, fallback int) int {
	if shop.SlotCapacity > 0 {
		return shop.SlotCapacity
	}
	if fallback > 0 {
		return fallback
	}
	return 1
}
