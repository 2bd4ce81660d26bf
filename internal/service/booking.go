package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bookwell/reservation-service/internal/models"
	"github.com/bookwell/reservation-service/internal/notifier"
	"github.com/bookwell/reservation-service/internal/repository"
	"github.com/bookwell/reservation-service/pkg/cache"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateReservationInput is the booking request after HTTP-level parsing.
type CreateReservationInput struct {
	ShopID      uint
	CustomerID  string
	ServiceIDs  []uint
	Date        time.Time
	StartMinute int
	Notes       string
	PaymentRef  string
}

type BookingService interface {
	CreateReservation(ctx context.Context, in CreateReservationInput) (*models.Reservation, error)
	GetReservation(ctx context.Context, id uint) (*models.Reservation, error)
	ListByShop(ctx context.Context, shopID uint, status *models.ReservationStatus) ([]models.Reservation, error)
}

// BookingConfig carries the coordinator's policy knobs.
type BookingConfig struct {
	LockTimeout     time.Duration
	DefaultCapacity int
	PointsEarnRate  float64
}

type bookingService struct {
	shopRepo        repository.ShopRepository
	reservationRepo repository.ReservationRepository
	locks           repository.LockManager
	ledger          PointsLedger
	dispatcher      notifier.Dispatcher
	slotCache       *cache.SlotCache
	cfg             BookingConfig
	logger          *zap.Logger
}

func NewBookingService(
	shopRepo repository.ShopRepository,
	reservationRepo repository.ReservationRepository,
	locks repository.LockManager,
	ledger PointsLedger,
	dispatcher notifier.Dispatcher,
	slotCache *cache.SlotCache,
	cfg BookingConfig,
	logger *zap.Logger,
) BookingService {
	return &bookingService{
		shopRepo:        shopRepo,
		reservationRepo: reservationRepo,
		locks:           locks,
		ledger:          ledger,
		dispatcher:      dispatcher,
		slotCache:       slotCache,
		cfg:             cfg,
		logger:          logger,
	}
}

// CreateReservation is the authoritative gate for booking. The whole
// operation is one transaction: acquire the slot's advisory locks, re-run
// the overlap check against committed rows, insert the reservation and its
// line items, award base points. Commit releases the locks. Of N
// concurrent calls on overlapping spans, exactly one commits; the rest see
// ErrSlotUnavailable or ErrLockTimeout and no partial state.
func (s *bookingService) CreateReservation(ctx context.Context, in CreateReservationInput) (*models.Reservation, error) {
	if len(in.ServiceIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one service is required", ErrValidation)
	}
	if in.CustomerID == "" {
		return nil, fmt.Errorf("%w: customer_id is required", ErrValidation)
	}

	shop, err := s.shopRepo.FindByID(ctx, in.ShopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShopNotFound
		}
		return nil, err
	}

	schedule, err := s.shopRepo.GetSchedule(ctx, in.ShopID, in.Date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: shop is closed on %s", ErrValidation, in.Date.Format("2006-01-02"))
		}
		return nil, err
	}

	services, err := s.shopRepo.FindServices(ctx, in.ShopID, in.ServiceIDs)
	if err != nil {
		return nil, err
	}
	if len(services) != len(in.ServiceIDs) {
		return nil, fmt.Errorf("%w: unknown service for shop %d", ErrValidation, in.ShopID)
	}

	span := TotalSpanMinutes(services)
	if span <= 0 {
		return nil, fmt.Errorf("%w: requested services have no duration", ErrValidation)
	}
	end := in.StartMinute + span
	if in.StartMinute < schedule.OpenMinute || end > schedule.CloseMinute {
		return nil, fmt.Errorf("%w: span %d-%d outside operating window", ErrValidation, in.StartMinute, end)
	}
	if schedule.HasBreak() && in.StartMinute < schedule.BreakEndMin && end > schedule.BreakStartMin {
		return nil, fmt.Errorf("%w: span overlaps the shop's break window", ErrValidation)
	}

	capacity := capacityOf(shop, s.cfg.DefaultCapacity)
	total := totalPrice(services)

	var result *models.Reservation
	err = s.reservationRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Serialize contenders on this span. Multi-service spans lock
		// every granule they cover as one unit, so there are no partial
		// multi-service reservations.
		err := s.locks.AcquireSlotLocks(ctx, tx, in.ShopID, in.Date, in.StartMinute, end, schedule.SlotGranularity, s.cfg.LockTimeout)
		if err != nil {
			if errors.Is(err, repository.ErrLockNotAcquired) {
				return ErrLockTimeout
			}
			return err
		}

		// 2. Mandatory re-validation: the caller's slot listing is a stale
		// snapshot by now.
		occupied, err := s.reservationRepo.CountActiveOverlapping(ctx, tx, in.ShopID, in.Date, in.StartMinute, end)
		if err != nil {
			return err
		}
		if occupied >= int64(capacity) {
			return ErrSlotUnavailable
		}

		// 3. Commit the reservation with its line items.
		reservation := &models.Reservation{
			ShopID:      in.ShopID,
			CustomerID:  in.CustomerID,
			Date:        in.Date,
			StartMinute: in.StartMinute,
			EndMinute:   end,
			Status:      models.StatusRequested,
			TotalAmount: total,
			PaidAmount:  total,
			PaymentRef:  in.PaymentRef,
			Notes:       in.Notes,
		}
		if err := s.reservationRepo.Create(ctx, tx, reservation); err != nil {
			return err
		}

		items := make([]models.ReservationItem, len(services))
		for i, svc := range services {
			items[i] = models.ReservationItem{
				ReservationID: reservation.ID,
				ServiceID:     svc.ID,
				Price:         svc.Price,
				DurationMin:   svc.DurationMin,
				BufferMin:     svc.BufferMin,
			}
		}
		if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
			return err
		}
		reservation.Items = items

		// 4. Base points for the paid booking, keyed so retries no-op.
		points := BasePoints(reservation.PaidAmount, s.cfg.PointsEarnRate)
		if err := s.ledger.Award(ctx, tx, in.CustomerID, points, reservation.ID,
			PointsKey(reservation.ID, PointsEventBookingPaid)); err != nil {
			return err
		}

		result = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.slotCache.Invalidate(ctx, in.ShopID, in.Date.Format("2006-01-02"))
	s.dispatcher.Notify(ctx, notifier.EventCreated, result)
	s.logger.Info("reservation created",
		zap.Uint("reservation_id", result.ID),
		zap.Uint("shop_id", in.ShopID),
		zap.Int("start_minute", in.StartMinute))
	return result, nil
}

func (s *bookingService) GetReservation(ctx context.Context, id uint) (*models.Reservation, error) {
	reservation, err := s.reservationRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return reservation, nil
}

func (s *bookingService) ListByShop(ctx context.Context, shopID uint, status *models.ReservationStatus) ([]models.Reservation, error) {
	return s.reservationRepo.FindByShop(ctx, shopID, status)
}

// BasePoints is the deterministic base award for a paid amount. The refund
// path derives its deduction from the same computation.
func BasePoints(paidAmount, rate float64) int {
	if paidAmount <= 0 || rate <= 0 {
		return 0
	}
	return int(math.Floor(paidAmount * rate))
}

func totalPrice(services []models.Service) float64 {
	total := 0.0
	for _, svc := range services {
		total += svc.Price
	}
	return total
}
