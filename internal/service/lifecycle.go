package service

import (
	"context"
	"errors"
	"time"

	"github.com/bookwell/reservation-service/internal/models"
	"github.com/bookwell/reservation-service/internal/notifier"
	"github.com/bookwell/reservation-service/internal/repository"
	"github.com/bookwell/reservation-service/pkg/cache"
	"github.com/bookwell/reservation-service/pkg/clock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// allowedFrom maps each target status to the statuses it may be entered
// from. Anything not listed is an invalid transition.
var allowedFrom = map[models.ReservationStatus][]models.ReservationStatus{
	models.StatusConfirmed:       {models.StatusRequested},
	models.StatusCancelledByUser: {models.StatusRequested, models.StatusConfirmed},
	models.StatusCancelledByShop: {models.StatusRequested, models.StatusConfirmed},
	models.StatusNoShow:          {models.StatusConfirmed},
	models.StatusCompleted:       {models.StatusConfirmed},
}

// allowedActors maps each target status to the actors permitted to drive
// it. no_show and completed are sweep-only.
var allowedActors = map[models.ReservationStatus][]models.Actor{
	models.StatusConfirmed:       {models.ActorShop, models.ActorSystem},
	models.StatusCancelledByUser: {models.ActorCustomer},
	models.StatusCancelledByShop: {models.ActorShop, models.ActorSystem},
	models.StatusNoShow:          {models.ActorSystem},
	models.StatusCompleted:       {models.ActorSystem},
}

// CanTransition reports whether from -> to is in the lifecycle table.
func CanTransition(from, to models.ReservationStatus) bool {
	for _, s := range allowedFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}

// ActorMayDrive reports whether actor is permitted to request target.
func ActorMayDrive(actor models.Actor, target models.ReservationStatus) bool {
	for _, a := range allowedActors[target] {
		if a == actor {
			return true
		}
	}
	return false
}

type SweepResult struct {
	ProcessedCount int `json:"processed_count"`
}

type LifecycleService interface {
	Transition(ctx context.Context, id uint, target models.ReservationStatus, actor models.Actor, actorID, reason string) (*models.Reservation, error)
	CheckIn(ctx context.Context, id uint) (*models.Reservation, error)
	RunAutomaticSweep(ctx context.Context) (SweepResult, error)
}

// LifecycleConfig carries the state machine's policy parameters.
type LifecycleConfig struct {
	// AutoConfirmLead promotes requested reservations to confirmed once
	// their start is this close. Zero disables auto-confirmation.
	AutoConfirmLead time.Duration
	CompletionBonus int
}

type lifecycleService struct {
	reservationRepo repository.ReservationRepository
	locks           repository.LockManager
	refunds         *RefundEngine
	ledger          PointsLedger
	dispatcher      notifier.Dispatcher
	slotCache       *cache.SlotCache
	clk             clock.Clock
	cfg             LifecycleConfig
	logger          *zap.Logger
}

func NewLifecycleService(
	reservationRepo repository.ReservationRepository,
	locks repository.LockManager,
	refunds *RefundEngine,
	ledger PointsLedger,
	dispatcher notifier.Dispatcher,
	slotCache *cache.SlotCache,
	clk clock.Clock,
	cfg LifecycleConfig,
	logger *zap.Logger,
) LifecycleService {
	return &lifecycleService{
		reservationRepo: reservationRepo,
		locks:           locks,
		refunds:         refunds,
		ledger:          ledger,
		dispatcher:      dispatcher,
		slotCache:       slotCache,
		clk:             clk,
		cfg:             cfg,
		logger:          logger,
	}
}

// Transition applies one manual lifecycle step. Status update, audit log
// row, and — for cancellations — the refund and points adjustment all
// commit or roll back as a unit. The row lock plus guarded update make the
// recheck optimistic: if a concurrent transition (say, sweep completion)
// got there first, this call fails with ErrInvalidTransition.
func (s *lifecycleService) Transition(ctx context.Context, id uint, target models.ReservationStatus, actor models.Actor, actorID, reason string) (*models.Reservation, error) {
	if !ActorMayDrive(actor, target) {
		return nil, ErrInvalidTransition
	}

	now := s.clk.Now()
	var result *models.Reservation

	err := s.reservationRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reservation, err := s.reservationRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}

		if !CanTransition(reservation.Status, target) {
			return ErrInvalidTransition
		}
		if target == models.StatusCancelledByUser && !now.Before(reservation.StartAt()) {
			return ErrCancelAfterStart
		}

		updates := map[string]any{}
		switch target {
		case models.StatusConfirmed:
			updates["confirmed_at"] = now
		case models.StatusCancelledByUser, models.StatusCancelledByShop:
			updates["cancelled_at"] = now
			updates["cancellation_reason"] = reason
			updates["cancelled_by"] = actor
		}

		if err := s.applyTransition(ctx, tx, reservation, target, actor, actorID, reason, updates); err != nil {
			return err
		}

		if target.IsCancelled() {
			if err := s.refunds.Execute(ctx, tx, reservation, actor, now); err != nil {
				return err
			}
		}

		result = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Status.IsCancelled() {
		s.slotCache.Invalidate(ctx, result.ShopID, result.Date.Format("2006-01-02"))
	}
	s.dispatcher.Notify(ctx, eventFor(result.Status), result)
	return result, nil
}

// CheckIn records the customer's arrival on a confirmed reservation so the
// sweep will not mark it no_show.
func (s *lifecycleService) CheckIn(ctx context.Context, id uint) (*models.Reservation, error) {
	now := s.clk.Now()
	var result *models.Reservation

	err := s.reservationRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.reservationRepo.SetCheckedIn(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			if _, err := s.reservationRepo.FindByIDForUpdate(ctx, tx, id); errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result, err = s.reservationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.dispatcher.Notify(ctx, notifier.EventCheckedIn, result)
	return result, nil
}

// RunAutomaticSweep progresses every eligible reservation: auto-confirm
// inside the lead window, then no_show (which takes precedence) or
// completed. One sweep instance runs at a time across the deployment,
// guarded by its own advisory lock; a held lock makes this call a no-op.
// Each reservation is processed in a savepoint so one bad row is logged
// and skipped, not allowed to block the rest, and every individual
// transition is guarded by current status, so re-running the sweep neither
// re-applies transitions nor duplicates audit rows.
func (s *lifecycleService) RunAutomaticSweep(ctx context.Context) (SweepResult, error) {
	now := s.clk.Now()
	processed := 0
	var events []sweepEvent

	err := s.reservationRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acquired, err := s.locks.TryAcquireSweepLock(ctx, tx)
		if err != nil {
			return err
		}
		if !acquired {
			s.logger.Debug("sweep already running elsewhere, skipping")
			return nil
		}

		eligible, err := s.reservationRepo.FindSweepEligible(ctx, tx, now)
		if err != nil {
			return err
		}

		for i := range eligible {
			reservation := eligible[i]
			var event string
			txErr := tx.Transaction(func(inner *gorm.DB) error {
				var innerErr error
				event, innerErr = s.sweepOne(ctx, inner, &reservation, now)
				return innerErr
			})
			if txErr != nil {
				s.logger.Warn("sweep skipped reservation",
					zap.Uint("reservation_id", reservation.ID),
					zap.Error(txErr))
				continue
			}
			if event != "" {
				processed++
				events = append(events, sweepEvent{event: event, reservation: reservation})
			}
		}
		return nil
	})
	if err != nil {
		return SweepResult{}, err
	}

	for _, ev := range events {
		s.dispatcher.Notify(ctx, ev.event, &ev.reservation)
	}
	if processed > 0 {
		s.logger.Info("sweep finished", zap.Int("processed", processed))
	}
	return SweepResult{ProcessedCount: processed}, nil
}

type sweepEvent struct {
	event       string
	reservation models.Reservation
}

// sweepOne applies the automatic transitions for a single reservation and
// returns the notification event of its final transition, if any. It
// cascades within one pass (requested -> confirmed -> no_show) so repeated
// sweeps converge to the same final state.
func (s *lifecycleService) sweepOne(ctx context.Context, tx *gorm.DB, reservation *models.Reservation, now time.Time) (string, error) {
	event := ""

	if reservation.Status == models.StatusRequested {
		if s.cfg.AutoConfirmLead <= 0 || reservation.StartAt().Sub(now) > s.cfg.AutoConfirmLead {
			return "", nil
		}
		err := s.applyTransition(ctx, tx, reservation, models.StatusConfirmed,
			models.ActorSystem, "", "auto-confirmation within lead window",
			map[string]any{"confirmed_at": now})
		if err != nil {
			return "", err
		}
		event = notifier.EventConfirmed
	}

	if reservation.Status != models.StatusConfirmed {
		return event, nil
	}

	switch {
	case now.After(reservation.StartAt()) && reservation.CheckedInAt == nil:
		// No-show takes precedence over completion.
		err := s.applyTransition(ctx, tx, reservation, models.StatusNoShow,
			models.ActorSystem, "", "start time passed without check-in", nil)
		if err != nil {
			return "", err
		}
		event = notifier.EventNoShow

	case now.After(reservation.EndAt()):
		err := s.applyTransition(ctx, tx, reservation, models.StatusCompleted,
			models.ActorSystem, "", "end time passed", nil)
		if err != nil {
			return "", err
		}
		if err := s.ledger.Award(ctx, tx, reservation.CustomerID, s.cfg.CompletionBonus,
			reservation.ID, PointsKey(reservation.ID, PointsEventCompleted)); err != nil {
			return "", err
		}
		event = notifier.EventCompleted
	}

	return event, nil
}

// applyTransition performs the guarded status update and appends the audit
// row, mutating reservation on success. Zero affected rows means a
// concurrent transition won.
func (s *lifecycleService) applyTransition(ctx context.Context, tx *gorm.DB, reservation *models.Reservation, target models.ReservationStatus, actor models.Actor, actorID, reason string, updates map[string]any) error {
	rows, err := s.reservationRepo.UpdateStatusGuarded(ctx, tx, reservation.ID, reservation.Status, target, updates)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInvalidTransition
	}

	entry := &models.ReservationStatusLog{
		ReservationID:  reservation.ID,
		PreviousStatus: reservation.Status,
		NewStatus:      target,
		ChangedBy:      actor,
		ChangedByID:    actorID,
		Reason:         reason,
	}
	if err := s.reservationRepo.AppendStatusLog(ctx, tx, entry); err != nil {
		return err
	}

	reservation.Status = target
	return nil
}

func eventFor(status models.ReservationStatus) string {
	switch status {
	case models.StatusConfirmed:
		return notifier.EventConfirmed
	case models.StatusCompleted:
		return notifier.EventCompleted
	case models.StatusNoShow:
		return notifier.EventNoShow
	default:
		return notifier.EventCancelled
	}
}
