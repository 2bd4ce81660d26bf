package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bookwell/reservation-service/internal/models"
	"github.com/bookwell/reservation-service/internal/repository"
	"github.com/bookwell/reservation-service/pkg/payment"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RefundEvaluation is the policy verdict for one cancellation.
type RefundEvaluation struct {
	Eligible bool
	Amount   float64
}

// RefundEngine decides refund eligibility for cancellations and executes
// qualifying refunds: monetary refund through the payment gateway first,
// points deduction after, both inside the caller's transaction so the
// reservation status, refund record, and ledger row commit or roll back
// together.
type RefundEngine struct {
	refundRepo repository.RefundRepository
	gateway    payment.Gateway
	ledger     PointsLedger
	cutoff     time.Duration
	earnRate   float64
	logger     *zap.Logger
}

func NewRefundEngine(
	refundRepo repository.RefundRepository,
	gateway payment.Gateway,
	ledger PointsLedger,
	cutoff time.Duration,
	earnRate float64,
	logger *zap.Logger,
) *RefundEngine {
	return &RefundEngine{
		refundRepo: refundRepo,
		gateway:    gateway,
		ledger:     ledger,
		cutoff:     cutoff,
		earnRate:   earnRate,
		logger:     logger,
	}
}

// Evaluate applies the refund policy: customer cancellations are fully
// refundable only when more than the cutoff remains before start;
// shop- and system-initiated cancellations are always fully refundable.
// The amount is clamped to [0, paid] unconditionally — that clamp is an
// invariant, not policy.
func (e *RefundEngine) Evaluate(reservation *models.Reservation, cancelledBy models.Actor, at time.Time) RefundEvaluation {
	eligible := true
	if cancelledBy == models.ActorCustomer {
		eligible = reservation.StartAt().Sub(at) > e.cutoff
	}

	amount := reservation.PaidAmount
	if amount < 0 {
		amount = 0
	}
	if !eligible {
		amount = 0
	}
	return RefundEvaluation{Eligible: eligible, Amount: amount}
}

// Execute runs the refund for a cancellation inside tx. Not-eligible and
// zero-paid cancellations are a no-op. A gateway failure aborts the whole
// transaction (no completed record, no points deduction) and surfaces
// ErrExternalService for retry.
func (e *RefundEngine) Execute(ctx context.Context, tx *gorm.DB, reservation *models.Reservation, cancelledBy models.Actor, at time.Time) error {
	eval := e.Evaluate(reservation, cancelledBy, at)
	if !eval.Eligible || eval.Amount <= 0 {
		return nil
	}
	if eval.Amount > reservation.PaidAmount {
		return fmt.Errorf("%w: %0.2f > %0.2f", ErrRefundExceedsPaid, eval.Amount, reservation.PaidAmount)
	}

	if _, err := e.refundRepo.FindByReservation(ctx, tx, reservation.ID); err == nil {
		return ErrRefundAlreadyProcessed
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	record := &models.RefundRecord{
		ReservationID:   reservation.ID,
		RequestedAmount: eval.Amount,
		Status:          models.RefundPending,
	}
	if err := e.refundRepo.Create(ctx, tx, record); err != nil {
		return err
	}

	result, err := e.gateway.Refund(ctx, reservation.PaymentRef, eval.Amount)
	if err != nil {
		e.logger.Error("payment gateway refund failed",
			zap.Uint("reservation_id", reservation.ID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	refunded := result.Amount
	if refunded > eval.Amount {
		refunded = eval.Amount
	}

	deduction := RefundDeductionPoints(
		BasePoints(reservation.PaidAmount, e.earnRate),
		refunded,
		reservation.PaidAmount,
	)
	if err := e.ledger.Deduct(ctx, tx, reservation.CustomerID, deduction, reservation.ID,
		PointsKey(reservation.ID, PointsEventRefund)); err != nil {
		return err
	}

	return e.refundRepo.MarkCompleted(ctx, tx, record.ID, refunded, result.TransactionID)
}

// RefundDeductionPoints deducts the refunded fraction of the base award,
// rounded up so the platform never under-deducts.
func RefundDeductionPoints(basePoints int, refunded, paid float64) int {
	if basePoints <= 0 || refunded <= 0 || paid <= 0 {
		return 0
	}
	d := int(math.Ceil(float64(basePoints) * refunded / paid))
	if d > basePoints {
		d = basePoints
	}
	return d
}
