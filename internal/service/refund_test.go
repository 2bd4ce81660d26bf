package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bookwell/reservation-service/internal/models"
	"github.com/bookwell/reservation-service/pkg/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- fakes ---

type fakeRefundRepo struct {
	records []*models.RefundRecord
}

func (f *fakeRefundRepo) Create(ctx context.Context, tx *gorm.DB, record *models.RefundRecord) error {
	record.ID = uint(len(f.records) + 1)
	f.records = append(f.records, record)
	return nil
}

func (f *fakeRefundRepo) FindByReservation(ctx context.Context, tx *gorm.DB, reservationID uint) (*models.RefundRecord, error) {
	for _, r := range f.records {
		if r.ReservationID == reservationID {
			return r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRefundRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, id uint, refundedAmount float64, gatewayTxnID string) error {
	for _, r := range f.records {
		if r.ID == id {
			r.Status = models.RefundCompleted
			r.RefundedAmount = refundedAmount
			r.GatewayTxnID = gatewayTxnID
		}
	}
	return nil
}

type fakeGateway struct {
	err   error
	calls int
}

func (f *fakeGateway) Refund(ctx context.Context, paymentRef string, amount float64) (*payment.RefundResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &payment.RefundResult{TransactionID: "txn-1", Amount: amount}, nil
}

type ledgerEntry struct {
	userID string
	amount int
	key    string
}

type fakeLedger struct {
	entries []ledgerEntry
}

func (f *fakeLedger) Award(ctx context.Context, tx *gorm.DB, userID string, amount int, reservationID uint, key string) error {
	return f.record(userID, amount, key)
}

func (f *fakeLedger) Deduct(ctx context.Context, tx *gorm.DB, userID string, amount int, reservationID uint, key string) error {
	return f.record(userID, -amount, key)
}

func (f *fakeLedger) record(userID string, amount int, key string) error {
	for _, e := range f.entries {
		if e.key == key {
			return nil // idempotent no-op
		}
	}
	f.entries = append(f.entries, ledgerEntry{userID: userID, amount: amount, key: key})
	return nil
}

// --- helpers ---

func reservationAt(start time.Time, paid float64) *models.Reservation {
	date := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	minute := start.Hour()*60 + start.Minute()
	return &models.Reservation{
		ID:          1,
		CustomerID:  "cust-1",
		Date:        date,
		StartMinute: minute,
		EndMinute:   minute + 60,
		Status:      models.StatusConfirmed,
		TotalAmount: paid,
		PaidAmount:  paid,
		PaymentRef:  "pi_test",
	}
}

func newEngine(repo *fakeRefundRepo, gw *fakeGateway, ledger *fakeLedger) *RefundEngine {
	return NewRefundEngine(repo, gw, ledger, 24*time.Hour, 0.01, zap.NewNop())
}

// --- Evaluate ---

func TestEvaluate_CustomerBeforeCutoff(t *testing.T) {
	start := time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC)
	res := reservationAt(start, 100)
	engine := newEngine(&fakeRefundRepo{}, &fakeGateway{}, &fakeLedger{})

	// 24h + 1s before start: refundable.
	eval := engine.Evaluate(res, models.ActorCustomer, start.Add(-24*time.Hour-time.Second))
	assert.True(t, eval.Eligible)
	assert.Equal(t, 100.0, eval.Amount)
}

func TestEvaluate_CustomerInsideCutoff(t *testing.T) {
	start := time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC)
	res := reservationAt(start, 100)
	engine := newEngine(&fakeRefundRepo{}, &fakeGateway{}, &fakeLedger{})

	// 23h59m before start: not refundable.
	eval := engine.Evaluate(res, models.ActorCustomer, start.Add(-23*time.Hour-59*time.Minute))
	assert.False(t, eval.Eligible)
	assert.Equal(t, 0.0, eval.Amount)
}

func TestEvaluate_ShopAlwaysRefundable(t *testing.T) {
	start := time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC)
	res := reservationAt(start, 250)
	engine := newEngine(&fakeRefundRepo{}, &fakeGateway{}, &fakeLedger{})

	// One hour before start, the 24h customer rule does not apply.
	eval := engine.Evaluate(res, models.ActorShop, start.Add(-time.Hour))
	assert.True(t, eval.Eligible)
	assert.Equal(t, 250.0, eval.Amount)

	eval = engine.Evaluate(res, models.ActorSystem, start.Add(time.Hour))
	assert.True(t, eval.Eligible)
}

func TestEvaluate_AmountClampedToPaid(t *testing.T) {
	start := time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC)
	res := reservationAt(start, -50)
	engine := newEngine(&fakeRefundRepo{}, &fakeGateway{}, &fakeLedger{})

	eval := engine.Evaluate(res, models.ActorShop, start.Add(-48*time.Hour))
	assert.Equal(t, 0.0, eval.Amount)
}

// --- Execute ---

func TestExecute_CompletesRefundAndDeductsPoints(t *testing.T) {
	start := time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC)
	res := reservationAt(start, 300)
	repo := &fakeRefundRepo{}
	gw := &fakeGateway{}
	ledger := &fakeLedger{}
	engine := newEngine(repo, gw, ledger)

	err := engine.Execute(context.Background(), nil, res, models.ActorShop, start.Add(-time.Hour))
	require.NoError(t, err)

	require.Len(t, repo.records, 1)
	record := repo.records[0]
	assert.Equal(t, models.RefundCompleted, record.Status)
	assert.Equal(t, 300.0, record.RefundedAmount)
	assert.LessOrEqual(t, record.RefundedAmount, record.RequestedAmount)

	// Full refund deducts the full base award: floor(300 * 0.01) = 3.
	require.Len(t, ledger.entries, 1)
	assert.Equal(t, -3, ledger.entries[0].amount)
	assert.Equal(t, PointsKey(res.ID, PointsEventRefund), ledger.entries[0].key)
}

func TestExecute_IneligibleIsNoOp(t *testing.T) {
	start := time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC)
	res := reservationAt(start, 300)
	repo := &fakeRefundRepo{}
	gw := &fakeGateway{}
	engine := newEngine(repo, gw, &fakeLedger{})

	err := engine.Execute(context.Background(), nil, res, models.ActorCustomer, start.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, repo.records)
	assert.Zero(t, gw.calls)
}

func TestExecute_SecondRefundRejected(t *testing.T) {
	start := time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC)
	res := reservationAt(start, 300)
	repo := &fakeRefundRepo{}
	engine := newEngine(repo, &fakeGateway{}, &fakeLedger{})

	require.NoError(t, engine.Execute(context.Background(), nil, res, models.ActorShop, start.Add(-time.Hour)))
	err := engine.Execute(context.Background(), nil, res, models.ActorShop, start.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrRefundAlreadyProcessed)
}

func TestExecute_GatewayFailureSurfacesExternalError(t *testing.T) {
	start := time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC)
	res := reservationAt(start, 300)
	repo := &fakeRefundRepo{}
	ledger := &fakeLedger{}
	gw := &fakeGateway{err: errors.New("gateway down")}
	engine := newEngine(repo, gw, ledger)

	err := engine.Execute(context.Background(), nil, res, models.ActorShop, start.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrExternalService)
	// No deduction when the monetary refund failed; the caller rolls back
	// the pending record with the transaction.
	assert.Empty(t, ledger.entries)
}

// --- points math ---

func TestBasePoints(t *testing.T) {
	assert.Equal(t, 3, BasePoints(300, 0.01))
	assert.Equal(t, 0, BasePoints(99, 0.01))
	assert.Equal(t, 0, BasePoints(-10, 0.01))
	assert.Equal(t, 0, BasePoints(100, 0))
}

func TestRefundDeductionPoints_RoundsUp(t *testing.T) {
	// ceil(10 * 50/300) = ceil(1.67) = 2
	assert.Equal(t, 2, RefundDeductionPoints(10, 50, 300))
	// exact fraction stays exact
	assert.Equal(t, 5, RefundDeductionPoints(10, 150, 300))
	// full refund deducts everything, never more
	assert.Equal(t, 10, RefundDeductionPoints(10, 300, 300))
	assert.Equal(t, 0, RefundDeductionPoints(0, 300, 300))
	assert.Equal(t, 0, RefundDeductionPoints(10, 0, 300))
}
