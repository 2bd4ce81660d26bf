//go:build integration

package integration

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/bookwell/reservation-service/internal/models"
	"github.com/bookwell/reservation-service/internal/notifier"
	"github.com/bookwell/reservation-service/internal/repository"
	"github.com/bookwell/reservation-service/internal/service"
	"github.com/bookwell/reservation-service/pkg/clock"
	"github.com/bookwell/reservation-service/pkg/payment"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDB *gorm.DB

var allTables = []string{
	"points_transactions",
	"refund_records",
	"reservation_status_logs",
	"reservation_items",
	"reservations",
	"services",
	"shop_schedules",
	"shops",
}

func TestMain(m *testing.M) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("TEST_DB_HOST", "localhost"),
		getEnv("TEST_DB_PORT", "5434"),
		getEnv("TEST_DB_USER", "postgres"),
		getEnv("TEST_DB_PASSWORD", "postgres"),
		getEnv("TEST_DB_NAME", "reservation_test_db"),
	)

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to test database: %v", err)
	}

	dropTables()

	if err := testDB.AutoMigrate(
		&models.Shop{},
		&models.ShopSchedule{},
		&models.Service{},
		&models.Reservation{},
		&models.ReservationItem{},
		&models.ReservationStatusLog{},
		&models.RefundRecord{},
		&models.PointsTransaction{},
	); err != nil {
		log.Fatalf("failed to auto-migrate test database: %v", err)
	}

	code := m.Run()

	dropTables()
	os.Exit(code)
}

func dropTables() {
	for _, table := range allTables {
		testDB.Exec("DROP TABLE IF EXISTS " + table)
	}
}

func cleanTables() {
	for _, table := range allTables {
		testDB.Exec("DELETE FROM " + table)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --- fixtures ---

var shopIDCounter uint = 0

// createTestShop inserts a shop open 09:00-18:00 on the weekday of date,
// with a 60-minute service priced at 100. Returns shop and service.
func createTestShop(t *testing.T, date time.Time, capacity int) (*models.Shop, *models.Service) {
	t.Helper()
	shopIDCounter++
	shop := &models.Shop{
		ID:           shopIDCounter,
		Name:         fmt.Sprintf("Test Shop %d", shopIDCounter),
		SlotCapacity: capacity,
	}
	require.NoError(t, testDB.Create(shop).Error)

	schedule := &models.ShopSchedule{
		ShopID:          shop.ID,
		Weekday:         int(date.Weekday()),
		OpenMinute:      540,  // 09:00
		CloseMinute:     1080, // 18:00
		SlotGranularity: 30,
	}
	require.NoError(t, testDB.Create(schedule).Error)

	svc := &models.Service{
		ShopID:      shop.ID,
		Name:        "Haircut",
		Price:       100,
		DurationMin: 60,
	}
	require.NoError(t, testDB.Create(svc).Error)
	return shop, svc
}

// --- collaborator fakes ---

type fakeGateway struct {
	err   error
	calls int
}

func (f *fakeGateway) Refund(ctx context.Context, paymentRef string, amount float64) (*payment.RefundResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &payment.RefundResult{TransactionID: "txn-test", Amount: amount}, nil
}

// --- wiring ---

type testEnv struct {
	clock     *clock.Manual
	gateway   *fakeGateway
	slots     service.SlotService
	booking   service.BookingService
	lifecycle service.LifecycleService
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	clk := clock.NewManual(now)
	gw := &fakeGateway{}
	zlog := zap.NewNop()

	shopRepo := repository.NewShopRepository(testDB)
	reservationRepo := repository.NewReservationRepository(testDB)
	refundRepo := repository.NewRefundRepository(testDB)
	locks := repository.NewLockManager()
	ledger := service.NewPointsLedger()
	dispatcher := notifier.Noop{}

	slotSvc := service.NewSlotService(shopRepo, reservationRepo, nil, 1, zlog)
	bookingSvc := service.NewBookingService(shopRepo, reservationRepo, locks, ledger, dispatcher, nil, service.BookingConfig{
		LockTimeout:     2 * time.Second,
		DefaultCapacity: 1,
		PointsEarnRate:  0.01,
	}, zlog)
	refundEngine := service.NewRefundEngine(refundRepo, gw, ledger, 24*time.Hour, 0.01, zlog)
	lifecycleSvc := service.NewLifecycleService(reservationRepo, locks, refundEngine, ledger, dispatcher, nil, clk, service.LifecycleConfig{
		AutoConfirmLead: time.Hour,
		CompletionBonus: 50,
	}, zlog)

	return &testEnv{
		clock:     clk,
		gateway:   gw,
		slots:     slotSvc,
		booking:   bookingSvc,
		lifecycle: lifecycleSvc,
	}
}
