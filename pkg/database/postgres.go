package database

import (
	"log"

	"github.com/bookwell/reservation-service/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewPostgresDB(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Shop{},
		&models.ShopSchedule{},
		&models.Service{},
		&models.Reservation{},
		&models.ReservationItem{},
		&models.ReservationStatusLog{},
		&models.RefundRecord{},
		&models.PointsTransaction{},
	); err != nil {
		log.Fatalf("failed to auto-migrate: %v", err)
	}

	// Partial index: the sweep and the in-lock overlap recheck both scan
	// active reservations by shop/date/time. A unique constraint cannot
	// express "no time overlap" for configurable slot capacity, so the
	// advisory-lock recheck is the authoritative guard, not the schema.
	db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_reservations_active_span
		ON reservations (shop_id, date, start_minute, end_minute)
		WHERE status IN ('requested', 'confirmed')
	`)

	db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_reservations_sweep
		ON reservations (status, date, start_minute)
		WHERE status IN ('requested', 'confirmed')
	`)

	return db
}
