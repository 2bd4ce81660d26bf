package main

import (
	"context"
	"log"
	"time"

	"github.com/bookwell/reservation-service/config"
	"github.com/bookwell/reservation-service/internal/handler"
	"github.com/bookwell/reservation-service/internal/middleware"
	"github.com/bookwell/reservation-service/internal/notifier"
	"github.com/bookwell/reservation-service/internal/repository"
	"github.com/bookwell/reservation-service/internal/service"
	"github.com/bookwell/reservation-service/pkg/cache"
	"github.com/bookwell/reservation-service/pkg/clock"
	"github.com/bookwell/reservation-service/pkg/database"
	"github.com/bookwell/reservation-service/pkg/logger"
	"github.com/bookwell/reservation-service/pkg/payment"
	"github.com/bookwell/reservation-service/pkg/rabbitmq"
	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	zlog := logger.New(cfg.IsProduction())
	defer zlog.Sync()

	db := database.NewPostgresDB(cfg.DSN())

	// RabbitMQ publisher: reservation lifecycle events for notification
	// delivery and analytics.
	publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL)
	if err != nil {
		zlog.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer publisher.Close()
	dispatcher := notifier.NewAMQPDispatcher(publisher, zlog)

	slotCache := cache.NewSlotCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 15*time.Second)

	// Repositories
	shopRepo := repository.NewShopRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	locks := repository.NewLockManager()

	// Collaborators
	gateway := payment.NewStripeGateway(cfg.StripeKey)
	ledger := service.NewPointsLedger()
	clk := clock.System()

	// Services
	slotSvc := service.NewSlotService(shopRepo, reservationRepo, slotCache, cfg.DefaultSlotCapacity, zlog)
	bookingSvc := service.NewBookingService(shopRepo, reservationRepo, locks, ledger, dispatcher, slotCache, service.BookingConfig{
		LockTimeout:     time.Duration(cfg.LockTimeoutMS) * time.Millisecond,
		DefaultCapacity: cfg.DefaultSlotCapacity,
		PointsEarnRate:  cfg.PointsEarnRate,
	}, zlog)
	refundEngine := service.NewRefundEngine(refundRepo, gateway, ledger,
		time.Duration(cfg.RefundCutoffHours)*time.Hour, cfg.PointsEarnRate, zlog)
	lifecycleSvc := service.NewLifecycleService(reservationRepo, locks, refundEngine, ledger, dispatcher, slotCache, clk, service.LifecycleConfig{
		AutoConfirmLead: time.Duration(cfg.AutoConfirmLeadMin) * time.Minute,
		CompletionBonus: cfg.CompletionBonusPoints,
	}, zlog)

	// Periodic sweep: timer-driven, exclusive across instances via its own
	// advisory lock, so every instance can run the ticker.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go runSweepLoop(sweepCtx, lifecycleSvc, time.Duration(cfg.SweepIntervalSec)*time.Second, zlog)

	// Echo
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			zlog.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status))
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok", "service": "reservation-service"})
	})

	handler.NewReservationHandler(slotSvc, bookingSvc, lifecycleSvc).RegisterRoutes(e)

	zlog.Info("reservation service starting", zap.String("port", cfg.ServerPort))
	log.Fatal(e.Start(":" + cfg.ServerPort))
}

func runSweepLoop(ctx context.Context, lifecycle service.LifecycleService, interval time.Duration, zlog *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := lifecycle.RunAutomaticSweep(ctx); err != nil {
				zlog.Error("automatic sweep failed", zap.Error(err))
			}
		}
	}
}
