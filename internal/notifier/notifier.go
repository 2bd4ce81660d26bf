package notifier

import (
	"context"
	"time"

	"github.com/bookwell/reservation-service/internal/models"
	"github.com/bookwell/reservation-service/pkg/rabbitmq"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reservation lifecycle events, used as routing keys on the reservations
// exchange.
const (
	EventCreated   = "reservation.created"
	EventConfirmed = "reservation.confirmed"
	EventCancelled = "reservation.cancelled"
	EventCompleted = "reservation.completed"
	EventNoShow    = "reservation.no_show"
	EventCheckedIn = "reservation.checked_in"
)

// Dispatcher delivers reservation events to downstream consumers.
// Delivery is fire-and-forget: a failure is logged and swallowed, never
// surfaced into the transaction that produced the event.
type Dispatcher interface {
	Notify(ctx context.Context, event string, reservation *models.Reservation)
}

type reservationEvent struct {
	EventID       string                   `json:"event_id"`
	Event         string                   `json:"event"`
	ReservationID uint                     `json:"reservation_id"`
	ShopID        uint                     `json:"shop_id"`
	CustomerID    string                   `json:"customer_id"`
	Status        models.ReservationStatus `json:"status"`
	Date          string                   `json:"date"`
	StartMinute   int                      `json:"start_minute"`
	OccurredAt    time.Time                `json:"occurred_at"`
}

type amqpDispatcher struct {
	publisher *rabbitmq.Publisher
	logger    *zap.Logger
}

func NewAMQPDispatcher(publisher *rabbitmq.Publisher, logger *zap.Logger) Dispatcher {
	return &amqpDispatcher{publisher: publisher, logger: logger}
}

func (d *amqpDispatcher) Notify(ctx context.Context, event string, reservation *models.Reservation) {
	payload := reservationEvent{
		EventID:       uuid.New().String(),
		Event:         event,
		ReservationID: reservation.ID,
		ShopID:        reservation.ShopID,
		CustomerID:    reservation.CustomerID,
		Status:        reservation.Status,
		Date:          reservation.Date.Format("2006-01-02"),
		StartMinute:   reservation.StartMinute,
		OccurredAt:    time.Now().UTC(),
	}

	if err := d.publisher.Publish(ctx, event, payload); err != nil {
		d.logger.Warn("notification publish failed",
			zap.String("event", event),
			zap.Uint("reservation_id", reservation.ID),
			zap.Error(err))
	}
}

// Noop discards events; used when messaging is disabled and in tests.
type Noop struct{}

func (Noop) Notify(context.Context, string, *models.Reservation) {}
