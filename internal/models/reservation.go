package models

import "time"

type ReservationStatus string

const (
	StatusRequested       ReservationStatus = "requested"
	StatusConfirmed       ReservationStatus = "confirmed"
	StatusCompleted       ReservationStatus = "completed"
	StatusCancelledByUser ReservationStatus = "cancelled_by_user"
	StatusCancelledByShop ReservationStatus = "cancelled_by_shop"
	StatusNoShow          ReservationStatus = "no_show"
)

// Actor identifies who drives a lifecycle transition.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorShop     Actor = "shop"
	ActorSystem   Actor = "system"
)

// IsCancelled reports whether s is one of the two cancellation statuses.
func (s ReservationStatus) IsCancelled() bool {
	return s == StatusCancelledByUser || s == StatusCancelledByShop
}

// IsActive reports whether the reservation still occupies its slot.
func (s ReservationStatus) IsActive() bool {
	return s == StatusRequested || s == StatusConfirmed
}

// Reservation is the bookable unit: one customer, one shop, one contiguous
// time span on a given date covering one or more services. Times are stored
// as minutes from midnight; the date carries no time-of-day component.
// Reservations are never deleted, only moved through statuses.
type Reservation struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	ShopID             uint              `gorm:"not null;index:idx_reservations_shop_date" json:"shop_id"`
	CustomerID         string            `gorm:"not null;index" json:"customer_id"`
	Date               time.Time         `gorm:"type:date;not null;index:idx_reservations_shop_date" json:"date"`
	StartMinute        int               `gorm:"not null" json:"start_minute"`
	EndMinute          int               `gorm:"not null" json:"end_minute"`
	Status             ReservationStatus `gorm:"type:varchar(20);not null;default:'requested';index:idx_reservations_status_date" json:"status"`
	TotalAmount        float64           `gorm:"not null" json:"total_amount"`
	PaidAmount         float64           `gorm:"not null" json:"paid_amount"`
	PaymentRef         string            `json:"payment_ref,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	CheckedInAt        *time.Time        `json:"checked_in_at,omitempty"`
	ConfirmedAt        *time.Time        `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
	CancelledBy        Actor             `gorm:"type:varchar(10)" json:"cancelled_by,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`

	Items []ReservationItem `gorm:"foreignKey:ReservationID" json:"items,omitempty"`
}

// ReservationItem is one booked service line within a reservation. Duration
// and buffer are copied from the service at booking time so later catalogue
// edits do not rewrite history.
type ReservationItem struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	ReservationID uint    `gorm:"not null;index" json:"reservation_id"`
	ServiceID     uint    `gorm:"not null" json:"service_id"`
	Price         float64 `gorm:"not null" json:"price"`
	DurationMin   int     `gorm:"not null" json:"duration_min"`
	BufferMin     int     `gorm:"not null" json:"buffer_min"`
}

// ReservationStatusLog is the append-only lifecycle audit trail. Rows are
// written in the same transaction as the status change and never mutated.
type ReservationStatusLog struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	ReservationID  uint              `gorm:"not null;index" json:"reservation_id"`
	PreviousStatus ReservationStatus `gorm:"type:varchar(20);not null" json:"previous_status"`
	NewStatus      ReservationStatus `gorm:"type:varchar(20);not null" json:"new_status"`
	ChangedBy      Actor             `gorm:"type:varchar(10);not null" json:"changed_by"`
	ChangedByID    string            `json:"changed_by_id,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// StartAt returns the absolute start instant in UTC.
func (r *Reservation) StartAt() time.Time {
	return atMinute(r.Date, r.StartMinute)
}

// EndAt returns the absolute end instant in UTC.
func (r *Reservation) EndAt() time.Time {
	return atMinute(r.Date, r.EndMinute)
}

func atMinute(date time.Time, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC).
		Add(time.Duration(minute) * time.Minute)
}
