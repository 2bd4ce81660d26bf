package dto

import (
	"fmt"
	"time"

	"github.com/bookwell/reservation-service/internal/models"
	"github.com/bookwell/reservation-service/internal/service"
)

type SlotResponse struct {
	StartTime string `json:"start_time"`
	Available bool   `json:"available"`
}

type ReservationItemResponse struct {
	ServiceID   uint    `json:"service_id"`
	Price       float64 `json:"price"`
	DurationMin int     `json:"duration_min"`
	BufferMin   int     `json:"buffer_min"`
}

type ReservationResponse struct {
	ID                 uint                      `json:"id"`
	ShopID             uint                      `json:"shop_id"`
	CustomerID         string                    `json:"customer_id"`
	Date               string                    `json:"date"`
	StartTime          string                    `json:"start_time"`
	EndTime            string                    `json:"end_time"`
	Status             models.ReservationStatus  `json:"status"`
	TotalAmount        float64                   `json:"total_amount"`
	PaidAmount         float64                   `json:"paid_amount"`
	Notes              string                    `json:"notes,omitempty"`
	CheckedInAt        *time.Time                `json:"checked_in_at,omitempty"`
	ConfirmedAt        *time.Time                `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time                `json:"cancelled_at,omitempty"`
	CancellationReason string                    `json:"cancellation_reason,omitempty"`
	CancelledBy        models.Actor              `json:"cancelled_by,omitempty"`
	Items              []ReservationItemResponse `json:"items,omitempty"`
	CreatedAt          time.Time                 `json:"created_at"`
}

type SweepResponse struct {
	ProcessedCount int `json:"processed_count"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func ToSlotResponse(slots []service.Slot) []SlotResponse {
	resp := make([]SlotResponse, len(slots))
	for i, s := range slots {
		resp[i] = SlotResponse{
			StartTime: MinuteToHHMM(s.StartMinute),
			Available: s.Available,
		}
	}
	return resp
}

func ToReservationResponse(r *models.Reservation) ReservationResponse {
	items := make([]ReservationItemResponse, len(r.Items))
	for i, it := range r.Items {
		items[i] = ReservationItemResponse{
			ServiceID:   it.ServiceID,
			Price:       it.Price,
			DurationMin: it.DurationMin,
			BufferMin:   it.BufferMin,
		}
	}
	return ReservationResponse{
		ID:                 r.ID,
		ShopID:             r.ShopID,
		CustomerID:         r.CustomerID,
		Date:               r.Date.Format("2006-01-02"),
		StartTime:          MinuteToHHMM(r.StartMinute),
		EndTime:            MinuteToHHMM(r.EndMinute),
		Status:             r.Status,
		TotalAmount:        r.TotalAmount,
		PaidAmount:         r.PaidAmount,
		Notes:              r.Notes,
		CheckedInAt:        r.CheckedInAt,
		ConfirmedAt:        r.ConfirmedAt,
		CancelledAt:        r.CancelledAt,
		CancellationReason: r.CancellationReason,
		CancelledBy:        r.CancelledBy,
		Items:              items,
		CreatedAt:          r.CreatedAt,
	}
}

// MinuteToHHMM renders a minutes-from-midnight offset as "15:04".
func MinuteToHHMM(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
