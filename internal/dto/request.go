package dto

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type CreateReservationRequest struct {
	CustomerID string `json:"customer_id"`
	ServiceIDs []uint `json:"service_ids"`
	Date       string `json:"date"`       // "2006-01-02"
	StartTime  string `json:"start_time"` // "15:04"
	Notes      string `json:"notes"`
	PaymentRef string `json:"payment_ref"`
}

type TransitionRequest struct {
	Actor   string `json:"actor"`
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

// ParseDate parses an ISO date into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseHHMM converts "15:04" into minutes from midnight.
func ParseHHMM(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ParseServiceIDs splits a comma-separated query value into IDs.
func ParseServiceIDs(s string) ([]uint, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid service id %q", p)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
