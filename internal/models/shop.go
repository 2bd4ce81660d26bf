package models

import "time"

// Shop holds the scheduling-relevant slice of a shop profile. Profile CRUD
// lives in another service; this one only reads capacity and schedules.
type Shop struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	// SlotCapacity is the number of reservations a shop can serve in the
	// same time span. Zero means "use the configured default".
	SlotCapacity int       `gorm:"not null;default:0" json:"slot_capacity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ShopSchedule is one weekday's operating window. All minute fields count
// from midnight. BreakStart/BreakEnd of zero means no break that day.
type ShopSchedule struct {
	ID              uint `gorm:"primaryKey" json:"id"`
	ShopID          uint `gorm:"not null;uniqueIndex:idx_schedule_shop_weekday" json:"shop_id"`
	Weekday         int  `gorm:"not null;uniqueIndex:idx_schedule_shop_weekday" json:"weekday"` // time.Weekday, 0 = Sunday
	OpenMinute      int  `gorm:"not null" json:"open_minute"`
	CloseMinute     int  `gorm:"not null" json:"close_minute"`
	BreakStartMin   int  `json:"break_start_min"`
	BreakEndMin     int  `json:"break_end_min"`
	SlotGranularity int  `gorm:"not null;default:30" json:"slot_granularity"` // minutes
}

// HasBreak reports whether the schedule defines a mid-day break window.
func (s *ShopSchedule) HasBreak() bool {
	return s.BreakEndMin > s.BreakStartMin
}

// Service is a bookable service offering. Buffer is cleanup/turnaround time
// appended after the service itself.
type Service struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ShopID      uint      `gorm:"not null;index" json:"shop_id"`
	Name        string    `gorm:"not null" json:"name"`
	Price       float64   `gorm:"not null" json:"price"`
	DurationMin int       `gorm:"not null" json:"duration_min"`
	BufferMin   int       `gorm:"not null;default:0" json:"buffer_min"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
