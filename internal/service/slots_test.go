package service

import (
	"testing"

	"github.com/bookwell/reservation-service/internal/models"
	"github.com/stretchr/testify/assert"
)

func schedule(open, close, gran int) *models.ShopSchedule {
	return &models.ShopSchedule{OpenMinute: open, CloseMinute: close, SlotGranularity: gran}
}

func svc(duration, buffer int) models.Service {
	return models.Service{DurationMin: duration, BufferMin: buffer}
}

func active(start, end int) models.Reservation {
	return models.Reservation{StartMinute: start, EndMinute: end, Status: models.StatusConfirmed}
}

func TestBuildSlots_CoversOpenWindow(t *testing.T) {
	// 09:00-18:00, 60-minute service, 30-minute granularity.
	slots := BuildSlots(schedule(540, 1080, 30), []models.Service{svc(60, 0)}, nil, 1)

	assert.Len(t, slots, 17) // 09:00 .. 17:00 inclusive
	assert.Equal(t, 540, slots[0].StartMinute)
	assert.Equal(t, 1020, slots[len(slots)-1].StartMinute)
	for _, s := range slots {
		assert.True(t, s.Available)
	}
}

func TestBuildSlots_MarksOverlapsUnavailable(t *testing.T) {
	// Existing booking 10:00-11:00.
	existing := []models.Reservation{active(600, 660)}
	slots := BuildSlots(schedule(540, 1080, 30), []models.Service{svc(60, 0)}, existing, 1)

	byStart := map[int]bool{}
	for _, s := range slots {
		byStart[s.StartMinute] = s.Available
	}

	assert.True(t, byStart[540])   // 09:00-10:00 touches but does not overlap
	assert.False(t, byStart[570])  // 09:30-10:30 overlaps
	assert.False(t, byStart[600])  // 10:00-11:00 exact
	assert.False(t, byStart[630])  // 10:30-11:30 overlaps
	assert.True(t, byStart[660])   // 11:00-12:00 free
}

func TestBuildSlots_SkipsBreakWindow(t *testing.T) {
	sched := schedule(540, 1080, 30)
	sched.BreakStartMin = 720 // 12:00
	sched.BreakEndMin = 780   // 13:00

	slots := BuildSlots(sched, []models.Service{svc(60, 0)}, nil, 1)

	for _, s := range slots {
		end := s.StartMinute + 60
		overlapsBreak := s.StartMinute < 780 && end > 720
		assert.False(t, overlapsBreak, "slot at %d crosses the break", s.StartMinute)
	}
}

func TestBuildSlots_MultiServiceSpanIncludesBuffers(t *testing.T) {
	// 60+10 and 30+0 -> 100-minute span; last fit before 18:00 is 16:20,
	// and with 30-minute steps the last emitted candidate is 16:00.
	services := []models.Service{svc(60, 10), svc(30, 0)}
	assert.Equal(t, 100, TotalSpanMinutes(services))

	slots := BuildSlots(schedule(540, 1080, 30), services, nil, 1)
	last := slots[len(slots)-1]
	assert.Equal(t, 960, last.StartMinute)
}

func TestBuildSlots_CapacityAboveOne(t *testing.T) {
	existing := []models.Reservation{active(600, 660)}
	slots := BuildSlots(schedule(540, 1080, 30), []models.Service{svc(60, 0)}, existing, 2)

	for _, s := range slots {
		if s.StartMinute == 600 {
			assert.True(t, s.Available, "capacity 2 leaves room at 10:00")
		}
	}

	both := []models.Reservation{active(600, 660), active(600, 660)}
	slots = BuildSlots(schedule(540, 1080, 30), []models.Service{svc(60, 0)}, both, 2)
	for _, s := range slots {
		if s.StartMinute == 600 {
			assert.False(t, s.Available)
		}
	}
}

func TestBuildSlots_EmptyForZeroSpan(t *testing.T) {
	assert.Empty(t, BuildSlots(schedule(540, 1080, 30), nil, nil, 1))
}
