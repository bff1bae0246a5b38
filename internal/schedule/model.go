package schedule

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable   SlotStatus = "available"
	SlotPending     SlotStatus = "pending"
	SlotBooked      SlotStatus = "booked"
	SlotCompleted   SlotStatus = "completed"
	SlotCancelled   SlotStatus = "cancelled"
	SlotRescheduled SlotStatus = "rescheduled"
)

// Derived schedule states used by list filters. Neither is stored.
const (
	StatusUpcoming  = "upcoming"
	StatusCompleted = "completed"
)

type Slot struct {
	ID           uuid.UUID  `json:"id"`
	Start        time.Time  `json:"start"`
	End          time.Time  `json:"end"`
	Status       SlotStatus `json:"status"`
	IsBreak      bool       `json:"is_break"`
	PendingSince *time.Time `json:"pending_since,omitempty"`
	HeldBy       *uuid.UUID `json:"-"`
}

// Schedule is one doctor's bookable window for one service on one date.
// Date is the calendar date at UTC midnight; Start and End are absolute instants.
type Schedule struct {
	ID              uuid.UUID  `json:"id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	ServiceID       uuid.UUID  `json:"service_id"`
	Date            time.Time  `json:"date"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	DurationMinutes int        `json:"duration_minutes"`
	IsCancelled     bool       `json:"is_cancelled"`
	CancelReason    *string    `json:"cancel_reason,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	Slots           []Slot     `json:"slots"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// FindSlot returns the slot with the given id, or nil.
func (s *Schedule) FindSlot(id uuid.UUID) *Slot {
	for i := range s.Slots {
		if s.Slots[i].ID == id {
			return &s.Slots[i]
		}
	}
	return nil
}

// DerivedStatus reports upcoming for today and later, completed before.
func (s *Schedule) DerivedStatus(today time.Time) string {
	if s.Date.Before(today) {
		return StatusCompleted
	}
	return StatusUpcoming
}

// SlotRef points at a single slot inside a schedule.
type SlotRef struct {
	ScheduleID   uuid.UUID
	SlotID       uuid.UUID
	PendingSince time.Time
}

// DateOf returns the calendar date of t in loc, expressed as UTC midnight.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
