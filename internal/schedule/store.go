package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrScheduleConflict  = errors.New("schedule overlaps an existing schedule")
	ErrScheduleNotFound  = errors.New("schedule not found")
	ErrSlotNotFound      = errors.New("slot not found")
	ErrSlotStateConflict = errors.New("slot is not in the expected state")
	ErrInvalidTransition = errors.New("invalid slot transition")
	ErrScheduleInPast    = errors.New("schedule date is in the past")
	ErrScheduleCancelled = errors.New("schedule is cancelled")
)

type ListFilter struct {
	DoctorID  uuid.UUID
	ServiceID *uuid.UUID
	From      *time.Time // inclusive calendar date
	To        *time.Time // inclusive calendar date
	Status    string     // upcoming, completed or empty
	Today     time.Time
	Page      int
	Limit     int
}

// Store persists schedules with their slots. Slot writes are conditional on
// the current status so concurrent claimers cannot both win.
type Store interface {
	// FindOverlapping returns ErrScheduleNotFound when nothing overlaps.
	FindOverlapping(ctx context.Context, doctorID, serviceID uuid.UUID, date, start, end time.Time) (*Schedule, error)
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	List(ctx context.Context, f ListFilter) ([]Schedule, int, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) error

	// TransitionSlot moves a slot from -> to, returning ErrSlotStateConflict
	// when the slot is not currently in from. Moving to pending records heldBy
	// and at; moving to available clears them.
	TransitionSlot(ctx context.Context, scheduleID, slotID uuid.UUID, from, to SlotStatus, heldBy *uuid.UUID, at time.Time) (*Slot, error)
	// CloseOpenSlots cancels the available and pending slots of a schedule,
	// leaving booked ones alone.
	CloseOpenSlots(ctx context.Context, scheduleID uuid.UUID, at time.Time) (int, error)
	// CancelSlots moves every non-terminal slot of a schedule to cancelled.
	CancelSlots(ctx context.Context, scheduleID uuid.UUID, at time.Time) (int, error)
	FindExpiredPending(ctx context.Context, cutoff time.Time) ([]SlotRef, error)
	// ReleaseExpired returns a held slot to available only if it is still
	// pending and was held before cutoff.
	ReleaseExpired(ctx context.Context, scheduleID, slotID uuid.UUID, cutoff time.Time) (bool, error)
}
