package schedule

import "fmt"

// allowed lists every legal slot transition. completed, cancelled and
// rescheduled are terminal. available -> booked is only used when an already
// paid appointment is moved to a new slot.
var allowed = map[SlotStatus][]SlotStatus{
	SlotAvailable: {SlotPending, SlotBooked, SlotCancelled},
	SlotPending:   {SlotAvailable, SlotBooked, SlotCancelled},
	SlotBooked:    {SlotCompleted, SlotCancelled, SlotRescheduled},
}

func CanTransition(from, to SlotStatus) bool {
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

func CheckTransition(from, to SlotStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
