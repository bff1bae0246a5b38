package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateSlots cuts [start, end) into consecutive slots of durationMinutes.
// Trailing time shorter than a slot is dropped, so a window shorter than one
// slot yields an empty result.
func GenerateSlots(start, end time.Time, durationMinutes int) ([]Slot, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end time must be after start time", ErrInvalidInput)
	}
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: slot duration must be positive", ErrInvalidInput)
	}

	step := time.Duration(durationMinutes) * time.Minute
	slots := make([]Slot, 0, int(end.Sub(start)/step))
	for cursor := start; !cursor.Add(step).After(end); cursor = cursor.Add(step) {
		slots = append(slots, Slot{
			ID:     uuid.New(),
			Start:  cursor,
			End:    cursor.Add(step),
			Status: SlotAvailable,
		})
	}
	return slots, nil
}

// Overlaps reports whether [s1, e1) and [s2, e2) intersect. Touching windows do not.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// validateSlotLayout checks client supplied slots: contiguous from start to
// end, each exactly one duration long unless it is a break.
func validateSlotLayout(slots []Slot, start, end time.Time, durationMinutes int) error {
	if len(slots) == 0 {
		return fmt.Errorf("%w: at least one slot is required", ErrInvalidInput)
	}

	step := time.Duration(durationMinutes) * time.Minute
	if !slots[0].Start.Equal(start) {
		return fmt.Errorf("%w: first slot must start at the window start", ErrInvalidInput)
	}
	for i, sl := range slots {
		if !sl.End.After(sl.Start) {
			return fmt.Errorf("%w: slot %d ends before it starts", ErrInvalidInput, i)
		}
		if !sl.IsBreak && sl.End.Sub(sl.Start) != step {
			return fmt.Errorf("%w: slot %d must be %d minutes", ErrInvalidInput, i, durationMinutes)
		}
		if sl.End.After(end) {
			return fmt.Errorf("%w: slot %d exceeds the window", ErrInvalidInput, i)
		}
		if i > 0 && !slots[i-1].End.Equal(sl.Start) {
			return fmt.Errorf("%w: slot %d is not contiguous with the previous slot", ErrInvalidInput, i)
		}
	}
	return nil
}
