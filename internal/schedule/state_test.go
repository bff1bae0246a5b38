package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to SlotStatus
		want     bool
	}{
		{SlotAvailable, SlotPending, true},
		{SlotPending, SlotBooked, true},
		{SlotPending, SlotAvailable, true},
		{SlotBooked, SlotCompleted, true},
		{SlotBooked, SlotCancelled, true},
		{SlotBooked, SlotRescheduled, true},
		{SlotAvailable, SlotCancelled, true},
		{SlotPending, SlotCancelled, true},

		{SlotAvailable, SlotCompleted, false},
		{SlotPending, SlotCompleted, false},
		{SlotBooked, SlotAvailable, false},
		{SlotBooked, SlotPending, false},
		{SlotCompleted, SlotAvailable, false},
		{SlotCancelled, SlotAvailable, false},
		{SlotCancelled, SlotBooked, false},
		{SlotRescheduled, SlotBooked, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
			if tt.want {
				assert.NoError(t, CheckTransition(tt.from, tt.to))
			} else {
				assert.ErrorIs(t, CheckTransition(tt.from, tt.to), ErrInvalidTransition)
			}
		})
	}
}
