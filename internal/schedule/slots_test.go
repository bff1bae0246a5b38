package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2030, 1, 15, hour, minute, 0, 0, time.UTC)
}

func TestGenerateSlots_NineToTenByTwenty(t *testing.T) {
	slots, err := GenerateSlots(at(9, 0), at(10, 0), 20)
	require.NoError(t, err)
	require.Len(t, slots, 3)

	want := [][2]time.Time{
		{at(9, 0), at(9, 20)},
		{at(9, 20), at(9, 40)},
		{at(9, 40), at(10, 0)},
	}
	for i, sl := range slots {
		assert.Equal(t, want[i][0], sl.Start)
		assert.Equal(t, want[i][1], sl.End)
		assert.Equal(t, SlotAvailable, sl.Status)
		assert.False(t, sl.IsBreak)
	}
}

func TestGenerateSlots_Properties(t *testing.T) {
	cases := []struct {
		start, end time.Time
		duration   int
	}{
		{at(9, 0), at(17, 0), 30},
		{at(9, 0), at(9, 50), 15},
		{at(8, 15), at(12, 0), 45},
		{at(0, 0), at(23, 59), 7},
		{at(10, 0), at(10, 1), 1},
	}

	for _, tc := range cases {
		slots, err := GenerateSlots(tc.start, tc.end, tc.duration)
		require.NoError(t, err)
		require.NotEmpty(t, slots)

		step := time.Duration(tc.duration) * time.Minute
		assert.Equal(t, tc.start, slots[0].Start)
		assert.False(t, slots[len(slots)-1].End.After(tc.end))
		// nothing that fits was dropped
		assert.True(t, slots[len(slots)-1].End.Add(step).After(tc.end))

		seen := map[string]bool{}
		for i, sl := range slots {
			assert.Equal(t, step, sl.End.Sub(sl.Start))
			if i > 0 {
				assert.Equal(t, slots[i-1].End, sl.Start)
			}
			assert.False(t, seen[sl.ID.String()], "slot ids must be unique")
			seen[sl.ID.String()] = true
		}
	}
}

func TestGenerateSlots_WindowShorterThanDuration(t *testing.T) {
	slots, err := GenerateSlots(at(9, 0), at(9, 10), 20)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGenerateSlots_InvalidInput(t *testing.T) {
	_, err := GenerateSlots(at(10, 0), at(9, 0), 20)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = GenerateSlots(at(9, 0), at(9, 0), 20)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = GenerateSlots(at(9, 0), at(10, 0), 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestOverlaps(t *testing.T) {
	assert.True(t, Overlaps(at(9, 0), at(10, 0), at(9, 30), at(10, 30)))
	assert.True(t, Overlaps(at(9, 0), at(12, 0), at(10, 0), at(11, 0)))
	assert.False(t, Overlaps(at(9, 0), at(10, 0), at(10, 0), at(11, 0)), "adjacent windows do not overlap")
	assert.False(t, Overlaps(at(11, 0), at(12, 0), at(9, 0), at(10, 0)))
}

func TestValidateSlotLayout(t *testing.T) {
	good := []Slot{
		{Start: at(9, 0), End: at(9, 30)},
		{Start: at(9, 30), End: at(9, 45), IsBreak: true},
		{Start: at(9, 45), End: at(10, 15)},
	}
	require.NoError(t, validateSlotLayout(good, at(9, 0), at(10, 15), 30))

	gap := []Slot{
		{Start: at(9, 0), End: at(9, 30)},
		{Start: at(9, 40), End: at(10, 10)},
	}
	assert.ErrorIs(t, validateSlotLayout(gap, at(9, 0), at(10, 15), 30), ErrInvalidInput)

	wrongLength := []Slot{{Start: at(9, 0), End: at(9, 20)}}
	assert.ErrorIs(t, validateSlotLayout(wrongLength, at(9, 0), at(10, 0), 30), ErrInvalidInput)

	outside := []Slot{{Start: at(9, 0), End: at(9, 30)}, {Start: at(9, 30), End: at(10, 0)}}
	assert.ErrorIs(t, validateSlotLayout(outside, at(9, 0), at(9, 45), 30), ErrInvalidInput)

	lateStart := []Slot{{Start: at(9, 30), End: at(10, 0)}}
	assert.ErrorIs(t, validateSlotLayout(lateStart, at(9, 0), at(10, 0), 30), ErrInvalidInput)
}

func TestDateOf(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 20:00 UTC is already the next day in Kolkata
	instant := time.Date(2030, 1, 15, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2030, 1, 16, 0, 0, 0, 0, time.UTC), DateOf(instant, kolkata))
	assert.Equal(t, time.Date(2030, 1, 15, 0, 0, 0, 0, time.UTC), DateOf(instant, time.UTC))
}
