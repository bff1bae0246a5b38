package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/telehealth-booking/internal/schedule"
)

type releaserFunc func(ctx context.Context, expiration time.Duration) (int, error)

func (f releaserFunc) ReleaseExpiredPendingSlots(ctx context.Context, expiration time.Duration) (int, error) {
	return f(ctx, expiration)
}

func TestSweeper_RunOnceReleasesUnderLock(t *testing.T) {
	h := newHarness(t)
	sched := h.addSchedule(t, 15)
	_, err := h.svc.InitiateBooking(context.Background(), uuid.New(), sched.ID, sched.Slots[0].ID)
	require.NoError(t, err)
	h.now = h.now.Add(11 * time.Minute)

	w := NewSweeper(h.svc, h.locker, time.Minute, time.Second, 10*time.Minute, zerolog.Nop())
	released, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, released)
	assert.Equal(t, []string{"sweeper"}, h.locker.used)
	assert.Equal(t, schedule.SlotAvailable, h.slot(t, sched.ID, sched.Slots[0].ID).Status)
}

func TestSweeper_SkipsWhenAnotherReplicaHoldsLock(t *testing.T) {
	locker := &lockerFake{busy: map[string]bool{"sweeper": true}}
	called := false
	w := NewSweeper(releaserFunc(func(context.Context, time.Duration) (int, error) {
		called = true
		return 0, nil
	}), locker, time.Minute, time.Second, 5*time.Minute, zerolog.Nop())

	released, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, released)
	assert.False(t, called)
}

func TestSweeper_PassesExpirationAndErrors(t *testing.T) {
	boom := errors.New("db down")
	var got time.Duration
	w := NewSweeper(releaserFunc(func(_ context.Context, expiration time.Duration) (int, error) {
		got = expiration
		return 0, boom
	}), &lockerFake{busy: map[string]bool{}}, time.Minute, time.Second, 5*time.Minute, zerolog.Nop())

	_, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 5*time.Minute, got)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	runs := make(chan struct{}, 10)
	w := NewSweeper(releaserFunc(func(context.Context, time.Duration) (int, error) {
		runs <- struct{}{}
		return 0, nil
	}), &lockerFake{busy: map[string]bool{}}, 10*time.Millisecond, time.Second, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	<-runs
	<-runs
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
