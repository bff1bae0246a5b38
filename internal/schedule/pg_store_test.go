package schedule

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/telehealth-booking/internal/db"
)

// These tests run against a real database and are skipped unless
// POSTGRES_TEST_DSN points at one.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := db.ConnectPostgres(ctx, dsn, 20)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))
	return pool
}

func createTestSchedule(t *testing.T, store *PgStore) *Schedule {
	t.Helper()
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	end := start.Add(time.Hour)
	slots, err := GenerateSlots(start, end, 20)
	require.NoError(t, err)

	s := &Schedule{
		ID:              uuid.New(),
		DoctorID:        uuid.New(),
		ServiceID:       uuid.New(),
		Date:            DateOf(start, time.UTC),
		Start:           start,
		End:             end,
		DurationMinutes: 20,
		Slots:           slots,
	}
	require.NoError(t, store.Create(context.Background(), s))
	return s
}

func TestPgStore_ConcurrentHoldsOnlyOneWins(t *testing.T) {
	store := NewPgStore(testPool(t))
	s := createTestSchedule(t, store)
	slotID := s.Slots[0].ID

	const claimers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []uuid.UUID
		conflicts int
	)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			patient := uuid.New()
			_, err := store.TransitionSlot(context.Background(), s.ID, slotID, SlotAvailable, SlotPending, &patient, time.Now())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, patient)
				return
			}
			assert.ErrorIs(t, err, ErrSlotStateConflict)
			conflicts++
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, claimers-1, conflicts)

	stored, err := store.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	sl := stored.FindSlot(slotID)
	require.NotNil(t, sl)
	assert.Equal(t, SlotPending, sl.Status)
	require.NotNil(t, sl.HeldBy)
	assert.Equal(t, winners[0], *sl.HeldBy)
}

func TestPgStore_TransitionKeepsAndClearsHold(t *testing.T) {
	store := NewPgStore(testPool(t))
	ctx := context.Background()
	s := createTestSchedule(t, store)
	patient := uuid.New()
	at := time.Now()

	held, err := store.TransitionSlot(ctx, s.ID, s.Slots[0].ID, SlotAvailable, SlotPending, &patient, at)
	require.NoError(t, err)
	require.NotNil(t, held.PendingSince)
	assert.WithinDuration(t, at, *held.PendingSince, time.Millisecond)

	booked, err := store.TransitionSlot(ctx, s.ID, s.Slots[0].ID, SlotPending, SlotBooked, nil, at.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, booked.HeldBy)
	assert.Equal(t, patient, *booked.HeldBy)
	require.NotNil(t, booked.PendingSince)
	assert.True(t, held.PendingSince.Equal(*booked.PendingSince), "booking keeps the hold time")

	_, err = store.TransitionSlot(ctx, s.ID, s.Slots[0].ID, SlotPending, SlotBooked, nil, at)
	assert.ErrorIs(t, err, ErrSlotStateConflict)

	_, err = store.TransitionSlot(ctx, s.ID, s.Slots[1].ID, SlotAvailable, SlotPending, &patient, at)
	require.NoError(t, err)
	released, err := store.TransitionSlot(ctx, s.ID, s.Slots[1].ID, SlotPending, SlotAvailable, nil, at)
	require.NoError(t, err)
	assert.Nil(t, released.HeldBy)
	assert.Nil(t, released.PendingSince)
}

func TestPgStore_CloseOpenSlotsLeavesBooked(t *testing.T) {
	store := NewPgStore(testPool(t))
	ctx := context.Background()
	s := createTestSchedule(t, store)
	patient := uuid.New()
	at := time.Now()

	_, err := store.TransitionSlot(ctx, s.ID, s.Slots[0].ID, SlotAvailable, SlotPending, &patient, at)
	require.NoError(t, err)
	_, err = store.TransitionSlot(ctx, s.ID, s.Slots[0].ID, SlotPending, SlotBooked, nil, at)
	require.NoError(t, err)
	_, err = store.TransitionSlot(ctx, s.ID, s.Slots[1].ID, SlotAvailable, SlotPending, &patient, at)
	require.NoError(t, err)

	n, err := store.CloseOpenSlots(ctx, s.ID, at)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stored, err := store.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, SlotBooked, stored.Slots[0].Status)
	assert.Equal(t, SlotCancelled, stored.Slots[1].Status)
	assert.Equal(t, SlotCancelled, stored.Slots[2].Status)

	_, err = store.TransitionSlot(ctx, s.ID, s.Slots[1].ID, SlotPending, SlotBooked, nil, at)
	assert.ErrorIs(t, err, ErrSlotStateConflict)

	n, err = store.CancelSlots(ctx, s.ID, at)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPgStore_ReleaseExpiredOnlyOldHolds(t *testing.T) {
	store := NewPgStore(testPool(t))
	ctx := context.Background()
	s := createTestSchedule(t, store)
	patient := uuid.New()
	at := time.Now()

	_, err := store.TransitionSlot(ctx, s.ID, s.Slots[0].ID, SlotAvailable, SlotPending, &patient, at)
	require.NoError(t, err)

	ok, err := store.ReleaseExpired(ctx, s.ID, s.Slots[0].ID, at.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "hold is newer than the cutoff")

	ok, err = store.ReleaseExpired(ctx, s.ID, s.Slots[0].ID, at.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := store.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, SlotAvailable, stored.Slots[0].Status)
	assert.Nil(t, stored.Slots[0].HeldBy)
}
