package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	redisclient "github.com/hackgods/telehealth-booking/internal/redis"
)

const sweeperLockKey = "sweeper"

// ReleaseExpiredPendingSlots returns slots held longer than expiration to
// available. Each release is conditional on the slot still being pending and
// old, so a concurrent Phase 2 commit wins. A non-positive expiration uses
// the configured hold TTL.
func (s *Service) ReleaseExpiredPendingSlots(ctx context.Context, expiration time.Duration) (int, error) {
	if expiration <= 0 {
		expiration = s.cfg.SlotHoldTTL
	}
	cutoff := s.now().Add(-expiration)

	refs, err := s.Schedules.FindExpiredPending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find expired pending slots: %w", err)
	}

	released := 0
	for _, ref := range refs {
		ok, err := s.Schedules.ReleaseExpired(ctx, ref.ScheduleID, ref.SlotID, cutoff)
		if err != nil {
			s.log.Error().Err(err).
				Str("schedule_id", ref.ScheduleID.String()).
				Str("slot_id", ref.SlotID.String()).
				Msg("failed to release expired slot")
			continue
		}
		if !ok {
			continue
		}
		released++
		s.publish(ctx, EventSlotReleased, map[string]any{
			"schedule_id":   ref.ScheduleID.String(),
			"slot_id":       ref.SlotID.String(),
			"pending_since": ref.PendingSince,
		})
	}
	return released, nil
}

type releaser interface {
	ReleaseExpiredPendingSlots(ctx context.Context, expiration time.Duration) (int, error)
}

// Sweeper runs ReleaseExpiredPendingSlots on a fixed interval. Replicas share
// a lock so at most one sweeps per interval.
type Sweeper struct {
	svc        releaser
	locker     Locker
	interval   time.Duration
	timeout    time.Duration
	expiration time.Duration
	log        zerolog.Logger
}

func NewSweeper(svc releaser, locker Locker, interval, timeout, expiration time.Duration, logger zerolog.Logger) *Sweeper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Sweeper{
		svc:        svc,
		locker:     locker,
		interval:   interval,
		timeout:    timeout,
		expiration: expiration,
		log:        logger.With().Str("component", "sweeper").Logger(),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (w *Sweeper) Run(ctx context.Context) {
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping sweeper")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Sweeper) runOnce(ctx context.Context) {
	start := time.Now()
	released, err := w.RunOnce(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("sweep failed")
		return
	}
	w.log.Info().
		Int("released", released).
		Dur("took", time.Since(start)).
		Msg("sweep complete")
}

// RunOnce performs a single sweep under the sweeper lock. It reports zero
// released slots when another replica holds the lock.
func (w *Sweeper) RunOnce(ctx context.Context) (int, error) {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	released := 0
	err := w.locker.WithLock(runCtx, sweeperLockKey, func(ctx context.Context) error {
		var err error
		released, err = w.svc.ReleaseExpiredPendingSlots(ctx, w.expiration)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			w.log.Debug().Msg("another worker is sweeping")
			return 0, nil
		}
		return 0, err
	}
	return released, nil
}
