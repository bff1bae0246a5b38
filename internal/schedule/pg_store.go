package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/telehealth-booking/internal/db"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const scheduleCols = `id, doctor_id, service_id, schedule_date, start_time, end_time, duration_minutes,
	is_cancelled, cancel_reason, cancelled_at, created_at, updated_at`

const slotCols = `id, start_time, end_time, status, is_break, pending_since, held_by`

// Helpers

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.ServiceID,
		&s.Date,
		&s.Start,
		&s.End,
		&s.DurationMinutes,
		&s.IsCancelled,
		&s.CancelReason,
		&s.CancelledAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var sl Slot

	err := row.Scan(
		&sl.ID,
		&sl.Start,
		&sl.End,
		&sl.Status,
		&sl.IsBreak,
		&sl.PendingSince,
		&sl.HeldBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotStateConflict
		}
		return nil, err
	}

	return &sl, nil
}

func (r *PgStore) loadSlots(ctx context.Context, schedules []Schedule) error {
	if len(schedules) == 0 {
		return nil
	}

	ids := make([]string, len(schedules))
	byID := make(map[uuid.UUID]*Schedule, len(schedules))
	for i := range schedules {
		ids[i] = schedules[i].ID.String()
		byID[schedules[i].ID] = &schedules[i]
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT schedule_id, `+slotCols+`
		FROM schedule_slots
		WHERE schedule_id = ANY($1::uuid[])
		ORDER BY schedule_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var scheduleID uuid.UUID
		var sl Slot
		if err := rows.Scan(&scheduleID, &sl.ID, &sl.Start, &sl.End, &sl.Status, &sl.IsBreak, &sl.PendingSince, &sl.HeldBy); err != nil {
			return fmt.Errorf("scan slot: %w", err)
		}
		if s, ok := byID[scheduleID]; ok {
			s.Slots = append(s.Slots, sl)
		}
	}

	return rows.Err()
}

// Interface methods

func (r *PgStore) FindOverlapping(ctx context.Context, doctorID, serviceID uuid.UUID, date, start, end time.Time) (*Schedule, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+scheduleCols+`
		FROM schedules
		WHERE doctor_id = $1
		  AND service_id = $2
		  AND schedule_date = $3
		  AND NOT is_cancelled
		  AND start_time < $5
		  AND $4 < end_time
		ORDER BY start_time
		LIMIT 1
	`, doctorID, serviceID, date, start, end)
	return scanSchedule(row)
}

func (r *PgStore) Create(ctx context.Context, s *Schedule) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, r.pool)

		err := q.QueryRow(ctx, `
			INSERT INTO schedules (id, doctor_id, service_id, schedule_date, start_time, end_time, duration_minutes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			RETURNING created_at, updated_at
		`, s.ID, s.DoctorID, s.ServiceID, s.Date, s.Start, s.End, s.DurationMinutes).Scan(&s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			if db.IsPgCode(err, db.CodeExclusionViolation) {
				return ErrScheduleConflict
			}
			return fmt.Errorf("insert schedule: %w", err)
		}

		batch := &pgx.Batch{}
		for i, sl := range s.Slots {
			batch.Queue(`
				INSERT INTO schedule_slots (id, schedule_id, position, start_time, end_time, status, is_break, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			`, sl.ID, s.ID, i, sl.Start, sl.End, string(sl.Status), sl.IsBreak)
		}

		br := q.SendBatch(ctx, batch)
		for i := range s.Slots {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("insert slot %d: %w", i, err)
			}
		}
		return br.Close()
	})
}

func (r *PgStore) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+scheduleCols+`
		FROM schedules
		WHERE id = $1
	`, id)
	s, err := scanSchedule(row)
	if err != nil {
		return nil, err
	}

	result := []Schedule{*s}
	if err := r.loadSlots(ctx, result); err != nil {
		return nil, err
	}
	return &result[0], nil
}

func (r *PgStore) List(ctx context.Context, f ListFilter) ([]Schedule, int, error) {
	where := []string{"doctor_id = $1"}
	args := []any{f.DoctorID}

	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.ServiceID != nil {
		add("service_id = $%d", *f.ServiceID)
	}
	if f.From != nil {
		add("schedule_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("schedule_date <= $%d", *f.To)
	}
	switch f.Status {
	case StatusUpcoming:
		add("schedule_date >= $%d", f.Today)
	case StatusCompleted:
		add("schedule_date < $%d", f.Today)
	}

	clause := strings.Join(where, " AND ")
	q := db.Conn(ctx, r.pool)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM schedules WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	offset := (f.Page - 1) * f.Limit
	limitArgs := append(append([]any{}, args...), f.Limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM schedules
		WHERE %s
		ORDER BY start_time ASC
		LIMIT $%d OFFSET $%d
	`, scheduleCols, clause, len(args)+1, len(args)+2), limitArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var result []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.loadSlots(ctx, result); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PgStore) MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE schedules
		SET is_cancelled = true,
		    cancel_reason = $2,
		    cancelled_at = $3,
		    updated_at = now()
		WHERE id = $1
		  AND NOT is_cancelled
	`, id, reason, at)
	if err != nil {
		return fmt.Errorf("cancel schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleCancelled
	}
	return nil
}

func (r *PgStore) TransitionSlot(ctx context.Context, scheduleID, slotID uuid.UUID, from, to SlotStatus, heldBy *uuid.UUID, at time.Time) (*Slot, error) {
	if err := CheckTransition(from, to); err != nil {
		return nil, err
	}

	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE schedule_slots
		SET status = $4::text,
		    pending_since = CASE
		        WHEN $4::text = 'pending' THEN $5::timestamptz
		        WHEN $4::text = 'available' THEN NULL
		        ELSE pending_since END,
		    held_by = CASE
		        WHEN $4::text = 'available' THEN NULL
		        ELSE COALESCE($6::uuid, held_by) END,
		    updated_at = $5::timestamptz
		WHERE schedule_id = $1
		  AND id = $2
		  AND status = $3
		RETURNING `+slotCols+`
	`, scheduleID, slotID, string(from), string(to), at, heldBy)
	return scanSlot(row)
}

func (r *PgStore) CloseOpenSlots(ctx context.Context, scheduleID uuid.UUID, at time.Time) (int, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE schedule_slots
		SET status = 'cancelled',
		    updated_at = $2
		WHERE schedule_id = $1
		  AND status IN ('available', 'pending')
	`, scheduleID, at)
	if err != nil {
		return 0, fmt.Errorf("close open slots: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PgStore) CancelSlots(ctx context.Context, scheduleID uuid.UUID, at time.Time) (int, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE schedule_slots
		SET status = 'cancelled',
		    updated_at = $2
		WHERE schedule_id = $1
		  AND status IN ('available', 'pending', 'booked')
	`, scheduleID, at)
	if err != nil {
		return 0, fmt.Errorf("cancel slots: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PgStore) FindExpiredPending(ctx context.Context, cutoff time.Time) ([]SlotRef, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT schedule_id, id, pending_since
		FROM schedule_slots
		WHERE status = 'pending'
		  AND pending_since IS NOT NULL
		  AND pending_since < $1
		ORDER BY pending_since
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SlotRef
	for rows.Next() {
		var ref SlotRef
		if err := rows.Scan(&ref.ScheduleID, &ref.SlotID, &ref.PendingSince); err != nil {
			return nil, err
		}
		result = append(result, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgStore) ReleaseExpired(ctx context.Context, scheduleID, slotID uuid.UUID, cutoff time.Time) (bool, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE schedule_slots
		SET status = 'available',
		    pending_since = NULL,
		    held_by = NULL,
		    updated_at = now()
		WHERE schedule_id = $1
		  AND id = $2
		  AND status = 'pending'
		  AND pending_since < $3
	`, scheduleID, slotID, cutoff)
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
