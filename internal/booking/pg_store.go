package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/telehealth-booking/internal/db"
)

type PgAppointmentStore struct {
	pool *pgxpool.Pool
}

func NewPgAppointmentStore(pool *pgxpool.Pool) *PgAppointmentStore {
	return &PgAppointmentStore{pool: pool}
}

const appointmentCols = `id, patient_id, doctor_id, service_id, schedule_id, slot_id, appointment_date,
	slot_start, slot_end, status, payment_status, payment_id, cancel_reason, cancelled_at,
	cancelled_by, refund_status, refund_amount, prescription_id, rescheduled_from, created_at, updated_at`

func scanAppointment(row pgx.Row, notFound error) (*Appointment, error) {
	var (
		a            Appointment
		cancelReason *string
		cancelledAt  *time.Time
		cancelledBy  *string
		refundStatus *string
		refundAmount *int64
	)
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.ServiceID,
		&a.ScheduleID,
		&a.SlotID,
		&a.Date,
		&a.SlotStart,
		&a.SlotEnd,
		&a.Status,
		&a.PaymentStatus,
		&a.PaymentID,
		&cancelReason,
		&cancelledAt,
		&cancelledBy,
		&refundStatus,
		&refundAmount,
		&a.PrescriptionID,
		&a.RescheduledFrom,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		return nil, err
	}

	if cancelledAt != nil {
		c := &Cancellation{CancelledAt: *cancelledAt}
		if cancelReason != nil {
			c.Reason = *cancelReason
		}
		if cancelledBy != nil {
			c.CancelledBy = CancelledBy(*cancelledBy)
		}
		if refundStatus != nil {
			c.RefundStatus = RefundStatus(*refundStatus)
		}
		if refundAmount != nil {
			c.RefundAmount = *refundAmount
		}
		a.Cancellation = c
	}
	return &a, nil
}

func (r *PgAppointmentStore) list(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows, ErrAppointmentNotFound)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgAppointmentStore) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, service_id, schedule_id, slot_id,
			appointment_date, slot_start, slot_end, status, payment_status, payment_id,
			rescheduled_from, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		RETURNING created_at, updated_at
	`, a.ID, a.PatientID, a.DoctorID, a.ServiceID, a.ScheduleID, a.SlotID,
		a.Date, a.SlotStart, a.SlotEnd, string(a.Status), string(a.PaymentStatus), a.PaymentID,
		a.RescheduledFrom).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if db.IsPgCode(err, db.CodeUniqueViolation) {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgAppointmentStore) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row, ErrAppointmentNotFound)
}

func (r *PgAppointmentStore) GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE payment_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, paymentID)
	return scanAppointment(row, ErrAppointmentNotFound)
}

func (r *PgAppointmentStore) ListByPatient(ctx context.Context, patientID uuid.UUID, status AppointmentStatus) ([]Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE patient_id = $1
		  AND ($2::text = '' OR status = $2::text)
		ORDER BY slot_start DESC
	`, patientID, string(status))
}

func (r *PgAppointmentStore) ListBySchedule(ctx context.Context, scheduleID uuid.UUID, status AppointmentStatus) ([]Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE schedule_id = $1
		  AND ($2::text = '' OR status = $2::text)
		ORDER BY slot_start
	`, scheduleID, string(status))
}

func (r *PgAppointmentStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+appointmentCols, id, string(from), string(to))
	return scanAppointment(row, ErrAppointmentStateConflict)
}

func (r *PgAppointmentStore) Cancel(ctx context.Context, id uuid.UUID, c Cancellation) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancel_reason = $2,
		    cancelled_at = $3,
		    cancelled_by = $4,
		    refund_status = $5,
		    refund_amount = $6,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'booked'
		RETURNING `+appointmentCols,
		id, c.Reason, c.CancelledAt, string(c.CancelledBy), string(c.RefundStatus), c.RefundAmount)
	return scanAppointment(row, ErrAppointmentStateConflict)
}

func (r *PgAppointmentStore) UpdateRefund(ctx context.Context, id uuid.UUID, refund RefundStatus, paymentStatus PaymentStatus) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointments
		SET refund_status = $2,
		    payment_status = $3,
		    updated_at = now()
		WHERE id = $1
	`, id, string(refund), string(paymentStatus))
	if err != nil {
		return fmt.Errorf("update refund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgAppointmentStore) Complete(ctx context.Context, id uuid.UUID, prescriptionID uuid.UUID, at time.Time) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments
		SET status = 'completed',
		    prescription_id = $2,
		    updated_at = $3
		WHERE id = $1
		  AND status = 'booked'
		RETURNING `+appointmentCols, id, prescriptionID, at)
	return scanAppointment(row, ErrAppointmentStateConflict)
}

// PgDirectory reads services and patients seeded by the catalog owners.
type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func (d *PgDirectory) ServiceFee(ctx context.Context, serviceID uuid.UUID) (int64, error) {
	var fee int64
	err := db.Conn(ctx, d.pool).QueryRow(ctx, `SELECT fee FROM services WHERE id = $1`, serviceID).Scan(&fee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrServiceNotFound
		}
		return 0, fmt.Errorf("get service fee: %w", err)
	}
	return fee, nil
}

func (d *PgDirectory) PatientEmail(ctx context.Context, patientID uuid.UUID) (string, error) {
	var email string
	err := db.Conn(ctx, d.pool).QueryRow(ctx, `SELECT COALESCE(email, '') FROM patients WHERE id = $1`, patientID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrPatientNotFound
		}
		return "", fmt.Errorf("get patient email: %w", err)
	}
	return email, nil
}
