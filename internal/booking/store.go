package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppointmentStore persists appointments. Status changes are conditional on
// the current status and return ErrAppointmentStateConflict when it moved.
type AppointmentStore interface {
	// Create returns ErrSlotUnavailable when the slot already has an active
	// appointment.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetByPaymentID returns the most recent appointment paid by the payment.
	GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, status AppointmentStatus) ([]Appointment, error)
	ListBySchedule(ctx context.Context, scheduleID uuid.UUID, status AppointmentStatus) ([]Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	// Cancel moves booked -> cancelled and records c.
	Cancel(ctx context.Context, id uuid.UUID, c Cancellation) (*Appointment, error)
	UpdateRefund(ctx context.Context, id uuid.UUID, refund RefundStatus, paymentStatus PaymentStatus) error
	// Complete moves booked -> completed and attaches the prescription.
	Complete(ctx context.Context, id uuid.UUID, prescriptionID uuid.UUID, at time.Time) (*Appointment, error)
}

// Directory reads the parts of the catalog and patient registry the booking
// flows need.
type Directory interface {
	ServiceFee(ctx context.Context, serviceID uuid.UUID) (int64, error)
	PatientEmail(ctx context.Context, patientID uuid.UUID) (string, error)
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]any) error
}

type Notifier interface {
	SendAppointmentCancellationEmail(ctx context.Context, to string, at time.Time, reason string, refunded int64, currency string) error
}
