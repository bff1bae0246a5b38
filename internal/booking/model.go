package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending     AppointmentStatus = "pending"
	StatusBooked      AppointmentStatus = "booked"
	StatusCompleted   AppointmentStatus = "completed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

type PaymentStatus string

const (
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type RefundStatus string

const (
	RefundEligible    RefundStatus = "eligible"
	RefundNotEligible RefundStatus = "not_eligible"
	RefundFailed      RefundStatus = "failed"
)

// CancelledBy records which side ended an appointment.
type CancelledBy string

const (
	CancelledByPatient CancelledBy = "patient"
	CancelledByDoctor  CancelledBy = "doctor"
)

type Cancellation struct {
	Reason       string       `json:"reason"`
	CancelledAt  time.Time    `json:"cancelled_at"`
	CancelledBy  CancelledBy  `json:"cancelled_by"`
	RefundStatus RefundStatus `json:"refund_status"`
	RefundAmount int64        `json:"refund_amount"`
}

type Appointment struct {
	ID              uuid.UUID         `json:"id"`
	PatientID       uuid.UUID         `json:"patient_id"`
	DoctorID        uuid.UUID         `json:"doctor_id"`
	ServiceID       uuid.UUID         `json:"service_id"`
	ScheduleID      uuid.UUID         `json:"schedule_id"`
	SlotID          uuid.UUID         `json:"slot_id"`
	Date            time.Time         `json:"appointment_date"`
	SlotStart       time.Time         `json:"slot_start"`
	SlotEnd         time.Time         `json:"slot_end"`
	Status          AppointmentStatus `json:"status"`
	PaymentStatus   PaymentStatus     `json:"payment_status"`
	PaymentID       uuid.UUID         `json:"payment_id"`
	Cancellation    *Cancellation     `json:"cancellation,omitempty"`
	PrescriptionID  *uuid.UUID        `json:"prescription_id,omitempty"`
	RescheduledFrom *uuid.UUID        `json:"rescheduled_from,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Order is what a patient needs to complete payment client-side.
type Order struct {
	OrderID    string    `json:"order_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	ScheduleID uuid.UUID `json:"schedule_id"`
	SlotID     uuid.UUID `json:"slot_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// VerifyRequest carries the gateway callback fields plus the booking the
// client believes it is paying for.
type VerifyRequest struct {
	PatientID        uuid.UUID
	OrderID          string
	GatewayPaymentID string
	Signature        string
	ScheduleID       uuid.UUID
	SlotID           uuid.UUID
}

type Confirmation struct {
	AppointmentID uuid.UUID         `json:"appointment_id"`
	SlotID        uuid.UUID         `json:"slot_id"`
	Status        AppointmentStatus `json:"status"`
	Success       bool              `json:"success"`
}

// CascadeResult summarises a doctor schedule cancellation.
type CascadeResult struct {
	ScheduleID  uuid.UUID   `json:"schedule_id"`
	Cancelled   int         `json:"appointments_cancelled"`
	Refunded    int         `json:"refunds_issued"`
	Notified    int         `json:"notifications_sent"`
	Failed      []uuid.UUID `json:"failed_appointments"`
	SlotsClosed int         `json:"slots_cancelled"`
}
