package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-booking/internal/schedule"
)

// WindowRequest is the body of the schedule endpoints. Start and end are
// RFC 3339 timestamps with their offset; date is optional and, when present,
// must match the clinic-local date of start.
type WindowRequest struct {
	ServiceID       string            `json:"service_id"`
	Date            string            `json:"date,omitempty"`
	Start           time.Time         `json:"start"`
	End             time.Time         `json:"end"`
	DurationMinutes int               `json:"duration_minutes"`
	Slots           []SlotLayoutEntry `json:"slots,omitempty"`
}

type SlotLayoutEntry struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	IsBreak bool      `json:"is_break"`
}

type ValidateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type InitiateBookingRequest struct {
	ScheduleID string `json:"schedule_id"`
	SlotID     string `json:"slot_id"`
}

type VerifyBookingRequest struct {
	OrderID    string `json:"razorpay_order_id"`
	PaymentID  string `json:"razorpay_payment_id"`
	Signature  string `json:"razorpay_signature"`
	ScheduleID string `json:"schedule_id"`
	SlotID     string `json:"slot_id"`
}

type RescheduleRequest struct {
	ScheduleID string `json:"schedule_id"`
	SlotID     string `json:"slot_id"`
}

type CompleteRequest struct {
	PrescriptionID string `json:"prescription_id"`
}

type SlotsResponse struct {
	ScheduleID uuid.UUID       `json:"schedule_id"`
	Slots      []schedule.Slot `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
