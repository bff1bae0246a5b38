package payment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

// Forward only: created -> paid | failed, paid -> refund.
const (
	StatusCreated Status = "created"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
	StatusRefund  Status = "refund"
)

// Payment is one gateway order tied to at most one booking attempt. The
// patient, schedule and slot it was opened for are kept so a verification
// can be matched back to its hold.
type Payment struct {
	ID               uuid.UUID
	OrderID          string
	GatewayPaymentID *string
	Signature        *string
	Amount           int64 // minor units
	Currency         string
	Status           Status
	PatientID        uuid.UUID
	ScheduleID       uuid.UUID
	SlotID           uuid.UUID
	HeldAt           *time.Time // pending_since of the hold the order was opened under
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
