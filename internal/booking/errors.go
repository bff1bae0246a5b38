package booking

import "errors"

var (
	ErrSlotUnavailable           = errors.New("slot is no longer available")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrPaymentAlreadyProcessed   = errors.New("payment already processed")
	ErrBookingMismatch           = errors.New("booking does not match the payment order")
	ErrForbidden                 = errors.New("not allowed for this user")
	ErrAppointmentNotFound       = errors.New("appointment not found")
	ErrAppointmentStateConflict  = errors.New("appointment is not in the expected state")
	ErrInvalidState              = errors.New("operation not allowed in the current state")
	ErrServiceNotFound           = errors.New("service not found")
	ErrPatientNotFound           = errors.New("patient not found")
)

// AlreadyProcessedError is returned on replay of a verified payment. Existing
// is set when the payment already produced an appointment.
type AlreadyProcessedError struct {
	Existing *Confirmation
}

func (e *AlreadyProcessedError) Error() string {
	return ErrPaymentAlreadyProcessed.Error()
}

func (e *AlreadyProcessedError) Unwrap() error {
	return ErrPaymentAlreadyProcessed
}
