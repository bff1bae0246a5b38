package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hackgods/telehealth-booking/internal/booking"
	"github.com/hackgods/telehealth-booking/internal/payment"
	"github.com/hackgods/telehealth-booking/internal/schedule"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleServiceError maps domain errors to HTTP responses. Unknown errors are
// logged and hidden behind a 500.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var replay *booking.AlreadyProcessedError
	switch {
	case errors.As(err, &replay) && replay.Existing != nil:
		writeJSON(w, http.StatusOK, replay.Existing)
	case errors.Is(err, booking.ErrPaymentAlreadyProcessed):
		writeError(w, http.StatusConflict, "payment_already_processed", err.Error())
	case errors.Is(err, schedule.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, schedule.ErrScheduleConflict):
		writeError(w, http.StatusConflict, "schedule_conflict", err.Error())
	case errors.Is(err, schedule.ErrScheduleInPast):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, schedule.ErrScheduleNotFound):
		writeError(w, http.StatusNotFound, "schedule_not_found", err.Error())
	case errors.Is(err, schedule.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "slot is no longer available, refresh and pick another")
	case errors.Is(err, booking.ErrPaymentVerificationFailed):
		writeError(w, http.StatusBadRequest, "payment_verification_failed", err.Error())
	case errors.Is(err, booking.ErrBookingMismatch):
		writeError(w, http.StatusBadRequest, "booking_mismatch", err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, payment.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, "payment_not_found", err.Error())
	case errors.Is(err, payment.ErrGateway):
		writeError(w, http.StatusBadGateway, "payment_gateway_error", "payment provider unavailable, try again")
	default:
		log.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}
