package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-booking/internal/booking"
	"github.com/hackgods/telehealth-booking/internal/wallet"
)

func initiateBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := mustPrincipal(w, r)
		if !ok {
			return
		}
		var req InitiateBookingRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		scheduleID, ok := parseUUIDField(w, req.ScheduleID, "schedule_id")
		if !ok {
			return
		}
		slotID, ok := parseUUIDField(w, req.SlotID, "slot_id")
		if !ok {
			return
		}

		order, err := svc.InitiateBooking(r.Context(), p.UserID, scheduleID, slotID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, order)
	}
}

func verifyBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := mustPrincipal(w, r)
		if !ok {
			return
		}
		var req VerifyBookingRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		// The booking context is optional; when sent it must match the order.
		var scheduleID, slotID uuid.UUID
		if req.ScheduleID != "" {
			if scheduleID, ok = parseUUIDField(w, req.ScheduleID, "schedule_id"); !ok {
				return
			}
		}
		if req.SlotID != "" {
			if slotID, ok = parseUUIDField(w, req.SlotID, "slot_id"); !ok {
				return
			}
		}

		conf, err := svc.VerifyAndBook(r.Context(), booking.VerifyRequest{
			PatientID:        p.UserID,
			OrderID:          req.OrderID,
			GatewayPaymentID: req.PaymentID,
			Signature:        req.Signature,
			ScheduleID:       scheduleID,
			SlotID:           slotID,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, conf)
	}
}

func listAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := mustPrincipal(w, r)
		if !ok {
			return
		}
		appts, err := svc.GetUserAppointments(r.Context(), p.UserID, r.URL.Query().Get("status"))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appts)
	}
}

func cancelAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := mustPrincipal(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var body CancelRequest
		if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), p.UserID, id, body.Reason)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func rescheduleAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := mustPrincipal(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req RescheduleRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		scheduleID, ok := parseUUIDField(w, req.ScheduleID, "schedule_id")
		if !ok {
			return
		}
		slotID, ok := parseUUIDField(w, req.SlotID, "slot_id")
		if !ok {
			return
		}

		appt, err := svc.RescheduleAppointment(r.Context(), p.UserID, id, scheduleID, slotID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func completeAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := mustPrincipal(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req CompleteRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		prescriptionID, ok := parseUUIDField(w, req.PrescriptionID, "prescription_id")
		if !ok {
			return
		}

		appt, err := svc.CompleteAppointment(r.Context(), p.UserID, id, prescriptionID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func walletHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := mustPrincipal(w, r)
		if !ok {
			return
		}
		kind := wallet.OwnerPatient
		if p.Role == RoleDoctor {
			kind = wallet.OwnerDoctor
		}
		wl, err := svc.Balance(r.Context(), p.UserID, kind)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, wl)
	}
}
