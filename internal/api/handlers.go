package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/telehealth-booking/internal/schedule"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func parseUUIDField(w http.ResponseWriter, value, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+field, field+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return parseUUIDField(w, chi.URLParam(r, "id"), "id")
}

func mustPrincipal(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing principal")
	}
	return p, ok
}

func toWindowRequest(body WindowRequest, doctorID uuid.UUID, loc *time.Location) (schedule.WindowRequest, error) {
	serviceID, err := uuid.Parse(body.ServiceID)
	if err != nil {
		return schedule.WindowRequest{}, fmt.Errorf("%w: service_id must be a valid UUID", schedule.ErrInvalidInput)
	}

	req := schedule.WindowRequest{
		DoctorID:        doctorID,
		ServiceID:       serviceID,
		Start:           body.Start,
		End:             body.End,
		DurationMinutes: body.DurationMinutes,
	}
	if body.Date != "" {
		d, err := time.ParseInLocation(time.DateOnly, body.Date, loc)
		if err != nil {
			return schedule.WindowRequest{}, fmt.Errorf("%w: date must be YYYY-MM-DD", schedule.ErrInvalidInput)
		}
		req.Date = schedule.DateOf(d, loc)
	}
	for _, sl := range body.Slots {
		req.Slots = append(req.Slots, schedule.Slot{Start: sl.Start, End: sl.End, IsBreak: sl.IsBreak})
	}
	return req, nil
}

// windowHandler decodes the body shared by the validate, preview and create
// endpoints.
func windowHandler(loc *time.Location, next func(w http.ResponseWriter, r *http.Request, req schedule.WindowRequest)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := mustPrincipal(w, r)
		if !ok {
			return
		}
		var body WindowRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		req, err := toWindowRequest(body, p.UserID, loc)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		next(w, r, req)
	}
}

func validateScheduleHandler(svc ScheduleService, loc *time.Location) http.HandlerFunc {
	return windowHandler(loc, func(w http.ResponseWriter, r *http.Request, req schedule.WindowRequest) {
		err := svc.ValidateSchedule(r.Context(), req)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, ValidateResponse{Success: true, Message: "window is available"})
		case errors.Is(err, schedule.ErrScheduleConflict):
			writeJSON(w, http.StatusConflict, ValidateResponse{Success: false, Message: err.Error()})
		default:
			handleServiceError(w, r, err)
		}
	})
}

func previewSlotsHandler(svc ScheduleService, loc *time.Location) http.HandlerFunc {
	return windowHandler(loc, func(w http.ResponseWriter, r *http.Request, req schedule.WindowRequest) {
		slots, err := svc.PreviewSlots(r.Context(), req)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SlotsResponse{Slots: slots})
	})
}

func createScheduleHandler(svc ScheduleService, loc *time.Location) http.HandlerFunc {
	return windowHandler(loc, func(w http.ResponseWriter, r *http.Request, req schedule.WindowRequest) {
		sched, err := svc.CreateSchedule(r.Context(), req)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sched)
	})
}

func listSchedulesHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := mustPrincipal(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()

		f := schedule.ListFilter{
			DoctorID: p.UserID,
			Status:   q.Get("status"),
		}
		if v := q.Get("service_id"); v != "" {
			id, ok := parseUUIDField(w, v, "service_id")
			if !ok {
				return
			}
			f.ServiceID = &id
		}
		for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
			v := q.Get(key)
			if v == "" {
				continue
			}
			d, err := time.Parse(time.DateOnly, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_"+key, key+" must be YYYY-MM-DD")
				return
			}
			*dst = &d
		}
		var err error
		if f.Page, err = queryInt(q.Get("page")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_page", "page must be a number")
			return
		}
		if f.Limit, err = queryInt(q.Get("limit")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a number")
			return
		}

		page, err := svc.ListSchedules(r.Context(), f)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func availableSlotsHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		slots, err := svc.AvailableSlots(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SlotsResponse{ScheduleID: id, Slots: slots})
	}
}

func cancelScheduleHandler(svc BookingService) http.HandlerFunc {
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
		if !decodeJSON(w, r, &body) {
			return
		}

		result, err := svc.CancelDoctorSchedule(r.Context(), p.UserID, id, body.Reason)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
