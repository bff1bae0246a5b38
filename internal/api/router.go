package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/telehealth-booking/internal/booking"
	"github.com/hackgods/telehealth-booking/internal/schedule"
	"github.com/hackgods/telehealth-booking/internal/wallet"
)

type ScheduleService interface {
	ValidateSchedule(ctx context.Context, req schedule.WindowRequest) error
	PreviewSlots(ctx context.Context, req schedule.WindowRequest) ([]schedule.Slot, error)
	CreateSchedule(ctx context.Context, req schedule.WindowRequest) (*schedule.Schedule, error)
	ListSchedules(ctx context.Context, f schedule.ListFilter) (*schedule.Page, error)
	AvailableSlots(ctx context.Context, scheduleID uuid.UUID) ([]schedule.Slot, error)
}

type BookingService interface {
	InitiateBooking(ctx context.Context, patientID, scheduleID, slotID uuid.UUID) (*booking.Order, error)
	VerifyAndBook(ctx context.Context, req booking.VerifyRequest) (*booking.Confirmation, error)
	GetUserAppointments(ctx context.Context, patientID uuid.UUID, status string) ([]booking.Appointment, error)
	CancelDoctorSchedule(ctx context.Context, doctorID, scheduleID uuid.UUID, reason string) (*booking.CascadeResult, error)
	CancelAppointment(ctx context.Context, patientID, appointmentID uuid.UUID, reason string) (*booking.Appointment, error)
	RescheduleAppointment(ctx context.Context, patientID, appointmentID, newScheduleID, newSlotID uuid.UUID) (*booking.Appointment, error)
	CompleteAppointment(ctx context.Context, doctorID, appointmentID, prescriptionID uuid.UUID) (*booking.Appointment, error)
	Balance(ctx context.Context, ownerID uuid.UUID, kind wallet.OwnerKind) (*wallet.Wallet, error)
}

type RouterConfig struct {
	Schedules ScheduleService
	Bookings  BookingService
	Health    *HealthHandler
	JWTSecret []byte
	Location  *time.Location
	Logger    zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(cfg.JWTSecret))

		// Doctor schedule management
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(RoleDoctor))
			r.Post("/schedules/validate", validateScheduleHandler(cfg.Schedules, loc))
			r.Post("/schedules/preview", previewSlotsHandler(cfg.Schedules, loc))
			r.Post("/schedules", createScheduleHandler(cfg.Schedules, loc))
			r.Get("/schedules", listSchedulesHandler(cfg.Schedules))
			r.Post("/schedules/{id}/cancel", cancelScheduleHandler(cfg.Bookings))
			r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Bookings))
		})

		// Patient booking flow
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(RolePatient))
			r.Post("/bookings", initiateBookingHandler(cfg.Bookings))
			r.Post("/bookings/verify", verifyBookingHandler(cfg.Bookings))
			r.Get("/appointments", listAppointmentsHandler(cfg.Bookings))
			r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Bookings))
			r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Bookings))
		})

		r.Get("/schedules/{id}/slots", availableSlotsHandler(cfg.Schedules))
		r.Get("/wallet", walletHandler(cfg.Bookings))
	})

	return r
}
