// Package booking runs the two-phase slot booking protocol and the workflows
// that end an appointment: cancellation, completion and rescheduling.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/telehealth-booking/internal/config"
	"github.com/hackgods/telehealth-booking/internal/payment"
	"github.com/hackgods/telehealth-booking/internal/schedule"
	"github.com/hackgods/telehealth-booking/internal/wallet"
)

const (
	EventSlotHeld             = "SLOT_HELD"
	EventSlotReleased         = "SLOT_RELEASED"
	EventBookingConfirmed     = "BOOKING_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentMoved     = "APPOINTMENT_RESCHEDULED"
	EventScheduleCancelled    = "SCHEDULE_CANCELLED"
)

type Deps struct {
	Schedules    schedule.Store
	Appointments AppointmentStore
	Payments     payment.Store
	Gateway      payment.Gateway
	Ledger       wallet.Ledger
	Directory    Directory
	Notifier     Notifier
	Tx           Transactor
	Locker       Locker
	Events       Publisher
}

type Service struct {
	Deps
	cfg config.Config
	log zerolog.Logger
	now func() time.Time
}

func NewService(deps Deps, cfg config.Config, logger zerolog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		Deps: deps,
		cfg:  cfg,
		log:  logger.With().Str("component", "booking").Logger(),
		now:  time.Now,
	}
}

func (s *Service) today() time.Time {
	return schedule.DateOf(s.now(), s.cfg.Location)
}

// InitiateBooking holds a slot for the patient and opens a gateway order for
// the service fee. The hold is released again if anything after it fails.
func (s *Service) InitiateBooking(ctx context.Context, patientID, scheduleID, slotID uuid.UUID) (*Order, error) {
	if patientID == uuid.Nil || scheduleID == uuid.Nil || slotID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient, schedule and slot are required", schedule.ErrInvalidInput)
	}

	sched, err := s.Schedules.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	slot := sched.FindSlot(slotID)
	if slot == nil {
		return nil, schedule.ErrSlotNotFound
	}

	now := s.now()
	if sched.IsCancelled || slot.IsBreak || slot.Status != schedule.SlotAvailable || !slot.Start.After(now) {
		return nil, ErrSlotUnavailable
	}

	held, err := s.Schedules.TransitionSlot(ctx, sched.ID, slot.ID, schedule.SlotAvailable, schedule.SlotPending, &patientID, now)
	if err != nil {
		if errors.Is(err, schedule.ErrSlotStateConflict) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("hold slot: %w", err)
	}

	order, err := s.openOrder(ctx, patientID, sched, held)
	if err != nil {
		s.releaseHold(ctx, sched.ID, slot.ID)
		return nil, err
	}
	order.ExpiresAt = now.Add(s.cfg.SlotHoldTTL)

	s.publish(ctx, EventSlotHeld, map[string]any{
		"schedule_id": sched.ID.String(),
		"slot_id":     slot.ID.String(),
		"patient_id":  patientID.String(),
		"order_id":    order.OrderID,
	})
	s.log.Info().
		Str("schedule_id", sched.ID.String()).
		Str("slot_id", slot.ID.String()).
		Str("order_id", order.OrderID).
		Msg("slot held")

	return order, nil
}

func (s *Service) openOrder(ctx context.Context, patientID uuid.UUID, sched *schedule.Schedule, slot *schedule.Slot) (*Order, error) {
	fee, err := s.Directory.ServiceFee(ctx, sched.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("service fee: %w", err)
	}

	gwOrder, err := s.Gateway.CreateOrder(ctx, fee, s.cfg.Currency, "slot_"+slot.ID.String()[:8])
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	p := &payment.Payment{
		OrderID:    gwOrder.ID,
		Amount:     fee,
		Currency:   s.cfg.Currency,
		Status:     payment.StatusCreated,
		PatientID:  patientID,
		ScheduleID: sched.ID,
		SlotID:     slot.ID,
		HeldAt:     slot.PendingSince,
	}
	if err := s.Payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("persist payment: %w", err)
	}

	return &Order{
		OrderID:    p.OrderID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		ScheduleID: sched.ID,
		SlotID:     slot.ID,
	}, nil
}

// releaseHold undoes a Phase 1 hold. It runs even when the request context
// is gone so the slot is not left pending until the sweeper.
func (s *Service) releaseHold(ctx context.Context, scheduleID, slotID uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.Schedules.TransitionSlot(ctx, scheduleID, slotID, schedule.SlotPending, schedule.SlotAvailable, nil, s.now()); err != nil {
		s.log.Error().Err(err).
			Str("schedule_id", scheduleID.String()).
			Str("slot_id", slotID.String()).
			Msg("failed to release slot hold")
	}
}

// VerifyAndBook checks the gateway signature and, in one transaction, books
// the held slot, creates the appointment and marks the payment paid. Only the
// payment's owner can fail it with a bad signature.
func (s *Service) VerifyAndBook(ctx context.Context, req VerifyRequest) (*Confirmation, error) {
	if req.OrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
		return nil, fmt.Errorf("%w: order_id, payment_id and signature are required", schedule.ErrInvalidInput)
	}

	p, err := s.Payments.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load payment: %w", err)
	}
	if req.PatientID != uuid.Nil && p.PatientID != req.PatientID {
		return nil, ErrForbidden
	}

	if !payment.VerifySignature(s.cfg.PaymentKeySecret, req.OrderID, req.GatewayPaymentID, req.Signature) {
		if p.Status == payment.StatusCreated {
			s.failPayment(ctx, p.OrderID)
		}
		s.log.Warn().Str("order_id", req.OrderID).Msg("payment signature mismatch")
		return nil, ErrPaymentVerificationFailed
	}

	if p.Status != payment.StatusCreated {
		return nil, s.alreadyProcessed(ctx, p)
	}
	if (req.ScheduleID != uuid.Nil && req.ScheduleID != p.ScheduleID) || (req.SlotID != uuid.Nil && req.SlotID != p.SlotID) {
		return nil, ErrBookingMismatch
	}

	gp, err := s.Gateway.FetchPayment(ctx, req.GatewayPaymentID)
	if err != nil {
		return nil, fmt.Errorf("fetch payment: %w", err)
	}
	if gp.Status == "failed" || (gp.OrderID != "" && gp.OrderID != p.OrderID) {
		s.failPayment(ctx, p.OrderID)
		return nil, ErrPaymentVerificationFailed
	}

	sched, err := s.Schedules.GetByID(ctx, p.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	slot := sched.FindSlot(p.SlotID)
	if slot == nil || !holdMatches(slot, p) {
		s.failPayment(ctx, p.OrderID)
		return nil, ErrSlotUnavailable
	}

	now := s.now()
	appt := &Appointment{
		ID:            uuid.New(),
		PatientID:     p.PatientID,
		DoctorID:      sched.DoctorID,
		ServiceID:     sched.ServiceID,
		ScheduleID:    sched.ID,
		SlotID:        slot.ID,
		Date:          sched.Date,
		SlotStart:     slot.Start,
		SlotEnd:       slot.End,
		Status:        StatusBooked,
		PaymentStatus: PaymentPaid,
		PaymentID:     p.ID,
	}

	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		booked, err := s.Schedules.TransitionSlot(ctx, sched.ID, slot.ID, schedule.SlotPending, schedule.SlotBooked, nil, now)
		if err != nil {
			if errors.Is(err, schedule.ErrSlotStateConflict) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("book slot: %w", err)
		}
		// The hold may have expired and been taken again, even by the same patient.
		if booked.HeldBy == nil || *booked.HeldBy != p.PatientID || !sameHold(booked.PendingSince, p.HeldAt) {
			return ErrSlotUnavailable
		}

		if err := s.Appointments.Create(ctx, appt); err != nil {
			if errors.Is(err, ErrSlotUnavailable) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		if _, err := s.Payments.MarkPaid(ctx, p.OrderID, req.GatewayPaymentID, req.Signature); err != nil {
			if errors.Is(err, payment.ErrPaymentStateConflict) {
				return ErrPaymentAlreadyProcessed
			}
			return fmt.Errorf("mark payment paid: %w", err)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotUnavailable):
			s.failPayment(ctx, p.OrderID)
			return nil, err
		case errors.Is(err, ErrPaymentAlreadyProcessed):
			return nil, s.alreadyProcessed(ctx, p)
		}
		return nil, err
	}

	s.publish(ctx, EventBookingConfirmed, map[string]any{
		"appointment_id": appt.ID.String(),
		"schedule_id":    sched.ID.String(),
		"slot_id":        slot.ID.String(),
		"patient_id":     p.PatientID.String(),
		"doctor_id":      sched.DoctorID.String(),
	})
	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("order_id", p.OrderID).
		Msg("booking confirmed")

	return &Confirmation{
		AppointmentID: appt.ID,
		SlotID:        slot.ID,
		Status:        appt.Status,
		Success:       true,
	}, nil
}

// holdMatches reports whether the slot is still under the hold this payment
// was opened for.
func holdMatches(slot *schedule.Slot, p *payment.Payment) bool {
	return slot.Status == schedule.SlotPending &&
		slot.HeldBy != nil && *slot.HeldBy == p.PatientID &&
		sameHold(slot.PendingSince, p.HeldAt)
}

func sameHold(pendingSince, heldAt *time.Time) bool {
	return pendingSince != nil && heldAt != nil && pendingSince.Equal(*heldAt)
}

// alreadyProcessed builds the replay error, carrying the existing booking
// when the payment went through.
func (s *Service) alreadyProcessed(ctx context.Context, p *payment.Payment) error {
	current, err := s.Payments.GetByOrderID(ctx, p.OrderID)
	if err != nil {
		current = p
	}
	if current.Status != payment.StatusPaid && current.Status != payment.StatusRefund {
		return &AlreadyProcessedError{}
	}
	appt, err := s.Appointments.GetByPaymentID(ctx, current.ID)
	if err != nil {
		return &AlreadyProcessedError{}
	}
	return &AlreadyProcessedError{Existing: &Confirmation{
		AppointmentID: appt.ID,
		SlotID:        appt.SlotID,
		Status:        appt.Status,
		Success:       true,
	}}
}

func (s *Service) failPayment(ctx context.Context, orderID string) {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.Payments.MarkFailed(ctx, orderID); err != nil &&
		!errors.Is(err, payment.ErrPaymentStateConflict) {
		s.log.Error().Err(err).Str("order_id", orderID).Msg("failed to mark payment failed")
	}
}

// GetUserAppointments lists a patient's appointments, newest first. An empty
// status returns all of them.
func (s *Service) GetUserAppointments(ctx context.Context, patientID uuid.UUID, status string) ([]Appointment, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient is required", schedule.ErrInvalidInput)
	}
	st := AppointmentStatus(status)
	switch st {
	case "", StatusPending, StatusBooked, StatusCompleted, StatusCancelled, StatusRescheduled:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", schedule.ErrInvalidInput, status)
	}

	appts, err := s.Appointments.ListByPatient(ctx, patientID, st)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if appts == nil {
		appts = []Appointment{}
	}
	return appts, nil
}

// Balance returns the caller's wallet.
func (s *Service) Balance(ctx context.Context, ownerID uuid.UUID, kind wallet.OwnerKind) (*wallet.Wallet, error) {
	w, err := s.Ledger.GetWallet(ctx, ownerID, kind)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

func (s *Service) publish(ctx context.Context, eventType string, payload map[string]any) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, eventType, payload); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}
