package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/hackgods/telehealth-booking/internal/redis"
	"github.com/hackgods/telehealth-booking/internal/schedule"
	"github.com/hackgods/telehealth-booking/internal/wallet"
)

const (
	reasonDoctorCancelled  = "doctor cancelled schedule"
	reasonPatientCancelled = "patient cancelled appointment"
	reasonConsultationDone = "consultation completed"
)

// cascadeStepTimeout bounds each appointment of a cascade, and separately the
// final schedule commit.
const cascadeStepTimeout = 30 * time.Second

// CancelDoctorSchedule closes the schedule's open slots, then cancels every
// booked appointment, refunds and notifies each patient, and finally marks
// the schedule cancelled. A failure on one appointment is logged and the
// cascade moves on; only the slot and schedule updates can fail the call.
// Once started the cascade runs to the end even if the caller goes away.
func (s *Service) CancelDoctorSchedule(ctx context.Context, doctorID, scheduleID uuid.UUID, reason string) (*CascadeResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", schedule.ErrInvalidInput)
	}

	sched, err := s.Schedules.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	if sched.DoctorID != doctorID {
		return nil, ErrForbidden
	}
	if sched.IsCancelled {
		return nil, fmt.Errorf("%w: %w", ErrInvalidState, schedule.ErrScheduleCancelled)
	}
	if sched.Date.Before(s.today()) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidState, schedule.ErrScheduleInPast)
	}

	var result *CascadeResult
	err = s.Locker.WithLock(context.WithoutCancel(ctx), "schedule:"+sched.ID.String(), func(ctx context.Context) error {
		var err error
		result, err = s.cascade(ctx, sched, reason)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, fmt.Errorf("%w: cancellation already in progress", ErrInvalidState)
		}
		return nil, err
	}
	return result, nil
}

func (s *Service) cascade(ctx context.Context, sched *schedule.Schedule, reason string) (*CascadeResult, error) {
	result := &CascadeResult{ScheduleID: sched.ID, Failed: []uuid.UUID{}}
	log := s.log.With().Str("schedule_id", sched.ID.String()).Logger()

	// No hold may turn into a booking once the booked list has been read.
	closed, err := s.Schedules.CloseOpenSlots(ctx, sched.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("close open slots: %w", err)
	}
	result.SlotsClosed = closed

	appts, err := s.Appointments.ListBySchedule(ctx, sched.ID, StatusBooked)
	if err != nil {
		return nil, fmt.Errorf("list booked appointments: %w", err)
	}

	for i := range appts {
		s.cancelBooked(ctx, &appts[i], reason, result, log)
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cascadeStepTimeout)
	defer cancel()
	err = s.Tx.WithinTx(commitCtx, func(ctx context.Context) error {
		now := s.now()
		n, err := s.Schedules.CancelSlots(ctx, sched.ID, now)
		if err != nil {
			return err
		}
		result.SlotsClosed += n
		return s.Schedules.MarkCancelled(ctx, sched.ID, reason, now)
	})
	if err != nil {
		return nil, fmt.Errorf("cancel schedule: %w", err)
	}

	s.publish(ctx, EventScheduleCancelled, map[string]any{
		"schedule_id": sched.ID.String(),
		"doctor_id":   sched.DoctorID.String(),
		"cancelled":   result.Cancelled,
	})
	log.Info().
		Int("cancelled", result.Cancelled).
		Int("refunded", result.Refunded).
		Int("failed", len(result.Failed)).
		Msg("schedule cancelled")

	return result, nil
}

// cancelBooked runs one appointment of a cascade and records the outcome.
func (s *Service) cancelBooked(ctx context.Context, appt *Appointment, reason string, result *CascadeResult, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, cascadeStepTimeout)
	defer cancel()

	now := s.now()
	alog := log.With().Str("appointment_id", appt.ID.String()).Logger()

	refund := RefundNotEligible
	var amount int64
	var amountErr error
	if appt.PaymentStatus == PaymentPaid {
		amount, amountErr = s.paidAmount(ctx, appt)
		if amountErr != nil {
			alog.Error().Err(amountErr).Msg("payment lookup failed, refund will be marked failed")
		}
		if amountErr != nil || amount > 0 {
			refund = RefundEligible
		}
	}

	cancelled, err := s.Appointments.Cancel(ctx, appt.ID, Cancellation{
		Reason:       reason,
		CancelledAt:  now,
		CancelledBy:  CancelledByDoctor,
		RefundStatus: refund,
		RefundAmount: amount,
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentStateConflict) {
			alog.Info().Msg("appointment no longer booked, skipping")
			return
		}
		alog.Error().Err(err).Msg("failed to cancel appointment")
		result.Failed = append(result.Failed, appt.ID)
		return
	}
	result.Cancelled++

	failed := false
	refunded := int64(0)
	if refund == RefundEligible {
		if err := s.refund(ctx, cancelled, amount, amountErr, reasonDoctorCancelled); err != nil {
			alog.Error().Err(err).Msg("refund failed")
			failed = true
			if err := s.Appointments.UpdateRefund(context.WithoutCancel(ctx), appt.ID, RefundFailed, PaymentPaid); err != nil {
				alog.Error().Err(err).Msg("failed to record refund failure")
			}
		} else {
			result.Refunded++
			refunded = amount
		}
	}

	if err := s.notifyCancelled(ctx, cancelled, reason, refunded); err != nil {
		alog.Error().Err(err).Msg("cancellation email failed")
		failed = true
	} else {
		result.Notified++
	}

	if failed {
		result.Failed = append(result.Failed, appt.ID)
	}
	s.publish(ctx, EventAppointmentCancelled, map[string]any{
		"appointment_id": appt.ID.String(),
		"cancelled_by":   string(CancelledByDoctor),
		"refund_amount":  refunded,
	})
}

// paidAmount is what the patient was charged for the appointment, which may
// differ from the service's current fee.
func (s *Service) paidAmount(ctx context.Context, appt *Appointment) (int64, error) {
	p, err := s.Payments.GetByID(ctx, appt.PaymentID)
	if err != nil {
		return 0, fmt.Errorf("load payment: %w", err)
	}
	return p.Amount, nil
}

// refund credits the patient wallet and marks the payment refunded in one
// transaction.
func (s *Service) refund(ctx context.Context, appt *Appointment, amount int64, amountErr error, reason string) error {
	if amountErr != nil {
		return amountErr
	}
	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.creditRefund(ctx, appt, amount, reason)
	})
}

func (s *Service) creditRefund(ctx context.Context, appt *Appointment, amount int64, reason string) error {
	apptID := appt.ID
	if _, err := s.Ledger.AddTransaction(ctx, wallet.TransactionInput{
		OwnerID:       appt.PatientID,
		OwnerKind:     wallet.OwnerPatient,
		Type:          wallet.Credit,
		Amount:        amount,
		Currency:      s.cfg.Currency,
		Reason:        reason,
		AppointmentID: &apptID,
		Status:        wallet.TxSuccess,
	}); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	if _, err := s.Payments.MarkRefunded(ctx, appt.PaymentID); err != nil {
		return fmt.Errorf("mark payment refunded: %w", err)
	}
	return s.Appointments.UpdateRefund(ctx, appt.ID, RefundEligible, PaymentRefunded)
}

func (s *Service) notifyCancelled(ctx context.Context, appt *Appointment, reason string, refunded int64) error {
	email, err := s.Directory.PatientEmail(ctx, appt.PatientID)
	if err != nil {
		return fmt.Errorf("patient email: %w", err)
	}
	return s.Notifier.SendAppointmentCancellationEmail(ctx, email, appt.SlotStart, reason, refunded, s.cfg.Currency)
}

// RefundDecision applies the cancellation policy: a full refund when the
// patient cancels at least cutoff before the slot starts, nothing otherwise.
func RefundDecision(slotStart, now time.Time, cutoff time.Duration, fee int64) (RefundStatus, int64) {
	if fee <= 0 || slotStart.Sub(now) < cutoff {
		return RefundNotEligible, 0
	}
	return RefundEligible, fee
}

// CancelAppointment lets a patient cancel their own booked appointment. The
// appointment, its slot and any refund change together.
func (s *Service) CancelAppointment(ctx context.Context, patientID, appointmentID uuid.UUID, reason string) (*Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = reasonPatientCancelled
	}

	appt, err := s.loadAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != patientID {
		return nil, ErrForbidden
	}
	if appt.Status != StatusBooked {
		return nil, fmt.Errorf("%w: appointment is %s", ErrInvalidState, appt.Status)
	}
	now := s.now()
	if !appt.SlotStart.After(now) {
		return nil, fmt.Errorf("%w: appointment has already started", ErrInvalidState)
	}

	var paid int64
	if appt.PaymentStatus == PaymentPaid {
		paid, err = s.paidAmount(ctx, appt)
		if err != nil {
			return nil, err
		}
	}
	refund, amount := RefundDecision(appt.SlotStart, now, s.cfg.CancellationCutoff, paid)

	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		cancelled, err := s.Appointments.Cancel(ctx, appt.ID, Cancellation{
			Reason:       reason,
			CancelledAt:  now,
			CancelledBy:  CancelledByPatient,
			RefundStatus: refund,
			RefundAmount: amount,
		})
		if err != nil {
			if errors.Is(err, ErrAppointmentStateConflict) {
				return fmt.Errorf("%w: appointment is no longer booked", ErrInvalidState)
			}
			return fmt.Errorf("cancel appointment: %w", err)
		}

		if _, err := s.Schedules.TransitionSlot(ctx, appt.ScheduleID, appt.SlotID, schedule.SlotBooked, schedule.SlotCancelled, nil, now); err != nil {
			if errors.Is(err, schedule.ErrSlotStateConflict) {
				return fmt.Errorf("%w: slot is no longer booked", ErrInvalidState)
			}
			return fmt.Errorf("cancel slot: %w", err)
		}

		if refund == RefundEligible {
			return s.creditRefund(ctx, cancelled, amount, reasonPatientCancelled)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventAppointmentCancelled, map[string]any{
		"appointment_id": appt.ID.String(),
		"cancelled_by":   string(CancelledByPatient),
		"refund_amount":  amount,
	})
	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("refund_status", string(refund)).
		Int64("refund_amount", amount).
		Msg("appointment cancelled by patient")

	return s.loadAppointment(ctx, appt.ID)
}

func (s *Service) loadAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.Appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}
