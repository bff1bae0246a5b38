package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-booking/internal/schedule"
	"github.com/hackgods/telehealth-booking/internal/wallet"
)

// CompleteAppointment closes a consultation with its prescription and
// credits the doctor's earnings.
func (s *Service) CompleteAppointment(ctx context.Context, doctorID, appointmentID, prescriptionID uuid.UUID) (*Appointment, error) {
	if prescriptionID == uuid.Nil {
		return nil, fmt.Errorf("%w: prescription_id is required", schedule.ErrInvalidInput)
	}

	appt, err := s.loadAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.DoctorID != doctorID {
		return nil, ErrForbidden
	}
	if appt.Status != StatusBooked {
		return nil, fmt.Errorf("%w: appointment is %s", ErrInvalidState, appt.Status)
	}

	var fee int64
	if appt.PaymentStatus == PaymentPaid {
		fee, err = s.paidAmount(ctx, appt)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	var completed *Appointment
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		completed, err = s.Appointments.Complete(ctx, appt.ID, prescriptionID, now)
		if err != nil {
			if errors.Is(err, ErrAppointmentStateConflict) {
				return fmt.Errorf("%w: appointment is no longer booked", ErrInvalidState)
			}
			return fmt.Errorf("complete appointment: %w", err)
		}

		if _, err := s.Schedules.TransitionSlot(ctx, appt.ScheduleID, appt.SlotID, schedule.SlotBooked, schedule.SlotCompleted, nil, now); err != nil {
			if errors.Is(err, schedule.ErrSlotStateConflict) {
				return fmt.Errorf("%w: slot is no longer booked", ErrInvalidState)
			}
			return fmt.Errorf("complete slot: %w", err)
		}

		if fee <= 0 {
			return nil
		}
		apptID := appt.ID
		if _, err := s.Ledger.AddTransaction(ctx, wallet.TransactionInput{
			OwnerID:       appt.DoctorID,
			OwnerKind:     wallet.OwnerDoctor,
			Type:          wallet.Credit,
			Amount:        fee,
			Currency:      s.cfg.Currency,
			Reason:        reasonConsultationDone,
			AppointmentID: &apptID,
			Status:        wallet.TxSuccess,
		}); err != nil {
			return fmt.Errorf("credit doctor wallet: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventAppointmentCompleted, map[string]any{
		"appointment_id":  appt.ID.String(),
		"prescription_id": prescriptionID.String(),
	})
	return completed, nil
}

// RescheduleAppointment moves a patient's booked appointment to an available
// slot of the same doctor and service. The old appointment and slot are kept
// as rescheduled and the payment carries over.
func (s *Service) RescheduleAppointment(ctx context.Context, patientID, appointmentID, newScheduleID, newSlotID uuid.UUID) (*Appointment, error) {
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
	if appt.ScheduleID == newScheduleID && appt.SlotID == newSlotID {
		return nil, fmt.Errorf("%w: appointment is already in that slot", ErrInvalidState)
	}

	target, err := s.Schedules.GetByID(ctx, newScheduleID)
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	if target.DoctorID != appt.DoctorID || target.ServiceID != appt.ServiceID {
		return nil, fmt.Errorf("%w: target schedule is for a different doctor or service", ErrInvalidState)
	}
	slot := target.FindSlot(newSlotID)
	if slot == nil {
		return nil, schedule.ErrSlotNotFound
	}
	if target.IsCancelled || slot.IsBreak || slot.Status != schedule.SlotAvailable || !slot.Start.After(now) {
		return nil, ErrSlotUnavailable
	}

	moved := &Appointment{
		ID:              uuid.New(),
		PatientID:       appt.PatientID,
		DoctorID:        appt.DoctorID,
		ServiceID:       appt.ServiceID,
		ScheduleID:      target.ID,
		SlotID:          slot.ID,
		Date:            target.Date,
		SlotStart:       slot.Start,
		SlotEnd:         slot.End,
		Status:          StatusBooked,
		PaymentStatus:   appt.PaymentStatus,
		PaymentID:       appt.PaymentID,
		RescheduledFrom: &appt.ID,
	}

	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.Schedules.TransitionSlot(ctx, target.ID, slot.ID, schedule.SlotAvailable, schedule.SlotBooked, &patientID, now); err != nil {
			if errors.Is(err, schedule.ErrSlotStateConflict) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("book new slot: %w", err)
		}

		if _, err := s.Appointments.UpdateStatus(ctx, appt.ID, StatusBooked, StatusRescheduled); err != nil {
			if errors.Is(err, ErrAppointmentStateConflict) {
				return fmt.Errorf("%w: appointment is no longer booked", ErrInvalidState)
			}
			return fmt.Errorf("mark appointment rescheduled: %w", err)
		}

		if _, err := s.Schedules.TransitionSlot(ctx, appt.ScheduleID, appt.SlotID, schedule.SlotBooked, schedule.SlotRescheduled, nil, now); err != nil {
			if errors.Is(err, schedule.ErrSlotStateConflict) {
				return fmt.Errorf("%w: old slot is no longer booked", ErrInvalidState)
			}
			return fmt.Errorf("release old slot: %w", err)
		}

		if err := s.Appointments.Create(ctx, moved); err != nil {
			if errors.Is(err, ErrSlotUnavailable) {
				return err
			}
			return fmt.Errorf("create rescheduled appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventAppointmentMoved, map[string]any{
		"appointment_id":   moved.ID.String(),
		"rescheduled_from": appt.ID.String(),
		"schedule_id":      target.ID.String(),
		"slot_id":          slot.ID.String(),
	})
	return moved, nil
}
