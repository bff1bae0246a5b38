package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// WindowRequest describes a doctor's proposed window. Start and End must carry
// their zone; Date is read in the clinic timezone.
type WindowRequest struct {
	DoctorID        uuid.UUID
	ServiceID       uuid.UUID
	Date            time.Time
	Start           time.Time
	End             time.Time
	DurationMinutes int
	// Slots optionally overrides the generated layout, e.g. to mark breaks.
	Slots []Slot
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type Page struct {
	Schedules  []Schedule `json:"schedules"`
	Pagination Pagination `json:"pagination"`
}

type Service struct {
	store Store
	loc   *time.Location
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(store Store, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store: store,
		loc:   loc,
		log:   logger.With().Str("component", "schedule").Logger(),
		now:   time.Now,
	}
}

// Today is the current calendar date in the clinic timezone.
func (s *Service) Today() time.Time {
	return DateOf(s.now(), s.loc)
}

func (s *Service) checkWindow(req WindowRequest) (time.Time, error) {
	if req.DoctorID == uuid.Nil {
		return time.Time{}, fmt.Errorf("%w: doctor_id is required", ErrInvalidInput)
	}
	if req.ServiceID == uuid.Nil {
		return time.Time{}, fmt.Errorf("%w: service_id is required", ErrInvalidInput)
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return time.Time{}, fmt.Errorf("%w: start and end times are required", ErrInvalidInput)
	}
	if !req.End.After(req.Start) {
		return time.Time{}, fmt.Errorf("%w: end time must be after start time", ErrInvalidInput)
	}

	date := DateOf(req.Start, s.loc)
	if !req.Date.IsZero() && !DateOf(req.Date, time.UTC).Equal(date) {
		return time.Time{}, fmt.Errorf("%w: start time does not fall on %s", ErrInvalidInput, req.Date.Format(time.DateOnly))
	}
	if !DateOf(req.End.Add(-time.Nanosecond), s.loc).Equal(date) {
		return time.Time{}, fmt.Errorf("%w: window must not span midnight", ErrInvalidInput)
	}
	if date.Before(s.Today()) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrScheduleInPast, date.Format(time.DateOnly))
	}
	return date, nil
}

// ValidateSchedule checks the window and reports ErrScheduleConflict when it
// overlaps another live schedule of the same doctor and service that day.
func (s *Service) ValidateSchedule(ctx context.Context, req WindowRequest) error {
	date, err := s.checkWindow(req)
	if err != nil {
		return err
	}

	existing, err := s.store.FindOverlapping(ctx, req.DoctorID, req.ServiceID, date, req.Start, req.End)
	if err != nil && !errors.Is(err, ErrScheduleNotFound) {
		return fmt.Errorf("check overlapping schedules: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: %s-%s", ErrScheduleConflict,
			existing.Start.In(s.loc).Format("15:04"), existing.End.In(s.loc).Format("15:04"))
	}
	return nil
}

// PreviewSlots validates the window and returns the slots it would contain.
// Nothing is persisted.
func (s *Service) PreviewSlots(ctx context.Context, req WindowRequest) ([]Slot, error) {
	if err := s.ValidateSchedule(ctx, req); err != nil {
		return nil, err
	}
	return GenerateSlots(req.Start, req.End, req.DurationMinutes)
}

func (s *Service) CreateSchedule(ctx context.Context, req WindowRequest) (*Schedule, error) {
	if err := s.ValidateSchedule(ctx, req); err != nil {
		return nil, err
	}

	slots, err := s.layout(req)
	if err != nil {
		return nil, err
	}

	sched := &Schedule{
		ID:              uuid.New(),
		DoctorID:        req.DoctorID,
		ServiceID:       req.ServiceID,
		Date:            DateOf(req.Start, s.loc),
		Start:           req.Start,
		End:             req.End,
		DurationMinutes: req.DurationMinutes,
		Slots:           slots,
	}

	if err := s.store.Create(ctx, sched); err != nil {
		if errors.Is(err, ErrScheduleConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	s.log.Info().
		Str("schedule_id", sched.ID.String()).
		Str("doctor_id", sched.DoctorID.String()).
		Time("start", sched.Start).
		Int("slots", len(sched.Slots)).
		Msg("schedule created")

	return sched, nil
}

// layout returns generated slots, or the caller's slots after checking them.
// Identifiers and statuses are always assigned here.
func (s *Service) layout(req WindowRequest) ([]Slot, error) {
	if len(req.Slots) == 0 {
		slots, err := GenerateSlots(req.Start, req.End, req.DurationMinutes)
		if err != nil {
			return nil, err
		}
		if len(slots) == 0 {
			return nil, fmt.Errorf("%w: window is shorter than one slot", ErrInvalidInput)
		}
		return slots, nil
	}

	if req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: slot duration must be positive", ErrInvalidInput)
	}
	if err := validateSlotLayout(req.Slots, req.Start, req.End, req.DurationMinutes); err != nil {
		return nil, err
	}

	slots := make([]Slot, len(req.Slots))
	for i, sl := range req.Slots {
		slots[i] = Slot{
			ID:      uuid.New(),
			Start:   sl.Start,
			End:     sl.End,
			Status:  SlotAvailable,
			IsBreak: sl.IsBreak,
		}
	}
	return slots, nil
}

func (s *Service) GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	sched, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sched, nil
}

// ListSchedules returns a doctor's schedules ordered by window start.
func (s *Service) ListSchedules(ctx context.Context, f ListFilter) (*Page, error) {
	if f.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctor_id is required", ErrInvalidInput)
	}
	switch f.Status {
	case "", StatusUpcoming, StatusCompleted:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}
	f.Today = s.Today()

	schedules, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	if schedules == nil {
		schedules = []Schedule{}
	}

	return &Page{
		Schedules: schedules,
		Pagination: Pagination{
			Page:       f.Page,
			Limit:      f.Limit,
			Total:      total,
			TotalPages: (total + f.Limit - 1) / f.Limit,
		},
	}, nil
}

// AvailableSlots lists the bookable slots of a live, non-past schedule.
func (s *Service) AvailableSlots(ctx context.Context, scheduleID uuid.UUID) ([]Slot, error) {
	sched, err := s.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sched.IsCancelled || sched.Date.Before(s.Today()) {
		return []Slot{}, nil
	}

	now := s.now()
	result := []Slot{}
	for _, sl := range sched.Slots {
		if sl.Status == SlotAvailable && !sl.IsBreak && sl.Start.After(now) {
			result = append(result, sl)
		}
	}
	return result, nil
}
