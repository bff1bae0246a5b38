package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/telehealth-booking/internal/config"
	"github.com/hackgods/telehealth-booking/internal/payment"
	redisclient "github.com/hackgods/telehealth-booking/internal/redis"
	"github.com/hackgods/telehealth-booking/internal/schedule"
	"github.com/hackgods/telehealth-booking/internal/wallet"
)

const testSecret = "test_secret"

var errInjected = errors.New("injected failure")

// world is the shared in-memory state behind every fake store. WithinTx
// snapshots it and restores the snapshot when fn fails.
type world struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]*schedule.Schedule
	appts     map[uuid.UUID]*Appointment
	payments  map[string]*payment.Payment
	wallets   map[string]*wallet.Wallet
	fees      map[uuid.UUID]int64
	emails    map[uuid.UUID]string
	failOn    map[string]error

	txMu sync.Mutex
}

func newWorld() *world {
	return &world{
		schedules: map[uuid.UUID]*schedule.Schedule{},
		appts:     map[uuid.UUID]*Appointment{},
		payments:  map[string]*payment.Payment{},
		wallets:   map[string]*wallet.Wallet{},
		fees:      map[uuid.UUID]int64{},
		emails:    map[uuid.UUID]string{},
		failOn:    map[string]error{},
	}
}

// fail must be called with mu held.
func (w *world) fail(op string) error {
	return w.failOn[op]
}

func (w *world) injectFailure(op string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failOn[op] = errInjected
}

type snapshot struct {
	schedules map[uuid.UUID]*schedule.Schedule
	appts     map[uuid.UUID]*Appointment
	payments  map[string]*payment.Payment
	wallets   map[string]*wallet.Wallet
}

func copySchedule(s *schedule.Schedule) *schedule.Schedule {
	c := *s
	c.Slots = append([]schedule.Slot(nil), s.Slots...)
	return &c
}

func copyAppointment(a *Appointment) *Appointment {
	c := *a
	if a.Cancellation != nil {
		cc := *a.Cancellation
		c.Cancellation = &cc
	}
	return &c
}

func copyWallet(wl *wallet.Wallet) *wallet.Wallet {
	c := *wl
	c.Transactions = append([]wallet.Transaction(nil), wl.Transactions...)
	return &c
}

func (w *world) snapshot() snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := snapshot{
		schedules: map[uuid.UUID]*schedule.Schedule{},
		appts:     map[uuid.UUID]*Appointment{},
		payments:  map[string]*payment.Payment{},
		wallets:   map[string]*wallet.Wallet{},
	}
	for k, v := range w.schedules {
		s.schedules[k] = copySchedule(v)
	}
	for k, v := range w.appts {
		s.appts[k] = copyAppointment(v)
	}
	for k, v := range w.payments {
		c := *v
		s.payments[k] = &c
	}
	for k, v := range w.wallets {
		s.wallets[k] = copyWallet(v)
	}
	return s
}

func (w *world) restore(s snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.schedules = s.schedules
	w.appts = s.appts
	w.payments = s.payments
	w.wallets = s.wallets
}

type txFake struct{ w *world }

func (t txFake) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.w.txMu.Lock()
	defer t.w.txMu.Unlock()
	snap := t.w.snapshot()
	if err := fn(ctx); err != nil {
		t.w.restore(snap)
		return err
	}
	return nil
}

// schedules

type scheduleFake struct{ w *world }

func (f scheduleFake) FindOverlapping(context.Context, uuid.UUID, uuid.UUID, time.Time, time.Time, time.Time) (*schedule.Schedule, error) {
	return nil, schedule.ErrScheduleNotFound
}

func (f scheduleFake) Create(_ context.Context, s *schedule.Schedule) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	f.w.schedules[s.ID] = copySchedule(s)
	return nil
}

func (f scheduleFake) GetByID(_ context.Context, id uuid.UUID) (*schedule.Schedule, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	s, ok := f.w.schedules[id]
	if !ok {
		return nil, schedule.ErrScheduleNotFound
	}
	return copySchedule(s), nil
}

func (f scheduleFake) List(context.Context, schedule.ListFilter) ([]schedule.Schedule, int, error) {
	return nil, 0, nil
}

func (f scheduleFake) MarkCancelled(_ context.Context, id uuid.UUID, reason string, at time.Time) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if err := f.w.fail("schedules.MarkCancelled"); err != nil {
		return err
	}
	s, ok := f.w.schedules[id]
	if !ok {
		return schedule.ErrScheduleNotFound
	}
	s.IsCancelled = true
	s.CancelReason = &reason
	s.CancelledAt = &at
	return nil
}

func (f scheduleFake) TransitionSlot(_ context.Context, scheduleID, slotID uuid.UUID, from, to schedule.SlotStatus, heldBy *uuid.UUID, at time.Time) (*schedule.Slot, error) {
	if err := schedule.CheckTransition(from, to); err != nil {
		return nil, err
	}
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	s, ok := f.w.schedules[scheduleID]
	if !ok {
		return nil, schedule.ErrSlotStateConflict
	}
	sl := s.FindSlot(slotID)
	if sl == nil || sl.Status != from {
		return nil, schedule.ErrSlotStateConflict
	}
	sl.Status = to
	switch to {
	case schedule.SlotPending:
		t := at
		sl.PendingSince = &t
		sl.HeldBy = heldBy
	case schedule.SlotAvailable:
		sl.PendingSince = nil
		sl.HeldBy = nil
	default:
		if heldBy != nil {
			sl.HeldBy = heldBy
		}
	}
	c := *sl
	return &c, nil
}

func (f scheduleFake) CloseOpenSlots(_ context.Context, scheduleID uuid.UUID, _ time.Time) (int, error) {
	return f.cancelWhere(scheduleID, schedule.SlotAvailable, schedule.SlotPending)
}

func (f scheduleFake) CancelSlots(_ context.Context, scheduleID uuid.UUID, _ time.Time) (int, error) {
	return f.cancelWhere(scheduleID, schedule.SlotAvailable, schedule.SlotPending, schedule.SlotBooked)
}

func (f scheduleFake) cancelWhere(scheduleID uuid.UUID, statuses ...schedule.SlotStatus) (int, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	s, ok := f.w.schedules[scheduleID]
	if !ok {
		return 0, schedule.ErrScheduleNotFound
	}
	n := 0
	for i := range s.Slots {
		if slices.Contains(statuses, s.Slots[i].Status) {
			s.Slots[i].Status = schedule.SlotCancelled
			n++
		}
	}
	return n, nil
}

func (f scheduleFake) FindExpiredPending(_ context.Context, cutoff time.Time) ([]schedule.SlotRef, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	var refs []schedule.SlotRef
	for _, s := range f.w.schedules {
		for _, sl := range s.Slots {
			if sl.Status == schedule.SlotPending && sl.PendingSince != nil && sl.PendingSince.Before(cutoff) {
				refs = append(refs, schedule.SlotRef{ScheduleID: s.ID, SlotID: sl.ID, PendingSince: *sl.PendingSince})
			}
		}
	}
	return refs, nil
}

func (f scheduleFake) ReleaseExpired(_ context.Context, scheduleID, slotID uuid.UUID, cutoff time.Time) (bool, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	s, ok := f.w.schedules[scheduleID]
	if !ok {
		return false, nil
	}
	sl := s.FindSlot(slotID)
	if sl == nil || sl.Status != schedule.SlotPending || sl.PendingSince == nil || !sl.PendingSince.Before(cutoff) {
		return false, nil
	}
	sl.Status = schedule.SlotAvailable
	sl.PendingSince = nil
	sl.HeldBy = nil
	return true, nil
}

// appointments

type apptFake struct{ w *world }

func (f apptFake) Create(_ context.Context, a *Appointment) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if err := f.w.fail("appointments.Create"); err != nil {
		return err
	}
	for _, existing := range f.w.appts {
		if existing.ScheduleID == a.ScheduleID && existing.SlotID == a.SlotID &&
			existing.Status != StatusCancelled && existing.Status != StatusRescheduled {
			return ErrSlotUnavailable
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	f.w.appts[a.ID] = copyAppointment(a)
	return nil
}

func (f apptFake) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	a, ok := f.w.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return copyAppointment(a), nil
}

func (f apptFake) GetByPaymentID(_ context.Context, paymentID uuid.UUID) (*Appointment, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	var latest *Appointment
	for _, a := range f.w.appts {
		if a.PaymentID == paymentID && (latest == nil || a.CreatedAt.After(latest.CreatedAt)) {
			latest = a
		}
	}
	if latest == nil {
		return nil, ErrAppointmentNotFound
	}
	return copyAppointment(latest), nil
}

func (f apptFake) filter(match func(*Appointment) bool) []Appointment {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	var out []Appointment
	for _, a := range f.w.appts {
		if match(a) {
			out = append(out, *copyAppointment(a))
		}
	}
	return out
}

func (f apptFake) ListByPatient(_ context.Context, patientID uuid.UUID, status AppointmentStatus) ([]Appointment, error) {
	return f.filter(func(a *Appointment) bool {
		return a.PatientID == patientID && (status == "" || a.Status == status)
	}), nil
}

func (f apptFake) ListBySchedule(_ context.Context, scheduleID uuid.UUID, status AppointmentStatus) ([]Appointment, error) {
	return f.filter(func(a *Appointment) bool {
		return a.ScheduleID == scheduleID && (status == "" || a.Status == status)
	}), nil
}

func (f apptFake) UpdateStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	a, ok := f.w.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentStateConflict
	}
	a.Status = to
	return copyAppointment(a), nil
}

func (f apptFake) Cancel(_ context.Context, id uuid.UUID, c Cancellation) (*Appointment, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if err := f.w.fail("appointments.Cancel"); err != nil {
		return nil, err
	}
	a, ok := f.w.appts[id]
	if !ok || a.Status != StatusBooked {
		return nil, ErrAppointmentStateConflict
	}
	a.Status = StatusCancelled
	a.Cancellation = &c
	return copyAppointment(a), nil
}

func (f apptFake) UpdateRefund(_ context.Context, id uuid.UUID, refund RefundStatus, paymentStatus PaymentStatus) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	a, ok := f.w.appts[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	if a.Cancellation == nil {
		a.Cancellation = &Cancellation{}
	}
	a.Cancellation.RefundStatus = refund
	a.PaymentStatus = paymentStatus
	return nil
}

func (f apptFake) Complete(_ context.Context, id uuid.UUID, prescriptionID uuid.UUID, at time.Time) (*Appointment, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	a, ok := f.w.appts[id]
	if !ok || a.Status != StatusBooked {
		return nil, ErrAppointmentStateConflict
	}
	a.Status = StatusCompleted
	a.PrescriptionID = &prescriptionID
	a.UpdatedAt = at
	return copyAppointment(a), nil
}

// payments

type paymentFake struct{ w *world }

func (f paymentFake) Create(_ context.Context, p *payment.Payment) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	c := *p
	f.w.payments[p.OrderID] = &c
	return nil
}

func (f paymentFake) GetByOrderID(_ context.Context, orderID string) (*payment.Payment, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	p, ok := f.w.payments[orderID]
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}
	c := *p
	return &c, nil
}

func (f paymentFake) GetByID(_ context.Context, id uuid.UUID) (*payment.Payment, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	for _, p := range f.w.payments {
		if p.ID == id {
			c := *p
			return &c, nil
		}
	}
	return nil, payment.ErrPaymentNotFound
}

func (f paymentFake) move(orderID string, from, to payment.Status) (*payment.Payment, error) {
	p, ok := f.w.payments[orderID]
	if !ok || p.Status != from {
		return nil, payment.ErrPaymentStateConflict
	}
	p.Status = to
	c := *p
	return &c, nil
}

func (f paymentFake) MarkPaid(_ context.Context, orderID, gatewayPaymentID, signature string) (*payment.Payment, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if err := f.w.fail("payments.MarkPaid"); err != nil {
		return nil, err
	}
	p, err := f.move(orderID, payment.StatusCreated, payment.StatusPaid)
	if err != nil {
		return nil, err
	}
	stored := f.w.payments[orderID]
	stored.GatewayPaymentID = &gatewayPaymentID
	stored.Signature = &signature
	return p, nil
}

func (f paymentFake) MarkFailed(_ context.Context, orderID string) (*payment.Payment, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	return f.move(orderID, payment.StatusCreated, payment.StatusFailed)
}

func (f paymentFake) MarkRefunded(_ context.Context, id uuid.UUID) (*payment.Payment, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	for orderID, p := range f.w.payments {
		if p.ID == id {
			return f.move(orderID, payment.StatusPaid, payment.StatusRefund)
		}
	}
	return nil, payment.ErrPaymentStateConflict
}

// ledger

type ledgerFake struct{ w *world }

func walletKey(ownerID uuid.UUID, kind wallet.OwnerKind) string {
	return string(kind) + ":" + ownerID.String()
}

func (f ledgerFake) AddTransaction(_ context.Context, in wallet.TransactionInput) (*wallet.Transaction, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if err := f.w.fail("ledger.AddTransaction"); err != nil {
		return nil, err
	}
	key := walletKey(in.OwnerID, in.OwnerKind)
	wl, ok := f.w.wallets[key]
	if !ok {
		wl = &wallet.Wallet{OwnerID: in.OwnerID, OwnerKind: in.OwnerKind, Currency: in.Currency}
		f.w.wallets[key] = wl
	}
	if wl.Balance+in.BalanceDelta() < 0 {
		return nil, wallet.ErrInsufficientBalance
	}
	tx := wallet.Transaction{
		ID:            uuid.New(),
		Type:          in.Type,
		Amount:        in.Amount,
		Reason:        in.Reason,
		AppointmentID: in.AppointmentID,
		Status:        in.Status,
		CreatedAt:     time.Now(),
	}
	wl.Transactions = append(wl.Transactions, tx)
	wl.Balance += in.BalanceDelta()
	return &tx, nil
}

func (f ledgerFake) GetWallet(_ context.Context, ownerID uuid.UUID, kind wallet.OwnerKind) (*wallet.Wallet, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	wl, ok := f.w.wallets[walletKey(ownerID, kind)]
	if !ok {
		return &wallet.Wallet{OwnerID: ownerID, OwnerKind: kind, Currency: "INR", Transactions: []wallet.Transaction{}}, nil
	}
	return copyWallet(wl), nil
}

// directory

type directoryFake struct{ w *world }

func (f directoryFake) ServiceFee(_ context.Context, serviceID uuid.UUID) (int64, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	fee, ok := f.w.fees[serviceID]
	if !ok {
		return 0, ErrServiceNotFound
	}
	return fee, nil
}

func (f directoryFake) PatientEmail(_ context.Context, patientID uuid.UUID) (string, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	email, ok := f.w.emails[patientID]
	if !ok {
		return "", ErrPatientNotFound
	}
	return email, nil
}

// gateway

type gatewayFake struct {
	seq      atomic.Int64
	mu       sync.Mutex
	payments map[string]*payment.GatewayPayment
	orderErr error
}

func newGatewayFake() *gatewayFake {
	return &gatewayFake{payments: map[string]*payment.GatewayPayment{}}
}

func (g *gatewayFake) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*payment.Order, error) {
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	n := g.seq.Add(1)
	return &payment.Order{
		ID:       fmt.Sprintf("order_%d", n),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *gatewayFake) FetchPayment(_ context.Context, paymentID string) (*payment.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.payments[paymentID]; ok {
		c := *p
		return &c, nil
	}
	return &payment.GatewayPayment{ID: paymentID, Status: "captured"}, nil
}

// notifier, locker, publisher

type sentEmail struct {
	To       string
	At       time.Time
	Reason   string
	Refunded int64
}

type notifierFake struct {
	mu     sync.Mutex
	sent   []sentEmail
	failTo map[string]bool
	// onSend runs before each email is recorded, outside the lock.
	onSend func(to string)
}

func (n *notifierFake) SendAppointmentCancellationEmail(ctx context.Context, to string, at time.Time, reason string, refunded int64, _ string) error {
	if n.onSend != nil {
		n.onSend(to)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failTo[to] {
		return errInjected
	}
	n.sent = append(n.sent, sentEmail{To: to, At: at, Reason: reason, Refunded: refunded})
	return nil
}

type lockerFake struct {
	mu   sync.Mutex
	busy map[string]bool
	used []string
}

func (l *lockerFake) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.busy[key] {
		l.mu.Unlock()
		return redisclient.ErrLockNotAcquired
	}
	l.used = append(l.used, key)
	l.mu.Unlock()
	return fn(ctx)
}

type publisherFake struct {
	mu     sync.Mutex
	events []string
}

func (p *publisherFake) Publish(_ context.Context, eventType string, _ map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *publisherFake) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == eventType {
			n++
		}
	}
	return n
}

// harness

type harness struct {
	svc       *Service
	w         *world
	gateway   *gatewayFake
	notifier  *notifierFake
	locker    *lockerFake
	events    *publisherFake
	loc       *time.Location
	now       time.Time
	doctorID  uuid.UUID
	serviceID uuid.UUID
	fee       int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	h := &harness{
		w:         newWorld(),
		gateway:   newGatewayFake(),
		notifier:  &notifierFake{failTo: map[string]bool{}},
		locker:    &lockerFake{busy: map[string]bool{}},
		events:    &publisherFake{},
		loc:       loc,
		now:       time.Date(2030, 1, 14, 10, 0, 0, 0, loc),
		doctorID:  uuid.New(),
		serviceID: uuid.New(),
		fee:       50000,
	}
	h.w.fees[h.serviceID] = h.fee

	cfg := config.Config{
		Location:           loc,
		Currency:           "INR",
		PaymentKeySecret:   testSecret,
		SlotHoldTTL:        10 * time.Minute,
		CancellationCutoff: 24 * time.Hour,
	}
	h.svc = NewService(Deps{
		Schedules:    scheduleFake{h.w},
		Appointments: apptFake{h.w},
		Payments:     paymentFake{h.w},
		Gateway:      h.gateway,
		Ledger:       ledgerFake{h.w},
		Directory:    directoryFake{h.w},
		Notifier:     h.notifier,
		Tx:           txFake{h.w},
		Locker:       h.locker,
		Events:       h.events,
	}, cfg, zerolog.Nop())
	h.svc.now = func() time.Time { return h.now }
	return h
}

// addSchedule creates a schedule on 2030-01-<day> from 09:00 to 10:00 with 20
// minute slots.
func (h *harness) addSchedule(t *testing.T, day int) *schedule.Schedule {
	t.Helper()
	start := time.Date(2030, 1, day, 9, 0, 0, 0, h.loc)
	end := time.Date(2030, 1, day, 10, 0, 0, 0, h.loc)
	slots, err := schedule.GenerateSlots(start, end, 20)
	require.NoError(t, err)

	s := &schedule.Schedule{
		ID:              uuid.New(),
		DoctorID:        h.doctorID,
		ServiceID:       h.serviceID,
		Date:            schedule.DateOf(start, h.loc),
		Start:           start,
		End:             end,
		DurationMinutes: 20,
		Slots:           slots,
	}
	require.NoError(t, scheduleFake{h.w}.Create(context.Background(), s))
	return s
}

func (h *harness) addPatient(email string) uuid.UUID {
	id := uuid.New()
	h.w.mu.Lock()
	h.w.emails[id] = email
	h.w.mu.Unlock()
	return id
}

func (h *harness) slot(t *testing.T, scheduleID, slotID uuid.UUID) schedule.Slot {
	t.Helper()
	s, err := scheduleFake{h.w}.GetByID(context.Background(), scheduleID)
	require.NoError(t, err)
	sl := s.FindSlot(slotID)
	require.NotNil(t, sl)
	return *sl
}

func (h *harness) paymentFor(t *testing.T, orderID string) payment.Payment {
	t.Helper()
	p, err := paymentFake{h.w}.GetByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	return *p
}

func (h *harness) appointmentCount() int {
	h.w.mu.Lock()
	defer h.w.mu.Unlock()
	return len(h.w.appts)
}

func (h *harness) balance(ownerID uuid.UUID, kind wallet.OwnerKind) int64 {
	wl, _ := ledgerFake{h.w}.GetWallet(context.Background(), ownerID, kind)
	return wl.Balance
}

// book runs both phases for a patient and returns the confirmation.
func (h *harness) book(t *testing.T, patientID uuid.UUID, s *schedule.Schedule, slotIdx int) *Confirmation {
	t.Helper()
	ctx := context.Background()
	slotID := s.Slots[slotIdx].ID
	order, err := h.svc.InitiateBooking(ctx, patientID, s.ID, slotID)
	require.NoError(t, err)

	payID := "pay_" + order.OrderID
	conf, err := h.svc.VerifyAndBook(ctx, VerifyRequest{
		PatientID:        patientID,
		OrderID:          order.OrderID,
		GatewayPaymentID: payID,
		Signature:        payment.Sign(testSecret, order.OrderID, payID),
		ScheduleID:       s.ID,
		SlotID:           slotID,
	})
	require.NoError(t, err)
	return conf
}
