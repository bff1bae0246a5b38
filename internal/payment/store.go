package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/telehealth-booking/internal/db"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentStateConflict = errors.New("payment is not in the expected state")
)

type Store interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)
	// MarkPaid moves created -> paid and records the gateway fields.
	MarkPaid(ctx context.Context, orderID, gatewayPaymentID, signature string) (*Payment, error)
	// MarkFailed moves created -> failed.
	MarkFailed(ctx context.Context, orderID string) (*Payment, error)
	// MarkRefunded moves paid -> refund.
	MarkRefunded(ctx context.Context, id uuid.UUID) (*Payment, error)
}

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const paymentCols = `id, order_id, gateway_payment_id, gateway_signature, amount, currency, status,
	patient_id, schedule_id, slot_id, held_at, created_at, updated_at`

func scanPayment(row pgx.Row, notFound error) (*Payment, error) {
	var p Payment

	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.GatewayPaymentID,
		&p.Signature,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.PatientID,
		&p.ScheduleID,
		&p.SlotID,
		&p.HeldAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *PgStore) Create(ctx context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusCreated
	}

	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO payments (id, order_id, amount, currency, status, patient_id, schedule_id, slot_id, held_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING created_at, updated_at
	`, p.ID, p.OrderID, p.Amount, p.Currency, string(p.Status), p.PatientID, p.ScheduleID, p.SlotID, p.HeldAt).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PgStore) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+paymentCols+`
		FROM payments
		WHERE id = $1
	`, id)
	return scanPayment(row, ErrPaymentNotFound)
}

func (r *PgStore) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+paymentCols+`
		FROM payments
		WHERE order_id = $1
	`, orderID)
	return scanPayment(row, ErrPaymentNotFound)
}

func (r *PgStore) MarkPaid(ctx context.Context, orderID, gatewayPaymentID, signature string) (*Payment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE payments
		SET status = 'paid',
		    gateway_payment_id = $2,
		    gateway_signature = $3,
		    updated_at = now()
		WHERE order_id = $1
		  AND status = 'created'
		RETURNING `+paymentCols, orderID, gatewayPaymentID, signature)
	return scanPayment(row, ErrPaymentStateConflict)
}

func (r *PgStore) MarkFailed(ctx context.Context, orderID string) (*Payment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE payments
		SET status = 'failed',
		    updated_at = now()
		WHERE order_id = $1
		  AND status = 'created'
		RETURNING `+paymentCols, orderID)
	return scanPayment(row, ErrPaymentStateConflict)
}

func (r *PgStore) MarkRefunded(ctx context.Context, id uuid.UUID) (*Payment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE payments
		SET status = 'refund',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'paid'
		RETURNING `+paymentCols, id)
	return scanPayment(row, ErrPaymentStateConflict)
}
