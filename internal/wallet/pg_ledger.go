package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/telehealth-booking/internal/db"
)

type PgLedger struct {
	pool     *pgxpool.Pool
	currency string
}

func NewPgLedger(pool *pgxpool.Pool, currency string) *PgLedger {
	return &PgLedger{pool: pool, currency: currency}
}

// AddTransaction creates the wallet on first use, locks it and appends the
// transaction together with the balance change. It joins the caller's
// transaction when there is one.
func (l *PgLedger) AddTransaction(ctx context.Context, in TransactionInput) (*Transaction, error) {
	if in.Currency == "" {
		in.Currency = l.currency
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var result *Transaction
	err := db.WithTx(ctx, l.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, l.pool)

		if _, err := q.Exec(ctx, `
			INSERT INTO wallets (id, owner_id, owner_kind, balance, currency, created_at, updated_at)
			VALUES ($1, $2, $3, 0, $4, now(), now())
			ON CONFLICT (owner_id, owner_kind) DO NOTHING
		`, uuid.New(), in.OwnerID, string(in.OwnerKind), in.Currency); err != nil {
			return fmt.Errorf("ensure wallet: %w", err)
		}

		var walletID uuid.UUID
		var balance int64
		if err := q.QueryRow(ctx, `
			SELECT id, balance
			FROM wallets
			WHERE owner_id = $1 AND owner_kind = $2
			FOR UPDATE
		`, in.OwnerID, string(in.OwnerKind)).Scan(&walletID, &balance); err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}

		delta := in.BalanceDelta()
		if balance+delta < 0 {
			return ErrInsufficientBalance
		}

		tx := Transaction{
			ID:            uuid.New(),
			Type:          in.Type,
			Amount:        in.Amount,
			Reason:        in.Reason,
			AppointmentID: in.AppointmentID,
			Status:        in.Status,
		}
		if err := q.QueryRow(ctx, `
			INSERT INTO wallet_transactions (id, wallet_id, type, amount, reason, appointment_id, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			RETURNING created_at
		`, tx.ID, walletID, string(tx.Type), tx.Amount, tx.Reason, tx.AppointmentID, string(tx.Status)).Scan(&tx.CreatedAt); err != nil {
			return fmt.Errorf("insert wallet transaction: %w", err)
		}

		if delta != 0 {
			if _, err := q.Exec(ctx, `
				UPDATE wallets
				SET balance = balance + $2,
				    updated_at = now()
				WHERE id = $1
			`, walletID, delta); err != nil {
				return fmt.Errorf("update wallet balance: %w", err)
			}
		}

		result = &tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetWallet returns the balance and the 50 most recent transactions. An owner
// without a wallet gets an empty one.
func (l *PgLedger) GetWallet(ctx context.Context, ownerID uuid.UUID, kind OwnerKind) (*Wallet, error) {
	q := db.Conn(ctx, l.pool)

	w := Wallet{OwnerID: ownerID, OwnerKind: kind, Currency: l.currency, Transactions: []Transaction{}}
	var walletID uuid.UUID
	err := q.QueryRow(ctx, `
		SELECT id, balance, currency
		FROM wallets
		WHERE owner_id = $1 AND owner_kind = $2
	`, ownerID, string(kind)).Scan(&walletID, &w.Balance, &w.Currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &w, nil
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, type, amount, reason, appointment_id, status, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT 50
	`, walletID)
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.Type, &tx.Amount, &tx.Reason, &tx.AppointmentID, &tx.Status, &tx.CreatedAt); err != nil {
			return nil, err
		}
		w.Transactions = append(w.Transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &w, nil
}
