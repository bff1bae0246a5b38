package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OwnerKind string

const (
	OwnerPatient OwnerKind = "patient"
	OwnerDoctor  OwnerKind = "doctor"
)

type TxType string

const (
	Credit TxType = "credit"
	Debit  TxType = "debit"
)

type TxStatus string

const (
	TxSuccess TxStatus = "success"
	TxPending TxStatus = "pending"
	TxFailed  TxStatus = "failed"
)

var (
	ErrInvalidTransaction  = errors.New("invalid wallet transaction")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
)

type Transaction struct {
	ID            uuid.UUID  `json:"id"`
	Type          TxType     `json:"type"`
	Amount        int64      `json:"amount"`
	Reason        string     `json:"reason"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	Status        TxStatus   `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}

type Wallet struct {
	OwnerID      uuid.UUID     `json:"owner_id"`
	OwnerKind    OwnerKind     `json:"owner_kind"`
	Balance      int64         `json:"balance"`
	Currency     string        `json:"currency"`
	Transactions []Transaction `json:"transactions"`
}

type TransactionInput struct {
	OwnerID       uuid.UUID
	OwnerKind     OwnerKind
	Type          TxType
	Amount        int64
	Currency      string
	Reason        string
	AppointmentID *uuid.UUID
	Status        TxStatus
}

// Ledger is an append-only credit/debit log per owner. The balance always
// equals the signed sum of successful transactions.
type Ledger interface {
	AddTransaction(ctx context.Context, in TransactionInput) (*Transaction, error)
	GetWallet(ctx context.Context, ownerID uuid.UUID, kind OwnerKind) (*Wallet, error)
}

func (in TransactionInput) Validate() error {
	if in.OwnerID == uuid.Nil {
		return fmt.Errorf("%w: owner is required", ErrInvalidTransaction)
	}
	switch in.OwnerKind {
	case OwnerPatient, OwnerDoctor:
	default:
		return fmt.Errorf("%w: unknown owner kind %q", ErrInvalidTransaction, in.OwnerKind)
	}
	switch in.Type {
	case Credit, Debit:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, in.Type)
	}
	switch in.Status {
	case TxSuccess, TxPending, TxFailed:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransaction, in.Status)
	}
	if in.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}
	if in.Reason == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidTransaction)
	}
	return nil
}

// BalanceDelta is what a transaction adds to the balance. Only successful
// transactions count.
func (in TransactionInput) BalanceDelta() int64 {
	if in.Status != TxSuccess {
		return 0
	}
	if in.Type == Debit {
		return -in.Amount
	}
	return in.Amount
}
