package billing

import (
	"fmt"
	"time"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds the withdrawable balance of one actor (usually a channel partner)
type Wallet struct {
	shared.BaseAggregateRoot
	Holder  shared.ActorRef `json:"holder"`
	Balance decimal.Decimal `json:"balance"`
}

// NewWallet creates an empty wallet for an actor
func NewWallet(holder shared.ActorRef) (*Wallet, error) {
	if err := holder.Validate(); err != nil {
		return nil, err
	}
	return &Wallet{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Holder:            holder,
		Balance:           decimal.Zero,
	}, nil
}

// WalletEntry is one movement on a wallet
type WalletEntry struct {
	ID            uuid.UUID            `json:"id"`
	WalletID      uuid.UUID            `json:"wallet_id"`
	Direction     TransactionDirection `json:"direction"`
	Amount        decimal.Decimal      `json:"amount"`
	BalanceBefore decimal.Decimal      `json:"balance_before"`
	BalanceAfter  decimal.Decimal      `json:"balance_after"`
	SourceType    string               `json:"source_type"`
	SourceID      uuid.UUID            `json:"source_id"`
	Description   string               `json:"description,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// WalletMovement describes a credit or debit
type WalletMovement struct {
	Amount      decimal.Decimal
	SourceType  string
	SourceID    uuid.UUID
	Description string
}

// Credit adds money to the wallet
func (w *Wallet) Credit(m WalletMovement, now time.Time) (WalletEntry, error) {
	if !m.Amount.IsPositive() {
		return WalletEntry{}, shared.NewValidationError("INVALID_AMOUNT", "Credit amount must be a positive number")
	}
	return w.apply(DirectionIncoming, m, w.Balance.Add(m.Amount), now), nil
}

// Debit withdraws money from the wallet; the balance never goes negative
func (w *Wallet) Debit(m WalletMovement, now time.Time) (WalletEntry, error) {
	if !m.Amount.IsPositive() {
		return WalletEntry{}, shared.NewValidationError("INVALID_AMOUNT", "Debit amount must be a positive number")
	}
	if w.Balance.LessThan(m.Amount) {
		return WalletEntry{}, shared.NewInvariantError(shared.ErrInsufficientBalance.Code, fmt.Sprintf(
			"Insufficient wallet balance: available %s, requested %s",
			w.Balance.StringFixed(2), m.Amount.StringFixed(2)))
	}
	entry := w.apply(DirectionOutgoing, m, w.Balance.Sub(m.Amount), now)
	w.AddDomainEvent(NewWalletDebitedEvent(w, entry))
	return entry, nil
}

func (w *Wallet) apply(dir TransactionDirection, m WalletMovement, after decimal.Decimal, now time.Time) WalletEntry {
	entry := WalletEntry{
		ID:            uuid.New(),
		WalletID:      w.ID,
		Direction:     dir,
		Amount:        m.Amount,
		BalanceBefore: w.Balance,
		BalanceAfter:  after,
		SourceType:    m.SourceType,
		SourceID:      m.SourceID,
		Description:   m.Description,
		CreatedAt:     now,
	}
	w.Balance = after
	w.Touch(now)
	return entry
}

// ErrWalletNotFound is returned when an actor has no wallet
var ErrWalletNotFound = shared.NewNotFoundError("WALLET_NOT_FOUND", "Wallet not found")
