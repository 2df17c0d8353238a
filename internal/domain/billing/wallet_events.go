package billing

import (
	"github.com/erp/projectbilling/internal/domain/shared"
)

const (
	EventTypeWalletDebited = "WalletDebited"
	AggregateTypeWallet    = "Wallet"
)

// WalletDebitedEvent is raised when money leaves a wallet
type WalletDebitedEvent struct {
	shared.BaseDomainEvent
	Holder shared.ActorRef `json:"holder"`
	Entry  WalletEntry     `json:"entry"`
}

// NewWalletDebitedEvent creates a new WalletDebitedEvent
func NewWalletDebitedEvent(w *Wallet, entry WalletEntry) *WalletDebitedEvent {
	return &WalletDebitedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeWalletDebited, AggregateTypeWallet, w.ID),
		Holder:          w.Holder,
		Entry:           entry,
	}
}
