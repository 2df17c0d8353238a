package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WalletSourceWithdrawal is the wallet entry source type of an approved withdrawal
const WalletSourceWithdrawal = "withdrawalRequest"

// WalletService moves money in and out of actor wallets
type WalletService struct {
	walletRepo billing.WalletRepository
	entryRepo  billing.WalletEntryRepository
	logger     *zap.Logger
	clock      func() time.Time
}

// NewWalletService creates a new WalletService
func NewWalletService(walletRepo billing.WalletRepository, entryRepo billing.WalletEntryRepository, logger *zap.Logger) *WalletService {
	return &WalletService{
		walletRepo: walletRepo,
		entryRepo:  entryRepo,
		logger:     logger,
		clock:      time.Now,
	}
}

// WalletResult is the outcome of a wallet movement
type WalletResult struct {
	Wallet *billing.Wallet
	Entry  billing.WalletEntry
	Events []shared.DomainEvent `json:"-"`
}

// Withdraw debits a holder's wallet for a withdrawal request and appends the
// wallet entry. It runs in the caller's transaction and does not publish events.
func (s *WalletService) Withdraw(ctx context.Context, holder shared.ActorRef, amount decimal.Decimal, requestID uuid.UUID) (*WalletResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "wallet", "withdraw")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrActor, holder.String(),
		telemetry.SpanAttrAmount, amount.String(),
		telemetry.SpanAttrRequestID, requestID.String(),
	)

	wallet, err := s.walletRepo.FindByHolder(ctx, holder)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	if wallet == nil {
		return nil, billing.ErrWalletNotFound
	}

	entry, err := wallet.Debit(billing.WalletMovement{
		Amount:      amount,
		SourceType:  WalletSourceWithdrawal,
		SourceID:    requestID,
		Description: "Withdrawal request approved",
	}, s.clock())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.walletRepo.SaveWithLock(ctx, wallet); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.entryRepo.Create(ctx, &entry); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save wallet entry: %w", err)
	}

	s.logger.Info("wallet debited",
		zap.String("wallet_id", wallet.ID.String()),
		zap.String("holder", holder.String()),
		zap.String("amount", amount.String()),
		zap.String("balance_after", entry.BalanceAfter.String()),
	)
	return &WalletResult{Wallet: wallet, Entry: entry, Events: wallet.PullDomainEvents()}, nil
}

// Entries lists the movements of a holder's wallet
func (s *WalletService) Entries(ctx context.Context, holder shared.ActorRef) ([]billing.WalletEntry, error) {
	wallet, err := s.walletRepo.FindByHolder(ctx, holder)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	if wallet == nil {
		return nil, billing.ErrWalletNotFound
	}
	return s.entryRepo.FindByWallet(ctx, wallet.ID)
}
