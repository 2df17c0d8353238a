package approval

import (
	"context"

	billingapp "github.com/erp/projectbilling/internal/application/billing"
	"github.com/erp/projectbilling/internal/domain/approval"
	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/domain/shared"
)

// Response is the answer being applied to a request
type Response struct {
	Type    approval.ResponseType
	Message string
	Actor   shared.ActorRef
}

// HandlerOutcome is what a side effect handler did
type HandlerOutcome struct {
	SideEffects billingapp.SideEffects
	Events      []shared.DomainEvent
}

// SideEffectHandler applies the financial side effect of one request type.
// Apply runs before the response is recorded, inside the respond transaction,
// and must fail with an already handled error when its effect is already in
// place.
type SideEffectHandler interface {
	RequestType() approval.RequestType
	Apply(ctx context.Context, req *approval.Request, resp Response) (*HandlerOutcome, error)
}

// PaymentRecoveryHandler approves or rejects the payment receipt a request refers to
type PaymentRecoveryHandler struct {
	receipts *billingapp.PaymentReceiptService
}

// NewPaymentRecoveryHandler creates a new PaymentRecoveryHandler
func NewPaymentRecoveryHandler(receipts *billingapp.PaymentReceiptService) *PaymentRecoveryHandler {
	return &PaymentRecoveryHandler{receipts: receipts}
}

// RequestType implements SideEffectHandler
func (h *PaymentRecoveryHandler) RequestType() approval.RequestType {
	return approval.RequestTypePaymentRecovery
}

// Apply implements SideEffectHandler
func (h *PaymentRecoveryHandler) Apply(ctx context.Context, req *approval.Request, resp Response) (*HandlerOutcome, error) {
	var decision billingapp.ReceiptDecision
	switch resp.Type {
	case approval.ResponseApprove:
		decision = billingapp.ReceiptDecisionApprove
	case approval.ResponseReject:
		decision = billingapp.ReceiptDecisionReject
	default:
		return &HandlerOutcome{}, nil
	}

	result, err := h.receipts.ApplyVerification(ctx, billingapp.VerifyReceiptInput{
		ReceiptID: *req.Metadata.PaymentReceiptID,
		Decision:  decision,
		Reason:    resp.Message,
		Verifier:  resp.Actor,
	})
	if err != nil {
		return nil, err
	}
	if result.Ledger != nil {
		req.RecordLedgerTransaction(result.Ledger.Transaction.ID)
	}
	return &HandlerOutcome{SideEffects: result.SideEffects, Events: result.Events}, nil
}

// InstallmentApprovalHandler marks the referenced installment paid on approval
type InstallmentApprovalHandler struct {
	installments *billingapp.InstallmentService
}

// NewInstallmentApprovalHandler creates a new InstallmentApprovalHandler
func NewInstallmentApprovalHandler(installments *billingapp.InstallmentService) *InstallmentApprovalHandler {
	return &InstallmentApprovalHandler{installments: installments}
}

// RequestType implements SideEffectHandler
func (h *InstallmentApprovalHandler) RequestType() approval.RequestType {
	return approval.RequestTypeApproval
}

// Apply implements SideEffectHandler
func (h *InstallmentApprovalHandler) Apply(ctx context.Context, req *approval.Request, resp Response) (*HandlerOutcome, error) {
	if resp.Type != approval.ResponseApprove {
		return &HandlerOutcome{}, nil
	}
	result, err := h.installments.ApplyInstallmentPayment(ctx, *req.Metadata.ProjectID, *req.Metadata.InstallmentID, resp.Actor)
	if err != nil {
		return nil, err
	}
	for _, l := range result.Ledger {
		req.RecordLedgerTransaction(l.Transaction.ID)
	}
	return &HandlerOutcome{SideEffects: result.SideEffects, Events: result.Events}, nil
}

// WithdrawalHandler debits the requester's wallet on approval
type WithdrawalHandler struct {
	wallets *billingapp.WalletService
}

// NewWithdrawalHandler creates a new WithdrawalHandler
func NewWithdrawalHandler(wallets *billingapp.WalletService) *WithdrawalHandler {
	return &WithdrawalHandler{wallets: wallets}
}

// RequestType implements SideEffectHandler
func (h *WithdrawalHandler) RequestType() approval.RequestType {
	return approval.RequestTypeWithdrawal
}

// Apply implements SideEffectHandler
func (h *WithdrawalHandler) Apply(ctx context.Context, req *approval.Request, resp Response) (*HandlerOutcome, error) {
	if resp.Type != approval.ResponseApprove {
		return &HandlerOutcome{}, nil
	}
	if req.Metadata.WalletEntryRecorded != nil {
		return nil, shared.NewAlreadyHandledError("WITHDRAWAL_APPLIED", "Withdrawal has already been debited")
	}
	result, err := h.wallets.Withdraw(ctx, req.RequestedBy, *req.Amount, req.ID)
	if err != nil {
		return nil, err
	}
	req.RecordWalletEntry(result.Entry.ID)
	return &HandlerOutcome{Events: result.Events}, nil
}

// IncreaseCostHandler raises the project's total cost on approval
type IncreaseCostHandler struct {
	costs *billingapp.CostRevisionService
}

// NewIncreaseCostHandler creates a new IncreaseCostHandler
func NewIncreaseCostHandler(costs *billingapp.CostRevisionService) *IncreaseCostHandler {
	return &IncreaseCostHandler{costs: costs}
}

// RequestType implements SideEffectHandler
func (h *IncreaseCostHandler) RequestType() approval.RequestType {
	return approval.RequestTypeIncreaseCost
}

// Apply implements SideEffectHandler
func (h *IncreaseCostHandler) Apply(ctx context.Context, req *approval.Request, resp Response) (*HandlerOutcome, error) {
	if resp.Type != approval.ResponseApprove {
		return &HandlerOutcome{}, nil
	}
	if req.Metadata.CostChangeRecorded != nil {
		return nil, shared.NewAlreadyHandledError("COST_CHANGE_APPLIED", "Cost change for this request has already been applied")
	}
	increase, err := req.IncreaseAmount()
	if err != nil {
		return nil, err
	}

	reason := req.Description
	if reason == "" {
		reason = req.Title
	}
	approver := resp.Actor
	requestID := req.ID
	result, err := h.costs.IncreaseCost(ctx, *req.Metadata.ProjectID, req.Metadata.PreviousCost, increase, billing.CostRevision{
		Reason:     reason,
		ChangedBy:  req.RequestedBy,
		ApprovedBy: &approver,
		RequestID:  &requestID,
	})
	if err != nil {
		return nil, err
	}
	req.RecordCostChange(result.Entry.ID)
	return &HandlerOutcome{SideEffects: result.SideEffects, Events: result.Events}, nil
}

// GeneralHandler is the handler of requests without a financial side effect
type GeneralHandler struct{}

// RequestType implements SideEffectHandler
func (GeneralHandler) RequestType() approval.RequestType {
	return approval.RequestTypeGeneral
}

// Apply implements SideEffectHandler
func (GeneralHandler) Apply(context.Context, *approval.Request, Response) (*HandlerOutcome, error) {
	return &HandlerOutcome{}, nil
}
