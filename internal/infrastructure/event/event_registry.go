package event

import (
	"github.com/erp/projectbilling/internal/domain/approval"
	"github.com/erp/projectbilling/internal/domain/billing"
)

// RegisterAllEvents registers every billing and approval event type with the serializer
func RegisterAllEvents(serializer *EventSerializer) {
	// Project
	serializer.Register(billing.EventTypeInstallmentsAdded, &billing.InstallmentsAddedEvent{})
	serializer.Register(billing.EventTypeInstallmentUpdated, &billing.InstallmentUpdatedEvent{})
	serializer.Register(billing.EventTypeInstallmentRemoved, &billing.InstallmentRemovedEvent{})
	serializer.Register(billing.EventTypeInstallmentPaid, &billing.InstallmentPaidEvent{})
	serializer.Register(billing.EventTypeProjectCostChanged, &billing.ProjectCostChangedEvent{})
	serializer.Register(billing.EventTypeProjectFinancialsRecalculated, &billing.ProjectFinancialsRecalculatedEvent{})

	// Payment receipts; approve and reject share one payload
	serializer.Register(billing.EventTypePaymentReceiptSubmitted, &billing.PaymentReceiptSubmittedEvent{})
	serializer.Register(billing.EventTypePaymentReceiptApproved, &billing.PaymentReceiptVerifiedEvent{})
	serializer.Register(billing.EventTypePaymentReceiptRejected, &billing.PaymentReceiptVerifiedEvent{})

	// Wallet
	serializer.Register(billing.EventTypeWalletDebited, &billing.WalletDebitedEvent{})

	// Approval requests
	serializer.Register(approval.EventTypeRequestCreated, &approval.RequestCreatedEvent{})
	serializer.Register(approval.EventTypeRequestResponded, &approval.RequestRespondedEvent{})
}
