package event

import (
	"encoding/json"
	"testing"

	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReceipt(t *testing.T) *billing.PaymentReceipt {
	t.Helper()
	creator := shared.ActorRef{ID: uuid.New(), Kind: shared.ActorKindSales}
	r, err := billing.NewPaymentReceipt(uuid.New(), uuid.New(), decimal.NewFromInt(15000), "HDFC-01", billing.PaymentMethodBankTransfer, creator)
	require.NoError(t, err)
	return r
}

func TestEventSerializer_Encode(t *testing.T) {
	serializer := NewEventSerializer()
	RegisterAllEvents(serializer)

	receipt := testReceipt(t)
	event := billing.NewPaymentReceiptSubmittedEvent(receipt)

	env, err := serializer.Encode(event)
	require.NoError(t, err)

	assert.Equal(t, event.EventID(), env.EventID)
	assert.Equal(t, billing.EventTypePaymentReceiptSubmitted, env.EventType)
	assert.Equal(t, receipt.ID, env.AggregateID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, receipt.ID.String(), payload["receipt_id"])
	assert.Equal(t, "15000", payload["amount"])
}

func TestEventSerializer_RejectsUnknownType(t *testing.T) {
	serializer := NewEventSerializer()

	_, err := serializer.Encode(testutil.NewTestEvent("Unregistered"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestEventSerializer_RejectsMismatchedType(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("InstallmentPaid", &billing.InstallmentPaidEvent{})

	_, err := serializer.Encode(testutil.NewTestEvent("InstallmentPaid"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered as")
}

func TestRegisterAllEvents(t *testing.T) {
	serializer := NewEventSerializer()
	RegisterAllEvents(serializer)

	for _, eventType := range []string{
		billing.EventTypeInstallmentsAdded,
		billing.EventTypeInstallmentPaid,
		billing.EventTypeProjectFinancialsRecalculated,
		billing.EventTypePaymentReceiptApproved,
		billing.EventTypePaymentReceiptRejected,
		billing.EventTypeWalletDebited,
		"RequestCreated",
		"RequestResponded",
	} {
		assert.True(t, serializer.IsRegistered(eventType), eventType)
	}
}
