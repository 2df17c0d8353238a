package billing

import (
	"testing"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestReceipt(t *testing.T, amount string) *PaymentReceipt {
	r, err := NewPaymentReceipt(uuid.New(), uuid.New(), dec(amount), " ICICI ", PaymentMethodBankTransfer, salesActor())
	require.NoError(t, err)
	return r
}

func TestReceiptStatus(t *testing.T) {
	tests := []struct {
		status   ReceiptStatus
		valid    bool
		terminal bool
	}{
		{ReceiptStatusPending, true, false},
		{ReceiptStatusApproved, true, true},
		{ReceiptStatusRejected, true, true},
		{ReceiptStatus("void"), false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.IsValid())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestNewPaymentReceipt(t *testing.T) {
	actor := salesActor()

	t.Run("valid", func(t *testing.T) {
		r := createTestReceipt(t, "20000")
		assert.Equal(t, ReceiptStatusPending, r.Status)
		assert.Equal(t, "ICICI", r.Account)
		assert.Len(t, r.GetDomainEvents(), 1)
	})

	t.Run("default method", func(t *testing.T) {
		r, err := NewPaymentReceipt(uuid.New(), uuid.New(), dec("1"), "", "", actor)
		require.NoError(t, err)
		assert.Equal(t, PaymentMethodOther, r.Method)
	})

	tests := []struct {
		name    string
		project uuid.UUID
		client  uuid.UUID
		amount  string
		method  PaymentMethod
	}{
		{"nil project", uuid.Nil, uuid.New(), "1", PaymentMethodCash},
		{"nil client", uuid.New(), uuid.Nil, "1", PaymentMethodCash},
		{"zero amount", uuid.New(), uuid.New(), "0", PaymentMethodCash},
		{"bad method", uuid.New(), uuid.New(), "1", PaymentMethod("barter")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPaymentReceipt(tt.project, tt.client, dec(tt.amount), "", tt.method, actor)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestPaymentReceipt_Transitions(t *testing.T) {
	verifier := shared.NewActorRef(uuid.New(), shared.ActorKindAdmin)

	t.Run("approve once", func(t *testing.T) {
		r := createTestReceipt(t, "100")
		require.NoError(t, r.Approve(verifier, testNow))
		assert.True(t, r.IsApproved())
		assert.Equal(t, verifier, *r.VerifiedBy)
		assert.Equal(t, testNow, *r.VerifiedAt)

		err := r.Approve(verifier, testNow)
		assert.ErrorIs(t, err, ErrReceiptAlreadyApproved)
		assert.True(t, shared.IsAlreadyHandled(err))

		err = r.Reject(verifier, "late", testNow)
		assert.True(t, shared.IsAlreadyHandled(err))
		assert.True(t, r.IsApproved())
	})

	t.Run("reject once", func(t *testing.T) {
		r := createTestReceipt(t, "100")
		require.NoError(t, r.Reject(verifier, " bounced ", testNow))
		assert.Equal(t, ReceiptStatusRejected, r.Status)
		assert.Equal(t, "bounced", r.RejectReason)

		assert.ErrorIs(t, r.Reject(verifier, "", testNow), ErrReceiptAlreadyRejected)
		assert.ErrorIs(t, r.Approve(verifier, testNow), ErrReceiptAlreadyRejected)
	})

	t.Run("verifier required", func(t *testing.T) {
		r := createTestReceipt(t, "100")
		assert.True(t, shared.IsValidation(r.Approve(shared.ActorRef{}, testNow)))
		assert.Equal(t, ReceiptStatusPending, r.Status)
	})
}
