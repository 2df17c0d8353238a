package event

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type panickingHandler struct{}

func (panickingHandler) Handle(context.Context, shared.DomainEvent) error { panic("boom") }
func (panickingHandler) EventTypes() []string                            { return nil }

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := testutil.NewMockEventHandler("InstallmentPaid")
	bus.Subscribe(handler)

	event := testutil.NewTestEvent("InstallmentPaid")
	require.NoError(t, bus.Publish(context.Background(), event))

	require.Equal(t, 1, handler.HandledCount())
	assert.Equal(t, event, handler.Handled()[0])
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	paid := testutil.NewMockEventHandler()
	all := testutil.NewMockEventHandler()
	bus.Subscribe(paid, "InstallmentPaid")
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(context.Background(),
		testutil.NewTestEvent("InstallmentPaid"),
		testutil.NewTestEvent("ProjectCostChanged"),
	))

	assert.Equal(t, 1, paid.HandledCount())
	assert.Equal(t, 2, all.HandledCount())
}

func TestInMemoryEventBus_HandlerErrorsAreJoined(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	failing := testutil.NewMockEventHandler()
	failing.SetError(errors.New("smtp down"))
	healthy := testutil.NewMockEventHandler()
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), testutil.NewTestEvent("RequestResponded"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "RequestResponded")
	assert.Contains(t, err.Error(), "smtp down")
	assert.Equal(t, 1, healthy.HandledCount(), "later handlers still run")
}

func TestInMemoryEventBus_PanicBecomesError(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(panickingHandler{})
	healthy := testutil.NewMockEventHandler()
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), testutil.NewTestEvent("InstallmentPaid"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, 1, healthy.HandledCount())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	typed := testutil.NewMockEventHandler()
	wildcard := testutil.NewMockEventHandler()
	bus.Subscribe(typed, "InstallmentPaid", "InstallmentRemoved")
	bus.Subscribe(wildcard)

	bus.Unsubscribe(typed)
	bus.Unsubscribe(wildcard)

	require.NoError(t, bus.Publish(context.Background(), testutil.NewTestEvent("InstallmentPaid")))
	assert.Zero(t, typed.HandledCount())
	assert.Zero(t, wildcard.HandledCount())
	assert.Empty(t, bus.handlersFor("InstallmentRemoved"))
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, bus.Stop(ctx))
	assert.ErrorIs(t, bus.Publish(ctx, testutil.NewTestEvent("X")), ErrBusStopped)

	require.NoError(t, bus.Start(ctx))
	assert.NoError(t, bus.Publish(ctx, testutil.NewTestEvent("X")))
}
