package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEventHandler_Handle(t *testing.T) {
	handler := NewMockEventHandler("TestEvent")
	event := NewTestEvent("TestEvent")

	err := handler.Handle(context.Background(), event)

	require.NoError(t, err)
	assert.Equal(t, []string{"TestEvent"}, handler.EventTypes())
	assert.Equal(t, 1, handler.HandledCount())
	assert.Equal(t, event, handler.Handled()[0])
}

func TestMockEventHandler_SetError(t *testing.T) {
	handler := NewMockEventHandler("TestEvent")
	handler.SetError(assert.AnError)

	err := handler.Handle(context.Background(), NewTestEvent("TestEvent"))
	assert.Equal(t, assert.AnError, err)
}

func TestRecordingPublisher(t *testing.T) {
	p := NewRecordingPublisher()
	require.NoError(t, p.Publish(context.Background(), NewTestEvent("A"), NewTestEvent("B"), NewTestEvent("A")))
	assert.Equal(t, []string{"A", "B", "A"}, p.Types())
	assert.Equal(t, 2, p.Count("A"))

	p.SetError(assert.AnError)
	assert.ErrorIs(t, p.Publish(context.Background(), NewTestEvent("C")), assert.AnError)
	assert.Equal(t, 0, p.Count("C"))
}
