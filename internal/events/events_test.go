package events

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesMatchingEvents(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received []*Event
	bus.Subscribe(JobCreated, func(event *Event) {
		received = append(received, event)
	})

	bus.Emit(JobCreated, "jobs", map[string]interface{}{"job_id": "abc"})
	bus.Emit(DepositProcessed, "ledger", nil)

	require.Len(t, received, 1)
	assert.Equal(t, JobCreated, received[0].Type)
	assert.Equal(t, "jobs", received[0].Module)
	assert.Equal(t, "abc", received[0].Data["job_id"])
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	count := 0
	bus.SubscribeAll(func(event *Event) { count++ })

	bus.Emit(JobCreated, "jobs", nil)
	bus.Emit(JobStatusChanged, "jobs", nil)
	bus.Emit(DepositProcessed, "ledger", nil)

	assert.Equal(t, 3, count)
}

func TestEmitError(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got *Event
	bus.Subscribe(ErrorOccurred, func(event *Event) { got = event })

	bus.EmitError("jobs", errors.New("boom"), map[string]interface{}{"job_id": "abc"})

	require.NotNil(t, got)
	assert.Equal(t, "boom", got.Data["error"])
}
