package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitDeliversToTypedAndWildcardSubscribers(t *testing.T) {
	e := NewEmitter(nil)
	var typed, all []EventType
	e.Subscribe(EventCommitted, func(ev Event) { typed = append(typed, ev.Type) })
	e.SubscribeAll(func(ev Event) { all = append(all, ev.Type) })

	e.Emit(Event{Type: EventPhase})
	e.Emit(Event{Type: EventCommitted, Nonce: 1})

	assert.Equal(t, []EventType{EventCommitted}, typed)
	assert.Equal(t, []EventType{EventPhase, EventCommitted}, all)
}

func TestPanickingHandlerDoesNotStopOthers(t *testing.T) {
	e := NewEmitter(nil)
	called := false
	e.Subscribe(EventSubmitted, func(Event) { panic("boom") })
	e.Subscribe(EventSubmitted, func(Event) { called = true })

	assert.NotPanics(t, func() { e.Emit(Event{Type: EventSubmitted}) })
	assert.True(t, called)
}

func TestNilEmitterIsNoop(t *testing.T) {
	var e *Emitter
	assert.NotPanics(t, func() { e.Emit(Event{Type: EventPhase}) })
}
