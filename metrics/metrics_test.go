package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/tolelom/zkgame/events"
)

func TestAttachCountsEvents(t *testing.T) {
	m := New()
	e := events.NewEmitter(nil)
	m.Attach(e)

	e.Emit(events.Event{Type: events.EventPhase, Data: map[string]any{"action": "move", "phase": "validating"}})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InFlight))
	e.Emit(events.Event{Type: events.EventProofGenerated, Data: map[string]any{"action": "move", "took": 2 * time.Second}})
	e.Emit(events.Event{Type: events.EventSubmitted, Data: map[string]any{"action": "move", "success": false}})
	e.Emit(events.Event{Type: events.EventPhase, Data: map[string]any{"action": "move", "phase": "idle"}})
	e.Emit(events.Event{Type: events.EventLocalApplied, Data: map[string]any{"action": "gather"}})

	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Phases.WithLabelValues("move", "validating")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("move", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LocalActions.WithLabelValues("gather")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ProofDuration))
}

func TestObserveRPC(t *testing.T) {
	m := New()
	m.ObserveRPC("move", false, time.Millisecond)
	m.ObserveRPC("move", true, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCRequests.WithLabelValues("move", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCRequests.WithLabelValues("move", "error")))
}
