// Package events is the in-process publish/subscribe channel between the
// orchestrator and its observers (journal, metrics, RPC presence feed).
// Events are advisory; nothing treats them as a source of truth.
package events

import (
	"sync"

	"go.uber.org/zap"
)

// EventType labels what happened.
type EventType string

const (
	EventPhase          EventType = "phase"           // orchestrator state-machine step
	EventProofGenerated EventType = "proof_generated"
	EventSubmitted      EventType = "submitted"       // verifier accepted or rejected a bundle
	EventCommitted      EventType = "committed"       // proof-gated transition stored
	EventLocalApplied   EventType = "local_applied"   // gather, craft completion, store purchase
	EventCraftStarted   EventType = "craft_started"
	EventCraftReady     EventType = "craft_ready"
	EventPlayerCreated  EventType = "player_created"
	EventPlayerRestored EventType = "player_restored"
	EventPresence       EventType = "presence"        // display-only position broadcast
)

// Event carries a typed payload emitted after something happened.
type Event struct {
	Type   EventType      `json:"type"`
	Wallet string         `json:"wallet"`
	TxID   string         `json:"tx_id,omitempty"`
	Nonce  uint64         `json:"nonce"`
	Data   map[string]any `json:"data,omitempty"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler
	log      *zap.Logger
}

// NewEmitter creates an Emitter with no subscribers. log may be nil.
func NewEmitter(log *zap.Logger) *Emitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Emitter{handlers: make(map[EventType][]Handler), log: log.With(zap.String("module", "events"))}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// SubscribeAll registers h for every event type.
func (e *Emitter) SubscribeAll(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot abort a transition.
func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}
	e.mu.RLock()
	handlers := append(append([]Handler(nil), e.handlers[ev.Type]...), e.all...)
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Error("handler panicked", zap.String("event", string(ev.Type)), zap.Any("panic", r))
				}
			}()
			h(ev)
		}()
	}
}
