// Package actions applies local, non-proof-gated mutations (gathering,
// craft completion, store purchases) to a player's state. Handlers live in
// actions/modules and register themselves from init.
package actions

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tolelom/zkgame/core"
)

// Handler applies one transaction to ctx.Player.
type Handler func(ctx *Context, payload json.RawMessage) error

// Registry maps TxTypes to Handlers. Thread-safe for concurrent registration.
type Registry struct {
	mu       sync.RWMutex
	handlers map[core.TxType]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[core.TxType]Handler)}
}

// Register associates typ with h. Panics on duplicate registration.
func (r *Registry) Register(typ core.TxType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[typ]; exists {
		panic(fmt.Sprintf("actions: handler already registered for %q", typ))
	}
	r.handlers[typ] = h
}

// Execute dispatches payload to the handler registered for typ.
func (r *Registry) Execute(typ core.TxType, ctx *Context, payload json.RawMessage) error {
	r.mu.RLock()
	h, ok := r.handlers[typ]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: no handler for action %q", core.ErrInvalidTransition, typ)
	}
	return h(ctx, payload)
}

// Types lists registered action types.
func (r *Registry) Types() []core.TxType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.TxType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var globalRegistry = NewRegistry()

// Register adds a handler to the global registry.
func Register(typ core.TxType, h Handler) {
	globalRegistry.Register(typ, h)
}

// Default returns the global registry modules register into.
func Default() *Registry { return globalRegistry }
