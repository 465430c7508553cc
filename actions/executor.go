package actions

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/events"
	"github.com/tolelom/zkgame/game"
	"github.com/tolelom/zkgame/player"
)

// Context is passed to every Handler. Player is a working copy; it becomes
// the stored state only if the handler returns nil.
type Context struct {
	Player *core.PlayerState
	Rules  *game.Rules
	Tx     *core.Transaction
	Crafts *core.CraftQueue
	Now    time.Time

	events        []events.Event
	craftsChanged bool
}

// Emit queues an event. Queued events are delivered only after the
// mutation is stored.
func (c *Context) Emit(ev events.Event) {
	ev.Wallet = c.Tx.Wallet
	ev.TxID = c.Tx.ID
	c.events = append(c.events, ev)
}

// CraftsChanged marks the craft queue for persistence.
func (c *Context) CraftsChanged() { c.craftsChanged = true }

// Executor applies transactions through the player store.
type Executor struct {
	store    *player.Store
	rules    *game.Rules
	registry *Registry
	emitter  *events.Emitter
	log      *zap.Logger

	// Now is the executor clock. Tests may replace it.
	Now func() time.Time
}

// NewExecutor creates an Executor dispatching through registry, or the
// global registry when registry is nil.
func NewExecutor(store *player.Store, rules *game.Rules, registry *Registry, emitter *events.Emitter, log *zap.Logger) *Executor {
	if registry == nil {
		registry = globalRegistry
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		store:    store,
		rules:    rules,
		registry: registry,
		emitter:  emitter,
		log:      log.With(zap.String("module", "actions")),
		Now:      time.Now,
	}
}

// Execute builds a transaction of type typ for wallet and applies it. On
// success the returned state carries nonce+1. A storage failure returns the
// new state together with ErrPersistenceFailed.
func (e *Executor) Execute(wallet string, typ core.TxType, payload any) (*core.PlayerState, *core.Transaction, error) {
	cur, err := e.store.Load(wallet)
	if err != nil {
		return nil, nil, err
	}
	now := e.Now()
	tx, err := core.NewTransaction(typ, wallet, cur.Nonce, payload, now)
	if err != nil {
		return nil, nil, err
	}
	crafts, err := e.store.Crafts(wallet)
	if err != nil {
		return nil, nil, err
	}

	ctx := &Context{Rules: e.rules, Tx: tx, Crafts: crafts, Now: now}
	next, err := e.store.ApplyLocalMutation(wallet, func(p *core.PlayerState) error {
		if p.Nonce != tx.Nonce {
			return fmt.Errorf("%w: action built at nonce %d, state is at %d", core.ErrNonceMismatch, tx.Nonce, p.Nonce)
		}
		ctx.Player = p
		return e.registry.Execute(tx.Type, ctx, tx.Payload)
	})
	if next == nil {
		e.log.Debug("action rejected", zap.String("type", string(typ)), zap.String("wallet", tx.Wallet), zap.Error(err))
		return nil, tx, err
	}

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	if ctx.craftsChanged {
		if cerr := e.store.SaveCrafts(wallet); cerr != nil {
			errs = append(errs, cerr)
		}
	}
	if len(ctx.events) == 0 {
		ctx.Emit(events.Event{Type: events.EventLocalApplied, Data: map[string]any{"action": string(tx.Type)}})
	}
	for _, ev := range ctx.events {
		ev.Nonce = next.Nonce
		e.emitter.Emit(ev)
	}
	e.log.Info("action applied", zap.String("type", string(typ)), zap.String("wallet", tx.Wallet),
		zap.Uint64("nonce", next.Nonce))
	return next, tx, errors.Join(errs...)
}
