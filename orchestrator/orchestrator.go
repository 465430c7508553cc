// Package orchestrator sequences every player action. Proof-gated
// transitions (move, claim) run Validating → Proving → Submitting →
// Committing and only touch stored state once the verifier accepted the
// proof. Local actions go through the actions executor under the same
// per-player guard.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tolelom/zkgame/actions"
	"github.com/tolelom/zkgame/commitment"
	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/events"
	"github.com/tolelom/zkgame/game"
	"github.com/tolelom/zkgame/gateway"
	"github.com/tolelom/zkgame/player"
	"github.com/tolelom/zkgame/prover"
)

// Phase is one step of the transition state machine.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseProving    Phase = "proving"
	PhaseSubmitting Phase = "submitting"
	PhaseCommitting Phase = "committing"
	PhaseFailed     Phase = "failed"
)

// Submitter hands a bundle to the verifier. *gateway.Gateway satisfies it.
type Submitter interface {
	Submit(ctx context.Context, bundle *core.ProofBundle, action core.Action) gateway.Result
}

// commitmentSource is the optional side of a Submitter that can tell which
// commitment the verifier holds for a wallet.
type commitmentSource interface {
	CommitmentOf(ctx context.Context, wallet string) (string, bool, error)
}

// Outcome describes a finished proof-gated transition.
type Outcome struct {
	Action core.Action       `json:"action"`
	State  *core.PlayerState `json:"state"`
	Hash   string            `json:"hash"`
	Reward uint64            `json:"reward,omitempty"`
	// OldCommitment and NewCommitment are decimal field elements.
	OldCommitment string        `json:"old_commitment"`
	NewCommitment string        `json:"new_commitment"`
	ProofTime     time.Duration `json:"proof_time"`
}

// Orchestrator is the only component that decides whether a transition is
// committed.
type Orchestrator struct {
	store     *player.Store
	coord     *prover.Coordinator
	submitter Submitter
	exec      *actions.Executor
	rules     *game.Rules
	variant   commitment.Variant
	emitter   *events.Emitter
	log       *zap.Logger

	// Now is the clock used for timestamps and claims. Tests may replace it.
	Now func() time.Time

	mu       sync.Mutex
	inFlight map[string]string // wallet -> action name
}

// Config bundles the collaborators of an Orchestrator.
type Config struct {
	Store     *player.Store
	Prover    *prover.Coordinator
	Submitter Submitter
	Executor  *actions.Executor
	Rules     *game.Rules
	Variant   commitment.Variant
	Emitter   *events.Emitter
}

// New creates an Orchestrator. log may be nil.
func New(cfg Config, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Variant == "" {
		cfg.Variant = commitment.VariantSum
	}
	return &Orchestrator{
		store:     cfg.Store,
		coord:     cfg.Prover,
		submitter: cfg.Submitter,
		exec:      cfg.Executor,
		rules:     cfg.Rules,
		variant:   cfg.Variant,
		emitter:   cfg.Emitter,
		log:       log.With(zap.String("module", "orchestrator")),
		Now:       time.Now,
		inFlight:  make(map[string]string),
	}
}

// acquire claims the per-player slot. The returned func releases it.
func (o *Orchestrator) acquire(wallet, action string) (func(), error) {
	key := core.WalletKey(wallet)
	o.mu.Lock()
	defer o.mu.Unlock()
	if running, busy := o.inFlight[key]; busy {
		return nil, fmt.Errorf("%w: %s already running for %s", core.ErrTransitionInProgress, running, key)
	}
	o.inFlight[key] = action
	return func() {
		o.mu.Lock()
		delete(o.inFlight, key)
		o.mu.Unlock()
	}, nil
}

// Busy reports whether wallet has a transition running.
func (o *Orchestrator) Busy(wallet string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inFlight[core.WalletKey(wallet)]
	return ok
}

// run is one pass through the state machine for wallet.
type run struct {
	o      *Orchestrator
	wallet string
	action core.Action
	nonce  uint64
}

func (r *run) enter(p Phase) {
	r.o.log.Debug("phase", zap.String("wallet", r.wallet), zap.String("action", string(r.action)),
		zap.String("phase", string(p)), zap.Uint64("nonce", r.nonce))
	r.o.emitter.Emit(events.Event{
		Type:   events.EventPhase,
		Wallet: r.wallet,
		Nonce:  r.nonce,
		Data:   map[string]any{"action": string(r.action), "phase": string(p)},
	})
}

func (r *run) fail(err error) error {
	r.enter(PhaseFailed)
	r.o.log.Warn("transition failed", zap.String("wallet", r.wallet), zap.String("action", string(r.action)),
		zap.Uint64("nonce", r.nonce), zap.Error(err))
	return err
}

// Move proves and submits a move of wallet's player to (areaID, areaType).
func (o *Orchestrator) Move(ctx context.Context, wallet string, areaID uint64, areaType core.AreaType, obs prover.Observer) (*Outcome, error) {
	return o.transition(ctx, wallet, core.ActionMove,
		func(state *core.PlayerState) error {
			return game.ValidateMove(state, areaID, areaType)
		},
		func(state *core.PlayerState) (*prover.Proved, error) {
			return o.coord.GenerateMovementProof(ctx, state, areaID, areaType, o.Now(), obs)
		})
}

// Claim proves and submits the time reward accrued since the last claim:
// floor(rewardPerHour * hoursElapsed * reputation).
func (o *Orchestrator) Claim(ctx context.Context, wallet string, obs prover.Observer) (*Outcome, error) {
	var now time.Time
	return o.transition(ctx, wallet, core.ActionClaim,
		func(state *core.PlayerState) error {
			now = o.Now()
			return o.rules.ValidateClaim(state, now)
		},
		func(state *core.PlayerState) (*prover.Proved, error) {
			elapsed := time.Duration(now.UnixMilli()-state.LastClaimTime) * time.Millisecond
			reward := o.rules.ClaimReward(elapsed, state.Reputation)
			return o.coord.GenerateTimeRewardProof(ctx, state, reward, now, obs)
		})
}

func (o *Orchestrator) transition(ctx context.Context, wallet string, action core.Action,
	validate func(*core.PlayerState) error, prove func(*core.PlayerState) (*prover.Proved, error)) (*Outcome, error) {
	release, err := o.acquire(wallet, string(action))
	if err != nil {
		return nil, err
	}
	defer release()

	r := &run{o: o, wallet: core.WalletKey(wallet), action: action}
	r.enter(PhaseValidating)
	defer r.enter(PhaseIdle)

	state, err := o.store.Load(wallet)
	if err != nil {
		return nil, r.fail(err)
	}
	r.nonce = state.Nonce
	if err := validate(state); err != nil {
		return nil, r.fail(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, r.fail(fmt.Errorf("%w: %v", core.ErrProofGenerationFailed, err))
	}
	if err := o.checkInSync(ctx, wallet, state); err != nil {
		return nil, r.fail(err)
	}

	r.enter(PhaseProving)
	proved, err := prove(state)
	if err != nil {
		return nil, r.fail(err)
	}
	o.emitter.Emit(events.Event{
		Type:   events.EventProofGenerated,
		Wallet: r.wallet,
		Nonce:  state.Nonce,
		Data: map[string]any{
			"action": string(action),
			"took":   proved.Took,
			"old":    proved.OldCommitment.String(),
			"new":    proved.NewCommitment.String(),
		},
	})

	r.enter(PhaseSubmitting)
	res := o.submitter.Submit(gateway.WithSender(ctx, wallet), proved.Bundle, action)
	o.emitter.Emit(events.Event{
		Type:   events.EventSubmitted,
		Wallet: r.wallet,
		Nonce:  state.Nonce,
		Data: map[string]any{
			"action":  string(action),
			"success": res.Success,
			"hash":    res.Hash,
			"error":   res.Error(),
			"old":     proved.OldCommitment.String(),
			"new":     proved.NewCommitment.String(),
		},
	})
	if !res.Success {
		err := res.Err
		if err == nil {
			err = core.ErrSubmissionFailed
		}
		if !errors.Is(err, core.ErrSubmissionFailed) && !core.IsValidation(err) {
			err = fmt.Errorf("%w: %w", core.ErrSubmissionFailed, err)
		}
		return nil, r.fail(err)
	}

	// Accepted on chain: commit regardless of ctx.
	r.enter(PhaseCommitting)
	out := &Outcome{
		Action:        action,
		State:         proved.Next,
		Hash:          res.Hash,
		Reward:        proved.Next.Currency - state.Currency,
		OldCommitment: proved.OldCommitment.String(),
		NewCommitment: proved.NewCommitment.String(),
		ProofTime:     proved.Took,
	}
	if err := o.store.CommitTransition(state, proved.Next); err != nil {
		if errors.Is(err, core.ErrPersistenceFailed) {
			// in-memory state advanced; the caller should export
			o.committed(r, out)
			return out, err
		}
		o.log.Error("verifier accepted a transition the store refused", zap.String("wallet", r.wallet),
			zap.String("hash", res.Hash), zap.Error(err))
		return nil, r.fail(err)
	}
	o.committed(r, out)
	return out, nil
}

// verifierCommitment asks the submitter for the commitment the verifier
// holds for wallet. ok is false when that is unknown.
func (o *Orchestrator) verifierCommitment(ctx context.Context, wallet string) (string, bool) {
	src, isSource := o.submitter.(commitmentSource)
	if !isSource {
		return "", false
	}
	c, ok, err := src.CommitmentOf(ctx, wallet)
	if err != nil {
		o.log.Warn("read verifier commitment", zap.String("wallet", core.WalletKey(wallet)), zap.Error(err))
		return "", false
	}
	return c, ok
}

// checkInSync fails fast when the verifier already holds a commitment that
// state does not match, e.g. after a local action or a restore. Such a
// proof could only be reverted.
func (o *Orchestrator) checkInSync(ctx context.Context, wallet string, state *core.PlayerState) error {
	onChain, ok := o.verifierCommitment(ctx, wallet)
	if !ok {
		return nil
	}
	local := commitment.Commit(state, o.variant).String()
	if onChain == local {
		return nil
	}
	return fmt.Errorf("%w: %s: verifier holds %s but nonce %d commits to %s; restore the backup of the last committed transition",
		core.ErrSubmissionFailed, gateway.ReasonCommitmentMismatch, onChain, state.Nonce, local)
}

func (o *Orchestrator) committed(r *run, out *Outcome) {
	o.log.Info("transition committed", zap.String("wallet", r.wallet), zap.String("action", string(out.Action)),
		zap.Uint64("nonce", out.State.Nonce), zap.String("hash", out.Hash))
	o.emitter.Emit(events.Event{
		Type:   events.EventCommitted,
		Wallet: r.wallet,
		Nonce:  out.State.Nonce,
		Data: map[string]any{
			"action": string(out.Action),
			"hash":   out.Hash,
			"old":    out.OldCommitment,
			"new":    out.NewCommitment,
			"reward": out.Reward,
		},
	})
	if out.Action == core.ActionMove {
		o.emitter.Emit(events.Event{
			Type:   events.EventPresence,
			Wallet: r.wallet,
			Nonce:  out.State.Nonce,
			Data: map[string]any{
				"name":      out.State.Name,
				"area_id":   out.State.Position.AreaID,
				"area_type": string(out.State.Position.AreaType),
			},
		})
	}
}
