package prover

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tolelom/zkgame/commitment"
	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/game"
)

// Observer receives advisory progress: a percentage that never decreases
// and a short phase label.
type Observer func(percent int, phase string)

// Proved is a generated proof together with the transition it proves.
type Proved struct {
	Action        core.Action
	Bundle        *core.ProofBundle
	Next          *core.PlayerState
	OldCommitment commitment.Digest
	NewCommitment commitment.Digest
	Took          time.Duration
}

// CoordinatorConfig tunes a Coordinator.
type CoordinatorConfig struct {
	Capacities   Capacities
	Variant      commitment.Variant
	ArtifactsDir string
	Timeout      time.Duration // 0 means no limit beyond ctx
}

// Coordinator validates a transition locally, marshals fixed-shape inputs
// and drives a Prover.
type Coordinator struct {
	prover Prover
	rules  *game.Rules
	cfg    CoordinatorConfig
	log    *zap.Logger
}

// NewCoordinator wires a Coordinator around p.
func NewCoordinator(p Prover, rules *game.Rules, cfg CoordinatorConfig, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Variant == "" {
		cfg.Variant = commitment.VariantSum
	}
	return &Coordinator{prover: p, rules: rules, cfg: cfg, log: log.With(zap.String("module", "coordinator"))}
}

type progress struct {
	obs  Observer
	last int
}

func (p *progress) report(pct int, phase string) {
	if pct < p.last {
		pct = p.last
	}
	if pct > 100 {
		pct = 100
	}
	p.last = pct
	if p.obs != nil {
		p.obs(pct, phase)
	}
}

// GenerateMovementProof proves moving state to (areaID, areaType) at ts.
func (c *Coordinator) GenerateMovementProof(ctx context.Context, state *core.PlayerState, areaID uint64,
	areaType core.AreaType, ts time.Time, obs Observer) (*Proved, error) {
	pr := &progress{obs: obs}
	pr.report(0, "Validating move")
	next, eff, err := c.rules.NextMove(state, areaID, areaType)
	if err != nil {
		return nil, err
	}
	in := &Inputs{
		Action:         core.ActionMove,
		NewAreaID:      areaID,
		NewAreaType:    areaType.Code(),
		ExperienceGain: eff.ExperienceGain,
		NewlyExplored:  !eff.AlreadyExplored,
		Timestamp:      uint64(ts.UnixMilli()),
	}
	return c.run(ctx, state, next, in, pr)
}

// GenerateTimeRewardProof proves crediting reward at currentTime. The
// cooldown is checked before the prover is touched.
func (c *Coordinator) GenerateTimeRewardProof(ctx context.Context, state *core.PlayerState, reward uint64,
	currentTime time.Time, obs Observer) (*Proved, error) {
	pr := &progress{obs: obs}
	pr.report(0, "Validating claim")
	if err := c.rules.ValidateClaim(state, currentTime); err != nil {
		return nil, err
	}
	next := state.Clone()
	next.Currency += reward
	next.LastClaimTime = currentTime.UnixMilli()
	next.Nonce++
	in := &Inputs{
		Action:      core.ActionClaim,
		CurrentTime: uint64(currentTime.UnixMilli()),
		Reward:      reward,
	}
	return c.run(ctx, state, next, in, pr)
}

func (c *Coordinator) run(ctx context.Context, old, next *core.PlayerState, in *Inputs, pr *progress) (*Proved, error) {
	pr.report(10, "Preparing inputs")
	var err error
	if in.Old, err = NewStateInputs(old, c.cfg.Capacities); err != nil {
		return nil, err
	}
	// the successor must fit too, or the next proof could never be built
	if _, err := NewStateInputs(next, c.cfg.Capacities); err != nil {
		return nil, err
	}
	in.OldCommitment = commitment.Commit(old, c.cfg.Variant)
	in.NewCommitment = commitment.Commit(next, c.cfg.Variant)

	pr.report(30, "Generating proof")
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	bundle, err := c.prover.FullProve(ctx, in, ArtifactFor(c.cfg.ArtifactsDir, in.Action))
	took := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", took.Round(time.Millisecond), err)
		}
		c.log.Warn("prover failed", zap.String("action", string(in.Action)), zap.Duration("took", took), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", core.ErrProofGenerationFailed, err)
	}

	pr.report(90, "Checking proof")
	if err := checkBundle(bundle, in); err != nil {
		return nil, err
	}
	pr.report(100, "Proof ready")
	c.log.Info("proof generated", zap.String("action", string(in.Action)), zap.Uint64("nonce", old.Nonce),
		zap.String("old", in.OldCommitment.Hex()), zap.String("new", in.NewCommitment.Hex()), zap.Duration("took", took))
	return &Proved{
		Action:        in.Action,
		Bundle:        bundle,
		Next:          next,
		OldCommitment: in.OldCommitment,
		NewCommitment: in.NewCommitment,
		Took:          took,
	}, nil
}

// checkBundle verifies shape and that the commitments the prover exposed
// match the ones computed locally.
func checkBundle(b *core.ProofBundle, in *Inputs) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrProofGenerationFailed, err)
	}
	if want := in.Action.SignalCount(); len(b.PublicSignals) != want {
		return fmt.Errorf("%w: %s proof has %d public signals, want %d", core.ErrSignalCountMismatch, in.Action, len(b.PublicSignals), want)
	}
	for i, want := range []commitment.Digest{in.OldCommitment, in.NewCommitment} {
		got, err := commitment.ParseDigest(b.PublicSignals[i])
		if err != nil {
			return fmt.Errorf("%w: %w", core.ErrProofGenerationFailed, err)
		}
		if !got.Equal(want) {
			return fmt.Errorf("%w: signal %d is %s, local commitment is %s", core.ErrProofGenerationFailed, i, got, want)
		}
	}
	return nil
}
