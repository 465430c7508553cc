package prover

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark/backend/groth16"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
	"go.uber.org/zap"

	"github.com/tolelom/zkgame/commitment"
	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/game"
)

// keys is one compiled circuit with its Groth16 keys.
type keys struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// Groth16Prover proves with gnark over BN254 using the in-repo circuits.
// Setup runs once per circuit and is cached; the keys are development keys
// and not suitable for a deployed verifier.
type Groth16Prover struct {
	caps  Capacities
	rules *game.Rules
	log   *zap.Logger

	mu    sync.Mutex
	cache map[string]*keys

	// slots bounds running proofs, including ones whose caller gave up.
	slots chan struct{}
}

// MaxConcurrentProofs is how many gnark proofs a Groth16Prover runs at once.
const MaxConcurrentProofs = 2

// NewGroth16Prover creates a prover for the given capacities. The in-repo
// circuits implement the sum reduction only.
func NewGroth16Prover(caps Capacities, rules *game.Rules, variant commitment.Variant, log *zap.Logger) (*Groth16Prover, error) {
	if variant != commitment.VariantSum {
		return nil, fmt.Errorf("groth16 circuits implement the %q commitment variant, not %q", commitment.VariantSum, variant)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Groth16Prover{
		caps:  caps,
		rules: rules,
		log:   log.With(zap.String("module", "prover")),
		cache: make(map[string]*keys),
		slots: make(chan struct{}, MaxConcurrentProofs),
	}, nil
}

// silenceGnark mutes gnark's zerolog output and returns a restore func.
func silenceGnark() func() {
	old := gnarklogger.Logger()
	gnarklogger.Set(zerolog.New(io.Discard).Level(zerolog.Disabled))
	return func() { gnarklogger.Set(old) }
}

func (p *Groth16Prover) circuit(action core.Action) (frontend.Circuit, error) {
	switch action {
	case core.ActionMove:
		return &MovementCircuit{
			State: newStateVars(p.caps),
			MoveXP: [3]uint64{
				p.rules.ExperienceFor(core.AreaStreet),
				p.rules.ExperienceFor(core.AreaCity),
				p.rules.ExperienceFor(core.AreaCountry),
			},
		}, nil
	case core.ActionClaim:
		return &RewardCircuit{
			State:          newStateVars(p.caps),
			CooldownMillis: uint64(p.rules.ClaimCooldown.Milliseconds()),
			RewardPerHour:  p.rules.RewardPerHour,
		}, nil
	}
	return nil, fmt.Errorf("no circuit for action %q", action)
}

// keysFor compiles and sets up the circuit for action on first use.
func (p *Groth16Prover) keysFor(action core.Action) (*keys, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := string(action) + "/" + p.caps.key()
	if k, ok := p.cache[id]; ok {
		return k, nil
	}
	c, err := p.circuit(action)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, c)
	if err != nil {
		return nil, fmt.Errorf("compile %s circuit: %w", action, err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("setup %s circuit: %w", action, err)
	}
	p.log.Info("circuit ready", zap.String("action", string(action)), zap.Int("constraints", ccs.GetNbConstraints()),
		zap.Duration("took", time.Since(start)))
	k := &keys{ccs: ccs, pk: pk, vk: vk}
	p.cache[id] = k
	return k, nil
}

// Warm compiles both circuits ahead of the first proof.
func (p *Groth16Prover) Warm() error {
	defer silenceGnark()()
	for _, a := range []core.Action{core.ActionMove, core.ActionClaim} {
		if _, err := p.keysFor(a); err != nil {
			return err
		}
	}
	return nil
}

func (p *Groth16Prover) assignment(in *Inputs) (frontend.Circuit, error) {
	state := assignState(in.Old)
	switch in.Action {
	case core.ActionMove:
		explored := uint64(0)
		if in.NewlyExplored {
			explored = 1
		}
		return &MovementCircuit{
			OldCommitment:  in.OldCommitment.BigInt(),
			NewCommitment:  in.NewCommitment.BigInt(),
			Timestamp:      in.Timestamp,
			State:          state,
			NewAreaID:      in.NewAreaID,
			NewAreaType:    in.NewAreaType,
			ExperienceGain: in.ExperienceGain,
			NewlyExplored:  explored,
		}, nil
	case core.ActionClaim:
		return &RewardCircuit{
			OldCommitment: in.OldCommitment.BigInt(),
			NewCommitment: in.NewCommitment.BigInt(),
			CurrentTime:   in.CurrentTime,
			Reward:        in.Reward,
			State:         state,
		}, nil
	}
	return nil, fmt.Errorf("no circuit for action %q", in.Action)
}

type proveResult struct {
	bundle *core.ProofBundle
	err    error
}

// FullProve implements Prover. Only artifact.Circuit is informational here;
// the circuit is chosen by in.Action.
//
// gnark's Prove cannot be interrupted: on cancellation FullProve returns at
// once but the proof keeps its slot until it finishes.
func (p *Groth16Prover) FullProve(ctx context.Context, in *Inputs, _ Artifact) (*core.ProofBundle, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	done := make(chan proveResult, 1)
	go func() {
		defer func() { <-p.slots }()
		b, err := p.prove(in)
		done <- proveResult{b, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.bundle, r.err
	}
}

func (p *Groth16Prover) prove(in *Inputs) (*core.ProofBundle, error) {
	defer silenceGnark()()
	k, err := p.keysFor(in.Action)
	if err != nil {
		return nil, err
	}
	a, err := p.assignment(in)
	if err != nil {
		return nil, err
	}
	w, err := frontend.NewWitness(a, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("build witness: %w", err)
	}
	proof, err := groth16.Prove(k.ccs, k.pk, w)
	if err != nil {
		return nil, fmt.Errorf("prove: %w", err)
	}
	return bundleFromProof(proof, in.Signals())
}

// Verify implements Verifier with the cached verifying key.
func (p *Groth16Prover) Verify(action core.Action, bundle *core.ProofBundle) error {
	if err := bundle.Validate(); err != nil {
		return err
	}
	if len(bundle.PublicSignals) != action.SignalCount() {
		return fmt.Errorf("%w: %s expects %d, got %d", core.ErrSignalCountMismatch, action, action.SignalCount(), len(bundle.PublicSignals))
	}
	defer silenceGnark()()
	k, err := p.keysFor(action)
	if err != nil {
		return err
	}
	proof, err := proofFromBundle(bundle)
	if err != nil {
		return err
	}
	sig := make([]*big.Int, len(bundle.PublicSignals))
	for i, s := range bundle.PublicSignals {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return fmt.Errorf("%w: signal %d %q is not decimal", core.ErrMalformedProof, i, s)
		}
		sig[i] = n
	}
	var public frontend.Circuit
	switch action {
	case core.ActionMove:
		public = &MovementCircuit{OldCommitment: sig[0], NewCommitment: sig[1], Timestamp: sig[2], State: newStateVars(p.caps)}
	case core.ActionClaim:
		public = &RewardCircuit{OldCommitment: sig[0], NewCommitment: sig[1], CurrentTime: sig[2], Reward: sig[3], State: newStateVars(p.caps)}
	}
	w, err := frontend.NewWitness(public, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("build public witness: %w", err)
	}
	return groth16.Verify(proof, k.vk, w)
}

// bundleFromProof renders a gnark proof in the snarkjs JSON layout.
func bundleFromProof(proof groth16.Proof, signals []string) (*core.ProofBundle, error) {
	p, ok := proof.(*groth16_bn254.Proof)
	if !ok {
		return nil, fmt.Errorf("unexpected proof type %T", proof)
	}
	return &core.ProofBundle{
		Proof: core.Proof{
			PiA: []string{p.Ar.X.String(), p.Ar.Y.String(), "1"},
			PiB: [][]string{
				{p.Bs.X.A0.String(), p.Bs.X.A1.String()},
				{p.Bs.Y.A0.String(), p.Bs.Y.A1.String()},
				{"1", "0"},
			},
			PiC:      []string{p.Krs.X.String(), p.Krs.Y.String(), "1"},
			Protocol: "groth16",
			Curve:    "bn128",
		},
		PublicSignals: signals,
	}, nil
}

// proofFromBundle parses the affine coordinates of a snarkjs-layout proof.
func proofFromBundle(b *core.ProofBundle) (*groth16_bn254.Proof, error) {
	var p groth16_bn254.Proof
	coords := []struct {
		dst *fp.Element
		src string
	}{
		{&p.Ar.X, b.Proof.PiA[0]}, {&p.Ar.Y, b.Proof.PiA[1]},
		{&p.Bs.X.A0, b.Proof.PiB[0][0]}, {&p.Bs.X.A1, b.Proof.PiB[0][1]},
		{&p.Bs.Y.A0, b.Proof.PiB[1][0]}, {&p.Bs.Y.A1, b.Proof.PiB[1][1]},
		{&p.Krs.X, b.Proof.PiC[0]}, {&p.Krs.Y, b.Proof.PiC[1]},
	}
	for _, c := range coords {
		if _, err := c.dst.SetString(c.src); err != nil {
			return nil, fmt.Errorf("%w: coordinate %q: %v", core.ErrMalformedProof, c.src, err)
		}
	}
	return &p, nil
}
