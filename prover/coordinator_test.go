package prover_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/zkgame/commitment"
	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/game"
	"github.com/tolelom/zkgame/internal/testutil"
	"github.com/tolelom/zkgame/prover"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newPlayer(t *testing.T) (*game.Rules, *core.PlayerState) {
	t.Helper()
	r := game.DefaultRules()
	p, err := r.NewPlayer("Alice", "0xa", t0)
	require.NoError(t, err)
	return &r, p
}

func newCoordinator(rules *game.Rules, p prover.Prover, caps prover.Capacities, timeout time.Duration) *prover.Coordinator {
	return prover.NewCoordinator(p, rules, prover.CoordinatorConfig{Capacities: caps, Timeout: timeout}, nil)
}

func TestPad(t *testing.T) {
	out, err := prover.Pad([]uint64{4, 5}, 4, "stores")
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5, 0, 0}, out)

	_, err = prover.Pad([]uint64{1, 2, 3}, 2, "stores")
	assert.ErrorIs(t, err, core.ErrInputOverflow)
}

func TestMovementProofSignals(t *testing.T) {
	rules, p := newPlayer(t)
	fake := &testutil.FakeProver{}
	c := newCoordinator(rules, fake, prover.DefaultCapacities(), 0)

	var seen []int
	var phases []string
	ts := t0.Add(time.Minute)
	res, err := c.GenerateMovementProof(context.Background(), p, 2, core.AreaCity, ts, func(pct int, phase string) {
		seen = append(seen, pct)
		phases = append(phases, phase)
	})
	require.NoError(t, err)

	next, _, err := rules.NextMove(p, 2, core.AreaCity)
	require.NoError(t, err)
	assert.Equal(t, []string{
		commitment.Commit(p, commitment.VariantSum).String(),
		commitment.Commit(next, commitment.VariantSum).String(),
		strconv.FormatInt(ts.UnixMilli(), 10),
	}, res.Bundle.PublicSignals)
	assert.Equal(t, next, res.Next)
	assert.Equal(t, uint64(1), res.Next.Nonce)

	assert.IsIncreasing(t, seen)
	assert.Equal(t, 100, seen[len(seen)-1])
	assert.Equal(t, "Proof ready", phases[len(phases)-1])
}

func TestMovementToSameAreaNeverCallsProver(t *testing.T) {
	rules, p := newPlayer(t)
	fake := &testutil.FakeProver{}
	c := newCoordinator(rules, fake, prover.DefaultCapacities(), 0)

	_, err := c.GenerateMovementProof(context.Background(), p, 1, core.AreaStreet, t0, nil)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	assert.Zero(t, fake.Calls())
}

func TestClaimDuringCooldownNeverCallsProver(t *testing.T) {
	rules, p := newPlayer(t)
	p.LastClaimTime = t0.Add(-30 * time.Minute).UnixMilli()
	fake := &testutil.FakeProver{}
	c := newCoordinator(rules, fake, prover.DefaultCapacities(), 0)

	_, err := c.GenerateTimeRewardProof(context.Background(), p, 100, t0, nil)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	assert.ErrorIs(t, err, core.ErrCooldownActive)
	assert.Zero(t, fake.Calls())
}

func TestClaimProofSignals(t *testing.T) {
	rules, p := newPlayer(t)
	c := newCoordinator(rules, &testutil.FakeProver{}, prover.DefaultCapacities(), 0)

	res, err := c.GenerateTimeRewardProof(context.Background(), p, 100, t0, nil)
	require.NoError(t, err)
	require.Len(t, res.Bundle.PublicSignals, 4)
	assert.Equal(t, strconv.FormatInt(t0.UnixMilli(), 10), res.Bundle.PublicSignals[2])
	assert.Equal(t, "100", res.Bundle.PublicSignals[3])
	assert.Equal(t, uint64(1100), res.Next.Currency)
	assert.Equal(t, t0.UnixMilli(), res.Next.LastClaimTime)
}

func TestOverflowIsReportedBeforeProving(t *testing.T) {
	rules, p := newPlayer(t)
	fake := &testutil.FakeProver{}
	c := newCoordinator(rules, fake, prover.Capacities{Inventory: 64, Stores: 10, Explored: 1}, 0)

	// the move would add a second explored area
	_, err := c.GenerateMovementProof(context.Background(), p, 2, core.AreaCity, t0, nil)
	assert.ErrorIs(t, err, core.ErrInputOverflow)
	assert.Zero(t, fake.Calls())
}

func TestProverErrorsAreWrapped(t *testing.T) {
	rules, p := newPlayer(t)
	fake := &testutil.FakeProver{Err: errors.New("wasm trap")}
	c := newCoordinator(rules, fake, prover.DefaultCapacities(), 0)

	_, err := c.GenerateMovementProof(context.Background(), p, 2, core.AreaCity, t0, nil)
	assert.ErrorIs(t, err, core.ErrProofGenerationFailed)
	assert.Contains(t, err.Error(), "wasm trap")
}

func TestProverTimeout(t *testing.T) {
	rules, p := newPlayer(t)
	fake := &testutil.FakeProver{Delay: time.Second}
	c := newCoordinator(rules, fake, prover.DefaultCapacities(), 20*time.Millisecond)

	start := time.Now()
	_, err := c.GenerateMovementProof(context.Background(), p, 2, core.AreaCity, t0, nil)
	assert.ErrorIs(t, err, core.ErrProofGenerationFailed)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestMismatchedProverOutputIsRejected(t *testing.T) {
	rules, p := newPlayer(t)

	wrongCommitment := &testutil.FakeProver{Tamper: func(b *core.ProofBundle) { b.PublicSignals[1] = "12345" }}
	c := newCoordinator(rules, wrongCommitment, prover.DefaultCapacities(), 0)
	_, err := c.GenerateMovementProof(context.Background(), p, 2, core.AreaCity, t0, nil)
	assert.ErrorIs(t, err, core.ErrProofGenerationFailed)

	short := &testutil.FakeProver{Tamper: func(b *core.ProofBundle) { b.PublicSignals = b.PublicSignals[:2] }}
	c = newCoordinator(rules, short, prover.DefaultCapacities(), 0)
	_, err = c.GenerateMovementProof(context.Background(), p, 2, core.AreaCity, t0, nil)
	assert.ErrorIs(t, err, core.ErrSignalCountMismatch)

	malformed := &testutil.FakeProver{Tamper: func(b *core.ProofBundle) { b.Proof.PiA = []string{"x"} }}
	c = newCoordinator(rules, malformed, prover.DefaultCapacities(), 0)
	_, err = c.GenerateMovementProof(context.Background(), p, 2, core.AreaCity, t0, nil)
	assert.ErrorIs(t, err, core.ErrProofGenerationFailed)
	assert.ErrorIs(t, err, core.ErrMalformedProof)
}

func TestSnarkjsInputsLayout(t *testing.T) {
	_, p := newPlayer(t)
	old, err := prover.NewStateInputs(p, prover.DefaultCapacities())
	require.NoError(t, err)
	in := &prover.Inputs{Action: core.ActionMove, Old: old, NewAreaID: 2, NewAreaType: 2, Timestamp: 42}

	m := in.SnarkjsInputs()
	assert.Equal(t, p.PlayerID, m["playerId"])
	assert.Equal(t, "1", m["oldAreaId"])
	assert.Equal(t, "2", m["newAreaType"])
	assert.Equal(t, "1000", m["reputation"])
	assert.Len(t, m["inventory"], 64)
	assert.Len(t, m["ownedStores"], 10)
	assert.Len(t, m["exploredAreas"], 1000)
}
