package prover_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/zkgame/commitment"
	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/prover"
)

// small keeps setup fast; the circuit shape is otherwise identical.
var small = prover.Capacities{Inventory: 4, Stores: 2, Explored: 4}

func TestGroth16RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	rules, p := newPlayer(t)
	p.Inventory["wood"] = 3
	p.Inventory[core.GatherKey("wood")] = uint64(t0.Add(-time.Hour).UnixMilli())
	p.Reputation = 1.5

	g, err := prover.NewGroth16Prover(small, rules, commitment.VariantSum, nil)
	require.NoError(t, err)
	c := prover.NewCoordinator(g, rules, prover.CoordinatorConfig{Capacities: small}, nil)

	moved, err := c.GenerateMovementProof(context.Background(), p, 2, core.AreaCity, t0, nil)
	require.NoError(t, err)
	assert.Len(t, moved.Bundle.Proof.PiB, 3)
	require.NoError(t, g.Verify(core.ActionMove, moved.Bundle))

	reward := rules.ClaimReward(time.Hour, moved.Next.Reputation)
	claimed, err := c.GenerateTimeRewardProof(context.Background(), moved.Next, reward, t0, nil)
	require.NoError(t, err)
	require.NoError(t, g.Verify(core.ActionClaim, claimed.Bundle))
	assert.Equal(t, moved.NewCommitment, claimed.OldCommitment)

	// a proof does not verify against different public signals
	tampered := *claimed.Bundle
	tampered.PublicSignals = append([]string(nil), claimed.Bundle.PublicSignals...)
	tampered.PublicSignals[3] = "999999"
	assert.Error(t, g.Verify(core.ActionClaim, &tampered))
}

func TestGroth16RejectsOverstatedReward(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	rules, p := newPlayer(t)
	g, err := prover.NewGroth16Prover(small, rules, commitment.VariantSum, nil)
	require.NoError(t, err)
	c := prover.NewCoordinator(g, rules, prover.CoordinatorConfig{Capacities: small}, nil)

	// one hour at reputation 1.0 is worth 100
	_, err = c.GenerateTimeRewardProof(context.Background(), p, 500, t0, nil)
	assert.ErrorIs(t, err, core.ErrProofGenerationFailed)
}

func TestGroth16RefusesMiMCVariant(t *testing.T) {
	rules, _ := newPlayer(t)
	_, err := prover.NewGroth16Prover(small, rules, commitment.VariantMiMC, nil)
	assert.Error(t, err)
}
