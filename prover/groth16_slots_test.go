package prover

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/zkgame/commitment"
	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/game"
)

func TestFullProveWaitsForASlot(t *testing.T) {
	rules := game.DefaultRules()
	g, err := NewGroth16Prover(DefaultCapacities(), &rules, commitment.VariantSum, nil)
	require.NoError(t, err)
	for i := 0; i < MaxConcurrentProofs; i++ {
		g.slots <- struct{}{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.FullProve(ctx, &Inputs{Action: core.ActionMove}, Artifact{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, g.cache, "no setup ran without a slot")
	assert.Len(t, g.slots, MaxConcurrentProofs)
}
