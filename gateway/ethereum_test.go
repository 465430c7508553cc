package gateway

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/zkgame/core"
)

func TestGameCoreABIPacksCalls(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(GameCoreABI))
	require.NoError(t, err)

	call, err := Format(&core.ProofBundle{
		Proof: core.Proof{
			PiA: []string{"1", "2", "1"},
			PiB: [][]string{{"3", "4"}, {"5", "6"}, {"1", "0"}},
			PiC: []string{"7", "8", "1"},
		},
		PublicSignals: []string{"9", "10", "11", "12"},
	}, core.ActionClaim)
	require.NoError(t, err)

	name, err := method(call.Action)
	require.NoError(t, err)
	assert.Equal(t, "claimReward", name)
	signals, err := signalArray(call.Signals)
	require.NoError(t, err)

	data, err := parsed.Pack(name, call.A, call.B, call.C, signals)
	require.NoError(t, err)
	// selector + 2 + 4 + 2 + 4 static words
	assert.Len(t, data, 4+12*32)
	assert.Equal(t, parsed.Methods["claimReward"].ID, data[:4])
	assert.Equal(t, big.NewInt(12), new(big.Int).SetBytes(data[len(data)-32:]))

	// a claim's four signals do not fit move's uint256[3]
	_, err = parsed.Pack("move", call.A, call.B, call.C, signals)
	assert.Error(t, err)
}

func TestSignalArrayAndMethod(t *testing.T) {
	_, err := signalArray(make([]*big.Int, 5))
	assert.ErrorIs(t, err, core.ErrSignalCountMismatch)
	_, err = method(core.Action("teleport"))
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	name, err := method(core.ActionMove)
	require.NoError(t, err)
	assert.Equal(t, "move", name)
}
