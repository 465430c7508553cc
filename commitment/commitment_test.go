package commitment

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/zkgame/core"
)

func sampleState() *core.PlayerState {
	return &core.PlayerState{
		PlayerID: "1717171717171",
		Name:     "Alice",
		Position: core.Position{AreaID: 1, AreaType: core.AreaStreet, Country: "Aetheria", City: "Newhaven", Street: "Main Street"},
		Inventory: map[string]uint64{
			"wood":             3,
			"iron_ore":         2,
			"last_gather_wood": 1717171000000,
		},
		Currency:      1000,
		Experience:    15,
		Reputation:    1.0,
		LastClaimTime: 1717167571717,
		OwnedStores:   []uint64{1717171800000},
		ExploredAreas: []core.ExploredArea{{ID: 1, Type: core.AreaStreet}},
		Nonce:         3,
	}
}

// horner recomputes the accumulation with math/big as an independent check.
func horner(terms []*big.Int) *big.Int {
	p := fr.Modulus()
	acc := new(big.Int)
	pow := big.NewInt(1)
	for _, t := range terms {
		acc.Add(acc, new(big.Int).Mul(t, pow))
		acc.Mod(acc, p)
		pow.Mul(pow, big.NewInt(Base))
		pow.Mod(pow, p)
	}
	sq := new(big.Int).Mul(acc, acc)
	acc.Add(sq, acc)
	return acc.Mod(acc, p)
}

func TestCommitDeterministic(t *testing.T) {
	s := sampleState()
	a := Commit(s, VariantSum)
	b := Commit(s.Clone(), VariantSum)
	require.True(t, a.Equal(b))
	require.Equal(t, a.String(), Commit(s, VariantSum).String())
}

func TestCommitMatchesBigIntReference(t *testing.T) {
	s := sampleState()
	terms := []*big.Int{
		big.NewInt(1717171717171),
		big.NewInt(1),
		big.NewInt(1),
		big.NewInt(1000),
		big.NewInt(1717167571717),
		big.NewInt(1000),
		big.NewInt(15),
		big.NewInt(3),
		big.NewInt(3 + 2 + 1717171000000),
		big.NewInt(1717171800000),
		big.NewInt(1),
	}
	assert.Equal(t, horner(terms).String(), Commit(s, VariantSum).String())
}

func TestCommitSensitivity(t *testing.T) {
	base := Commit(sampleState(), VariantSum)
	mutations := map[string]func(*core.PlayerState){
		"player id":  func(s *core.PlayerState) { s.PlayerID = "1717171717172" },
		"area id":    func(s *core.PlayerState) { s.Position.AreaID = 2 },
		"area type":  func(s *core.PlayerState) { s.Position.AreaType = core.AreaCity },
		"currency":   func(s *core.PlayerState) { s.Currency++ },
		"claim time": func(s *core.PlayerState) { s.LastClaimTime++ },
		"reputation": func(s *core.PlayerState) { s.Reputation = 1.5 },
		"experience": func(s *core.PlayerState) { s.Experience++ },
		"nonce":      func(s *core.PlayerState) { s.Nonce++ },
		"inventory":  func(s *core.PlayerState) { s.Inventory["wood"]++ },
		"stores":     func(s *core.PlayerState) { s.OwnedStores = append(s.OwnedStores, 7) },
		"explored":   func(s *core.PlayerState) { s.ExploredAreas = append(s.ExploredAreas, core.ExploredArea{ID: 2, Type: core.AreaCity}) },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			s := sampleState()
			mutate(s)
			assert.False(t, base.Equal(Commit(s, VariantSum)))
			assert.False(t, Commit(sampleState(), VariantMiMC).Equal(Commit(s, VariantMiMC)))
		})
	}
}

func TestCommitSurvivesSerialization(t *testing.T) {
	s := sampleState()
	before := Commit(s, VariantSum)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var loaded core.PlayerState
	require.NoError(t, json.Unmarshal(raw, &loaded))

	assert.True(t, before.Equal(Commit(&loaded, VariantSum)))
}

func TestEmptyCollectionsReduceToZero(t *testing.T) {
	for _, v := range []Variant{VariantSum, VariantMiMC} {
		z := v.Reduce(nil)
		assert.True(t, z.IsZero(), "variant %s", v)
		padded := v.Reduce(make([]uint64, 64))
		assert.True(t, padded.IsZero(), "variant %s with zero padding", v)
	}
}

func TestMiMCIsOrderIndependent(t *testing.T) {
	a := VariantMiMC.Reduce([]uint64{5, 1, 9, 0})
	b := VariantMiMC.Reduce([]uint64{9, 0, 0, 5, 1})
	assert.True(t, a.Equal(&b))
	sum := VariantSum.Reduce([]uint64{5, 1, 9})
	assert.False(t, a.Equal(&sum))
}

func TestParseDigest(t *testing.T) {
	d := Commit(sampleState(), VariantSum)
	back, err := ParseDigest(d.String())
	require.NoError(t, err)
	assert.True(t, d.Equal(back))
	assert.Len(t, d.Hex(), 66)

	_, err = ParseDigest(fr.Modulus().String())
	assert.ErrorIs(t, err, core.ErrMalformedProof)
	_, err = ParseDigest("0xabc")
	assert.ErrorIs(t, err, core.ErrMalformedProof)
}

func TestPlayerIDElementFallsBackToHash(t *testing.T) {
	a := PlayerIDElement("not-a-number")
	b := PlayerIDElement("not-a-number")
	assert.True(t, a.Equal(&b))
	assert.False(t, a.IsZero())

	n := PlayerIDElement("42")
	assert.Equal(t, uint64(42), n.Uint64())
}

func TestScaledReputation(t *testing.T) {
	assert.Equal(t, uint64(1000), ScaledReputation(1.0))
	assert.Equal(t, uint64(1235), ScaledReputation(1.2346))
	assert.Equal(t, uint64(0), ScaledReputation(-3))
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("")
	require.NoError(t, err)
	assert.Equal(t, VariantSum, v)
	v, err = ParseVariant("MiMC")
	require.NoError(t, err)
	assert.Equal(t, VariantMiMC, v)
	_, err = ParseVariant("poseidon")
	assert.Error(t, err)
}
