package prover

import (
	"math/big"

	"github.com/consensys/gnark/frontend"

	"github.com/tolelom/zkgame/commitment"
)

// millisPerHourMilli scales a reward so it can be compared against
// rate · elapsed_ms · reputation_milli without division.
const millisPerHourMilli = 3_600_000 * commitment.ReputationScale

// StateVars is a player state as circuit variables. Collections are the
// padded arrays; their lengths fix the circuit shape.
type StateVars struct {
	PlayerID      frontend.Variable
	AreaID        frontend.Variable
	AreaType      frontend.Variable
	Currency      frontend.Variable
	LastClaimTime frontend.Variable
	Reputation    frontend.Variable
	Experience    frontend.Variable
	Nonce         frontend.Variable
	Inventory     []frontend.Variable
	Stores        []frontend.Variable
	Explored      []frontend.Variable
}

func newStateVars(caps Capacities) StateVars {
	return StateVars{
		Inventory: make([]frontend.Variable, caps.Inventory),
		Stores:    make([]frontend.Variable, caps.Stores),
		Explored:  make([]frontend.Variable, caps.Explored),
	}
}

func assignState(in StateInputs) StateVars {
	return StateVars{
		PlayerID:      in.PlayerID,
		AreaID:        in.AreaID,
		AreaType:      in.AreaType,
		Currency:      in.Currency,
		LastClaimTime: in.LastClaimTime,
		Reputation:    in.Reputation,
		Experience:    in.Experience,
		Nonce:         in.Nonce,
		Inventory:     vars(in.Inventory),
		Stores:        vars(in.Stores),
		Explored:      vars(in.Explored),
	}
}

func vars(vs []uint64) []frontend.Variable {
	out := make([]frontend.Variable, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

// terms returns the commitment projection with sum-reduced collections.
func (s *StateVars) terms(api frontend.API) [commitment.NumTerms]frontend.Variable {
	var t [commitment.NumTerms]frontend.Variable
	t[commitment.TermPlayerID] = s.PlayerID
	t[commitment.TermAreaID] = s.AreaID
	t[commitment.TermAreaType] = s.AreaType
	t[commitment.TermCurrency] = s.Currency
	t[commitment.TermLastClaimTime] = s.LastClaimTime
	t[commitment.TermReputation] = s.Reputation
	t[commitment.TermExperience] = s.Experience
	t[commitment.TermNonce] = s.Nonce
	t[commitment.TermInventory] = sum(api, s.Inventory)
	t[commitment.TermStores] = sum(api, s.Stores)
	t[commitment.TermExplored] = sum(api, s.Explored)
	return t
}

func sum(api frontend.API, vs []frontend.Variable) frontend.Variable {
	var acc frontend.Variable = 0
	for _, v := range vs {
		acc = api.Add(acc, v)
	}
	return acc
}

// commit mirrors commitment.Combine.
func commit(api frontend.API, terms [commitment.NumTerms]frontend.Variable) frontend.Variable {
	var acc frontend.Variable = 0
	pow := big.NewInt(1)
	base := big.NewInt(commitment.Base)
	for _, t := range terms {
		acc = api.Add(acc, api.Mul(t, new(big.Int).Set(pow)))
		pow.Mul(pow, base)
	}
	return api.Add(api.Mul(acc, acc), acc)
}

// MovementCircuit proves that NewCommitment is OldCommitment's state moved
// to a different area with the matching experience gain and nonce+1.
type MovementCircuit struct {
	OldCommitment frontend.Variable `gnark:",public"`
	NewCommitment frontend.Variable `gnark:",public"`
	Timestamp     frontend.Variable `gnark:",public"`

	State          StateVars
	NewAreaID      frontend.Variable
	NewAreaType    frontend.Variable
	ExperienceGain frontend.Variable
	NewlyExplored  frontend.Variable

	// Experience for street, city and country.
	MoveXP [3]uint64 `gnark:"-"`
}

func (c *MovementCircuit) Define(api frontend.API) error {
	old := c.State.terms(api)
	api.AssertIsEqual(commit(api, old), c.OldCommitment)
	api.AssertIsDifferent(c.State.AreaID, c.NewAreaID)
	api.AssertIsDifferent(c.Timestamp, 0)

	t := c.NewAreaType
	api.AssertIsEqual(api.Mul(api.Sub(t, 1), api.Sub(t, 2), api.Sub(t, 3)), 0)
	gain := api.Select(api.IsZero(api.Sub(t, 1)), c.MoveXP[0],
		api.Select(api.IsZero(api.Sub(t, 2)), c.MoveXP[1], c.MoveXP[2]))
	api.AssertIsEqual(c.ExperienceGain, gain)
	api.AssertIsBoolean(c.NewlyExplored)

	next := old
	next[commitment.TermAreaID] = c.NewAreaID
	next[commitment.TermAreaType] = t
	next[commitment.TermExperience] = api.Add(old[commitment.TermExperience], gain)
	next[commitment.TermNonce] = api.Add(old[commitment.TermNonce], 1)
	next[commitment.TermExplored] = api.Add(old[commitment.TermExplored], api.Mul(c.NewlyExplored, c.NewAreaID))
	api.AssertIsEqual(commit(api, next), c.NewCommitment)
	return nil
}

// RewardCircuit proves a time-reward claim: the cooldown has elapsed, the
// reward does not exceed rate · hours · reputation, and the new state
// credits it with nonce+1.
type RewardCircuit struct {
	OldCommitment frontend.Variable `gnark:",public"`
	NewCommitment frontend.Variable `gnark:",public"`
	CurrentTime   frontend.Variable `gnark:",public"`
	Reward        frontend.Variable `gnark:",public"`

	State StateVars

	CooldownMillis uint64 `gnark:"-"`
	RewardPerHour  uint64 `gnark:"-"`
}

func (c *RewardCircuit) Define(api frontend.API) error {
	old := c.State.terms(api)
	api.AssertIsEqual(commit(api, old), c.OldCommitment)

	api.AssertIsLessOrEqual(api.Add(c.State.LastClaimTime, c.CooldownMillis), c.CurrentTime)
	elapsed := api.Sub(c.CurrentTime, c.State.LastClaimTime)
	// reputation is rounded to milli-units, so allow one milli of slack
	limit := api.Mul(c.RewardPerHour, elapsed, api.Add(c.State.Reputation, 1))
	api.AssertIsLessOrEqual(api.Mul(c.Reward, millisPerHourMilli), limit)

	next := old
	next[commitment.TermCurrency] = api.Add(old[commitment.TermCurrency], c.Reward)
	next[commitment.TermLastClaimTime] = c.CurrentTime
	next[commitment.TermNonce] = api.Add(old[commitment.TermNonce], 1)
	api.AssertIsEqual(commit(api, next), c.NewCommitment)
	return nil
}
