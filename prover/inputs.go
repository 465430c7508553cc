// Package prover turns a player state and an intended transition into a
// Groth16 proof whose public signals bind the old and new state
// commitments.
package prover

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/tolelom/zkgame/commitment"
	"github.com/tolelom/zkgame/core"
)

// Capacities are the fixed array sizes of the circuits.
type Capacities struct {
	Inventory int `yaml:"inventory_size"`
	Stores    int `yaml:"store_size"`
	Explored  int `yaml:"explored_size"`
}

// DefaultCapacities matches the shipped game circuits.
func DefaultCapacities() Capacities {
	return Capacities{Inventory: 64, Stores: 10, Explored: 1000}
}

func (c Capacities) key() string {
	return fmt.Sprintf("%d/%d/%d", c.Inventory, c.Stores, c.Explored)
}

// Pad copies values into a slice of length capacity filled with 0. A
// collection larger than capacity is ErrInputOverflow.
func Pad(values []uint64, capacity int, name string) ([]uint64, error) {
	if len(values) > capacity {
		return nil, fmt.Errorf("%w: %s has %d entries, circuit capacity is %d", core.ErrInputOverflow, name, len(values), capacity)
	}
	out := make([]uint64, capacity)
	copy(out, values)
	return out, nil
}

// StateInputs is one player state in circuit form.
type StateInputs struct {
	PlayerID      *big.Int
	AreaID        uint64
	AreaType      uint64
	Currency      uint64
	LastClaimTime uint64
	Reputation    uint64
	Experience    uint64
	Nonce         uint64
	Inventory     []uint64
	Stores        []uint64
	Explored      []uint64
}

// NewStateInputs projects s into circuit form, padding its collections.
func NewStateInputs(s *core.PlayerState, caps Capacities) (StateInputs, error) {
	inv, stores, explored := commitment.Collections(s)
	var err error
	if inv, err = Pad(inv, caps.Inventory, "inventory"); err != nil {
		return StateInputs{}, err
	}
	if stores, err = Pad(stores, caps.Stores, "owned stores"); err != nil {
		return StateInputs{}, err
	}
	if explored, err = Pad(explored, caps.Explored, "explored areas"); err != nil {
		return StateInputs{}, err
	}
	terms := commitment.Terms(s, commitment.VariantSum)
	return StateInputs{
		PlayerID:      terms[commitment.TermPlayerID].BigInt(new(big.Int)),
		AreaID:        s.Position.AreaID,
		AreaType:      s.Position.AreaType.Code(),
		Currency:      s.Currency,
		LastClaimTime: terms[commitment.TermLastClaimTime].Uint64(),
		Reputation:    commitment.ScaledReputation(s.Reputation),
		Experience:    s.Experience,
		Nonce:         s.Nonce,
		Inventory:     inv,
		Stores:        stores,
		Explored:      explored,
	}, nil
}

// Inputs is everything a Prover needs for one transition. Old is the
// pre-transition state; the remaining fields describe the change.
type Inputs struct {
	Action core.Action
	Old    StateInputs

	// movement
	NewAreaID      uint64
	NewAreaType    uint64
	ExperienceGain uint64
	NewlyExplored  bool
	Timestamp      uint64

	// reward claim
	CurrentTime uint64
	Reward      uint64

	// Expected commitments, used for sanity checks only.
	OldCommitment commitment.Digest
	NewCommitment commitment.Digest
}

// Signals returns the public signals these inputs should produce, in wire
// order.
func (in *Inputs) Signals() []string {
	sig := []string{in.OldCommitment.String(), in.NewCommitment.String()}
	switch in.Action {
	case core.ActionMove:
		sig = append(sig, strconv.FormatUint(in.Timestamp, 10))
	case core.ActionClaim:
		sig = append(sig, strconv.FormatUint(in.CurrentTime, 10), strconv.FormatUint(in.Reward, 10))
	}
	return sig
}

// SnarkjsInputs renders the inputs as the JSON object the game's circom
// circuits read.
func (in *Inputs) SnarkjsInputs() map[string]any {
	o := in.Old
	m := map[string]any{
		"playerId":      o.PlayerID.String(),
		"currency":      dec(o.Currency),
		"lastClaimTime": dec(o.LastClaimTime),
		"reputation":    dec(o.Reputation),
		"experience":    dec(o.Experience),
		"nonce":         dec(o.Nonce),
		"inventory":     decs(o.Inventory),
		"ownedStores":   decs(o.Stores),
		"exploredAreas": decs(o.Explored),
	}
	switch in.Action {
	case core.ActionMove:
		m["oldAreaId"] = dec(o.AreaID)
		m["oldAreaType"] = dec(o.AreaType)
		m["newAreaId"] = dec(in.NewAreaID)
		m["newAreaType"] = dec(in.NewAreaType)
		m["timestamp"] = dec(in.Timestamp)
	case core.ActionClaim:
		m["areaId"] = dec(o.AreaID)
		m["areaType"] = dec(o.AreaType)
		m["currentTime"] = dec(in.CurrentTime)
		m["rewardAmount"] = dec(in.Reward)
	}
	return m
}

func dec(v uint64) string { return strconv.FormatUint(v, 10) }

func decs(vs []uint64) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = dec(v)
	}
	return out
}
