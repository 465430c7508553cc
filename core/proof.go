package core

import (
	"fmt"
	"math/big"
)

// Action identifies a proof-gated transition kind.
type Action string

const (
	ActionMove  Action = "move"
	ActionClaim Action = "claim_reward"
)

// SignalCount returns the number of public signals the verifier expects for
// a. Movement exposes [old, new, timestamp]; claim exposes
// [old, new, currentTime, rewardAmount].
func (a Action) SignalCount() int {
	switch a {
	case ActionMove:
		return 3
	case ActionClaim:
		return 4
	}
	return 0
}

// Proof is a Groth16 proof in the snarkjs JSON layout: projective
// coordinates as decimal strings, G2 points as [x, y, z] of [c0, c1] pairs.
type Proof struct {
	PiA      []string   `json:"pi_a"`
	PiB      [][]string `json:"pi_b"`
	PiC      []string   `json:"pi_c"`
	Protocol string     `json:"protocol,omitempty"`
	Curve    string     `json:"curve,omitempty"`
}

// ProofBundle is a proof plus its ordered public signals. Signals [0] and [1]
// are always the old and new state commitments.
type ProofBundle struct {
	Proof         Proof    `json:"proof"`
	PublicSignals []string `json:"publicSignals"`
}

// Validate checks shapes and that every coordinate parses as a decimal
// integer. It does not check curve membership.
func (b *ProofBundle) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil bundle", ErrMalformedProof)
	}
	if len(b.Proof.PiA) < 2 || len(b.Proof.PiC) < 2 {
		return fmt.Errorf("%w: pi_a/pi_c need at least 2 coordinates", ErrMalformedProof)
	}
	if len(b.Proof.PiB) < 2 || len(b.Proof.PiB[0]) < 2 || len(b.Proof.PiB[1]) < 2 {
		return fmt.Errorf("%w: pi_b must be at least 2x2", ErrMalformedProof)
	}
	coords := []string{b.Proof.PiA[0], b.Proof.PiA[1], b.Proof.PiC[0], b.Proof.PiC[1]}
	for i := 0; i < 2; i++ {
		coords = append(coords, b.Proof.PiB[i][0], b.Proof.PiB[i][1])
	}
	for _, c := range coords {
		if _, ok := new(big.Int).SetString(c, 10); !ok {
			return fmt.Errorf("%w: coordinate %q is not a decimal integer", ErrMalformedProof, c)
		}
	}
	return nil
}

// OldCommitment returns signal 0 or "" if absent.
func (b *ProofBundle) OldCommitment() string {
	if len(b.PublicSignals) < 1 {
		return ""
	}
	return b.PublicSignals[0]
}

// NewCommitment returns signal 1 or "" if absent.
func (b *ProofBundle) NewCommitment() string {
	if len(b.PublicSignals) < 2 {
		return ""
	}
	return b.PublicSignals[1]
}
