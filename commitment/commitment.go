// Package commitment computes the canonical state commitment that binds a
// PlayerState snapshot as a public proof input.
//
// The digest is an element of the BN254 scalar field:
//
//	h = Σ term_i · 31^i  (mod p)
//	h = h·h + h          (mod p)
//
// over a fixed-order projection of the state. Variable-length collections
// are first reduced to one term each. Circuits recompute exactly this value,
// so any change here is a breaking change to every paired circuit.
package commitment

import (
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/crypto"
)

// Base is the Horner multiplier of the accumulation.
const Base = 31

// ReputationScale converts the real-valued reputation into integer
// milli-units before it enters the field.
const ReputationScale = 1000

// Term positions of the projection.
const (
	TermPlayerID = iota
	TermAreaID
	TermAreaType
	TermCurrency
	TermLastClaimTime
	TermReputation
	TermExperience
	TermNonce
	TermInventory
	TermStores
	TermExplored
	NumTerms
)

// Digest is a state commitment.
type Digest struct {
	e fr.Element
}

// BigInt returns the canonical integer value of d.
func (d Digest) BigInt() *big.Int { return d.e.BigInt(new(big.Int)) }

// String returns d in decimal, the form used in public signals.
func (d Digest) String() string { return d.BigInt().String() }

// Hex returns d as 0x-prefixed, zero-padded 64 hex digits.
func (d Digest) Hex() string { return fmt.Sprintf("0x%064x", d.BigInt()) }

// Equal reports whether two digests are identical.
func (d Digest) Equal(o Digest) bool { return d.e.Equal(&o.e) }

// Element exposes the raw field element.
func (d Digest) Element() fr.Element { return d.e }

// ParseDigest parses a decimal public signal. Values at or above the field
// modulus are rejected rather than reduced.
func ParseDigest(s string) (Digest, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return Digest{}, fmt.Errorf("%w: commitment %q is not a non-negative decimal", core.ErrMalformedProof, s)
	}
	if n.Cmp(fr.Modulus()) >= 0 {
		return Digest{}, fmt.Errorf("%w: commitment %q exceeds field modulus", core.ErrMalformedProof, s)
	}
	var d Digest
	d.e.SetBigInt(n)
	return d, nil
}

// Commit returns the commitment of s under variant v. It is pure and total:
// the same state always yields the same digest.
func Commit(s *core.PlayerState, v Variant) Digest {
	terms := Terms(s, v)
	return Combine(terms[:])
}

// Combine folds terms with the Horner accumulation and the final
// non-linear step.
func Combine(terms []fr.Element) Digest {
	var acc, pow, base, t fr.Element
	pow.SetOne()
	base.SetUint64(Base)
	for i := range terms {
		t.Mul(&terms[i], &pow)
		acc.Add(&acc, &t)
		pow.Mul(&pow, &base)
	}
	var sq fr.Element
	sq.Square(&acc)
	acc.Add(&sq, &acc)
	return Digest{e: acc}
}

// Terms projects s into the fixed-order term list.
func Terms(s *core.PlayerState, v Variant) [NumTerms]fr.Element {
	var out [NumTerms]fr.Element
	out[TermPlayerID] = PlayerIDElement(s.PlayerID)
	out[TermAreaID].SetUint64(s.Position.AreaID)
	out[TermAreaType].SetUint64(s.Position.AreaType.Code())
	out[TermCurrency].SetUint64(s.Currency)
	out[TermLastClaimTime].SetUint64(clampMillis(s.LastClaimTime))
	out[TermReputation].SetUint64(ScaledReputation(s.Reputation))
	out[TermExperience].SetUint64(s.Experience)
	out[TermNonce].SetUint64(s.Nonce)

	inv, stores, explored := Collections(s)
	out[TermInventory] = v.Reduce(inv)
	out[TermStores] = v.Reduce(stores)
	out[TermExplored] = v.Reduce(explored)
	return out
}

// Collections returns the variable-length parts of s as plain values:
// inventory quantities ordered by item key (reserved gather keys included),
// owned store ids, and explored area ids.
func Collections(s *core.PlayerState) (inventory, stores, explored []uint64) {
	keys := make([]string, 0, len(s.Inventory))
	for k := range s.Inventory {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	inventory = make([]uint64, 0, len(keys))
	for _, k := range keys {
		inventory = append(inventory, s.Inventory[k])
	}
	stores = append([]uint64(nil), s.OwnedStores...)
	explored = make([]uint64, 0, len(s.ExploredAreas))
	for _, a := range s.ExploredAreas {
		explored = append(explored, a.ID)
	}
	return inventory, stores, explored
}

// PlayerIDElement maps a player id into the field. Decimal ids below the
// modulus map to themselves; anything else maps to SHA-256(id) mod p.
func PlayerIDElement(id string) fr.Element {
	var e fr.Element
	if n, ok := new(big.Int).SetString(id, 10); ok && n.Sign() >= 0 && n.Cmp(fr.Modulus()) < 0 {
		e.SetBigInt(n)
		return e
	}
	n, _ := new(big.Int).SetString(crypto.Hash([]byte(id)), 16)
	e.SetBigInt(n)
	return e
}

// ScaledReputation rounds reputation to milli-units. Negative and non-finite
// values clamp to 0.
func ScaledReputation(r float64) uint64 {
	if math.IsNaN(r) || r <= 0 {
		return 0
	}
	scaled := math.Round(r * ReputationScale)
	if scaled >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(scaled)
}

func clampMillis(ms int64) uint64 {
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}
