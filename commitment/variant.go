package commitment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// Variant selects how a collection is reduced to a single term. It is a
// compatibility contract with the paired circuit, not a security setting.
type Variant string

const (
	// VariantSum adds all elements mod p. Order-independent; an empty
	// collection reduces to 0. The shipped circuits implement this one.
	VariantSum Variant = "sum"
	// VariantMiMC hashes the ascending-sorted non-zero elements with
	// MiMC-BN254. Binding, still order-independent, and empty (or all-zero
	// padding) reduces to 0.
	VariantMiMC Variant = "mimc"
)

// ParseVariant accepts "sum" or "mimc". Empty selects VariantSum.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return VariantSum, nil
	case VariantSum, VariantMiMC:
		return v, nil
	default:
		return "", fmt.Errorf("unknown commitment variant %q", s)
	}
}

// Reduce folds values into one field element.
func (v Variant) Reduce(values []uint64) fr.Element {
	if v == VariantMiMC {
		return reduceMiMC(values)
	}
	return reduceSum(values)
}

func reduceSum(values []uint64) fr.Element {
	var acc, e fr.Element
	for _, x := range values {
		e.SetUint64(x)
		acc.Add(&acc, &e)
	}
	return acc
}

func reduceMiMC(values []uint64) fr.Element {
	var acc fr.Element
	nz := make([]uint64, 0, len(values))
	for _, x := range values {
		if x != 0 {
			nz = append(nz, x)
		}
	}
	if len(nz) == 0 {
		return acc
	}
	sort.Slice(nz, func(i, j int) bool { return nz[i] < nz[j] })

	h := mimc.NewMiMC()
	var e fr.Element
	for _, x := range nz {
		e.SetUint64(x)
		b := e.Bytes()
		h.Write(b[:])
	}
	acc.SetBytes(h.Sum(nil))
	return acc
}
