// Package crypto holds the hashing helpers shared across the module.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Hash returns the SHA-256 hash of data as a lowercase hex string.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Keccak256Hex returns the 0x-prefixed Keccak-256 of the concatenated
// inputs, the form transaction hashes take on an EVM chain.
func Keccak256Hex(data ...[]byte) string {
	return ethcrypto.Keccak256Hash(data...).Hex()
}

// Short abbreviates a long hex string for log lines.
func Short(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:10] + "…" + h[len(h)-4:]
}
