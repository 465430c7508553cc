package wallet

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Wallet holds a secp256k1 key pair.
type Wallet struct {
	priv *ecdsa.PrivateKey
	addr common.Address
}

// New creates a Wallet from an existing private key.
func New(priv *ecdsa.PrivateKey) *Wallet {
	return &Wallet{priv: priv, addr: ethcrypto.PubkeyToAddress(priv.PublicKey)}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// FromHex builds a Wallet from a hex-encoded private key, with or without
// the 0x prefix.
func FromHex(s string) (*Wallet, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	priv, err := ethcrypto.HexToECDSA(s)
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivateKey returns the raw private key (handle with care).
func (w *Wallet) PrivateKey() *ecdsa.PrivateKey { return w.priv }

// Address returns the EIP-55 checksummed address. Players are keyed by its
// lowercase form.
func (w *Wallet) Address() string { return w.addr.Hex() }

// Sign signs the Keccak-256 hash of data in the [R || S || V] format.
func (w *Wallet) Sign(data []byte) ([]byte, error) {
	return ethcrypto.Sign(ethcrypto.Keccak256(data), w.priv)
}

// Verify checks that sig over data was produced by address.
func Verify(address string, data, sig []byte) bool {
	pub, err := ethcrypto.SigToPub(ethcrypto.Keccak256(data), sig)
	if err != nil {
		return false
	}
	return ethcrypto.PubkeyToAddress(*pub) == common.HexToAddress(address)
}

// TransactOpts returns signing options for chainID.
func (w *Wallet) TransactOpts(chainID int64) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(w.priv, big.NewInt(chainID))
}
