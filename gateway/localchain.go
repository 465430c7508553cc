package gateway

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/crypto"
	"github.com/tolelom/zkgame/prover"
	"github.com/tolelom/zkgame/storage"
)

// Revert reasons used by LocalChain, matching the GameCore contract.
const (
	ReasonCommitmentMismatch = "State commitment mismatch"
	ReasonInvalidProof       = "Invalid proof"
)

const (
	prefixChainCommitment = "chain:commitment:"
	prefixChainTx         = "chain:tx:"
	keyChainHeight        = "chain:height"
)

// txRecord is what LocalChain keeps per transaction.
type txRecord struct {
	Hash      string      `json:"hash"`
	Action    core.Action `json:"action"`
	Sender    string      `json:"sender"`
	Block     uint64      `json:"block"`
	Status    Status      `json:"status"`
	Reason    string      `json:"reason,omitempty"`
	Signals   []string    `json:"signals"`
	Timestamp int64       `json:"timestamp"`
}

// LocalChain is an in-process verifier for development. It keeps each
// sender's current commitment in the KV store and applies the contract's
// rule: signal 0 must equal the recorded commitment, then signal 1 replaces
// it. A sender without a record is registered by its first submission.
type LocalChain struct {
	db       storage.DB
	verifier prover.Verifier // optional
	log      *zap.Logger

	mu sync.Mutex
}

// NewLocalChain creates a LocalChain over db. If verifier is non-nil every
// proof is checked before the commitment rule.
func NewLocalChain(db storage.DB, verifier prover.Verifier, log *zap.Logger) *LocalChain {
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalChain{db: db, verifier: verifier, log: log.With(zap.String("module", "localchain"))}
}

// Commitment returns the recorded commitment for sender, or ErrNotFound.
func (c *LocalChain) Commitment(sender string) (string, error) {
	v, err := c.db.Get([]byte(prefixChainCommitment + core.WalletKey(sender)))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// Initialize records commitment as sender's current state, like the
// contract's initializePlayer.
func (c *LocalChain) Initialize(sender, commitment string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Set([]byte(prefixChainCommitment+core.WalletKey(sender)), []byte(commitment))
}

func (c *LocalChain) height() (uint64, error) {
	v, err := c.db.Get([]byte(keyChainHeight))
	if errors.Is(err, core.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("corrupt chain height")
	}
	return binary.BigEndian.Uint64(v), nil
}

// Send implements Backend.
func (c *LocalChain) Send(ctx context.Context, call *Call) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	sender := core.WalletKey(call.Sender)
	h, err := c.height()
	if err != nil {
		return "", err
	}
	block := h + 1
	signals := make([]string, len(call.Signals))
	for i, s := range call.Signals {
		signals[i] = s.String()
	}
	now := time.Now().UnixMilli()
	hash := crypto.Keccak256Hex([]byte(call.Action), []byte(sender), []byte(strconv.FormatUint(block, 10)),
		[]byte(signals[0]), []byte(signals[1]))

	rec := txRecord{Hash: hash, Action: call.Action, Sender: sender, Block: block, Status: StatusSuccess,
		Signals: signals, Timestamp: now}
	var reason string
	if c.verifier != nil && call.Bundle != nil {
		if err := c.verifier.Verify(call.Action, call.Bundle); err != nil {
			c.log.Debug("proof rejected", zap.String("sender", sender), zap.Error(err))
			reason = ReasonInvalidProof
		}
	}
	current, err := c.Commitment(sender)
	switch {
	case reason != "":
	case errors.Is(err, core.ErrNotFound):
		c.log.Info("registering sender on first submission", zap.String("sender", sender))
	case err != nil:
		return "", err
	case current != signals[0]:
		reason = ReasonCommitmentMismatch
	}

	batch := c.db.NewBatch()
	if reason != "" {
		rec.Status = StatusFailed
		rec.Reason = reason
	} else {
		batch.Set([]byte(prefixChainCommitment+sender), []byte(signals[1]))
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	batch.Set([]byte(prefixChainTx+hash), raw)
	var hb [8]byte
	binary.BigEndian.PutUint64(hb[:], block)
	batch.Set([]byte(keyChainHeight), hb[:])
	if err := batch.Write(); err != nil {
		return "", err
	}
	if reason != "" {
		return hash, &RevertError{Hash: hash, Reason: reason}
	}
	c.log.Debug("block sealed", zap.Uint64("block", block), zap.String("hash", hash), zap.String("sender", sender))
	return hash, nil
}

// ReceiptStatus implements Backend.
func (c *LocalChain) ReceiptStatus(_ context.Context, hash string) (Status, error) {
	raw, err := c.db.Get([]byte(prefixChainTx + hash))
	if errors.Is(err, core.ErrNotFound) {
		return StatusUnknown, nil
	}
	if err != nil {
		return StatusUnknown, err
	}
	var rec txRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return StatusUnknown, err
	}
	return rec.Status, nil
}
