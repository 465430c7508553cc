package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tolelom/zkgame/crypto"
)

// TxType identifies a local, non-proof-gated mutation.
type TxType string

const (
	TxGather        TxType = "gather"
	TxCompleteCraft TxType = "complete_craft"
	TxBuyStore      TxType = "buy_store"
)

// Transaction is one local action against a player's state. It is never
// sent to the verifier; its hash only labels events and journal rows.
type Transaction struct {
	ID        string          `json:"id"`
	Type      TxType          `json:"type"`
	Wallet    string          `json:"wallet"`
	Nonce     uint64          `json:"nonce"` // player nonce the action was built against
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the transaction (sans ID).
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (tx *Transaction) Hash() string {
	body := struct {
		Type      TxType          `json:"type"`
		Wallet    string          `json:"wallet"`
		Nonce     uint64          `json:"nonce"`
		Timestamp int64           `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
	}{tx.Type, tx.Wallet, tx.Nonce, tx.Timestamp, tx.Payload}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// NewTransaction builds a transaction stamped with now and sets its ID.
func NewTransaction(typ TxType, wallet string, nonce uint64, payload any, now time.Time) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	tx := &Transaction{
		Type:      typ,
		Wallet:    WalletKey(wallet),
		Nonce:     nonce,
		Timestamp: now.UnixMilli(),
		Payload:   raw,
	}
	tx.ID = tx.Hash()
	return tx, nil
}

// ---- Payload types ----

// GatherPayload collects quantity units of a resource.
type GatherPayload struct {
	Resource string `json:"resource"`
	Quantity uint64 `json:"quantity"`
}

// CompleteCraftPayload finishes a ready craft.
type CompleteCraftPayload struct {
	CraftID string `json:"craft_id"`
}

// BuyStorePayload purchases a store in a city.
type BuyStorePayload struct {
	City  string `json:"city"`
	Price uint64 `json:"price"`
}
