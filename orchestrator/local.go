package orchestrator

import (
	"context"
	"fmt"
	"time"

	_ "github.com/tolelom/zkgame/actions/modules/crafting"
	_ "github.com/tolelom/zkgame/actions/modules/gather"
	_ "github.com/tolelom/zkgame/actions/modules/stores"
	"github.com/tolelom/zkgame/commitment"
	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/storage"
)

// Init creates a player for wallet.
func (o *Orchestrator) Init(name, wallet string) (*core.PlayerState, error) {
	release, err := o.acquire(wallet, "init")
	if err != nil {
		return nil, err
	}
	defer release()
	return o.store.Create(name, wallet)
}

// Gather adds quantity units of resource to the player's inventory.
func (o *Orchestrator) Gather(wallet, resource string, quantity uint64) (*core.PlayerState, error) {
	return o.local(wallet, core.TxGather, core.GatherPayload{Resource: resource, Quantity: quantity})
}

// CompleteCraft finishes a ready craft, consuming its materials.
func (o *Orchestrator) CompleteCraft(wallet, craftID string) (*core.PlayerState, error) {
	return o.local(wallet, core.TxCompleteCraft, core.CompleteCraftPayload{CraftID: craftID})
}

// BuyStore purchases a store in city for price.
func (o *Orchestrator) BuyStore(wallet, city string, price uint64) (*core.PlayerState, error) {
	return o.local(wallet, core.TxBuyStore, core.BuyStorePayload{City: city, Price: price})
}

// StartCraft registers a craft of recipe. Nothing in the player state
// changes until the craft is completed.
func (o *Orchestrator) StartCraft(wallet, recipe string) (core.CraftInProgress, error) {
	release, err := o.acquire(wallet, "craft")
	if err != nil {
		return core.CraftInProgress{}, err
	}
	defer release()
	return o.store.StartCraft(wallet, recipe)
}

// Import validates a save document and installs it for wallet, or for the
// document's own wallet when wallet is empty. It waits for no one: a running
// transition for that player makes it fail with ErrTransitionInProgress.
func (o *Orchestrator) Import(data []byte, wallet string) (*core.PlayerState, error) {
	doc, err := storage.ParseExport(data)
	if err != nil {
		return nil, err
	}
	target := wallet
	if target == "" {
		target = doc.Player.WalletAddress
	}
	release, err := o.acquire(target, "import")
	if err != nil {
		return nil, err
	}
	defer release()
	return o.store.Import(data, wallet)
}

// RestoreBackup makes backup id wallet's current state.
func (o *Orchestrator) RestoreBackup(wallet, id string) (*core.PlayerState, error) {
	release, err := o.acquire(wallet, "restore")
	if err != nil {
		return nil, err
	}
	defer release()
	return o.store.RestoreBackup(wallet, id)
}

// ClearAll wipes local storage when no player has anything running.
func (o *Orchestrator) ClearAll() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if n := len(o.inFlight); n > 0 {
		return fmt.Errorf("%w: %d players busy", core.ErrTransitionInProgress, n)
	}
	return o.store.ClearAll()
}

func (o *Orchestrator) local(wallet string, typ core.TxType, payload any) (*core.PlayerState, error) {
	release, err := o.acquire(wallet, string(typ))
	if err != nil {
		return nil, err
	}
	defer release()
	p, _, err := o.exec.Execute(wallet, typ, payload)
	return p, err
}

// Status is a read-only view of a player.
type Status struct {
	Player     *core.PlayerState      `json:"player"`
	Items      []core.Item            `json:"items"`
	Commitment string                 `json:"commitment"`
	Crafts     []core.CraftInProgress `json:"crafts"`
	// NextClaimIn is zero when a claim is possible now.
	NextClaimIn     time.Duration `json:"next_claim_in"`
	ClaimableReward uint64        `json:"claimable_reward"`
	Busy            bool          `json:"busy"`
	// VerifierCommitment is what the verifier holds, when the backend can
	// tell. OutOfSync means the next proof would be reverted.
	VerifierCommitment string `json:"verifier_commitment,omitempty"`
	OutOfSync          bool   `json:"out_of_sync"`
}

// Status loads wallet's player with its commitment, crafts and claim
// outlook.
func (o *Orchestrator) Status(wallet string) (*Status, error) {
	p, err := o.store.Load(wallet)
	if err != nil {
		return nil, err
	}
	q, err := o.store.Crafts(wallet)
	if err != nil {
		return nil, err
	}
	st := &Status{
		Player:     p,
		Items:      p.Items(),
		Commitment: commitment.Commit(p, o.variant).String(),
		Crafts:     q.List(),
		Busy:       o.Busy(wallet),
	}
	if c, ok := o.verifierCommitment(context.Background(), wallet); ok {
		st.VerifierCommitment = c
		st.OutOfSync = c != st.Commitment
	}
	elapsed := time.Duration(o.Now().UnixMilli()-p.LastClaimTime) * time.Millisecond
	if elapsed < o.rules.ClaimCooldown {
		st.NextClaimIn = o.rules.ClaimCooldown - elapsed
	} else {
		st.ClaimableReward = o.rules.ClaimReward(elapsed, p.Reputation)
	}
	return st, nil
}
