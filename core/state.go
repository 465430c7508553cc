package core

import (
	"fmt"
	"sort"
	"strings"
)

// AreaType classifies a map area. Moving into larger areas is worth more
// experience.
type AreaType string

const (
	AreaStreet  AreaType = "street"
	AreaCity    AreaType = "city"
	AreaCountry AreaType = "country"
)

// Code returns the numeric encoding used in circuit inputs and commitments
// (street=1, city=2, country=3). Unknown types encode as 0.
func (t AreaType) Code() uint64 {
	switch t {
	case AreaStreet:
		return 1
	case AreaCity:
		return 2
	case AreaCountry:
		return 3
	}
	return 0
}

// Valid reports whether t is one of the known area types.
func (t AreaType) Valid() bool { return t.Code() != 0 }

// ParseAreaType converts user input into an AreaType.
func ParseAreaType(s string) (AreaType, error) {
	t := AreaType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown area type %q", ErrInvalidTransition, s)
	}
	return t, nil
}

// Position locates a player on the map.
type Position struct {
	AreaID   uint64   `json:"area_id" yaml:"area_id"`
	AreaType AreaType `json:"area_type" yaml:"area_type"`
	Country  string   `json:"country" yaml:"country"`
	City     string   `json:"city" yaml:"city"`
	Street   string   `json:"street" yaml:"street"`
}

// ExploredArea is one entry of the append-only fog-of-war record.
type ExploredArea struct {
	ID   uint64   `json:"id"`
	Type AreaType `json:"type"`
}

// GatherKeyPrefix marks reserved inventory keys holding the last gather
// time (ms) of a resource.
const GatherKeyPrefix = "last_gather_"

// GatherKey returns the reserved inventory key for resource.
func GatherKey(resource string) string { return GatherKeyPrefix + resource }

// IsGatherKey reports whether an inventory key is a reserved timestamp slot.
func IsGatherKey(key string) bool { return strings.HasPrefix(key, GatherKeyPrefix) }

// PlayerState is the complete off-chain state of one player. Every committed
// transition advances Nonce by exactly one.
type PlayerState struct {
	PlayerID      string            `json:"player_id"`
	Name          string            `json:"name"`
	WalletAddress string            `json:"wallet_address,omitempty"`
	Position      Position          `json:"position"`
	Inventory     map[string]uint64 `json:"inventory"`
	Currency      uint64            `json:"currency"`
	Experience    uint64            `json:"experience"`
	Reputation    float64           `json:"reputation"`
	LastClaimTime int64             `json:"last_claim_time"` // unix ms
	OwnedStores   []uint64          `json:"owned_stores"`
	ExploredAreas []ExploredArea    `json:"explored_areas"`
	Nonce         uint64            `json:"nonce"`
	CreatedAt     int64             `json:"created_at"` // unix ms
}

// Clone returns a deep copy that shares no memory with p.
func (p *PlayerState) Clone() *PlayerState {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Inventory = make(map[string]uint64, len(p.Inventory))
	for k, v := range p.Inventory {
		cp.Inventory[k] = v
	}
	cp.OwnedStores = append(make([]uint64, 0, len(p.OwnedStores)), p.OwnedStores...)
	cp.ExploredAreas = append(make([]ExploredArea, 0, len(p.ExploredAreas)), p.ExploredAreas...)
	return &cp
}

// HasExplored reports whether areaID is already in the explored set.
func (p *PlayerState) HasExplored(areaID uint64) bool {
	for _, a := range p.ExploredAreas {
		if a.ID == areaID {
			return true
		}
	}
	return false
}

// Items returns the inventory without reserved gather-timestamp keys,
// sorted by name.
func (p *PlayerState) Items() []Item {
	items := make([]Item, 0, len(p.Inventory))
	for k, v := range p.Inventory {
		if IsGatherKey(k) {
			continue
		}
		items = append(items, Item{Name: k, Quantity: v})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

// Item is a single visible inventory entry.
type Item struct {
	Name     string `json:"name"`
	Quantity uint64 `json:"quantity"`
}

// WalletKey normalises a wallet address into the key players are stored
// under. An empty address maps to "default".
func WalletKey(wallet string) string {
	w := strings.ToLower(strings.TrimSpace(wallet))
	if w == "" {
		return "default"
	}
	return w
}
