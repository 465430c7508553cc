package game

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/tolelom/zkgame/core"
)

// NewPlayer builds the initial state for a fresh player. The id is the
// creation time in milliseconds; lastClaimTime starts FirstClaimDelay in the
// past so the first claim is immediately eligible.
func (r *Rules) NewPlayer(name, wallet string, now time.Time) (*core.PlayerState, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("player name required")
	}
	ms := now.UnixMilli()
	start := r.StartPosition
	return &core.PlayerState{
		PlayerID:      strconv.FormatInt(ms, 10),
		Name:          name,
		WalletAddress: strings.TrimSpace(wallet),
		Position:      start,
		Inventory:     map[string]uint64{},
		Currency:      r.StartingCurrency,
		Experience:    0,
		Reputation:    r.StartingReputation,
		LastClaimTime: ms - r.FirstClaimDelay.Milliseconds(),
		OwnedStores:   []uint64{},
		ExploredAreas: []core.ExploredArea{{ID: start.AreaID, Type: start.AreaType}},
		Nonce:         0,
		CreatedAt:     ms,
	}, nil
}
