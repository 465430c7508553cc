// Package stores registers store purchases.
package stores

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tolelom/zkgame/actions"
	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/events"
)

func init() {
	actions.Register(core.TxBuyStore, handleBuyStore)
}

func handleBuyStore(ctx *actions.Context, payload json.RawMessage) error {
	var p core.BuyStorePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("%w: decode buy_store payload: %v", core.ErrInvalidTransition, err)
	}
	if strings.TrimSpace(p.City) == "" {
		return fmt.Errorf("%w: city required", core.ErrInvalidTransition)
	}
	id, err := ctx.Rules.ApplyBuyStore(ctx.Player, p.Price, ctx.Now)
	if err != nil {
		return err
	}
	ctx.Emit(events.Event{
		Type: events.EventLocalApplied,
		Data: map[string]any{"action": "buy_store", "store_id": id, "city": p.City, "price": p.Price},
	})
	return nil
}
