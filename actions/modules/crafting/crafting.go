// Package crafting registers craft completion. Starting a craft does not
// touch player state and goes straight through player.Store.StartCraft.
package crafting

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolelom/zkgame/actions"
	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/events"
)

func init() {
	actions.Register(core.TxCompleteCraft, handleCompleteCraft)
}

func handleCompleteCraft(ctx *actions.Context, payload json.RawMessage) error {
	var p core.CompleteCraftPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("%w: decode complete_craft payload: %v", core.ErrInvalidTransition, err)
	}
	if p.CraftID == "" {
		return fmt.Errorf("%w: craft_id required", core.ErrInvalidTransition)
	}
	if ctx.Crafts == nil {
		return errors.New("craft queue unavailable")
	}
	c, ok := ctx.Crafts.Get(p.CraftID)
	if !ok {
		return fmt.Errorf("craft %q: %w", p.CraftID, core.ErrNotFound)
	}
	if err := ctx.Rules.ApplyCraft(ctx.Player, c, ctx.Now); err != nil {
		return err
	}
	rec, err := ctx.Rules.Recipe(c.RecipeName)
	if err != nil {
		return err
	}
	// last step: nothing after this can fail
	ctx.Crafts.Remove(c.CraftID)
	ctx.CraftsChanged()

	ctx.Emit(events.Event{
		Type: events.EventLocalApplied,
		Data: map[string]any{
			"action":   "complete_craft",
			"craft_id": c.CraftID,
			"recipe":   c.RecipeName,
			"output":   rec.Output,
			"quantity": rec.OutputQuantity,
		},
	})
	return nil
}
