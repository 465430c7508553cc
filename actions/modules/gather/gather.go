// Package gather registers the resource-gathering action.
package gather

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/zkgame/actions"
	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/events"
)

func init() {
	actions.Register(core.TxGather, handleGather)
}

func handleGather(ctx *actions.Context, payload json.RawMessage) error {
	var p core.GatherPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("%w: decode gather payload: %v", core.ErrInvalidTransition, err)
	}
	before := ctx.Player.Experience
	if err := ctx.Rules.ApplyGather(ctx.Player, p.Resource, p.Quantity, ctx.Now); err != nil {
		return err
	}
	ctx.Emit(events.Event{
		Type: events.EventLocalApplied,
		Data: map[string]any{
			"action":     "gather",
			"resource":   p.Resource,
			"quantity":   p.Quantity,
			"experience": ctx.Player.Experience - before,
		},
	})
	return nil
}
