package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tolelom/zkgame/events"
)

// CheckCrafts marks every elapsed craft ready and announces it. It returns
// how many crafts changed.
func (o *Orchestrator) CheckCrafts() int {
	ready := o.store.MarkReadyCrafts()
	for _, rc := range ready {
		o.log.Info("craft ready", zap.String("wallet", rc.Wallet), zap.String("craft_id", rc.Craft.CraftID),
			zap.String("recipe", rc.Craft.RecipeName))
		o.emitter.Emit(events.Event{
			Type:   events.EventCraftReady,
			Wallet: rc.Wallet,
			Data:   map[string]any{"craft_id": rc.Craft.CraftID, "recipe": rc.Craft.RecipeName},
		})
	}
	return len(ready)
}

// RunCraftWatcher calls CheckCrafts every interval until ctx is done.
func (o *Orchestrator) RunCraftWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.CheckCrafts()
		}
	}
}
