package main

import (
	"context"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/orchestrator"
	"github.com/tolelom/zkgame/prover"
)

// progressBar renders prover progress. The returned stop func is safe to
// call more than once.
func progressBar(title string) (prover.Observer, func()) {
	if globalFlags.JSON {
		return nil, func() {}
	}
	bar, err := pterm.DefaultProgressbar.WithTotal(100).WithTitle(title).WithRemoveWhenDone(true).Start()
	if err != nil {
		return nil, func() {}
	}
	stopped := false
	obs := func(pct int, phase string) {
		if stopped {
			return
		}
		bar.UpdateTitle(phase)
		if d := pct - bar.Current; d > 0 {
			bar.Add(d)
		}
	}
	return obs, func() {
		if !stopped {
			stopped = true
			_, _ = bar.Stop()
		}
	}
}

func reportOutcome(out *orchestrator.Outcome) error {
	if ok, err := emitJSON(out); ok {
		return err
	}
	pterm.Success.Printfln("%s accepted in %s (proof %s)", out.Action, out.Hash, out.ProofTime.Round(time.Millisecond))
	return nil
}

var moveCmd = &cobra.Command{
	Use:   "move <area-id> <street|city|country>",
	Short: "Prove and submit a move",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		areaID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		areaType, err := core.ParseAreaType(args[1])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			obs, stop := progressBar("Proving move")
			out, err := a.orch.Move(ctx, a.wallet, areaID, areaType, obs)
			stop()
			if err != nil {
				return err
			}
			if err := reportOutcome(out); err != nil {
				return err
			}
			printf("Now in area %d (%s), experience %d\n", out.State.Position.AreaID, out.State.Position.AreaType, out.State.Experience)
			return nil
		})
	},
}

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Prove and submit the accrued time reward",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			obs, stop := progressBar("Proving claim")
			out, err := a.orch.Claim(ctx, a.wallet, obs)
			stop()
			if err != nil {
				return err
			}
			if err := reportOutcome(out); err != nil {
				return err
			}
			printf("Claimed %d, currency now %d\n", out.Reward, out.State.Currency)
			return nil
		})
	},
}

var gatherCmd = &cobra.Command{
	Use:   "gather <resource> [quantity]",
	Short: "Gather a resource",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty := uint64(1)
		if len(args) == 2 {
			var err error
			if qty, err = strconv.ParseUint(args[1], 10, 64); err != nil {
				return err
			}
		}
		return withApp(cmd, func(_ context.Context, a *app) error {
			p, err := a.orch.Gather(a.wallet, args[0], qty)
			if err != nil {
				return err
			}
			if ok, err := emitJSON(p); ok {
				return err
			}
			pterm.Success.Printfln("Gathered %d %s (have %d)", qty, args[0], p.Inventory[args[0]])
			return nil
		})
	},
}

var craftCmd = &cobra.Command{
	Use:   "craft <recipe>",
	Short: "Start crafting a recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(_ context.Context, a *app) error {
			c, err := a.orch.StartCraft(a.wallet, args[0])
			if err != nil {
				return err
			}
			if ok, err := emitJSON(c); ok {
				return err
			}
			ready := time.UnixMilli(c.StartTime + c.RequiredTime)
			pterm.Success.Printfln("Craft %s started, ready at %s", c.CraftID, ready.Format(time.Kitchen))
			return nil
		})
	},
}

var completeCraftCmd = &cobra.Command{
	Use:   "complete-craft <craft-id>",
	Short: "Finish a ready craft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(_ context.Context, a *app) error {
			p, err := a.orch.CompleteCraft(a.wallet, args[0])
			if err != nil {
				return err
			}
			if ok, err := emitJSON(p); ok {
				return err
			}
			pterm.Success.Printfln("Craft %s completed, experience %d", args[0], p.Experience)
			return nil
		})
	},
}

var buyStoreCmd = &cobra.Command{
	Use:   "buy-store <city> <price>",
	Short: "Buy a store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return err
		}
		return withApp(cmd, func(_ context.Context, a *app) error {
			p, err := a.orch.BuyStore(a.wallet, args[0], price)
			if err != nil {
				return err
			}
			if ok, err := emitJSON(p); ok {
				return err
			}
			pterm.Success.Printfln("Store bought in %s, %d stores, currency %d", args[0], len(p.OwnedStores), p.Currency)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(moveCmd, claimCmd, gatherCmd, craftCmd, completeCraftCmd, buyStoreCmd)
}
