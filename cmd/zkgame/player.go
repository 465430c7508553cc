package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/orchestrator"
)

var initCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Create a new player",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(_ context.Context, a *app) error {
			p, err := a.orch.Init(args[0], a.wallet)
			if err != nil {
				return err
			}
			if ok, err := emitJSON(p); ok {
				return err
			}
			pterm.Success.Printfln("Created %s (%s) in area %d, wallet %s", p.Name, p.PlayerID, p.Position.AreaID, a.wallet)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the player's state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(_ context.Context, a *app) error {
			st, err := a.orch.Status(a.wallet)
			if err != nil {
				return err
			}
			if ok, err := emitJSON(st); ok {
				return err
			}
			return renderStatus(st)
		})
	},
}

func renderStatus(st *orchestrator.Status) error {
	p := st.Player
	claim := "ready (" + strconv.FormatUint(st.ClaimableReward, 10) + ")"
	if st.NextClaimIn > 0 {
		claim = "in " + st.NextClaimIn.Round(time.Second).String()
	}
	data := pterm.TableData{
		{"Player", fmt.Sprintf("%s (%s)", p.Name, p.PlayerID)},
		{"Wallet", p.WalletAddress},
		{"Position", fmt.Sprintf("area %d (%s)", p.Position.AreaID, p.Position.AreaType)},
		{"Currency", strconv.FormatUint(p.Currency, 10)},
		{"Experience", strconv.FormatUint(p.Experience, 10)},
		{"Reputation", strconv.FormatFloat(p.Reputation, 'f', 3, 64)},
		{"Explored", strconv.Itoa(len(p.ExploredAreas))},
		{"Stores", strconv.Itoa(len(p.OwnedStores))},
		{"Nonce", strconv.FormatUint(p.Nonce, 10)},
		{"Commitment", st.Commitment},
		{"Claim", claim},
	}
	if err := pterm.DefaultTable.WithData(data).Render(); err != nil {
		return err
	}
	if st.OutOfSync {
		pterm.Warning.Printfln("Verifier holds %s; the next move or claim will be rejected until a matching backup is restored.", st.VerifierCommitment)
	}
	if len(st.Items) > 0 {
		items := pterm.TableData{{"Item", "Quantity"}}
		for _, it := range st.Items {
			items = append(items, []string{it.Name, strconv.FormatUint(it.Quantity, 10)})
		}
		pterm.DefaultSection.Println("Inventory")
		if err := pterm.DefaultTable.WithHasHeader().WithData(items).Render(); err != nil {
			return err
		}
	}
	if len(st.Crafts) > 0 {
		now := time.Now()
		crafts := pterm.TableData{{"Craft", "Recipe", "Status", "Remaining"}}
		for _, c := range st.Crafts {
			crafts = append(crafts, []string{c.CraftID, c.RecipeName, string(c.Status), c.Remaining(now).Round(time.Second).String()})
		}
		pterm.DefaultSection.Println("Crafts")
		return pterm.DefaultTable.WithHasHeader().WithData(crafts).Render()
	}
	return nil
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the player's save document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(_ context.Context, a *app) error {
			doc, err := a.store.Export(a.wallet)
			if err != nil {
				return err
			}
			if exportOut == "" || exportOut == "-" {
				_, err = os.Stdout.Write(append(doc, '\n'))
				return err
			}
			if err := os.WriteFile(exportOut, doc, 0o600); err != nil {
				return err
			}
			pterm.Success.Printfln("Exported %s to %s", a.wallet, exportOut)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the player's state with a save document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(_ context.Context, a *app) error {
			p, err := a.orch.Import(data, globalFlags.Wallet)
			if err != nil {
				return err
			}
			if ok, err := emitJSON(p); ok {
				return err
			}
			pterm.Success.Printfln("Imported %s at nonce %d", p.Name, p.Nonce)
			pterm.Warning.Println("The verifier only accepts the next proof if this state matches its stored commitment.")
			return nil
		})
	},
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List automatic backups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(_ context.Context, a *app) error {
			list, err := a.store.Backups(a.wallet)
			if err != nil {
				return err
			}
			if ok, err := emitJSON(list); ok {
				return err
			}
			if len(list) == 0 {
				pterm.Info.Println("No backups.")
				return nil
			}
			data := pterm.TableData{{"ID", "Taken", "Nonce", "Size"}}
			for _, b := range list {
				taken := time.UnixMilli(b.CreatedAt).Format(time.RFC3339)
				data = append(data, []string{b.ID, taken, strconv.FormatUint(b.Nonce, 10), strconv.Itoa(b.Size)})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-id>",
	Short: "Make a backup the current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(_ context.Context, a *app) error {
			p, err := a.orch.RestoreBackup(a.wallet, args[0])
			if err != nil {
				return err
			}
			if ok, err := emitJSON(p); ok {
				return err
			}
			pterm.Success.Printfln("Restored nonce %d", p.Nonce)
			return nil
		})
	},
}

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every local player, backup and craft",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !clearYes {
			return fmt.Errorf("%w: refusing to clear without --yes", core.ErrInvalidTransition)
		}
		return withApp(cmd, func(_ context.Context, a *app) error {
			info, err := a.store.Info()
			if err != nil {
				return err
			}
			if err := a.orch.ClearAll(); err != nil {
				return err
			}
			pterm.Success.Printfln("Removed %d players and %d backups", info.Players, info.Backups)
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm deletion")
	rootCmd.AddCommand(initCmd, statusCmd, exportCmd, importCmd, backupsCmd, restoreCmd, clearCmd)
}
