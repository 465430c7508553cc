package main

import (
	"context"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var journalLimit int

var journalCmd = &cobra.Command{
	Use:   "journal [hash]",
	Short: "Show recent submissions, or look one up by hash",
	Long: `Without arguments, lists the player's recent verifier submissions.
With a transaction hash, prints the journal record and asks the verifier
for the receipt. Check a hash here before retrying a submission whose
outcome is unknown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if len(args) == 1 {
				return lookupHash(ctx, a, args[0])
			}
			subs, err := a.journal.Submissions(a.wallet, journalLimit)
			if err != nil {
				return err
			}
			if ok, err := emitJSON(subs); ok {
				return err
			}
			if len(subs) == 0 {
				pterm.Info.Println("No submissions yet.")
				return nil
			}
			data := pterm.TableData{{"When", "Action", "Nonce", "Result", "Committed", "Hash"}}
			for _, s := range subs {
				result := "accepted"
				if !s.Success {
					result = "rejected: " + s.Error
				}
				data = append(data, []string{
					s.At.Local().Format(time.DateTime), s.Action, strconv.FormatUint(s.Nonce, 10),
					result, strconv.FormatBool(s.Committed), s.Hash,
				})
			}
			if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
				return err
			}
			pending, err := a.journal.Uncommitted(a.wallet)
			if err != nil {
				return err
			}
			if len(pending) > 0 {
				pterm.Warning.Printfln("%d accepted submissions were never stored locally; export or restore before the next proof", len(pending))
			}
			return nil
		})
	},
}

func lookupHash(ctx context.Context, a *app, hash string) error {
	status, err := a.gateway.ReceiptStatus(ctx, hash)
	if err != nil {
		return err
	}
	rec, recErr := a.journal.ByHash(hash)
	if ok, err := emitJSON(map[string]any{"hash": hash, "status": status, "submission": rec}); ok {
		return err
	}
	pterm.Info.Printfln("Verifier status: %s", status)
	if recErr != nil {
		pterm.Warning.Println("Not in the local journal.")
		return nil
	}
	return pterm.DefaultTable.WithData(pterm.TableData{
		{"Action", rec.Action},
		{"Nonce", strconv.FormatUint(rec.Nonce, 10)},
		{"Accepted", strconv.FormatBool(rec.Success)},
		{"Committed", strconv.FormatBool(rec.Committed)},
		{"Old commitment", rec.OldCommitment},
		{"New commitment", rec.NewCommitment},
	}).Render()
}

func init() {
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "number of submissions to list")
	rootCmd.AddCommand(journalCmd)
}
