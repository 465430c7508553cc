package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// GlobalFlags are shared by every command.
type GlobalFlags struct {
	ConfigPath string
	Wallet     string
	JSON       bool
	Verbose    bool
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:           "zkgame",
	Short:         "Proof-gated exploration game client",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `zkgame keeps a player's state on this machine and proves every move and
reward claim with a Groth16 proof before the verifier accepts it.

Examples:
  zkgame init Alice
  zkgame move 2 city
  zkgame claim
  zkgame gather wood 3
  zkgame status`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "zkgame.yaml", "path to the YAML config")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Wallet, "wallet", "w", "", "wallet address of the player (default: keystore address)")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "debug logging")
}

// withApp opens the client for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// emitJSON prints v when --json is set and reports whether it did.
func emitJSON(v any) (bool, error) {
	if !globalFlags.JSON {
		return false, nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

func printf(format string, args ...any) {
	if !globalFlags.JSON {
		fmt.Printf(format, args...)
	}
}
