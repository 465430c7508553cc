package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tolelom/zkgame/config"
	"github.com/tolelom/zkgame/wallet"
)

var keygenForce bool

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the submitter key",
	Long: `Generates a secp256k1 key, encrypts it with $` + passwordEnv + ` and
writes it to the configured keystore. Its address becomes the default
wallet for every other command.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadOrDefault(globalFlags.ConfigPath)
		if err != nil {
			return err
		}
		if _, err := os.Stat(cfg.Keystore); err == nil && !keygenForce {
			return fmt.Errorf("keystore %s exists; pass --force to overwrite", cfg.Keystore)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		password := os.Getenv(passwordEnv)
		if password == "" {
			pterm.Warning.Printfln("%s not set; the keystore will use an empty password", passwordEnv)
		}
		w, err := wallet.Generate()
		if err != nil {
			return err
		}
		if err := wallet.SaveKey(cfg.Keystore, password, w.PrivateKey()); err != nil {
			return err
		}
		if ok, err := emitJSON(map[string]string{"address": w.Address(), "keystore": cfg.Keystore}); ok {
			return err
		}
		pterm.Success.Printfln("Address %s saved to %s", w.Address(), cfg.Keystore)
		return nil
	},
}

func init() {
	keygenCmd.Flags().BoolVar(&keygenForce, "force", false, "overwrite an existing keystore")
	rootCmd.AddCommand(keygenCmd)
}
