package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/zkgame/config"
	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/wallet"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Keystore = filepath.Join(dir, "data", "submitter.key")
	cfg.Log.Level = "error"
	path := filepath.Join(dir, "zkgame.yaml")
	require.NoError(t, config.Save(cfg, path))
	return path
}

func run(args ...string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestCommandTree(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{
		"init", "status", "move", "claim", "gather", "craft", "complete-craft", "buy-store",
		"export", "import", "backups", "restore", "clear", "journal", "keygen", "serve",
	} {
		assert.Contains(t, names, want)
	}
}

func TestInitAndGatherPersist(t *testing.T) {
	cfgPath := writeConfig(t)
	require.NoError(t, run("-c", cfgPath, "--wallet=0xA", "--json", "init", "Alice"))
	require.NoError(t, run("-c", cfgPath, "--wallet=0xA", "--json", "gather", "wood", "2"))
	assert.Error(t, run("-c", cfgPath, "--wallet=0xA", "--json", "init", "Alice"))
	assert.Error(t, run("-c", cfgPath, "--wallet=0xA", "--json", "gather", "wood", "x"))

	globalFlags = GlobalFlags{ConfigPath: cfgPath, Wallet: "0xa"}
	a, err := openApp(context.Background())
	require.NoError(t, err)
	defer a.Close()
	p, err := a.store.Load(a.wallet)
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, uint64(2), p.Inventory["wood"])
	assert.Equal(t, uint64(1), p.Nonce)
}

func TestKeygenSetsDefaultWallet(t *testing.T) {
	cfgPath := writeConfig(t)
	t.Setenv(passwordEnv, "hunter2")
	require.NoError(t, run("-c", cfgPath, "--wallet=", "--json", "keygen"))
	assert.Error(t, run("-c", cfgPath, "--wallet=", "--json", "keygen"), "existing keystore needs --force")

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	addr, err := wallet.KeystoreAddress(cfg.Keystore)
	require.NoError(t, err)
	_, err = wallet.LoadKey(cfg.Keystore, "hunter2")
	require.NoError(t, err)

	globalFlags = GlobalFlags{ConfigPath: cfgPath}
	a, err := openApp(context.Background())
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, core.WalletKey(addr), a.wallet)
}
