// Package config loads the YAML configuration of the zkgame client.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tolelom/zkgame/commitment"
	"github.com/tolelom/zkgame/game"
)

// Chain modes.
const (
	ChainLocal    = "local"    // in-process development verifier
	ChainEthereum = "ethereum" // GameCore contract over JSON-RPC
)

// Prover backends.
const (
	ProverGroth16 = "groth16" // in-process gnark circuits
	ProverSnarkjs = "snarkjs" // external snarkjs CLI with .wasm/.zkey artifacts
)

// LogConfig controls the zap logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // empty: console only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// RPCConfig controls the JSON-RPC server started by "serve".
type RPCConfig struct {
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"` // empty: no auth
	Metrics   bool   `yaml:"metrics"`    // expose /metrics
}

// ChainConfig selects and configures the verifier the gateway submits to.
type ChainConfig struct {
	Mode            string        `yaml:"mode"`
	RPCURL          string        `yaml:"rpc_url"`
	ChainID         int64         `yaml:"chain_id"`
	ContractAddress string        `yaml:"contract_address"`
	GasLimit        uint64        `yaml:"gas_limit"`
	SubmitTimeout   time.Duration `yaml:"submit_timeout"`
	VerifyProofs    bool          `yaml:"verify_proofs"` // local mode: run Groth16 verification
}

// ProverConfig selects the proving backend and the circuit capacities.
type ProverConfig struct {
	Backend       string        `yaml:"backend"`
	ArtifactsDir  string        `yaml:"artifacts_dir"`
	SnarkjsBin    string        `yaml:"snarkjs_bin"`
	Timeout       time.Duration `yaml:"timeout"`
	InventorySize int           `yaml:"inventory_size"`
	StoreSize     int           `yaml:"store_size"`
	ExploredSize  int           `yaml:"explored_size"`
}

// Config holds all client configuration.
type Config struct {
	DataDir    string       `yaml:"data_dir"`
	Keystore   string       `yaml:"keystore"`
	MaxBackups int          `yaml:"max_backups"`
	Commitment string       `yaml:"commitment"` // "sum" or "mimc"
	Log        LogConfig    `yaml:"log"`
	RPC        RPCConfig    `yaml:"rpc"`
	Chain      ChainConfig  `yaml:"chain"`
	Prover     ProverConfig `yaml:"prover"`
	Rules      game.Rules   `yaml:"rules"`
}

// DefaultConfig returns a single-player development configuration: local
// verifier, in-process prover.
func DefaultConfig() *Config {
	return &Config{
		DataDir:    "./data",
		Keystore:   "./data/submitter.key",
		MaxBackups: 10,
		Commitment: string(commitment.VariantSum),
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		RPC: RPCConfig{
			Addr:    "127.0.0.1:8645",
			Metrics: true,
		},
		Chain: ChainConfig{
			Mode:          ChainLocal,
			ChainID:       31337,
			GasLimit:      500_000,
			SubmitTimeout: 2 * time.Minute,
			VerifyProofs:  true,
		},
		Prover: ProverConfig{
			Backend:       ProverGroth16,
			ArtifactsDir:  "./circuits",
			SnarkjsBin:    "snarkjs",
			Timeout:       2 * time.Minute,
			InventorySize: 64,
			StoreSize:     10,
			ExploredSize:  1000,
		},
		Rules: game.DefaultRules(),
	}
}

// Load reads a YAML config file from path. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to DefaultConfig.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// Save writes the config to path as YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Variant returns the configured commitment variant.
func (c *Config) Variant() commitment.Variant {
	v, err := commitment.ParseVariant(c.Commitment)
	if err != nil {
		return commitment.VariantSum
	}
	return v
}

// Validate reports every inconsistency at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir required"))
	}
	if _, err := commitment.ParseVariant(c.Commitment); err != nil {
		errs = append(errs, err)
	}
	switch c.Chain.Mode {
	case ChainLocal:
	case ChainEthereum:
		if c.Chain.RPCURL == "" || c.Chain.ContractAddress == "" {
			errs = append(errs, errors.New("chain.rpc_url and chain.contract_address required in ethereum mode"))
		}
		if c.Chain.ChainID <= 0 {
			errs = append(errs, errors.New("chain.chain_id must be > 0"))
		}
	default:
		errs = append(errs, fmt.Errorf("chain.mode %q: want %q or %q", c.Chain.Mode, ChainLocal, ChainEthereum))
	}
	if c.Chain.GasLimit == 0 {
		errs = append(errs, errors.New("chain.gas_limit must be > 0"))
	}
	switch c.Prover.Backend {
	case ProverGroth16, ProverSnarkjs:
	default:
		errs = append(errs, fmt.Errorf("prover.backend %q: want %q or %q", c.Prover.Backend, ProverGroth16, ProverSnarkjs))
	}
	if c.Prover.InventorySize <= 0 || c.Prover.StoreSize <= 0 || c.Prover.ExploredSize <= 0 {
		errs = append(errs, errors.New("prover capacities must be > 0"))
	}
	if c.Prover.StoreSize < c.Rules.MaxStores {
		errs = append(errs, fmt.Errorf("prover.store_size %d is below rules.max_stores %d", c.Prover.StoreSize, c.Rules.MaxStores))
	}
	if err := c.Rules.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("rules: %w", err))
	}
	return errors.Join(errs...)
}

// PlayerDBPath is where the LevelDB player store lives.
func (c *Config) PlayerDBPath() string { return filepath.Join(c.DataDir, "players") }

// JournalPath is where the SQLite submission journal lives.
func (c *Config) JournalPath() string { return filepath.Join(c.DataDir, "journal.db") }
