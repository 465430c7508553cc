package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/tolelom/zkgame/actions"
	"github.com/tolelom/zkgame/config"
	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/events"
	"github.com/tolelom/zkgame/gateway"
	"github.com/tolelom/zkgame/journal"
	"github.com/tolelom/zkgame/logging"
	"github.com/tolelom/zkgame/metrics"
	"github.com/tolelom/zkgame/orchestrator"
	"github.com/tolelom/zkgame/player"
	"github.com/tolelom/zkgame/prover"
	"github.com/tolelom/zkgame/storage"
	"github.com/tolelom/zkgame/wallet"
)

// passwordEnv holds the keystore password (not a flag; flags leak via ps).
const passwordEnv = "ZKGAME_PASSWORD"

// app is the fully wired client.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	emitter *events.Emitter
	metrics *metrics.Metrics
	store   *player.Store
	journal *journal.Journal
	gateway *gateway.Gateway
	prover  prover.Prover
	orch    *orchestrator.Orchestrator
	wallet  string

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.log.Sync()
}

// openApp loads the config and wires every component.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadOrDefault(globalFlags.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if globalFlags.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, emitter: events.NewEmitter(log), metrics: metrics.New()}
	a.metrics.Attach(a.emitter)
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	ldb, err := storage.NewLevelDB(cfg.PlayerDBPath())
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = ldb.Close() })
	pdb, err := storage.NewPlayerDB(ldb, cfg.MaxBackups)
	if err != nil {
		return err
	}
	a.store = player.NewStore(pdb, &cfg.Rules, logging.Module(a.log, "player"), a.emitter)

	a.journal, err = journal.Open(cfg.JournalPath(), a.log)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = a.journal.Close() })
	a.journal.Attach(a.emitter)

	caps := prover.Capacities{
		Inventory: cfg.Prover.InventorySize,
		Stores:    cfg.Prover.StoreSize,
		Explored:  cfg.Prover.ExploredSize,
	}
	var (
		p        prover.Prover
		verifier prover.Verifier
	)
	switch cfg.Prover.Backend {
	case config.ProverSnarkjs:
		p = prover.NewSnarkjsProver(cfg.Prover.SnarkjsBin, a.log)
	default:
		g, err := prover.NewGroth16Prover(caps, &cfg.Rules, cfg.Variant(), a.log)
		if err != nil {
			return err
		}
		p, verifier = g, g
	}
	a.prover = p
	coord := prover.NewCoordinator(p, &cfg.Rules, prover.CoordinatorConfig{
		Capacities:   caps,
		Variant:      cfg.Variant(),
		ArtifactsDir: cfg.Prover.ArtifactsDir,
		Timeout:      cfg.Prover.Timeout,
	}, a.log)

	backend, err := a.backend(ctx, ldb, verifier)
	if err != nil {
		return err
	}
	a.gateway = gateway.New(backend, cfg.Chain.SubmitTimeout, a.log)

	a.orch = orchestrator.New(orchestrator.Config{
		Store:     a.store,
		Prover:    coord,
		Submitter: a.gateway,
		Executor:  actions.NewExecutor(a.store, &cfg.Rules, nil, a.emitter, a.log),
		Rules:     &cfg.Rules,
		Variant:   cfg.Variant(),
		Emitter:   a.emitter,
	}, a.log)

	a.wallet = a.resolveWallet()
	return nil
}

// backend picks the verifier the gateway talks to.
func (a *app) backend(ctx context.Context, db storage.DB, verifier prover.Verifier) (gateway.Backend, error) {
	cfg := a.cfg
	if cfg.Chain.Mode == config.ChainEthereum {
		key, err := wallet.LoadKey(cfg.Keystore, os.Getenv(passwordEnv))
		if err != nil {
			return nil, fmt.Errorf("load submitter key %s: %w", cfg.Keystore, err)
		}
		eth, err := gateway.DialEthereum(ctx, gateway.EthConfig{
			RPCURL:   cfg.Chain.RPCURL,
			Contract: cfg.Chain.ContractAddress,
			ChainID:  cfg.Chain.ChainID,
			GasLimit: cfg.Chain.GasLimit,
		}, key, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, eth.Close)
		return eth, nil
	}
	if !cfg.Chain.VerifyProofs {
		verifier = nil
	} else if verifier == nil {
		a.log.Warn("local verifier cannot check snarkjs proofs; only commitments are enforced")
	}
	return gateway.NewLocalChain(db, verifier, a.log), nil
}

// resolveWallet returns --wallet, else the keystore address, else the
// default slot.
func (a *app) resolveWallet() string {
	if globalFlags.Wallet != "" {
		return core.WalletKey(globalFlags.Wallet)
	}
	if addr, err := wallet.KeystoreAddress(a.cfg.Keystore); err == nil {
		return core.WalletKey(addr)
	} else if !errors.Is(err, os.ErrNotExist) {
		a.log.Warn("read keystore address", zap.String("path", a.cfg.Keystore), zap.Error(err))
	}
	return core.WalletKey("")
}
