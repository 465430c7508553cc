package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tolelom/zkgame/metrics"
	"github.com/tolelom/zkgame/rpc"
)

var (
	serveAddr         string
	serveCraftTick    time.Duration
	serveWarmCircuits bool
)

type warmer interface{ Warm() error }

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON-RPC server and the craft watcher",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)
		return withApp(cmd, func(ctx context.Context, a *app) error {
			addr := a.cfg.RPC.Addr
			if serveAddr != "" {
				addr = serveAddr
			}
			var m *metrics.Metrics
			if a.cfg.RPC.Metrics {
				m = a.metrics
			}
			h := rpc.NewHandler(a.orch, a.store, &a.cfg.Rules, a.journal, a.gateway)
			srv := rpc.NewServer(addr, h, a.cfg.RPC.AuthToken, m, a.log)
			if err := srv.Start(); err != nil {
				return err
			}
			defer func() {
				if err := srv.Stop(); err != nil {
					a.log.Warn("rpc stop", zap.Error(err))
				}
			}()
			if a.cfg.RPC.AuthToken != "" {
				a.log.Info("RPC bearer token authentication enabled")
			}
			if serveWarmCircuits {
				if w, ok := a.prover.(warmer); ok {
					go func() {
						if err := w.Warm(); err != nil {
							a.log.Warn("circuit warm-up failed", zap.Error(err))
						}
					}()
				}
			}

			done := make(chan struct{})
			go func() {
				defer close(done)
				a.orch.RunCraftWatcher(ctx, serveCraftTick)
			}()
			a.log.Info("serving", zap.String("addr", srv.Addr()), zap.String("wallet", a.wallet))
			<-ctx.Done()
			a.log.Info("shutting down")
			<-done
			return nil
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default rpc.addr from config)")
	serveCmd.Flags().DurationVar(&serveCraftTick, "craft-interval", 5*time.Second, "how often crafts are checked")
	serveCmd.Flags().BoolVar(&serveWarmCircuits, "warm", true, "compile circuits and run setup at startup")
	rootCmd.AddCommand(serveCmd)
}
