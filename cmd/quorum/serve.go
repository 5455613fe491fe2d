package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quorum/internal/config"
	"quorum/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve councils over HTTP and WebSocket",
	Long: `Starts the quorum server. Sessions are created and controlled through
the REST API; each session's ordered event stream is available on
/ws/council/{id}, which also accepts decision frames inbound.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	srv := server.New(server.Options{
		Addr:            cfg.Server.Addr,
		Registry:        rt.registry,
		Bus:             rt.bus,
		Store:           rt.store,
		Logger:          logger,
		MaxRounds:       cfg.Council.MaxRounds,
		DecisionTimeout: cfg.DecisionTimeout(),
		ShutdownTimeout: cfg.ShutdownTimeout(),
	})

	logger.Info("quorum serving",
		zap.String("addr", cfg.Server.Addr),
		zap.String("provider", cfg.LLM.Provider))
	return srv.Run(ctx)
}
