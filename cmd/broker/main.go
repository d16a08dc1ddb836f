// Command broker runs the TopicHub publish/subscribe broker.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/topichub/topichub/internal/broker"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		listenPort int
		wsListen   string
		configPath string
	)

	cmd := &cobra.Command{
		Use:          "broker",
		Short:        "TopicHub publish/subscribe broker",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, listenPort, wsListen, configPath)
		},
	}

	cmd.Flags().IntVarP(&listenPort, "listen", "l", broker.DefaultPort, "port number to listen on")
	cmd.Flags().StringVar(&wsListen, "ws-listen", "", "WebSocket/health listen address (disabled when empty)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML configuration file")

	return cmd
}

func run(cmd *cobra.Command, listenPort int, wsListen, configPath string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	var cfg *broker.Config
	if configPath != "" {
		cfg, err = broker.LoadConfig(configPath)
		if err != nil {
			logger.Error("configuration error", zap.Error(err))
			return err
		}
	} else {
		cfg = broker.NewConfigFromEnv()
	}

	if cmd.Flags().Changed("listen") {
		cfg.Listen = fmt.Sprintf(":%d", listenPort)
	}
	if cmd.Flags().Changed("ws-listen") {
		cfg.WSListen = wsListen
	}

	b := broker.New(*cfg, logger)
	if err := b.Listen(); err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- b.Serve()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("broker exited", zap.Error(err))
		}
		return err
	case sig := <-quit:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		if err := b.Shutdown(); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
		return <-serveErr
	}
}
