package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/vigil/internal/app"
	"github.com/ternarybob/vigil/internal/common"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the watchdog until interrupted (default)",
	RunE:  runWatchdog,
}

func runWatchdog(cmd *cobra.Command, args []string) error {
	config, logger, err := loadConfig()
	if err != nil {
		return err
	}

	common.PrintBanner(common.GetVersion())

	application, err := app.New(config, logger, app.Options{})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return err
	}
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	common.SafeGo(logger, "signal watcher", func() {
		select {
		case sig := <-sigChan:
			logger.Info().Str("signal", sig.String()).Msg("Interrupt signal received, finishing current step")
			cancel()
		case <-ctx.Done():
		}
	})

	logger.Info().
		Str("version", common.GetFullVersion()).
		Str("environment", config.Environment).
		Msg("Watchdog running - Press Ctrl+C to stop")

	if err := application.MonitorService.Run(ctx); err != nil {
		return fmt.Errorf("monitor loop failed: %w", err)
	}

	logger.Info().Msg("Watchdog stopped")
	return nil
}
