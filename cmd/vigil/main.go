package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
)

var (
	// Persistent flags
	configFiles []string // repeatable, later files override earlier ones
	logLevel    string
	logPath     string
)

var rootCmd = &cobra.Command{
	Use:           "vigil",
	Short:         "Log- and liveness-driven service watchdog",
	Long:          `Vigil watches a server log for startup failure incidents, probes the server port and OS services, and restarts or starts what is down.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWatchdog,
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (can be specified multiple times, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Monitored log file (overrides config)")

	rootCmd.AddCommand(runCmd, checkCmd, historyCmd, versionCmd)
}

func main() {
	defer common.RecoverWithCrashFile()

	err := rootCmd.Execute()
	common.Stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig runs the startup sequence shared by all subcommands:
// discover config files, load (defaults -> files -> env), apply CLI
// overrides, validate, then build the logger.
func loadConfig() (*common.Config, arbor.ILogger, error) {
	files := configFiles
	if len(files) == 0 {
		if _, err := os.Stat("vigil.toml"); err == nil {
			files = append(files, "vigil.toml")
		} else if _, err := os.Stat("deployments/local/vigil.toml"); err == nil {
			files = append(files, "deployments/local/vigil.toml")
		}
	}

	config, err := common.LoadFromFiles(files...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Error().Strs("paths", files).Err(err).Msg("Failed to load configuration files")
		return nil, nil, err
	}

	common.ApplyFlagOverrides(config, logLevel, logPath)

	if err := config.Validate(); err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Error().Strs("paths", files).Err(err).Msg("Invalid configuration")
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	common.InstallCrashHandler(config.Logging.Dir)
	logger := common.InitLogger(config)

	logger.Debug().
		Strs("config_files", files).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Str("badger_path", config.Storage.Badger.Path).
		Msg("Resolved configuration")

	return config, logger, nil
}
