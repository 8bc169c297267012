package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/vigil/internal/app"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single monitor cycle and print the report",
	Long:  `Runs exactly one cycle (log check, and by default the liveness sweep) and prints what was found and done. With --dry-run corrective commands are logged instead of executed.`,
	RunE:  runCheck,
}

var (
	checkDryRun bool
	checkSweep  bool
)

func init() {
	checkCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "Log corrective commands instead of executing them")
	checkCmd.Flags().BoolVar(&checkSweep, "sweep", true, "Include the core port probe and service sweep")
}

func runCheck(cmd *cobra.Command, args []string) error {
	config, logger, err := loadConfig()
	if err != nil {
		return err
	}

	application, err := app.New(config, logger, app.Options{DryRun: checkDryRun, StorageOptional: true})
	if err != nil {
		return err
	}
	defer application.Close()

	report := application.MonitorService.RunCycle(context.Background(), checkSweep)
	renderReport(os.Stdout, report)
	return nil
}
