package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/vigil/internal/app"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recent corrective actions",
	RunE:  runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of outcomes to show (0 = all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	config, logger, err := loadConfig()
	if err != nil {
		return err
	}

	application, err := app.New(config, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("%w (is a vigil watchdog holding the state database?)", err)
	}
	defer application.Close()

	if application.HistoryService == nil {
		return fmt.Errorf("action history is disabled (history.enabled = false)")
	}

	outcomes, err := application.HistoryService.Recent(context.Background(), historyLimit)
	if err != nil {
		return err
	}

	renderHistory(os.Stdout, outcomes)
	return nil
}
