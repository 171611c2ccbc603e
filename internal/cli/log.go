package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/ihavespoons/attn/internal/audit"
	"github.com/ihavespoons/attn/internal/logger"
	"github.com/spf13/cobra"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent notification attempts",
	Long: `Show recent notification attempts, newest first.

The log records every push the daemon tried to deliver, including
failures, so a silent phone can be traced to its cause.

Example:
  attn log
  attn log --limit 100`,
	RunE: runLog,
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 20, "Maximum entries to show")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	logger.InitQuiet()

	store, err := audit.NewStore("")
	if err != nil {
		return fmt.Errorf("failed to open notification log: %w", err)
	}
	defer func() { _ = store.Close() }()

	records, err := store.Recent(logLimit)
	if err != nil {
		return fmt.Errorf("failed to read notification log: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No notifications recorded")
		return nil
	}

	for _, rec := range records {
		status := "sent"
		if !rec.Success {
			status = "FAILED"
		}
		fmt.Printf("%-18s %-10s %-7s %s\n", humanize.Time(rec.SentAt), rec.Category, status, rec.Title)
		if rec.Error != "" {
			fmt.Printf("%-18s   %s\n", "", rec.Error)
		}
	}

	return nil
}
