package cli

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ihavespoons/attn/internal/daemon"
	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause all notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPaused(true)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPaused(false)
	},
}

func init() {
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
}

// setPaused asks the running daemon to flip the flag so its in-memory
// settings and the config file stay in step. With no daemon running the
// flag is written to the config file directly.
func setPaused(paused bool) error {
	cfg, err := loadManager()
	if err != nil {
		return err
	}

	lifecycle := daemon.NewLifecycle(cfg.Settings().Daemon)
	if lifecycle.IsRunning() {
		body := fmt.Sprintf(`{"paused":%t}`, paused)
		url := fmt.Sprintf("http://127.0.0.1:%d/api/pause", lifecycle.Port())
		resp, err := apiClient().Post(url, "application/json", strings.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to reach daemon: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("daemon returned HTTP %d", resp.StatusCode)
		}
	} else if err := cfg.SetPaused(paused); err != nil {
		return fmt.Errorf("failed to update config: %w", err)
	}

	if paused {
		fmt.Println("Notifications paused")
	} else {
		fmt.Println("Notifications resumed")
	}
	return nil
}
