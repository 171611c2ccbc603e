package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ihavespoons/attn/internal/daemon"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List tracked sessions",
	Long: `List the sessions the daemon is currently tracking.

Example:
  attn sessions`,
	RunE: runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func apiClient() *http.Client {
	return &http.Client{Timeout: 2 * time.Second}
}

// apiGet fetches one API endpoint from the running daemon and decodes
// the JSON response into out.
func apiGet(port int, path string, out any) error {
	resp, err := apiClient().Get(fmt.Sprintf("http://127.0.0.1:%d%s", port, path))
	if err != nil {
		return fmt.Errorf("daemon is not running (start it with: attn daemon start)")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadManager()
	if err != nil {
		return err
	}

	lifecycle := daemon.NewLifecycle(cfg.Settings().Daemon)

	var sessions []daemon.SessionResponse
	if err := apiGet(lifecycle.Port(), "/api/sessions", &sessions); err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions tracked")
		return nil
	}

	fmt.Printf("%-14s %-8s %-20s %-18s %s\n", "SESSION", "TOOL", "PROJECT", "STATE", "UPDATED")
	for _, s := range sessions {
		id := s.ID
		if len(id) > 14 {
			id = id[:11] + "..."
		}
		state := s.StateDisplay
		if s.NeedsAttention {
			state += " (!)"
		}
		fmt.Printf("%-14s %-8s %-20s %-18s %s\n",
			id, s.Tool, s.ProjectName, state, humanize.Time(s.LastUpdateTime))
	}

	return nil
}
