package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ihavespoons/attn/internal/audit"
	"github.com/ihavespoons/attn/internal/config"
	"github.com/ihavespoons/attn/internal/daemon"
	"github.com/ihavespoons/attn/internal/logger"
	"github.com/ihavespoons/attn/internal/notify"
	"github.com/ihavespoons/attn/internal/protocol"
	"github.com/ihavespoons/attn/internal/server"
	"github.com/ihavespoons/attn/internal/session"
	"github.com/spf13/cobra"
)

var (
	backgroundFlag      bool
	backgroundChildFlag bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the attn daemon",
	Long: `Manage the attn daemon.

The daemon listens on a local socket for session events from wrapped
tools, tracks session state, and sends push notifications when a
session needs attention.

Commands:
  start  - Start the daemon (foreground or background)
  stop   - Stop the running daemon
  status - Check if the daemon is running`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon",
	Long: `Start the attn daemon.

By default, runs in the foreground. Use --background to run as a background process.

Example:
  attn daemon start              # Run in foreground
  attn daemon start --background # Run in background`,
	RunE: runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check daemon status",
	RunE:  runDaemonStatus,
}

func init() {
	daemonStartCmd.Flags().BoolVarP(&backgroundFlag, "background", "b", false, "Run daemon in background")
	daemonStartCmd.Flags().BoolVar(&backgroundChildFlag, "background-child", false, "Internal flag for background process")
	_ = daemonStartCmd.Flags().MarkHidden("background-child")

	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	rootCmd.AddCommand(daemonCmd)
}

// loadManager loads the configuration, honoring the --config override.
func loadManager() (*config.Manager, error) {
	cfg, err := config.NewManager(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func initLogging(settings config.Settings) {
	if verbose {
		_ = logger.Init("debug", settings.LogFile)
	} else if settings.LogLevel != "" {
		_ = logger.Init(settings.LogLevel, settings.LogFile)
	} else {
		_ = logger.Init("info", settings.LogFile)
	}
}

// eventHandler routes decoded socket messages into the registry. It
// runs on the socket server's dispatch goroutine.
type eventHandler struct {
	registry *session.Registry
}

func (h *eventHandler) HandleMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.Start:
		h.registry.OnStart(m.SessionID, m.Tool, m.ProjectName, m.PID)
	case protocol.StateChange:
		h.registry.OnStateChange(m.SessionID, m.State, m.Details, m.WorkingDurationSecs)
	case protocol.End:
		h.registry.OnEnd(m.SessionID, m.ExitCode)
	case protocol.Unknown:
		logger.Warn().Str("raw", m.Raw).Msg("Dropping unrecognized event line")
	}
}

func (h *eventHandler) ListeningChanged(listening bool) {
	h.registry.SetConnected(listening)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadManager()
	if err != nil {
		return err
	}
	initLogging(cfg.Settings())

	lifecycle := daemon.NewLifecycle(cfg.Settings().Daemon)

	// If --background flag is set, start in background and exit
	if backgroundFlag && !backgroundChildFlag {
		if lifecycle.IsRunning() {
			fmt.Println("Daemon is already running")
			return nil
		}

		if err := lifecycle.StartInBackground(); err != nil {
			return fmt.Errorf("failed to start daemon in background: %w", err)
		}

		fmt.Printf("Daemon started, status API on http://127.0.0.1:%d\n", lifecycle.Port())
		return nil
	}

	// Check if already running (for foreground mode)
	if !backgroundChildFlag && lifecycle.IsRunning() {
		return fmt.Errorf("daemon is already running (PID file: %s)", lifecycle.PIDFile())
	}

	// The notification log is best effort; the daemon still runs if the
	// database cannot be opened.
	store, storeErr := audit.NewStore("")
	if storeErr != nil {
		logger.Warn().Err(storeErr).Msg("Failed to open notification log, running without it")
		store = nil
	} else if _, err := store.Prune(30 * 24 * time.Hour); err != nil {
		logger.Warn().Err(err).Msg("Failed to prune notification log")
	}

	dispatcher := notify.NewDispatcher(cfg, store)
	dispatcher.SetDNDChecker(notify.NewSystemDNDChecker())
	registry := session.NewRegistry(cfg, dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry.StartCleanup(ctx)
	dispatcher.StartHealthChecks(ctx)

	sock := server.New(cfg.SocketPath(), &eventHandler{registry: registry})
	if err := sock.Start(); err != nil {
		return fmt.Errorf("failed to start socket server: %w", err)
	}
	defer sock.Stop()

	api := daemon.NewServer(cfg, registry, dispatcher, store, Version)
	if err := api.Start(ctx); err != nil {
		return fmt.Errorf("failed to start status API: %w", err)
	}

	if !backgroundChildFlag {
		fmt.Printf("Daemon running, status API at http://127.0.0.1:%d\n", api.Port())
		fmt.Printf("Listening for sessions on %s\n", cfg.SocketPath())
		fmt.Println("Press Ctrl+C to stop")
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := api.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}

	if store != nil {
		_ = store.Close()
	}

	return nil
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadManager()
	if err != nil {
		return err
	}

	lifecycle := daemon.NewLifecycle(cfg.Settings().Daemon)

	if !lifecycle.IsRunning() {
		fmt.Println("Daemon is not running")
		return nil
	}

	pid, _ := lifecycle.GetPID()
	if err := lifecycle.Stop(); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	fmt.Printf("Daemon stopped (was PID %d)\n", pid)
	return nil
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadManager()
	if err != nil {
		return err
	}

	lifecycle := daemon.NewLifecycle(cfg.Settings().Daemon)

	if lifecycle.IsRunning() {
		pid, _ := lifecycle.GetPID()
		fmt.Printf("Daemon is running (PID %d)\n", pid)
		fmt.Printf("Status API: http://127.0.0.1:%d\n", lifecycle.Port())
	} else {
		fmt.Println("Daemon is not running")
	}

	return nil
}
