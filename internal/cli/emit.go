package cli

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ihavespoons/attn/internal/config"
	"github.com/ihavespoons/attn/internal/logger"
	"github.com/ihavespoons/attn/internal/protocol"
	"github.com/ihavespoons/attn/internal/session"
	"github.com/spf13/cobra"
)

const emitDialTimeout = 500 * time.Millisecond

var (
	emitSessionID       string
	emitTool            string
	emitProject         string
	emitPID             int
	emitState           string
	emitDetails         string
	emitWorkingDuration int
	emitExitCode        int
)

var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Send a session event to the daemon",
	Long: `Send a session event to the daemon over the local socket.

Shell hooks call this around wrapped tool invocations. When the daemon
is not running the event is silently dropped so wrapped tools never
fail or slow down because monitoring is off.`,
}

var emitStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Report a new session",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid := emitPID
		if pid == 0 {
			pid = os.Getppid()
		}
		return emit(protocol.Start{
			SessionID:   emitSessionID,
			Tool:        emitTool,
			ProjectName: emitProject,
			PID:         pid,
		})
	},
}

var emitStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Report a session state change",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, ok := session.ParseState(emitState)
		if !ok {
			return fmt.Errorf("unknown state %q", emitState)
		}

		msg := protocol.StateChange{
			SessionID: emitSessionID,
			State:     state,
			Details:   emitDetails,
		}
		if cmd.Flags().Changed("working-duration") {
			msg.WorkingDurationSecs = &emitWorkingDuration
		}
		return emit(msg)
	},
}

var emitEndCmd = &cobra.Command{
	Use:   "end",
	Short: "Report a session ending",
	RunE: func(cmd *cobra.Command, args []string) error {
		return emit(protocol.End{
			SessionID: emitSessionID,
			ExitCode:  emitExitCode,
		})
	},
}

func init() {
	emitCmd.PersistentFlags().StringVar(&emitSessionID, "session", "", "Session identifier")
	_ = emitCmd.MarkPersistentFlagRequired("session")

	emitStartCmd.Flags().StringVar(&emitTool, "tool", "", "Tool name (e.g. claude)")
	emitStartCmd.Flags().StringVar(&emitProject, "project", "", "Project name")
	emitStartCmd.Flags().IntVar(&emitPID, "pid", 0, "Process ID of the wrapped tool")
	_ = emitStartCmd.MarkFlagRequired("tool")

	emitStateCmd.Flags().StringVar(&emitState, "state", "", "New state (WORKING, AWAITING_APPROVAL, COMPLETED, ERROR, IDLE)")
	emitStateCmd.Flags().StringVar(&emitDetails, "details", "", "Human-readable context for the state")
	emitStateCmd.Flags().IntVar(&emitWorkingDuration, "working-duration", 0, "Seconds spent in the previous working phase")
	_ = emitStateCmd.MarkFlagRequired("state")

	emitEndCmd.Flags().IntVar(&emitExitCode, "exit-code", 0, "Exit code of the wrapped tool")

	emitCmd.AddCommand(emitStartCmd)
	emitCmd.AddCommand(emitStateCmd)
	emitCmd.AddCommand(emitEndCmd)
	rootCmd.AddCommand(emitCmd)
}

type encoder interface {
	Encode() string
}

// emit writes one wire line to the daemon socket. A missing or dead
// socket is success: the hooks must be invisible when the daemon is
// down.
func emit(msg encoder) error {
	logger.InitQuiet()

	conn, err := net.DialTimeout("unix", config.DefaultSocketPath(), emitDialTimeout)
	if err != nil {
		return nil
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(emitDialTimeout))
	_, _ = conn.Write([]byte(msg.Encode()))
	return nil
}
