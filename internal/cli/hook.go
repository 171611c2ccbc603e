package cli

import (
	"fmt"
	"strings"

	"github.com/ihavespoons/attn/internal/shell"
	"github.com/spf13/cobra"
)

var hookAllShells bool

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage shell integration",
	Long: `Manage the shell hooks that wrap AI coding tools.

The hooks define shell functions around supported tools (claude, codex)
that report session start and end to the daemon. Installation appends
one source line to your shell's rc file.`,
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install shell hooks",
	Long: `Install the shell hooks for your current shell.

Example:
  attn hook install        # Install for the shell in $SHELL
  attn hook install --all  # Install for zsh and bash`,
	RunE: runHookInstall,
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove shell hooks",
	RunE:  runHookUninstall,
}

var hookStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show shell integration status",
	RunE:  runHookStatus,
}

func init() {
	hookInstallCmd.Flags().BoolVar(&hookAllShells, "all", false, "Install for every supported shell")

	hookCmd.AddCommand(hookInstallCmd)
	hookCmd.AddCommand(hookUninstallCmd)
	hookCmd.AddCommand(hookStatusCmd)
	rootCmd.AddCommand(hookCmd)
}

func runHookInstall(cmd *cobra.Command, args []string) error {
	integration, err := shell.NewIntegration()
	if err != nil {
		return err
	}

	if hookAllShells {
		if err := integration.InstallAll(); err != nil {
			return fmt.Errorf("failed to install hooks: %w", err)
		}
		fmt.Println("Shell hooks installed for zsh and bash")
	} else {
		target := shell.DetectShell()
		if err := integration.Install(target); err != nil {
			return fmt.Errorf("failed to install hooks: %w", err)
		}
		fmt.Printf("Shell hooks installed for %s\n", target)
	}

	fmt.Println("Restart your terminal (or source your rc file) to activate them")
	return nil
}

func runHookUninstall(cmd *cobra.Command, args []string) error {
	integration, err := shell.NewIntegration()
	if err != nil {
		return err
	}

	if err := integration.Uninstall(); err != nil {
		return fmt.Errorf("failed to uninstall hooks: %w", err)
	}

	fmt.Println("Shell hooks removed")
	return nil
}

func runHookStatus(cmd *cobra.Command, args []string) error {
	integration, err := shell.NewIntegration()
	if err != nil {
		return err
	}

	status := integration.Status()
	switch status.State {
	case shell.StateInstalled:
		fmt.Println("Shell hooks installed for every supported shell")
	case shell.StateNotInstalled:
		fmt.Println("Shell hooks not installed (run: attn hook install)")
	case shell.StatePartial:
		fmt.Printf("Shell hooks installed for %s, missing for %s\n",
			joinShells(status.Installed), joinShells(status.Missing))
	}
	return nil
}

func joinShells(shells []shell.Type) string {
	names := make([]string, len(shells))
	for i, s := range shells {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
