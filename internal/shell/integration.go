// Package shell installs the rc-file hooks that wrap supported AI
// coding tools with session emission.
package shell

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed scripts/hook.zsh scripts/hook.bash
var hookScripts embed.FS

const markerComment = "# attn shell integration"

// hookMarker is the substring that identifies an installed source line
// in an rc file, regardless of how the user formatted it.
const hookMarker = ".attn/hook"

// Type identifies a supported shell.
type Type string

// Supported shells.
const (
	Zsh  Type = "zsh"
	Bash Type = "bash"
)

// All lists every supported shell.
var All = []Type{Zsh, Bash}

// ConfigFile returns the rc file name for the shell.
func (t Type) ConfigFile() string {
	switch t {
	case Bash:
		return ".bashrc"
	default:
		return ".zshrc"
	}
}

// HookFile returns the hook script name for the shell.
func (t Type) HookFile() string {
	switch t {
	case Bash:
		return "hook.bash"
	default:
		return "hook.zsh"
	}
}

func (t Type) sourceLine() string {
	return fmt.Sprintf("source \"$HOME/.attn/%s\"", t.HookFile())
}

// State summarizes how completely the integration is installed.
type State string

// Installation states.
const (
	StateNotInstalled State = "not_installed"
	StatePartial      State = "partial"
	StateInstalled    State = "installed"
)

// Status reports per-shell installation.
type Status struct {
	State     State
	Installed []Type
	Missing   []Type
}

// Integration manages hook scripts and rc-file source lines.
type Integration struct {
	homeDir string
	dataDir string
}

// NewIntegration creates an integration rooted at the user's home
// directory.
func NewIntegration() (*Integration, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return &Integration{
		homeDir: home,
		dataDir: filepath.Join(home, ".attn"),
	}, nil
}

// DetectShell picks the shell to install into from $SHELL, defaulting
// to zsh.
func DetectShell() Type {
	if strings.Contains(os.Getenv("SHELL"), "bash") {
		return Bash
	}
	return Zsh
}

// Install writes the hook scripts for every shell and adds the source
// line to the given shell's rc file.
func (i *Integration) Install(shell Type) error {
	if err := i.writeHookScripts(); err != nil {
		return err
	}
	return i.installSourceLine(shell)
}

// InstallAll writes the hook scripts and adds the source line to every
// supported shell's rc file.
func (i *Integration) InstallAll() error {
	if err := i.writeHookScripts(); err != nil {
		return err
	}
	for _, shell := range All {
		if err := i.installSourceLine(shell); err != nil {
			return err
		}
	}
	return nil
}

// Uninstall removes the source lines from every rc file and deletes the
// hook scripts.
func (i *Integration) Uninstall() error {
	for _, shell := range All {
		if err := i.removeSourceLine(shell); err != nil {
			return err
		}
	}
	for _, shell := range All {
		_ = os.Remove(filepath.Join(i.dataDir, shell.HookFile()))
	}
	return nil
}

// Status reports which shells currently source the hook.
func (i *Integration) Status() Status {
	var status Status
	for _, shell := range All {
		if i.sourceLineInstalled(shell) {
			status.Installed = append(status.Installed, shell)
		} else {
			status.Missing = append(status.Missing, shell)
		}
	}

	switch {
	case len(status.Installed) == 0:
		status.State = StateNotInstalled
	case len(status.Missing) == 0:
		status.State = StateInstalled
	default:
		status.State = StatePartial
	}
	return status
}

func (i *Integration) writeHookScripts() error {
	if err := os.MkdirAll(i.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	for _, shell := range All {
		script, err := hookScripts.ReadFile("scripts/" + shell.HookFile())
		if err != nil {
			return fmt.Errorf("failed to read embedded hook %s: %w", shell.HookFile(), err)
		}

		dest := filepath.Join(i.dataDir, shell.HookFile())
		if err := os.WriteFile(dest, script, 0755); err != nil {
			return fmt.Errorf("failed to write hook %s: %w", dest, err)
		}
	}
	return nil
}

func (i *Integration) installSourceLine(shell Type) error {
	rcPath := filepath.Join(i.homeDir, shell.ConfigFile())

	content := ""
	if data, err := os.ReadFile(rcPath); err == nil {
		content = string(data)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", rcPath, err)
	}

	if strings.Contains(content, hookMarker) {
		return nil
	}

	content += fmt.Sprintf("\n%s\n%s\n", markerComment, shell.sourceLine())
	if err := os.WriteFile(rcPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rcPath, err)
	}
	return nil
}

func (i *Integration) removeSourceLine(shell Type) error {
	rcPath := filepath.Join(i.homeDir, shell.ConfigFile())

	data, err := os.ReadFile(rcPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", rcPath, err)
	}

	lines := strings.Split(string(data), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.Contains(line, markerComment) || strings.Contains(line, hookMarker) {
			continue
		}
		kept = append(kept, line)
	}

	content := strings.Join(kept, "\n")
	for strings.HasSuffix(content, "\n\n") {
		content = strings.TrimSuffix(content, "\n")
	}

	if err := os.WriteFile(rcPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rcPath, err)
	}
	return nil
}

func (i *Integration) sourceLineInstalled(shell Type) bool {
	data, err := os.ReadFile(filepath.Join(i.homeDir, shell.ConfigFile()))
	if err != nil {
		return false
	}
	return strings.Contains(string(data), hookMarker)
}
