package integration

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var binaryPath string

func TestMain(m *testing.M) {
	projectRoot := getProjectRoot()

	// Build the binary before running tests
	binaryPath = filepath.Join(projectRoot, "attn_test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/attn")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	if err != nil {
		panic("Failed to build binary: " + err.Error() + "\nOutput: " + string(output))
	}

	code := m.Run()

	_ = os.Remove(binaryPath)
	os.Exit(code)
}

func getProjectRoot() string {
	// Navigate from test/integration to project root
	wd, _ := os.Getwd()
	return filepath.Join(wd, "..", "..")
}

// runAttn runs the binary with HOME pointed at a private directory so
// tests never touch the real ~/.attn.
func runAttn(home string, args ...string) (string, string, error) {
	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := runAttn(t.TempDir(), "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(stdout, "attn ") {
		t.Errorf("version output = %q", stdout)
	}
}

func TestEmitDeliversEventToSocket(t *testing.T) {
	home := t.TempDir()
	sockPath := filepath.Join(home, ".attn", "sock")
	if err := os.MkdirAll(filepath.Dir(sockPath), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	lines := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		scanner := bufio.NewScanner(conn)
		if scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	_, stderr, err := runAttn(home, "emit", "start",
		"--session", "int-1", "--tool", "claude", "--project", "demo", "--pid", "4242")
	if err != nil {
		t.Fatalf("emit failed: %v\nstderr: %s", err, stderr)
	}
	if stderr != "" {
		t.Errorf("emit wrote to stderr: %q", stderr)
	}

	select {
	case line := <-lines:
		var event map[string]any
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Fatalf("event is not JSON: %q", line)
		}
		if event["type"] != "START" || event["session_id"] != "int-1" {
			t.Errorf("event = %v", event)
		}
		if event["tool"] != "claude" || event["pid"] != float64(4242) {
			t.Errorf("event = %v", event)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event arrived on the socket")
	}
}

func TestEmitSucceedsSilentlyWithoutDaemon(t *testing.T) {
	home := t.TempDir()

	stdout, stderr, err := runAttn(home, "emit", "end", "--session", "int-2", "--exit-code", "1")
	if err != nil {
		t.Fatalf("emit without daemon failed: %v", err)
	}
	if stdout != "" || stderr != "" {
		t.Errorf("emit produced output without daemon: stdout=%q stderr=%q", stdout, stderr)
	}
}

func TestHookInstallAndStatus(t *testing.T) {
	home := t.TempDir()

	cmd := exec.Command(binaryPath, "hook", "install")
	cmd.Env = append(os.Environ(), "HOME="+home, "SHELL=/bin/zsh")
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("hook install failed: %v\n%s", err, output)
	}

	rc, err := os.ReadFile(filepath.Join(home, ".zshrc"))
	if err != nil {
		t.Fatalf("read .zshrc: %v", err)
	}
	if !strings.Contains(string(rc), ".attn/hook.zsh") {
		t.Errorf(".zshrc missing source line:\n%s", rc)
	}

	hook, err := os.ReadFile(filepath.Join(home, ".attn", "hook.zsh"))
	if err != nil {
		t.Fatalf("read hook script: %v", err)
	}
	if !strings.Contains(string(hook), "attn emit start") {
		t.Error("hook script does not call the emitter")
	}

	stdout, _, err := runAttn(home, "hook", "status")
	if err != nil {
		t.Fatalf("hook status failed: %v", err)
	}
	if !strings.Contains(stdout, "zsh") {
		t.Errorf("status output = %q", stdout)
	}

	if _, _, err := runAttn(home, "hook", "uninstall"); err != nil {
		t.Fatalf("hook uninstall failed: %v", err)
	}
	rc, _ = os.ReadFile(filepath.Join(home, ".zshrc"))
	if strings.Contains(string(rc), ".attn/hook") {
		t.Errorf(".zshrc still sources the hook after uninstall:\n%s", rc)
	}
}

func TestFirstRunGeneratesConfigWithTopic(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := runAttn(home, "notify", "topic")
	if err != nil {
		t.Fatalf("notify topic failed: %v", err)
	}
	if !strings.Contains(stdout, "attn-") {
		t.Errorf("topic output = %q", stdout)
	}

	data, err := os.ReadFile(filepath.Join(home, ".attn", "config.yaml"))
	if err != nil {
		t.Fatalf("config not created on first run: %v", err)
	}
	if !strings.Contains(string(data), "topic: attn-") {
		t.Errorf("config missing generated topic:\n%s", data)
	}
}
