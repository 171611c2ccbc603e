package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = ".attn"
	configFileName = "config.yaml"
	socketFileName = "sock"
)

// Manager owns the persisted settings. Reads return copies; writers go
// through Update so concurrent readers in the daemon never observe a
// half-applied change.
type Manager struct {
	mu       sync.RWMutex
	settings Settings
	dir      string
	path     string
}

// NewManager loads settings from the given path, falling back to
// ~/.attn/config.yaml when path is empty. A missing file yields defaults;
// an empty ntfy topic gets a fresh random one, persisted immediately.
func NewManager(path string) (*Manager, error) {
	var dir string
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, configDirName)
		path = filepath.Join(dir, configFileName)
	} else {
		dir = filepath.Dir(path)
	}

	m := &Manager{
		settings: DefaultSettings(),
		dir:      dir,
		path:     path,
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &m.settings); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// First run, keep defaults.
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if m.settings.Ntfy.Topic == "" {
		m.settings.Ntfy.Topic = GenerateTopic()
		if err := m.save(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Settings returns a copy of the current settings.
func (m *Manager) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyLocked()
}

func (m *Manager) copyLocked() Settings {
	s := m.settings
	s.Tools = make(map[string]bool, len(m.settings.Tools))
	for k, v := range m.settings.Tools {
		s.Tools[k] = v
	}
	return s
}

// Update applies a mutation and persists the result.
func (m *Manager) Update(fn func(*Settings)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.settings)
	return m.save()
}

// SetPaused flips the global pause flag.
func (m *Manager) SetPaused(paused bool) error {
	return m.Update(func(s *Settings) {
		s.Paused = paused
	})
}

// RegenerateTopic replaces the ntfy topic with a fresh random one.
func (m *Manager) RegenerateTopic() (string, error) {
	topic := GenerateTopic()
	err := m.Update(func(s *Settings) {
		s.Ntfy.Topic = topic
	})
	return topic, err
}

// save writes the settings atomically. Callers hold the lock.
func (m *Manager) save() error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(m.settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}

	return nil
}

// Path returns the config file location.
func (m *Manager) Path() string {
	return m.path
}

// Dir returns the attn data directory.
func (m *Manager) Dir() string {
	return m.dir
}

// SocketPath returns the unix socket location inside the data directory.
func (m *Manager) SocketPath() string {
	return filepath.Join(m.dir, socketFileName)
}

// EnsureDir creates the data directory if missing.
func (m *Manager) EnsureDir() error {
	return os.MkdirAll(m.dir, 0755)
}

// DefaultSocketPath returns the socket location without loading config.
// The emit command uses it on the hot path of every wrapped CLI call.
func DefaultSocketPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), configDirName, socketFileName)
	}
	return filepath.Join(homeDir, configDirName, socketFileName)
}
