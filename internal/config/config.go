package config

import (
	"time"
)

// Priority maps to the ntfy priority scale.
type Priority string

const (
	PriorityMin     Priority = "min"
	PriorityLow     Priority = "low"
	PriorityDefault Priority = "default"
	PriorityHigh    Priority = "high"
	PriorityUrgent  Priority = "urgent"
)

// NtfyValue returns the integer priority ntfy expects (1..5).
func (p Priority) NtfyValue() int {
	switch p {
	case PriorityMin:
		return 1
	case PriorityLow:
		return 2
	case PriorityHigh:
		return 4
	case PriorityUrgent:
		return 5
	default:
		return 3
	}
}

// NotificationSettings controls one notification category.
type NotificationSettings struct {
	Enabled  bool     `yaml:"enabled"`
	Priority Priority `yaml:"priority"`
}

// NotificationPrefs holds the per-category settings.
type NotificationPrefs struct {
	Approval  NotificationSettings `yaml:"approval"`
	Completed NotificationSettings `yaml:"completed"`
	Error     NotificationSettings `yaml:"error"`
}

// NtfySettings identifies the push sink.
type NtfySettings struct {
	Server string `yaml:"server"`
	Topic  string `yaml:"topic"`
}

// SubscribeURL is the address a phone subscribes to.
func (n NtfySettings) SubscribeURL() string {
	return n.Server + "/" + n.Topic
}

// QuietHours is a daily window during which notifications are suppressed.
// Start and End use HH:mm; Start > End means the window wraps midnight.
type QuietHours struct {
	Enabled bool   `yaml:"enabled"`
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
}

// ActiveAt reports whether the window covers the given local time.
func (q QuietHours) ActiveAt(t time.Time) bool {
	if !q.Enabled {
		return false
	}

	start, err := time.Parse("15:04", q.Start)
	if err != nil {
		return false
	}
	end, err := time.Parse("15:04", q.End)
	if err != nil {
		return false
	}

	currentMinutes := t.Hour()*60 + t.Minute()
	startMinutes := start.Hour()*60 + start.Minute()
	endMinutes := end.Hour()*60 + end.Minute()

	if startMinutes < endMinutes {
		return currentMinutes >= startMinutes && currentMinutes < endMinutes
	}
	// Overnight range, e.g. 22:00 - 08:00.
	return currentMinutes >= startMinutes || currentMinutes < endMinutes
}

// DaemonSettings configures the local status API.
type DaemonSettings struct {
	Port int `yaml:"port"`
}

// Settings is the complete attn configuration.
type Settings struct {
	Version       int               `yaml:"version"`
	LogLevel      string            `yaml:"log_level"`
	LogFile       string            `yaml:"log_file,omitempty"`
	Paused        bool              `yaml:"paused"`
	Ntfy          NtfySettings      `yaml:"ntfy"`
	Notifications NotificationPrefs `yaml:"notifications"`
	Tools         map[string]bool   `yaml:"tools"`
	QuietHours    QuietHours        `yaml:"quiet_hours"`
	RespectDND    bool              `yaml:"respect_dnd"`
	Daemon        DaemonSettings    `yaml:"daemon"`
}

// ToolEnabled reports whether sessions from the given tool are tracked.
// Tools without an explicit entry are tracked.
func (s Settings) ToolEnabled(tool string) bool {
	if enabled, ok := s.Tools[tool]; ok {
		return enabled
	}
	return true
}

// DefaultSettings returns the default configuration. The ntfy topic is
// left empty; the manager generates one on first load.
func DefaultSettings() Settings {
	return Settings{
		Version:  1,
		LogLevel: "info",
		Ntfy: NtfySettings{
			Server: "https://ntfy.sh",
		},
		Notifications: NotificationPrefs{
			Approval:  NotificationSettings{Enabled: true, Priority: PriorityUrgent},
			Completed: NotificationSettings{Enabled: true, Priority: PriorityDefault},
			Error:     NotificationSettings{Enabled: true, Priority: PriorityHigh},
		},
		Tools: map[string]bool{
			"claude": true,
			"codex":  true,
		},
		QuietHours: QuietHours{
			Enabled: false,
			Start:   "22:00",
			End:     "08:00",
		},
		RespectDND: true,
		Daemon: DaemonSettings{
			Port: 8742,
		},
	}
}
