package protocol

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ihavespoons/attn/internal/session"
)

// Message is a decoded lifecycle event received over the local socket.
// Exactly one of Start, StateChange, End, or Unknown implements it.
type Message interface {
	message()
}

// Start announces a new session.
type Start struct {
	SessionID   string
	Tool        string
	ProjectName string
	PID         int
}

// StateChange reports a session state transition.
type StateChange struct {
	SessionID string
	State     session.State
	Details   string
	// WorkingDurationSecs is how long the session worked before this
	// transition, when the emitter tracked it.
	WorkingDurationSecs *int
}

// End reports process exit.
type End struct {
	SessionID string
	ExitCode  int
}

// Unknown carries an unparseable line for diagnostics.
type Unknown struct {
	Raw string
}

func (Start) message()       {}
func (StateChange) message() {}
func (End) message()         {}
func (Unknown) message()     {}

// wireMessage is the JSON framing shared by all event types. Fields not
// relevant to a type are omitted by the emitter; pointers distinguish
// missing from zero on the way in.
type wireMessage struct {
	Type                string  `json:"type"`
	SessionID           string  `json:"session_id"`
	Tool                *string `json:"tool,omitempty"`
	ProjectName         *string `json:"project_name,omitempty"`
	PID                 *int    `json:"pid,omitempty"`
	State               *string `json:"state,omitempty"`
	Details             *string `json:"details,omitempty"`
	ExitCode            *int    `json:"exit_code,omitempty"`
	WorkingDurationSecs *int    `json:"working_duration_secs,omitempty"`
}

// Parse decodes one line into a Message. Blank lines return ok=false.
// JSON is tried first; anything that is not a JSON object falls back to
// the legacy pipe-delimited format. A line in either format with an
// unrecognized type tag or missing required fields decodes to Unknown
// rather than failing: the type tag is trusted, the payload is not.
func Parse(line string) (Message, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, false
	}

	var wire wireMessage
	if err := json.Unmarshal([]byte(trimmed), &wire); err == nil {
		return parseWire(wire, trimmed), true
	}

	return parseLegacy(trimmed), true
}

func parseWire(wire wireMessage, raw string) Message {
	// session_id is required for every declared type.
	if wire.SessionID == "" {
		return Unknown{Raw: raw}
	}

	switch wire.Type {
	case "START":
		if wire.Tool == nil || wire.ProjectName == nil || wire.PID == nil {
			return Unknown{Raw: raw}
		}
		return Start{
			SessionID:   wire.SessionID,
			Tool:        *wire.Tool,
			ProjectName: *wire.ProjectName,
			PID:         *wire.PID,
		}

	case "STATE":
		if wire.State == nil {
			return Unknown{Raw: raw}
		}
		state, ok := session.ParseState(*wire.State)
		if !ok {
			return Unknown{Raw: raw}
		}
		details := ""
		if wire.Details != nil {
			details = *wire.Details
		}
		return StateChange{
			SessionID:           wire.SessionID,
			State:               state,
			Details:             details,
			WorkingDurationSecs: wire.WorkingDurationSecs,
		}

	case "END":
		if wire.ExitCode == nil {
			return Unknown{Raw: raw}
		}
		return End{
			SessionID: wire.SessionID,
			ExitCode:  *wire.ExitCode,
		}

	default:
		return Unknown{Raw: raw}
	}
}

// parseLegacy handles the pipe-delimited format older shell hooks emit:
//
//	START|id|tool|project|pid
//	STATE|id|state|details
//	END|id|exitCode
//
// Pipes inside a details field arrive escaped as `\|`.
func parseLegacy(trimmed string) Message {
	parts := strings.Split(trimmed, "|")

	switch parts[0] {
	case "START":
		if len(parts) < 5 {
			return Unknown{Raw: trimmed}
		}
		pid, err := strconv.Atoi(parts[4])
		if err != nil {
			return Unknown{Raw: trimmed}
		}
		return Start{
			SessionID:   parts[1],
			Tool:        parts[2],
			ProjectName: parts[3],
			PID:         pid,
		}

	case "STATE":
		if len(parts) < 4 {
			return Unknown{Raw: trimmed}
		}
		state, ok := session.ParseState(parts[2])
		if !ok {
			return Unknown{Raw: trimmed}
		}
		details := strings.ReplaceAll(strings.Join(parts[3:], "|"), `\|`, "|")
		return StateChange{
			SessionID: parts[1],
			State:     state,
			Details:   details,
		}

	case "END":
		if len(parts) < 3 {
			return Unknown{Raw: trimmed}
		}
		exitCode, err := strconv.Atoi(parts[2])
		if err != nil {
			return Unknown{Raw: trimmed}
		}
		return End{
			SessionID: parts[1],
			ExitCode:  exitCode,
		}

	default:
		return Unknown{Raw: trimmed}
	}
}

// Encode renders the message as one JSON wire line, newline included.
func (m Start) Encode() string {
	return encode(wireMessage{
		Type:        "START",
		SessionID:   m.SessionID,
		Tool:        &m.Tool,
		ProjectName: &m.ProjectName,
		PID:         &m.PID,
	})
}

// Encode renders the message as one JSON wire line, newline included.
func (m StateChange) Encode() string {
	state := string(m.State)
	return encode(wireMessage{
		Type:                "STATE",
		SessionID:           m.SessionID,
		State:               &state,
		Details:             &m.Details,
		WorkingDurationSecs: m.WorkingDurationSecs,
	})
}

// Encode renders the message as one JSON wire line, newline included.
func (m End) Encode() string {
	return encode(wireMessage{
		Type:      "END",
		SessionID: m.SessionID,
		ExitCode:  &m.ExitCode,
	})
}

func encode(wire wireMessage) string {
	data, _ := json.Marshal(wire)
	return string(data) + "\n"
}
