package protocol

import (
	"strings"
	"testing"

	"github.com/ihavespoons/attn/internal/session"
)

func TestParseBlankLines(t *testing.T) {
	for _, line := range []string{"", "   ", "\t", "\n"} {
		if msg, ok := Parse(line); ok {
			t.Errorf("Parse(%q) returned message %#v, want none", line, msg)
		}
	}
}

func TestParseJSONStart(t *testing.T) {
	line := `{"type":"START","session_id":"s1","tool":"claude","project_name":"demo","pid":100}`
	msg, ok := Parse(line)
	if !ok {
		t.Fatal("Parse returned no message")
	}

	start, ok := msg.(Start)
	if !ok {
		t.Fatalf("Parse returned %T, want Start", msg)
	}
	if start.SessionID != "s1" || start.Tool != "claude" || start.ProjectName != "demo" || start.PID != 100 {
		t.Errorf("unexpected fields: %#v", start)
	}
}

func TestParseJSONState(t *testing.T) {
	tests := []struct {
		name         string
		line         string
		wantState    session.State
		wantDetails  string
		wantDuration *int
	}{
		{
			name:        "awaiting approval",
			line:        `{"type":"STATE","session_id":"s1","state":"AWAITING_APPROVAL","details":"confirm?"}`,
			wantState:   session.StateAwaitingApproval,
			wantDetails: "confirm?",
		},
		{
			name:        "missing details defaults empty",
			line:        `{"type":"STATE","session_id":"s1","state":"WORKING"}`,
			wantState:   session.StateWorking,
			wantDetails: "",
		},
		{
			name:         "idle with working duration",
			line:         `{"type":"STATE","session_id":"s1","state":"IDLE","details":"","working_duration_secs":45}`,
			wantState:    session.StateIdle,
			wantDetails:  "",
			wantDuration: intPtr(45),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := Parse(tt.line)
			if !ok {
				t.Fatal("Parse returned no message")
			}
			state, ok := msg.(StateChange)
			if !ok {
				t.Fatalf("Parse returned %T, want StateChange", msg)
			}
			if state.State != tt.wantState {
				t.Errorf("State = %q, want %q", state.State, tt.wantState)
			}
			if state.Details != tt.wantDetails {
				t.Errorf("Details = %q, want %q", state.Details, tt.wantDetails)
			}
			if (state.WorkingDurationSecs == nil) != (tt.wantDuration == nil) {
				t.Fatalf("WorkingDurationSecs = %v, want %v", state.WorkingDurationSecs, tt.wantDuration)
			}
			if tt.wantDuration != nil && *state.WorkingDurationSecs != *tt.wantDuration {
				t.Errorf("WorkingDurationSecs = %d, want %d", *state.WorkingDurationSecs, *tt.wantDuration)
			}
		})
	}
}

func TestParseJSONEnd(t *testing.T) {
	msg, ok := Parse(`{"type":"END","session_id":"s1","exit_code":1}`)
	if !ok {
		t.Fatal("Parse returned no message")
	}
	end, ok := msg.(End)
	if !ok {
		t.Fatalf("Parse returned %T, want End", msg)
	}
	if end.SessionID != "s1" || end.ExitCode != 1 {
		t.Errorf("unexpected fields: %#v", end)
	}
}

func TestParseJSONMissingFields(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"start without pid", `{"type":"START","session_id":"s1","tool":"claude","project_name":"demo"}`},
		{"start without tool", `{"type":"START","session_id":"s1","project_name":"demo","pid":1}`},
		{"state without state", `{"type":"STATE","session_id":"s1","details":"x"}`},
		{"state with bad token", `{"type":"STATE","session_id":"s1","state":"NAPPING"}`},
		{"end without exit code", `{"type":"END","session_id":"s1"}`},
		{"start without session id", `{"type":"START","tool":"claude","project_name":"demo","pid":1}`},
		{"state without session id", `{"type":"STATE","state":"WORKING"}`},
		{"end without session id", `{"type":"END","exit_code":0}`},
		{"empty session id", `{"type":"END","session_id":"","exit_code":0}`},
		{"unknown type tag", `{"type":"PING","session_id":"s1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := Parse(tt.line)
			if !ok {
				t.Fatal("Parse returned no message")
			}
			unknown, ok := msg.(Unknown)
			if !ok {
				t.Fatalf("Parse returned %T, want Unknown", msg)
			}
			if unknown.Raw != tt.line {
				t.Errorf("Raw = %q, want original line", unknown.Raw)
			}
		})
	}
}

func TestParseLegacyEquivalence(t *testing.T) {
	// Every valid legacy line must decode to the same event as its
	// structured equivalent.
	tests := []struct {
		name   string
		legacy string
		json   string
	}{
		{
			name:   "start",
			legacy: "START|s1|claude|demo|100",
			json:   `{"type":"START","session_id":"s1","tool":"claude","project_name":"demo","pid":100}`,
		},
		{
			name:   "state",
			legacy: "STATE|s1|AWAITING_APPROVAL|confirm?",
			json:   `{"type":"STATE","session_id":"s1","state":"AWAITING_APPROVAL","details":"confirm?"}`,
		},
		{
			name:   "end",
			legacy: "END|s1|0",
			json:   `{"type":"END","session_id":"s1","exit_code":0}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fromLegacy, ok := Parse(tt.legacy)
			if !ok {
				t.Fatal("legacy Parse returned no message")
			}
			fromJSON, ok := Parse(tt.json)
			if !ok {
				t.Fatal("json Parse returned no message")
			}
			if fromLegacy != fromJSON {
				t.Errorf("legacy %#v != structured %#v", fromLegacy, fromJSON)
			}
		})
	}
}

func TestParseLegacyEscapedPipe(t *testing.T) {
	msg, ok := Parse(`STATE|s1|WORKING|running a \| b`)
	if !ok {
		t.Fatal("Parse returned no message")
	}
	state, ok := msg.(StateChange)
	if !ok {
		t.Fatalf("Parse returned %T, want StateChange", msg)
	}
	if state.Details != "running a | b" {
		t.Errorf("Details = %q, want unescaped pipe", state.Details)
	}
}

func TestParseLegacyMalformed(t *testing.T) {
	tests := []string{
		"START|s1|claude|demo",     // too few fields
		"START|s1|claude|demo|abc", // pid not an integer
		"STATE|s1|NAPPING|x",       // bad state token
		"STATE|s1",                 // too few fields
		"END|s1|x",                 // exit code not an integer
		"BOGUS|s1|1",               // unknown type tag
		"just some text",
	}

	for _, line := range tests {
		msg, ok := Parse(line)
		if !ok {
			t.Fatalf("Parse(%q) returned no message", line)
		}
		if _, isUnknown := msg.(Unknown); !isUnknown {
			t.Errorf("Parse(%q) = %T, want Unknown", line, msg)
		}
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	duration := 45
	messages := []Message{
		Start{SessionID: "s1", Tool: "claude", ProjectName: "demo", PID: 100},
		StateChange{SessionID: "s1", State: session.StateIdle, Details: "quiet", WorkingDurationSecs: &duration},
		End{SessionID: "s1", ExitCode: 2},
	}

	for _, msg := range messages {
		var line string
		switch m := msg.(type) {
		case Start:
			line = m.Encode()
		case StateChange:
			line = m.Encode()
		case End:
			line = m.Encode()
		}

		if !strings.HasSuffix(line, "\n") {
			t.Errorf("Encode(%#v) missing trailing newline", msg)
		}

		decoded, ok := Parse(line)
		if !ok {
			t.Fatalf("Parse of encoded %#v returned no message", msg)
		}

		switch m := msg.(type) {
		case StateChange:
			got, ok := decoded.(StateChange)
			if !ok {
				t.Fatalf("decoded %T, want StateChange", decoded)
			}
			if got.SessionID != m.SessionID || got.State != m.State || got.Details != m.Details {
				t.Errorf("round trip mismatch: %#v != %#v", got, m)
			}
			if got.WorkingDurationSecs == nil || *got.WorkingDurationSecs != *m.WorkingDurationSecs {
				t.Errorf("WorkingDurationSecs lost in round trip")
			}
		default:
			if decoded != msg {
				t.Errorf("round trip mismatch: %#v != %#v", decoded, msg)
			}
		}
	}
}

func intPtr(n int) *int { return &n }
