// Package events defines event types and the pub/sub bus connecting the
// rconsole components: fleet sessions emit, history/telemetry consume.
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Session lifecycle events
	EventSessionOpened EventType = "session_opened"
	EventSessionClosed EventType = "session_closed"
	EventSessionFailed EventType = "session_failed"
	EventAuthRejected  EventType = "auth_rejected"

	// Command events
	EventCommandExecuted EventType = "command_executed"

	// Monitor events
	EventServerStatus EventType = "server_status"

	// System events
	EventConfigChanged EventType = "config_changed"
	EventShutdown      EventType = "shutdown"
)

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// SessionPayload describes a session lifecycle change.
type SessionPayload struct {
	Server  string `json:"server"`
	Address string `json:"address"`
	State   string `json:"state"`
	Reason  string `json:"reason,omitempty"`
}

// CommandPayload describes one executed command and its outcome.
type CommandPayload struct {
	Server   string        `json:"server"`
	Command  string        `json:"command"`
	Response string        `json:"response,omitempty"`
	Error    string        `json:"error,omitempty"`
	OK       bool          `json:"ok"`
	Duration time.Duration `json:"duration_ms"`
}

// ConfigChangedPayload identifies which configuration section changed.
type ConfigChangedPayload struct {
	Section string `json:"section"`
}

// ServerStatusPayload carries a monitor keepalive result together with host
// resource readings.
type ServerStatusPayload struct {
	Server        string  `json:"server"`
	Reachable     bool    `json:"reachable"`
	Players       string  `json:"players,omitempty"`
	HostCPUUsage  float64 `json:"host_cpu_usage"`
	HostMemoryPct float64 `json:"host_memory_pct"`
}
