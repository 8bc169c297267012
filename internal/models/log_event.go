package models

import "time"

// EventKind classifies a log line by the marker it contains.
type EventKind string

const (
	EventStartupError         EventKind = "startup_error"
	EventStartFailure         EventKind = "start_failure"
	EventApplicationRunFailed EventKind = "application_run_failed"
	EventOutdatedConnection   EventKind = "outdated_connection"
	EventConnectionCheckEnd   EventKind = "connection_check_end"
)

// LogEvent is a classified, timestamped log line. Events are rebuilt on every
// extraction pass and carry no identity between passes.
type LogEvent struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Line      int       `json:"line"` // 1-based line number within the read
	Text      string    `json:"text"`
}

// Marker maps a substring found in a log line to the kind it produces.
type Marker struct {
	Substring string    `toml:"substring" yaml:"substring" validate:"required"`
	Kind      EventKind `toml:"kind" yaml:"kind" validate:"required"`
}

// DefaultMarkers returns the classification table for the coordination
// server's startup log.
func DefaultMarkers() []Marker {
	return []Marker{
		{Substring: "ERROR Startup errors", Kind: EventStartupError},
		{Substring: "ERROR Nacos failed to start", Kind: EventStartFailure},
		{Substring: "ERROR Application run failed", Kind: EventApplicationRunFailed},
		{Substring: "Out dated connection", Kind: EventOutdatedConnection},
		{Substring: "Connection check task end", Kind: EventConnectionCheckEnd},
	}
}
