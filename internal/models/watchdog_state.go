package models

import "time"

// LogCursor is the incremental read position within a log file. Events holds
// the classified events still inside the window at the last read, so adjacency
// survives across reads and process restarts.
type LogCursor struct {
	Path      string     `json:"path"`
	Offset    int64      `json:"offset"`
	Lines     int        `json:"lines"`
	Size      int64      `json:"size"`
	Head      string     `json:"head"` // leading bytes of the file, detects rotation
	Events    []LogEvent `json:"events,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IncidentMarker remembers the trigger timestamp of the last log incident
// whose restart succeeded.
type IncidentMarker struct {
	TriggerAt time.Time `json:"trigger_at"`
	HandledAt time.Time `json:"handled_at"`
	OutcomeID string    `json:"outcome_id"`
}
