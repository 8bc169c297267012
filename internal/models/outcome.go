package models

import "time"

// ActionType names a corrective action.
type ActionType string

const (
	ActionRestartServer ActionType = "restart_server"
	ActionStartService  ActionType = "start_service"
)

// ActionOutcome records what a corrective action did. Outcomes are persisted
// to the history store for post-hoc diagnosis.
type ActionOutcome struct {
	ID        string        `json:"id"`
	CycleID   string        `json:"cycle_id"`
	Action    ActionType    `json:"action" badgerhold:"index"`
	Target    string        `json:"target" badgerhold:"index"`
	Reason    string        `json:"reason,omitempty"`
	Succeeded bool          `json:"succeeded"`
	ExitCode  int           `json:"exit_code"`
	Stdout    string        `json:"stdout,omitempty"`
	Stderr    string        `json:"stderr,omitempty"`
	Error     string        `json:"error,omitempty"`
	Steps     []string      `json:"steps,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Step appends a human-readable step to the outcome trail.
func (o *ActionOutcome) Step(msg string) {
	o.Steps = append(o.Steps, msg)
}

// Fail marks the outcome failed with the given error.
func (o *ActionOutcome) Fail(err error) {
	o.Succeeded = false
	if err != nil {
		o.Error = err.Error()
	}
}

// CycleReport summarises one monitor cycle.
type CycleReport struct {
	CycleID    string          `json:"cycle_id"`
	StartedAt  time.Time       `json:"started_at"`
	Sweep      bool            `json:"sweep"`
	Events     int             `json:"events"`
	Decision   DecisionAction  `json:"decision"`
	Suppressed string          `json:"suppressed,omitempty"` // matched incident that was not acted on
	Probes     []ProbeResult   `json:"probes,omitempty"`
	Actions    []ActionOutcome `json:"actions,omitempty"`
	Errors     []string        `json:"errors,omitempty"`
}
