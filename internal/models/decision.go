package models

import "time"

// CorrelationRule fires when a Trigger event is immediately followed by a
// Confirm event no more than MaxGap later.
type CorrelationRule struct {
	Trigger EventKind
	Confirm EventKind
	MaxGap  time.Duration
}

// DecisionAction is the outcome of evaluating an event window.
type DecisionAction string

const (
	DecisionNoAction DecisionAction = "no_action"
	DecisionRestart  DecisionAction = "restart"
)

// Decision is the result of an evaluation pass. Trigger and Confirm are set
// only when Action is DecisionRestart.
type Decision struct {
	Action  DecisionAction
	Trigger *LogEvent
	Confirm *LogEvent
	Gap     time.Duration
}

// IsRestart reports whether the decision calls for a server restart.
func (d Decision) IsRestart() bool {
	return d.Action == DecisionRestart
}

// NoAction is the zero-match decision.
func NoAction() Decision {
	return Decision{Action: DecisionNoAction}
}
