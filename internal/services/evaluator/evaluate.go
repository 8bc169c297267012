package evaluator

import (
	"time"

	"github.com/ternarybob/vigil/internal/models"
)

// Evaluate scans adjacent event pairs in source order and returns Restart for
// the first (Trigger, Confirm) pair whose gap is within rule.MaxGap. A confirm
// logged before its trigger has a negative gap and counts as within bound.
// Pairs that match on kind but exceed the bound are skipped.
func Evaluate(events []models.LogEvent, rule models.CorrelationRule) models.Decision {
	return EvaluateAfter(events, rule, time.Time{})
}

// EvaluateAfter is Evaluate restricted to pairs whose trigger is strictly
// after handled. Earlier pairs are skipped, not removed, so adjacency is the
// same as in Evaluate. A zero handled time considers every pair.
func EvaluateAfter(events []models.LogEvent, rule models.CorrelationRule, handled time.Time) models.Decision {
	for i := 0; i+1 < len(events); i++ {
		trigger, confirm := events[i], events[i+1]
		if trigger.Kind != rule.Trigger || confirm.Kind != rule.Confirm {
			continue
		}
		if !handled.IsZero() && !trigger.Timestamp.After(handled) {
			continue
		}
		gap := confirm.Timestamp.Sub(trigger.Timestamp)
		if gap <= rule.MaxGap {
			return models.Decision{
				Action:  models.DecisionRestart,
				Trigger: &trigger,
				Confirm: &confirm,
				Gap:     gap,
			}
		}
	}
	return models.NoAction()
}
