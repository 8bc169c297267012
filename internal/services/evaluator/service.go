package evaluator

import (
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/models"
)

// Service applies a fixed correlation rule and logs how it decided.
type Service struct {
	rule   models.CorrelationRule
	logger arbor.ILogger
}

// NewService creates an evaluator for rule
func NewService(logger arbor.ILogger, rule models.CorrelationRule) *Service {
	return &Service{rule: rule, logger: logger}
}

// Rule returns the configured correlation rule
func (s *Service) Rule() models.CorrelationRule {
	return s.rule
}

// Evaluate returns the decision for events. Every kind-matching pair is
// logged at debug level with its gap.
func (s *Service) Evaluate(events []models.LogEvent) models.Decision {
	return s.EvaluateAfter(events, time.Time{})
}

// EvaluateAfter returns the decision for events, ignoring incidents whose
// trigger is at or before handled.
func (s *Service) EvaluateAfter(events []models.LogEvent, handled time.Time) models.Decision {
	for i := 0; i+1 < len(events); i++ {
		if events[i].Kind == s.rule.Trigger && events[i+1].Kind == s.rule.Confirm {
			s.logger.Debug().
				Int("trigger_line", events[i].Line).
				Int("confirm_line", events[i+1].Line).
				Dur("gap", events[i+1].Timestamp.Sub(events[i].Timestamp)).
				Dur("max_gap", s.rule.MaxGap).
				Msg("Correlated event pair")
		}
	}

	decision := EvaluateAfter(events, s.rule, handled)
	if decision.IsRestart() {
		s.logger.Warn().
			Str("trigger", string(s.rule.Trigger)).
			Str("confirm", string(s.rule.Confirm)).
			Str("trigger_at", decision.Trigger.Timestamp.Format(time.RFC3339)).
			Dur("gap", decision.Gap).
			Str("line", decision.Confirm.Text).
			Msg("Log incident detected, restart required")
		return decision
	}

	s.logger.Debug().Int("events", len(events)).Msg("No log incident")
	return decision
}
