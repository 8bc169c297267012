package history

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// Service records corrective action outcomes and prunes old ones.
type Service struct {
	storage   interfaces.OutcomeStorage
	retention time.Duration
	logger    arbor.ILogger
}

// NewService creates a history service. A zero retention keeps every outcome.
func NewService(logger arbor.ILogger, storage interfaces.OutcomeStorage, retention time.Duration) *Service {
	return &Service{storage: storage, retention: retention, logger: logger}
}

// Record persists an outcome. Failures are logged and returned; the caller
// is never blocked on history.
func (s *Service) Record(ctx context.Context, outcome *models.ActionOutcome) error {
	if err := s.storage.SaveOutcome(ctx, outcome); err != nil {
		s.logger.Warn().Err(err).Str("action", string(outcome.Action)).Str("target", outcome.Target).Msg("Failed to record action outcome")
		return err
	}
	return nil
}

// Recent returns up to limit outcomes, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.ActionOutcome, error) {
	outcomes, err := s.storage.ListOutcomes(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load action history: %w", err)
	}
	return outcomes, nil
}

// Prune deletes outcomes older than the retention period relative to now.
func (s *Service) Prune(ctx context.Context, now time.Time) (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	deleted, err := s.storage.DeleteOutcomesBefore(ctx, now.Add(-s.retention))
	if err != nil {
		return 0, fmt.Errorf("failed to prune action history: %w", err)
	}
	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Dur("retention", s.retention).Msg("Pruned action history")
	}
	return deleted, nil
}
