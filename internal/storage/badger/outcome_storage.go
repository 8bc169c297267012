package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// OutcomeStorage implements interfaces.OutcomeStorage for Badger
type OutcomeStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewOutcomeStorage creates a new OutcomeStorage instance
func NewOutcomeStorage(db *BadgerDB, logger arbor.ILogger) interfaces.OutcomeStorage {
	return &OutcomeStorage{
		db:     db,
		logger: logger,
	}
}

// SaveOutcome upserts an outcome, assigning an ID when it has none.
func (s *OutcomeStorage) SaveOutcome(ctx context.Context, outcome *models.ActionOutcome) error {
	if outcome == nil {
		return fmt.Errorf("outcome is nil")
	}
	if outcome.ID == "" {
		outcome.ID = common.NewOutcomeID()
	}
	if outcome.StartedAt.IsZero() {
		outcome.StartedAt = time.Now()
	}

	if err := s.db.Store().Upsert(outcome.ID, outcome); err != nil {
		return fmt.Errorf("failed to save outcome %s: %w", outcome.ID, err)
	}
	return nil
}

func (s *OutcomeStorage) ListOutcomes(ctx context.Context, limit int) ([]models.ActionOutcome, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var outcomes []models.ActionOutcome
	if err := s.db.Store().Find(&outcomes, query); err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	return outcomes, nil
}

// DeleteOutcomesBefore removes outcomes that started before cutoff and
// returns how many were removed.
func (s *OutcomeStorage) DeleteOutcomesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := badgerhold.Where("StartedAt").Lt(cutoff)

	count, err := s.db.Store().Count(&models.ActionOutcome{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired outcomes: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.db.Store().DeleteMatching(&models.ActionOutcome{}, badgerhold.Where("StartedAt").Lt(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to delete expired outcomes: %w", err)
	}

	if err := s.db.CollectGarbage(); err != nil {
		s.logger.Warn().Err(err).Msg("Value log garbage collection failed")
	}

	s.logger.Debug().Int("deleted", int(count)).Str("cutoff", cutoff.Format(time.RFC3339)).Msg("Pruned action outcomes")
	return int(count), nil
}
