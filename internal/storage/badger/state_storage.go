package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

const incidentMarkerKey = "incident_marker"

// StateStorage implements interfaces.StateStorage for Badger
type StateStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewStateStorage creates a new StateStorage instance
func NewStateStorage(db *BadgerDB, logger arbor.ILogger) interfaces.StateStorage {
	return &StateStorage{
		db:     db,
		logger: logger,
	}
}

func cursorKey(path string) string {
	return "cursor:" + path
}

func (s *StateStorage) GetCursor(ctx context.Context, path string) (*models.LogCursor, error) {
	var cursor models.LogCursor
	err := s.db.Store().Get(cursorKey(path), &cursor)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor for %s: %w", path, err)
	}
	return &cursor, nil
}

func (s *StateStorage) SaveCursor(ctx context.Context, cursor *models.LogCursor) error {
	if cursor == nil || cursor.Path == "" {
		return fmt.Errorf("cursor path is required")
	}
	if cursor.UpdatedAt.IsZero() {
		cursor.UpdatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(cursorKey(cursor.Path), cursor); err != nil {
		return fmt.Errorf("failed to save cursor for %s: %w", cursor.Path, err)
	}
	return nil
}

func (s *StateStorage) GetIncidentMarker(ctx context.Context) (*models.IncidentMarker, error) {
	var marker models.IncidentMarker
	err := s.db.Store().Get(incidentMarkerKey, &marker)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident marker: %w", err)
	}
	return &marker, nil
}

func (s *StateStorage) SaveIncidentMarker(ctx context.Context, marker *models.IncidentMarker) error {
	if marker == nil {
		return fmt.Errorf("incident marker is nil")
	}
	if err := s.db.Store().Upsert(incidentMarkerKey, marker); err != nil {
		return fmt.Errorf("failed to save incident marker: %w", err)
	}
	s.logger.Debug().Str("trigger_at", marker.TriggerAt.Format(time.RFC3339)).Msg("Incident marker saved")
	return nil
}
