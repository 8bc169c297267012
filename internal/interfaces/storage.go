package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/vigil/internal/models"
)

// OutcomeStorage persists corrective action outcomes.
type OutcomeStorage interface {
	SaveOutcome(ctx context.Context, outcome *models.ActionOutcome) error
	// ListOutcomes returns the newest outcomes first. limit <= 0 means all.
	ListOutcomes(ctx context.Context, limit int) ([]models.ActionOutcome, error)
	DeleteOutcomesBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// StateStorage persists small pieces of watchdog state between runs.
// Getters return nil with no error when nothing has been stored yet.
type StateStorage interface {
	GetCursor(ctx context.Context, path string) (*models.LogCursor, error)
	SaveCursor(ctx context.Context, cursor *models.LogCursor) error
	GetIncidentMarker(ctx context.Context) (*models.IncidentMarker, error)
	SaveIncidentMarker(ctx context.Context, marker *models.IncidentMarker) error
}

// StorageManager owns the database and hands out the typed stores.
type StorageManager interface {
	OutcomeStorage() OutcomeStorage
	StateStorage() StateStorage
	Close() error
}
