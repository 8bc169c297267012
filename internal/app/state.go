package app

import (
	"context"

	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// readOnlyState serves stored state but drops writes. A dry run reads the
// incident marker and log cursor of the live watchdog without advancing them.
type readOnlyState struct {
	interfaces.StateStorage
}

func (readOnlyState) SaveCursor(ctx context.Context, cursor *models.LogCursor) error {
	return nil
}

func (readOnlyState) SaveIncidentMarker(ctx context.Context, marker *models.IncidentMarker) error {
	return nil
}
