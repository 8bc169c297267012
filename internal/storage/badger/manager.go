package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	outcome interfaces.OutcomeStorage
	state   interfaces.StateStorage
	logger  arbor.ILogger
}

// NewManager opens the database and builds the typed stores on top of it.
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		outcome: NewOutcomeStorage(db, logger),
		state:   NewStateStorage(db, logger),
		logger:  logger,
	}

	logger.Debug().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// OutcomeStorage returns the action outcome store
func (m *Manager) OutcomeStorage() interfaces.OutcomeStorage {
	return m.outcome
}

// StateStorage returns the watchdog state store
func (m *Manager) StateStorage() interfaces.StateStorage {
	return m.state
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}
