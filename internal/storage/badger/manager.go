package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dashverify/internal/common"
	"github.com/ternarybob/dashverify/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	history interfaces.RunHistoryStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.HistoryConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		history: NewHistoryStorage(db, logger),
		logger:  logger,
	}

	logger.Debug().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// RunHistoryStorage returns the run history storage interface
func (m *Manager) RunHistoryStorage() interfaces.RunHistoryStorage {
	return m.history
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}
