package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/common"
	"github.com/ternarybob/divtrack/internal/interfaces"
)

// Manager implements interfaces.StorageManager for Badger
type Manager struct {
	db     *BadgerDB
	kv     interfaces.KeyValueStorage
	runs   interfaces.RunStorage
	logger arbor.ILogger
}

// NewManager opens the database and builds the typed stores on top of it
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:     db,
		kv:     NewKVStorage(db, logger),
		runs:   NewRunStorage(db, logger),
		logger: logger,
	}, nil
}

func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

func (m *Manager) RunStorage() interfaces.RunStorage {
	return m.runs
}

// Close closes the underlying database
func (m *Manager) Close() error {
	return m.db.Close()
}
