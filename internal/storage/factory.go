package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dashverify/internal/common"
	"github.com/ternarybob/dashverify/internal/interfaces"
	"github.com/ternarybob/dashverify/internal/storage/badger"
)

// NewStorageManager opens the run history store described by config
func NewStorageManager(logger arbor.ILogger, config *common.HistoryConfig) (interfaces.StorageManager, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("history path is required")
	}
	return badger.NewManager(logger, config)
}
