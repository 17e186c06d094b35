package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/dashverify/internal/models"
)

// ErrNoRuns is returned when the run history holds no records
var ErrNoRuns = errors.New("no runs recorded")

// RunHistoryStorage persists one record per verification run
type RunHistoryStorage interface {
	// Save inserts or replaces the record with the same ID
	Save(ctx context.Context, record *models.RunRecord) error

	// List returns up to limit records, newest first. A limit <= 0 returns all records
	List(ctx context.Context, limit int) ([]*models.RunRecord, error)

	// Latest returns the most recent record, or ErrNoRuns
	Latest(ctx context.Context) (*models.RunRecord, error)
}

// StorageManager owns the database connection behind the storage interfaces
type StorageManager interface {
	RunHistoryStorage() RunHistoryStorage
	Close() error
}
