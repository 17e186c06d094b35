package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dashverify/internal/interfaces"
	"github.com/ternarybob/dashverify/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// HistoryStorage implements the RunHistoryStorage interface for Badger
type HistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewHistoryStorage creates a new HistoryStorage instance
func NewHistoryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunHistoryStorage {
	return &HistoryStorage{
		db:     db,
		logger: logger,
	}
}

// Save inserts or replaces a run record keyed by its ID
func (s *HistoryStorage) Save(ctx context.Context, record *models.RunRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("run record ID is required")
	}

	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}

	s.logger.Debug().
		Str("run_id", record.ID).
		Str("outcome", string(record.Outcome)).
		Msg("Run record saved")
	return nil
}

// List returns the most recent records first
func (s *HistoryStorage) List(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.RunRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list run records: %w", err)
	}

	result := make([]*models.RunRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

// Latest returns the most recent record
func (s *HistoryStorage) Latest(ctx context.Context) (*models.RunRecord, error) {
	records, err := s.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, interfaces.ErrNoRuns
	}
	return records[0], nil
}
