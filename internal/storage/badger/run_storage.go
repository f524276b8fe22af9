package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/interfaces"
	"github.com/ternarybob/divtrack/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// RunStorage keeps run reports keyed by run ID
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunStorage creates a new RunStorage instance
func NewRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RunStorage) SaveRun(ctx context.Context, report *models.RunReport) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("run ID is required")
	}
	if err := s.db.Store().Upsert(report.RunID, report); err != nil {
		return fmt.Errorf("failed to save run %s: %w", report.RunID, err)
	}
	return nil
}

func (s *RunStorage) ListRuns(ctx context.Context, limit int) ([]models.RunReport, error) {
	query := badgerhold.Where("RunID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.RunReport
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func (s *RunStorage) PruneRuns(ctx context.Context, keep int) (int, error) {
	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(runs) <= keep {
		return 0, nil
	}

	removed := 0
	for _, run := range runs[keep:] {
		if err := s.db.Store().Delete(run.RunID, &models.RunReport{}); err != nil {
			s.logger.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to delete run")
			continue
		}
		removed++
	}

	s.logger.Debug().Int("removed", removed).Int("kept", keep).Msg("Pruned run history")
	return removed, nil
}
