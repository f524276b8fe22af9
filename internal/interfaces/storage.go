package interfaces

import (
	"context"

	"github.com/ternarybob/divtrack/internal/models"
)

// RunStorage keeps the history of pipeline runs
type RunStorage interface {
	SaveRun(ctx context.Context, report *models.RunReport) error

	// ListRuns returns the newest runs first; limit <= 0 returns all of them
	ListRuns(ctx context.Context, limit int) ([]models.RunReport, error)

	// PruneRuns deletes everything but the newest keep runs and returns the number removed
	PruneRuns(ctx context.Context, keep int) (int, error)
}

// StorageManager owns the database and hands out the typed stores
type StorageManager interface {
	KeyValueStorage() KeyValueStorage
	RunStorage() RunStorage
	Close() error
}
