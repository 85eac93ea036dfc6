package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/cyderes/canvas-notion-sync/internal/config"
	"github.com/cyderes/canvas-notion-sync/internal/models"
)

// Storage keeps an audit trail of sync runs. It never holds assignment state.
type Storage interface {
	SaveRun(ctx context.Context, report models.SyncReport) error
	GetRuns(ctx context.Context, limit int) ([]models.SyncReport, error)
	GetRunByID(ctx context.Context, id string) (*models.SyncReport, error)
	GetLatestRun(ctx context.Context) (*models.SyncReport, error)
	Close() error
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", "none":
		return NoopStorage{}, nil
	case "dynamodb":
		return NewDynamoDBStorage(ctx, cfg)
	case "mongodb":
		return NewMongoDBStorage(ctx, cfg)
	case "postgresql":
		return NewPostgreSQLStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// sortNewestFirst orders reports by start time, newest first, and applies limit when positive
func sortNewestFirst(reports []models.SyncReport, limit int) []models.SyncReport {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].StartedAt.After(reports[j].StartedAt)
	})
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports
}
