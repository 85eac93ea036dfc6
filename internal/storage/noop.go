package storage

import (
	"context"

	"github.com/cyderes/canvas-notion-sync/internal/apperrors"
	"github.com/cyderes/canvas-notion-sync/internal/models"
)

// NoopStorage discards reports; it is the default when no backend is configured
type NoopStorage struct{}

func (NoopStorage) SaveRun(context.Context, models.SyncReport) error { return nil }

func (NoopStorage) GetRuns(context.Context, int) ([]models.SyncReport, error) {
	return []models.SyncReport{}, nil
}

func (NoopStorage) GetRunByID(context.Context, string) (*models.SyncReport, error) {
	return nil, apperrors.ErrRunNotFound
}

func (NoopStorage) GetLatestRun(context.Context) (*models.SyncReport, error) {
	return nil, apperrors.ErrRunNotFound
}

func (NoopStorage) Close() error { return nil }
