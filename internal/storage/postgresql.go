package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/cyderes/canvas-notion-sync/internal/apperrors"
	"github.com/cyderes/canvas-notion-sync/internal/config"
	"github.com/cyderes/canvas-notion-sync/internal/models"
)

var runColumns = []string{
	"id", "started_at", "finished_at", "status", "error_message", "dry_run",
	"courses_processed", "assignments_seen", "created", "updated", "failed", "failures",
}

// PostgreSQLStorage implements Storage interface using PostgreSQL
type PostgreSQLStorage struct {
	db    *sql.DB
	table string
	sb    squirrel.StatementBuilderType
}

// NewPostgreSQLStorage opens the database and creates the runs table if needed
func NewPostgreSQLStorage(ctx context.Context, cfg config.StorageConfig) (*PostgreSQLStorage, error) {
	if cfg.PostgresURI == "" {
		return nil, fmt.Errorf("%w: POSTGRES_URI", apperrors.ErrMissingConfig)
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	storage := newPostgreSQLStorage(db, cfg.TableName)
	if err := storage.ensureTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure table exists: %w", err)
	}
	return storage, nil
}

func newPostgreSQLStorage(db *sql.DB, table string) *PostgreSQLStorage {
	return &PostgreSQLStorage{
		db:    db,
		table: table,
		sb:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (p *PostgreSQLStorage) ensureTable(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id                TEXT PRIMARY KEY,
		started_at        TIMESTAMPTZ NOT NULL,
		finished_at       TIMESTAMPTZ,
		status            TEXT NOT NULL,
		error_message     TEXT NOT NULL DEFAULT '',
		dry_run           BOOLEAN NOT NULL DEFAULT FALSE,
		courses_processed INTEGER NOT NULL DEFAULT 0,
		assignments_seen  INTEGER NOT NULL DEFAULT 0,
		created           INTEGER NOT NULL DEFAULT 0,
		updated           INTEGER NOT NULL DEFAULT 0,
		failed            INTEGER NOT NULL DEFAULT 0,
		failures          JSONB NOT NULL DEFAULT '[]'
	)`, p.table))
	return err
}

func (p *PostgreSQLStorage) saveRunQuery(report models.SyncReport) (string, []interface{}, error) {
	failures := report.Failures
	if failures == nil {
		failures = []models.AssignmentFailure{}
	}
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal failures: %w", err)
	}

	return p.sb.Insert(p.table).
		Columns(runColumns...).
		Values(
			report.ID, report.StartedAt, report.FinishedAt, report.Status, report.ErrorMessage, report.DryRun,
			report.CoursesProcessed, report.AssignmentsSeen, report.Created, report.Updated, report.Failed,
			string(failuresJSON),
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			courses_processed = EXCLUDED.courses_processed,
			assignments_seen = EXCLUDED.assignments_seen,
			created = EXCLUDED.created,
			updated = EXCLUDED.updated,
			failed = EXCLUDED.failed,
			failures = EXCLUDED.failures`).
		ToSql()
}

// SaveRun upserts a run report by ID
func (p *PostgreSQLStorage) SaveRun(ctx context.Context, report models.SyncReport) error {
	query, args, err := p.saveRunQuery(report)
	if err != nil {
		return fmt.Errorf("failed to build save run query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to store run %s: %w", report.ID, err)
	}
	return nil
}

func (p *PostgreSQLStorage) selectRuns() squirrel.SelectBuilder {
	return p.sb.Select(runColumns...).From(p.table)
}

// GetRuns returns the newest runs first
func (p *PostgreSQLStorage) GetRuns(ctx context.Context, limit int) ([]models.SyncReport, error) {
	builder := p.selectRuns().OrderBy("started_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build runs query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.SyncReport{}
	for rows.Next() {
		report, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// GetRunByID retrieves a specific run
func (p *PostgreSQLStorage) GetRunByID(ctx context.Context, id string) (*models.SyncReport, error) {
	query, args, err := p.selectRuns().Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build run query: %w", err)
	}
	return p.getOne(ctx, query, args)
}

// GetLatestRun returns the most recently started run
func (p *PostgreSQLStorage) GetLatestRun(ctx context.Context) (*models.SyncReport, error) {
	query, args, err := p.selectRuns().OrderBy("started_at DESC").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build latest run query: %w", err)
	}
	return p.getOne(ctx, query, args)
}

func (p *PostgreSQLStorage) getOne(ctx context.Context, query string, args []interface{}) (*models.SyncReport, error) {
	report, err := scanRun(p.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrRunNotFound
	}
	return report, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.SyncReport, error) {
	var report models.SyncReport
	var finishedAt sql.NullTime
	var failures []byte
	err := row.Scan(
		&report.ID, &report.StartedAt, &finishedAt, &report.Status, &report.ErrorMessage, &report.DryRun,
		&report.CoursesProcessed, &report.AssignmentsSeen, &report.Created, &report.Updated, &report.Failed,
		&failures,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	report.FinishedAt = finishedAt.Time
	if len(failures) > 0 {
		if err := json.Unmarshal(failures, &report.Failures); err != nil {
			return nil, fmt.Errorf("failed to unmarshal failures: %w", err)
		}
	}
	return &report, nil
}

// Close closes the database handle
func (p *PostgreSQLStorage) Close() error {
	return p.db.Close()
}
