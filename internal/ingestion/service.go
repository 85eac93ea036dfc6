package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cyderes/canvas-notion-sync/internal/apperrors"
	"github.com/cyderes/canvas-notion-sync/internal/models"
	"github.com/cyderes/canvas-notion-sync/internal/storage"
)

// Source is the read side of the sync
type Source interface {
	ListActiveCourses(ctx context.Context) ([]models.Course, error)
	ListAssignments(ctx context.Context, courseID int64) ([]models.Assignment, error)
	GetSubmissionStatus(ctx context.Context, courseID, assignmentID int64) models.SubmissionStatus
}

// Destination is the write side of the sync
type Destination interface {
	FindPage(ctx context.Context, title, course string) (string, error)
	CreatePage(ctx context.Context, props models.PageProperties) error
	UpdatePage(ctx context.Context, pageID string, props models.PageProperties) error
}

// saveTimeout bounds the report write once the run context may already be cancelled
const saveTimeout = 10 * time.Second

// Options tune a Service
type Options struct {
	// DryRun performs lookups but skips every create and update
	DryRun bool
}

// Service synchronizes Canvas assignments into Notion pages
type Service struct {
	source      Source
	destination Destination
	storage     storage.Storage
	logger      zerolog.Logger
	opts        Options
	now         func() time.Time
}

// NewService creates a new sync service
func NewService(source Source, destination Destination, store storage.Storage, logger zerolog.Logger, opts Options) *Service {
	return &Service{
		source:      source,
		destination: destination,
		storage:     store,
		logger:      logger,
		opts:        opts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
)

// Sync runs one full pass. Listing failures abort the run and are returned;
// failures on a single assignment are logged, recorded in the report and skipped.
// The report is returned in both cases and handed to run-report storage.
func (s *Service) Sync(ctx context.Context) (*models.SyncReport, error) {
	report := models.NewSyncReport(s.now(), s.opts.DryRun)
	log := s.logger.With().Str("run_id", report.ID).Logger()
	log.Info().Bool("dry_run", s.opts.DryRun).Msg("Starting sync")

	err := s.syncCourses(ctx, log, report)
	report.Finish(s.now(), err)

	// an interrupted run still gets its report stored
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if storeErr := s.storage.SaveRun(saveCtx, *report); storeErr != nil {
		log.Warn().Err(storeErr).Msg("Failed to store sync report")
	}

	if err != nil {
		log.Error().Err(err).Int("status", apperrors.StatusCode(err)).Msg("Sync aborted")
		return report, err
	}

	log.Info().
		Int("courses", report.CoursesProcessed).
		Int("assignments", report.AssignmentsSeen).
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("failed", report.Failed).
		Msg("Sync complete")
	return report, nil
}

func (s *Service) syncCourses(ctx context.Context, log zerolog.Logger, report *models.SyncReport) error {
	courses, err := s.source.ListActiveCourses(ctx)
	if err != nil {
		return fmt.Errorf("failed to list courses: %w", err)
	}
	log.Info().Int("count", len(courses)).Msg("Found active courses")

	for _, course := range courses {
		courseLog := log.With().Int64("course_id", course.ID).Str("course", course.Name).Logger()
		courseLog.Info().Msg("Processing course")

		assignments, err := s.source.ListAssignments(ctx, course.ID)
		if err != nil {
			return fmt.Errorf("failed to list assignments for course %q: %w", course.Name, err)
		}
		report.CoursesProcessed++

		for _, assignment := range assignments {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("sync interrupted: %w", err)
			}
			report.AssignmentsSeen++
			result, err := s.syncAssignment(ctx, courseLog, course, assignment)
			if err != nil {
				courseLog.Error().Err(err).
					Str("assignment", assignment.Name).
					Int("status", apperrors.StatusCode(err)).
					Msg("Skipping assignment")
				report.RecordFailure(course.Name, assignment.Name, err)
				continue
			}
			switch result {
			case outcomeCreated:
				report.Created++
			case outcomeUpdated:
				report.Updated++
			}
		}
	}
	return nil
}

func (s *Service) syncAssignment(ctx context.Context, log zerolog.Logger, course models.Course, assignment models.Assignment) (outcome, error) {
	status := s.source.GetSubmissionStatus(ctx, course.ID, assignment.ID)
	props := MapAssignment(log, assignment, course.Name, status)

	pageID, err := s.destination.FindPage(ctx, assignment.Name, course.Name)
	if err != nil {
		return 0, fmt.Errorf("failed to look up page: %w", err)
	}

	if pageID != "" {
		if !s.opts.DryRun {
			if err := s.destination.UpdatePage(ctx, pageID, props); err != nil {
				return 0, fmt.Errorf("failed to update page %s: %w", pageID, err)
			}
		}
		log.Info().
			Str("assignment", assignment.Name).
			Str("submission_status", string(status)).
			Str("page_id", pageID).
			Bool("dry_run", s.opts.DryRun).
			Msg("Updated Notion page")
		return outcomeUpdated, nil
	}

	if !s.opts.DryRun {
		if err := s.destination.CreatePage(ctx, props); err != nil {
			return 0, fmt.Errorf("failed to create page: %w", err)
		}
	}
	log.Info().
		Str("assignment", assignment.Name).
		Str("submission_status", string(status)).
		Bool("dry_run", s.opts.DryRun).
		Msg("Created Notion page")
	return outcomeCreated, nil
}
