package ingestion

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cyderes/canvas-notion-sync/internal/models"
)

const (
	canvasTimestamp = "2006-01-02T15:04:05Z"
	bareTimestamp   = "2006-01-02T15:04:05"
	calendarDate    = "2006-01-02"
)

// MapAssignment converts a Canvas assignment into destination page properties.
// It never fails; an unparsable due date is logged and left empty.
func MapAssignment(logger zerolog.Logger, a models.Assignment, courseName string, status models.SubmissionStatus) models.PageProperties {
	props := models.PageProperties{
		Title:            a.Name,
		Course:           courseName,
		Points:           float64(a.PointsPossible),
		Status:           status.Coarse(),
		SubmissionStatus: status,
		URL:              a.HTMLURL,
	}

	if a.DueAt != nil && *a.DueAt != "" {
		if due, ok := parseDueDate(*a.DueAt); ok {
			props.DueDate = due
		} else {
			logger.Warn().
				Str("assignment", a.Name).
				Str("course", courseName).
				Str("due_at", *a.DueAt).
				Msg("Could not parse due date, leaving it empty")
		}
	}

	return props
}

// parseDueDate returns the calendar date of a Canvas timestamp. The strict UTC form is
// tried first, then the part before any fractional seconds without a zone suffix.
func parseDueDate(raw string) (string, bool) {
	if t, err := time.Parse(canvasTimestamp, raw); err == nil {
		return t.Format(calendarDate), true
	}

	trimmed := raw
	if i := strings.Index(raw, "."); i >= 0 {
		trimmed = raw[:i]
	}
	if t, err := time.Parse(bareTimestamp, trimmed); err == nil {
		return t.Format(calendarDate), true
	}
	return "", false
}
