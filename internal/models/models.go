package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Term is the academic session a course belongs to
type Term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Enrollment is the current user's role in a course
type Enrollment struct {
	Type            string `json:"type"`
	EnrollmentState string `json:"enrollment_state"`
}

// Course represents a Canvas course as returned by GET /courses?include[]=term
type Course struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Term        *Term        `json:"term"`
	Enrollments []Enrollment `json:"enrollments"`
}

// Assignment represents a Canvas assignment
type Assignment struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	DueAt          *string `json:"due_at"`
	PointsPossible Points  `json:"points_possible"`
	HTMLURL        string  `json:"html_url"`
}

// Points is a score that decodes to 0 whenever the payload is absent, null or not a number.
type Points float64

func (p *Points) UnmarshalJSON(data []byte) error {
	*p = 0

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		p.set(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			p.set(n)
		}
	}
	return nil
}

func (p *Points) set(n float64) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return
	}
	*p = Points(n)
}

// Submission is the current user's submission for one assignment
type Submission struct {
	SubmittedAt   *string `json:"submitted_at"`
	GradedAt      *string `json:"graded_at"`
	WorkflowState string  `json:"workflow_state"`
}

// SubmissionStatus is the fine-grained state written to the destination
type SubmissionStatus string

const (
	StatusNotSubmitted SubmissionStatus = "Not Submitted"
	StatusSubmitted    SubmissionStatus = "Submitted"
	StatusGraded       SubmissionStatus = "Graded"
	StatusUnknown      SubmissionStatus = "Unknown"
)

// Status derives the submission status: graded beats submitted beats nothing
func (s Submission) Status() SubmissionStatus {
	switch {
	case present(s.GradedAt):
		return StatusGraded
	case present(s.SubmittedAt):
		return StatusSubmitted
	default:
		return StatusNotSubmitted
	}
}

func present(ts *string) bool {
	return ts != nil && strings.TrimSpace(*ts) != ""
}

// CoarseStatus is the binary progress state of a destination page
type CoarseStatus string

const (
	CoarseDone       CoarseStatus = "Done"
	CoarseNotStarted CoarseStatus = "Not started"
)

// Coarse collapses a submission status into Done / Not started
func (s SubmissionStatus) Coarse() CoarseStatus {
	if s == StatusGraded || s == StatusSubmitted {
		return CoarseDone
	}
	return CoarseNotStarted
}

// PageProperties is the destination record for one assignment, keyed by (Title, Course)
type PageProperties struct {
	Title            string
	Course           string
	DueDate          string // YYYY-MM-DD, empty when absent
	Points           float64
	Status           CoarseStatus
	SubmissionStatus SubmissionStatus
	URL              string
}

// Run states of a SyncReport
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunFailure = "failure"
)

// AssignmentFailure records one assignment skipped during a run
type AssignmentFailure struct {
	Course     string `json:"course" bson:"course" dynamodbav:"course"`
	Assignment string `json:"assignment" bson:"assignment" dynamodbav:"assignment"`
	Error      string `json:"error" bson:"error" dynamodbav:"error"`
}

// SyncReport tracks the outcome of one sync run
type SyncReport struct {
	ID               string              `json:"id" bson:"_id" dynamodbav:"id"`
	StartedAt        time.Time           `json:"started_at" bson:"started_at" dynamodbav:"started_at"`
	FinishedAt       time.Time           `json:"finished_at" bson:"finished_at" dynamodbav:"finished_at"`
	Status           string              `json:"status" bson:"status" dynamodbav:"status"`
	ErrorMessage     string              `json:"error_message,omitempty" bson:"error_message,omitempty" dynamodbav:"error_message,omitempty"`
	DryRun           bool                `json:"dry_run" bson:"dry_run" dynamodbav:"dry_run"`
	CoursesProcessed int                 `json:"courses_processed" bson:"courses_processed" dynamodbav:"courses_processed"`
	AssignmentsSeen  int                 `json:"assignments_seen" bson:"assignments_seen" dynamodbav:"assignments_seen"`
	Created          int                 `json:"created" bson:"created" dynamodbav:"created"`
	Updated          int                 `json:"updated" bson:"updated" dynamodbav:"updated"`
	Failed           int                 `json:"failed" bson:"failed" dynamodbav:"failed"`
	Failures         []AssignmentFailure `json:"failures,omitempty" bson:"failures,omitempty" dynamodbav:"failures,omitempty"`
}

// NewSyncReport starts a report in the running state
func NewSyncReport(startedAt time.Time, dryRun bool) *SyncReport {
	return &SyncReport{
		ID:        uuid.NewString(),
		StartedAt: startedAt,
		Status:    RunRunning,
		DryRun:    dryRun,
	}
}

// RecordFailure counts a skipped assignment
func (r *SyncReport) RecordFailure(course, assignment string, err error) {
	r.Failed++
	r.Failures = append(r.Failures, AssignmentFailure{
		Course:     course,
		Assignment: assignment,
		Error:      err.Error(),
	})
}

// Finish closes the report; a non-nil err marks the run as failed
func (r *SyncReport) Finish(finishedAt time.Time, err error) {
	r.FinishedAt = finishedAt
	if err != nil {
		r.Status = RunFailure
		r.ErrorMessage = err.Error()
		return
	}
	r.Status = RunSuccess
}
