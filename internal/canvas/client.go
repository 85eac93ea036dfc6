package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cyderes/canvas-notion-sync/internal/apperrors"
	"github.com/cyderes/canvas-notion-sync/internal/config"
	"github.com/cyderes/canvas-notion-sync/internal/models"
)

const studentEnrollment = "student"

// Client reads courses, assignments and submissions from the Canvas REST API
type Client struct {
	baseURL    string
	apiKey     string
	filter     config.CanvasConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a Canvas client rooted at baseURL (e.g. https://school.instructure.com/api/v1)
func NewClient(baseURL string, cfg config.CanvasConfig, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		filter:     cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "canvas").Logger(),
	}
}

// ListActiveCourses returns the current-term student courses in source order
func (c *Client) ListActiveCourses(ctx context.Context) ([]models.Course, error) {
	query := url.Values{}
	query.Set("enrollment_state", "active")
	query.Set("include", "term")
	query.Set("enrollment_type", studentEnrollment)

	var courses []models.Course
	if err := c.get(ctx, "/courses", query, &courses); err != nil {
		return nil, err
	}

	current := make([]models.Course, 0, len(courses))
	for _, course := range courses {
		if c.isCurrent(course) {
			current = append(current, course)
			continue
		}
		c.logger.Debug().Int64("course_id", course.ID).Str("course", course.Name).Msg("Skipping course outside the current term")
	}
	return current, nil
}

// isCurrent applies the term tokens, the exclusion prefix and the enrollment role
func (c *Client) isCurrent(course models.Course) bool {
	if course.Term == nil {
		return false
	}
	if !strings.Contains(course.Term.Name, c.filter.TermYear) || !strings.Contains(course.Term.Name, c.filter.TermSession) {
		return false
	}
	if c.filter.ExcludePrefix != "" && strings.HasPrefix(course.Name, c.filter.ExcludePrefix) {
		return false
	}
	if len(course.Enrollments) == 0 {
		return true
	}
	for _, e := range course.Enrollments {
		if e.Type == studentEnrollment {
			return true
		}
	}
	return false
}

// ListAssignments returns a course's assignments in the order Canvas returns them
func (c *Client) ListAssignments(ctx context.Context, courseID int64) ([]models.Assignment, error) {
	var assignments []models.Assignment
	path := fmt.Sprintf("/courses/%d/assignments", courseID)
	if err := c.get(ctx, path, nil, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

// GetSubmissionStatus never fails: any problem fetching the submission yields StatusUnknown
func (c *Client) GetSubmissionStatus(ctx context.Context, courseID, assignmentID int64) models.SubmissionStatus {
	var submission models.Submission
	path := fmt.Sprintf("/courses/%d/assignments/%d/submissions/self", courseID, assignmentID)
	if err := c.get(ctx, path, nil, &submission); err != nil {
		c.logger.Debug().Err(err).
			Int64("course_id", courseID).
			Int64("assignment_id", assignmentID).
			Msg("Submission lookup failed, status unknown")
		return models.StatusUnknown
	}
	return submission.Status()
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apperrors.RequestError{
			Method:     http.MethodGet,
			URL:        c.baseURL + path,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
