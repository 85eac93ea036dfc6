package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"

	"github.com/cyderes/canvas-notion-sync/internal/apperrors"
	"github.com/cyderes/canvas-notion-sync/internal/config"
	"github.com/cyderes/canvas-notion-sync/internal/models"
)

// Client writes assignment pages into a Notion database
type Client struct {
	baseURL    string
	apiKey     string
	version    string
	databaseID string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a Notion client for the configured database
func NewClient(cfg config.NotionConfig, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		version:    cfg.Version,
		databaseID: cfg.DatabaseID,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "notion").Logger(),
	}
}

// FindPage returns the ID of the first page whose title and course both equal the
// given values exactly, or "" when there is none. A failed query is an error
// wrapping apperrors.ErrLookupFailed, never an empty result.
func (c *Client) FindPage(ctx context.Context, title, course string) (string, error) {
	path := fmt.Sprintf("/v1/databases/%s/query", c.databaseID)

	var resp struct {
		Results []map[string]interface{} `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, path, newPageQuery(title, course), &resp); err != nil {
		var reqErr *apperrors.RequestError
		if errors.As(err, &reqErr) {
			reqErr.Err = apperrors.ErrLookupFailed
			return "", reqErr
		}
		return "", fmt.Errorf("%w: %w", apperrors.ErrLookupFailed, err)
	}

	for _, raw := range resp.Results {
		var page queriedPage
		if err := mapstructure.Decode(raw, &page); err != nil {
			c.logger.Warn().Err(err).Msg("Skipping undecodable query result")
			continue
		}
		if page.matches(title, course) {
			return page.ID, nil
		}
	}
	return "", nil
}

// CreatePage adds a new page under the configured database
func (c *Client) CreatePage(ctx context.Context, props models.PageProperties) error {
	body := createPageRequest{
		Parent:     parent{DatabaseID: c.databaseID},
		Properties: toPageProperties(props),
	}
	if err := c.do(ctx, http.MethodPost, "/v1/pages", body, nil); err != nil {
		return c.writeFailed("create", props, err)
	}
	return nil
}

// UpdatePage replaces the full property set of an existing page
func (c *Client) UpdatePage(ctx context.Context, pageID string, props models.PageProperties) error {
	body := updatePageRequest{Properties: toPageProperties(props)}
	if err := c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, body, nil); err != nil {
		return c.writeFailed("update", props, err)
	}
	return nil
}

func (c *Client) writeFailed(op string, props models.PageProperties, err error) error {
	event := c.logger.Error().Err(err).
		Str("op", op).
		Str("assignment", props.Title).
		Str("course", props.Course)
	var reqErr *apperrors.RequestError
	if errors.As(err, &reqErr) {
		event = event.Int("status", reqErr.StatusCode).Str("body", reqErr.Body)
	}
	event.Msg("Notion write failed")
	return err
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Content-Type", "application/json")

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
			Method:     method,
			URL:        c.baseURL + path,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
