package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyderes/canvas-notion-sync/internal/apperrors"
	"github.com/cyderes/canvas-notion-sync/internal/config"
	"github.com/cyderes/canvas-notion-sync/internal/models"
	"github.com/cyderes/canvas-notion-sync/internal/notion/notiontest"
)

func testConfig(baseURL string) config.NotionConfig {
	return config.NotionConfig{
		APIKey:     "secret_notion",
		DatabaseID: "db-1",
		BaseURL:    baseURL,
		Version:    "2022-06-28",
	}
}

func hw1() models.PageProperties {
	return models.PageProperties{
		Title:            "HW1",
		Course:           "CS101",
		DueDate:          "2025-03-01",
		Points:           10,
		Status:           models.CoarseNotStarted,
		SubmissionStatus: models.StatusNotSubmitted,
		URL:              "https://canvas.test/courses/1/assignments/10",
	}
}

func TestClient_CreatePage_RequestShape(t *testing.T) {
	var gotMethod, gotPath string
	var gotHeaders http.Header
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotHeaders = r.Method, r.URL.Path, r.Header
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"object":"page","id":"p1"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), zerolog.Nop())
	err := client.CreatePage(context.Background(), hw1())

	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/v1/pages", gotPath)
	assert.Equal(t, "Bearer secret_notion", gotHeaders.Get("Authorization"))
	assert.Equal(t, "2022-06-28", gotHeaders.Get("Notion-Version"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))

	want := `{
		"parent": {"database_id": "db-1"},
		"properties": {
			"Name": {"title": [{"text": {"content": "HW1"}}]},
			"Course": {"rich_text": [{"text": {"content": "CS101"}}]},
			"Due Date": {"date": {"start": "2025-03-01"}},
			"Points": {"number": 10},
			"Status": {"select": {"name": "Not started"}},
			"Submission Status": {"select": {"name": "Not Submitted"}},
			"Canvas URL": {"url": "https://canvas.test/courses/1/assignments/10"}
		}
	}`
	got, _ := json.Marshal(gotBody)
	assert.JSONEq(t, want, string(got))
}

func TestClient_CreatePage_NullDateAndURL(t *testing.T) {
	var raw []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	props := hw1()
	props.DueDate = ""
	props.URL = ""
	client := NewClient(testConfig(server.URL), server.Client(), zerolog.Nop())

	require.NoError(t, client.CreatePage(context.Background(), props))
	assert.Contains(t, string(raw), `"Due Date":{"date":null}`)
	assert.Contains(t, string(raw), `"Canvas URL":{"url":null}`)
}

func TestClient_CreatePage_FailureLogsStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"validation_error","message":"Submission Status is not a property that exists."}`))
	}))
	defer server.Close()

	var logs bytes.Buffer
	client := NewClient(testConfig(server.URL), server.Client(), zerolog.New(&logs))
	err := client.CreatePage(context.Background(), hw1())

	require.Error(t, err)
	var reqErr *apperrors.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	assert.Contains(t, logs.String(), `"status":400`)
	assert.Contains(t, logs.String(), "validation_error")
	assert.Contains(t, logs.String(), `"level":"error"`)
}

func TestClient_UpdatePage(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	props := hw1()
	props.SubmissionStatus = models.StatusGraded
	props.Status = models.CoarseDone
	client := NewClient(testConfig(server.URL), server.Client(), zerolog.Nop())

	require.NoError(t, client.UpdatePage(context.Background(), "page-9", props))
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/v1/pages/page-9", gotPath)
	assert.NotContains(t, gotBody, "parent")
	properties := gotBody["properties"].(map[string]interface{})
	assert.Len(t, properties, 7)
}

func TestClient_UpdatePage_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), zerolog.Nop())
	err := client.UpdatePage(context.Background(), "page-9", hw1())

	assert.Equal(t, http.StatusConflict, apperrors.StatusCode(err))
}

func TestClient_FindPage_QueryShape(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"object":"list","results":[]}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), zerolog.Nop())
	id, err := client.FindPage(context.Background(), "HW1", "CS101")

	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Equal(t, "/v1/databases/db-1/query", gotPath)
	got, _ := json.Marshal(gotBody)
	assert.JSONEq(t, `{"filter":{"and":[
		{"property":"Name","title":{"equals":"HW1"}},
		{"property":"Course","rich_text":{"equals":"CS101"}}
	]}}`, string(got))
}

func TestClient_FindPage_ExactMatchOnly(t *testing.T) {
	// a lenient server that returns near-misses; only the exact match may be picked
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[
			{"id":"lower","properties":{"Name":{"title":[{"plain_text":"hw1"}]},"Course":{"rich_text":[{"plain_text":"CS101"}]}}},
			{"id":"other-course","properties":{"Name":{"title":[{"plain_text":"HW1"}]},"Course":{"rich_text":[{"plain_text":"CS102"}]}}},
			{"id":"archived","archived":true,"properties":{"Name":{"title":[{"plain_text":"HW1"}]},"Course":{"rich_text":[{"plain_text":"CS101"}]}}},
			{"id":"split","properties":{"Name":{"title":[{"plain_text":"HW"},{"plain_text":"1"}]},"Course":{"rich_text":[{"plain_text":"CS101"}]},"Points":{"number":10}}},
			{"id":"later","properties":{"Name":{"title":[{"plain_text":"HW1"}]},"Course":{"rich_text":[{"plain_text":"CS101"}]}}}
		]}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), zerolog.Nop())
	id, err := client.FindPage(context.Background(), "HW1", "CS101")

	require.NoError(t, err)
	assert.Equal(t, "split", id)
}

func TestClient_FindPage_FailureIsNotNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"code":"service_unavailable"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), zerolog.Nop())
	id, err := client.FindPage(context.Background(), "HW1", "CS101")

	assert.Empty(t, id)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrLookupFailed)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.StatusCode(err))
}

func TestClient_RoundTripAgainstFakeDatabase(t *testing.T) {
	fake := notiontest.NewServer("db-1")
	defer fake.Close()
	client := NewClient(testConfig(fake.URL), fake.Client(), zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, client.CreatePage(ctx, hw1()))

	id, err := client.FindPage(ctx, "HW1", "CS101")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	graded := hw1()
	graded.SubmissionStatus = models.StatusGraded
	graded.Status = models.CoarseDone
	require.NoError(t, client.UpdatePage(ctx, id, graded))

	pages := fake.Pages()
	require.Len(t, pages, 1)
	assert.Equal(t, "Graded", pages[0].Select(PropSubmissionStatus))
	assert.Equal(t, "Done", pages[0].Select(PropStatus))
	assert.Equal(t, "2025-03-01", pages[0].DueDate())

	missing, err := client.FindPage(ctx, "HW1", "cs101")
	require.NoError(t, err)
	assert.Empty(t, missing)
}
