// Package notiontest provides an in-memory Notion database served over HTTP for tests.
package notiontest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Page is a stored page with properties in Notion's wire form
type Page struct {
	ID         string
	Properties map[string]interface{}
}

// Title returns the concatenated title text of the page
func (p Page) Title() string { return p.text("Name", "title") }

// Course returns the concatenated course text of the page
func (p Page) Course() string { return p.text("Course", "rich_text") }

// Select returns the name of a select property
func (p Page) Select(prop string) string {
	v, _ := p.Properties[prop].(map[string]interface{})
	sel, _ := v["select"].(map[string]interface{})
	name, _ := sel["name"].(string)
	return name
}

// DueDate returns the start of the "Due Date" property, "" when null
func (p Page) DueDate() string {
	v, _ := p.Properties["Due Date"].(map[string]interface{})
	d, _ := v["date"].(map[string]interface{})
	start, _ := d["start"].(string)
	return start
}

// Points returns the "Points" number
func (p Page) Points() float64 {
	v, _ := p.Properties["Points"].(map[string]interface{})
	n, _ := v["number"].(float64)
	return n
}

func (p Page) text(prop, kind string) string {
	v, _ := p.Properties[prop].(map[string]interface{})
	parts, _ := v[kind].([]interface{})
	var b strings.Builder
	for _, part := range parts {
		m, _ := part.(map[string]interface{})
		text, _ := m["text"].(map[string]interface{})
		content, _ := text["content"].(string)
		b.WriteString(content)
	}
	return b.String()
}

// Server is a fake Notion API holding one database
type Server struct {
	*httptest.Server

	DatabaseID string

	mu        sync.Mutex
	pages     []*Page
	nextID    int
	failWrite map[string]int
	failQuery int
	requests  []string
}

// NewServer starts a fake Notion API for databaseID
func NewServer(databaseID string) *Server {
	s := &Server{DatabaseID: databaseID, failWrite: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/databases/", s.handleQuery)
	mux.HandleFunc("/v1/pages", s.handleCreate)
	mux.HandleFunc("/v1/pages/", s.handleUpdate)
	s.Server = httptest.NewServer(mux)
	return s
}

// FailWritesFor makes creates and updates of the titled page answer with status
func (s *Server) FailWritesFor(title string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrite[title] = status
}

// FailQueries makes every database query answer with status; 0 restores normal behavior
func (s *Server) FailQueries(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failQuery = status
}

// Pages returns a snapshot of the stored pages in creation order
func (s *Server) Pages() []Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Page, 0, len(s.pages))
	for _, p := range s.pages {
		out = append(out, *p)
	}
	return out
}

// Requests returns "METHOD path" for every request received
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) record(r *http.Request) {
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(r)

	if r.Method != http.MethodPost || r.URL.Path != "/v1/databases/"+s.DatabaseID+"/query" {
		writeError(w, http.StatusNotFound, "object_not_found")
		return
	}
	if s.failQuery != 0 {
		writeError(w, s.failQuery, "service_unavailable")
		return
	}

	var body struct {
		Filter struct {
			And []struct {
				Property string `json:"property"`
				Title    *struct {
					Equals string `json:"equals"`
				} `json:"title"`
				RichText *struct {
					Equals string `json:"equals"`
				} `json:"rich_text"`
			} `json:"and"`
		} `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error")
		return
	}

	results := []map[string]interface{}{}
	for _, p := range s.pages {
		ok := true
		for _, f := range body.Filter.And {
			switch {
			case f.Title != nil:
				ok = ok && p.text(f.Property, "title") == f.Title.Equals
			case f.RichText != nil:
				ok = ok && p.text(f.Property, "rich_text") == f.RichText.Equals
			}
		}
		if ok {
			results = append(results, s.render(p))
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"object": "list", "results": results, "has_more": false})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(r)

	var body struct {
		Parent struct {
			DatabaseID string `json:"database_id"`
		} `json:"parent"`
		Properties map[string]interface{} `json:"properties"`
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request")
		return
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Parent.DatabaseID != s.DatabaseID {
		writeError(w, http.StatusBadRequest, "validation_error")
		return
	}

	page := &Page{Properties: body.Properties}
	if status, ok := s.failWrite[page.Title()]; ok {
		writeError(w, status, "internal_server_error")
		return
	}
	s.nextID++
	page.ID = fmt.Sprintf("page-%d", s.nextID)
	s.pages = append(s.pages, page)
	writeJSON(w, http.StatusOK, s.render(page))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(r)

	if r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/pages/")
	var page *Page
	for _, p := range s.pages {
		if p.ID == id {
			page = p
		}
	}
	if page == nil {
		writeError(w, http.StatusNotFound, "object_not_found")
		return
	}

	var body struct {
		Properties map[string]interface{} `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error")
		return
	}
	if status, ok := s.failWrite[page.Title()]; ok {
		writeError(w, status, "internal_server_error")
		return
	}
	for k, v := range body.Properties {
		page.Properties[k] = v
	}
	writeJSON(w, http.StatusOK, s.render(page))
}

func (s *Server) render(p *Page) map[string]interface{} {
	return map[string]interface{}{
		"object":     "page",
		"id":         p.ID,
		"archived":   false,
		"properties": p.Properties,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]interface{}{"object": "error", "status": status, "code": code})
}
