package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/tandemdocs/tandem/session"
)

func newTestServer(t *testing.T) *server {
	config := &Config{
		Port:           "0",
		DbFile:         filepath.Join(t.TempDir(), "documents.json"),
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	documents := session.NewDocumentStore(config.DbFile)
	coordinator := session.NewChannelCoordinatorWithDefaults(context.Background(), documents)
	t.Cleanup(coordinator.Close)
	return newServer(config, documents, coordinator)
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	assert.Equal(t, nil, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "running", body["status"])
}

func TestDocumentCrud(t *testing.T) {
	s := newTestServer(t)
	routes := s.routes()

	// create
	w := httptest.NewRecorder()
	routes.ServeHTTP(w, httptest.NewRequest("POST", "/api/documents", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var document session.Document
	assert.Equal(t, nil, json.NewDecoder(w.Body).Decode(&document))
	assert.NotEqual(t, "", document.Id)
	assert.Equal(t, session.DefaultDocumentTitle, document.Title)
	assert.Equal(t, []string{""}, document.Pages)

	// get
	w = httptest.NewRecorder()
	routes.ServeHTTP(w, httptest.NewRequest("GET", "/api/documents/"+document.Id, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// update title and pages
	w = httptest.NewRecorder()
	body := strings.NewReader(`{"title":"Notes","pages":["p1","p2"]}`)
	routes.ServeHTTP(w, httptest.NewRequest("PUT", "/api/documents/"+document.Id, body))
	assert.Equal(t, http.StatusOK, w.Code)
	var updated session.Document
	assert.Equal(t, nil, json.NewDecoder(w.Body).Decode(&updated))
	assert.Equal(t, "Notes", updated.Title)
	assert.Equal(t, []string{"p1", "p2"}, updated.Pages)

	// list
	w = httptest.NewRecorder()
	routes.ServeHTTP(w, httptest.NewRequest("GET", "/api/documents", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var documents []*session.Document
	assert.Equal(t, nil, json.NewDecoder(w.Body).Decode(&documents))
	assert.Equal(t, 1, len(documents))
}

func TestDocumentNotFound(t *testing.T) {
	s := newTestServer(t)
	routes := s.routes()

	w := httptest.NewRecorder()
	routes.ServeHTTP(w, httptest.NewRequest("GET", "/api/documents/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	body := strings.NewReader(`{"title":"x"}`)
	routes.ServeHTTP(w, httptest.NewRequest("PUT", "/api/documents/missing", body))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateDocumentBadBody(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	body := strings.NewReader(`{not json`)
	s.routes().ServeHTTP(w, httptest.NewRequest("PUT", "/api/documents/d1", body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCors(t *testing.T) {
	s := newTestServer(t)
	routes := s.routes()

	// preflight from an allowed origin
	r := httptest.NewRequest("OPTIONS", "/api/documents", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	routes.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	// unknown origins get no CORS headers
	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	routes.ServeHTTP(w, r)
	assert.Equal(t, "", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdmitParticipant(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/d1?user_id=u1&user_name=Ada&color=%23112233", nil)
	participant := admitParticipant(r)
	assert.Equal(t, "u1", participant.UserId)
	assert.Equal(t, "Ada", participant.UserName)
	assert.Equal(t, "#112233", participant.Color)
	assert.Equal(t, session.StatusViewing, participant.Status)

	// id, name and color are generated or defaulted when absent
	r = httptest.NewRequest("GET", "/ws/d1", nil)
	participant = admitParticipant(r)
	assert.NotEqual(t, "", participant.UserId)
	assert.Equal(t, "Anonymous", participant.UserName)
	assert.Equal(t, "#", participant.Color[:1])
}
