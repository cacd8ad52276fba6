package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/meridian-ehs/incidentctl/internal/config"
	"github.com/meridian-ehs/incidentctl/internal/model"
	"github.com/meridian-ehs/incidentctl/internal/rules"
	"github.com/meridian-ehs/incidentctl/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()

	cfg = &config.Config{Server: config.ServerConfig{AllowedOrigins: []string{"*"}}}

	engine, err := rules.NewEngine(nil)
	require.NoError(t, err)

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "incidents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	srv := httptest.NewServer(newRouter(engine, st))
	t.Cleanup(srv.Close)
	return srv, st
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

const fatalIncidentJSON = `{
	"company": "Acme Chemicals",
	"incident_date": "2026-03-14T00:00:00Z",
	"deaths": 1,
	"homes_damaged": "none"
}`

func TestServeHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeCreateIncident(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/incidents", fatalIncidentJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var inc model.Incident
	decodeJSON(t, resp, &inc)
	assert.NotEmpty(t, inc.ID)
	require.NotNil(t, inc.Latest)
	assert.Equal(t, "catastrophic", inc.Latest.TierLabel)
	assert.True(t, inc.Latest.ReportRequired)
	assert.Equal(t, "human_harm", inc.Latest.Criterion)
}

func TestServeCreateIncidentValidationError(t *testing.T) {
	srv, st := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/incidents", `{
		"company": "Acme Chemicals",
		"incident_date": "2026-03-14T00:00:00Z",
		"deaths": -1
	}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body map[string]string
	decodeJSON(t, resp, &body)
	assert.Equal(t, "deaths", body["field"])
	assert.Contains(t, body["constraint"], ">= 0")

	// Nothing may be persisted for a rejected record.
	incidents, err := st.ListIncidents(context.Background(), store.IncidentFilter{})
	require.NoError(t, err)
	assert.Empty(t, incidents)
}

func TestServeCreateIncidentBadBody(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/incidents", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeGetIncident(t *testing.T) {
	srv, _ := newTestServer(t)

	created := postJSON(t, srv.URL+"/api/incidents", fatalIncidentJSON)
	var inc model.Incident
	decodeJSON(t, created, &inc)

	resp, err := http.Get(srv.URL + "/api/incidents/" + inc.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got model.Incident
	decodeJSON(t, resp, &got)
	assert.Equal(t, inc.ID, got.ID)
	require.NotNil(t, got.Latest)
	assert.Equal(t, "catastrophic", got.Latest.TierLabel)
}

func TestServeGetIncidentNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/incidents/no-such-id")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeListIncidents(t *testing.T) {
	srv, _ := newTestServer(t)

	postJSON(t, srv.URL+"/api/incidents", fatalIncidentJSON)
	postJSON(t, srv.URL+"/api/incidents", `{
		"company": "Borealis Refining",
		"incident_date": "2026-03-10T00:00:00Z",
		"homes_damaged": "none"
	}`)

	resp, err := http.Get(srv.URL + "/api/incidents?company=Acme+Chemicals")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Incidents []model.Incident `json:"incidents"`
	}
	decodeJSON(t, resp, &body)
	require.Len(t, body.Incidents, 1)
	assert.Equal(t, "Acme Chemicals", body.Incidents[0].Record.Company)
}

func TestServeUpdateIncidentReclassifies(t *testing.T) {
	srv, st := newTestServer(t)

	created := postJSON(t, srv.URL+"/api/incidents", fatalIncidentJSON)
	var inc model.Incident
	decodeJSON(t, created, &inc)

	// Correct the record: no deaths, six onsite injuries.
	update := `{
		"company": "Acme Chemicals",
		"incident_date": "2026-03-14T00:00:00Z",
		"deaths": 0,
		"injured_onsite": 6,
		"homes_damaged": "none"
	}`
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/incidents/"+inc.ID, bytes.NewBufferString(update))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var saved model.Classification
	decodeJSON(t, resp, &saved)
	assert.Equal(t, "major", saved.TierLabel)
	assert.True(t, saved.ReportRequired)

	// Both classifications remain in history.
	history, err := st.ListClassifications(context.Background(), inc.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestServeReclassify(t *testing.T) {
	srv, _ := newTestServer(t)

	created := postJSON(t, srv.URL+"/api/incidents", fatalIncidentJSON)
	var inc model.Incident
	decodeJSON(t, created, &inc)

	resp := postJSON(t, srv.URL+"/api/incidents/"+inc.ID+"/classify", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var saved model.Classification
	decodeJSON(t, resp, &saved)
	assert.Equal(t, "catastrophic", saved.TierLabel)
	assert.NotEqual(t, inc.Latest.ID, saved.ID, "reclassification appends a new result")
}

func TestServeDashboard(t *testing.T) {
	srv, _ := newTestServer(t)

	postJSON(t, srv.URL+"/api/incidents", fatalIncidentJSON)

	resp, err := http.Get(srv.URL + "/api/dashboard")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary model.DashboardSummary
	decodeJSON(t, resp, &summary)
	assert.Equal(t, 1, summary.Incidents)
	assert.Equal(t, 1, summary.Classified)
	assert.Equal(t, 1, summary.ByTier["catastrophic"])
	assert.Equal(t, 1, summary.ReportRequired)
}

func TestServeLogsEachRequest(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := zap.L()
	zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	entries := logs.FilterMessage("request").All()
	require.NotEmpty(t, entries)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/health", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/incidents?limit=25&offset=junk", nil)
	assert.Equal(t, 25, queryInt(req, "limit", 100))
	assert.Equal(t, 0, queryInt(req, "offset", 0))
	assert.Equal(t, 100, queryInt(req, "missing", 100))
}
