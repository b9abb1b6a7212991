package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sentinel/backend/internal/external/kis"
	"github.com/wonny/sentinel/backend/internal/scheduler"
	"github.com/wonny/sentinel/backend/pkg/logger"
)

type stubTokens struct{ status kis.TokenStatus }

func (s stubTokens) Status(context.Context) kis.TokenStatus { return s.status }

type stubJobs struct {
	names   []string
	history []scheduler.RunRecord
	ran     []string
	runErr  error
}

func (s *stubJobs) Jobs() []string { return s.names }

func (s *stubJobs) History(string) []scheduler.RunRecord { return s.history }

func (s *stubJobs) RunNow(name string) error {
	if s.runErr != nil {
		return s.runErr
	}
	s.ran = append(s.ran, name)
	return nil
}

func newTestRouter(t *testing.T, tokens tokenStatuser, jobs jobManager) (http.Handler, string) {
	t.Helper()
	dir := t.TempDir()
	h := NewHandlers(dir, tokens, jobs, logger.Nop())
	return NewRouter(h, logger.Nop()), dir
}

func doRequest(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, nil, nil)
	rec := doRequest(t, router, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestLatestServesExportedSnapshot(t *testing.T) {
	router, dir := newTestRouter(t, nil, nil)
	payload := `{"generated_at":"2026-08-28 07:30:00","candidates":[]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "latest.json"), []byte(payload), 0o644))

	rec := doRequest(t, router, http.MethodGet, "/api/v1/latest")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, payload, rec.Body.String())
}

func TestVerdictsProjectsLatestSnapshot(t *testing.T) {
	router, dir := newTestRouter(t, nil, nil)
	payload := `{
		"generated_at": "2026-08-28 07:30:00",
		"candidates": [{"code":"005930"}],
		"verdicts": {"005930":{"code":"005930","all_met":false}},
		"rule_order": ["high_breakout"]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "latest.json"), []byte(payload), 0o644))

	rec := doRequest(t, router, http.MethodGet, "/api/v1/verdicts")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "verdicts")
	assert.Contains(t, body, "rule_order")
	assert.NotContains(t, body, "candidates")
}

func TestLatestMissingFile(t *testing.T) {
	router, _ := newTestRouter(t, nil, nil)
	rec := doRequest(t, router, http.MethodGet, "/api/v1/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryFileRejectsBadName(t *testing.T) {
	router, dir := newTestRouter(t, nil, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "history"), 0o755))

	rec := doRequest(t, router, http.MethodGet, "/api/v1/history/..%2Flatest.json")
	assert.NotEqual(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/history/notes.json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryFileServesArchive(t *testing.T) {
	router, dir := newTestRouter(t, nil, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "history"), 0o755))
	payload := `{"generated_at":"2026-08-27 07:30:00"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "history", "2026-08-27_0730.json"), []byte(payload), 0o644))

	rec := doRequest(t, router, http.MethodGet, "/api/v1/history/2026-08-27_0730.json")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, payload, rec.Body.String())
}

func TestTokenStatus(t *testing.T) {
	tokens := stubTokens{status: kis.TokenStatus{HasToken: true, Valid: true, RemainingHours: 12.5}}
	router, _ := newTestRouter(t, tokens, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/token/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var status kis.TokenStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Valid)
	assert.InDelta(t, 12.5, status.RemainingHours, 0.001)
}

func TestTokenStatusUnconfigured(t *testing.T) {
	router, _ := newTestRouter(t, nil, nil)
	rec := doRequest(t, router, http.MethodGet, "/api/v1/token/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunJob(t *testing.T) {
	jobs := &stubJobs{names: []string{"morning-selection"}}
	router, _ := newTestRouter(t, nil, jobs)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/jobs/morning-selection/run")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"morning-selection"}, jobs.ran)
}

func TestRunJobUnknown(t *testing.T) {
	jobs := &stubJobs{runErr: errors.New("scheduler: job missing not found")}
	router, _ := newTestRouter(t, nil, jobs)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/jobs/missing/run")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
