package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fatnaoui/crawler-project/internal/storage"
)

func setupTestApp(t *testing.T) (*fiber.App, storage.Ledger) {
	t.Helper()
	metrics := storage.NewSimpleMetricsCollector()
	ledger, err := storage.OpenSQLiteLedger(filepath.Join(t.TempDir(), "ledger.db"), metrics)
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	ctx := context.Background()
	run := &storage.Run{ID: "run-1", InputDir: "in", OutputDir: "out", Tasks: 2, Workers: 2}
	require.NoError(t, ledger.CreateRun(ctx, run))
	run.DocumentsRead = 4
	run.DocumentsKept = 1
	run.Status = storage.RunStatusCompleted
	require.NoError(t, ledger.FinishRun(ctx, run))

	require.NoError(t, ledger.AddStageStats(ctx, "run-1", []storage.StageStat{
		{Stage: "reader", Index: -1, Counter: "records", Value: 6},
		{Stage: "gopher_quality", Index: 0, Counter: "total", Value: 4},
		{Stage: "gopher_quality", Index: 0, Counter: "dropped", Value: 2},
		{Stage: "c4_quality", Index: 1, Counter: "total", Value: 2},
		{Stage: "c4_quality", Index: 1, Counter: "dropped", Value: 1},
	}))
	require.NoError(t, ledger.RecordRejections(ctx, []storage.Rejection{
		{RunID: "run-1", Stage: "gopher_quality", Reason: "gopher_short_doc", DocumentID: "d1"},
		{RunID: "run-1", Stage: "gopher_quality", Reason: "gopher_below_alpha_threshold", DocumentID: "d2"},
		{RunID: "run-1", Stage: "c4_quality", Reason: "too_few_sentences", DocumentID: "d3"},
	}))

	app := NewApp(NewHandlers(ledger), NewStorageHandler(ledger, metrics), ServerOptions{})
	return app, ledger
}

func doRequest(t *testing.T, app *fiber.App, method, target string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	app, _ := setupTestApp(t)

	code, body := doRequest(t, app, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "darija-curate", body["service"])
	assert.Equal(t, Version, body["version"])
}

func TestListRuns(t *testing.T) {
	app, _ := setupTestApp(t)

	code, body := doRequest(t, app, http.MethodGet, "/api/v1/runs")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])
	runs := body["runs"].([]any)
	assert.Equal(t, "run-1", runs[0].(map[string]any)["id"])
}

func TestGetRun(t *testing.T) {
	app, _ := setupTestApp(t)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"existing", "/api/v1/runs/run-1", http.StatusOK},
		{"missing", "/api/v1/runs/nope", http.StatusNotFound},
		{"missing stats", "/api/v1/runs/nope/stats", http.StatusNotFound},
		{"bad limit", "/api/v1/runs?limit=abc", http.StatusBadRequest},
		{"zero limit", "/api/v1/runs/run-1/rejections?limit=0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := doRequest(t, app, http.MethodGet, tt.target)
			assert.Equal(t, tt.want, code)
			if tt.want != http.StatusOK {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestGetRunStats(t *testing.T) {
	app, _ := setupTestApp(t)

	code, body := doRequest(t, app, http.MethodGet, "/api/v1/runs/run-1/stats")
	require.Equal(t, http.StatusOK, code)
	assert.InDelta(t, 25.0, body["keep_rate"], 0.001)

	stages := body["stages"].([]any)
	require.Len(t, stages, 3)
	first := stages[0].(map[string]any)
	assert.Equal(t, "reader", first["name"])
	gopher := stages[1].(map[string]any)
	assert.Equal(t, "gopher_quality", gopher["name"])
	assert.Equal(t, float64(2), gopher["counters"].(map[string]any)["dropped"])

	rejections := body["rejections"].(map[string]any)
	assert.Equal(t, float64(1), rejections["gopher_quality"].(map[string]any)["gopher_short_doc"])
	assert.Equal(t, float64(1), rejections["c4_quality"].(map[string]any)["too_few_sentences"])
}

func TestListRejections(t *testing.T) {
	app, _ := setupTestApp(t)

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?stage=gopher_quality", 2},
		{"?stage=gopher_quality&reason=gopher_short_doc", 1},
		{"?limit=1", 1},
		{"?stage=language", 0},
	}
	for _, tt := range tests {
		code, body := doRequest(t, app, http.MethodGet, "/api/v1/runs/run-1/rejections"+tt.query)
		assert.Equal(t, http.StatusOK, code, tt.query)
		assert.Equal(t, float64(tt.want), body["count"], tt.query)
		assert.Len(t, body["rejections"], tt.want, tt.query)
	}
}

func TestLedgerMetricsEndpoints(t *testing.T) {
	app, _ := setupTestApp(t)

	code, body := doRequest(t, app, http.MethodGet, "/api/v1/ledger/metrics")
	assert.Equal(t, http.StatusOK, code)
	summary := body["metrics_summary"].(map[string]any)
	assert.Greater(t, summary["total_operations"], float64(0))

	code, body = doRequest(t, app, http.MethodGet, "/api/v1/ledger/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["healthy"])

	code, _ = doRequest(t, app, http.MethodDelete, "/api/v1/ledger/metrics")
	assert.Equal(t, http.StatusOK, code)

	_, body = doRequest(t, app, http.MethodGet, "/api/v1/ledger/metrics")
	summary = body["metrics_summary"].(map[string]any)
	assert.Equal(t, float64(0), summary["total_operations"])
}

func TestHealthUnhealthyLedger(t *testing.T) {
	app, ledger := setupTestApp(t)
	require.NoError(t, ledger.Close())

	code, body := doRequest(t, app, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
}
