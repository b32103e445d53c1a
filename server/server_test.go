package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"llmperf/internal/app"
	"llmperf/internal/hardware"
	"llmperf/internal/leaderboard"
	"llmperf/internal/logger"
	"llmperf/internal/matrix"
	"llmperf/internal/metrics"
	"llmperf/internal/models"
	"llmperf/internal/results"
	"llmperf/internal/runners"
	"llmperf/internal/stats"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const hardwareYAML = `- machine: 1xA10
  hardware: cuda
  subsets: [unquantized, bnb]
  backends: [pytorch]
`

var (
	cellA10 = hardware.Cell{Backend: "pytorch", Hardware: "cuda", Subset: "unquantized", Machine: "1xA10"}
	cellBnB = hardware.Cell{Backend: "pytorch", Hardware: "cuda", Subset: "bnb", Machine: "1xA10"}
)

func testSnapshot() *leaderboard.Snapshot {
	return &leaderboard.Snapshot{
		GeneratedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Cells: []leaderboard.CellStatus{
			{Cell: cellA10, Available: true},
			{Cell: cellBnB, Available: false},
		},
		Records: []results.Record{
			{Backend: "pytorch", Hardware: "cuda", Subset: "unquantized", Machine: "1xA10", Model: "gpt2", Experiment: "float16-sdpa", Status: results.StatusSucceeded},
			{Backend: "pytorch", Hardware: "cuda", Subset: "unquantized", Machine: "1xA10", Model: "gpt2", Experiment: "float32-eager", Status: results.StatusFailed, Traceback: "CUDA out of memory"},
		},
		Machines: []stats.Row{{Group: []string{"1xA10"}, Total: 2, Failed: 1, SuccessRate: 50}},
		Configurations: []stats.Row{
			{Group: []string{"pytorch", "cuda", "unquantized", "1xA10"}, Total: 2, Failed: 1, SuccessRate: 50},
		},
	}
}

// fakeRunner reports one job and blocks until released or cancelled.
type fakeRunner struct {
	obs     runners.Observer
	release chan struct{}
	err     error
}

func (f *fakeRunner) Namespace() string { return cellA10.Namespace("org") }

func (f *fakeRunner) RunAll(ctx context.Context) ([]runners.Outcome, error) {
	job := matrix.Job{Model: "gpt2", Weights: matrix.WeightsConfig{Name: "float16"}, Attention: matrix.SDPA, Backend: "pytorch", Hardware: "cuda", Subset: "unquantized"}
	f.obs.JobStarted(job, 0, 1)
	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	outcome := runners.Outcome{Job: job, Status: results.StatusSucceeded}
	f.obs.JobFinished(outcome, 0, 1)
	return []runners.Outcome{outcome}, f.err
}

type fixture struct {
	server  *Server
	router  *gin.Engine
	release chan struct{}
	runErr  error

	mu      sync.Mutex
	builds  int
	snapErr error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{release: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	srv, err := New(ctx, Options{
		Hardware: func() (*hardware.Catalog, error) { return hardware.Parse("test", []byte(hardwareYAML)) },
		Models: func(ctx context.Context) models.Catalog {
			return models.Catalog{Models: []string{"gpt2"}, Source: models.SourceExplicit}
		},
		Snapshot: func(ctx context.Context) (*leaderboard.Snapshot, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.builds++
			if f.snapErr != nil {
				return nil, f.snapErr
			}
			return testSnapshot(), nil
		},
		NewRunner: func(ctx context.Context, spec app.RunSpec, runID string, obs runners.Observer) (MatrixRunner, error) {
			if _, err := runners.Lookup(spec.Hardware, spec.Backend); err != nil {
				return nil, err
			}
			return &fakeRunner{obs: obs, release: f.release, err: f.runErr}, nil
		},
		Metrics:  metrics.NewCollector(),
		CORS:     &CORSConfig{AllowOrigins: []string{"*"}, AllowMethods: []string{"GET", "POST"}},
		Version:  "test",
		CacheTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("Expected server, got: %v", err)
	}
	f.server = srv
	f.router = srv.Router()
	t.Cleanup(func() {
		cancel()
		srv.Shutdown()
	})
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Expected JSON body, got %q: %v", w.Body.String(), err)
	}
}

func TestNewRequiresSources(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Error("Expected error without data sources")
	}
}

func TestHealthHandler(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp HealthResponse
	decode(t, w, &resp)
	if resp.Status != "healthy" || resp.Version != "test" {
		t.Errorf("Unexpected health response %+v", resp)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("Expected security headers")
	}
}

func TestHardwareAndModels(t *testing.T) {
	f := newFixture(t)

	var hw HardwareResponse
	decode(t, f.do(http.MethodGet, "/api/hardware", ""), &hw)
	if len(hw.Configs) != 1 || hw.Count != 2 {
		t.Errorf("Expected 1 machine and 2 cells, got %+v", hw)
	}
	if len(hw.Variants) != 5 {
		t.Fatalf("Expected 5 variants, got %+v", hw.Variants)
	}
	for _, v := range hw.Variants {
		if v.Name == "rocm-pytorch" && (v.Device != "cuda" || len(v.Subsets) != 4) {
			t.Errorf("Unexpected rocm variant %+v", v)
		}
	}

	var m ModelsResponse
	decode(t, f.do(http.MethodGet, "/api/models", ""), &m)
	if m.Count != 1 || m.Source != models.SourceExplicit {
		t.Errorf("Unexpected models response %+v", m)
	}
}

func TestTables(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		path    string
		columns int
		rows    int
	}{
		{"/api/status", 5, 2},
		{"/api/benchmarks", 9, 2},
		{"/api/stats/machines", 4, 1},
		{"/api/stats/configurations", 7, 1},
		{"/api/status?subset=bnb", 5, 1},
		{"/api/benchmarks?experiment=float32-eager", 9, 1},
		{"/api/benchmarks?machine=1xT4", 9, 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := f.do(http.MethodGet, tt.path, "")
			if w.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
			}
			var resp TableResponse
			decode(t, w, &resp)
			if len(resp.Columns) != tt.columns || resp.Count != tt.rows {
				t.Errorf("Expected %d columns and %d rows, got %d and %d", tt.columns, tt.rows, len(resp.Columns), resp.Count)
			}
		})
	}

	var status TableResponse
	decode(t, f.do(http.MethodGet, "/api/status", ""), &status)
	if status.Rows[0][4] != leaderboard.StatusOK || status.Rows[1][4] != leaderboard.StatusFail {
		t.Errorf("Unexpected status symbols %v", status.Rows)
	}
	if f.builds != 1 {
		t.Errorf("Expected one cached snapshot build, got %d", f.builds)
	}
	f.do(http.MethodGet, "/api/status?refresh=true", "")
	if f.builds != 2 {
		t.Errorf("Expected refresh to rebuild, got %d builds", f.builds)
	}
}

func TestSnapshotErrorIsBadGateway(t *testing.T) {
	f := newFixture(t)
	f.snapErr = errors.New("hub unavailable")

	w := f.do(http.MethodGet, "/api/status", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", w.Code)
	}
	var resp ErrorResponse
	decode(t, w, &resp)
	if !strings.Contains(resp.Message, "hub unavailable") {
		t.Errorf("Expected cause in message, got %q", resp.Message)
	}
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/export/csv?table=machines", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("Expected CSV content type, got %s", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "llm-perf-machines.csv") {
		t.Errorf("Unexpected disposition %s", w.Header().Get("Content-Disposition"))
	}
	want := "Machine,Total_Benchmarks,Failed_Benchmarks,Success_Rate\n1xA10,2,1,50.0%\n"
	if w.Body.String() != want {
		t.Errorf("Expected %q, got %q", want, w.Body.String())
	}

	if w := f.do(http.MethodGet, "/api/export/csv?table=trends", ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown table, got %d", w.Code)
	}
}

func TestNotFoundAndMediaType(t *testing.T) {
	f := newFixture(t)
	if w := f.do(http.MethodGet, "/api/nothing", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader("hardware=cuda"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Expected 415, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/runs", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Expected wildcard origin, got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "llmperf_") {
		t.Errorf("Expected prometheus exposition, got %d", w.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RecoveryMiddleware(logger.Discard()))
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
}
