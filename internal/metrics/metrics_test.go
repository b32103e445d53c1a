package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordOutcome(t *testing.T) {
	c := NewCollector()

	c.RecordOutcome("succeeded", "pytorch", "cpu", 3*time.Second)
	c.RecordOutcome("succeeded", "pytorch", "cpu", 0)
	c.RecordOutcome("failed", "pytorch", "cpu", time.Second)

	if got := testutil.ToFloat64(c.JobOutcomes.WithLabelValues("succeeded", "pytorch", "cpu")); got != 2 {
		t.Errorf("Expected 2 succeeded outcomes, got %f", got)
	}
	if got := testutil.ToFloat64(c.JobOutcomes.WithLabelValues("failed", "pytorch", "cpu")); got != 1 {
		t.Errorf("Expected 1 failed outcome, got %f", got)
	}
	if got := testutil.CollectAndCount(c.JobDuration); got != 1 {
		t.Errorf("Expected one duration series, got %d", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordOutcome("failed", "pytorch", "cuda", time.Second)
	c.RecordGathered("pytorch", "cuda", "gptq", "1xA10", 3)
	c.RecordMissingNamespace()
	c.RecordUploadFailure("pytorch", "cuda")
	c.RunStarted()
	c.RunFinished()
}

func TestGatherAndGauge(t *testing.T) {
	c := NewCollector()

	c.RecordGathered("pytorch", "cuda", "gptq", "1xA10", 4)
	c.RecordMissingNamespace()
	c.RunStarted()

	if got := testutil.ToFloat64(c.GatheredRecords.WithLabelValues("pytorch", "cuda", "gptq", "1xA10")); got != 4 {
		t.Errorf("Expected 4 gathered records, got %f", got)
	}
	if got := testutil.ToFloat64(c.MissingNamespaces); got != 1 {
		t.Errorf("Expected 1 missing namespace, got %f", got)
	}
	if got := testutil.ToFloat64(c.ActiveRuns); got != 1 {
		t.Errorf("Expected 1 active run, got %f", got)
	}
	c.RunFinished()
	if got := testutil.ToFloat64(c.ActiveRuns); got != 0 {
		t.Errorf("Expected 0 active runs, got %f", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.RecordMissingNamespace()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "llmperf_missing_namespaces_total 1") {
		t.Errorf("Expected missing namespace counter in exposition, got:\n%s", body)
	}
}
