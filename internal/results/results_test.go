package results

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"llmperf/internal/hardware"
	"llmperf/internal/logger"
	"llmperf/internal/metrics"
	"llmperf/internal/storage"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	doc, err := Decode([]byte(s))
	if err != nil {
		t.Fatalf("Expected valid JSON, got: %v", err)
	}
	return doc
}

func TestPatchMirrorsStdev(t *testing.T) {
	doc := decode(t, `{"latency":{"mean":1.5,"stdev":0.25},"list":[{"stdev":3}],"top":{"stdev":1,"stdev_":9}}`)

	if !Patch(doc) {
		t.Fatal("Expected patch to report a change")
	}
	m := doc.(map[string]any)
	latency := m["latency"].(map[string]any)
	if latency["stdev_"] != latency["stdev"] {
		t.Errorf("Expected stdev_ to mirror stdev, got %v", latency)
	}
	item := m["list"].([]any)[0].(map[string]any)
	if item["stdev_"] != item["stdev"] {
		t.Errorf("Expected stdev_ inside list items, got %v", item)
	}
	top := m["top"].(map[string]any)
	if top["stdev_"] != json.Number("9") {
		t.Errorf("Expected existing stdev_ to be kept, got %v", top["stdev_"])
	}
}

func TestPatchIsLocal(t *testing.T) {
	doc := decode(t, `{"stdev":1,"child":{"mean":2}}`)
	Patch(doc)

	m := doc.(map[string]any)
	if _, ok := m["stdev_"]; !ok {
		t.Error("Expected stdev_ at top level")
	}
	child := m["child"].(map[string]any)
	if _, ok := child["stdev_"]; ok {
		t.Error("Expected child without stdev to stay untouched")
	}
}

func TestPatchIsIdempotent(t *testing.T) {
	doc := decode(t, `{"a":{"stdev":1},"b":[{"c":{"stdev":2}}]}`)
	Patch(doc)
	once, _ := json.Marshal(doc)

	if Patch(doc) {
		t.Error("Expected second patch to change nothing")
	}
	twice, _ := json.Marshal(doc)
	if !bytes.Equal(once, twice) {
		t.Errorf("Expected identical documents, got %s vs %s", once, twice)
	}
}

func TestPatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "benchmark.json")
	os.WriteFile(path, []byte(`{"report":{"latency":{"stdev":0.1}}}`), 0o644)

	changed, err := PatchFile(path)
	if err != nil || !changed {
		t.Fatalf("Expected file to be patched, got %v, %v", changed, err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"stdev_": 0.1`) {
		t.Errorf("Expected patched content with 4-space indent, got %s", data)
	}

	changed, err = PatchFile(path)
	if err != nil || changed {
		t.Errorf("Expected second patch to be a no-op, got %v, %v", changed, err)
	}
}

func TestFlatten(t *testing.T) {
	doc := decode(t, `{"config":{"name":"float16-sdpa","backend":{"model":"gpt2"}},"report":{"traceback":"","list":[1,2]},"empty":{}}`)
	rows := Flatten(doc)
	if len(rows) != 1 {
		t.Fatalf("Expected one row, got %d", len(rows))
	}
	row := rows[0]
	if row["config.backend.model"] != "gpt2" || row["config.name"] != "float16-sdpa" {
		t.Errorf("Expected dotted keys, got %v", row)
	}
	if !reflect.DeepEqual(row["report.list"], []any{json.Number("1"), json.Number("2")}) {
		t.Errorf("Expected list kept as value, got %v", row["report.list"])
	}
	if _, ok := row["empty"]; !ok {
		t.Errorf("Expected empty object kept as value, got %v", row)
	}
	want := []string{"config.backend.model", "config.name", "empty", "report.list", "report.traceback"}
	if got := Columns(row); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected columns %v, got %v", want, got)
	}
}

func TestFlattenKeepsCollidingKeys(t *testing.T) {
	rows := Flatten(decode(t, `{"config":{"name":"nested"},"config.name":"literal","config.name_1":"taken"}`))
	row := rows[0]
	if row["config.name"] != "literal" || row["config.name_1"] != "taken" || row["config.name_2"] != "nested" {
		t.Errorf("Expected every value under its own column, got %v", row)
	}
	if len(row) != 3 {
		t.Errorf("Expected 3 columns, got %v", row)
	}
}

func TestFlattenTopLevelList(t *testing.T) {
	rows := Flatten(decode(t, `[{"config":{"name":"a"}},{"config":{"name":"b"}}]`))
	if len(rows) != 2 || rows[1]["config.name"] != "b" {
		t.Errorf("Expected one row per element, got %v", rows)
	}
}

func TestNewRecordStatus(t *testing.T) {
	cell := hardware.Cell{Backend: "pytorch", Hardware: "cpu", Subset: "unquantized", Machine: "m1"}
	cases := []struct {
		row  map[string]any
		want Status
	}{
		{map[string]any{"report.traceback": ""}, StatusSucceeded},
		{map[string]any{}, StatusSucceeded},
		{map[string]any{"report.traceback": nil}, StatusSucceeded},
		{map[string]any{"report.traceback": "Traceback: CUDA OOM"}, StatusFailed},
	}
	for i, tc := range cases {
		r := NewRecord(cell, tc.row)
		if r.Status != tc.want {
			t.Errorf("Case %d: expected %s, got %s", i, tc.want, r.Status)
		}
		if r.Machine != "m1" || r.Backend != "pytorch" {
			t.Errorf("Case %d: expected cell fields to be copied, got %+v", i, r)
		}
	}
}

func artifact(model, experiment, traceback string) []byte {
	return []byte(fmt.Sprintf(`{"config":{"name":%q,"backend":{"model":%q}},"report":{"traceback":%q,"decode":{"latency":{"stdev":0.5}}}}`,
		experiment, model, traceback))
}

func TestGatherCell(t *testing.T) {
	ctx := context.Background()
	store, _ := storage.NewLocalStore(t.TempDir())
	cell := hardware.Cell{Backend: "pytorch", Hardware: "cpu", Subset: "unquantized", Machine: "m1"}
	ns := cell.Namespace("org")
	store.Put(ctx, ns, "b-job/benchmark.json", artifact("b", "float32-eager", "boom"))
	store.Put(ctx, ns, "a-job/benchmark.json", artifact("a", "float16-sdpa", ""))
	store.Put(ctx, ns, "a-job/benchmark_config.json", []byte(`{}`))

	m := metrics.NewCollector()
	g := NewGatherer(store, "org", m)
	records, err := g.Gather(ctx, cell)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Model != "a" || records[0].Status != StatusSucceeded {
		t.Errorf("Expected first record a/succeeded, got %s/%s", records[0].Model, records[0].Status)
	}
	if records[1].Model != "b" || records[1].Status != StatusFailed || records[1].Traceback != "boom" {
		t.Errorf("Expected second record b/failed, got %+v", records[1])
	}
	if _, ok := records[0].Payload["report.decode.latency.stdev_"]; !ok {
		t.Errorf("Expected patched alias in payload, got %v", records[0].Payload)
	}
	if got := testutil.ToFloat64(m.GatheredRecords.WithLabelValues("pytorch", "cpu", "unquantized", "m1")); got != 2 {
		t.Errorf("Expected 2 gathered records counted, got %f", got)
	}
}

func TestGatherMissingNamespace(t *testing.T) {
	store, _ := storage.NewLocalStore(t.TempDir())
	g := NewGatherer(store, "org", nil)

	_, err := g.Gather(context.Background(), hardware.Cell{Backend: "pytorch", Hardware: "cuda", Subset: "gptq", Machine: "1xA10"})
	var nf *NamespaceNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Expected NamespaceNotFoundError, got %v", err)
	}
	if nf.Namespace != "org/llm-perf-pytorch-cuda-gptq-1xA10" {
		t.Errorf("Unexpected namespace %s", nf.Namespace)
	}
}

func TestGatherMalformedArtifact(t *testing.T) {
	ctx := context.Background()
	store, _ := storage.NewLocalStore(t.TempDir())
	cell := hardware.Cell{Backend: "pytorch", Hardware: "cpu", Subset: "unquantized", Machine: "m1"}
	store.Put(ctx, cell.Namespace("org"), "x/benchmark.json", []byte(`{not json`))

	_, err := NewGatherer(store, "org", nil).Gather(ctx, cell)
	var ae *ArtifactError
	if !errors.As(err, &ae) || ae.Path != "x/benchmark.json" {
		t.Fatalf("Expected ArtifactError for x/benchmark.json, got %v", err)
	}
}

func TestGatherNonFiniteFloats(t *testing.T) {
	ctx := context.Background()
	store, _ := storage.NewLocalStore(t.TempDir())
	cell := hardware.Cell{Backend: "pytorch", Hardware: "cuda", Subset: "unquantized", Machine: "m1"}
	ns := cell.Namespace("org")
	store.Put(ctx, ns, "clean/benchmark.json", artifact("a", "float16-sdpa", ""))
	store.Put(ctx, ns, "nan/benchmark.json", []byte(`{"config":{"name":"float32-eager","backend":{"model":"b"}},`+
		`"report":{"energy":NaN,"peak":Infinity,"low":-Infinity,"note":"NaN stays text"}}`))

	records, err := NewGatherer(store, "org", nil).Gather(ctx, cell)
	if err != nil {
		t.Fatalf("Expected non finite floats to be accepted, got: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	nan := records[1].Payload
	if v, ok := nan["report.energy"]; !ok || v != nil {
		t.Errorf("Expected NaN to decode as null, got %v", nan)
	}
	if nan["report.peak"] != nil || nan["report.low"] != nil {
		t.Errorf("Expected infinities to decode as null, got %v", nan)
	}
	if nan["report.note"] != "NaN stays text" {
		t.Errorf("Expected strings to be left alone, got %v", nan["report.note"])
	}
}

func TestPatchJSONPreservesTokens(t *testing.T) {
	in := `{"report":{"latency":{"stdev":NaN},"traceback":"File \"<module>\", line 1"}}`

	out, changed, err := PatchJSON([]byte(in))
	if err != nil || !changed {
		t.Fatalf("Expected patched document, got %v, %v", changed, err)
	}
	s := string(out)
	if !strings.Contains(s, `"stdev": NaN`) || !strings.Contains(s, `"stdev_": NaN`) {
		t.Errorf("Expected bare NaN to be written back, got %s", s)
	}
	if !strings.Contains(s, `<module>`) {
		t.Errorf("Expected traceback without HTML escaping, got %s", s)
	}
	if strings.HasSuffix(s, "\n") {
		t.Errorf("Expected no trailing newline, got %q", s)
	}
}

func TestGatherAllSkipsMissingCellOnce(t *testing.T) {
	ctx := context.Background()
	store, _ := storage.NewLocalStore(t.TempDir())
	present := hardware.Cell{Backend: "pytorch", Hardware: "cpu", Subset: "unquantized", Machine: "m1"}
	missing := hardware.Cell{Backend: "onnxruntime", Hardware: "cpu", Subset: "unquantized", Machine: "m1"}
	store.Put(ctx, present.Namespace("org"), "j/benchmark.json", artifact("gpt2", "float32-eager", ""))

	var stdout bytes.Buffer
	log := logger.New(logger.Options{Stdout: &stdout, Stderr: &stdout})
	m := metrics.NewCollector()

	results, err := GatherAll(ctx, NewGatherer(store, "org", m), []hardware.Cell{missing, present}, 2, log)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(results) != 2 || results[0].Cell != missing || results[1].Cell != present {
		t.Fatalf("Expected results in input order, got %+v", results)
	}
	if !results[0].Missing() || len(results[0].Records) != 0 {
		t.Errorf("Expected missing cell with no rows, got %+v", results[0])
	}
	if len(Records(results)) != 1 {
		t.Errorf("Expected 1 record overall, got %d", len(Records(results)))
	}
	if n := strings.Count(stdout.String(), "Dataset not found"); n != 1 {
		t.Errorf("Expected exactly one not-found log line, got %d:\n%s", n, stdout.String())
	}
	if !strings.Contains(stdout.String(), "[Backend:onnxruntime][Hardware:cpu][Subset:unquantized][Machine:m1]") {
		t.Errorf("Expected full tuple in log, got %s", stdout.String())
	}
	if got := testutil.ToFloat64(m.MissingNamespaces); got != 1 {
		t.Errorf("Expected 1 missing namespace counted, got %f", got)
	}
}

func TestWriteCSV(t *testing.T) {
	records := []Record{
		{Payload: map[string]any{"b": json.Number("2"), "a": "x"}},
		{Payload: map[string]any{"a": "y", "c": []any{json.Number("1")}}},
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Expected valid CSV, got: %v", err)
	}
	want := [][]string{{"a", "b", "c"}, {"x", "2", ""}, {"y", "", "[1]"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("Expected %v, got %v", want, rows)
	}
}
