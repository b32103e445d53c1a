package stats

import (
	"errors"
	"reflect"
	"testing"

	"llmperf/internal/results"
)

func record(machine, backend string, failed bool) results.Record {
	r := results.Record{Backend: backend, Hardware: "cuda", Subset: "unquantized", Machine: machine, Status: results.StatusSucceeded}
	if failed {
		r.Status = results.StatusFailed
		r.Traceback = "boom"
	}
	return r
}

func TestSuccessRate(t *testing.T) {
	cases := []struct {
		total, failed int
		want          float64
		text          string
	}{
		{10, 3, 70, "70.0%"},
		{10, 0, 100, "100.0%"},
		{10, 10, 0, "0.0%"},
		{3, 1, 66.67, "66.67%"},
		{8, 1, 87.5, "87.5%"},
		{6, 1, 83.33, "83.33%"},
	}
	for _, tc := range cases {
		got, err := SuccessRate(tc.total, tc.failed)
		if err != nil {
			t.Fatalf("SuccessRate(%d, %d): expected no error, got %v", tc.total, tc.failed, err)
		}
		if got != tc.want {
			t.Errorf("SuccessRate(%d, %d): expected %v, got %v", tc.total, tc.failed, tc.want, got)
		}
		if s := FormatRate(got); s != tc.text {
			t.Errorf("FormatRate(%v): expected %s, got %s", got, tc.text, s)
		}
	}
}

func TestSuccessRateEmpty(t *testing.T) {
	_, err := SuccessRate(0, 0)
	var empty *EmptyGroupError
	if !errors.As(err, &empty) {
		t.Fatalf("Expected EmptyGroupError, got %v", err)
	}
}

func TestTenRecordsThreeFailed(t *testing.T) {
	var records []results.Record
	for i := 0; i < 10; i++ {
		records = append(records, record("1xA10", "pytorch", i < 3))
	}

	rows, err := ByConfiguration(records)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected one group, got %d", len(rows))
	}
	if rows[0].Total != 10 || rows[0].Failed != 3 || rows[0].Rate() != "70.0%" {
		t.Errorf("Expected 10/3/70.0%%, got %d/%d/%s", rows[0].Total, rows[0].Failed, rows[0].Rate())
	}
}

func TestGroupingInvariants(t *testing.T) {
	records := []results.Record{
		record("b-machine", "pytorch", false),
		record("a-machine", "pytorch", true),
		record("a-machine", "onnxruntime", false),
		record("b-machine", "pytorch", true),
		record("b-machine", "pytorch", false),
	}

	rows, err := ByMachine(records)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(rows) != 2 || rows[0].Key() != "a-machine" || rows[1].Key() != "b-machine" {
		t.Fatalf("Expected groups sorted by machine, got %+v", rows)
	}

	total := 0
	for _, r := range rows {
		if r.SuccessRate < 0 || r.SuccessRate > 100 {
			t.Errorf("Rate out of range: %v", r.SuccessRate)
		}
		if r.Failed > r.Total {
			t.Errorf("Failed exceeds total in %+v", r)
		}
		total += r.Total
	}
	if total != len(records) {
		t.Errorf("Expected totals to cover %d records, got %d", len(records), total)
	}

	configs, _ := ByConfiguration(records)
	if len(configs) != 3 {
		t.Errorf("Expected 3 configuration groups, got %d", len(configs))
	}
}

func TestForGroup(t *testing.T) {
	records := []results.Record{record("m1", "pytorch", true), record("m1", "pytorch", false)}

	row, err := ForGroup(records, MachineKey, []string{"m1"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if row.Rate() != "50.0%" {
		t.Errorf("Expected 50.0%%, got %s", row.Rate())
	}

	_, err = ForGroup(records, MachineKey, []string{"absent"})
	var empty *EmptyGroupError
	if !errors.As(err, &empty) || empty.Group != "absent" {
		t.Errorf("Expected EmptyGroupError for absent, got %v", err)
	}
}

func TestEmptyRecordsYieldNoRows(t *testing.T) {
	rows, err := ByMachine(nil)
	if err != nil || len(rows) != 0 {
		t.Errorf("Expected no rows and no error, got %v, %v", rows, err)
	}
}

func TestTables(t *testing.T) {
	rows := []Row{{Group: []string{"pytorch", "cuda", "gptq", "1xA10"}, Total: 10, Failed: 3, SuccessRate: 70}}
	table := ConfigurationTable(rows)

	if !reflect.DeepEqual(table.Columns, []string{"Backend", "Hardware", "Subset", "Machine", "Total_Benchmarks", "Failed_Benchmarks", "Success_Rate"}) {
		t.Errorf("Unexpected columns %v", table.Columns)
	}
	want := []string{"pytorch", "cuda", "gptq", "1xA10", "10", "3", "70.0%"}
	if !reflect.DeepEqual(table.Rows[0], want) {
		t.Errorf("Expected %v, got %v", want, table.Rows[0])
	}

	m := MachineTable([]Row{{Group: []string{"1xA10"}, Total: 3, Failed: 1, SuccessRate: 66.67}})
	if m.Rows[0][3] != "66.67%" || m.Columns[0] != "Machine" {
		t.Errorf("Unexpected machine table %+v", m)
	}
}
