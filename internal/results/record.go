// Package results turns benchmark artifacts stored remotely into flat
// records that can be tabulated and aggregated.
package results

import (
	"encoding/json"
	"fmt"

	"llmperf/internal/hardware"
)

// Status of a benchmark job or record.
type Status string

const (
	StatusSkippedUnsupported Status = "skipped_unsupported"
	StatusSucceeded          Status = "succeeded"
	StatusFailed             Status = "failed"
	StatusMissingRemote      Status = "missing_remote"
)

// Well known flattened keys.
const (
	KeyModel      = "config.backend.model"
	KeyExperiment = "config.name"
	KeyTraceback  = "report.traceback"
)

// Record is one flattened result row tagged with its cell.
type Record struct {
	Backend    string         `json:"backend"`
	Hardware   string         `json:"hardware"`
	Subset     string         `json:"subset"`
	Machine    string         `json:"machine"`
	Model      string         `json:"model"`
	Experiment string         `json:"experiment"`
	Status     Status         `json:"status"`
	Traceback  string         `json:"traceback"`
	Payload    map[string]any `json:"payload"`
}

// Failed reports whether the run recorded a traceback.
func (r Record) Failed() bool { return r.Status == StatusFailed }

// Cell returns the record's namespace tuple.
func (r Record) Cell() hardware.Cell {
	return hardware.Cell{Backend: r.Backend, Hardware: r.Hardware, Subset: r.Subset, Machine: r.Machine}
}

// FullData renders the payload as JSON with sorted keys.
func (r Record) FullData() string {
	data, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Sprintf("%v", r.Payload)
	}
	return string(data)
}

// NewRecord builds a record from a flattened row. A missing or null
// traceback counts as success.
func NewRecord(cell hardware.Cell, row map[string]any) Record {
	traceback := stringField(row, KeyTraceback)
	status := StatusSucceeded
	if traceback != "" {
		status = StatusFailed
	}
	return Record{
		Backend:    cell.Backend,
		Hardware:   cell.Hardware,
		Subset:     cell.Subset,
		Machine:    cell.Machine,
		Model:      stringField(row, KeyModel),
		Experiment: stringField(row, KeyExperiment),
		Status:     status,
		Traceback:  traceback,
		Payload:    row,
	}
}

func stringField(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
