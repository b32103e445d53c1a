package runners

import (
	"llmperf/internal/hardware"
	"llmperf/internal/matrix"
	"llmperf/internal/results"
)

// Reconcile compares the expected matrix of a cell with the records gathered
// from its namespace. Each entry is classified as skipped_unsupported,
// succeeded, failed or missing_remote. When several records match a job the
// last one in discovery order wins.
func Reconcile(cell hardware.Cell, entries []matrix.Entry, records []results.Record) []Outcome {
	type key struct{ model, experiment string }
	latest := make(map[key]results.Record)
	for _, rec := range records {
		if rec.Cell() != cell {
			continue
		}
		latest[key{rec.Model, rec.Experiment}] = rec
	}

	outcomes := make([]Outcome, 0, len(entries))
	for _, e := range entries {
		o := Outcome{Job: e.Job}
		switch rec, ok := latest[key{e.Job.Model, e.Job.Experiment()}]; {
		case !e.Supported:
			o.Status = results.StatusSkippedUnsupported
		case !ok:
			o.Status = results.StatusMissingRemote
		default:
			o.Status = rec.Status
			o.Traceback = rec.Traceback
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// Summary counts outcomes per status.
func Summary(outcomes []Outcome) map[results.Status]int {
	counts := make(map[results.Status]int)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	return counts
}
