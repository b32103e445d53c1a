// Package stats aggregates result records into success/failure tables.
package stats

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"llmperf/internal/results"
	"llmperf/internal/utils"
)

// EmptyGroupError is returned when a rate is requested over zero records.
type EmptyGroupError struct {
	Group string
}

func (e *EmptyGroupError) Error() string {
	if e.Group == "" {
		return "success rate undefined for an empty group"
	}
	return fmt.Sprintf("success rate undefined: no records for %s", e.Group)
}

// Row is one aggregated group.
type Row struct {
	Group       []string `json:"group"`
	Total       int      `json:"total"`
	Failed      int      `json:"failed"`
	SuccessRate float64  `json:"success_rate"`
}

// Rate renders the success rate the way the leaderboard displays it.
func (r Row) Rate() string { return FormatRate(r.SuccessRate) }

// Key joins the group values for display and lookups.
func (r Row) Key() string { return strings.Join(r.Group, "/") }

// SuccessRate is the percentage of non failed records, rounded half to even
// at two decimals.
func SuccessRate(total, failed int) (float64, error) {
	if total == 0 {
		return 0, &EmptyGroupError{}
	}
	if failed < 0 || failed > total {
		return 0, fmt.Errorf("failed count %d out of range for total %d", failed, total)
	}
	rate := float64(total-failed) / float64(total) * 100
	return utils.RoundToTwoDecimals(rate), nil
}

// FormatRate prints a rate like 70.0% or 66.67%.
func FormatRate(rate float64) string {
	s := strconv.FormatFloat(rate, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s + "%"
}

// KeyFunc extracts the grouping key of a record.
type KeyFunc func(results.Record) []string

// MachineKey groups by machine.
func MachineKey(r results.Record) []string { return []string{r.Machine} }

// ConfigurationKey groups by the full cell tuple.
func ConfigurationKey(r results.Record) []string {
	return []string{r.Backend, r.Hardware, r.Subset, r.Machine}
}

// GroupBy counts records per key and returns rows sorted by key.
func GroupBy(records []results.Record, key KeyFunc) ([]Row, error) {
	type acc struct {
		group         []string
		total, failed int
	}
	groups := make(map[string]*acc)
	for _, r := range records {
		k := key(r)
		id := strings.Join(k, "\x00")
		a, ok := groups[id]
		if !ok {
			a = &acc{group: k}
			groups[id] = a
		}
		a.total++
		if r.Failed() {
			a.failed++
		}
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		a := groups[id]
		rate, err := SuccessRate(a.total, a.failed)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Group: a.group, Total: a.total, Failed: a.failed, SuccessRate: rate})
	}
	return rows, nil
}

// ByMachine aggregates per machine.
func ByMachine(records []results.Record) ([]Row, error) {
	return GroupBy(records, MachineKey)
}

// ByConfiguration aggregates per (backend, hardware, subset, machine).
func ByConfiguration(records []results.Record) ([]Row, error) {
	return GroupBy(records, ConfigurationKey)
}

// ForGroup aggregates the records whose key equals group.
func ForGroup(records []results.Record, key KeyFunc, group []string) (Row, error) {
	want := strings.Join(group, "\x00")
	row := Row{Group: group}
	for _, r := range records {
		if strings.Join(key(r), "\x00") != want {
			continue
		}
		row.Total++
		if r.Failed() {
			row.Failed++
		}
	}
	rate, err := SuccessRate(row.Total, row.Failed)
	if err != nil {
		return Row{}, &EmptyGroupError{Group: strings.Join(group, "/")}
	}
	row.SuccessRate = rate
	return row, nil
}
