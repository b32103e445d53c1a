package main

import (
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v4"

	"llmperf/internal/stats"
	"llmperf/internal/utils"
)

// Output formats.
const (
	formatText     = ""
	formatJSON     = "json"
	formatYAML     = "yaml"
	formatMarkdown = "markdown"
	formatCSV      = "csv"
)

func toJSON(v any) (string, error) {
	prettyJSON, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}
	return string(prettyJSON), nil
}

func toYAML(v any) (string, error) {
	yamlData, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("error marshalling yaml: %w", err)
	}
	return string(yamlData), nil
}

// writeValue prints v as JSON or YAML.
func writeValue(w io.Writer, format string, v any) error {
	var (
		output string
		err    error
	)
	switch format {
	case formatJSON:
		output, err = toJSON(v)
	case formatYAML:
		output, err = toYAML(v)
	default:
		return fmt.Errorf("invalid format %q (want json or yaml)", format)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, output)
	return err
}

// writeTable prints a table as markdown (the default), CSV, JSON or YAML.
func writeTable(w io.Writer, format string, t stats.Table) error {
	switch format {
	case formatText, formatMarkdown:
		return utils.WriteMarkdownTable(w, t.Columns, t.Rows)
	case formatCSV:
		return utils.WriteCSVTable(w, t.Columns, t.Rows)
	case formatJSON, formatYAML:
		return writeValue(w, format, tableRecords(t))
	}
	return fmt.Errorf("invalid format %q (want markdown, csv, json or yaml)", format)
}

// tableRecords turns rows into column keyed maps.
func tableRecords(t stats.Table) []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}
