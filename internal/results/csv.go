package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
)

// WriteCSV writes the flattened payloads as a table. The header is the union
// of all columns, the first record's keys sorted, followed by any new keys of
// later records sorted per record. Missing values are empty cells.
func WriteCSV(w io.Writer, records []Record) error {
	var header []string
	seen := make(map[string]bool)
	for _, r := range records {
		for _, k := range Columns(r.Payload) {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, r := range records {
		for i, col := range header {
			row[i] = cellValue(r.Payload[col])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cellValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool, float64, int, int64:
		return fmt.Sprint(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
