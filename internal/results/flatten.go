package results

import (
	"fmt"
	"sort"
	"strings"
)

// Flatten turns a decoded artifact into tabular rows. Nested objects are
// expanded into dotted keys, arrays are kept as values. A top-level array
// yields one row per element.
func Flatten(doc any) []map[string]any {
	if items, ok := doc.([]any); ok {
		rows := make([]map[string]any, 0, len(items))
		for _, item := range items {
			rows = append(rows, flattenOne(item))
		}
		return rows
	}
	return []map[string]any{flattenOne(doc)}
}

func flattenOne(doc any) map[string]any {
	row := make(map[string]any)
	obj, ok := doc.(map[string]any)
	if !ok {
		row["value"] = doc
		return row
	}
	var leaves []leaf
	collectLeaves(&leaves, nil, obj)

	// Shallower paths claim their dotted name first, so a literal "a.b" key
	// keeps it and a nested a -> b becomes "a.b_1". Order is deterministic.
	sort.Slice(leaves, func(i, j int) bool {
		if len(leaves[i].path) != len(leaves[j].path) {
			return len(leaves[i].path) < len(leaves[j].path)
		}
		return strings.Join(leaves[i].path, "\x00") < strings.Join(leaves[j].path, "\x00")
	})
	for _, l := range leaves {
		name := strings.Join(l.path, ".")
		if _, taken := row[name]; taken {
			base := name
			for n := 1; taken; n++ {
				name = fmt.Sprintf("%s_%d", base, n)
				_, taken = row[name]
			}
		}
		row[name] = l.value
	}
	return row
}

type leaf struct {
	path  []string
	value any
}

func collectLeaves(leaves *[]leaf, prefix []string, obj map[string]any) {
	for key, value := range obj {
		path := append(append([]string(nil), prefix...), key)
		if nested, ok := value.(map[string]any); ok && len(nested) > 0 {
			collectLeaves(leaves, path, nested)
			continue
		}
		*leaves = append(*leaves, leaf{path: path, value: value})
	}
}

// Columns returns the keys of a flat row in sorted order.
func Columns(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
