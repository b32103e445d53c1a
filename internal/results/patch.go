package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Keys bridging the two historical names of the dispersion metric. Both are
// treated as opaque aliases of the same value.
const (
	stdevKey      = "stdev"
	stdevAliasKey = "stdev_"
)

// Patch walks a decoded JSON document and, in every object that has "stdev"
// but no "stdev_", adds "stdev_" with the same value at the same level.
// It reports whether anything changed. Applying it twice is a no-op.
func Patch(doc any) bool {
	changed := false
	switch v := doc.(type) {
	case map[string]any:
		for _, child := range v {
			if Patch(child) {
				changed = true
			}
		}
		if value, ok := v[stdevKey]; ok {
			if _, exists := v[stdevAliasKey]; !exists {
				v[stdevAliasKey] = value
				changed = true
			}
		}
	case []any:
		for _, item := range v {
			if Patch(item) {
				changed = true
			}
		}
	}
	return changed
}

// Python's json module writes these bare tokens for non finite floats.
var nonFinite = []string{"-Infinity", "Infinity", "NaN"}

// nonFiniteMarker stands in for a bare non finite token while a document is
// decoded and re-encoded by PatchJSON.
const nonFiniteMarker = "\x00llmperf:"

// replaceNonFinite rewrites the bare NaN, Infinity and -Infinity tokens that
// sit outside string literals. Text inside strings is left alone.
func replaceNonFinite(data []byte, replace func(token string) string) []byte {
	var out []byte
	inString, escaped := false, false
	last := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			continue
		}
		for _, token := range nonFinite {
			if bytes.HasPrefix(data[i:], []byte(token)) {
				out = append(out, data[last:i]...)
				out = append(out, replace(token)...)
				i += len(token) - 1
				last = i + 1
				break
			}
		}
	}
	if out == nil {
		return data
	}
	return append(out, data[last:]...)
}

func decodeNumbers(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode parses an artifact keeping numbers as json.Number so values survive
// a round trip unchanged. Non finite floats decode as null.
func Decode(data []byte) (any, error) {
	return decodeNumbers(replaceNonFinite(data, func(string) string { return "null" }))
}

// PatchJSON patches a raw artifact and returns the re-encoded document.
// Non finite floats are written back as the same bare tokens.
func PatchJSON(data []byte) ([]byte, bool, error) {
	marked := replaceNonFinite(data, func(token string) string {
		quoted, _ := json.Marshal(nonFiniteMarker + token)
		return string(quoted)
	})
	doc, err := decodeNumbers(marked)
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse artifact: %w", err)
	}
	changed := Patch(doc)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return nil, false, fmt.Errorf("failed to encode artifact: %w", err)
	}
	out := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	for _, token := range nonFinite {
		quoted, _ := json.Marshal(nonFiniteMarker + token)
		out = bytes.ReplaceAll(out, quoted, []byte(token))
	}
	return out, changed, nil
}

// PatchFile patches an artifact on disk in place.
func PatchFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	out, changed, err := PatchJSON(data)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	if !changed {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}
