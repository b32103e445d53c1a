// Package storage abstracts the remote artifact store benchmark results are
// uploaded to and gathered from. A namespace is an opaque string, one per
// (backend, hardware, subset, machine) cell.
package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// ErrNotFound is returned for a missing namespace or object.
var ErrNotFound = errors.New("not found")

// Store is the minimal contract the runners, gatherer and leaderboard need.
type Store interface {
	// Exists reports whether a namespace has been created.
	Exists(ctx context.Context, namespace string) (bool, error)
	// Ensure creates a namespace if it does not exist yet.
	Ensure(ctx context.Context, namespace string) error
	// List returns the sorted object paths in a namespace that match pattern.
	List(ctx context.Context, namespace, pattern string) ([]string, error)
	// Get reads an object. Missing objects yield ErrNotFound.
	Get(ctx context.Context, namespace, path string) ([]byte, error)
	// Put writes an object, replacing any previous content.
	Put(ctx context.Context, namespace, path string, data []byte) error
}

// Match reports whether a slash separated path matches a pattern where "*"
// matches within one segment and a "**" segment matches zero or more segments.
func Match(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pattern, name []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			for i := 0; i <= len(name); i++ {
				if matchSegments(rest, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 || !matchSegment(pattern[0], name[0]) {
			return false
		}
		pattern, name = pattern[1:], name[1:]
	}
	return len(name) == 0
}

// matchSegment handles "*" wildcards inside a single segment.
func matchSegment(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, p := range parts[1 : len(parts)-1] {
		i := strings.Index(s, p)
		if i < 0 {
			return false
		}
		s = s[i+len(p):]
	}
	return strings.HasSuffix(s, last)
}

func filterSorted(paths []string, pattern string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if pattern == "" || Match(pattern, p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
