// Package vault defines the data model shared by the scanner, planner and
// executor: canonical vault paths, local/remote entries, and the
// persisted snapshot of the last known-synced state.
package vault

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Path is a validated, NFC-normalized, forward-slash path relative to the
// vault root (for local entries) or the remote base (for remote entries).
// It never carries a leading slash, "." or ".." components, or repeated
// separators, so it can be compared and used as a map key across both
// sides of the sync without further cleaning.
type Path struct {
	s string
}

// NewPath validates and normalizes raw into a Path. Backslashes are
// rejected rather than translated, since a literal backslash in a path
// component is either a Windows separator leaking in from the wrong layer
// or a legitimate character that normalization must not silently eat.
func NewPath(raw string) (Path, error) {
	if raw == "" {
		return Path{}, fmt.Errorf("vault: empty path")
	}
	if strings.Contains(raw, "\\") {
		return Path{}, fmt.Errorf("vault: path %q contains a backslash", raw)
	}

	clean := strings.TrimPrefix(raw, "/")
	parts := strings.Split(clean, "/")
	normalized := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p {
		case "":
			return Path{}, fmt.Errorf("vault: path %q has an empty component", raw)
		case ".", "..":
			return Path{}, fmt.Errorf("vault: path %q contains a %q component", raw, p)
		}
		normalized = append(normalized, norm.NFC.String(p))
	}

	return Path{s: strings.Join(normalized, "/")}, nil
}

// MustPath is NewPath for callers that already know raw is well-formed,
// such as test fixtures and compile-time constants.
func MustPath(raw string) Path {
	p, err := NewPath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the canonical forward-slash representation.
func (p Path) String() string { return p.s }

// IsZero reports whether p is the zero value (never a valid vault path).
func (p Path) IsZero() bool { return p.s == "" }

// Dir returns the parent path, or the zero Path if p has no parent.
func (p Path) Dir() Path {
	idx := strings.LastIndexByte(p.s, '/')
	if idx < 0 {
		return Path{}
	}
	return Path{s: p.s[:idx]}
}

// Base returns the final path component.
func (p Path) Base() string {
	idx := strings.LastIndexByte(p.s, '/')
	if idx < 0 {
		return p.s
	}
	return p.s[idx+1:]
}

// Depth returns the number of path components.
func (p Path) Depth() int {
	if p.s == "" {
		return 0
	}
	return strings.Count(p.s, "/") + 1
}

// HasPrefix reports whether p is dir itself or nested under it.
func (p Path) HasPrefix(dir Path) bool {
	if dir.s == "" {
		return true
	}
	return p.s == dir.s || strings.HasPrefix(p.s, dir.s+"/")
}
