// Package filter decides whether a file-system event should start a render,
// stop a render, or be ignored. It holds no state and performs no I/O.
package filter

import (
	"path/filepath"
	"sort"
	"strings"
)

// Action is the kind of change a notification source reported.
type Action int

const (
	ActionUnknown Action = iota
	ActionAdd
	ActionModified
	ActionDelete
	ActionMoved
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "Add"
	case ActionModified:
		return "Modified"
	case ActionDelete:
		return "Delete"
	case ActionMoved:
		return "Moved"
	default:
		return "Bad Action"
	}
}

// Decision is the routing outcome for one event.
type Decision int

const (
	Ignore Decision = iota
	Render
	StopRender
)

func (d Decision) String() string {
	switch d {
	case Render:
		return "render"
	case StopRender:
		return "stop_render"
	default:
		return "ignore"
	}
}

// Set is a read-only membership set of extensions or directory names.
type Set map[string]struct{}

// NewSet builds a Set from items.
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

func (s Set) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for item := range s {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// NormalizeExtension strips a single leading dot, so ".bsz" and "bsz" compare equal.
func NormalizeExtension(ext string) string {
	return strings.TrimPrefix(ext, ".")
}

// Extension returns the suffix of the file name after its last dot, without the dot.
// Case is preserved.
func Extension(path string) string {
	return NormalizeExtension(filepath.Ext(path))
}

// ParentDir returns the base name of the directory that directly contains path.
func ParentDir(path string) string {
	return filepath.Base(filepath.Dir(path))
}

// Rules bundles everything Classify needs for one event.
type Rules struct {
	Extensions  Set
	IgnoredDirs Set

	// Patterns and Root are optional. When Patterns is set, paths relative to
	// Root that match are ignored.
	Patterns *Patterns
	Root     string
}

// Classify applies the rules in order: ignored parent directory, ignore
// patterns, then action and extension.
func (r Rules) Classify(path string, action Action) Decision {
	if r.IgnoredDirs.Has(ParentDir(path)) {
		return Ignore
	}
	if r.Patterns.Matches(r.Root, path) {
		return Ignore
	}
	if !r.Extensions.Has(Extension(path)) {
		return Ignore
	}

	switch action {
	case ActionDelete:
		return StopRender
	case ActionAdd, ActionModified:
		return Render
	default:
		// Moved and unknown actions are not routed; rename tracking is not supported.
		return Ignore
	}
}

// Classify is Rules.Classify without ignore patterns.
func Classify(path string, action Action, extensions, ignoredDirs Set) Decision {
	return Rules{Extensions: extensions, IgnoredDirs: ignoredDirs}.Classify(path, action)
}
