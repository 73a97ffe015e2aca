// Package bundler turns a stored project into a single executable ES-module
// bundle. A project has no filesystem presence: its files are fetched from
// the store, held in an in-memory snapshot, and resolved against fixed
// classification tables that decide which imports are bundled, externalized
// to the host import map, stubbed, or rewritten to a CDN fallback.
package bundler

import "sort"

// SyntheticEntryPath is the reserved virtual path for the generated mount
// module. It is inserted into the snapshot before bundling so the loader
// treats it exactly like a user file.
const SyntheticEntryPath = "/.previewd-entry.tsx"

// Snapshot is an immutable in-memory view of a project's files, keyed by
// canonical virtual path. It is built once per request and discarded with
// the request; the only post-construction insertion is the synthetic entry.
type Snapshot map[string]string

// NewSnapshot builds a snapshot from raw path/content pairs. Paths are
// normalized to canonical form ("/a/b.tsx", no "."/".." segments) so later
// lookups are exact map hits.
func NewSnapshot(files map[string]string) Snapshot {
	snap := make(Snapshot, len(files))
	for path, content := range files {
		snap[CanonicalPath(path)] = content
	}
	return snap
}

// Lookup returns the content stored under a canonical path.
func (s Snapshot) Lookup(path string) (string, bool) {
	content, ok := s[path]
	return content, ok
}

// Insert adds a module under a canonical path. Used only for the synthetic
// entry module; user files never change after construction.
func (s Snapshot) Insert(path, content string) {
	s[CanonicalPath(path)] = content
}

// Paths returns the canonical paths in sorted order.
func (s Snapshot) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
