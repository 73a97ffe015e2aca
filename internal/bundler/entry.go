package bundler

import (
	"errors"
	"fmt"
)

// ErrNoEntry means the project has files but none at a conventional entry
// path. The project is not in a previewable state; guessing an arbitrary
// file would produce confusing, non-reproducible previews.
var ErrNoEntry = errors.New("no entry module found")

// entryCandidates are the conventional entry paths, probed in order.
var entryCandidates = []string{
	"/App.tsx",
	"/App.jsx",
	"/App.ts",
	"/App.js",
	"/index.tsx",
	"/index.js",
	"/src/App.tsx",
	"/src/App.jsx",
}

// EntryCandidates returns the conventional entry paths in probe order.
func EntryCandidates() []string {
	out := make([]string, len(entryCandidates))
	copy(out, entryCandidates)
	return out
}

// SynthesizeEntry locates the application root and inserts a synthetic
// mount module into the snapshot under the reserved path. The synthetic
// module imports the root's default export and mounts it into the fixed
// DOM node using the externally-supplied renderer, wrapped in StrictMode,
// so every preview shares one deterministic mount sequence.
func SynthesizeEntry(snap Snapshot) (string, error) {
	appPath := ""
	for _, candidate := range entryCandidates {
		if _, ok := snap.Lookup(candidate); ok {
			appPath = candidate
			break
		}
	}
	if appPath == "" {
		return "", ErrNoEntry
	}

	snap.Insert(SyntheticEntryPath, mountModuleSource(appPath))
	return SyntheticEntryPath, nil
}

func mountModuleSource(appPath string) string {
	return fmt.Sprintf(`import React from "react";
import { createRoot } from "react-dom/client";
import App from %q;

const container = document.getElementById("root");
createRoot(container).render(
  React.createElement(React.StrictMode, null, React.createElement(App))
);
`, appPath)
}
