package preview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchlab-dev/previewd/internal/bundler"
)

func TestRenderEmptyProject(t *testing.T) {
	doc := RenderEmptyProject()

	assert.Contains(t, doc, "Nothing here yet")
	assert.Contains(t, doc, "no files")
	// An empty project is expected, not an error: nothing is announced.
	assert.NotContains(t, doc, "postMessage")
}

func TestRenderProjectNotFound(t *testing.T) {
	doc := RenderProjectNotFound("2b1e9f3c-0000-0000-0000-000000000000")

	assert.Contains(t, doc, "Project not found")
	assert.Contains(t, doc, "2b1e9f3c-0000-0000-0000-000000000000")
	assert.NotContains(t, doc, "postMessage")
}

func TestRenderNoEntry(t *testing.T) {
	doc := RenderNoEntry()

	assert.Contains(t, doc, "No entry module found")
	assert.Contains(t, doc, "/App.tsx")

	// The missing entry is announced over the error channel in the same
	// shape the runtime bridge uses.
	assert.Contains(t, doc, "postMessage")
	assert.Contains(t, doc, SourceErrors)
	assert.Contains(t, doc, TypePreviewError)
}

func TestRenderCompileFailure(t *testing.T) {
	buildErr := &bundler.BuildError{Diagnostics: []bundler.Diagnostic{
		{Message: "Unexpected token", Path: "/App.tsx", Line: 7},
		{Message: "could not resolve input"},
	}}

	doc := RenderCompileFailure(buildErr)

	assert.Contains(t, doc, "Build failed")
	assert.Contains(t, doc, "/App.tsx:7: Unexpected token")
	assert.Contains(t, doc, "could not resolve input")
	assert.Contains(t, doc, "postMessage")
}

func TestRenderCompileFailure_EscapesDiagnostics(t *testing.T) {
	buildErr := &bundler.BuildError{Diagnostics: []bundler.Diagnostic{
		{Message: `Unexpected "<script>" in source`},
	}}

	doc := RenderCompileFailure(buildErr)

	assert.NotContains(t, doc, "<pre>Build failed:\nUnexpected \"<script>\"")
	assert.Contains(t, doc, "&lt;script&gt;")
}

func TestRenderStoreUnavailable(t *testing.T) {
	doc := RenderStoreUnavailable()

	assert.Contains(t, doc, "try again")
	assert.Contains(t, doc, "postMessage")
	// Infrastructure detail never leaks into the page.
	assert.NotContains(t, strings.ToLower(doc), "postgres")
	assert.NotContains(t, strings.ToLower(doc), "database")
}

func TestRenderedPagesAreCompleteDocuments(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":       RenderEmptyProject(),
		"not-found":   RenderProjectNotFound("x"),
		"no-entry":    RenderNoEntry(),
		"unavailable": RenderStoreUnavailable(),
	} {
		t.Run(name, func(t *testing.T) {
			require.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
			assert.Contains(t, doc, "</html>")
			assert.Contains(t, doc, `<meta charset="utf-8">`)
		})
	}
}

func TestRenderedPagesCarryFailureKind(t *testing.T) {
	compile := RenderCompileFailure(&bundler.BuildError{
		Diagnostics: []bundler.Diagnostic{{Message: "boom"}},
	})

	for name, tc := range map[string]struct {
		doc  string
		kind FailureKind
	}{
		"empty":       {RenderEmptyProject(), FailureEmptyProject},
		"not-found":   {RenderProjectNotFound("x"), FailureProjectNotFound},
		"no-entry":    {RenderNoEntry(), FailureNoEntry},
		"compile":     {compile, FailureCompile},
		"unavailable": {RenderStoreUnavailable(), FailureStoreUnavailable},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, tc.doc, `<body data-failure="`+string(tc.kind)+`">`)
		})
	}
}
