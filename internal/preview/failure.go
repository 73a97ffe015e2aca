package preview

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/sketchlab-dev/previewd/internal/bundler"
)

// FailureKind names the renderable failure states of a preview request.
// The kind is stamped onto the document body as data-failure so the host
// can distinguish failure pages without parsing their text.
type FailureKind string

const (
	// FailureEmptyProject is an expected transient state, not an error:
	// the generation agent may still be writing files.
	FailureEmptyProject FailureKind = "empty-project"
	// FailureProjectNotFound means the project id has no row at all.
	FailureProjectNotFound FailureKind = "project-not-found"
	// FailureNoEntry means no file matched a conventional entry path.
	FailureNoEntry FailureKind = "missing-entry"
	// FailureCompile carries backend compiler diagnostics.
	FailureCompile FailureKind = "compile-error"
	// FailureStoreUnavailable is the only infrastructure-level failure.
	FailureStoreUnavailable FailureKind = "store-unavailable"
)

// RenderEmptyProject renders the informational empty-project page. No
// error message is posted to the host: an empty project is expected while
// files are still being generated.
func RenderEmptyProject() string {
	return renderPage(
		FailureEmptyProject,
		"Nothing here yet",
		"This project has no files. The preview will appear once code is generated.",
		"", // no bridge announcement
	)
}

// RenderProjectNotFound renders the unknown-project page.
func RenderProjectNotFound(projectID string) string {
	return renderPage(
		FailureProjectNotFound,
		"Project not found",
		fmt.Sprintf("No project exists with id %s.", projectID),
		"",
	)
}

// RenderNoEntry renders the missing-entry page and announces the failure
// over the same bridge channel used for runtime errors, so the host can
// offer the same remediation for build-time and run-time problems.
func RenderNoEntry() string {
	message := fmt.Sprintf(
		"No entry module found. Add one of: %s",
		strings.Join(bundler.EntryCandidates(), ", "),
	)
	return renderPage(FailureNoEntry, "Preview unavailable", message, message)
}

// RenderCompileFailure renders compiler diagnostics and announces them.
func RenderCompileFailure(buildErr *bundler.BuildError) string {
	var lines []string
	for _, d := range buildErr.Diagnostics {
		if d.Path != "" {
			lines = append(lines, fmt.Sprintf("%s:%d: %s", d.Path, d.Line, d.Message))
		} else {
			lines = append(lines, d.Message)
		}
	}
	message := "Build failed:\n" + strings.Join(lines, "\n")
	return renderPage(FailureCompile, "Build failed", message, message)
}

// RenderStoreUnavailable renders the infrastructure-failure page. The
// message body stays generic: store internals are not safe to display.
func RenderStoreUnavailable() string {
	message := "The preview service could not load this project. Please try again."
	return renderPage(FailureStoreUnavailable, "Preview unavailable", message, message)
}

// renderPage produces a complete failure/info document for one failure
// kind. When announce is non-empty, an inline script immediately posts it
// as a preview error, in the exact shape the runtime bridge uses.
func renderPage(kind FailureKind, title, message, announce string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString(`<meta charset="utf-8">` + "\n")
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">` + "\n")
	b.WriteString("<title>" + html.EscapeString(title) + "</title>\n")
	b.WriteString("<style>\n" + failurePageCSS + "</style>\n")
	b.WriteString("</head>\n")
	b.WriteString(fmt.Sprintf("<body data-failure=%q>\n", string(kind)))
	b.WriteString(`<div id="panel">` + "\n")
	b.WriteString("<h1>" + html.EscapeString(title) + "</h1>\n")
	b.WriteString("<pre>" + html.EscapeString(message) + "</pre>\n")
	b.WriteString("</div>\n")
	if announce != "" {
		payload, err := json.Marshal(map[string]string{
			"source":  SourceErrors,
			"type":    TypePreviewError,
			"message": announce,
		})
		if err == nil {
			b.WriteString("<script>\n")
			b.WriteString(fmt.Sprintf("try { window.parent.postMessage(%s, \"*\"); } catch (e) {}\n",
				escapeScriptContent(string(payload))))
			b.WriteString("</script>\n")
		}
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

const failurePageCSS = `html, body { margin: 0; height: 100%; background: #f6f6f7; }
#panel {
  max-width: 480px; margin: 15vh auto 0; padding: 24px;
  font: 14px/1.5 -apple-system, "Segoe UI", Roboto, sans-serif; color: #1c1c1e;
}
#panel h1 { font-size: 18px; margin: 0 0 12px; }
#panel pre { white-space: pre-wrap; word-break: break-word; color: #555; margin: 0; }
`
