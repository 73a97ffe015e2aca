// Package preview renders complete, self-contained HTML documents around a
// compiled bundle, and renderable failure pages when there is no bundle.
// Every document is host-safe: it always produces visible content and
// reports its failures to the embedding frame over postMessage.
package preview

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/sketchlab-dev/previewd/internal/bundler"
	"github.com/sketchlab-dev/previewd/internal/config"
)

// Cross-frame protocol identifiers. The host matches on source to tell
// preview traffic apart from anything else posting to the parent frame.
const (
	SourceErrors  = "previewd"
	SourceConsole = "previewd-console"

	TypePreviewError = "preview-error"
)

// Assembler builds the final preview document around a bundle.
type Assembler struct {
	cfg    config.PreviewConfig
	tables bundler.Tables
}

// NewAssembler creates an assembler for the deployment's preview policy.
func NewAssembler(cfg config.PreviewConfig, tables bundler.Tables) *Assembler {
	return &Assembler{cfg: cfg, tables: tables}
}

// Assemble wraps bundle code into a complete HTML document: import map,
// error/console bridge (installed before any application code runs),
// simulated device chrome, and the mount node.
func (a *Assembler) Assemble(bundleCode string) (string, error) {
	importMap, err := a.ImportMapJSON()
	if err != nil {
		return "", fmt.Errorf("failed to build import map: %w", err)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString(`<meta charset="utf-8">` + "\n")
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1, viewport-fit=cover">` + "\n")
	b.WriteString("<title>Preview</title>\n")
	b.WriteString("<style>\n" + deviceChromeCSS + "</style>\n")
	b.WriteString(`<script type="importmap">` + "\n" + importMap + "\n</script>\n")
	// The bridge must be a classic script evaluated before the module
	// bundle: module scripts are deferred, classic scripts are not, so the
	// handlers are guaranteed to be installed first.
	b.WriteString("<script>\n" + bridgeScript + "</script>\n")
	b.WriteString("</head>\n<body>\n")
	b.WriteString(deviceChromeHTML)
	b.WriteString(`<script type="module">` + "\n" + escapeScriptContent(bundleCode) + "\n</script>\n")
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

// ImportMapJSON renders the import map binding every runtime-singleton and
// aliased-runtime specifier to a pinned CDN URL. Each URL declares the
// singleton packages as externally supplied, so externals-of-externals
// still resolve back through this map instead of bundling a second copy of
// the UI runtime.
func (a *Assembler) ImportMapJSON() (string, error) {
	imports := make(map[string]string)

	imports["react"] = a.pinnedURL("react", a.cfg.ReactVersion, "")
	imports["react/jsx-runtime"] = a.pinnedURL("react", a.cfg.ReactVersion, "jsx-runtime")
	imports["react/jsx-dev-runtime"] = a.pinnedURL("react", a.cfg.ReactVersion, "jsx-dev-runtime")
	imports["react-dom"] = a.pinnedURL("react-dom", a.cfg.ReactVersion, "")
	imports["react-dom/client"] = a.pinnedURL("react-dom", a.cfg.ReactVersion, "client")
	imports["scheduler"] = a.pinnedURL("scheduler", "", "")

	for name, target := range a.tables.AliasedRuntimes {
		version := ""
		if target == "react-native-web" {
			version = a.cfg.ReactNativeWebVersion
		}
		imports[name] = a.pinnedURL(target, version, "")
	}

	payload := map[string]map[string]string{"imports": imports}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// pinnedURL builds a CDN module URL with the singleton exclusion attached.
// A package never declares itself external, otherwise the CDN would emit a
// module that imports itself.
func (a *Assembler) pinnedURL(pkg, version, subpath string) string {
	u := a.cfg.CDNBaseURL + "/" + pkg
	if version != "" {
		u += "@" + version
	}
	if subpath != "" {
		u += "/" + subpath
	}
	var external []string
	for _, singleton := range a.tables.RuntimeSingletons {
		if singleton == pkg {
			continue
		}
		external = append(external, singleton)
	}
	if len(external) > 0 {
		u += "?external=" + url.QueryEscape(strings.Join(external, ","))
	}
	return u
}

// escapeScriptContent keeps embedded bundle text from terminating the
// enclosing script element early.
func escapeScriptContent(code string) string {
	code = strings.ReplaceAll(code, "</script", `<\/script`)
	return strings.ReplaceAll(code, "<!--", `<\!--`)
}

// bridgeScript forwards uncaught errors, unhandled rejections and console
// output to the parent frame, then calls through to the original behavior.
// The wildcard target is deliberate: the preview runs in an isolated,
// disposable frame and delivery matters more than origin narrowing here.
const bridgeScript = `(function () {
  function post(payload) {
    try { window.parent.postMessage(payload, "*"); } catch (e) {}
  }
  window.addEventListener("error", function (event) {
    post({
      source: "` + SourceErrors + `",
      type: "` + TypePreviewError + `",
      message: event.message || String(event.error || "Unknown error"),
      stack: event.error && event.error.stack ? String(event.error.stack) : undefined
    });
  });
  window.addEventListener("unhandledrejection", function (event) {
    var reason = event.reason;
    post({
      source: "` + SourceErrors + `",
      type: "` + TypePreviewError + `",
      message: reason && reason.message ? String(reason.message) : String(reason),
      stack: reason && reason.stack ? String(reason.stack) : undefined
    });
  });
  ["log", "warn", "error", "info"].forEach(function (level) {
    var original = console[level];
    console[level] = function () {
      var args = Array.prototype.slice.call(arguments);
      post({
        source: "` + SourceConsole + `",
        type: level,
        message: args.map(function (a) {
          if (typeof a === "string") return a;
          try { return JSON.stringify(a); } catch (e) { return String(a); }
        }).join(" ")
      });
      return original.apply(console, args);
    };
  });
})();
`

// deviceChromeHTML is the simulated device frame: a fixed status bar, the
// application mount node, and a home indicator. Purely presentational; the
// bundle only ever touches #root.
const deviceChromeHTML = `<div id="device">
  <div id="status-bar">
    <span id="status-clock">9:41</span>
    <span id="status-icons">&#9679;&#9679;&#9679;</span>
  </div>
  <div id="root"></div>
  <div id="home-indicator"><span></span></div>
</div>
`

// deviceChromeCSS reserves safe-area padding on the mount node so UI built
// against safe-area conventions renders without re-deriving insets.
const deviceChromeCSS = `html, body { margin: 0; height: 100%; background: #000; }
#device { display: flex; flex-direction: column; height: 100%; background: #fff; overflow: hidden; }
#status-bar {
  flex: none; height: 44px; display: flex; align-items: center;
  justify-content: space-between; padding: 0 16px;
  font: 600 14px -apple-system, "Segoe UI", Roboto, sans-serif;
  background: rgba(255, 255, 255, 0.92); z-index: 10;
}
#root {
  flex: 1 1 auto; overflow: auto; position: relative;
  padding-top: env(safe-area-inset-top, 0);
  padding-bottom: env(safe-area-inset-bottom, 0);
}
#home-indicator { flex: none; height: 34px; display: flex; align-items: center; justify-content: center; }
#home-indicator span { width: 134px; height: 5px; border-radius: 3px; background: #111; }
`
