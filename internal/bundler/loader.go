package bundler

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Module is a loaded virtual module: its source text plus the dialect the
// compiler should parse it as.
type Module struct {
	Contents string
	Loader   api.Loader
}

// Load fetches a canonical path from the snapshot and picks its dialect.
func Load(path string, snap Snapshot) (Module, error) {
	contents, ok := snap.Lookup(path)
	if !ok {
		return Module{}, fmt.Errorf("virtual module %q missing from snapshot", path)
	}
	// Declaration files carry types only; feed the compiler an empty module
	// so value imports of them do not fail.
	if strings.HasSuffix(path, ".d.ts") {
		return Module{Contents: "export {};", Loader: api.LoaderTS}, nil
	}
	return Module{Contents: contents, Loader: loaderForPath(path)}, nil
}

// loaderForPath maps a file extension to a source dialect. Unknown
// extensions default to the richest dialect (TSX): generated code often
// omits conventional extensions and markup-flavored parsing accepts the
// widest range of it.
func loaderForPath(path string) api.Loader {
	switch {
	case strings.HasSuffix(path, ".tsx"):
		return api.LoaderTSX
	case strings.HasSuffix(path, ".jsx"):
		return api.LoaderJSX
	case strings.HasSuffix(path, ".ts"), strings.HasSuffix(path, ".mts"):
		return api.LoaderTS
	case strings.HasSuffix(path, ".js"), strings.HasSuffix(path, ".mjs"):
		return api.LoaderJS
	case strings.HasSuffix(path, ".json"):
		return api.LoaderJSON
	default:
		return api.LoaderTSX
	}
}

// stubNamedExports are the commonly-destructured names from the icon and
// vector-icon package family, the most frequent source of unsupported-import
// breakage. They are enumerated because ESM static linking cannot satisfy a
// destructured named import from a dynamic default export alone.
var stubNamedExports = []string{
	"Ionicons",
	"MaterialIcons",
	"MaterialCommunityIcons",
	"FontAwesome",
	"FontAwesome5",
	"Feather",
	"AntDesign",
	"Entypo",
}

// StubModuleSource synthesizes the replacement for a module with no
// sandboxed equivalent. The default export is a pass-through Proxy whose
// property accesses all yield a callable no-op, so arbitrary usage of the
// unsupported package degrades to harmless no-ops instead of throwing.
func StubModuleSource(specifier string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// previewd stub for %q\n", specifier)
	b.WriteString("const __noop = () => null;\n")
	b.WriteString("const __stub = new Proxy(function () { return null; }, {\n")
	b.WriteString("  get: () => __noop,\n")
	b.WriteString("  apply: () => null,\n")
	b.WriteString("});\n")
	b.WriteString("export default __stub;\n")
	for _, name := range stubNamedExports {
		fmt.Fprintf(&b, "export const %s = __noop;\n", name)
	}
	b.WriteString("export function createIconSet() { return __noop; }\n")
	return b.String()
}
