package bundler

import "strings"

// aliasPrefixes rewrites alias specifiers to root-relative paths. This is a
// deployment-level table, not project configuration: resolution must stay a
// total, side-effect-free function of its inputs, so the table is never
// inferred from files inside the snapshot.
var aliasPrefixes = map[string]string{
	"@/": "/",
	"~/": "/",
}

// CanonicalPath normalizes a stored file path into canonical virtual form:
// a single leading separator, no empty, "." or ".." segments.
func CanonicalPath(path string) string {
	return joinSegments(splitSegments(path))
}

// Normalize resolves a relative, root-relative or aliased specifier against
// the importing module's canonical path. ".." segments that would pop past
// the root are a no-op rather than an error: generated code produces such
// paths occasionally and previously-working projects must not regress.
func Normalize(basePath, specifier string) string {
	specifier = RewriteAlias(specifier)

	if strings.HasPrefix(specifier, "/") {
		return joinSegments(splitSegments(specifier))
	}

	// Relative: resolve against the directory of the importing module.
	// The segments are joined before normalizing so ".." in the specifier
	// pops base directories, not just segments of the specifier itself.
	base := splitSegments(basePath)
	if len(base) > 0 {
		base = base[:len(base)-1]
	}
	combined := strings.Join(base, "/") + "/" + specifier
	return joinSegments(splitSegments(combined))
}

// RewriteAlias maps alias-prefixed specifiers ("@/x", "~/x") to their
// root-relative form. Non-aliased specifiers pass through unchanged.
func RewriteAlias(specifier string) string {
	for prefix, root := range aliasPrefixes {
		if strings.HasPrefix(specifier, prefix) {
			return root + strings.TrimPrefix(specifier, prefix)
		}
	}
	return specifier
}

// IsRelative reports whether the specifier starts with a relative marker.
func IsRelative(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") ||
		specifier == "." || specifier == ".."
}

// IsAliased reports whether the specifier uses a configured alias prefix.
func IsAliased(specifier string) bool {
	for prefix := range aliasPrefixes {
		if strings.HasPrefix(specifier, prefix) {
			return true
		}
	}
	return false
}

// splitSegments splits a path into meaningful segments, applying "." and
// ".." as it goes. Popping past the root drops the segment silently.
func splitSegments(path string) []string {
	var stack []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
			// skip
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}
	return stack
}

func joinSegments(segments []string) string {
	return "/" + strings.Join(segments, "/")
}
