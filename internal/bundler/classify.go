package bundler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sketchlab-dev/previewd/internal/config"
)

// ResolutionKind tags the outcome of classifying a module specifier.
type ResolutionKind int

const (
	// KindVirtual resolves to a file inside the snapshot.
	KindVirtual ResolutionKind = iota
	// KindExternal is left unresolved for the host document's import map.
	KindExternal
	// KindStub is replaced by a synthesized inert module.
	KindStub
	// KindRemoteFallback is rewritten to a remote ES-module URL.
	KindRemoteFallback
)

func (k ResolutionKind) String() string {
	switch k {
	case KindVirtual:
		return "virtual"
	case KindExternal:
		return "external"
	case KindStub:
		return "stub"
	case KindRemoteFallback:
		return "remote-fallback"
	default:
		return "unknown"
	}
}

// Resolution is the result of classifying one specifier. Path carries the
// canonical snapshot path (virtual), the bare specifier (external), the
// original specifier (stub) or the rewritten URL (remote fallback).
type Resolution struct {
	Kind ResolutionKind
	Path string
}

// ResolutionError reports a relative or aliased import with no matching
// file in the snapshot. This is an authoring error and must surface as a
// compile diagnostic, never be silently stubbed.
type ResolutionError struct {
	Importer  string
	Specifier string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("module %q imported by %q does not exist in the project", e.Specifier, e.Importer)
}

// sourceExtensions are probed, in order, when a path has no direct hit.
var sourceExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".mjs", ".json"}

// stylesheetExtensions never bundle; styling in this ecosystem is expressed
// as style objects, not external stylesheets.
var stylesheetExtensions = []string{".css", ".scss", ".sass", ".less"}

// Tables are the fixed classification sets computed from deployment
// configuration. They are static for the lifetime of the process and are
// the single place platform policy lives.
type Tables struct {
	// RuntimeSingletons must always resolve as external so exactly one
	// instance of the UI runtime is shared by the bundle and everything the
	// import map loads. Matching covers sub-paths ("react/jsx-runtime").
	RuntimeSingletons []string
	// AliasedRuntimes are cross-platform toolkit names with a
	// browser-compatible implementation bound in the import map.
	AliasedRuntimes map[string]string
	// UnsupportedNatives have no browser equivalent and are stubbed,
	// sub-paths included.
	UnsupportedNatives []string
	// CDNBaseURL serves remote fallbacks for unknown bare specifiers.
	CDNBaseURL string
}

// DefaultTables builds the classification tables for a deployment.
func DefaultTables(cfg config.PreviewConfig) Tables {
	return Tables{
		RuntimeSingletons: []string{"react", "react-dom", "scheduler"},
		AliasedRuntimes: map[string]string{
			"react-native":                   "react-native-web",
			"react-native-web":               "react-native-web",
			"react-native-safe-area-context": "react-native-safe-area-context",
		},
		UnsupportedNatives: []string{
			"react-native-gesture-handler",
			"react-native-reanimated",
			"react-native-vector-icons",
			"@expo/vector-icons",
			"expo-av",
			"expo-camera",
			"expo-file-system",
			"expo-haptics",
			"expo-location",
			"expo-secure-store",
			"expo-sensors",
		},
		CDNBaseURL: cfg.CDNBaseURL,
	}
}

// rule is one step of the classification precedence chain. ok reports
// whether the rule claimed the specifier.
type rule struct {
	name  string
	apply func(c *Classifier, importer, specifier string, snap Snapshot) (Resolution, bool, error)
}

// Classifier decides how each module specifier is satisfied. Classification
// is a pure function of (importer, specifier, snapshot, tables): no state is
// read or written, so concurrent requests share a Classifier freely and
// repeated bundling of the same snapshot is reproducible.
type Classifier struct {
	tables Tables
	rules  []rule
}

// NewClassifier builds a classifier with the canonical rule order. The
// order encodes precedence and must not be rearranged: a project file named
// "react" must still lose to the singleton rule, and an unsupported native
// must be stubbed before bare-specifier fallback can claim it.
func NewClassifier(tables Tables) *Classifier {
	return &Classifier{
		tables: tables,
		rules: []rule{
			{"remote-url-passthrough", (*Classifier).passThroughRemoteURL},
			{"runtime-singleton", (*Classifier).externalizeSingleton},
			{"aliased-runtime", (*Classifier).externalizeAliasedRuntime},
			{"unsupported-native", (*Classifier).stubUnsupportedNative},
			{"stylesheet-asset", (*Classifier).stubStylesheet},
			{"relative-path", (*Classifier).resolveRelative},
			{"rooted-path", (*Classifier).resolveRooted},
			{"bare-fallback", (*Classifier).remoteFallback},
		},
	}
}

// Tables returns the classification tables in use.
func (c *Classifier) Tables() Tables {
	return c.tables
}

// RuleNames returns the rule chain in evaluation order.
func (c *Classifier) RuleNames() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.name
	}
	return names
}

// Classify resolves one specifier as seen from the importing module's
// canonical path. First matching rule wins; the bare-specifier fallback is
// total, so the only possible error is a relative/aliased miss.
func (c *Classifier) Classify(importer, specifier string, snap Snapshot) (Resolution, error) {
	for _, r := range c.rules {
		res, ok, err := r.apply(c, importer, specifier, snap)
		if err != nil {
			return Resolution{}, err
		}
		if ok {
			return res, nil
		}
	}
	// Unreachable: remoteFallback claims everything that gets to it.
	return Resolution{}, &ResolutionError{Importer: importer, Specifier: specifier}
}

func (c *Classifier) passThroughRemoteURL(_, specifier string, _ Snapshot) (Resolution, bool, error) {
	if strings.HasPrefix(specifier, "https://") || strings.HasPrefix(specifier, "http://") {
		return Resolution{Kind: KindExternal, Path: specifier}, true, nil
	}
	return Resolution{}, false, nil
}

func (c *Classifier) externalizeSingleton(_, specifier string, _ Snapshot) (Resolution, bool, error) {
	if matchesPackage(specifier, c.tables.RuntimeSingletons) {
		// Kept bare: the host import map resolves every occurrence to the
		// same module instance.
		return Resolution{Kind: KindExternal, Path: specifier}, true, nil
	}
	return Resolution{}, false, nil
}

func (c *Classifier) externalizeAliasedRuntime(_, specifier string, _ Snapshot) (Resolution, bool, error) {
	if _, ok := c.tables.AliasedRuntimes[specifier]; ok {
		return Resolution{Kind: KindExternal, Path: specifier}, true, nil
	}
	return Resolution{}, false, nil
}

func (c *Classifier) stubUnsupportedNative(_, specifier string, _ Snapshot) (Resolution, bool, error) {
	if matchesPackage(specifier, c.tables.UnsupportedNatives) {
		return Resolution{Kind: KindStub, Path: specifier}, true, nil
	}
	return Resolution{}, false, nil
}

func (c *Classifier) stubStylesheet(_, specifier string, _ Snapshot) (Resolution, bool, error) {
	for _, ext := range stylesheetExtensions {
		if strings.HasSuffix(specifier, ext) {
			return Resolution{Kind: KindStub, Path: specifier}, true, nil
		}
	}
	return Resolution{}, false, nil
}

func (c *Classifier) resolveRelative(importer, specifier string, snap Snapshot) (Resolution, bool, error) {
	if !IsRelative(specifier) {
		return Resolution{}, false, nil
	}
	candidate := Normalize(importer, specifier)
	if hit, ok := probe(candidate, snap); ok {
		return Resolution{Kind: KindVirtual, Path: hit}, true, nil
	}
	// A missing local file is a real authoring error, not something to
	// paper over with a stub.
	return Resolution{}, false, &ResolutionError{Importer: importer, Specifier: specifier}
}

func (c *Classifier) resolveRooted(importer, specifier string, snap Snapshot) (Resolution, bool, error) {
	if !strings.HasPrefix(specifier, "/") && !IsAliased(specifier) {
		return Resolution{}, false, nil
	}
	candidate := Normalize(importer, specifier)
	if hit, ok := probe(candidate, snap); ok {
		return Resolution{Kind: KindVirtual, Path: hit}, true, nil
	}
	return Resolution{}, false, &ResolutionError{Importer: importer, Specifier: specifier}
}

func (c *Classifier) remoteFallback(_, specifier string, _ Snapshot) (Resolution, bool, error) {
	// Versionless remote rewrite. Declaring the runtime singletons as
	// externally supplied keeps the remote copy from bundling its own UI
	// runtime instance.
	rewritten := fmt.Sprintf("%s/%s?external=%s",
		c.tables.CDNBaseURL,
		specifier,
		url.QueryEscape(strings.Join(c.tables.RuntimeSingletons, ",")))
	return Resolution{Kind: KindRemoteFallback, Path: rewritten}, true, nil
}

// probe attempts, in order: the exact path, the path with each known source
// extension appended, then each index file inside the path. First hit wins.
func probe(candidate string, snap Snapshot) (string, bool) {
	if _, ok := snap.Lookup(candidate); ok {
		return candidate, true
	}
	for _, ext := range sourceExtensions {
		if _, ok := snap.Lookup(candidate + ext); ok {
			return candidate + ext, true
		}
	}
	base := strings.TrimSuffix(candidate, "/")
	for _, ext := range sourceExtensions {
		indexPath := base + "/index" + ext
		if _, ok := snap.Lookup(indexPath); ok {
			return indexPath, true
		}
	}
	return "", false
}

// matchesPackage reports whether the specifier is the package itself or a
// sub-path of it ("react-dom/client" matches "react-dom"; "react-dominator"
// does not).
func matchesPackage(specifier string, packages []string) bool {
	for _, pkg := range packages {
		if specifier == pkg || strings.HasPrefix(specifier, pkg+"/") {
			return true
		}
	}
	return false
}
