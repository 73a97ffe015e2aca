package bundler

import (
	"context"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/sketchlab-dev/previewd/internal/config"
)

const virtualNamespace = "virtual"
const stubNamespace = "stub"

// Diagnostic is one compiler message mapped back to a virtual path.
type Diagnostic struct {
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// BuildError carries the structured failure of a compile.
type BuildError struct {
	Diagnostics []Diagnostic
}

func (e *BuildError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		if d.Path != "" {
			msgs[i] = fmt.Sprintf("%s:%d: %s", d.Path, d.Line, d.Message)
		} else {
			msgs[i] = d.Message
		}
	}
	return "bundle failed: " + strings.Join(msgs, "; ")
}

// Artifact is a successful single-file ES-module bundle. Never persisted;
// it lives for the duration of one request.
type Artifact struct {
	Code string
}

// Builder drives the compile backend over a project snapshot. Stateless
// apart from its fixed configuration, so one Builder serves all requests.
type Builder struct {
	classifier *Classifier
	maxSize    int
}

// NewBuilder creates a builder with the deployment's classification tables.
func NewBuilder(cfg config.PreviewConfig) *Builder {
	return &Builder{
		classifier: NewClassifier(DefaultTables(cfg)),
		maxSize:    cfg.MaxBundleSize,
	}
}

// Classifier exposes the resolution policy, mainly for the assembler and
// for tests.
func (b *Builder) Classifier() *Classifier {
	return b.classifier
}

// Build synthesizes the entry module and compiles the snapshot into one
// ES-module bundle. The compile itself is a single synchronous backend
// call; the context only bounds how long this request is willing to wait.
// On timeout the in-flight compile is abandoned and no partial artifact is
// returned.
func (b *Builder) Build(ctx context.Context, snap Snapshot) (*Artifact, error) {
	entryPath, err := SynthesizeEntry(snap)
	if err != nil {
		log.Debug().Strs("paths", snap.Paths()).Msg("No conventional entry module in snapshot")
		return nil, err
	}

	type outcome struct {
		artifact *Artifact
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		artifact, err := b.compile(entryPath, snap)
		done <- outcome{artifact, err}
	}()

	select {
	case <-ctx.Done():
		log.Warn().Str("entry", entryPath).Msg("Bundle abandoned: request context cancelled")
		return nil, ctx.Err()
	case out := <-done:
		return out.artifact, out.err
	}
}

func (b *Builder) compile(entryPath string, snap Snapshot) (*Artifact, error) {
	result := api.Build(api.BuildOptions{
		EntryPoints: []string{entryPath},
		Bundle:      true,
		Write:       false,
		Format:      api.FormatESModule,
		Platform:    api.PlatformBrowser,
		Target:      api.ESNext,
		JSX:         api.JSXAutomatic,
		Outdir:      "/bundle",
		LogLevel:    api.LogLevelSilent,
		// Generated code conventionally reads these two globals; predefining
		// them keeps the compile free of ambient process state.
		Define: map[string]string{
			"__DEV__":              "true",
			"process.env.NODE_ENV": `"development"`,
			"process.env":          "{}",
		},
		Plugins: []api.Plugin{b.snapshotPlugin(snap)},
	})

	if len(result.Errors) > 0 {
		return nil, &BuildError{Diagnostics: diagnosticsFromMessages(result.Errors)}
	}
	if len(result.OutputFiles) == 0 {
		return nil, &BuildError{Diagnostics: []Diagnostic{{Message: "compiler produced no output"}}}
	}

	code := string(result.OutputFiles[0].Contents)
	if len(code) > b.maxSize {
		return nil, &BuildError{Diagnostics: []Diagnostic{{
			Message: fmt.Sprintf("bundle exceeds %d byte limit (got %d bytes)", b.maxSize, len(code)),
		}}}
	}

	log.Debug().
		Str("entry", entryPath).
		Int("modules", len(snap)).
		Int("bytes", len(code)).
		Msg("Bundle compiled")

	return &Artifact{Code: code}, nil
}

// snapshotPlugin wires the classifier and virtual loader into the backend
// as its resolver/loader pair. Everything the classifier marks external is
// left for the host import map; stubs and snapshot files load from memory.
func (b *Builder) snapshotPlugin(snap Snapshot) api.Plugin {
	return api.Plugin{
		Name: "previewd-snapshot",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					// The synthetic entry arrives as a raw path, not via an
					// import statement.
					if args.Kind == api.ResolveEntryPoint {
						return api.OnResolveResult{Path: CanonicalPath(args.Path), Namespace: virtualNamespace}, nil
					}

					res, err := b.classifier.Classify(args.Importer, args.Path, snap)
					if err != nil {
						return api.OnResolveResult{}, err
					}
					switch res.Kind {
					case KindVirtual:
						return api.OnResolveResult{Path: res.Path, Namespace: virtualNamespace}, nil
					case KindStub:
						return api.OnResolveResult{Path: res.Path, Namespace: stubNamespace}, nil
					default: // KindExternal, KindRemoteFallback
						return api.OnResolveResult{Path: res.Path, External: true}, nil
					}
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: virtualNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					mod, err := Load(args.Path, snap)
					if err != nil {
						return api.OnLoadResult{}, err
					}
					return api.OnLoadResult{Contents: &mod.Contents, Loader: mod.Loader}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: stubNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					contents := StubModuleSource(args.Path)
					return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS}, nil
				})
		},
	}
}

func diagnosticsFromMessages(messages []api.Message) []Diagnostic {
	diags := make([]Diagnostic, 0, len(messages))
	for _, msg := range messages {
		d := Diagnostic{Message: msg.Text}
		if msg.Location != nil {
			d.Path = strings.TrimPrefix(msg.Location.File, virtualNamespace+":")
			d.Line = msg.Location.Line
		}
		diags = append(diags, d)
	}
	return diags
}
