package preview

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchlab-dev/previewd/internal/bundler"
	"github.com/sketchlab-dev/previewd/internal/config"
)

func testAssembler(t *testing.T) *Assembler {
	t.Helper()
	cfg := config.PreviewConfig{
		CDNBaseURL:            "https://esm.sh",
		ReactVersion:          "18.2.0",
		ReactNativeWebVersion: "0.19.10",
		BundleTimeout:         30 * time.Second,
		MaxBundleSize:         10 * 1024 * 1024,
	}
	return NewAssembler(cfg, bundler.DefaultTables(cfg))
}

func TestAssembler_ImportMapJSON(t *testing.T) {
	a := testAssembler(t)

	raw, err := a.ImportMapJSON()
	require.NoError(t, err)

	var payload struct {
		Imports map[string]string `json:"imports"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	imports := payload.Imports

	assert.Equal(t, "https://esm.sh/react@18.2.0?external=react-dom%2Cscheduler", imports["react"])
	assert.Equal(t, "https://esm.sh/react@18.2.0/jsx-runtime?external=react-dom%2Cscheduler", imports["react/jsx-runtime"])
	assert.Equal(t, "https://esm.sh/react-dom@18.2.0/client?external=react%2Cscheduler", imports["react-dom/client"])
	assert.Equal(t, "https://esm.sh/scheduler?external=react%2Creact-dom", imports["scheduler"])

	// Aliased runtimes point at their browser implementations, pinned where a
	// version is configured.
	assert.Equal(t, "https://esm.sh/react-native-web@0.19.10?external=react%2Creact-dom%2Cscheduler", imports["react-native"])
	assert.Equal(t, imports["react-native"], imports["react-native-web"])
	assert.Equal(t, "https://esm.sh/react-native-safe-area-context?external=react%2Creact-dom%2Cscheduler", imports["react-native-safe-area-context"])
}

func TestAssembler_Assemble(t *testing.T) {
	a := testAssembler(t)
	bundleCode := `console.log("preview-bundle-body");`

	doc, err := a.Assemble(bundleCode)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, `<script type="importmap">`)
	assert.Contains(t, doc, bundleCode)
	assert.Contains(t, doc, `viewport-fit=cover`)

	// Device chrome around the mount node.
	assert.Contains(t, doc, `id="device"`)
	assert.Contains(t, doc, `id="status-bar"`)
	assert.Contains(t, doc, `id="root"`)
	assert.Contains(t, doc, `id="home-indicator"`)
	assert.Contains(t, doc, "9:41")

	// Bridge channels are wired for both error and console traffic.
	assert.Contains(t, doc, SourceErrors)
	assert.Contains(t, doc, SourceConsole)
	assert.Contains(t, doc, TypePreviewError)
	assert.Contains(t, doc, "unhandledrejection")
}

func TestAssembler_BridgeInstallsBeforeBundle(t *testing.T) {
	a := testAssembler(t)

	doc, err := a.Assemble("console.log(1);")
	require.NoError(t, err)

	bridgeAt := strings.Index(doc, `window.addEventListener("error"`)
	bundleAt := strings.Index(doc, `<script type="module">`)
	require.NotEqual(t, -1, bridgeAt)
	require.NotEqual(t, -1, bundleAt)
	assert.Less(t, bridgeAt, bundleAt)
}

func TestAssembler_EscapesBundleText(t *testing.T) {
	a := testAssembler(t)

	doc, err := a.Assemble(`const s = "</script><script>alert(1)";`)
	require.NoError(t, err)

	assert.NotContains(t, doc, `"</script><script>alert(1)"`)
	assert.Contains(t, doc, `<\/script`)
}
