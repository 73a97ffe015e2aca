package bundler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshot(t *testing.T) {
	snap := NewSnapshot(map[string]string{
		"App.tsx":            "a",
		"/components//b.tsx": "b",
		"/./c.ts":            "c",
	})

	for path, content := range map[string]string{
		"/App.tsx":           "a",
		"/components/b.tsx":  "b",
		"/c.ts":              "c",
	} {
		got, ok := snap.Lookup(path)
		require.True(t, ok, path)
		assert.Equal(t, content, got)
	}

	_, ok := snap.Lookup("App.tsx")
	assert.False(t, ok, "lookups are by canonical path only")
}

func TestSnapshot_Insert(t *testing.T) {
	snap := NewSnapshot(nil)
	snap.Insert("entry.tsx", "x")

	got, ok := snap.Lookup("/entry.tsx")
	require.True(t, ok)
	assert.Equal(t, "x", got)
}

func TestSnapshot_Paths(t *testing.T) {
	snap := NewSnapshot(map[string]string{
		"/b.ts": "",
		"/a.ts": "",
		"c.ts":  "",
	})

	assert.Equal(t, []string{"/a.ts", "/b.ts", "/c.ts"}, snap.Paths())
}
