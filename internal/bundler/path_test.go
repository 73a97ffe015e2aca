package bundler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"already canonical", "/App.tsx", "/App.tsx"},
		{"missing leading slash", "App.tsx", "/App.tsx"},
		{"duplicate separators", "/components//button.tsx", "/components/button.tsx"},
		{"dot segments", "/components/./button.tsx", "/components/button.tsx"},
		{"parent segments", "/components/shared/../button.tsx", "/components/button.tsx"},
		{"trailing slash", "/components/", "/components"},
		{"root", "/", "/"},
		{"parent past root is a no-op", "/../App.tsx", "/App.tsx"},
		{"deep parent past root", "/../../../App.tsx", "/App.tsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanonicalPath(tt.path))
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		basePath  string
		specifier string
		expected  string
	}{
		{"sibling", "/App.tsx", "./utils", "/utils"},
		{"nested sibling", "/components/card.tsx", "./badge", "/components/badge"},
		{"parent directory", "/components/card.tsx", "../hooks/useData", "/hooks/useData"},
		{"parent chain", "/a/b/c.ts", "../../x", "/x"},
		{"parent past root is a no-op", "/App.tsx", "../../theme", "/theme"},
		{"root relative ignores base", "/components/card.tsx", "/theme", "/theme"},
		{"at-alias", "/screens/home.tsx", "@/components/card", "/components/card"},
		{"tilde-alias", "/screens/home.tsx", "~/lib/api", "/lib/api"},
		{"dot segments inside specifier", "/App.tsx", "./a/./b", "/a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.basePath, tt.specifier))
		})
	}
}

func TestRewriteAlias(t *testing.T) {
	assert.Equal(t, "/components/card", RewriteAlias("@/components/card"))
	assert.Equal(t, "/lib/api", RewriteAlias("~/lib/api"))
	assert.Equal(t, "./card", RewriteAlias("./card"))
	assert.Equal(t, "react", RewriteAlias("react"))
	// A scoped package is not an alias.
	assert.Equal(t, "@tanstack/react-query", RewriteAlias("@tanstack/react-query"))
}

func TestIsRelative(t *testing.T) {
	assert.True(t, IsRelative("./card"))
	assert.True(t, IsRelative("../card"))
	assert.True(t, IsRelative("."))
	assert.True(t, IsRelative(".."))
	assert.False(t, IsRelative("/card"))
	assert.False(t, IsRelative("react"))
	assert.False(t, IsRelative(".hidden"))
}

func TestIsAliased(t *testing.T) {
	assert.True(t, IsAliased("@/components/card"))
	assert.True(t, IsAliased("~/lib/api"))
	assert.False(t, IsAliased("@tanstack/react-query"))
	assert.False(t, IsAliased("./card"))
}
