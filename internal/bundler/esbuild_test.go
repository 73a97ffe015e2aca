package bundler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchlab-dev/previewd/internal/config"
)

func testPreviewConfig() config.PreviewConfig {
	return config.PreviewConfig{
		CDNBaseURL:            "https://esm.sh",
		ReactVersion:          "18.2.0",
		ReactNativeWebVersion: "0.19.10",
		BundleTimeout:         30 * time.Second,
		MaxBundleSize:         10 * 1024 * 1024,
	}
}

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder(testPreviewConfig())

	t.Run("bundles a multi-module project", func(t *testing.T) {
		snap := NewSnapshot(map[string]string{
			"/App.tsx": `
import React from "react";
import { Card } from "./components/card";
export default function App() {
  return <Card title="hello-preview" />;
}`,
			"/components/card.tsx": `
import React from "react";
export function Card({ title }: { title: string }) {
  return <div>{title}</div>;
}`,
		})

		artifact, err := b.Build(context.Background(), snap)
		require.NoError(t, err)
		require.NotNil(t, artifact)

		// Local modules are inlined, the runtime stays external.
		assert.Contains(t, artifact.Code, "hello-preview")
		assert.Contains(t, artifact.Code, `"react`)
		assert.NotContains(t, artifact.Code, "sourceMappingURL")
	})

	t.Run("stubs unsupported natives into the bundle", func(t *testing.T) {
		snap := NewSnapshot(map[string]string{
			"/App.tsx": `
import React from "react";
import Haptics from "expo-haptics";
export default function App() {
  Haptics.impactAsync();
  return <div />;
}`,
		})

		artifact, err := b.Build(context.Background(), snap)
		require.NoError(t, err)
		assert.Contains(t, artifact.Code, "__stub")
	})

	t.Run("rewrites unknown bare imports to the CDN", func(t *testing.T) {
		snap := NewSnapshot(map[string]string{
			"/App.tsx": `
import React from "react";
import { create } from "zustand";
export default function App() { return <div />; }`,
		})

		artifact, err := b.Build(context.Background(), snap)
		require.NoError(t, err)
		assert.Contains(t, artifact.Code, "https://esm.sh/zustand?external=")
	})

	t.Run("syntax error surfaces as diagnostics", func(t *testing.T) {
		snap := NewSnapshot(map[string]string{
			"/App.tsx": `export default function App() { return <div; }`,
		})

		_, err := b.Build(context.Background(), snap)
		require.Error(t, err)

		var buildErr *BuildError
		require.ErrorAs(t, err, &buildErr)
		require.NotEmpty(t, buildErr.Diagnostics)
		assert.Equal(t, "/App.tsx", buildErr.Diagnostics[0].Path)
		assert.NotZero(t, buildErr.Diagnostics[0].Line)
	})

	t.Run("missing relative import surfaces as a diagnostic", func(t *testing.T) {
		snap := NewSnapshot(map[string]string{
			"/App.tsx": `
import React from "react";
import { helper } from "./missing";
export default function App() { return <div />; }`,
		})

		_, err := b.Build(context.Background(), snap)
		require.Error(t, err)

		var buildErr *BuildError
		require.ErrorAs(t, err, &buildErr)
		require.NotEmpty(t, buildErr.Diagnostics)
		assert.Contains(t, buildErr.Diagnostics[0].Message, "does not exist in the project")
	})

	t.Run("no entry yields ErrNoEntry", func(t *testing.T) {
		snap := NewSnapshot(map[string]string{
			"/lib/helpers.ts": "export const x = 1;",
		})

		_, err := b.Build(context.Background(), snap)
		require.ErrorIs(t, err, ErrNoEntry)
	})

	t.Run("cancelled context abandons the compile", func(t *testing.T) {
		snap := NewSnapshot(map[string]string{
			"/App.tsx": `export default function App() { return null; }`,
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := b.Build(ctx, snap)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("oversized bundle is rejected", func(t *testing.T) {
		cfg := testPreviewConfig()
		cfg.MaxBundleSize = 16
		small := NewBuilder(cfg)

		snap := NewSnapshot(map[string]string{
			"/App.tsx": `export default function App() { return "a long enough module body"; }`,
		})

		_, err := small.Build(context.Background(), snap)
		var buildErr *BuildError
		require.ErrorAs(t, err, &buildErr)
		assert.Contains(t, buildErr.Error(), "byte limit")
	})
}

func TestBuildError_Error(t *testing.T) {
	err := &BuildError{Diagnostics: []Diagnostic{
		{Message: "Unexpected token", Path: "/App.tsx", Line: 3},
		{Message: "general failure"},
	}}
	assert.Equal(t, "bundle failed: /App.tsx:3: Unexpected token; general failure", err.Error())
}
