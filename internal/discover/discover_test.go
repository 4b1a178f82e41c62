package discover

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/codegraph/indexer/internal/config"
	"github.com/codegraph/indexer/internal/lang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDiscoverFindsRegisteredLanguages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "README.md", "# hi\n")
	writeFile(t, root, "node_modules/dep/index.js", "x")

	files, err := Discover(context.Background(), root, nil)
	require.NoError(t, err)

	var relPaths []string
	for _, f := range files {
		relPaths = append(relPaths, f.RelPath)
	}
	assert.Contains(t, relPaths, "main.go")
	assert.NotContains(t, relPaths, "README.md")
	assert.NotContains(t, relPaths, "node_modules/dep/index.js")
}

func TestDiscoverRespectsIgnorePatternsAndNegation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "vendor/pkg/a.go", "package pkg\n")
	writeFile(t, root, "vendor/keep/b.go", "package keep\n")

	cfg := config.Default().Apply(config.WithIgnorePatterns([]string{"vendor/**", "!vendor/keep/**"}))

	files, err := Discover(context.Background(), root, cfg)
	require.NoError(t, err)

	var relPaths []string
	for _, f := range files {
		relPaths = append(relPaths, f.RelPath)
	}
	assert.NotContains(t, relPaths, "vendor/pkg/a.go")
	assert.Contains(t, relPaths, "vendor/keep/b.go")
}

func TestDiscoverLanguageAllowList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "script.py", "x = 1\n")

	cfg := config.Default().Apply(config.WithLanguages([]string{string(lang.Go)}))

	files, err := Discover(context.Background(), root, cfg)
	require.NoError(t, err)

	assert.Len(t, files, 1)
	assert.Equal(t, lang.Go, files[0].Language)
}

func TestDiscoverCancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Discover(ctx, root, nil)
	require.Error(t, err)
}
