// Package discover is the ignore/walk adapter: it enumerates a repository's
// candidate source files honouring a directory denylist plus the
// ordered, possibly-negated glob list from configuration.
package discover

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/codegraph/indexer/internal/config"
	"github.com/codegraph/indexer/internal/lang"
)

// skipDirs are directory names never descended into, regardless of config.
var skipDirs = map[string]bool{
	".cache": true, ".claude": true, ".eclipse": true, ".eggs": true,
	".env": true, ".git": true, ".gradle": true, ".hg": true,
	".idea": true, ".maven": true, ".mypy_cache": true, ".nox": true,
	".npm": true, ".nyc_output": true, ".pnpm-store": true,
	".pytest_cache": true, ".ruff_cache": true, ".svn": true, ".tmp": true,
	".tox": true, ".venv": true, ".vs": true, ".vscode": true, ".yarn": true,
	"__pycache__": true, "bin": true, "bower_components": true,
	"build": true, "coverage": true, "dist": true, "env": true,
	"htmlcov": true, "node_modules": true, "obj": true, "out": true,
	"Pods": true, "site-packages": true, "target": true, "temp": true,
	"tmp": true, "vendor": true, "venv": true,
}

// skipSuffixes are file suffixes never treated as source, regardless of
// whether their extension is otherwise registered.
var skipSuffixes = []string{".tmp", "~", ".pyc", ".pyo", ".o", ".a", ".so", ".dll", ".class"}

// FileInfo is one discovered source file.
type FileInfo struct {
	Path     string        // absolute path
	RelPath  string        // slash-separated, relative to repo root
	Language lang.Language
}

// Discover walks repoPath on an osfs-backed billy.Filesystem, returning
// every file whose extension maps to a registered language, filtered by
// cfg's ignore_patterns and languages allow-list.
func Discover(ctx context.Context, repoPath string, cfg *config.Config) ([]FileInfo, error) {
	repoPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ignorePatterns []string
	var allowLangs map[lang.Language]bool
	if cfg != nil {
		ignorePatterns = cfg.IgnorePatterns
		if len(cfg.Languages) > 0 {
			allowLangs = make(map[lang.Language]bool, len(cfg.Languages))
			for _, tag := range cfg.Languages {
				allowLangs[lang.Language(tag)] = true
			}
		}
	}

	fs := osfs.New(repoPath)

	var files []FileInfo
	walkErr := util.Walk(fs, "/", func(path string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil
		}

		rel := strings.TrimPrefix(path, "/")
		if rel == "" {
			return nil
		}

		if info.IsDir() {
			if skipDirs[info.Name()] || isIgnored(ignorePatterns, rel) {
				return filepath.SkipDir
			}
			return nil
		}

		for _, suffix := range skipSuffixes {
			if strings.HasSuffix(path, suffix) {
				return nil
			}
		}
		if isIgnored(ignorePatterns, rel) {
			return nil
		}

		l, ok := lang.LanguageForExtension(filepath.Ext(path))
		if !ok {
			return nil
		}
		if allowLangs != nil && !allowLangs[l] {
			return nil
		}

		files = append(files, FileInfo{
			Path:     filepath.Join(repoPath, rel),
			RelPath:  filepath.ToSlash(rel),
			Language: l,
		})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return files, nil
}

// isIgnored applies an ordered glob list where a leading "!" re-includes a
// path an earlier pattern excluded.
func isIgnored(patterns []string, rel string) bool {
	excluded := false
	for _, p := range patterns {
		negate := strings.HasPrefix(p, "!")
		pattern := strings.TrimPrefix(p, "!")
		if match, _ := doublestar.Match(pattern, rel); match {
			excluded = !negate
		}
	}
	return excluded
}
