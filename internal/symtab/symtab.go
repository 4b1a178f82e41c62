// Package symtab holds the two-tier symbol table described in the design:
// a per-file index built eagerly during extraction, and a repo-global index
// built once every file has been extracted. The table is write-once,
// read-many: Add is safe to call from the parallel extraction workers, but
// no further writes may happen once the resolver starts reading.
package symtab

import (
	"path/filepath"
	"sync"

	"github.com/codegraph/indexer/internal/extractor"
	"github.com/codegraph/indexer/internal/fqn"
	"github.com/codegraph/indexer/internal/lang"
)

// Alias is an import binding recorded in a file's local index: the local
// name resolves to a symbol (optionally) inside a source module/file.
type Alias struct {
	Source string // raw import source/path text, e.g. "./types" or "fmt"
	Symbol string // imported member name, empty for whole-module imports
}

// FileIndex is the local index for one extracted file.
type FileIndex struct {
	Path     string
	RelPath  string
	Language lang.Language
	Defs     []extractor.Definition

	byShortName map[string]int
	aliases     map[string]Alias
}

// NewFileIndex builds a file-local index from one extractor.Result.
func NewFileIndex(relPath string, result *extractor.Result) *FileIndex {
	fi := &FileIndex{
		Path:        result.FilePath,
		RelPath:     relPath,
		Language:    result.Language,
		Defs:        result.Definitions,
		byShortName: map[string]int{},
		aliases:     map[string]Alias{},
	}
	for i, d := range result.Definitions {
		for _, sn := range d.ShortNames {
			if _, exists := fi.byShortName[sn]; !exists {
				fi.byShortName[sn] = i
			}
		}
	}
	for _, r := range result.References {
		if r.Role != extractor.RoleImport {
			continue
		}
		local := r.Alias
		if local == "" {
			local = r.Symbol
		}
		if local == "" && len(r.NamePath) > 0 {
			local = filepath.Base(r.NamePath[0])
		}
		if local == "" {
			continue
		}
		fi.aliases[local] = Alias{Source: r.NamePath[0], Symbol: r.Symbol}
	}
	return fi
}

// Lookup finds a local short-name match.
func (fi *FileIndex) Lookup(name string) (*extractor.Definition, bool) {
	idx, ok := fi.byShortName[name]
	if !ok {
		return nil, false
	}
	return &fi.Defs[idx], true
}

// LookupAlias finds an import alias registered in this file.
func (fi *FileIndex) LookupAlias(name string) (Alias, bool) {
	a, ok := fi.aliases[name]
	return a, ok
}

// globalRef points at one definition inside one file's index.
type globalRef struct {
	file *FileIndex
	def  *extractor.Definition
}

// Table is the repo-global symbol table: one FileIndex per file, plus
// cross-file indices by short name, directory, and absolute path.
type Table struct {
	project string

	mu       sync.Mutex
	byPath   map[string]*FileIndex
	byDir    map[string][]*FileIndex
	byShort  map[string][]globalRef
	byFolder map[string][]globalRef
}

// New creates an empty Table. project names the repo root for FolderQN-style
// aliasing (see internal/fqn).
func New(project string) *Table {
	return &Table{
		project:  project,
		byPath:   map[string]*FileIndex{},
		byDir:    map[string][]*FileIndex{},
		byShort:  map[string][]globalRef{},
		byFolder: map[string][]globalRef{},
	}
}

// AddFile registers a file's local index into the repo-global table. Safe
// for concurrent use across the extraction worker pool.
func (t *Table) AddFile(fi *FileIndex) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byPath[fi.Path] = fi
	dir := filepath.Dir(fi.Path)
	t.byDir[dir] = append(t.byDir[dir], fi)

	for i := range fi.Defs {
		def := &fi.Defs[i]
		for _, sn := range def.ShortNames {
			t.byShort[sn] = append(t.byShort[sn], globalRef{file: fi, def: def})
		}
		dotted := fqn.Compute(t.project, fi.RelPath, def.Name)
		t.byFolder[dotted] = append(t.byFolder[dotted], globalRef{file: fi, def: def})
	}
}

// FileByPath returns the local index for an absolute file path.
func (t *Table) FileByPath(path string) (*FileIndex, bool) {
	fi, ok := t.byPath[path]
	return fi, ok
}

// SamePackage returns every file indexed in the same directory as path,
// used by the Go same-package resolution rule.
func (t *Table) SamePackage(path string) []*FileIndex {
	return t.byDir[filepath.Dir(path)]
}

// Package returns every file indexed directly in dir (an absolute
// directory path), used to resolve a Go absolute import against the
// package it names rather than a single file.
func (t *Table) Package(dir string) []*FileIndex {
	return t.byDir[dir]
}

// GlobalUnique returns the sole definition registered under name across the
// repo, or false if it is absent or ambiguous.
func (t *Table) GlobalUnique(name string) (*extractor.Definition, string, bool) {
	refs, ok := t.byShort[name]
	if !ok {
		if refs2, ok2 := t.byFolder[name]; ok2 && len(refs2) == 1 {
			return refs2[0].def, refs2[0].file.Path, true
		}
		return nil, "", false
	}
	if len(refs) != 1 {
		return nil, "", false
	}
	return refs[0].def, refs[0].file.Path, true
}
