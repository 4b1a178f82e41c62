// Package resolver converts a RawReference into a concrete target
// definition or a deduplicated Unparsed placeholder, per the ordered
// resolution rules: local lookup, import-alias lookup, same-package lookup
// (Go only), repo-global unique lookup, and the Unparsed fallback.
package resolver

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/codegraph/indexer/internal/extractor"
	"github.com/codegraph/indexer/internal/lang"
	"github.com/codegraph/indexer/internal/schema"
	"github.com/codegraph/indexer/internal/symtab"
)

// Edge is a resolved, schema-valid edge ready for the assembler.
type Edge struct {
	Kind     schema.EdgeKind
	FromKind schema.NodeKind
	FromName string
	ToKind   schema.NodeKind
	ToName   string
	Import   string // set only for Imports edges
	Alias    string // set only for Imports edges
}

// Resolver binds RawReferences against a repo-global Table. It is safe for
// concurrent use: the Unparsed dedup set is the only mutable shared state
// and is guarded by a mutex, per the concurrency model's "guarded for
// concurrent insertion" requirement.
type Resolver struct {
	table *symtab.Table

	// repoPath and modulePath are set by SetGoModule when the indexed
	// repository carries a go.mod, enabling rule 3b: resolving a Go
	// absolute import ("<modulePath>/internal/foo") against the table
	// without relying on the relative "./foo" heuristic.
	repoPath   string
	modulePath string

	mu       sync.Mutex
	unparsed map[string]bool
}

// New builds a Resolver over a fully-populated Table. Calling it before the
// table's write phase (extraction) finishes will under-resolve references.
func New(table *symtab.Table) *Resolver {
	return &Resolver{table: table, unparsed: map[string]bool{}}
}

// SetGoModule registers the indexed repository's module path (parsed from
// its go.mod by the pipeline via golang.org/x/mod/modfile), enabling
// absolute-import resolution for Go files rooted at repoPath.
func (r *Resolver) SetGoModule(repoPath, modulePath string) {
	r.repoPath = repoPath
	r.modulePath = modulePath
}

func edgeKindFor(role extractor.Role) schema.EdgeKind {
	switch role {
	case extractor.RoleImport:
		return schema.Imports
	case extractor.RoleInherit:
		return schema.Inherits
	default:
		return schema.References
	}
}

// Resolve turns one RawReference, originating in file at fromIdx (-1 for
// file scope), into a schema-valid Edge. It returns false if the reference
// has no valid schema source (e.g. a file-scope non-import reference) or
// was otherwise dropped.
func (r *Resolver) Resolve(file *symtab.FileIndex, ref extractor.RawReference) (Edge, bool) {
	edgeKind := edgeKindFor(ref.Role)

	var fromKind schema.NodeKind
	var fromName string
	if ref.FromDefIndex >= 0 && ref.FromDefIndex < len(file.Defs) {
		fromDef := file.Defs[ref.FromDefIndex]
		fromKind = fromDef.Kind
		fromName = fromDef.FQName
	} else if edgeKind == schema.Imports {
		fromKind = schema.File
		fromName = file.Path
	} else {
		return Edge{}, false
	}

	if edgeKind == schema.Imports {
		return r.resolveImport(file, fromName, ref)
	}

	target, targetKind := r.resolveTarget(file, ref.NamePath)

	if !schema.Allowed(edgeKind, fromKind, targetKind) {
		if schema.Allowed(edgeKind, fromKind, schema.Unparsed) {
			target = r.unparsedName(ref.NamePath)
			targetKind = schema.Unparsed
		} else {
			return Edge{}, false
		}
	}

	return Edge{
		Kind:     edgeKind,
		FromKind: fromKind,
		FromName: fromName,
		ToKind:   targetKind,
		ToName:   target,
	}, true
}

// resolveTarget applies rules 1-4 (non-import) in order, falling back to
// rule 5 (Unparsed) only once all prior rules miss.
func (r *Resolver) resolveTarget(file *symtab.FileIndex, namePath []string) (string, schema.NodeKind) {
	if len(namePath) == 0 {
		return "", schema.Unparsed
	}

	joined := strings.Join(namePath, ".")

	// 1. Local lookup (narrowed by the full dotted path first, then the
	// bare first segment).
	if def, ok := file.Lookup(joined); ok {
		return def.FQName, def.Kind
	}
	if def, ok := file.Lookup(namePath[0]); ok {
		return def.FQName, def.Kind
	}

	// 2. Import-alias lookup.
	if alias, ok := file.LookupAlias(namePath[0]); ok {
		if target, kind, ok := r.resolveAlias(file, alias, namePath); ok {
			return target, kind
		}
	}

	// 3. Same-package lookup (Go only).
	if spec := lang.ForLanguage(file.Language); spec != nil && spec.SameDirectoryLookup {
		for _, sibling := range r.table.SamePackage(file.Path) {
			if sibling.Path == file.Path {
				continue
			}
			if def, ok := sibling.Lookup(namePath[0]); ok {
				return def.FQName, def.Kind
			}
		}
	}

	// 4. Repo-global unique lookup.
	if def, _, ok := r.table.GlobalUnique(joined); ok {
		return def.FQName, def.Kind
	}
	if def, _, ok := r.table.GlobalUnique(namePath[0]); ok {
		return def.FQName, def.Kind
	}

	// 5. Fallback.
	return r.unparsedName(namePath), schema.Unparsed
}

// resolveAlias substitutes an import alias's target and applies any
// remaining path segments against the target file's exports.
func (r *Resolver) resolveAlias(file *symtab.FileIndex, alias symtab.Alias, namePath []string) (string, schema.NodeKind, bool) {
	targetPath, targetFile, ok := r.findRelativeFile(file, alias.Source)
	if !ok {
		return "", "", false
	}

	member := alias.Symbol
	if member == "" && len(namePath) > 1 {
		member = namePath[1]
	}
	if member == "" {
		// Whole-module import: the target is the File itself, expressed as
		// a Directory-ish reference by its own path so IMPORTS endpoint
		// rules (File -> File) are satisfied.
		return targetPath, schema.File, true
	}
	if def, ok := targetFile.Lookup(member); ok {
		return def.FQName, def.Kind, true
	}
	return "", "", false
}

// findRelativeFile turns a relative import source ("./types") or, for Go
// files once SetGoModule has registered the repo's module path, a same-module
// absolute import ("<modulePath>/internal/foo") into an absolute file or
// package directory already present in the table.
func (r *Resolver) findRelativeFile(file *symtab.FileIndex, source string) (string, *symtab.FileIndex, bool) {
	if strings.HasPrefix(source, ".") || strings.HasPrefix(source, "/") {
		return r.resolveFileInDir(filepath.Join(filepath.Dir(file.Path), source), file.Language)
	}
	if file.Language == lang.Go && r.modulePath != "" {
		if dir, ok := r.moduleRelDir(source); ok {
			return r.resolveFileInDir(dir, file.Language)
		}
	}
	return "", nil, false
}

// moduleRelDir turns a Go import path rooted at the indexed repo's own
// module into the absolute on-disk directory it names.
func (r *Resolver) moduleRelDir(source string) (string, bool) {
	if source == r.modulePath {
		return r.repoPath, true
	}
	prefix := r.modulePath + "/"
	if !strings.HasPrefix(source, prefix) {
		return "", false
	}
	return filepath.Join(r.repoPath, strings.TrimPrefix(source, prefix)), true
}

// resolveFileInDir looks for base (or base+extension) as an indexed file,
// falling back to any file already indexed in base when it names a Go
// package directory rather than a single file.
func (r *Resolver) resolveFileInDir(base string, language lang.Language) (string, *symtab.FileIndex, bool) {
	if tf, ok := r.table.FileByPath(base); ok {
		return base, tf, true
	}
	spec := lang.ForLanguage(language)
	if spec != nil {
		for _, ext := range spec.FileExtensions {
			candidate := base + ext
			if tf, ok := r.table.FileByPath(candidate); ok {
				return candidate, tf, true
			}
		}
	}
	if files := r.table.Package(base); len(files) > 0 {
		return base, files[0], true
	}
	return "", nil, false
}

// resolveImport resolves an IMPORTS edge's target: a local file/directory
// when the source is resolvable, otherwise a deduplicated Unparsed node
// named after the raw import source (P4).
func (r *Resolver) resolveImport(file *symtab.FileIndex, fromName string, ref extractor.RawReference) (Edge, bool) {
	source := ""
	if len(ref.NamePath) > 0 {
		source = ref.NamePath[0]
	}
	aliasName := ref.Alias
	if aliasName == "" {
		if ref.Symbol != "" {
			aliasName = ref.Symbol
		} else {
			aliasName = source
		}
	}

	targetName := source
	targetKind := schema.Unparsed

	if targetPath, targetFile, ok := r.findRelativeFile(file, source); ok {
		if ref.Symbol != "" {
			if def, ok := targetFile.Lookup(ref.Symbol); ok {
				targetName, targetKind = def.FQName, def.Kind
			} else {
				targetName = targetPath
				targetKind = schema.File
			}
		} else {
			targetName = targetPath
			targetKind = schema.File
		}
	}

	if targetKind == schema.Unparsed {
		targetName = r.unparsedName([]string{source})
	}

	if !schema.Allowed(schema.Imports, schema.File, targetKind) {
		targetName = r.unparsedName([]string{source})
		targetKind = schema.Unparsed
	}

	return Edge{
		Kind:     schema.Imports,
		FromKind: schema.File,
		FromName: fromName,
		ToKind:   targetKind,
		ToName:   targetName,
		Import:   source,
		Alias:    aliasName,
	}, true
}

// unparsedName returns the deduplicated Unparsed node name for a name path,
// registering it in the shared dedup set the first time it is seen (I5/P6).
func (r *Resolver) unparsedName(namePath []string) string {
	name := strings.Join(namePath, ".")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unparsed[name] = true
	return name
}
