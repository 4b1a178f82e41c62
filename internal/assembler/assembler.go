// Package assembler turns resolved definitions and edges into the two
// deduplicated node/edge collections the graph store bulk-loads, in
// dependency order: Directories, then Files, then contained definitions,
// then edges.
package assembler

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/codegraph/indexer/internal/extractor"
	"github.com/codegraph/indexer/internal/resolver"
	"github.com/codegraph/indexer/internal/schema"
	"github.com/codegraph/indexer/internal/symtab"
)

// Node is a deduplicated node record, keyed by (Kind, Name) per invariant I1.
type Node struct {
	Kind       schema.NodeKind
	Name       string
	FilePath   string
	Language   string
	Code       string
	Skeleton   string
	StartLine  int
	EndLine    int
	ShortNames []string
}

// Edge is a deduplicated edge record, keyed by (Kind, From, To, Import, Alias).
type Edge struct {
	Kind     schema.EdgeKind
	FromKind schema.NodeKind
	FromName string
	ToKind   schema.NodeKind
	ToName   string
	Import   string
	Alias    string
}

// Assembler accumulates nodes and edges, deduplicating as it goes.
type Assembler struct {
	table *symtab.Table

	dirNodes  map[string]*Node
	dirOrder  []string
	fileNodes map[string]*Node
	fileOrder []string
	restNodes map[string]*Node
	restOrder []string

	edges      map[string]*Edge
	edgeOrder  []string
	violations []string
}

func nodeKey(kind schema.NodeKind, name string) string {
	return string(kind) + "|" + name
}

func edgeKey(e Edge) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", e.Kind, e.FromName, e.ToName, e.Import, e.Alias)
}

// New creates an Assembler backed by the repo-global table, used to find a
// method's owning struct when its receiver isn't lexically nested (Go).
func New(table *symtab.Table) *Assembler {
	return &Assembler{
		table:     table,
		dirNodes:  map[string]*Node{},
		fileNodes: map[string]*Node{},
		restNodes: map[string]*Node{},
		edges:     map[string]*Edge{},
	}
}

// AddDirectory registers a Directory node and its CONTAINS edge from
// parentDir (empty for the repo root).
func (a *Assembler) AddDirectory(path, parentDir string) {
	if _, ok := a.dirNodes[path]; !ok {
		a.dirNodes[path] = &Node{Kind: schema.Directory, Name: path, FilePath: path, ShortNames: []string{filepath.Base(path)}}
		a.dirOrder = append(a.dirOrder, path)
	}
	if parentDir != "" {
		a.addEdge(Edge{Kind: schema.Contains, FromKind: schema.Directory, FromName: parentDir, ToKind: schema.Directory, ToName: path})
	}
}

// AddFile registers a File node and its CONTAINS edge from its directory.
func (a *Assembler) AddFile(path, language, code, skeleton string) {
	if _, ok := a.fileNodes[path]; !ok {
		a.fileNodes[path] = &Node{
			Kind: schema.File, Name: path, FilePath: path, Language: language, Code: code, Skeleton: skeleton,
			ShortNames: []string{filepath.Base(path)},
		}
		a.fileOrder = append(a.fileOrder, path)
	}
	a.addEdge(Edge{Kind: schema.Contains, FromKind: schema.Directory, FromName: filepath.Dir(path), ToKind: schema.File, ToName: path})
}

// AddDefinitions registers every definition extracted from one file, wiring
// each to its owning File, Class, or Interface via a CONTAINS edge.
func (a *Assembler) AddDefinitions(fi *symtab.FileIndex) {
	for _, def := range fi.Defs {
		a.addDefNode(fi.Path, def)

		owner, ownerKind, ok := a.owner(fi, def)
		if !ok {
			continue
		}
		if !schema.Allowed(schema.Contains, ownerKind, def.Kind) {
			a.violations = append(a.violations, fmt.Sprintf("dropped CONTAINS(%s->%s) for %s: schema violation", ownerKind, def.Kind, def.FQName))
			continue
		}
		a.addEdge(Edge{Kind: schema.Contains, FromKind: ownerKind, FromName: owner, ToKind: def.Kind, ToName: def.FQName})
	}
}

func (a *Assembler) addDefNode(filePath string, def extractor.Definition) {
	key := nodeKey(def.Kind, def.FQName)
	if _, ok := a.restNodes[key]; ok {
		return
	}
	n := &Node{
		Kind: def.Kind, Name: def.FQName, FilePath: filePath, Code: def.Code, Skeleton: def.SkeletonCode,
		StartLine: def.StartLine, EndLine: def.EndLine, ShortNames: def.ShortNames,
	}
	a.restNodes[key] = n
	a.restOrder = append(a.restOrder, key)
}

// owner resolves a definition's lexical or receiver-based container.
func (a *Assembler) owner(fi *symtab.FileIndex, def extractor.Definition) (string, schema.NodeKind, bool) {
	if def.ReceiverType != "" {
		if recv, ok := fi.Lookup(def.ReceiverType); ok && recv.Kind == schema.Class {
			return recv.FQName, schema.Class, true
		}
		if recvDef, _, ok := a.table.GlobalUnique(def.ReceiverType); ok {
			return recvDef.FQName, recvDef.Kind, true
		}
		return "", "", false
	}
	if def.ParentIndex >= 0 && def.ParentIndex < len(fi.Defs) {
		parent := fi.Defs[def.ParentIndex]
		if parent.Kind == schema.Class || parent.Kind == schema.Interface {
			return parent.FQName, parent.Kind, true
		}
	}
	return fi.Path, schema.File, true
}

// AddResolvedEdge records one edge produced by the resolver, dropping it
// (with a recorded violation) if its endpoint kinds are not schema-valid.
func (a *Assembler) AddResolvedEdge(e resolver.Edge) {
	if !schema.Allowed(e.Kind, e.FromKind, e.ToKind) {
		a.violations = append(a.violations, fmt.Sprintf("dropped %s(%s->%s) %s->%s: schema violation", e.Kind, e.FromKind, e.ToKind, e.FromName, e.ToName))
		return
	}
	if e.ToKind == schema.Unparsed {
		a.ensureUnparsed(e.ToName)
	}
	a.addEdge(Edge{
		Kind: e.Kind, FromKind: e.FromKind, FromName: e.FromName,
		ToKind: e.ToKind, ToName: e.ToName, Import: e.Import, Alias: e.Alias,
	})
}

// ensureUnparsed creates the Unparsed node on demand, deduplicated by name
// (I5/P6): an Unparsed node exists iff at least one edge references it.
func (a *Assembler) ensureUnparsed(name string) {
	key := nodeKey(schema.Unparsed, name)
	if _, ok := a.restNodes[key]; ok {
		return
	}
	a.restNodes[key] = &Node{Kind: schema.Unparsed, Name: name}
	a.restOrder = append(a.restOrder, key)
}

func (a *Assembler) addEdge(e Edge) {
	key := edgeKey(e)
	if _, ok := a.edges[key]; ok {
		return
	}
	a.edges[key] = &e
	a.edgeOrder = append(a.edgeOrder, key)
}

// Nodes returns every node in dependency emission order: Directories, then
// Files, then all other kinds (in first-seen order).
func (a *Assembler) Nodes() []Node {
	out := make([]Node, 0, len(a.dirOrder)+len(a.fileOrder)+len(a.restOrder))
	sort.Strings(a.dirOrder)
	for _, k := range a.dirOrder {
		out = append(out, *a.dirNodes[k])
	}
	fileKeys := append([]string(nil), a.fileOrder...)
	sort.Strings(fileKeys)
	for _, k := range fileKeys {
		out = append(out, *a.fileNodes[k])
	}
	for _, k := range a.restOrder {
		out = append(out, *a.restNodes[k])
	}
	return out
}

// Edges returns every edge in first-seen order.
func (a *Assembler) Edges() []Edge {
	out := make([]Edge, 0, len(a.edgeOrder))
	for _, k := range a.edgeOrder {
		out = append(out, *a.edges[k])
	}
	return out
}

// Violations returns a human-readable log of every dropped edge, for the
// caller to surface as warnings (§7 SchemaViolation policy).
func (a *Assembler) Violations() []string {
	return a.violations
}
