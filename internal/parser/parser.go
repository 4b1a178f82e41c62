// Package parser wraps the tree-sitter syntax-tree engine: it pools parsers
// per language, compiles and caches each language's declarative definition
// and reference queries, and exposes small helpers (Walk, NodeText) used by
// the extractor.
package parser

import (
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraph/indexer/internal/lang"
)

var (
	mu          sync.Mutex
	languages   = map[lang.Language]*tree_sitter.Language{}
	parserPools = map[lang.Language]*sync.Pool{}
	defQueries  = map[lang.Language]*tree_sitter.Query{}
	refQueries  = map[lang.Language]*tree_sitter.Query{}
)

// GetLanguage returns the tree-sitter Language for a lang.Language,
// instantiating and caching it from the registry's Grammar constructor on
// first use.
func GetLanguage(l lang.Language) (*tree_sitter.Language, error) {
	mu.Lock()
	defer mu.Unlock()
	return getLanguageLocked(l)
}

func getLanguageLocked(l lang.Language) (*tree_sitter.Language, error) {
	if tsLang, ok := languages[l]; ok {
		return tsLang, nil
	}
	spec := lang.ForLanguage(l)
	if spec == nil || spec.Grammar == nil {
		return nil, fmt.Errorf("unsupported language: %s", l)
	}
	tsLang := spec.Grammar()
	languages[l] = tsLang
	return tsLang, nil
}

func poolFor(l lang.Language) (*sync.Pool, error) {
	mu.Lock()
	defer mu.Unlock()
	if pool, ok := parserPools[l]; ok {
		return pool, nil
	}
	tsLang, err := getLanguageLocked(l)
	if err != nil {
		return nil, err
	}
	pool := &sync.Pool{
		New: func() any {
			p := tree_sitter.NewParser()
			if err := p.SetLanguage(tsLang); err != nil {
				panic(fmt.Sprintf("set language: %v", err))
			}
			return p
		},
	}
	parserPools[l] = pool
	return pool, nil
}

// Parse parses source code into a tree-sitter AST Tree.
// The caller must call tree.Close() when done.
// Parsers are pooled per language via sync.Pool to avoid per-file allocation.
func Parse(l lang.Language, source []byte) (*tree_sitter.Tree, error) {
	pool, err := poolFor(l)
	if err != nil {
		return nil, err
	}

	p, _ := pool.Get().(*tree_sitter.Parser)
	if p == nil {
		return nil, fmt.Errorf("failed to get parser for language %s", l)
	}
	tree := p.Parse(source, nil)
	pool.Put(p)

	if tree == nil {
		return nil, fmt.Errorf("parse failed for language %s", l)
	}
	return tree, nil
}

// DefinitionQuery returns the compiled, cached definition query for l.
func DefinitionQuery(l lang.Language) (*tree_sitter.Query, error) {
	return compiledQuery(l, defQueries, func(spec *lang.Spec) string { return spec.DefinitionQuery })
}

// ReferenceQuery returns the compiled, cached reference query for l.
func ReferenceQuery(l lang.Language) (*tree_sitter.Query, error) {
	return compiledQuery(l, refQueries, func(spec *lang.Spec) string { return spec.ReferenceQuery })
}

func compiledQuery(l lang.Language, cache map[lang.Language]*tree_sitter.Query, pick func(*lang.Spec) string) (*tree_sitter.Query, error) {
	mu.Lock()
	defer mu.Unlock()

	if q, ok := cache[l]; ok {
		return q, nil
	}
	spec := lang.ForLanguage(l)
	if spec == nil {
		return nil, fmt.Errorf("unsupported language: %s", l)
	}
	tsLang, err := getLanguageLocked(l)
	if err != nil {
		return nil, err
	}
	pattern := pick(spec)
	q, qerr := tree_sitter.NewQuery(tsLang, pattern)
	if qerr != nil {
		return nil, fmt.Errorf("compile query for %s: %w", l, qerr)
	}
	cache[l] = q
	return q, nil
}

// WalkFunc is called for each node during AST traversal.
// Return false to skip children.
type WalkFunc func(node *tree_sitter.Node) bool

// Walk traverses the AST in depth-first order.
func Walk(node *tree_sitter.Node, fn WalkFunc) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil {
			Walk(child, fn)
		}
	}
}

// NodeText returns the text content of a node.
func NodeText(node *tree_sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
