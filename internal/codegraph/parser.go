// Package codegraph is the programmatic surface: Parser for one-shot,
// non-persistent extraction and Graph for the persistent index/query/clean
// lifecycle, matching the language-neutral contract every binding shell
// (CLI, library caller) is built against.
package codegraph

import (
	"context"
	"fmt"

	"github.com/codegraph/indexer/internal/config"
	"github.com/codegraph/indexer/internal/pipeline"
	"github.com/codegraph/indexer/internal/store"
)

// Node is a language-neutral graph node returned across the programmatic
// surface.
type Node struct {
	Kind          string
	Name          string
	QualifiedName string
	FilePath      string
	StartLine     int
	EndLine       int
	Properties    map[string]any
}

// Relationship is a language-neutral graph edge.
type Relationship struct {
	Type       string
	FromID     int64
	ToID       int64
	Properties map[string]any
}

// ParseResult is one repository's extracted graph.
type ParseResult struct {
	Nodes         []Node
	Relationships []Relationship
}

// Parser runs the indexing pipeline against a scratch in-memory store and
// discards it once extraction finishes, so callers get a node/relationship
// snapshot with no on-disk footprint.
type Parser struct {
	cfg *config.Config
}

// NewParser builds a Parser. cfg may be nil to use config.Default().
func NewParser(cfg *config.Config) *Parser {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Parser{cfg: cfg}
}

// Parse extracts and resolves repoDir's code graph without persisting it.
// codeDir, when non-empty, narrows extraction to a subdirectory of repoDir
// (e.g. a monorepo package) while the repository root is still used to
// derive the project name.
func (p *Parser) Parse(ctx context.Context, repoDir, codeDir string) (*ParseResult, error) {
	scanDir := repoDir
	if codeDir != "" {
		scanDir = codeDir
	}

	s, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("open scratch store: %w", err)
	}
	defer s.Close()

	project := pipeline.ProjectNameFromPath(repoDir)
	pl := pipeline.New(ctx, s, scanDir, project, p.cfg)
	if _, err := pl.Run(false); err != nil {
		return nil, err
	}
	return snapshot(s, project)
}

func snapshot(s *store.Store, project string) (*ParseResult, error) {
	nodes, err := s.AllNodes(project)
	if err != nil {
		return nil, fmt.Errorf("read nodes: %w", err)
	}
	edges, err := s.AllEdges(project)
	if err != nil {
		return nil, fmt.Errorf("read edges: %w", err)
	}

	out := &ParseResult{
		Nodes:         make([]Node, len(nodes)),
		Relationships: make([]Relationship, len(edges)),
	}
	for i, n := range nodes {
		out.Nodes[i] = Node{
			Kind: n.Label, Name: n.Name, QualifiedName: n.QualifiedName,
			FilePath: n.FilePath, StartLine: n.StartLine, EndLine: n.EndLine,
			Properties: n.Properties,
		}
	}
	for i, e := range edges {
		out.Relationships[i] = Relationship{Type: e.Type, FromID: e.SourceID, ToID: e.TargetID, Properties: e.Properties}
	}
	return out, nil
}
