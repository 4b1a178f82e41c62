package codegraph

import (
	"context"
	"fmt"

	"github.com/codegraph/indexer/internal/config"
	"github.com/codegraph/indexer/internal/cypher"
	"github.com/codegraph/indexer/internal/pipeline"
	"github.com/codegraph/indexer/internal/schema"
	"github.com/codegraph/indexer/internal/store"
)

// Graph is the persistent indexing pipeline: it owns a project-scoped
// on-disk Store and the repository it indexes.
type Graph struct {
	store       *store.Store
	dbDir       string
	repoPath    string
	projectName string
	cfg         *config.Config
}

// Open opens (creating if absent) the project's database under dbDir and
// binds it to repoPath. cfg may be nil to use config.Default().
func Open(dbDir, repoPath string, cfg *config.Config) (*Graph, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	project := pipeline.ProjectNameFromPath(repoPath)
	s, err := store.OpenInDir(dbDir, project)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Graph{store: s, dbDir: dbDir, repoPath: repoPath, projectName: project, cfg: cfg}, nil
}

// Close releases the underlying database connection.
func (g *Graph) Close() error {
	return g.store.Close()
}

// Index runs the pipeline against the bound repository. When paths is
// non-empty, only files under those repo-relative paths are (re)indexed;
// when incremental is true, a run with no changed files is a no-op.
func (g *Graph) Index(ctx context.Context, paths []string, incremental bool) (*pipeline.Stats, error) {
	pl := pipeline.New(ctx, g.store, g.repoPath, g.projectName, g.cfg)
	pl.SetScope(paths)
	return pl.Run(incremental)
}

// Query runs a Cypher-like query string against the bound project's graph.
func (g *Graph) Query(q string) (*cypher.Result, error) {
	exec := &cypher.Executor{Store: g.store}
	return exec.Execute(q)
}

// Clean drops the project's rows. When deleteDir is true, the project's
// on-disk SQLite file (plus its WAL/SHM siblings) is also removed, via a
// StoreRouter scoped to dbDir so Graph never open-codes the file layout.
func (g *Graph) Clean(deleteDir bool) error {
	if err := g.store.DeleteProject(g.projectName); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if !deleteDir {
		return nil
	}
	if err := g.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	router, err := store.NewRouterWithDir(g.dbDir)
	if err != nil {
		return fmt.Errorf("open router: %w", err)
	}
	if err := router.DeleteProject(g.projectName); err != nil {
		return fmt.Errorf("remove db file: %w", err)
	}
	return nil
}

// Schema returns label/type statistics and sampled names for the bound
// project's graph, useful for an unfamiliar caller to orient before writing
// a Query.
func (g *Graph) Schema() (*store.SchemaInfo, error) {
	return g.store.GetSchema(g.projectName)
}

// ParamType is one parameter's resolved type definition snippet.
type ParamType struct {
	Path      string
	StartLine int
	EndLine   int
	Content   string
}

// GetFuncParamTypes finds the function whose span covers line in filePath,
// then returns the source snippet of every type it references (the
// resolved definitions of its parameter and return types), per the
// language-neutral contract. filePath may be a suffix of the indexed
// absolute path (e.g. a repo-relative path).
func (g *Graph) GetFuncParamTypes(filePath string, line int) ([]ParamType, error) {
	candidates, err := g.store.FindNodesByFileOverlap(g.projectName, filePath, line, line)
	if err != nil {
		return nil, fmt.Errorf("find enclosing function: %w", err)
	}

	fn := narrowestFunction(candidates)
	if fn == nil {
		return nil, nil
	}

	edges, err := g.store.FindEdgesBySourceAndType(fn.ID, string(schema.References))
	if err != nil {
		return nil, fmt.Errorf("find type references: %w", err)
	}

	var out []ParamType
	seen := map[int64]bool{}
	for _, e := range edges {
		if seen[e.TargetID] {
			continue
		}
		target, err := g.store.FindNodeByID(e.TargetID)
		if err != nil || target == nil {
			continue
		}
		if target.Label != string(schema.Class) && target.Label != string(schema.Interface) && target.Label != string(schema.OtherType) {
			continue
		}
		seen[e.TargetID] = true
		content, _ := target.Properties["code"].(string)
		out = append(out, ParamType{Path: target.FilePath, StartLine: target.StartLine, EndLine: target.EndLine, Content: content})
	}
	return out, nil
}

// narrowestFunction returns the Function-kind node with the smallest line
// span among candidates, or nil if none qualify.
func narrowestFunction(nodes []*store.Node) *store.Node {
	var best *store.Node
	for _, n := range nodes {
		if n.Label != string(schema.Function) {
			continue
		}
		if best == nil || (n.EndLine-n.StartLine) < (best.EndLine-best.StartLine) {
			best = n
		}
	}
	return best
}
