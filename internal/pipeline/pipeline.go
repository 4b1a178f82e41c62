// Package pipeline orchestrates one repository's indexing run: a parallel
// extraction stage (bounded worker pool, soft per-file timeout), a full
// barrier, then sequential resolution and a single batched write to the
// store. This mirrors the teacher's own two-stage shape (parallel parse
// with no shared state, sequential batch DB write) without its per-pass
// enrichment machinery, which this domain's schema has no use for.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/zeebo/xxh3"
	"golang.org/x/mod/modfile"
	"golang.org/x/sync/errgroup"

	"github.com/codegraph/indexer/internal/assembler"
	"github.com/codegraph/indexer/internal/config"
	"github.com/codegraph/indexer/internal/discover"
	"github.com/codegraph/indexer/internal/extractor"
	"github.com/codegraph/indexer/internal/resolver"
	"github.com/codegraph/indexer/internal/schema"
	"github.com/codegraph/indexer/internal/store"
	"github.com/codegraph/indexer/internal/symtab"
)

// perFileTimeout bounds a single file's parse+extract (§5 soft timeout).
const perFileTimeout = 10 * time.Second

// Stats summarizes one Run.
type Stats struct {
	FilesDiscovered int
	FilesChanged    int
	Nodes           int
	Edges           int
	Skipped         bool
	Violations      []string
}

// Pipeline indexes one repository into a project-scoped Store.
type Pipeline struct {
	ctx         context.Context
	store       *store.Store
	repoPath    string
	projectName string
	cfg         *config.Config
	scope       []string
}

// SetScope restricts Run to files under the given repo-relative paths
// (files or directories), instead of the whole repository. Passing nil or
// an empty slice clears any prior restriction.
func (p *Pipeline) SetScope(paths []string) {
	p.scope = paths
}

// inScope reports whether a discovered file's relative path falls under
// one of the configured scope paths (itself or a descendant).
func inScope(scope []string, relPath string) bool {
	if len(scope) == 0 {
		return true
	}
	for _, s := range scope {
		s = strings.Trim(filepath.ToSlash(s), "/")
		if relPath == s || strings.HasPrefix(relPath, s+"/") {
			return true
		}
	}
	return false
}

// New creates a Pipeline bound to an already-open, project-scoped Store.
func New(ctx context.Context, s *store.Store, repoPath, projectName string, cfg *config.Config) *Pipeline {
	if abs, err := filepath.Abs(repoPath); err == nil {
		repoPath = abs
	}
	return &Pipeline{ctx: ctx, store: s, repoPath: repoPath, projectName: projectName, cfg: cfg}
}

// ProjectNameFromPath derives a stable project name from an absolute repo
// path by replacing path separators with dashes.
func ProjectNameFromPath(absPath string) string {
	cleaned := filepath.ToSlash(filepath.Clean(absPath))
	name := strings.TrimLeft(strings.ReplaceAll(cleaned, "/", "-"), "-")
	if name == "" {
		return "root"
	}
	return name
}

// fileExtract holds one file's parsed output, produced by the parallel
// extraction stage and consumed, read-only, by the sequential resolve
// stage.
type fileExtract struct {
	info   discover.FileInfo
	source []byte
	result *extractor.Result
	index  *symtab.FileIndex
}

// Run discovers, extracts, resolves, and bulk-writes the repository's code
// graph in a single Store transaction. When incremental is true and every
// discovered file's content hash matches the last run, Run is a no-op
// (Stats.Skipped): any change triggers a full repo-global re-extract and
// re-resolve, since no cross-run delta-resolution logic is implemented.
func (p *Pipeline) Run(incremental bool) (*Stats, error) {
	if err := p.ctx.Err(); err != nil {
		return nil, err
	}

	files, err := discover.Discover(p.ctx, p.repoPath, p.cfg)
	if err != nil {
		return nil, fmt.Errorf("discover: %w: %v", ErrIOFailure, err)
	}
	if len(p.scope) > 0 {
		scoped := files[:0:0]
		for _, f := range files {
			if inScope(p.scope, f.RelPath) {
				scoped = append(scoped, f)
			}
		}
		files = scoped
	}
	slog.Info("pipeline.discovered", "project", p.projectName, "files", len(files))

	stats := &Stats{FilesDiscovered: len(files)}

	hashes, changed := p.hashFiles(files)
	stats.FilesChanged = changed

	if incremental && len(files) > 0 && changed == 0 {
		stats.Skipped = true
		slog.Info("pipeline.noop", "project", p.projectName, "reason", "no_changes")
		return stats, nil
	}

	table := symtab.New(p.projectName)
	extracts, indexed, err := p.extractAll(files, table)
	if err != nil {
		return nil, err
	}

	res := resolver.New(table)
	if modulePath := p.goModulePath(); modulePath != "" {
		res.SetGoModule(p.repoPath, modulePath)
	}

	a := p.assemble(extracts, table, res)

	nodes, edges := convert(a, p.projectName)
	stats.Nodes = len(nodes)
	stats.Edges = len(edges)
	stats.Violations = a.Violations()
	for _, v := range stats.Violations {
		slog.Warn("pipeline.schema_violation", "project", p.projectName, "detail", v)
	}

	if err := p.store.WithTransaction(func(tx *store.Store) error {
		if err := tx.UpsertProject(p.projectName, p.repoPath); err != nil {
			return err
		}
		idMap, err := tx.UpsertNodeBatch(nodes)
		if err != nil {
			return err
		}
		if err := tx.InsertEdgeBatch(resolveEdgeIDs(edges, idMap, p.projectName)); err != nil {
			return err
		}
		return tx.UpsertFileHashBatch(hashes)
	}); err != nil {
		return nil, fmt.Errorf("write graph: %w: %v", ErrStoreFailure, err)
	}

	slog.Info("pipeline.done", "project", p.projectName,
		"extracted", indexed.GetCardinality(), "nodes", stats.Nodes, "edges", stats.Edges)
	return stats, nil
}

// hashFiles computes each file's xxh3 content hash in parallel, returning
// the full batch (for UpsertFileHashBatch) plus a count of files whose hash
// differs from (or is absent from) the last indexed run, feeding the
// incremental no-op fast path.
func (p *Pipeline) hashFiles(files []discover.FileInfo) ([]store.FileHash, int) {
	type result struct {
		hash string
		ok   bool
	}
	out := make([]result, len(files))

	numWorkers := runtime.NumCPU()
	if numWorkers > len(files) {
		numWorkers = len(files)
	}
	if numWorkers > 0 {
		g := new(errgroup.Group)
		g.SetLimit(numWorkers)
		for i, f := range files {
			i, f := i, f
			g.Go(func() error {
				data, err := os.ReadFile(f.Path)
				if err != nil {
					return nil
				}
				out[i] = result{hash: fmt.Sprintf("%016x", xxh3.Hash(data)), ok: true}
				return nil
			})
		}
		_ = g.Wait()
	}

	stored, _ := p.store.GetFileHashes(p.projectName)
	hashes := make([]store.FileHash, 0, len(files))
	changed := 0
	for i, f := range files {
		if !out[i].ok {
			continue
		}
		hashes = append(hashes, store.FileHash{Project: p.projectName, RelPath: f.RelPath, SHA256: out[i].hash})
		if stored[f.RelPath] != out[i].hash {
			changed++
		}
	}
	if len(stored) != len(hashes) {
		changed++ // a file present in the last run is now missing (or vice versa)
	}
	return hashes, changed
}

// extractAll runs the parallel extraction stage: one worker per CPU parses
// and extracts each file under a soft timeout, registering every successful
// result into the repo-global symbol table. The returned bitmap marks which
// file ordinals completed, so a mid-run cancellation can report how far the
// extraction stage got before Run aborts.
func (p *Pipeline) extractAll(files []discover.FileInfo, table *symtab.Table) ([]*fileExtract, *roaring.Bitmap, error) {
	results := make([]*fileExtract, len(files))
	indexed := roaring.New()
	var mu sync.Mutex

	numWorkers := runtime.NumCPU()
	if numWorkers > len(files) {
		numWorkers = len(files)
	}
	if numWorkers == 0 {
		return results, indexed, nil
	}

	g, gctx := errgroup.WithContext(p.ctx)
	g.SetLimit(numWorkers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			fe, err := p.extractOne(gctx, f)
			if err != nil {
				slog.Warn("pipeline.extract.err", "path", f.RelPath, "err", err)
				return nil // recoverable: file degrades to absent rather than aborting the run
			}
			table.AddFile(fe.index)
			results[i] = fe
			mu.Lock()
			indexed.Add(uint32(i))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("pipeline.extract.cancelled", "completed", indexed.GetCardinality(), "total", len(files))
		return nil, indexed, err
	}
	return results, indexed, nil
}

// extractOne parses and extracts one file under a soft timeout, degrading
// to an error the caller logs and skips rather than one that aborts Run.
func (p *Pipeline) extractOne(ctx context.Context, f discover.FileInfo) (*fileExtract, error) {
	source, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", f.RelPath, ErrIOFailure, err)
	}

	type outcome struct {
		result *extractor.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := extractor.Extract(f.Path, source, f.Language)
		done <- outcome{res, err}
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, perFileTimeout)
	defer cancel()

	select {
	case <-timeoutCtx.Done():
		return nil, fmt.Errorf("%s: %w", f.RelPath, ErrQueryTimeout)
	case o := <-done:
		if o.err != nil {
			return nil, fmt.Errorf("%s: %w: %v", f.RelPath, ErrParseFailure, o.err)
		}
		return &fileExtract{
			info:   f,
			source: source,
			result: o.result,
			index:  symtab.NewFileIndex(f.RelPath, o.result),
		}, nil
	}
}

// goModulePath parses the indexed repo's own go.mod, when present, so the
// resolver can match Go absolute imports against the repo's own module
// path rather than only the relative "./foo" heuristic.
func (p *Pipeline) goModulePath() string {
	data, err := os.ReadFile(filepath.Join(p.repoPath, "go.mod"))
	if err != nil {
		return ""
	}
	mf, err := modfile.Parse("go.mod", data, nil)
	if err != nil || mf.Module == nil {
		return ""
	}
	return mf.Module.Mod.Path
}

// assemble runs the sequential resolve stage against the fully-populated
// table built by extractAll: directory/file/definition registration, then
// reference resolution, in deterministic (RelPath-sorted) file order.
func (p *Pipeline) assemble(extracts []*fileExtract, table *symtab.Table, res *resolver.Resolver) *assembler.Assembler {
	ordered := make([]*fileExtract, 0, len(extracts))
	for _, fe := range extracts {
		if fe != nil {
			ordered = append(ordered, fe)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].info.RelPath < ordered[j].info.RelPath })

	a := assembler.New(table)
	for _, fe := range ordered {
		p.registerDirChain(a, filepath.Dir(fe.info.Path))
		a.AddFile(fe.info.Path, string(fe.info.Language), string(fe.source), string(fe.source))
		a.AddDefinitions(fe.index)
		for _, ref := range fe.result.References {
			if edge, ok := res.Resolve(fe.index, ref); ok {
				a.AddResolvedEdge(edge)
			}
		}
	}
	return a
}

// registerDirChain registers dir and every ancestor up to repoPath as
// Directory nodes, with repoPath itself rooted at an empty parent.
func (p *Pipeline) registerDirChain(a *assembler.Assembler, dir string) {
	if dir == p.repoPath {
		a.AddDirectory(dir, "")
		return
	}
	if dir == "." || dir == string(filepath.Separator) || !strings.HasPrefix(dir, p.repoPath) {
		return
	}
	parent := filepath.Dir(dir)
	p.registerDirChain(a, parent)
	a.AddDirectory(dir, parent)
}

// pendingEdge mirrors an assembler.Edge prior to qualified-name -> row-ID
// resolution; names are matched against the map UpsertNodeBatch returns.
type pendingEdge struct {
	kind     schema.EdgeKind
	fromName string
	toName   string
	props    map[string]any
}

// convert turns an Assembler's deduplicated nodes/edges into store rows and
// pending (name-keyed) edges.
func convert(a *assembler.Assembler, project string) ([]*store.Node, []pendingEdge) {
	anodes := a.Nodes()
	nodes := make([]*store.Node, 0, len(anodes))
	for _, n := range anodes {
		nodes = append(nodes, &store.Node{
			Project:       project,
			Label:         string(n.Kind),
			Name:          shortName(n),
			QualifiedName: n.Name,
			FilePath:      n.FilePath,
			StartLine:     n.StartLine,
			EndLine:       n.EndLine,
			Properties:    nodeProps(n),
		})
	}

	aedges := a.Edges()
	edges := make([]pendingEdge, 0, len(aedges))
	for _, e := range aedges {
		var props map[string]any
		if e.Import != "" || e.Alias != "" {
			props = map[string]any{}
			if e.Import != "" {
				props["import"] = e.Import
			}
			if e.Alias != "" {
				props["alias"] = e.Alias
			}
		}
		edges = append(edges, pendingEdge{kind: e.Kind, fromName: e.FromName, toName: e.ToName, props: props})
	}
	return nodes, edges
}

func shortName(n assembler.Node) string {
	if len(n.ShortNames) > 0 {
		return n.ShortNames[0]
	}
	return filepath.Base(n.Name)
}

func nodeProps(n assembler.Node) map[string]any {
	if n.Language == "" && n.Code == "" && n.Skeleton == "" {
		return nil
	}
	props := map[string]any{}
	if n.Language != "" {
		props["language"] = n.Language
	}
	if n.Code != "" {
		props["code"] = n.Code
	}
	if n.Skeleton != "" {
		props["skeleton"] = n.Skeleton
	}
	return props
}

// resolveEdgeIDs resolves every pendingEdge's endpoint names to row IDs,
// dropping edges whose endpoint node was itself dropped upstream.
func resolveEdgeIDs(edges []pendingEdge, idMap map[string]int64, project string) []*store.Edge {
	out := make([]*store.Edge, 0, len(edges))
	for _, e := range edges {
		fromID, ok1 := idMap[e.fromName]
		toID, ok2 := idMap[e.toName]
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, &store.Edge{
			Project:    project,
			SourceID:   fromID,
			TargetID:   toID,
			Type:       string(e.kind),
			Properties: e.props,
		})
	}
	return out
}
