// Package extractor runs a language's declarative definition and reference
// queries against a parsed file and turns the matches into an ordered list
// of Definitions and RawReferences. It performs no cross-file work: name
// resolution and edge materialisation are the resolver's and assembler's
// job (internal/resolver, internal/assembler).
package extractor

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraph/indexer/internal/lang"
	"github.com/codegraph/indexer/internal/parser"
	"github.com/codegraph/indexer/internal/schema"
)

// Role classifies a RawReference by the syntactic position its name path
// was found in.
type Role string

const (
	RoleImport    Role = "import"
	RoleInherit   Role = "inherit"
	RoleCall      Role = "call"
	RoleArg       Role = "arg"
	RoleKwarg     Role = "kwarg"
	RoleAssignRHS Role = "assign_rhs"
	RoleBinop     Role = "binop"
	RoleCompare   Role = "compare"
	RoleTypeRef   Role = "typeref"
)

const skeletonPlaceholder = "{ ... }"

// Definition is one definition-query match, fully named and with its
// skeleton source computed.
type Definition struct {
	Kind            schema.NodeKind
	Name            string
	FQName          string
	ShortNames      []string
	StartLine       int
	EndLine         int
	StartByte       uint
	EndByte         uint
	BodyStartByte   uint
	BodyEndByte     uint
	Code            string
	SkeletonCode    string
	Params          []string
	ReceiverType    string
	Bases           []string
	FirstReturnType string
	// ParentIndex is the index, within the same Result.Definitions slice, of
	// the smallest lexically enclosing definition, or -1 at file scope.
	ParentIndex int
}

// RawReference is a pre-resolution mention of a name path found inside (or,
// for imports, alongside) a definition.
type RawReference struct {
	// FromDefIndex is the index into Result.Definitions of the innermost
	// definition whose span contains this reference, or -1 at file scope.
	FromDefIndex int
	NamePath     []string
	Role         Role
	Symbol       string
	Alias        string
	Line         int
}

// Result is everything Extract produces for one file.
type Result struct {
	FilePath    string
	Language    lang.Language
	Definitions []Definition
	References  []RawReference
}

// Extract parses source and evaluates language's definition and reference
// queries against the resulting tree.
func Extract(filePath string, source []byte, language lang.Language) (*Result, error) {
	tree, err := parser.Parse(language, source)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filePath, err)
	}
	defer tree.Close()

	defQuery, err := parser.DefinitionQuery(language)
	if err != nil {
		return nil, err
	}
	refQuery, err := parser.ReferenceQuery(language)
	if err != nil {
		return nil, err
	}

	root := tree.RootNode()

	raw, importRefs := runDefinitionQuery(defQuery, root, source)
	assignParents(raw)
	infos := assignNames(filePath, raw)

	defs := make([]Definition, len(raw))
	for i, d := range raw {
		defs[i] = buildDefinition(d, raw, infos[i], source)
	}

	refs := runReferenceQuery(refQuery, root, source, defs)
	refs = append(refs, importRefs...)

	return &Result{
		FilePath:    filePath,
		Language:    language,
		Definitions: defs,
		References:  refs,
	}, nil
}

// rawDef is a definition-query match before names, skeletons, and parent
// links are computed.
type rawDef struct {
	node         tree_sitter.Node
	kind         schema.NodeKind
	localName    string
	bases        []string
	receiverType string
	parent       int
}

func kindForWrapper(wrapper string) (schema.NodeKind, bool) {
	switch wrapper {
	case "function", "method":
		return schema.Function, true
	case "class":
		return schema.Class, true
	case "interface":
		return schema.Interface, true
	case "othertype":
		return schema.OtherType, true
	case "variable":
		return schema.Variable, true
	}
	return "", false
}

// runDefinitionQuery evaluates the definition query, producing one rawDef
// per non-import match and one import RawReference per import match.
func runDefinitionQuery(q *tree_sitter.Query, root *tree_sitter.Node, source []byte) ([]rawDef, []RawReference) {
	captureNames := q.CaptureNames()
	cursor := tree_sitter.NewQueryCursor()
	defer cursor.Close()

	var defs []rawDef
	var imports []RawReference

	matches := cursor.Matches(q, root, source)
	for match := matches.Next(); match != nil; match = matches.Next() {
		var wrapperKind string
		var wrapperNode *tree_sitter.Node
		var name, receiverType, importSource, symbol, alias string
		var bases []string

		for _, capture := range match.Captures {
			parts := strings.SplitN(captureNames[capture.Index], ".", 3)
			if len(parts) < 2 {
				continue
			}
			n := capture.Node
			if len(parts) == 2 {
				wrapperKind = parts[1]
				wrapperNode = &n
				continue
			}
			switch parts[2] {
			case "name":
				name = parser.NodeText(&n, source)
			case "receiver_type":
				receiverType = parser.NodeText(&n, source)
			case "base":
				bases = append(bases, parser.NodeText(&n, source))
			case "source":
				importSource = trimQuotes(parser.NodeText(&n, source))
			case "symbol":
				symbol = parser.NodeText(&n, source)
			case "alias":
				alias = parser.NodeText(&n, source)
			}
		}

		if wrapperNode == nil {
			continue
		}

		if wrapperKind == "import" {
			namePath := []string{importSource}
			if symbol != "" {
				namePath = append(namePath, symbol)
			}
			imports = append(imports, RawReference{
				FromDefIndex: -1,
				NamePath:     namePath,
				Role:         RoleImport,
				Symbol:       symbol,
				Alias:        alias,
				Line:         int(wrapperNode.StartPosition().Row) + 1,
			})
			continue
		}

		kind, ok := kindForWrapper(wrapperKind)
		if !ok || name == "" {
			continue
		}
		defs = append(defs, rawDef{
			node:         *wrapperNode,
			kind:         kind,
			localName:    name,
			bases:        bases,
			receiverType: receiverType,
			parent:       -1,
		})
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].node.StartByte() < defs[j].node.StartByte() })
	return defs, imports
}

// assignParents links each definition to the smallest definition whose span
// strictly contains it, implementing the lexical half of owner-chain
// construction (the other half is the Go receiver-type override).
func assignParents(defs []rawDef) {
	for i := range defs {
		best := -1
		for j := range defs {
			if i == j {
				continue
			}
			same := defs[j].node.StartByte() == defs[i].node.StartByte() && defs[j].node.EndByte() == defs[i].node.EndByte()
			if same {
				continue
			}
			if defs[j].node.StartByte() <= defs[i].node.StartByte() && defs[j].node.EndByte() >= defs[i].node.EndByte() {
				if best == -1 || defs[j].node.StartByte() > defs[best].node.StartByte() {
					best = j
				}
			}
		}
		defs[i].parent = best
	}
}

type nameInfo struct {
	fqname     string
	shortNames []string
}

// assignNames computes fqname = "<file_path>#<dotted_owner_chain>.<local_name>"
// and the short_names suffix chain, disambiguating same-file name collisions
// with a "#N" suffix per the tie-break rule.
func assignNames(filePath string, defs []rawDef) []nameInfo {
	infos := make([]nameInfo, len(defs))
	seen := map[string]int{}

	for i, d := range defs {
		chain := ownerChain(defs, i)
		full := append(append([]string{}, chain...), d.localName)
		fq := filePath + "#" + strings.Join(full, ".")

		seen[fq]++
		if n := seen[fq]; n > 1 {
			fq = fmt.Sprintf("%s#%d", fq, n)
		}

		infos[i] = nameInfo{
			fqname:     fq,
			shortNames: shortNameChain(filePath, chain, d.localName),
		}
	}
	return infos
}

// ownerChain walks a definition's ancestors (or, for a Go method, its
// receiver type) to build the dotted owner prefix for fqname/short_name
// construction.
func ownerChain(defs []rawDef, idx int) []string {
	d := defs[idx]
	if d.receiverType != "" {
		return []string{d.receiverType}
	}

	var chain []string
	cur := d.parent
	for cur != -1 {
		p := defs[cur]
		name := p.localName
		if p.receiverType != "" {
			name = p.receiverType
		}
		chain = append([]string{name}, chain...)
		cur = p.parent
	}
	return chain
}

func shortNameChain(filePath string, chain []string, localName string) []string {
	names := []string{localName}
	acc := localName
	for i := len(chain) - 1; i >= 0; i-- {
		acc = chain[i] + "." + acc
		names = append(names, acc)
	}
	names = append(names, filepath.Base(filePath)+"."+acc)
	return names
}

func buildDefinition(d rawDef, all []rawDef, info nameInfo, source []byte) Definition {
	startByte, endByte := d.node.StartByte(), d.node.EndByte()

	var bodyStart, bodyEnd uint
	if body := d.node.ChildByFieldName("body"); body != nil {
		bodyStart, bodyEnd = body.StartByte(), body.EndByte()
	}

	return Definition{
		Kind:            d.kind,
		Name:            d.localName,
		FQName:          info.fqname,
		ShortNames:      info.shortNames,
		StartLine:       int(d.node.StartPosition().Row) + 1,
		EndLine:         int(d.node.EndPosition().Row) + 1,
		StartByte:       startByte,
		EndByte:         endByte,
		BodyStartByte:   bodyStart,
		BodyEndByte:     bodyEnd,
		Code:            string(source[startByte:endByte]),
		SkeletonCode:    buildSkeleton(d, all, source),
		Params:          paramNames(&d.node, source),
		ReceiverType:    d.receiverType,
		Bases:           d.bases,
		FirstReturnType: firstReturnType(&d.node, source),
		ParentIndex:     d.parent,
	}
}

// buildSkeleton replaces the body of every Function definition strictly
// nested inside d with a single-line placeholder, working from the
// rightmost body first so earlier byte offsets stay valid.
func buildSkeleton(d rawDef, all []rawDef, source []byte) string {
	type span struct{ start, end uint }
	var bodies []span

	for _, other := range all {
		if other.kind != schema.Function {
			continue
		}
		if other.node.StartByte() == d.node.StartByte() && other.node.EndByte() == d.node.EndByte() {
			continue
		}
		if other.node.StartByte() < d.node.StartByte() || other.node.EndByte() > d.node.EndByte() {
			continue
		}
		body := other.node.ChildByFieldName("body")
		if body == nil {
			continue
		}
		bodies = append(bodies, span{body.StartByte(), body.EndByte()})
	}
	sort.Slice(bodies, func(i, j int) bool { return bodies[i].start > bodies[j].start })

	base := d.node.StartByte()
	buf := append([]byte(nil), source[d.node.StartByte():d.node.EndByte()]...)
	for _, b := range bodies {
		relStart, relEnd := b.start-base, b.end-base
		if relStart > uint(len(buf)) || relEnd > uint(len(buf)) || relStart > relEnd {
			continue
		}
		next := make([]byte, 0, len(buf))
		next = append(next, buf[:relStart]...)
		next = append(next, []byte(skeletonPlaceholder)...)
		next = append(next, buf[relEnd:]...)
		buf = next
	}
	return string(buf)
}

var paramContainerFields = []string{"parameters", "parameter_list"}

// paramNames collects each parameter's name identifier under a definition's
// parameter list, trying the field names used by the registered grammars.
func paramNames(node *tree_sitter.Node, source []byte) []string {
	var container *tree_sitter.Node
	for _, f := range paramContainerFields {
		if n := node.ChildByFieldName(f); n != nil {
			container = n
			break
		}
	}
	if container == nil {
		return nil
	}

	var names []string
	for i := uint(0); i < container.ChildCount(); i++ {
		child := container.Child(i)
		if child == nil {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil && child.Kind() == "identifier" {
			nameNode = child
		}
		if nameNode != nil {
			names = append(names, parser.NodeText(nameNode, source))
		}
	}
	return names
}

var returnTypeFields = []string{"result", "return_type"}

func firstReturnType(node *tree_sitter.Node, source []byte) string {
	for _, f := range returnTypeFields {
		if n := node.ChildByFieldName(f); n != nil {
			return parser.NodeText(n, source)
		}
	}
	return ""
}

// runReferenceQuery evaluates the reference query. A capture with an
// "owner" sub-component alongside a "name" pairs them into one namePath
// (call/selector style); bare repeated "name" captures within one match
// (e.g. a binary expression's two operands) each yield their own reference.
func runReferenceQuery(q *tree_sitter.Query, root *tree_sitter.Node, source []byte, defs []Definition) []RawReference {
	captureNames := q.CaptureNames()
	cursor := tree_sitter.NewQueryCursor()
	defer cursor.Close()

	var refs []RawReference

	matches := cursor.Matches(q, root, source)
	for match := matches.Next(); match != nil; match = matches.Next() {
		var wrapperAnchor *tree_sitter.Node
		var role Role
		var owner string
		var names []*tree_sitter.Node

		for _, capture := range match.Captures {
			parts := strings.SplitN(captureNames[capture.Index], ".", 3)
			if len(parts) < 2 {
				continue
			}
			n := capture.Node
			r := Role(parts[1])
			if len(parts) == 2 {
				wrapperAnchor = &n
				role = r
				continue
			}
			switch parts[2] {
			case "owner":
				owner = parser.NodeText(&n, source)
				role = r
			case "name":
				names = append(names, &n)
				role = r
			}
		}
		if role == "" {
			continue
		}

		if owner != "" && len(names) > 0 {
			anchor := wrapperAnchor
			if anchor == nil {
				anchor = names[0]
			}
			refs = append(refs, RawReference{
				FromDefIndex: enclosingDef(defs, anchor.StartByte(), anchor.EndByte()),
				NamePath:     []string{owner, parser.NodeText(names[0], source)},
				Role:         role,
				Line:         int(anchor.StartPosition().Row) + 1,
			})
			continue
		}

		for _, nameNode := range names {
			anchor := wrapperAnchor
			if anchor == nil {
				anchor = nameNode
			}
			refs = append(refs, RawReference{
				FromDefIndex: enclosingDef(defs, anchor.StartByte(), anchor.EndByte()),
				NamePath:     []string{parser.NodeText(nameNode, source)},
				Role:         role,
				Line:         int(nameNode.StartPosition().Row) + 1,
			})
		}
	}
	return refs
}

// enclosingDef returns the index of the smallest definition containing
// [start, end), or -1 if the span falls at file scope.
func enclosingDef(defs []Definition, start, end uint) int {
	best := -1
	for i, d := range defs {
		if d.StartByte <= start && d.EndByte >= end {
			if best == -1 || d.StartByte > defs[best].StartByte {
				best = i
			}
		}
	}
	return best
}

func trimQuotes(s string) string {
	return strings.Trim(s, "\"'`")
}
