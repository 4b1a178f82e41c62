// Package schema is the typed node/edge catalogue the graph assembler and
// the store must respect. It owns the schema DDL's allowed endpoint-kind
// pairs (invariant I2) so a violation can be caught before it ever reaches
// the store.
package schema

import "fmt"

// NodeKind tags a node by the kind of entity it represents.
type NodeKind string

const (
	Directory NodeKind = "Directory"
	File      NodeKind = "File"
	Class     NodeKind = "Class"
	Interface NodeKind = "Interface"
	Function  NodeKind = "Function"
	Variable  NodeKind = "Variable"
	OtherType NodeKind = "OtherType"
	Unparsed  NodeKind = "Unparsed"
)

// EdgeKind tags an edge by the relationship it represents.
type EdgeKind string

const (
	Contains  EdgeKind = "CONTAINS"
	Imports   EdgeKind = "IMPORTS"
	Inherits  EdgeKind = "INHERITS"
	References EdgeKind = "REFERENCES"
)

// allowedEndpoints is the schema DDL's source of truth for invariant I2:
// every edge's (from_kind, to_kind) pair must appear here.
var allowedEndpoints = map[EdgeKind]map[NodeKind]map[NodeKind]bool{
	Contains: {
		Directory: {Directory: true, File: true},
		File:      {Class: true, Interface: true, Function: true, Variable: true, OtherType: true},
		Class:     {Function: true},
		Interface: {Function: true},
	},
	Imports: {
		File: {
			File: true, Directory: true, Class: true, Interface: true,
			Function: true, Variable: true, OtherType: true, Unparsed: true,
		},
	},
	Inherits: {
		Class: {Class: true, Unparsed: true},
	},
	References: {
		Class:     {Class: true, Interface: true, Function: true, Variable: true, OtherType: true, Unparsed: true},
		Interface: {Class: true, Interface: true, Function: true, Variable: true, OtherType: true, Unparsed: true},
		Function:  {Class: true, Interface: true, Function: true, Variable: true, OtherType: true, Unparsed: true},
		Variable:  {Class: true, Interface: true, Function: true, Variable: true, OtherType: true, Unparsed: true},
	},
}

// Allowed reports whether (fromKind, edgeKind, toKind) is a schema-valid
// endpoint triple. Callers that find a violation must coerce the target to
// Unparsed (resolver rule) or drop the edge entirely (no valid fromKind).
func Allowed(edge EdgeKind, from, to NodeKind) bool {
	byFrom, ok := allowedEndpoints[edge]
	if !ok {
		return false
	}
	toSet, ok := byFrom[from]
	if !ok {
		return false
	}
	return toSet[to]
}

// ValidFromKinds returns the node kinds permitted as the source of edgeKind,
// used by the resolver to decide whether a violation is coercible (swap the
// target for Unparsed) or must be dropped (the source kind itself is never
// valid for this edge).
func ValidFromKinds(edge EdgeKind) []NodeKind {
	byFrom, ok := allowedEndpoints[edge]
	if !ok {
		return nil
	}
	out := make([]NodeKind, 0, len(byFrom))
	for k := range byFrom {
		out = append(out, k)
	}
	return out
}

// ViolationError reports a schema endpoint-kind mismatch (invariant I2).
type ViolationError struct {
	Edge EdgeKind
	From NodeKind
	To   NodeKind
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("schema violation: (%s)-[%s]->(%s) not allowed", e.From, e.Edge, e.To)
}
