package assembler

import (
	"testing"

	"github.com/codegraph/indexer/internal/extractor"
	"github.com/codegraph/indexer/internal/lang"
	"github.com/codegraph/indexer/internal/resolver"
	"github.com/codegraph/indexer/internal/schema"
	"github.com/codegraph/indexer/internal/symtab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleFileAndDefinitionContainment(t *testing.T) {
	table := symtab.New("proj")
	source := []byte(`package main

func Add() int { return 1 }
`)
	res, err := extractor.Extract("/repo/main.go", source, lang.Go)
	require.NoError(t, err)
	fi := symtab.NewFileIndex("main.go", res)
	table.AddFile(fi)

	a := New(table)
	a.AddDirectory("/repo", "")
	a.AddFile("/repo/main.go", "go", string(source), string(source))
	a.AddDefinitions(fi)

	nodes := a.Nodes()
	var sawFile, sawFunc bool
	for _, n := range nodes {
		if n.Kind == schema.File && n.Name == "/repo/main.go" {
			sawFile = true
		}
		if n.Kind == schema.Function && n.Name == "/repo/main.go#Add" {
			sawFunc = true
		}
	}
	assert.True(t, sawFile)
	assert.True(t, sawFunc)

	var sawContains bool
	for _, e := range a.Edges() {
		if e.Kind == schema.Contains && e.FromName == "/repo/main.go" && e.ToName == "/repo/main.go#Add" {
			sawContains = true
		}
	}
	assert.True(t, sawContains)
}

func TestAssembleGoMethodAttachesToStruct(t *testing.T) {
	table := symtab.New("proj")
	source := []byte(`package main

type Widget struct{}

func (w *Widget) Label() string { return "x" }
`)
	res, err := extractor.Extract("/repo/widget.go", source, lang.Go)
	require.NoError(t, err)
	fi := symtab.NewFileIndex("widget.go", res)
	table.AddFile(fi)

	a := New(table)
	a.AddFile("/repo/widget.go", "go", string(source), string(source))
	a.AddDefinitions(fi)

	var sawContains bool
	for _, e := range a.Edges() {
		if e.Kind == schema.Contains && e.FromKind == schema.Class && e.ToKind == schema.Function {
			sawContains = true
			assert.Contains(t, e.FromName, "Widget")
			assert.Contains(t, e.ToName, "Widget.Label")
		}
	}
	assert.True(t, sawContains)
}

func TestAssembleDedupesRepeatedNodesAndEdges(t *testing.T) {
	a := New(symtab.New("proj"))
	a.AddDirectory("/repo", "")
	a.AddDirectory("/repo", "")
	a.AddFile("/repo/a.go", "go", "code", "code")
	a.AddFile("/repo/a.go", "go", "code", "code")

	assert.Len(t, a.Nodes(), 2) // one Directory, one File
	var containsCount int
	for _, e := range a.Edges() {
		if e.Kind == schema.Contains {
			containsCount++
		}
	}
	assert.Equal(t, 1, containsCount)
}

func TestAssembleUnparsedCreatedOnDemand(t *testing.T) {
	a := New(symtab.New("proj"))
	a.AddResolvedEdge(resolver.Edge{
		Kind: schema.References, FromKind: schema.Function, FromName: "/repo/a.go#Foo",
		ToKind: schema.Unparsed, ToName: "bar",
	})

	var sawUnparsed bool
	for _, n := range a.Nodes() {
		if n.Kind == schema.Unparsed && n.Name == "bar" {
			sawUnparsed = true
		}
	}
	assert.True(t, sawUnparsed)
}

func TestAssembleDropsSchemaViolation(t *testing.T) {
	a := New(symtab.New("proj"))
	a.AddResolvedEdge(resolver.Edge{
		Kind: schema.Inherits, FromKind: schema.Interface, FromName: "x",
		ToKind: schema.Class, ToName: "y",
	})
	assert.Empty(t, a.Edges())
	assert.Len(t, a.Violations(), 1)
}
