package resolver

import (
	"testing"

	"github.com/codegraph/indexer/internal/extractor"
	"github.com/codegraph/indexer/internal/lang"
	"github.com/codegraph/indexer/internal/schema"
	"github.com/codegraph/indexer/internal/symtab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func index(t *testing.T, table *symtab.Table, path, relPath string, source []byte, l lang.Language) (*symtab.FileIndex, *extractor.Result) {
	t.Helper()
	res, err := extractor.Extract(path, source, l)
	require.NoError(t, err)
	fi := symtab.NewFileIndex(relPath, res)
	table.AddFile(fi)
	return fi, res
}

func firstRef(t *testing.T, refs []extractor.RawReference, role extractor.Role) extractor.RawReference {
	t.Helper()
	for _, ref := range refs {
		if ref.Role == role {
			return ref
		}
	}
	require.Failf(t, "no reference found", "role %s", role)
	return extractor.RawReference{}
}

func TestResolveLocalCall(t *testing.T) {
	table := symtab.New("proj")
	fi, res := index(t, table, "/repo/main.go", "main.go", []byte(`package main

func Add() int { return 1 }

func main() {
	Add()
}
`), lang.Go)

	r := New(table)
	callRef := firstRef(t, res.References, extractor.RoleCall)

	edge, ok := r.Resolve(fi, callRef)
	require.True(t, ok)
	assert.Equal(t, schema.References, edge.Kind)
	assert.Equal(t, schema.Function, edge.ToKind)
	assert.Contains(t, edge.ToName, "Add")
}

func TestResolveUnresolvedImportBecomesUnparsed(t *testing.T) {
	table := symtab.New("proj")
	fi, res := index(t, table, "/repo/main.go", "main.go", []byte(`package main

import "time"

func main() {
	time.Now()
}
`), lang.Go)

	r := New(table)
	importRef := firstRef(t, res.References, extractor.RoleImport)

	edge, ok := r.Resolve(fi, importRef)
	require.True(t, ok)
	assert.Equal(t, schema.Imports, edge.Kind)
	assert.Equal(t, schema.Unparsed, edge.ToKind)
	assert.Equal(t, "time", edge.ToName)
	assert.Equal(t, "time", edge.Import)
	assert.Equal(t, "time", edge.Alias)
}

func TestResolveSamePackageGoLookup(t *testing.T) {
	table := symtab.New("proj")
	index(t, table, "/repo/pkg/a.go", "pkg/a.go", []byte(`package pkg

func Shared() {}
`), lang.Go)
	fi, res := index(t, table, "/repo/pkg/b.go", "pkg/b.go", []byte(`package pkg

func Use() {
	Shared()
}
`), lang.Go)

	r := New(table)
	callRef := firstRef(t, res.References, extractor.RoleCall)

	edge, ok := r.Resolve(fi, callRef)
	require.True(t, ok)
	assert.Equal(t, schema.Function, edge.ToKind)
	assert.Contains(t, edge.ToName, "a.go#Shared")
}

func TestResolveInheritLocalTarget(t *testing.T) {
	table := symtab.New("proj")
	fi, res := index(t, table, "/repo/w.go", "w.go", []byte(`package main

type Base struct{}

type Widget struct {
	Base
}
`), lang.Go)

	r := New(table)
	inheritRef := firstRef(t, res.References, extractor.RoleInherit)

	edge, ok := r.Resolve(fi, inheritRef)
	require.True(t, ok)
	assert.Equal(t, schema.Inherits, edge.Kind)
	assert.Equal(t, schema.Class, edge.ToKind)
	assert.Contains(t, edge.ToName, "Base")
}

func TestUnparsedDedup(t *testing.T) {
	table := symtab.New("proj")
	r := New(table)
	n1 := r.unparsedName([]string{"foo", "bar"})
	n2 := r.unparsedName([]string{"foo", "bar"})
	assert.Equal(t, n1, n2)
	assert.Len(t, r.unparsed, 1)
}
