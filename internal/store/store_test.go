package store

import (
	"context"
	"fmt"
	"testing"
)

func TestOpenMemory(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	s.Close()
}

func TestNodeCRUD(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	if err := s.UpsertProject("test", "/tmp/test"); err != nil {
		t.Fatalf("UpsertProject: %v", err)
	}

	n := &Node{
		Project:       "test",
		Label:         "Function",
		Name:          "Foo",
		QualifiedName: "/repo/main.go#Foo",
		FilePath:      "main.go",
		StartLine:     10,
		EndLine:       20,
		Properties:    map[string]any{"signature": "func Foo(x int) error"},
	}
	id, err := s.UpsertNode(n)
	if err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	found, err := s.FindNodeByID(id)
	if err != nil {
		t.Fatalf("FindNodeByID: %v", err)
	}
	if found == nil {
		t.Fatal("expected node, got nil")
	}
	if found.Name != "Foo" {
		t.Errorf("expected Foo, got %s", found.Name)
	}
	if found.Properties["signature"] != "func Foo(x int) error" {
		t.Errorf("unexpected signature: %v", found.Properties["signature"])
	}

	nodes, err := s.AllNodes("test")
	if err != nil {
		t.Fatalf("AllNodes: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
}

func TestNodeDedup(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	if err := s.UpsertProject("test", "/tmp/test"); err != nil {
		t.Fatalf("UpsertProject: %v", err)
	}

	n1 := &Node{Project: "test", Label: "Function", Name: "Foo", QualifiedName: "/repo/main.go#Foo"}
	n2 := &Node{Project: "test", Label: "Function", Name: "Foo", QualifiedName: "/repo/main.go#Foo", Properties: map[string]any{"updated": true}}

	if _, err := s.UpsertNode(n1); err != nil {
		t.Fatalf("UpsertNode n1: %v", err)
	}
	id2, err := s.UpsertNode(n2)
	if err != nil {
		t.Fatalf("UpsertNode n2: %v", err)
	}

	nodes, _ := s.AllNodes("test")
	if len(nodes) != 1 {
		t.Errorf("expected 1 node after dedup, got %d", len(nodes))
	}

	found, _ := s.FindNodeByID(id2)
	if found.Properties["updated"] != true {
		t.Error("expected updated property")
	}
}

func TestEdgeCRUD(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	if err := s.UpsertProject("test", "/tmp/test"); err != nil {
		t.Fatalf("UpsertProject: %v", err)
	}

	id1, _ := s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "A", QualifiedName: "/repo/a.go#A"})
	id2, _ := s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "B", QualifiedName: "/repo/b.go#B"})

	_, err = s.InsertEdge(&Edge{Project: "test", SourceID: id1, TargetID: id2, Type: "REFERENCES"})
	if err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}

	edges, err := s.FindEdgesBySource(id1)
	if err != nil {
		t.Fatalf("FindEdgesBySource: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	if edges[0].Type != "REFERENCES" {
		t.Errorf("expected REFERENCES, got %s", edges[0].Type)
	}

	all, _ := s.AllEdges("test")
	if len(all) != 1 {
		t.Errorf("expected 1, got %d", len(all))
	}
}

func TestCascadeDelete(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	if err := s.UpsertProject("test", "/tmp/test"); err != nil {
		t.Fatalf("UpsertProject: %v", err)
	}
	id1, _ := s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "A", QualifiedName: "/repo/a.go#A"})
	id2, _ := s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "B", QualifiedName: "/repo/b.go#B"})
	if _, err := s.InsertEdge(&Edge{Project: "test", SourceID: id1, TargetID: id2, Type: "REFERENCES"}); err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}

	if err := s.DeleteProject("test"); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}

	nodes, _ := s.AllNodes("test")
	edges, _ := s.AllEdges("test")
	if len(nodes) != 0 {
		t.Errorf("expected 0 nodes after cascade, got %d", len(nodes))
	}
	if len(edges) != 0 {
		t.Errorf("expected 0 edges after cascade, got %d", len(edges))
	}
}

func TestProjectCRUD(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	if err := s.UpsertProject("myproject", "/home/user/myproject"); err != nil {
		t.Fatalf("UpsertProject: %v", err)
	}

	p, err := s.GetProject("myproject")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if p.Name != "myproject" {
		t.Errorf("expected myproject, got %s", p.Name)
	}
	if p.RootPath != "/home/user/myproject" {
		t.Errorf("unexpected root: %s", p.RootPath)
	}

	projects, err := s.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(projects))
	}
}

func TestFileHashes(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	if err := s.UpsertProject("test", "/tmp/test"); err != nil {
		t.Fatalf("UpsertProject: %v", err)
	}

	if err := s.UpsertFileHash("test", "main.go", "abc123"); err != nil {
		t.Fatalf("UpsertFileHash: %v", err)
	}

	hashes, err := s.GetFileHashes("test")
	if err != nil {
		t.Fatalf("GetFileHashes: %v", err)
	}
	if hashes["main.go"] != "abc123" {
		t.Errorf("expected abc123, got %s", hashes["main.go"])
	}

	if err := s.UpsertFileHash("test", "main.go", "def456"); err != nil {
		t.Fatalf("UpsertFileHash update: %v", err)
	}
	hashes, _ = s.GetFileHashes("test")
	if hashes["main.go"] != "def456" {
		t.Errorf("expected def456, got %s", hashes["main.go"])
	}
}

func TestPragmaSettings(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	tests := []struct {
		pragma string
		want   string
	}{
		{"synchronous", "0"},
		{"temp_store", "2"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		var val string
		err := s.DB().QueryRowContext(context.Background(), "PRAGMA "+tt.pragma).Scan(&val)
		if err != nil {
			t.Fatalf("PRAGMA %s: %v", tt.pragma, err)
		}
		if val != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, val, tt.want)
		}
	}
}

func TestUpsertNodeBatch(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.UpsertProject("test", "/tmp/test"); err != nil {
		t.Fatal(err)
	}

	nodes := make([]*Node, 150)
	for i := range nodes {
		nodes[i] = &Node{
			Project:       "test",
			Label:         "Function",
			Name:          fmt.Sprintf("func_%d", i),
			QualifiedName: fmt.Sprintf("/repo/pkg.go#func_%d", i),
			FilePath:      "pkg.go",
			StartLine:     i * 10,
			EndLine:       i*10 + 9,
		}
	}

	idMap, err := s.UpsertNodeBatch(nodes)
	if err != nil {
		t.Fatalf("UpsertNodeBatch: %v", err)
	}
	if len(idMap) != 150 {
		t.Fatalf("expected 150 IDs, got %d", len(idMap))
	}

	seen := make(map[int64]bool)
	for qn, id := range idMap {
		if id == 0 {
			t.Errorf("zero ID for %s", qn)
		}
		if seen[id] {
			t.Errorf("duplicate ID %d", id)
		}
		seen[id] = true
	}

	stored, _ := s.AllNodes("test")
	if len(stored) != 150 {
		t.Errorf("expected 150 nodes, got %d", len(stored))
	}

	for _, n := range nodes {
		n.Properties = map[string]any{"updated": true}
	}
	idMap2, err := s.UpsertNodeBatch(nodes)
	if err != nil {
		t.Fatalf("UpsertNodeBatch re-upsert: %v", err)
	}
	stored, _ = s.AllNodes("test")
	if len(stored) != 150 {
		t.Errorf("expected 150 after re-upsert, got %d", len(stored))
	}
	for qn, id := range idMap {
		if idMap2[qn] != id {
			t.Errorf("ID changed for %s: %d -> %d", qn, id, idMap2[qn])
		}
	}
}

func TestUpsertNodeBatchEmpty(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	idMap, err := s.UpsertNodeBatch(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(idMap) != 0 {
		t.Errorf("expected empty map, got %d entries", len(idMap))
	}
}

func TestInsertEdgeBatch(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.UpsertProject("test", "/tmp/test"); err != nil {
		t.Fatal(err)
	}

	ids := make([]int64, 10)
	for i := range ids {
		ids[i], _ = s.UpsertNode(&Node{
			Project:       "test",
			Label:         "Function",
			Name:          fmt.Sprintf("f%d", i),
			QualifiedName: fmt.Sprintf("/repo/f%d.go#f%d", i, i),
		})
	}

	edges := make([]*Edge, 0, 200)
	for i := 0; i < 200 && i < len(ids)*len(ids); i++ {
		src := i / len(ids)
		tgt := i % len(ids)
		if src == tgt {
			continue
		}
		edges = append(edges, &Edge{
			Project:  "test",
			SourceID: ids[src],
			TargetID: ids[tgt],
			Type:     "REFERENCES",
		})
		if len(edges) >= 200 {
			break
		}
	}

	if err := s.InsertEdgeBatch(edges); err != nil {
		t.Fatalf("InsertEdgeBatch: %v", err)
	}

	stored, _ := s.AllEdges("test")
	if len(stored) != len(edges) {
		t.Errorf("expected %d edges, got %d", len(edges), len(stored))
	}

	for _, e := range edges {
		e.Properties = map[string]any{"updated": true}
	}
	if err := s.InsertEdgeBatch(edges); err != nil {
		t.Fatalf("InsertEdgeBatch re-insert: %v", err)
	}
	stored, _ = s.AllEdges("test")
	if len(stored) != len(edges) {
		t.Errorf("expected %d edges after re-insert, got %d", len(edges), len(stored))
	}
}

func TestUpsertFileHashBatch(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.UpsertProject("test", "/tmp/test"); err != nil {
		t.Fatal(err)
	}

	hashes := make([]FileHash, 250)
	for i := range hashes {
		hashes[i] = FileHash{
			Project: "test",
			RelPath: fmt.Sprintf("file_%d.go", i),
			SHA256:  fmt.Sprintf("hash_%d", i),
		}
	}

	if err := s.UpsertFileHashBatch(hashes); err != nil {
		t.Fatalf("UpsertFileHashBatch: %v", err)
	}

	stored, err := s.GetFileHashes("test")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 250 {
		t.Fatalf("expected 250 hashes, got %d", len(stored))
	}

	for _, h := range hashes {
		if stored[h.RelPath] != h.SHA256 {
			t.Errorf("hash mismatch for %s: got %s, want %s", h.RelPath, stored[h.RelPath], h.SHA256)
		}
	}

	for i := range hashes {
		hashes[i].SHA256 = fmt.Sprintf("updated_%d", i)
	}
	if err := s.UpsertFileHashBatch(hashes); err != nil {
		t.Fatal(err)
	}
	stored, _ = s.GetFileHashes("test")
	if len(stored) != 250 {
		t.Errorf("expected 250 after update, got %d", len(stored))
	}
	if stored["file_0.go"] != "updated_0" {
		t.Errorf("expected updated hash, got %s", stored["file_0.go"])
	}
}

func TestFindNodeIDsByQNs(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.UpsertProject("test", "/tmp/test"); err != nil {
		t.Fatal(err)
	}

	id1, _ := s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "A", QualifiedName: "/repo/a.go#A"})
	id2, _ := s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "B", QualifiedName: "/repo/b.go#B"})

	idMap, err := s.FindNodeIDsByQNs("test", []string{"/repo/a.go#A", "/repo/b.go#B", "/repo/missing.go#X"})
	if err != nil {
		t.Fatal(err)
	}
	if idMap["/repo/a.go#A"] != id1 {
		t.Errorf("A: expected %d, got %d", id1, idMap["/repo/a.go#A"])
	}
	if idMap["/repo/b.go#B"] != id2 {
		t.Errorf("B: expected %d, got %d", id2, idMap["/repo/b.go#B"])
	}
	if _, ok := idMap["/repo/missing.go#X"]; ok {
		t.Error("expected missing QN to not be in map")
	}
}

func TestGetSchema(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.UpsertProject("test", "/tmp/test"); err != nil {
		t.Fatal(err)
	}

	fnID, _ := s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "Handle", QualifiedName: "/repo/h.go#Handle"})
	classID, _ := s.UpsertNode(&Node{Project: "test", Label: "Class", Name: "Config", QualifiedName: "/repo/c.go#Config"})
	if _, err := s.InsertEdge(&Edge{Project: "test", SourceID: fnID, TargetID: classID, Type: "REFERENCES"}); err != nil {
		t.Fatal(err)
	}

	info, err := s.GetSchema("test")
	if err != nil {
		t.Fatalf("GetSchema: %v", err)
	}
	if len(info.NodeLabels) != 2 {
		t.Errorf("expected 2 node labels, got %d", len(info.NodeLabels))
	}
	if len(info.RelationshipTypes) != 1 || info.RelationshipTypes[0].Type != "REFERENCES" {
		t.Errorf("expected 1 REFERENCES relationship type, got %v", info.RelationshipTypes)
	}
	if len(info.RelationshipPatterns) != 1 {
		t.Errorf("expected 1 relationship pattern, got %d", len(info.RelationshipPatterns))
	}
	if len(info.SampleFunctionNames) != 1 || info.SampleFunctionNames[0] != "Handle" {
		t.Errorf("expected sample function Handle, got %v", info.SampleFunctionNames)
	}
	if len(info.SampleClassNames) != 1 || info.SampleClassNames[0] != "Config" {
		t.Errorf("expected sample class Config, got %v", info.SampleClassNames)
	}
	if len(info.SampleQualifiedNames) != 2 {
		t.Errorf("expected 2 sample qualified names, got %d", len(info.SampleQualifiedNames))
	}
}

func TestBFSOutboundRespectsDepthAndType(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.UpsertProject("test", "/tmp/test"); err != nil {
		t.Fatal(err)
	}

	rootID, _ := s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "Root", QualifiedName: "/repo/a.go#Root"})
	midID, _ := s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "Mid", QualifiedName: "/repo/b.go#Mid"})
	leafID, _ := s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "Leaf", QualifiedName: "/repo/c.go#Leaf"})
	unreachedID, _ := s.UpsertNode(&Node{Project: "test", Label: "Function", Name: "Unreached", QualifiedName: "/repo/d.go#Unreached"})

	mustInsert := func(from, to int64, edgeType string) {
		if _, err := s.InsertEdge(&Edge{Project: "test", SourceID: from, TargetID: to, Type: edgeType}); err != nil {
			t.Fatal(err)
		}
	}
	mustInsert(rootID, midID, "REFERENCES")
	mustInsert(midID, leafID, "REFERENCES")
	mustInsert(rootID, unreachedID, "IMPORTS")

	result, err := s.BFS(rootID, "outbound", []string{"REFERENCES"}, 2, 10)
	if err != nil {
		t.Fatalf("BFS: %v", err)
	}
	if result.Root == nil || result.Root.ID != rootID {
		t.Fatalf("expected root node to be Root, got %v", result.Root)
	}

	seen := map[int64]int{}
	for _, nh := range result.Visited {
		seen[nh.Node.ID] = nh.Hop
	}
	if hop, ok := seen[midID]; !ok || hop != 1 {
		t.Errorf("expected Mid at hop 1, got %v present=%v", hop, ok)
	}
	if hop, ok := seen[leafID]; !ok || hop != 2 {
		t.Errorf("expected Leaf at hop 2, got %v present=%v", hop, ok)
	}
	if _, ok := seen[unreachedID]; ok {
		t.Error("expected IMPORTS edge to be excluded from a REFERENCES-only traversal")
	}
}

func TestBatchSizeSafety(t *testing.T) {
	if numNodeCols*nodesBatchSize >= 999 {
		t.Errorf("node batch exceeds limit: %d cols × %d rows = %d (max 998)",
			numNodeCols, nodesBatchSize, numNodeCols*nodesBatchSize)
	}
	if numEdgeCols*edgesBatchSize >= 999 {
		t.Errorf("edge batch exceeds limit: %d cols × %d rows = %d (max 998)",
			numEdgeCols, edgesBatchSize, numEdgeCols*edgesBatchSize)
	}
}
