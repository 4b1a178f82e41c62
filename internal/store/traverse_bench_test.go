package store

import (
	"fmt"
	"testing"
)

// populateCallGraph builds a graph shaped like a resolved reference fan-out:
// one root function referencing fanOut functions, each of which references
// fanOut more (depth 2), mirroring the REFERENCES edges the assembler emits.
func populateCallGraph(b *testing.B, fanOut int) (s *Store, rootID int64) {
	b.Helper()
	var err error
	s, err = OpenMemory()
	if err != nil {
		b.Fatal(err)
	}
	if err := s.UpsertProject("bench", "/tmp/bench"); err != nil {
		b.Fatal(err)
	}

	line := 0
	makeFunc := func(file, name string) int64 {
		line++
		id, nodeErr := s.UpsertNode(&Node{
			Project:       "bench",
			Label:         "Function",
			Name:          name,
			QualifiedName: fmt.Sprintf("/repo/%s#%s", file, name),
			FilePath:      "/repo/" + file,
			StartLine:     line * 5,
			EndLine:       line*5 + 4,
		})
		if nodeErr != nil {
			b.Fatal(nodeErr)
		}
		return id
	}

	rootID = makeFunc("root.go", "Root")

	depth1IDs := make([]int64, fanOut)
	for i := 0; i < fanOut; i++ {
		depth1IDs[i] = makeFunc("mid.go", fmt.Sprintf("Mid%d", i))
		if _, err := s.InsertEdge(&Edge{
			Project:  "bench",
			SourceID: rootID,
			TargetID: depth1IDs[i],
			Type:     "REFERENCES",
		}); err != nil {
			b.Fatal(err)
		}
	}

	for i, parentID := range depth1IDs {
		for j := 0; j < fanOut; j++ {
			leafID := makeFunc("leaf.go", fmt.Sprintf("Leaf%d_%d", i, j))
			if _, err := s.InsertEdge(&Edge{
				Project:  "bench",
				SourceID: parentID,
				TargetID: leafID,
				Type:     "REFERENCES",
			}); err != nil {
				b.Fatal(err)
			}
		}
	}

	return s, rootID
}

func BenchmarkBFS50Edges(b *testing.B) {
	// fanOut=7 gives 1 + 7 + 49 = 57 nodes and 56 edges (close to 50)
	s, rootID := populateCallGraph(b, 7)
	defer s.Close()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		result, err := s.BFS(rootID, "outbound", []string{"REFERENCES"}, 3, 200)
		if err != nil {
			b.Fatal(err)
		}
		if len(result.Visited) == 0 {
			b.Fatal("expected visited nodes")
		}
	}
}

func BenchmarkBFS200Edges(b *testing.B) {
	// fanOut=14 gives 1 + 14 + 196 = 211 nodes, 210 edges
	s, rootID := populateCallGraph(b, 14)
	defer s.Close()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		result, err := s.BFS(rootID, "outbound", []string{"REFERENCES"}, 3, 300)
		if err != nil {
			b.Fatal(err)
		}
		if len(result.Visited) == 0 {
			b.Fatal("expected visited nodes")
		}
	}
}

func BenchmarkBFSInbound(b *testing.B) {
	s, err := OpenMemory()
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()

	if err := s.UpsertProject("bench", "/tmp/bench"); err != nil {
		b.Fatal(err)
	}

	// A widely-referenced type, pulled in from 50 distinct call sites.
	targetID, _ := s.UpsertNode(&Node{
		Project:       "bench",
		Label:         "Class",
		Name:          "SharedConfig",
		QualifiedName: "/repo/config.go#SharedConfig",
		FilePath:      "/repo/config.go",
	})

	for i := 0; i < 50; i++ {
		callerID, _ := s.UpsertNode(&Node{
			Project:       "bench",
			Label:         "Function",
			Name:          fmt.Sprintf("Caller%d", i),
			QualifiedName: fmt.Sprintf("/repo/callers/caller%d.go#Caller%d", i, i),
			FilePath:      fmt.Sprintf("/repo/callers/caller%d.go", i),
		})
		if _, err := s.InsertEdge(&Edge{
			Project:  "bench",
			SourceID: callerID,
			TargetID: targetID,
			Type:     "REFERENCES",
		}); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		result, err := s.BFS(targetID, "inbound", []string{"REFERENCES"}, 2, 200)
		if err != nil {
			b.Fatal(err)
		}
		if len(result.Visited) == 0 {
			b.Fatal("expected visited nodes")
		}
	}
}

func BenchmarkBFSDepthScaled(b *testing.B) {
	for _, depth := range []int{1, 2, 3, 5} {
		b.Run(fmt.Sprintf("depth=%d", depth), func(b *testing.B) {
			s, rootID := populateCallGraph(b, 5)
			defer s.Close()

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, err := s.BFS(rootID, "outbound", []string{"REFERENCES"}, depth, 500)
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
