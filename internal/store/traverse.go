package store

// TraverseResult is the outcome of a BFS walk from a single root node.
type TraverseResult struct {
	Root    *Node
	Visited []*NodeHop
	Edges   []EdgeInfo
}

// NodeHop pairs a node with its distance (in hops) from the BFS root.
type NodeHop struct {
	Node *Node
	Hop  int
}

// EdgeInfo is a denormalized edge, named by endpoint rather than ID, for
// direct inclusion in query output.
type EdgeInfo struct {
	FromName string
	ToName   string
	Type     string
}

// BFS walks the graph breadth-first from startNodeID along edges of the
// given types, in the given direction ("outbound" follows source->target,
// anything else follows target->source), up to maxDepth hops and
// maxResults visited nodes. It backs variable-length relationship
// expansion (e.g. `-[:CALLS*1..3]->`) in the cypher executor.
func (s *Store) BFS(startNodeID int64, direction string, edgeTypes []string, maxDepth, maxResults int) (*TraverseResult, error) {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if maxResults <= 0 {
		maxResults = 200
	}

	root, err := s.FindNodeByID(startNodeID)
	if err != nil {
		return nil, err
	}
	result := &TraverseResult{Root: root}

	hopOf := map[int64]int{startNodeID: 0}

	type frontier struct {
		nodeID int64
		hop    int
	}
	queue := []frontier{{startNodeID, 0}}

	for len(queue) > 0 && len(result.Visited) < maxResults {
		cur := queue[0]
		queue = queue[1:]
		if cur.hop >= maxDepth {
			continue
		}

		var outgoing []*Edge
		for _, edgeType := range edgeTypes {
			var found []*Edge
			var err error
			if direction == "outbound" {
				found, err = s.FindEdgesBySourceAndType(cur.nodeID, edgeType)
			} else {
				found, err = s.FindEdgesByTargetAndType(cur.nodeID, edgeType)
			}
			if err != nil {
				return nil, err
			}
			outgoing = append(outgoing, found...)
		}

		for _, e := range outgoing {
			next := e.TargetID
			if direction != "outbound" {
				next = e.SourceID
			}

			if _, seen := hopOf[next]; !seen {
				hopOf[next] = cur.hop + 1

				nextNode, err := s.FindNodeByID(next)
				if err != nil || nextNode == nil {
					continue
				}

				result.Visited = append(result.Visited, &NodeHop{Node: nextNode, Hop: cur.hop + 1})
				queue = append(queue, frontier{next, cur.hop + 1})

				if len(result.Visited) >= maxResults {
					break
				}
			}

			result.Edges = append(result.Edges, edgeEndpointNames(s, e))
		}
	}

	return result, nil
}

func edgeEndpointNames(s *Store, e *Edge) EdgeInfo {
	info := EdgeInfo{Type: e.Type}
	if from, err := s.FindNodeByID(e.SourceID); err == nil && from != nil {
		info.FromName = from.Name
	}
	if to, err := s.FindNodeByID(e.TargetID); err == nil && to != nil {
		info.ToName = to.Name
	}
	return info
}
