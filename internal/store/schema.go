package store

import "fmt"

// SchemaInfo summarizes a project's graph for a caller orienting itself
// before writing a Query: label/edge-type counts, the most common
// (from)-[type]->(to) shapes, and a handful of sample names per kind.
type SchemaInfo struct {
	NodeLabels           []LabelCount `json:"node_labels"`
	RelationshipTypes    []TypeCount  `json:"relationship_types"`
	RelationshipPatterns []string     `json:"relationship_patterns"`
	SampleFunctionNames  []string     `json:"sample_function_names"`
	SampleClassNames     []string     `json:"sample_class_names"`
	SampleQualifiedNames []string     `json:"sample_qualified_names"`
}

// LabelCount is a node label paired with how many nodes carry it.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TypeCount is an edge type paired with how many edges carry it.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

const schemaSampleLimit = 25
const schemaSampleNameLimit = 30
const schemaSampleQNLimit = 5

// GetSchema profiles a project's node/edge population: label and edge-type
// frequency, the most common source-label/edge-type/target-label triples,
// and a few sample names to seed a caller's first query.
func (s *Store) GetSchema(project string) (*SchemaInfo, error) {
	info := &SchemaInfo{}

	labelCounts, err := s.queryLabelCounts(project)
	if err != nil {
		return nil, err
	}
	info.NodeLabels = labelCounts

	typeCounts, err := s.queryEdgeTypeCounts(project)
	if err != nil {
		return nil, err
	}
	info.RelationshipTypes = typeCounts

	patterns, err := s.queryRelationshipPatterns(project)
	if err != nil {
		return nil, err
	}
	info.RelationshipPatterns = patterns

	funcs, err := s.sampleNodeNames(project, "Function", schemaSampleNameLimit)
	if err != nil {
		return nil, err
	}
	info.SampleFunctionNames = funcs

	classes, err := s.sampleNodeNames(project, "Class", 20)
	if err != nil {
		return nil, err
	}
	info.SampleClassNames = classes

	qns, err := s.sampleQualifiedNames(project, schemaSampleQNLimit)
	if err != nil {
		return nil, err
	}
	info.SampleQualifiedNames = qns

	return info, nil
}

func (s *Store) queryLabelCounts(project string) ([]LabelCount, error) {
	rows, err := s.db.Query(
		"SELECT label, COUNT(*) FROM nodes WHERE project=? GROUP BY label ORDER BY COUNT(*) DESC", project)
	if err != nil {
		return nil, fmt.Errorf("schema labels: %w", err)
	}
	defer rows.Close()

	var out []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

func (s *Store) queryEdgeTypeCounts(project string) ([]TypeCount, error) {
	rows, err := s.db.Query(
		"SELECT type, COUNT(*) FROM edges WHERE project=? GROUP BY type ORDER BY COUNT(*) DESC", project)
	if err != nil {
		return nil, fmt.Errorf("schema edge types: %w", err)
	}
	defer rows.Close()

	var out []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// queryRelationshipPatterns returns the most frequent (src label)-[type]->(target label)
// shapes actually present in the graph, rendered as Cypher-style pattern strings.
func (s *Store) queryRelationshipPatterns(project string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT sn.label, e.type, tn.label, COUNT(*) AS cnt
		FROM edges e
		JOIN nodes sn ON e.source_id = sn.id
		JOIN nodes tn ON e.target_id = tn.id
		WHERE e.project = ?
		GROUP BY sn.label, e.type, tn.label
		ORDER BY cnt DESC
		LIMIT ?`, project, schemaSampleLimit)
	if err != nil {
		return nil, fmt.Errorf("schema patterns: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var src, rel, tgt string
		var count int
		if err := rows.Scan(&src, &rel, &tgt, &count); err != nil {
			return nil, err
		}
		out = append(out, fmt.Sprintf("(:%s)-[:%s]->(:%s)  [%dx]", src, rel, tgt, count))
	}
	return out, rows.Err()
}

func (s *Store) sampleNodeNames(project, label string, limit int) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT name FROM nodes WHERE project=? AND label=? ORDER BY name LIMIT ?", project, label, limit)
	if err != nil {
		return nil, fmt.Errorf("schema sample %s names: %w", label, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) sampleQualifiedNames(project string, limit int) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT qualified_name FROM nodes WHERE project=? LIMIT ?", project, limit)
	if err != nil {
		return nil, fmt.Errorf("schema sample qualified names: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var qn string
		if err := rows.Scan(&qn); err != nil {
			return nil, err
		}
		out = append(out, qn)
	}
	return out, rows.Err()
}
