package domain

import "time"

// PathHop describes one traversed edge within a path.
type PathHop struct {
	FromID   string
	ToID     string
	Type     EdgeType
	Strength float64
}

// Path is an ordered chain of people connecting a source to a target. Score
// is the product of per-hop strengths normalized to [0,1] and rescaled to
// 0-100, so a single weak hop penalizes the whole chain.
type Path struct {
	PersonIDs     []string
	Hops          []PathHop
	Score         float64
	EdgeTypes     []EdgeType
	ContainsGhost bool
}

// HopCount returns the number of edges in the path.
func (p Path) HopCount() int {
	return len(p.Hops)
}

// RebuildStats summarizes a completed ingestion cycle for observability.
type RebuildStats struct {
	Nodes                 int
	Edges                 int
	RelationshipBreakdown map[EdgeType]int
	CompanyBreakdown      map[string]int
	LastRebuild           time.Time
}
