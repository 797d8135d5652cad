package service

import (
	"sort"
	"time"

	"github.com/anika/warmpath/internal/domain"
)

// Neighbor is one adjacency entry: the neighboring person and the edge that
// connects to them. A pair connected by several edge types appears once per
// type.
type Neighbor struct {
	ID   string
	Edge domain.Edge
}

// Index is the read-only adjacency view over one generation of the edge set.
// It is built in a single O(E) pass and never mutated; a fresh generation
// replaces it wholesale.
type Index struct {
	persons   map[string]domain.Person
	adjacency map[string][]Neighbor
	builtAt   time.Time
}

// BuildIndex constructs an Index from the given people and directed edges.
func BuildIndex(persons []domain.Person, edges []domain.Edge, builtAt time.Time) *Index {
	byID := make(map[string]domain.Person, len(persons))
	for _, p := range persons {
		byID[p.ID] = p
	}

	adjacency := make(map[string][]Neighbor)
	for _, e := range edges {
		if e.FromID == e.ToID {
			continue
		}
		adjacency[e.FromID] = append(adjacency[e.FromID], Neighbor{ID: e.ToID, Edge: e})
	}
	for id := range adjacency {
		nbrs := adjacency[id]
		sort.Slice(nbrs, func(i, j int) bool {
			if nbrs[i].ID != nbrs[j].ID {
				return nbrs[i].ID < nbrs[j].ID
			}
			return nbrs[i].Edge.Type < nbrs[j].Edge.Type
		})
	}

	return &Index{
		persons:   byID,
		adjacency: adjacency,
		builtAt:   builtAt,
	}
}

// Person looks up a person by id.
func (ix *Index) Person(id string) (domain.Person, bool) {
	p, ok := ix.persons[id]
	return p, ok
}

// Persons returns all indexed people sorted by id.
func (ix *Index) Persons() []domain.Person {
	out := make([]domain.Person, 0, len(ix.persons))
	for _, p := range ix.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Neighbors returns the adjacency entries for a person, one per (neighbor,
// edge type).
func (ix *Index) Neighbors(id string) []Neighbor {
	return ix.adjacency[id]
}

// StrongestNeighbors collapses parallel edges, returning for each neighbor
// the single strongest edge. Used by path discovery, where a hop between two
// people is scored by their strongest tie.
func (ix *Index) StrongestNeighbors(id string) []Neighbor {
	nbrs := ix.adjacency[id]
	if len(nbrs) == 0 {
		return nil
	}
	best := make(map[string]Neighbor, len(nbrs))
	order := make([]string, 0, len(nbrs))
	for _, n := range nbrs {
		cur, ok := best[n.ID]
		if !ok {
			best[n.ID] = n
			order = append(order, n.ID)
			continue
		}
		if n.Edge.Strength > cur.Edge.Strength {
			best[n.ID] = n
		}
	}
	out := make([]Neighbor, 0, len(order))
	for _, nid := range order {
		out = append(out, best[nid])
	}
	return out
}

// BestEdge returns the strongest edge from one person to another, if any.
func (ix *Index) BestEdge(fromID, toID string) (domain.Edge, bool) {
	var best domain.Edge
	found := false
	for _, n := range ix.adjacency[fromID] {
		if n.ID != toID {
			continue
		}
		if !found || n.Edge.Strength > best.Strength {
			best = n.Edge
			found = true
		}
	}
	return best, found
}

// Size reports the node and directed-edge counts.
func (ix *Index) Size() (nodes, edges int) {
	nodes = len(ix.persons)
	for _, nbrs := range ix.adjacency {
		edges += len(nbrs)
	}
	return nodes, edges
}
