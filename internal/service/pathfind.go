package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/anika/warmpath/internal/domain"
)

// FindConnections locates introduction paths from source to target within the
// hop bound and ranks them by aggregate strength. An empty result with a
// message (unknown person, no path within the bound) is a valid outcome, not
// an error; the caller decides whether to extend the bound.
func (s *GraphService) FindConnections(ctx context.Context, sourceID, targetID string, maxHops int) (ConnectionResult, error) {
	if err := ctx.Err(); err != nil {
		return ConnectionResult{}, err
	}
	if maxHops <= 0 {
		maxHops = s.opts.MaxHops
	}

	result := ConnectionResult{
		SourceID: sourceID,
		TargetID: targetID,
		MaxHops:  maxHops,
	}

	idx := s.snapshot()
	if idx == nil {
		result.Message = "graph index not built yet; trigger a rebuild first"
		return result, nil
	}
	if _, ok := idx.Person(sourceID); !ok {
		result.Message = fmt.Sprintf("source person %s not found", sourceID)
		return result, nil
	}
	if _, ok := idx.Person(targetID); !ok {
		result.Message = fmt.Sprintf("target person %s not found", targetID)
		return result, nil
	}
	if sourceID == targetID {
		result.Message = "source and target are the same person"
		return result, nil
	}

	paths := collectPaths(idx, sourceID, targetID, maxHops)
	if len(paths) == 0 {
		result.Message = fmt.Sprintf("no path found within %d hops", maxHops)
		return result, nil
	}

	rankPaths(paths)
	if len(paths) > s.opts.MaxPaths {
		paths = paths[:s.opts.MaxPaths]
	}

	result.Paths = paths
	result.TopScore = paths[0].Score
	return result, nil
}

// collectPaths runs a breadth-first traversal over path states, gathering all
// simple paths from source to target within the hop bound. Each hop between
// two people uses their strongest edge.
func collectPaths(idx *Index, sourceID, targetID string, maxHops int) []domain.Path {
	type state struct {
		ids  []string
		hops []domain.PathHop
	}

	queue := []state{{ids: []string{sourceID}}}
	seen := make(map[string]bool)
	var paths []domain.Path

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		last := cur.ids[len(cur.ids)-1]
		depth := len(cur.hops)
		if depth >= maxHops {
			continue
		}

		for _, n := range idx.StrongestNeighbors(last) {
			if containsID(cur.ids, n.ID) {
				continue
			}
			hop := domain.PathHop{
				FromID:   last,
				ToID:     n.ID,
				Type:     n.Edge.Type,
				Strength: n.Edge.Strength,
			}
			ids := append(append([]string(nil), cur.ids...), n.ID)
			hops := append(append([]domain.PathHop(nil), cur.hops...), hop)

			if n.ID == targetID {
				key := strings.Join(ids, "→")
				if seen[key] {
					continue
				}
				seen[key] = true
				paths = append(paths, buildPath(idx, ids, hops))
				continue
			}
			queue = append(queue, state{ids: ids, hops: hops})
		}
	}

	return paths
}

func buildPath(idx *Index, ids []string, hops []domain.PathHop) domain.Path {
	// Weakest-link policy: the aggregate is the product of normalized hop
	// strengths rescaled to 0-100, so one weak hop drags the whole path down.
	score := 1.0
	types := make([]domain.EdgeType, 0, len(hops))
	for _, h := range hops {
		score *= h.Strength / 100.0
		types = append(types, h.Type)
	}

	ghost := false
	for _, id := range ids {
		if p, ok := idx.Person(id); ok && p.Ghost() {
			ghost = true
			break
		}
	}

	return domain.Path{
		PersonIDs:     ids,
		Hops:          hops,
		Score:         score * 100.0,
		EdgeTypes:     types,
		ContainsGhost: ghost,
	}
}

// rankPaths sorts by score descending, then fewer hops, then more high-trust
// hop types (coworker/education outrank pure social chains of equal score),
// then the id sequence for a stable order.
func rankPaths(paths []domain.Path) {
	sort.Slice(paths, func(i, j int) bool {
		if paths[i].Score != paths[j].Score {
			return paths[i].Score > paths[j].Score
		}
		if paths[i].HopCount() != paths[j].HopCount() {
			return paths[i].HopCount() < paths[j].HopCount()
		}
		ti, tj := highTrustHops(paths[i]), highTrustHops(paths[j])
		if ti != tj {
			return ti > tj
		}
		return strings.Join(paths[i].PersonIDs, "→") < strings.Join(paths[j].PersonIDs, "→")
	})
}

func highTrustHops(p domain.Path) int {
	count := 0
	for _, t := range p.EdgeTypes {
		if domain.HighTrustType(t) {
			count++
		}
	}
	return count
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
