package generator

import (
	"context"
	"sort"

	"github.com/anika/warmpath/internal/domain"
)

const (
	interestStrength      = 45.0
	interestConfidence    = 100.0
	interestGhostDiscount = 40.0
	interestGroupCap      = 50
)

// InterestSource derives affinity edges from shared interests. It plugs into
// the rebuild pipeline as an evidence source, demonstrating how ingestion
// accepts dimensions beyond the built-in ones.
type InterestSource struct {
	maxGroup int
}

// NewInterestSource builds the source. maxGroup bounds the pairing work per
// interest; zero applies the default cap.
func NewInterestSource(maxGroup int) *InterestSource {
	if maxGroup <= 0 {
		maxGroup = interestGroupCap
	}
	return &InterestSource{maxGroup: maxGroup}
}

func (s *InterestSource) Name() string {
	return "interest-affinity"
}

func (s *InterestSource) Edges(ctx context.Context, persons []domain.Person) ([]domain.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	groups := make(map[string][]domain.Person)
	for _, p := range persons {
		for _, interest := range p.Interests {
			groups[interest] = append(groups[interest], p)
		}
	}

	interests := make([]string, 0, len(groups))
	for name := range groups {
		interests = append(interests, name)
	}
	sort.Strings(interests)

	var edges []domain.Edge
	seen := make(map[[2]string]struct{})
	for _, name := range interests {
		members := groups[name]
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		if len(members) > s.maxGroup {
			members = members[:s.maxGroup]
		}
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := members[i], members[j]
				pair := [2]string{a.ID, b.ID}
				if _, dup := seen[pair]; dup {
					continue
				}
				seen[pair] = struct{}{}
				confidence := interestConfidence
				if a.Ghost() {
					confidence -= interestGhostDiscount
				}
				if b.Ghost() {
					confidence -= interestGhostDiscount
				}
				meta := domain.EdgeMetadata{Affiliation: "interest:" + name}
				edges = append(edges,
					domain.Edge{
						FromID:     a.ID,
						ToID:       b.ID,
						Type:       domain.EdgeAffiliation,
						Strength:   interestStrength,
						Confidence: confidence,
						Metadata:   meta,
					},
					domain.Edge{
						FromID:     b.ID,
						ToID:       a.ID,
						Type:       domain.EdgeAffiliation,
						Strength:   interestStrength,
						Confidence: confidence,
						Metadata:   meta,
					},
				)
			}
		}
	}
	return edges, nil
}
