package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/anika/warmpath/internal/domain"
)

// Confidence model for target resolution.
const (
	exactTierBase      = 60.0
	fuzzyTierBase      = 40.0
	exactTierCap       = 100.0
	fuzzyTierCap       = 95.0
	strongTieBonus     = 10.0 // requester relationship strength > 75
	veryStrongBonus    = 5.0  // additionally > 90
	trustedTypeBonus   = 15.0 // coworker or education tie to the requester
	fullProfileBonus   = 5.0  // candidate has both company and title
	fuzzyThreshold     = 0.3
	fuzzyNameWeight    = 0.5
	fuzzyCompanyWeight = 0.3
	fuzzyTitleWeight   = 0.2
)

type matchCandidate struct {
	person   domain.Person
	fraction float64 // 1.0 for exact-tier hits
	exact    bool
}

// ResolveTarget resolves a free-text target description to ranked candidate
// people. The exact-variant tier runs first; only when it yields nothing does
// the fuzzy token tier run. No candidates is advisory output, not an error.
func (s *GraphService) ResolveTarget(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	if err := ctx.Err(); err != nil {
		return ResolveResult{}, err
	}
	if sanitizeString(req.Name) == "" {
		return ResolveResult{}, fmt.Errorf("target name is required")
	}

	idx := s.snapshot()
	if idx == nil {
		return ResolveResult{
			Found:    false,
			Strategy: "The graph index has not been built yet. Trigger a rebuild, then retry the search.",
		}, nil
	}

	persons := idx.Persons()
	candidates := exactMatches(persons, req)
	exactTier := len(candidates) > 0
	if !exactTier {
		candidates = fuzzyMatches(persons, req)
	}

	candidates = dedupeCandidates(candidates)

	matches := make([]RankedMatch, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, s.rankCandidate(idx, req.RequesterID, c))
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Person.ID < matches[j].Person.ID
	})
	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}

	if len(matches) == 0 {
		return ResolveResult{
			Found: false,
			Strategy: fmt.Sprintf(
				"No person matching %q was found, so no direct connection exists in the current graph. "+
					"Expand the network by ingesting more evidence (colleagues, alumni, affiliations) and rebuilding, "+
					"or broaden the search to name-only.",
				sanitizeString(req.Name)),
		}, nil
	}

	tier := "fuzzy"
	if exactTier {
		tier = "exact"
	}
	return ResolveResult{
		Found:    true,
		Matches:  matches,
		Strategy: fmt.Sprintf("Found %d candidate(s) via %s matching. Run path discovery against the top match to plan the introduction.", len(matches), tier),
	}, nil
}

func exactMatches(persons []domain.Person, req ResolveRequest) []matchCandidate {
	variants := nameVariants(req.Name)
	variantSet := make(map[string]bool, len(variants))
	for _, v := range variants {
		variantSet[v] = true
	}
	companyKey := normalizeCompany(req.Company)

	var out []matchCandidate
	for _, p := range persons {
		if !variantSet[normalizeName(p.FullName)] {
			continue
		}
		if companyKey != "" && !personAtCompany(p, companyKey) {
			continue
		}
		out = append(out, matchCandidate{person: p, fraction: 1.0, exact: true})
	}
	return out
}

func personAtCompany(p domain.Person, companyKey string) bool {
	if normalizeCompany(p.Company) == companyKey {
		return true
	}
	for _, emp := range p.Employments {
		if normalizeCompany(emp.Company) == companyKey {
			return true
		}
	}
	return false
}

// fuzzyMatches scores candidates by the fraction of query tokens that
// substring-match, weighted name 50% / company 30% / title 20%; the weights
// are renormalized over the fields actually present in the query.
func fuzzyMatches(persons []domain.Person, req ResolveRequest) []matchCandidate {
	nameTokens := tokenize(req.Name)
	companyTokens := tokenize(req.Company)
	titleTokens := tokenize(req.Title)

	totalWeight := fuzzyNameWeight
	if len(companyTokens) > 0 {
		totalWeight += fuzzyCompanyWeight
	}
	if len(titleTokens) > 0 {
		totalWeight += fuzzyTitleWeight
	}

	var out []matchCandidate
	for _, p := range persons {
		score := fuzzyNameWeight * tokenMatchFraction(nameTokens, p.FullName)
		if len(companyTokens) > 0 {
			best := tokenMatchFraction(companyTokens, p.Company)
			for _, emp := range p.Employments {
				if f := tokenMatchFraction(companyTokens, emp.Company); f > best {
					best = f
				}
			}
			score += fuzzyCompanyWeight * best
		}
		if len(titleTokens) > 0 {
			score += fuzzyTitleWeight * tokenMatchFraction(titleTokens, p.Title)
		}
		score /= totalWeight

		if score >= fuzzyThreshold {
			out = append(out, matchCandidate{person: p, fraction: score})
		}
	}
	return out
}

// dedupeCandidates collapses candidates sharing a normalized (name, company)
// identity, keeping the strongest fraction.
func dedupeCandidates(candidates []matchCandidate) []matchCandidate {
	best := make(map[string]matchCandidate, len(candidates))
	var order []string
	for _, c := range candidates {
		key := normalizeName(c.person.FullName) + "|" + normalizeCompany(c.person.Company)
		cur, ok := best[key]
		if !ok {
			best[key] = c
			order = append(order, key)
			continue
		}
		if c.fraction > cur.fraction {
			best[key] = c
		}
	}
	out := make([]matchCandidate, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func (s *GraphService) rankCandidate(idx *Index, requesterID string, c matchCandidate) RankedMatch {
	confidence := fuzzyTierBase
	tierCap := fuzzyTierCap
	factors := []string{fmt.Sprintf("fuzzy match (%.0f%% of query tokens)", c.fraction*100)}
	if c.exact {
		confidence = exactTierBase
		tierCap = exactTierCap
		factors = []string{"exact name/company variant match"}
	}

	var tie domain.Edge
	haveTie := false
	if requesterID != "" {
		tie, haveTie = idx.BestEdge(requesterID, c.person.ID)
	}
	if haveTie {
		if tie.Strength > 75 {
			confidence += strongTieBonus
			factors = append(factors, "strong existing relationship")
		}
		if tie.Strength > 90 {
			confidence += veryStrongBonus
		}
		if domain.HighTrustType(tie.Type) {
			confidence += trustedTypeBonus
			factors = append(factors, fmt.Sprintf("high-trust %s tie", tie.Type))
		}
	}
	if c.person.Company != "" && c.person.Title != "" {
		confidence += fullProfileBonus
		factors = append(factors, "complete company and title profile")
	}
	if confidence > tierCap {
		confidence = tierCap
	}

	return RankedMatch{
		Person:            c.person,
		Confidence:        confidence,
		MatchedFactors:    factors,
		SuggestedApproach: approachStrategy(c.person, tie, haveTie),
	}
}

func approachStrategy(p domain.Person, tie domain.Edge, haveTie bool) string {
	switch {
	case haveTie && tie.Strength > 75:
		return fmt.Sprintf("You already share a strong %s relationship with %s; reach out directly.", tie.Type, p.FullName)
	case haveTie:
		return fmt.Sprintf("You share a %s tie with %s; mention the %s context when reaching out.", tie.Type, p.FullName, tie.Type)
	case p.Ghost():
		return fmt.Sprintf("%s has not verified their profile yet; consider an invitation before requesting an introduction.", p.FullName)
	default:
		return fmt.Sprintf("No direct tie to %s; run path discovery to find an intermediary for a warm introduction.", p.FullName)
	}
}
