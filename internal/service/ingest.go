package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/anika/warmpath/internal/domain"
)

// Per-type base strengths. Family ties are weighted highest, social-platform
// ties lowest.
const (
	baseStrengthFamily      = 90.0
	baseStrengthCoworker    = 75.0
	baseStrengthEducation   = 70.0
	baseStrengthAffiliation = 60.0
	baseStrengthHometown    = 50.0
	baseStrengthSocial      = 40.0
)

// Contextual strength modifiers.
const (
	tenureBonusPerYear    = 3.0
	tenureBonusCap        = 15.0
	schoolOverlapBonus    = 5.0
	degreeMismatchPenalty = 10.0
	extraPlatformBonus    = 5.0
	socialStrengthCap     = 50.0
)

// Confidence model: verified-to-verified edges start fully trusted, each
// ghost endpoint applies a fixed discount, and activation restores it.
const (
	fullConfidence            = 100.0
	ghostConfidencePenalty    = 40.0
	activationConfidenceBoost = 40.0
)

// RebuildGraph recomputes the entire edge set from the evidence store and
// swaps in a fresh index. It is a single logical transaction: if the store
// cannot be read the existing edges are left untouched, and a rebuild already
// in progress causes the call to return the previous completed statistics
// instead of starting a second one. Reads keep using the old snapshot until
// the swap.
func (s *GraphService) RebuildGraph(ctx context.Context) (domain.RebuildStats, error) {
	s.mu.Lock()
	if s.rebuilding {
		stats := s.lastStats
		s.mu.Unlock()
		s.logger.Warn("rebuild already in progress, returning previous stats")
		return stats, nil
	}
	s.rebuilding = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.rebuilding = false
		s.mu.Unlock()
	}()

	started := s.nowFn().UTC()

	persons, err := s.repo.ListPersons(ctx)
	if err != nil {
		return domain.RebuildStats{}, fmt.Errorf("read evidence store: %w", err)
	}

	edges := s.deriveEdges(persons, started)
	edges = append(edges, s.pluginEdges(ctx, persons, started)...)

	if err := s.repo.ReplaceEdges(ctx, edges); err != nil {
		return domain.RebuildStats{}, fmt.Errorf("replace edge set: %w", err)
	}

	idx := BuildIndex(persons, edges, started)
	stats := buildStats(persons, edges, started)

	s.mu.Lock()
	s.index = idx
	s.lastStats = stats
	s.mu.Unlock()

	s.logger.Info("graph rebuilt",
		"nodes", stats.Nodes,
		"edges", stats.Edges,
		"duration", time.Since(started).String(),
	)
	return stats, nil
}

// pluginEdges collects edges from the configured evidence-source plugins. A
// source missing its configuration or failing outright degrades gracefully:
// it is skipped and logged, never fatal to the rebuild.
func (s *GraphService) pluginEdges(ctx context.Context, persons []domain.Person, now time.Time) []domain.Edge {
	var out []domain.Edge
	for _, src := range s.sources {
		edges, err := src.Edges(ctx, persons)
		if errors.Is(err, ErrSourceNotConfigured) {
			s.logger.Warn("evidence source skipped, not configured", "source", src.Name())
			continue
		}
		if err != nil {
			s.logger.Error("evidence source failed, skipping", "source", src.Name(), "error", err)
			continue
		}
		for _, e := range edges {
			if e.FromID == e.ToID || e.FromID == "" || e.ToID == "" {
				continue
			}
			e.Strength = clampScore(e.Strength)
			e.Confidence = clampScore(e.Confidence)
			e.CreatedAt = now
			out = append(out, e)
		}
	}
	return out
}

// pairKey identifies an undirected (a,b,type) relationship.
type pairKey struct {
	a, b string
	typ  domain.EdgeType
}

// edgeBuilder accumulates derived edges with deterministic ordering and
// (from,to,type) deduplication, keeping the strongest candidate per pair.
type edgeBuilder struct {
	byKey map[pairKey]domain.Edge
	order []pairKey
	now   time.Time
}

func newEdgeBuilder(now time.Time) *edgeBuilder {
	return &edgeBuilder{
		byKey: make(map[pairKey]domain.Edge),
		now:   now,
	}
}

func (b *edgeBuilder) add(a, c domain.Person, typ domain.EdgeType, strength float64, meta domain.EdgeMetadata) {
	if a.ID == c.ID {
		return
	}
	// Canonical orientation keeps the dedupe key stable regardless of the
	// order a grouping pass visits the pair in.
	if a.ID > c.ID {
		a, c = c, a
	}
	strength = clampScore(strength)

	key := pairKey{a: a.ID, b: c.ID, typ: typ}
	if existing, ok := b.byKey[key]; ok {
		if existing.Strength >= strength {
			return
		}
	} else {
		b.order = append(b.order, key)
	}

	confidence := fullConfidence
	if a.Ghost() {
		confidence -= ghostConfidencePenalty
	}
	if c.Ghost() {
		confidence -= ghostConfidencePenalty
	}

	b.byKey[key] = domain.Edge{
		FromID:     a.ID,
		ToID:       c.ID,
		Type:       typ,
		Strength:   strength,
		Confidence: clampScore(confidence),
		Metadata:   meta,
		CreatedAt:  b.now,
	}
}

// edges materializes both directions of every accumulated pair.
func (b *edgeBuilder) edges() []domain.Edge {
	out := make([]domain.Edge, 0, len(b.order)*2)
	for _, key := range b.order {
		e := b.byKey[key]
		out = append(out, e)
		reverse := e
		reverse.FromID, reverse.ToID = e.ToID, e.FromID
		out = append(out, reverse)
	}
	return out
}

// deriveEdges runs every evidence dimension over the person set. Grouping is
// deterministic (sorted keys, members sorted by person id) so two runs over
// unchanged evidence produce an identical edge set. Each dimension is a
// grouping-then-pairing pass: O(group²) within a group, with groups capped at
// MaxGroupSize members.
func (s *GraphService) deriveEdges(persons []domain.Person, now time.Time) []domain.Edge {
	sorted := make([]domain.Person, len(persons))
	copy(sorted, persons)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	b := newEdgeBuilder(now)
	currentYear := now.Year()

	s.deriveCoworker(b, sorted, currentYear)
	s.deriveEducation(b, sorted, currentYear)
	s.deriveFamily(b, sorted)
	s.deriveAffiliation(b, sorted)
	s.deriveHometown(b, sorted)
	s.deriveSocial(b, sorted)

	return b.edges()
}

type employmentRef struct {
	person domain.Person
	emp    domain.Employment
}

func (s *GraphService) deriveCoworker(b *edgeBuilder, persons []domain.Person, currentYear int) {
	groups := make(map[string][]employmentRef)
	for _, p := range persons {
		seen := make(map[string]bool)
		for _, emp := range p.Employments {
			key := normalizeCompany(emp.Company)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			groups[key] = append(groups[key], employmentRef{person: p, emp: emp})
		}
		// The headline company counts as evidence even without history dates.
		if key := normalizeCompany(p.Company); key != "" && !seen[key] {
			groups[key] = append(groups[key], employmentRef{person: p, emp: domain.Employment{Company: p.Company}})
		}
	}

	for _, key := range sortedKeys(groups) {
		members := groups[key]
		members = capEmploymentGroup(s, "coworker", key, members)
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, c := members[i], members[j]
				overlap := yearsOverlap(a.emp.StartYear, a.emp.EndYear, c.emp.StartYear, c.emp.EndYear, currentYear)
				bonus := tenureBonusPerYear * float64(overlap)
				if bonus > tenureBonusCap {
					bonus = tenureBonusCap
				}
				b.add(a.person, c.person, domain.EdgeCoworker, baseStrengthCoworker+bonus, domain.EdgeMetadata{
					Company:     a.emp.Company,
					SharedYears: overlap,
				})
			}
		}
	}
}

type educationRef struct {
	person domain.Person
	edu    domain.Education
}

func (s *GraphService) deriveEducation(b *edgeBuilder, persons []domain.Person, currentYear int) {
	groups := make(map[string][]educationRef)
	for _, p := range persons {
		seen := make(map[string]bool)
		for _, edu := range p.Educations {
			key := normalizeName(edu.School)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			groups[key] = append(groups[key], educationRef{person: p, edu: edu})
		}
	}

	for _, key := range sortedKeys(groups) {
		members := groups[key]
		members = capEducationGroup(s, key, members)
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, c := members[i], members[j]
				strength := baseStrengthEducation
				overlap := yearsOverlap(a.edu.StartYear, a.edu.EndYear, c.edu.StartYear, c.edu.EndYear, currentYear)
				if overlap > 0 {
					strength += schoolOverlapBonus
				}
				la, lc := degreeLevel(a.edu.Degree), degreeLevel(c.edu.Degree)
				if la > 0 && lc > 0 && la != lc {
					strength -= degreeMismatchPenalty
				}
				b.add(a.person, c.person, domain.EdgeEducation, strength, domain.EdgeMetadata{
					School:      a.edu.School,
					SharedYears: overlap,
				})
			}
		}
	}
}

func (s *GraphService) deriveFamily(b *edgeBuilder, persons []domain.Person) {
	groups := make(map[string][]domain.Person)
	for _, p := range persons {
		if key := surname(p.FullName); key != "" {
			groups[key] = append(groups[key], p)
		}
	}

	for _, key := range sortedKeys(groups) {
		members := s.capGroup("family", key, groups[key])
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				b.add(members[i], members[j], domain.EdgeFamily, baseStrengthFamily, domain.EdgeMetadata{
					Surname: key,
				})
			}
		}
	}
}

func (s *GraphService) deriveAffiliation(b *edgeBuilder, persons []domain.Person) {
	groups := make(map[string][]domain.Person)
	labels := make(map[string]string)
	for _, p := range persons {
		seen := make(map[string]bool)
		for _, aff := range p.Affiliations {
			key := normalizeName(aff)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			groups[key] = append(groups[key], p)
			if _, ok := labels[key]; !ok {
				labels[key] = aff
			}
		}
	}

	for _, key := range sortedKeys(groups) {
		members := s.capGroup("affiliation", key, groups[key])
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				b.add(members[i], members[j], domain.EdgeAffiliation, baseStrengthAffiliation, domain.EdgeMetadata{
					Affiliation: labels[key],
				})
			}
		}
	}
}

func (s *GraphService) deriveHometown(b *edgeBuilder, persons []domain.Person) {
	groups := make(map[string][]domain.Person)
	labels := make(map[string]string)
	for _, p := range persons {
		city := normalizeName(p.Hometown.City)
		region := normalizeName(p.Hometown.Region)
		if city == "" || region == "" {
			continue
		}
		key := city + "|" + region
		groups[key] = append(groups[key], p)
		if _, ok := labels[key]; !ok {
			labels[key] = p.Hometown.City + ", " + p.Hometown.Region
		}
	}

	for _, key := range sortedKeys(groups) {
		members := s.capGroup("hometown", key, groups[key])
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				b.add(members[i], members[j], domain.EdgeHometown, baseStrengthHometown, domain.EdgeMetadata{
					Hometown: labels[key],
				})
			}
		}
	}
}

// deriveSocial groups people around each platform handle: the handle's owner
// plus everyone listing the handle among their links. Pairs linked on more
// than one platform gain a small bonus.
func (s *GraphService) deriveSocial(b *edgeBuilder, persons []domain.Person) {
	type handleKey struct{ platform, handle string }
	owners := make(map[string][]handleKey) // person id -> owned handles
	byHandle := make(map[handleKey][]domain.Person)

	for _, p := range persons {
		for platform, handle := range p.SocialHandles {
			h := normalizeName(handle)
			if h == "" {
				continue
			}
			owners[p.ID] = append(owners[p.ID], handleKey{platform: platform, handle: h})
		}
	}
	handleOwner := make(map[string]domain.Person)
	for _, p := range persons {
		for _, hk := range owners[p.ID] {
			handleOwner[hk.handle] = p
		}
	}
	for _, p := range persons {
		for _, link := range p.SocialLinks {
			h := normalizeName(link)
			owner, ok := handleOwner[h]
			if !ok || owner.ID == p.ID {
				continue
			}
			for _, hk := range owners[owner.ID] {
				if hk.handle == h {
					byHandle[hk] = append(byHandle[hk], p)
				}
			}
		}
	}

	// Count shared platforms per pair before emitting, so the strength
	// reflects multi-platform ties.
	type socialPair struct {
		a, b      domain.Person
		platforms map[string]bool
	}
	pairs := make(map[string]*socialPair)
	var pairOrder []string

	keys := make([]handleKey, 0, len(byHandle))
	for hk := range byHandle {
		keys = append(keys, hk)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].platform != keys[j].platform {
			return keys[i].platform < keys[j].platform
		}
		return keys[i].handle < keys[j].handle
	})

	for _, hk := range keys {
		owner := handleOwner[hk.handle]
		linkers := byHandle[hk]
		sort.Slice(linkers, func(i, j int) bool { return linkers[i].ID < linkers[j].ID })
		linkers = s.capGroup("social", hk.platform+":"+hk.handle, linkers)
		for _, linked := range linkers {
			a, c := owner, linked
			if a.ID > c.ID {
				a, c = c, a
			}
			key := a.ID + "|" + c.ID
			sp, ok := pairs[key]
			if !ok {
				sp = &socialPair{a: a, b: c, platforms: make(map[string]bool)}
				pairs[key] = sp
				pairOrder = append(pairOrder, key)
			}
			sp.platforms[hk.platform] = true
		}
	}

	sort.Strings(pairOrder)
	for _, key := range pairOrder {
		sp := pairs[key]
		strength := baseStrengthSocial + extraPlatformBonus*float64(len(sp.platforms)-1)
		if strength > socialStrengthCap {
			strength = socialStrengthCap
		}
		b.add(sp.a, sp.b, domain.EdgeSocial, strength, domain.EdgeMetadata{
			Platform: firstPlatform(sp.platforms),
		})
	}
}

// capGroup bounds the pairing step for oversized evidence groups; members are
// already sorted by person id so the truncation is deterministic.
func (s *GraphService) capGroup(dimension, key string, members []domain.Person) []domain.Person {
	if len(members) <= s.opts.MaxGroupSize {
		return members
	}
	s.logger.Warn("evidence group capped",
		"dimension", dimension,
		"key", key,
		"size", len(members),
		"cap", s.opts.MaxGroupSize,
	)
	return members[:s.opts.MaxGroupSize]
}

func capEmploymentGroup(s *GraphService, dimension, key string, members []employmentRef) []employmentRef {
	if len(members) <= s.opts.MaxGroupSize {
		return members
	}
	s.logger.Warn("evidence group capped", "dimension", dimension, "key", key, "size", len(members), "cap", s.opts.MaxGroupSize)
	return members[:s.opts.MaxGroupSize]
}

func capEducationGroup(s *GraphService, key string, members []educationRef) []educationRef {
	if len(members) <= s.opts.MaxGroupSize {
		return members
	}
	s.logger.Warn("evidence group capped", "dimension", "education", "key", key, "size", len(members), "cap", s.opts.MaxGroupSize)
	return members[:s.opts.MaxGroupSize]
}

func buildStats(persons []domain.Person, edges []domain.Edge, at time.Time) domain.RebuildStats {
	breakdown := make(map[domain.EdgeType]int)
	for _, e := range edges {
		// Count each undirected relationship once.
		if e.FromID < e.ToID {
			breakdown[e.Type]++
		}
	}

	companies := make(map[string]int)
	labels := make(map[string]string)
	for _, p := range persons {
		seen := make(map[string]bool)
		collect := func(name string) {
			key := normalizeCompany(name)
			if key == "" || seen[key] {
				return
			}
			seen[key] = true
			companies[key]++
			if _, ok := labels[key]; !ok {
				labels[key] = name
			}
		}
		collect(p.Company)
		for _, emp := range p.Employments {
			collect(emp.Company)
		}
	}
	breakdownByLabel := make(map[string]int, len(companies))
	for key, count := range companies {
		breakdownByLabel[labels[key]] = count
	}

	return domain.RebuildStats{
		Nodes:                 len(persons),
		Edges:                 len(edges),
		RelationshipBreakdown: breakdown,
		CompanyBreakdown:      breakdownByLabel,
		LastRebuild:           at,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstPlatform(platforms map[string]bool) string {
	keys := make([]string, 0, len(platforms))
	for k := range platforms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}
