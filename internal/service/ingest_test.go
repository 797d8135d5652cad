package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/anika/warmpath/internal/domain"
)

type stubRepository struct {
	mu         sync.Mutex
	persons    map[string]domain.Person
	edges      []domain.Edge
	listErr    error
	replaceErr error
	boostCalls int
	replaced   int
}

func newStubRepository(persons ...domain.Person) *stubRepository {
	repo := &stubRepository{persons: make(map[string]domain.Person)}
	for _, p := range persons {
		repo.persons[p.ID] = p
	}
	return repo
}

func (s *stubRepository) UpsertPerson(_ context.Context, person domain.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persons[person.ID] = person
	return nil
}

func (s *stubRepository) GetPerson(_ context.Context, id string) (domain.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[id]
	if !ok {
		return domain.Person{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *stubRepository) ListPersons(context.Context) ([]domain.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.Person, 0, len(s.persons))
	for _, p := range s.persons {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubRepository) ReplaceEdges(_ context.Context, edges []domain.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.edges = append([]domain.Edge(nil), edges...)
	s.replaced++
	return nil
}

func (s *stubRepository) ListEdges(context.Context) ([]domain.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Edge(nil), s.edges...), nil
}

func (s *stubRepository) MarkVerified(_ context.Context, id string, trustScore float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Verified = true
	p.TrustScore = trustScore
	s.persons[id] = p
	return nil
}

func (s *stubRepository) BoostEdgeConfidence(_ context.Context, personID string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boostCalls++
	for i := range s.edges {
		if s.edges[i].FromID == personID || s.edges[i].ToID == personID {
			s.edges[i].Confidence += delta
			if s.edges[i].Confidence > 100 {
				s.edges[i].Confidence = 100
			}
		}
	}
	return nil
}

func (s *stubRepository) edgeSnapshot() []domain.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Edge(nil), s.edges...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(repo *stubRepository, opts Options, sources ...EvidenceSource) *GraphService {
	svc := NewGraphService(repo, discardLogger(), opts, sources...)
	svc.WithClock(func() time.Time {
		return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	})
	return svc
}

func verifiedPerson(id, name string) domain.Person {
	return domain.Person{ID: id, FullName: name, Verified: true, TrustScore: domain.ActivatedTrustScore}
}

func findEdge(edges []domain.Edge, from, to string, typ domain.EdgeType) (domain.Edge, bool) {
	for _, e := range edges {
		if e.FromID == from && e.ToID == to && e.Type == typ {
			return e, true
		}
	}
	return domain.Edge{}, false
}

func TestRebuildDerivesSymmetricCoworkerEdges(t *testing.T) {
	alex := verifiedPerson("alex", "Alex Rivera")
	alex.Employments = []domain.Employment{{Company: "Acme Corp", StartYear: 2018, EndYear: 2022}}
	jamie := verifiedPerson("jamie", "Jamie Chen")
	jamie.Employments = []domain.Employment{{Company: "Acme Corporation", StartYear: 2020, EndYear: 2023}}

	repo := newStubRepository(alex, jamie)
	svc := newTestService(repo, Options{})

	stats, err := svc.RebuildGraph(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.Nodes != 2 {
		t.Fatalf("expected 2 nodes, got %d", stats.Nodes)
	}

	edges := repo.edgeSnapshot()
	forward, ok := findEdge(edges, "alex", "jamie", domain.EdgeCoworker)
	if !ok {
		t.Fatal("expected forward coworker edge")
	}
	reverse, ok := findEdge(edges, "jamie", "alex", domain.EdgeCoworker)
	if !ok {
		t.Fatal("expected reverse coworker edge")
	}
	if forward.Strength != reverse.Strength {
		t.Fatalf("expected symmetric strengths, got %f and %f", forward.Strength, reverse.Strength)
	}

	// Two overlapping years (2020-2022) on top of the base strength.
	want := 75.0 + 2*3.0
	if forward.Strength != want {
		t.Fatalf("expected strength %f, got %f", want, forward.Strength)
	}
	if forward.Metadata.SharedYears != 2 {
		t.Fatalf("expected 2 shared years, got %d", forward.Metadata.SharedYears)
	}
	if forward.Confidence != 100 {
		t.Fatalf("expected full confidence between verified people, got %f", forward.Confidence)
	}
}

func TestRebuildIsIdempotent(t *testing.T) {
	alex := verifiedPerson("alex", "Alex Rivera")
	alex.Employments = []domain.Employment{{Company: "Acme", StartYear: 2018}}
	alex.Affiliations = []string{"Chess Society"}
	jamie := verifiedPerson("jamie", "Jamie Chen")
	jamie.Employments = []domain.Employment{{Company: "Acme", StartYear: 2019}}
	jamie.Affiliations = []string{"Chess Society"}

	repo := newStubRepository(alex, jamie)
	svc := newTestService(repo, Options{})

	if _, err := svc.RebuildGraph(context.Background()); err != nil {
		t.Fatalf("first rebuild failed: %v", err)
	}
	first := repo.edgeSnapshot()

	if _, err := svc.RebuildGraph(context.Background()); err != nil {
		t.Fatalf("second rebuild failed: %v", err)
	}
	second := repo.edgeSnapshot()

	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical edge sets across rebuilds of unchanged evidence")
	}
}

func TestRebuildEmitsNoSelfLoops(t *testing.T) {
	p := verifiedPerson("alex", "Alex Rivera")
	p.Employments = []domain.Employment{
		{Company: "Acme Corp", StartYear: 2015, EndYear: 2018},
		{Company: "Acme", StartYear: 2019},
	}
	repo := newStubRepository(p)
	svc := newTestService(repo, Options{})

	if _, err := svc.RebuildGraph(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, e := range repo.edgeSnapshot() {
		if e.FromID == e.ToID {
			t.Fatalf("self-loop emitted: %+v", e)
		}
	}
}

func TestRebuildAppliesGhostDiscount(t *testing.T) {
	alex := verifiedPerson("alex", "Alex Rivera")
	alex.Affiliations = []string{"Rotary Club"}
	ghost := domain.Person{ID: "sam", FullName: "Sam Okafor", TrustScore: domain.GhostTrustScore}
	ghost.Affiliations = []string{"Rotary Club"}
	other := domain.Person{ID: "pat", FullName: "Pat Singh", TrustScore: domain.GhostTrustScore}
	other.Affiliations = []string{"Rotary Club"}

	repo := newStubRepository(alex, ghost, other)
	svc := newTestService(repo, Options{})

	if _, err := svc.RebuildGraph(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	edges := repo.edgeSnapshot()
	oneGhost, ok := findEdge(edges, "alex", "sam", domain.EdgeAffiliation)
	if !ok {
		t.Fatal("expected alex-sam affiliation edge")
	}
	if oneGhost.Confidence != 60 {
		t.Fatalf("expected one-ghost confidence 60, got %f", oneGhost.Confidence)
	}

	twoGhosts, ok := findEdge(edges, "pat", "sam", domain.EdgeAffiliation)
	if !ok {
		t.Fatal("expected pat-sam affiliation edge")
	}
	if twoGhosts.Confidence != 20 {
		t.Fatalf("expected two-ghost confidence 20, got %f", twoGhosts.Confidence)
	}
}

func TestCoworkerTenureBonusIsCapped(t *testing.T) {
	alex := verifiedPerson("alex", "Alex Rivera")
	alex.Employments = []domain.Employment{{Company: "Acme", StartYear: 2000, EndYear: 2020}}
	jamie := verifiedPerson("jamie", "Jamie Chen")
	jamie.Employments = []domain.Employment{{Company: "Acme", StartYear: 2000, EndYear: 2020}}

	repo := newStubRepository(alex, jamie)
	svc := newTestService(repo, Options{})

	if _, err := svc.RebuildGraph(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	edge, ok := findEdge(repo.edgeSnapshot(), "alex", "jamie", domain.EdgeCoworker)
	if !ok {
		t.Fatal("expected coworker edge")
	}
	if edge.Strength != 90 {
		t.Fatalf("expected capped strength 90, got %f", edge.Strength)
	}
}

func TestEducationModifiers(t *testing.T) {
	cases := []struct {
		name     string
		a, b     domain.Education
		expected float64
	}{
		{
			name:     "overlap bonus",
			a:        domain.Education{School: "State University", Degree: "Bachelor", StartYear: 2010, EndYear: 2014},
			b:        domain.Education{School: "State University", Degree: "Bachelor", StartYear: 2012, EndYear: 2016},
			expected: 75, // 70 + 5 overlap
		},
		{
			name:     "degree mismatch penalty",
			a:        domain.Education{School: "State University", Degree: "Bachelor", StartYear: 2010, EndYear: 2014},
			b:        domain.Education{School: "State University", Degree: "PhD", StartYear: 2016, EndYear: 2020},
			expected: 60, // 70 - 10 mismatch, no overlap
		},
		{
			name:     "unknown degree is not a mismatch",
			a:        domain.Education{School: "State University", Degree: "Bachelor", StartYear: 2010, EndYear: 2014},
			b:        domain.Education{School: "State University", StartYear: 2016, EndYear: 2020},
			expected: 70,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := verifiedPerson("a", "Avery Stone")
			a.Educations = []domain.Education{tc.a}
			b := verifiedPerson("b", "Blake Reyes")
			b.Educations = []domain.Education{tc.b}

			repo := newStubRepository(a, b)
			svc := newTestService(repo, Options{})
			if _, err := svc.RebuildGraph(context.Background()); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			edge, ok := findEdge(repo.edgeSnapshot(), "a", "b", domain.EdgeEducation)
			if !ok {
				t.Fatal("expected education edge")
			}
			if edge.Strength != tc.expected {
				t.Fatalf("expected strength %f, got %f", tc.expected, edge.Strength)
			}
		})
	}
}

func TestFamilyEdgesRequireSharedSurname(t *testing.T) {
	a := verifiedPerson("a", "Jordan Patel")
	b := verifiedPerson("b", "Riley Patel")
	c := verifiedPerson("c", "Madonna") // single-token names derive nothing

	repo := newStubRepository(a, b, c)
	svc := newTestService(repo, Options{})
	if _, err := svc.RebuildGraph(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	edges := repo.edgeSnapshot()
	edge, ok := findEdge(edges, "a", "b", domain.EdgeFamily)
	if !ok {
		t.Fatal("expected family edge between shared surnames")
	}
	if edge.Strength != 90 {
		t.Fatalf("expected family strength 90, got %f", edge.Strength)
	}
	for _, e := range edges {
		if e.FromID == "c" || e.ToID == "c" {
			t.Fatalf("unexpected edge for single-token name: %+v", e)
		}
	}
}

func TestHometownEdgesRequireCityAndRegion(t *testing.T) {
	a := verifiedPerson("a", "Avery Stone")
	a.Hometown = domain.Hometown{City: "Eugene", Region: "OR"}
	b := verifiedPerson("b", "Blake Reyes")
	b.Hometown = domain.Hometown{City: "Eugene", Region: "OR"}
	c := verifiedPerson("c", "Casey Flores")
	c.Hometown = domain.Hometown{City: "Eugene"} // no region, excluded

	repo := newStubRepository(a, b, c)
	svc := newTestService(repo, Options{})
	if _, err := svc.RebuildGraph(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	edges := repo.edgeSnapshot()
	if _, ok := findEdge(edges, "a", "b", domain.EdgeHometown); !ok {
		t.Fatal("expected hometown edge")
	}
	for _, e := range edges {
		if e.Type == domain.EdgeHometown && (e.FromID == "c" || e.ToID == "c") {
			t.Fatalf("unexpected hometown edge without region: %+v", e)
		}
	}
}

func TestSocialEdgesAndPlatformBonus(t *testing.T) {
	owner := verifiedPerson("owner", "Avery Stone")
	owner.SocialHandles = map[string]string{
		"mastodon": "@avery",
		"bluesky":  "@avery.bsky",
	}
	linker := verifiedPerson("linker", "Blake Reyes")
	linker.SocialLinks = []string{"@avery", "@avery.bsky"}
	single := verifiedPerson("single", "Casey Flores")
	single.SocialLinks = []string{"@avery"}

	repo := newStubRepository(owner, linker, single)
	svc := newTestService(repo, Options{})
	if _, err := svc.RebuildGraph(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	edges := repo.edgeSnapshot()
	multi, ok := findEdge(edges, "linker", "owner", domain.EdgeSocial)
	if !ok {
		t.Fatal("expected social edge for linked handles")
	}
	if multi.Strength != 45 { // 40 base + 5 second platform
		t.Fatalf("expected multi-platform strength 45, got %f", multi.Strength)
	}

	solo, ok := findEdge(edges, "owner", "single", domain.EdgeSocial)
	if !ok {
		t.Fatal("expected single-platform social edge")
	}
	if solo.Strength != 40 {
		t.Fatalf("expected single-platform strength 40, got %f", solo.Strength)
	}
}

func TestOversizedGroupsAreCapped(t *testing.T) {
	people := []domain.Person{}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		p := verifiedPerson(id, "Person "+id)
		p.Affiliations = []string{"Big Club"}
		people = append(people, p)
	}

	repo := newStubRepository(people...)
	svc := newTestService(repo, Options{MaxGroupSize: 3})
	if _, err := svc.RebuildGraph(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	count := 0
	for _, e := range repo.edgeSnapshot() {
		if e.Type == domain.EdgeAffiliation {
			count++
		}
	}
	// Three members pair into three undirected edges, stored both ways.
	if count != 6 {
		t.Fatalf("expected 6 directed affiliation edges after capping, got %d", count)
	}
}

func TestRebuildAbortsWhenStoreReadFails(t *testing.T) {
	alex := verifiedPerson("alex", "Alex Rivera")
	alex.Affiliations = []string{"Rotary Club"}
	jamie := verifiedPerson("jamie", "Jamie Chen")
	jamie.Affiliations = []string{"Rotary Club"}

	repo := newStubRepository(alex, jamie)
	svc := newTestService(repo, Options{})
	if _, err := svc.RebuildGraph(context.Background()); err != nil {
		t.Fatalf("seed rebuild failed: %v", err)
	}
	before := repo.edgeSnapshot()

	repo.mu.Lock()
	repo.listErr = errors.New("store unavailable")
	repo.mu.Unlock()

	if _, err := svc.RebuildGraph(context.Background()); err == nil {
		t.Fatal("expected rebuild error when the store is unreadable")
	}

	after := repo.edgeSnapshot()
	if !reflect.DeepEqual(before, after) {
		t.Fatal("expected existing edge set to survive a failed rebuild")
	}
}

func TestConcurrentRebuildReturnsPreviousStats(t *testing.T) {
	alex := verifiedPerson("alex", "Alex Rivera")
	alex.Affiliations = []string{"Rotary Club"}
	jamie := verifiedPerson("jamie", "Jamie Chen")
	jamie.Affiliations = []string{"Rotary Club"}

	repo := newStubRepository(alex, jamie)
	svc := newTestService(repo, Options{})
	first, err := svc.RebuildGraph(context.Background())
	if err != nil {
		t.Fatalf("seed rebuild failed: %v", err)
	}

	svc.mu.Lock()
	svc.rebuilding = true
	svc.mu.Unlock()

	replacedBefore := repo.replaced
	stats, err := svc.RebuildGraph(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !reflect.DeepEqual(stats, first) {
		t.Fatal("expected previous stats while a rebuild is in progress")
	}
	if repo.replaced != replacedBefore {
		t.Fatal("expected no new edge replacement while a rebuild is in progress")
	}

	svc.mu.Lock()
	svc.rebuilding = false
	svc.mu.Unlock()
}

type stubSource struct {
	name  string
	edges []domain.Edge
	err   error
}

func (s stubSource) Name() string { return s.name }
func (s stubSource) Edges(context.Context, []domain.Person) ([]domain.Edge, error) {
	return s.edges, s.err
}

func TestPluginSourcesDegradeGracefully(t *testing.T) {
	alex := verifiedPerson("alex", "Alex Rivera")
	jamie := verifiedPerson("jamie", "Jamie Chen")

	unconfigured := stubSource{name: "unconfigured", err: ErrSourceNotConfigured}
	failing := stubSource{name: "failing", err: errors.New("upstream down")}
	working := stubSource{name: "working", edges: []domain.Edge{
		{FromID: "alex", ToID: "jamie", Type: domain.EdgeAffiliation, Strength: 120, Confidence: 100},
		{FromID: "alex", ToID: "alex", Type: domain.EdgeAffiliation, Strength: 50, Confidence: 100},
	}}

	repo := newStubRepository(alex, jamie)
	svc := newTestService(repo, Options{}, unconfigured, failing, working)

	if _, err := svc.RebuildGraph(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	edges := repo.edgeSnapshot()
	if len(edges) != 1 {
		t.Fatalf("expected only the sanitized plugin edge, got %d edges", len(edges))
	}
	if edges[0].Strength != 100 {
		t.Fatalf("expected strength clamped to 100, got %f", edges[0].Strength)
	}
}

func TestRebuildStatsBreakdown(t *testing.T) {
	alex := verifiedPerson("alex", "Alex Rivera")
	alex.Company = "Acme Corp"
	alex.Employments = []domain.Employment{{Company: "Acme Corp", StartYear: 2018}}
	jamie := verifiedPerson("jamie", "Jamie Chen")
	jamie.Employments = []domain.Employment{{Company: "Acme Corporation", StartYear: 2019}}
	jamie.Affiliations = []string{"Chess Society"}
	sam := verifiedPerson("sam", "Sam Okafor")
	sam.Affiliations = []string{"Chess Society"}

	repo := newStubRepository(alex, jamie, sam)
	svc := newTestService(repo, Options{})

	stats, err := svc.RebuildGraph(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if stats.Nodes != 3 {
		t.Fatalf("expected 3 nodes, got %d", stats.Nodes)
	}
	// Each undirected relationship counted once.
	if stats.RelationshipBreakdown[domain.EdgeCoworker] != 1 {
		t.Fatalf("expected 1 coworker relationship, got %d", stats.RelationshipBreakdown[domain.EdgeCoworker])
	}
	if stats.RelationshipBreakdown[domain.EdgeAffiliation] != 1 {
		t.Fatalf("expected 1 affiliation relationship, got %d", stats.RelationshipBreakdown[domain.EdgeAffiliation])
	}
	if stats.LastRebuild.IsZero() {
		t.Fatal("expected rebuild timestamp")
	}
}
