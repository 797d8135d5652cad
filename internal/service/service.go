package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/anika/warmpath/internal/domain"
)

// EvidenceRepository is the storage contract required by the graph service.
// Implementations persist people and the derived edge set; ReplaceEdges must
// be atomic so a failed rebuild never leaves a partially-replaced set.
type EvidenceRepository interface {
	UpsertPerson(ctx context.Context, person domain.Person) error
	GetPerson(ctx context.Context, id string) (domain.Person, error)
	ListPersons(ctx context.Context) ([]domain.Person, error)
	ReplaceEdges(ctx context.Context, edges []domain.Edge) error
	ListEdges(ctx context.Context) ([]domain.Edge, error)
	MarkVerified(ctx context.Context, id string, trustScore float64) error
	BoostEdgeConfidence(ctx context.Context, personID string, delta float64) error
}

// EvidenceSource contributes additional evidence-derived edges beyond the
// built-in dimensions, e.g. a demo-data plugin or an enrichment feed. A
// source missing its configuration returns ErrSourceNotConfigured and is
// skipped rather than failing the rebuild.
type EvidenceSource interface {
	Name() string
	Edges(ctx context.Context, persons []domain.Person) ([]domain.Edge, error)
}

// ErrSourceNotConfigured marks an evidence source that cannot run because
// required credentials or settings are absent.
var ErrSourceNotConfigured = errors.New("evidence source not configured")

// Options tunes ingestion and path discovery.
type Options struct {
	MaxHops      int // path discovery hop bound
	MaxPaths     int // maximum ranked paths returned
	MaxGroupSize int // evidence-group pairing cap, bounds the O(group²) step
}

const (
	defaultMaxHops      = 3
	defaultMaxPaths     = 10
	defaultMaxGroupSize = 50
	maxMatches          = 5
)

// GraphService owns the ingestion cycle, the read-only graph index snapshot,
// path discovery, and identity matching. All reads run against the current
// snapshot; rebuilds construct a new index before swapping it in.
type GraphService struct {
	repo    EvidenceRepository
	sources []EvidenceSource
	logger  *slog.Logger
	opts    Options
	nowFn   func() time.Time

	mu         sync.RWMutex
	index      *Index
	lastStats  domain.RebuildStats
	rebuilding bool
}

// NewGraphService constructs a GraphService with the provided repository and
// optional evidence-source plugins.
func NewGraphService(repo EvidenceRepository, logger *slog.Logger, opts Options, sources ...EvidenceSource) *GraphService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxHops <= 0 {
		opts.MaxHops = defaultMaxHops
	}
	if opts.MaxPaths <= 0 {
		opts.MaxPaths = defaultMaxPaths
	}
	if opts.MaxGroupSize <= 0 {
		opts.MaxGroupSize = defaultMaxGroupSize
	}
	return &GraphService{
		repo:    repo,
		sources: sources,
		logger:  logger,
		opts:    opts,
		nowFn:   time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *GraphService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// UpsertPerson validates and persists person evidence. It does not rebuild
// the graph; callers trigger RebuildGraph once a batch is loaded.
func (s *GraphService) UpsertPerson(ctx context.Context, input PersonInput) (domain.Person, error) {
	if input.ID == "" {
		return domain.Person{}, fmt.Errorf("person ID is required")
	}
	if sanitizeString(input.FullName) == "" {
		return domain.Person{}, fmt.Errorf("person full name is required")
	}

	now := s.nowFn().UTC()
	person := input.toDomain(now)
	if err := s.repo.UpsertPerson(ctx, person); err != nil {
		return domain.Person{}, fmt.Errorf("upsert person %s: %w", person.ID, err)
	}
	return person, nil
}

// GetPerson returns a stored person record.
func (s *GraphService) GetPerson(ctx context.Context, id string) (domain.Person, error) {
	return s.repo.GetPerson(ctx, id)
}

// PromoteGhost flips a ghost person to verified, raises their trust score,
// removes the ghost discount from every touching edge, and refreshes the
// index from the stored edge set without re-deriving it. Promoting an
// already-verified person is a no-op so a repeated activation cannot apply
// the confidence boost twice.
func (s *GraphService) PromoteGhost(ctx context.Context, personID string, data ActivationData) error {
	person, err := s.repo.GetPerson(ctx, personID)
	if err != nil {
		return fmt.Errorf("load person %s: %w", personID, err)
	}
	if person.Verified {
		return nil
	}

	if enriched, changed := data.apply(person); changed {
		enriched.UpdatedAt = s.nowFn().UTC()
		if err := s.repo.UpsertPerson(ctx, enriched); err != nil {
			return fmt.Errorf("enrich person %s: %w", personID, err)
		}
	}

	if err := s.repo.MarkVerified(ctx, personID, domain.ActivatedTrustScore); err != nil {
		return fmt.Errorf("mark person %s verified: %w", personID, err)
	}
	if err := s.repo.BoostEdgeConfidence(ctx, personID, activationConfidenceBoost); err != nil {
		return fmt.Errorf("boost edges for %s: %w", personID, err)
	}

	if err := s.refreshIndex(ctx); err != nil {
		// The store is consistent; only the in-memory view is stale. The next
		// scheduled rebuild repairs it.
		s.logger.Warn("index refresh after activation failed", "personId", personID, "error", err)
	}

	s.logger.Info("ghost activated", "personId", personID)
	return nil
}

// Stats returns the statistics of the last completed rebuild.
func (s *GraphService) Stats() domain.RebuildStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStats
}

// snapshot returns the current index, which may be nil before the first
// rebuild completes.
func (s *GraphService) snapshot() *Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// refreshIndex reloads people and edges and swaps in a fresh adjacency view.
// Unlike RebuildGraph it never mutates the stored edge set.
func (s *GraphService) refreshIndex(ctx context.Context) error {
	persons, err := s.repo.ListPersons(ctx)
	if err != nil {
		return fmt.Errorf("list persons: %w", err)
	}
	edges, err := s.repo.ListEdges(ctx)
	if err != nil {
		return fmt.Errorf("list edges: %w", err)
	}
	idx := BuildIndex(persons, edges, s.nowFn().UTC())

	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()
	return nil
}
