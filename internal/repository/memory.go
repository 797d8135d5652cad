package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/anika/warmpath/internal/domain"
)

// Memory is a fully functional in-process evidence repository. It backs unit
// tests and single-node deployments that run without a graph database.
type Memory struct {
	mu      sync.RWMutex
	persons map[string]domain.Person
	edges   []domain.Edge
}

// NewMemory instantiates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		persons: make(map[string]domain.Person),
	}
}

// UpsertPerson stores or replaces a person record.
func (m *Memory) UpsertPerson(_ context.Context, person domain.Person) error {
	if person.ID == "" {
		return fmt.Errorf("person id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persons[person.ID] = person
	return nil
}

// GetPerson returns a person record or domain.ErrNotFound.
func (m *Memory) GetPerson(_ context.Context, id string) (domain.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.persons[id]
	if !ok {
		return domain.Person{}, fmt.Errorf("person %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// ListPersons returns all people sorted by id.
func (m *Memory) ListPersons(_ context.Context) ([]domain.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Person, 0, len(m.persons))
	for _, p := range m.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ReplaceEdges atomically swaps the entire stored edge set for a new
// generation.
func (m *Memory) ReplaceEdges(_ context.Context, edges []domain.Edge) error {
	next := make([]domain.Edge, len(edges))
	copy(next, edges)
	m.mu.Lock()
	m.edges = next
	m.mu.Unlock()
	return nil
}

// ListEdges returns a copy of the current edge set.
func (m *Memory) ListEdges(_ context.Context) ([]domain.Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Edge, len(m.edges))
	copy(out, m.edges)
	return out, nil
}

// MarkVerified flips a person's verified flag and sets their trust score.
func (m *Memory) MarkVerified(_ context.Context, id string, trustScore float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.persons[id]
	if !ok {
		return fmt.Errorf("person %s: %w", id, domain.ErrNotFound)
	}
	p.Verified = true
	p.TrustScore = trustScore
	m.persons[id] = p
	return nil
}

// BoostEdgeConfidence raises the confidence of every edge touching the given
// person by delta, capped at 100.
func (m *Memory) BoostEdgeConfidence(_ context.Context, personID string, delta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.edges {
		e := &m.edges[i]
		if e.FromID != personID && e.ToID != personID {
			continue
		}
		e.Confidence += delta
		if e.Confidence > 100 {
			e.Confidence = 100
		}
	}
	return nil
}
