package invite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anika/warmpath/internal/domain"
)

// MemoryStore keeps invitations in process memory. It backs tests and
// deployments that do not need durability.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]domain.Invitation
	byToken map[string]string // token -> id
}

// NewMemoryStore builds an empty in-memory invitation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]domain.Invitation),
		byToken: make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, inv domain.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[inv.ID]; exists {
		return fmt.Errorf("invitation %s already exists", inv.ID)
	}
	if _, exists := s.byToken[inv.Token]; exists {
		return fmt.Errorf("token collision for invitation %s", inv.ID)
	}
	s.byID[inv.ID] = inv
	s.byToken[inv.Token] = inv.ID
	return nil
}

func (s *MemoryStore) GetByToken(_ context.Context, token string) (domain.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byToken[token]
	if !ok {
		return domain.Invitation{}, fmt.Errorf("invitation token: %w", domain.ErrNotFound)
	}
	return s.byID[id], nil
}

func (s *MemoryStore) Accept(_ context.Context, token string, acceptedAt time.Time) (domain.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byToken[token]
	if !ok {
		return domain.Invitation{}, fmt.Errorf("invitation token: %w", domain.ErrNotFound)
	}
	inv := s.byID[id]
	switch inv.Status {
	case domain.InvitationAccepted:
		return domain.Invitation{}, fmt.Errorf("invitation %s: %w", inv.ID, ErrAlreadyUsed)
	case domain.InvitationExpired:
		return domain.Invitation{}, fmt.Errorf("invitation %s: %w", inv.ID, ErrExpired)
	}

	inv.Status = domain.InvitationAccepted
	inv.AcceptedAt = &acceptedAt
	s.byID[id] = inv
	return inv, nil
}

func (s *MemoryStore) Expire(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("invitation %s: %w", id, domain.ErrNotFound)
	}
	if inv.Status != domain.InvitationSent {
		return fmt.Errorf("invitation %s is %s: %w", id, inv.Status, ErrInvalidState)
	}
	inv.Status = domain.InvitationExpired
	s.byID[id] = inv
	return nil
}

func (s *MemoryStore) ListPending(_ context.Context) ([]domain.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]domain.Invitation, 0)
	for _, inv := range s.byID {
		if inv.Status == domain.InvitationSent {
			pending = append(pending, inv)
		}
	}
	return pending, nil
}

func (s *MemoryStore) MarkNotifyFailed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("invitation %s: %w", id, domain.ErrNotFound)
	}
	inv.NotifyFailed = true
	s.byID[id] = inv
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
