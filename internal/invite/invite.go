package invite

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/anika/warmpath/internal/domain"
	"github.com/anika/warmpath/internal/service"
)

// State machine violations surfaced to callers.
var (
	// ErrAlreadyUsed indicates the invitation token was accepted before.
	ErrAlreadyUsed = errors.New("invitation already used")
	// ErrExpired indicates the invitation is past its expiry window.
	ErrExpired = errors.New("invitation expired")
	// ErrInvalidState indicates the requested transition is not permitted,
	// for example inviting a person who is already verified.
	ErrInvalidState = errors.New("invalid invitation state")
)

const tokenBytes = 32

// Store persists invitations. Accept must be atomic: when several callers
// race on the same token, exactly one transition from sent to accepted
// succeeds and the rest observe ErrAlreadyUsed.
type Store interface {
	Create(ctx context.Context, inv domain.Invitation) error
	GetByToken(ctx context.Context, token string) (domain.Invitation, error)
	Accept(ctx context.Context, token string, acceptedAt time.Time) (domain.Invitation, error)
	Expire(ctx context.Context, id string) error
	ListPending(ctx context.Context) ([]domain.Invitation, error)
	MarkNotifyFailed(ctx context.Context, id string) error
	Close() error
}

// Notifier delivers the invitation token to the ghost out of band. Delivery
// failures are recorded on the invitation but never abort creation.
type Notifier interface {
	Notify(ctx context.Context, inv domain.Invitation) error
}

// Activator is the slice of the relationship engine the invitation lifecycle
// needs: ghost lookups on create and promotion on accept.
type Activator interface {
	GetPerson(ctx context.Context, id string) (domain.Person, error)
	PromoteGhost(ctx context.Context, personID string, data service.ActivationData) error
}

// CreateResult reports a freshly issued invitation.
type CreateResult struct {
	InviteID  string
	Token     string
	ExpiresAt time.Time
	EmailSent bool
}

// ActivateResult reports the outcome of an activation attempt.
type ActivateResult struct {
	Success  bool
	PersonID string
	Message  string
}

// Service drives the invitation state machine: sent is the initial state,
// accepted and expired are terminal.
type Service struct {
	store    Store
	notifier Notifier
	engine   Activator
	logger   *slog.Logger
	ttl      time.Duration
	nowFn    func() time.Time
}

// NewService wires the invitation lifecycle. A zero ttl falls back to seven
// days.
func NewService(store Store, notifier Notifier, engine Activator, logger *slog.Logger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{
		store:    store,
		notifier: notifier,
		engine:   engine,
		logger:   logger,
		ttl:      ttl,
		nowFn:    time.Now,
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(nowFn func() time.Time) *Service {
	s.nowFn = nowFn
	return s
}

// Create issues an invitation for an unverified ghost. The notification is
// best effort: a failed dispatch is recorded on the invitation and reflected
// in the result, but the invitation itself stands.
func (s *Service) Create(ctx context.Context, ghostID, requesterID, targetID string) (CreateResult, error) {
	if ghostID == "" || requesterID == "" {
		return CreateResult{}, errors.New("ghost id and requester id are required")
	}

	ghost, err := s.engine.GetPerson(ctx, ghostID)
	if err != nil {
		return CreateResult{}, fmt.Errorf("look up ghost %s: %w", ghostID, err)
	}
	if ghost.Verified {
		return CreateResult{}, fmt.Errorf("person %s is already verified: %w", ghostID, ErrInvalidState)
	}

	token, err := newToken()
	if err != nil {
		return CreateResult{}, fmt.Errorf("generate token: %w", err)
	}

	now := s.nowFn().UTC()
	inv := domain.Invitation{
		ID:          uuid.NewString(),
		GhostID:     ghostID,
		RequesterID: requesterID,
		TargetID:    targetID,
		Token:       token,
		Status:      domain.InvitationSent,
		ExpiresAt:   now.Add(s.ttl),
		CreatedAt:   now,
	}

	if err := s.store.Create(ctx, inv); err != nil {
		return CreateResult{}, fmt.Errorf("store invitation: %w", err)
	}

	emailSent := true
	if err := s.notifier.Notify(ctx, inv); err != nil {
		emailSent = false
		s.logger.Warn("invitation notification failed",
			"inviteId", inv.ID,
			"ghostId", ghostID,
			"error", err)
		if markErr := s.store.MarkNotifyFailed(ctx, inv.ID); markErr != nil {
			s.logger.Error("failed to record notification failure",
				"inviteId", inv.ID,
				"error", markErr)
		}
	}

	s.logger.Info("invitation created",
		"inviteId", inv.ID,
		"ghostId", ghostID,
		"requesterId", requesterID,
		"expiresAt", inv.ExpiresAt)

	return CreateResult{
		InviteID:  inv.ID,
		Token:     token,
		ExpiresAt: inv.ExpiresAt,
		EmailSent: emailSent,
	}, nil
}

// Activate redeems a token. Expiry is checked lazily on read, so an overdue
// invitation is marked expired even if the sweeper has not visited it yet.
// The store's conditional accept guarantees a racing pair of activations
// yields exactly one success.
func (s *Service) Activate(ctx context.Context, token string, data service.ActivationData) (ActivateResult, error) {
	if token == "" {
		return ActivateResult{}, errors.New("token is required")
	}

	inv, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return ActivateResult{}, fmt.Errorf("look up invitation: %w", err)
	}

	if inv.Status == domain.InvitationSent && inv.Expired(s.nowFn().UTC()) {
		if err := s.store.Expire(ctx, inv.ID); err != nil {
			s.logger.Warn("failed to mark overdue invitation expired",
				"inviteId", inv.ID,
				"error", err)
		}
		return ActivateResult{}, fmt.Errorf("invitation %s: %w", inv.ID, ErrExpired)
	}

	switch inv.Status {
	case domain.InvitationAccepted:
		return ActivateResult{}, fmt.Errorf("invitation %s: %w", inv.ID, ErrAlreadyUsed)
	case domain.InvitationExpired:
		return ActivateResult{}, fmt.Errorf("invitation %s: %w", inv.ID, ErrExpired)
	}

	accepted, err := s.store.Accept(ctx, token, s.nowFn().UTC())
	if err != nil {
		return ActivateResult{}, err
	}

	if err := s.engine.PromoteGhost(ctx, accepted.GhostID, data); err != nil {
		return ActivateResult{}, fmt.Errorf("promote ghost %s: %w", accepted.GhostID, err)
	}

	s.logger.Info("invitation accepted",
		"inviteId", accepted.ID,
		"ghostId", accepted.GhostID)

	return ActivateResult{
		Success:  true,
		PersonID: accepted.GhostID,
		Message:  "profile activated",
	}, nil
}

// SweepExpired marks every overdue pending invitation expired and returns
// how many it transitioned.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending invitations: %w", err)
	}

	now := s.nowFn().UTC()
	swept := 0
	for _, inv := range pending {
		if !inv.Expired(now) {
			continue
		}
		if err := s.store.Expire(ctx, inv.ID); err != nil {
			s.logger.Warn("failed to expire invitation",
				"inviteId", inv.ID,
				"error", err)
			continue
		}
		swept++
	}
	if swept > 0 {
		s.logger.Info("expired invitations swept", "count", swept)
	}
	return swept, nil
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// LogNotifier is a stand-in delivery channel that records the invitation in
// the application log instead of sending mail.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier builds a notifier that writes to the supplied logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, inv domain.Invitation) error {
	n.logger.Info("invitation notification",
		"inviteId", inv.ID,
		"ghostId", inv.GhostID,
		"expiresAt", inv.ExpiresAt)
	return nil
}
