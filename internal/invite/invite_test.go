package invite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anika/warmpath/internal/domain"
	"github.com/anika/warmpath/internal/service"
)

type engineStub struct {
	mu       sync.Mutex
	persons  map[string]domain.Person
	promoted []string
	lastData service.ActivationData
}

func newEngineStub(persons ...domain.Person) *engineStub {
	stub := &engineStub{persons: make(map[string]domain.Person)}
	for _, p := range persons {
		stub.persons[p.ID] = p
	}
	return stub
}

func (e *engineStub) GetPerson(_ context.Context, id string) (domain.Person, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.persons[id]
	if !ok {
		return domain.Person{}, domain.ErrNotFound
	}
	return p, nil
}

func (e *engineStub) PromoteGhost(_ context.Context, personID string, data service.ActivationData) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.promoted = append(e.promoted, personID)
	e.lastData = data
	return nil
}

type notifierStub struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (n *notifierStub) Notify(context.Context, domain.Invitation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return n.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCreateIssuesInvitation(t *testing.T) {
	engine := newEngineStub(domain.Person{ID: "PER-GHOST", FullName: "Sam Okafor"})
	notifier := &notifierStub{}
	store := NewMemoryStore()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	svc := NewService(store, notifier, engine, testLogger(), 7*24*time.Hour).WithClock(fixedClock(now))

	res, err := svc.Create(context.Background(), "PER-GHOST", "PER-REQ", "PER-TARGET")
	require.NoError(t, err)
	assert.NotEmpty(t, res.InviteID)
	assert.Len(t, res.Token, 64) // 32 random bytes hex encoded
	assert.True(t, res.EmailSent)
	assert.Equal(t, now.Add(7*24*time.Hour), res.ExpiresAt)
	assert.Equal(t, 1, notifier.calls)

	stored, err := store.GetByToken(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationSent, stored.Status)
	assert.Equal(t, "PER-GHOST", stored.GhostID)
	assert.Equal(t, "PER-REQ", stored.RequesterID)
}

func TestCreateRejectsVerifiedPerson(t *testing.T) {
	engine := newEngineStub(domain.Person{ID: "PER-001", Verified: true})
	svc := NewService(NewMemoryStore(), &notifierStub{}, engine, testLogger(), 0)

	_, err := svc.Create(context.Background(), "PER-001", "PER-REQ", "")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCreateRejectsUnknownGhost(t *testing.T) {
	svc := NewService(NewMemoryStore(), &notifierStub{}, newEngineStub(), testLogger(), 0)

	_, err := svc.Create(context.Background(), "PER-404", "PER-REQ", "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateSurvivesNotificationFailure(t *testing.T) {
	engine := newEngineStub(domain.Person{ID: "PER-GHOST"})
	notifier := &notifierStub{err: errors.New("smtp unreachable")}
	store := NewMemoryStore()
	svc := NewService(store, notifier, engine, testLogger(), 0)

	res, err := svc.Create(context.Background(), "PER-GHOST", "PER-REQ", "")
	require.NoError(t, err)
	assert.False(t, res.EmailSent)

	stored, err := store.GetByToken(context.Background(), res.Token)
	require.NoError(t, err)
	assert.True(t, stored.NotifyFailed)
	assert.Equal(t, domain.InvitationSent, stored.Status)
}

func TestActivatePromotesGhost(t *testing.T) {
	engine := newEngineStub(domain.Person{ID: "PER-GHOST"})
	store := NewMemoryStore()
	svc := NewService(store, &notifierStub{}, engine, testLogger(), 0)

	created, err := svc.Create(context.Background(), "PER-GHOST", "PER-REQ", "")
	require.NoError(t, err)

	data := service.ActivationData{FullName: "Sam Okafor", Company: "Initech"}
	res, err := svc.Activate(context.Background(), created.Token, data)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "PER-GHOST", res.PersonID)
	assert.Equal(t, []string{"PER-GHOST"}, engine.promoted)
	assert.Equal(t, data, engine.lastData)

	stored, err := store.GetByToken(context.Background(), created.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationAccepted, stored.Status)
	require.NotNil(t, stored.AcceptedAt)
}

func TestActivateSecondUseFails(t *testing.T) {
	engine := newEngineStub(domain.Person{ID: "PER-GHOST"})
	svc := NewService(NewMemoryStore(), &notifierStub{}, engine, testLogger(), 0)

	created, err := svc.Create(context.Background(), "PER-GHOST", "PER-REQ", "")
	require.NoError(t, err)

	_, err = svc.Activate(context.Background(), created.Token, service.ActivationData{})
	require.NoError(t, err)

	_, err = svc.Activate(context.Background(), created.Token, service.ActivationData{})
	require.ErrorIs(t, err, ErrAlreadyUsed)
	assert.Len(t, engine.promoted, 1)
}

func TestActivateExpiresLazily(t *testing.T) {
	engine := newEngineStub(domain.Person{ID: "PER-GHOST"})
	store := NewMemoryStore()
	start := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(store, &notifierStub{}, engine, testLogger(), 24*time.Hour).WithClock(fixedClock(start))

	created, err := svc.Create(context.Background(), "PER-GHOST", "PER-REQ", "")
	require.NoError(t, err)

	svc.WithClock(fixedClock(start.Add(25 * time.Hour)))

	_, err = svc.Activate(context.Background(), created.Token, service.ActivationData{})
	require.ErrorIs(t, err, ErrExpired)
	assert.Empty(t, engine.promoted)

	stored, err := store.GetByToken(context.Background(), created.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationExpired, stored.Status)
}

func TestActivateUnknownToken(t *testing.T) {
	svc := NewService(NewMemoryStore(), &notifierStub{}, newEngineStub(), testLogger(), 0)

	_, err := svc.Activate(context.Background(), "deadbeef", service.ActivationData{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSweepExpired(t *testing.T) {
	engine := newEngineStub(
		domain.Person{ID: "PER-A"},
		domain.Person{ID: "PER-B"},
	)
	store := NewMemoryStore()
	start := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(store, &notifierStub{}, engine, testLogger(), time.Hour).WithClock(fixedClock(start))

	overdue, err := svc.Create(context.Background(), "PER-A", "PER-REQ", "")
	require.NoError(t, err)

	svc.WithClock(fixedClock(start.Add(30 * time.Minute)))
	fresh, err := svc.Create(context.Background(), "PER-B", "PER-REQ", "")
	require.NoError(t, err)

	svc.WithClock(fixedClock(start.Add(70 * time.Minute)))
	swept, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	first, err := store.GetByToken(context.Background(), overdue.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationExpired, first.Status)

	second, err := store.GetByToken(context.Background(), fresh.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationSent, second.Status)
}

func TestConcurrentActivationSingleWinner(t *testing.T) {
	engine := newEngineStub(domain.Person{ID: "PER-GHOST"})
	store, err := OpenBadgerStore("")
	require.NoError(t, err)
	defer store.Close()

	svc := NewService(store, &notifierStub{}, engine, testLogger(), 0)

	created, err := svc.Create(context.Background(), "PER-GHOST", "PER-REQ", "")
	require.NoError(t, err)

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Activate(context.Background(), created.Token, service.ActivationData{})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyUsed)
	}
	assert.Equal(t, 1, successes)
	assert.Len(t, engine.promoted, 1)
}
