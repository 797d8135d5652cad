package invite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/anika/warmpath/internal/domain"
)

const (
	invKeyPrefix   = "inv:"
	tokenKeyPrefix = "tok:"
)

// BadgerStore persists invitations in BadgerDB. Transitions run inside
// Update transactions, so the sent-to-accepted guard holds under concurrent
// activation attempts. With an empty path the store runs in memory-only
// mode, which suits tests and throwaway deployments.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the invitation database at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open invitation store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Create(_ context.Context, inv domain.Invitation) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("encode invitation %s: %w", inv.ID, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		idKey := invKey(inv.ID)
		if _, err := txn.Get(idKey); err == nil {
			return fmt.Errorf("invitation %s already exists", inv.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		tokKey := tokenKey(inv.Token)
		if _, err := txn.Get(tokKey); err == nil {
			return fmt.Errorf("token collision for invitation %s", inv.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set(idKey, data); err != nil {
			return err
		}
		return txn.Set(tokKey, []byte(inv.ID))
	})
}

func (s *BadgerStore) GetByToken(_ context.Context, token string) (domain.Invitation, error) {
	var inv domain.Invitation
	err := s.db.View(func(txn *badger.Txn) error {
		found, err := readByToken(txn, token)
		if err != nil {
			return err
		}
		inv = found
		return nil
	})
	return inv, err
}

func (s *BadgerStore) Accept(_ context.Context, token string, acceptedAt time.Time) (domain.Invitation, error) {
	var accepted domain.Invitation
	err := s.update(func(txn *badger.Txn) error {
		inv, err := readByToken(txn, token)
		if err != nil {
			return err
		}
		switch inv.Status {
		case domain.InvitationAccepted:
			return fmt.Errorf("invitation %s: %w", inv.ID, ErrAlreadyUsed)
		case domain.InvitationExpired:
			return fmt.Errorf("invitation %s: %w", inv.ID, ErrExpired)
		}

		inv.Status = domain.InvitationAccepted
		inv.AcceptedAt = &acceptedAt
		if err := writeInvitation(txn, inv); err != nil {
			return err
		}
		accepted = inv
		return nil
	})
	if err != nil {
		return domain.Invitation{}, err
	}
	return accepted, nil
}

func (s *BadgerStore) Expire(_ context.Context, id string) error {
	return s.update(func(txn *badger.Txn) error {
		inv, err := readByID(txn, id)
		if err != nil {
			return err
		}
		if inv.Status != domain.InvitationSent {
			return fmt.Errorf("invitation %s is %s: %w", id, inv.Status, ErrInvalidState)
		}
		inv.Status = domain.InvitationExpired
		return writeInvitation(txn, inv)
	})
}

func (s *BadgerStore) ListPending(_ context.Context) ([]domain.Invitation, error) {
	pending := make([]domain.Invitation, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(invKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var inv domain.Invitation
				if err := json.Unmarshal(val, &inv); err != nil {
					return err
				}
				if inv.Status == domain.InvitationSent {
					pending = append(pending, inv)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func (s *BadgerStore) MarkNotifyFailed(_ context.Context, id string) error {
	return s.update(func(txn *badger.Txn) error {
		inv, err := readByID(txn, id)
		if err != nil {
			return err
		}
		inv.NotifyFailed = true
		return writeInvitation(txn, inv)
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// update retries optimistic transaction conflicts so racing writers fall
// through to the state-machine guards instead of surfacing ErrConflict.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	for {
		err := s.db.Update(fn)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}

func invKey(id string) []byte {
	return []byte(invKeyPrefix + id)
}

func tokenKey(token string) []byte {
	return []byte(tokenKeyPrefix + token)
}

func readByID(txn *badger.Txn, id string) (domain.Invitation, error) {
	item, err := txn.Get(invKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Invitation{}, fmt.Errorf("invitation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Invitation{}, err
	}

	var inv domain.Invitation
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &inv)
	})
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("decode invitation %s: %w", id, err)
	}
	return inv, nil
}

func readByToken(txn *badger.Txn, token string) (domain.Invitation, error) {
	item, err := txn.Get(tokenKey(token))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Invitation{}, fmt.Errorf("invitation token: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Invitation{}, err
	}

	var id string
	err = item.Value(func(val []byte) error {
		id = string(val)
		return nil
	})
	if err != nil {
		return domain.Invitation{}, err
	}
	return readByID(txn, id)
}

func writeInvitation(txn *badger.Txn, inv domain.Invitation) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("encode invitation %s: %w", inv.ID, err)
	}
	return txn.Set(invKey(inv.ID), data)
}
