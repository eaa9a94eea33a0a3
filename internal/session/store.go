// Package session holds the credential shared by every other component.
// Components receive the Store by reference; only the auth flow and an
// explicit logout mutate it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/user/pixledger/internal/types"
	"github.com/user/pixledger/pkg/backend"
)

// Observer is told about every identity change. ok is false after logout.
type Observer func(cred types.Credential, ok bool)

// Store caches the credential loaded from a durable slot. Reads never block
// on I/O beyond the initial load.
type Store struct {
	slot types.TokenSlot

	mu        sync.RWMutex
	cred      types.Credential
	present   bool
	observers map[int]Observer
	nextID    int
}

// New loads the persisted token, if any, from slot. The username is unknown
// until Set or Restore provides it.
func New(slot types.TokenSlot) (*Store, error) {
	s := &Store{
		slot:      slot,
		observers: make(map[int]Observer),
	}
	token, ok, err := slot.Load()
	if err != nil {
		return nil, fmt.Errorf("load session token: %w", err)
	}
	if ok {
		s.cred = types.Credential{Token: token}
		s.present = true
	}
	return s, nil
}

// Credential returns the current credential, or ok=false when logged out.
func (s *Store) Credential() (types.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.present
}

// Token implements backend.Credentials.
func (s *Store) Token() (string, bool) {
	cred, ok := s.Credential()
	return cred.Token, ok
}

// Set persists token and records username as the current identity.
func (s *Store) Set(token, username string) error {
	if token == "" {
		return &backend.ValidationError{Field: "token", Reason: "empty"}
	}
	if err := s.slot.Save(token); err != nil {
		return fmt.Errorf("save session token: %w", err)
	}

	s.mu.Lock()
	s.cred = types.Credential{Token: token, Username: username}
	s.present = true
	s.mu.Unlock()

	slog.Debug("session credential set", "username", username)
	s.notify()
	return nil
}

// Clear forgets the credential, in memory and on disk.
func (s *Store) Clear() error {
	if err := s.slot.Delete(); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}

	s.mu.Lock()
	wasPresent := s.present
	s.cred = types.Credential{}
	s.present = false
	s.mu.Unlock()

	if wasPresent {
		slog.Debug("session credential cleared")
		s.notify()
	}
	return nil
}

// Subscribe registers fn for identity changes and returns a function that
// removes it.
func (s *Store) Subscribe(fn Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	cred, ok := s.cred, s.present
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.RUnlock()

	for _, fn := range observers {
		fn(cred, ok)
	}
}

// Restore derives the username for a token loaded from disk by asking the
// auth service who it belongs to. A rejected token is cleared; the user is
// then simply logged out. Without a token Restore does nothing.
func (s *Store) Restore(ctx context.Context, identity types.IdentityFetcher) error {
	cred, ok := s.Credential()
	if !ok || cred.Username != "" {
		return nil
	}

	me, err := identity.Me(ctx)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			slog.Info("stored session token rejected, logging out")
			return s.Clear()
		}
		return fmt.Errorf("restore session: %w", err)
	}

	s.mu.Lock()
	if s.present && s.cred.Token == cred.Token {
		s.cred.Username = me.Username
	}
	s.mu.Unlock()
	s.notify()
	return nil
}
