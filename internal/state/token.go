// internal/state/token.go
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/boltdb/bolt"
)

var (
	sessionBucket = []byte("session")
	tokenKey      = []byte("token")
)

// TokenSlot keeps the bearer token under a fixed key in a bolt database so it
// survives process restarts. The database is opened per operation, which
// lets several CLI invocations share the file.
type TokenSlot struct {
	path string
}

// NewTokenSlot creates a bolt-backed slot stored at <root>/session.db.
func NewTokenSlot(root string) *TokenSlot {
	return &TokenSlot{path: filepath.Join(root, "session.db")}
}

func (s *TokenSlot) open() (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	return db, nil
}

// Load returns the stored token. A missing database or key is not an error.
func (s *TokenSlot) Load() (string, bool, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return "", false, nil
	}
	db, err := s.open()
	if err != nil {
		return "", false, err
	}
	defer db.Close()

	var token string
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		if b == nil {
			return nil
		}
		if v := b.Get(tokenKey); v != nil {
			token = string(v)
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("read token: %w", err)
	}
	return token, token != "", nil
}

// Save replaces the stored token.
func (s *TokenSlot) Save(token string) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(sessionBucket)
		if err != nil {
			return fmt.Errorf("create session bucket: %w", err)
		}
		if err := b.Put(tokenKey, []byte(token)); err != nil {
			return fmt.Errorf("write token: %w", err)
		}
		return nil
	})
}

// Delete removes the stored token. Deleting an absent token succeeds.
func (s *TokenSlot) Delete() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		if b == nil {
			return nil
		}
		if err := b.Delete(tokenKey); err != nil {
			return fmt.Errorf("delete token: %w", err)
		}
		return nil
	})
}

// MemoryTokenSlot is a process-local slot, used in tests and when no data
// directory is configured.
type MemoryTokenSlot struct {
	mu    sync.Mutex
	token string
}

func NewMemoryTokenSlot() *MemoryTokenSlot {
	return &MemoryTokenSlot{}
}

func (m *MemoryTokenSlot) Load() (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.token != "", nil
}

func (m *MemoryTokenSlot) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryTokenSlot) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
