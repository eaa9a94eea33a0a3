// Package display hands out short-lived references to image bytes. A handle
// stays valid until it is released; the owner must release every handle it
// creates.
package display

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/pixledger/internal/types"
)

// ErrReleased is returned for a handle that was released or never existed.
var ErrReleased = errors.New("display handle released")

// Table backs each handle with a temp file under dir.
type Table struct {
	dir string

	mu   sync.Mutex
	live map[types.HandleID]string
}

// NewTable creates dir if needed.
func NewTable(dir string) (*Table, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create display dir: %w", err)
	}
	return &Table{dir: dir, live: make(map[types.HandleID]string)}, nil
}

// Create copies data into a new handle.
func (t *Table) Create(data []byte, mimeType string) (types.Handle, error) {
	id := types.NewHandleID()
	path := filepath.Join(t.dir, string(id)+extension(mimeType))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return types.Handle{}, fmt.Errorf("write display file: %w", err)
	}

	t.mu.Lock()
	t.live[id] = path
	t.mu.Unlock()

	return types.Handle{ID: id, Ref: (&url.URL{Scheme: "file", Path: path}).String()}, nil
}

// Open reads the bytes behind a live handle.
func (t *Table) Open(id types.HandleID) ([]byte, error) {
	t.mu.Lock()
	path, ok := t.live[id]
	t.mu.Unlock()
	if !ok {
		return nil, ErrReleased
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read display file: %w", err)
	}
	return data, nil
}

// Release invalidates the handle and removes its file. Releasing twice is a
// no-op.
func (t *Table) Release(id types.HandleID) error {
	t.mu.Lock()
	path, ok := t.live[id]
	delete(t.live, id)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove display file: %w", err)
	}
	return nil
}

// Live counts handles not yet released.
func (t *Table) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// Close releases every remaining handle.
func (t *Table) Close() error {
	t.mu.Lock()
	ids := make([]types.HandleID, 0, len(t.live))
	for id := range t.live {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := t.Release(id); err != nil {
			errs = append(errs, err)
		}
	}
	if len(ids) > 0 {
		slog.Debug("display handles released on close", "count", len(ids))
	}
	return errors.Join(errs...)
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}
