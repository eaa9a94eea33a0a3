// internal/state/artifact.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/user/pixledger/internal/types"
)

// ArtifactStore keeps generated images the user chose to save.
// Files are located at <root>/<owner>/<model>/<artifactID>.<ext>, each with
// a <artifactID>.json metadata file beside it.
type ArtifactStore struct {
	root string
}

// NewArtifactStore creates a new file-backed ArtifactStore rooted at the given directory.
func NewArtifactStore(root string) *ArtifactStore {
	return &ArtifactStore{root: root}
}

func (a *ArtifactStore) modelDir(ref types.ModelRef) string {
	return filepath.Join(a.root, ref.Owner, ref.Name)
}

// findMeta locates an artifact's metadata file by ID across all models.
func (a *ArtifactStore) findMeta(id types.ArtifactID) (string, error) {
	pattern := filepath.Join(a.root, "*", "*", string(id)+".json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("glob artifact: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("artifact not found: %s", id)
	}
	return matches[0], nil
}

// Put writes the artifact's payload and metadata. The payload is taken from
// artifact.Data, never from its display handle.
func (a *ArtifactStore) Put(_ context.Context, ref types.ModelRef, artifact types.Artifact) (*types.ArtifactMeta, error) {
	if len(artifact.Data) == 0 {
		return nil, fmt.Errorf("artifact %d has no data", artifact.Index)
	}
	id := artifact.ID
	if id == "" {
		id = types.NewArtifactID()
	}

	dir := a.modelDir(ref)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts dir: %w", err)
	}

	imagePath := filepath.Join(dir, string(id)+extensionFor(artifact.MimeType))
	if err := writeAtomic(imagePath, artifact.Data); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}

	meta := &types.ArtifactMeta{
		ID:        id,
		Model:     ref.String(),
		Index:     artifact.Index,
		MimeType:  artifact.MimeType,
		Path:      imagePath,
		CreatedAt: time.Now(),
	}
	content, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal artifact meta: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, string(id)+".json"), content); err != nil {
		return nil, fmt.Errorf("write artifact meta: %w", err)
	}

	return meta, nil
}

// Get returns the saved image bytes.
func (a *ArtifactStore) Get(ctx context.Context, id types.ArtifactID) ([]byte, error) {
	meta, err := a.GetMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(meta.Path)
	if err != nil {
		return nil, fmt.Errorf("read artifact file: %w", err)
	}
	return data, nil
}

// GetMeta returns the metadata for the given artifact.
func (a *ArtifactStore) GetMeta(_ context.Context, id types.ArtifactID) (*types.ArtifactMeta, error) {
	path, err := a.findMeta(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact meta: %w", err)
	}
	var meta types.ArtifactMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal artifact meta: %w", err)
	}
	return &meta, nil
}

// writeAtomic writes to a temp file then renames it into place.
func writeAtomic(target string, data []byte) error {
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
