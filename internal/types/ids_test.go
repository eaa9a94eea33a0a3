// internal/types/ids_test.go
package types

import (
	"testing"
)

func TestNewArtifactID(t *testing.T) {
	id := NewArtifactID()
	if id == "" {
		t.Error("expected non-empty ArtifactID")
	}
	if len(string(id)) != 36 {
		t.Errorf("expected UUID format, got %s", id)
	}
	if NewArtifactID() == id {
		t.Error("expected distinct IDs")
	}
}

func TestNewHandleID(t *testing.T) {
	id := NewHandleID()
	if len(string(id)) != 36 {
		t.Errorf("expected UUID format, got %s", id)
	}
}
