// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type ArtifactID string
type HandleID string

func NewArtifactID() ArtifactID {
	return ArtifactID(uuid.New().String())
}

func NewHandleID() HandleID {
	return HandleID(uuid.New().String())
}
