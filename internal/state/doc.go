// Package state provides filesystem-backed storage implementations.
package state

import "github.com/user/pixledger/internal/types"

// Compile-time interface compliance checks.
var _ types.TokenSlot = (*TokenSlot)(nil)
var _ types.TokenSlot = (*MemoryTokenSlot)(nil)
var _ types.ArtifactStore = (*ArtifactStore)(nil)
