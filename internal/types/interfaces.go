// internal/types/interfaces.go
package types

import (
	"context"
)

// TokenSlot is the single durable key holding the bearer token.
type TokenSlot interface {
	Load() (string, bool, error)
	Save(token string) error
	Delete() error
}

type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, email, password string) error
}

type IdentityFetcher interface {
	Me(ctx context.Context) (*Identity, error)
}

type ChainSource interface {
	FetchChain(ctx context.Context) ([]Block, error)
}

type ModelSource interface {
	ListModels(ctx context.Context) ([]Model, error)
	ModelDetail(ctx context.Context, owner, name string) (*Model, []string, error)
}

// Generator produces one image per call for the given model.
type Generator interface {
	Generate(ctx context.Context, ref ModelRef, withBlockHash bool) ([]byte, string, error)
}

type ImageChecker interface {
	CheckImage(ctx context.Context, image []byte, filename string) (*CheckResult, error)
	ExtractBlockHash(ctx context.Context, image []byte, filename string) (string, error)
}

type Miner interface {
	Mine(ctx context.Context, modelName string, epochs int, images []NamedImage) (*MineReceipt, error)
}

type NamedImage struct {
	Name string
	Data []byte
}

type ArtifactStore interface {
	Put(ctx context.Context, ref ModelRef, artifact Artifact) (*ArtifactMeta, error)
	Get(ctx context.Context, id ArtifactID) ([]byte, error)
	GetMeta(ctx context.Context, id ArtifactID) (*ArtifactMeta, error)
}
