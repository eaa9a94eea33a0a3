// Package registry reads model metadata and turns a selected model into its
// (owner, name) address.
package registry

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/user/pixledger/internal/types"
	"github.com/user/pixledger/pkg/backend"
)

type Registry struct {
	source types.ModelSource
}

func New(source types.ModelSource) *Registry {
	return &Registry{source: source}
}

// ListAll returns every model in the order the registry sent them.
func (r *Registry) ListAll(ctx context.Context) ([]types.Model, error) {
	models, err := r.source.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return models, nil
}

// ListOwnedBy filters ListAll on the client; the service is never asked to
// filter.
func (r *Registry) ListOwnedBy(ctx context.Context, username string) ([]types.Model, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	owned := make([]types.Model, 0, len(all))
	for _, m := range all {
		if m.CreatedBy == username {
			owned = append(owned, m)
		}
	}
	return owned, nil
}

// Get returns a model with its decoded sample images.
func (r *Registry) Get(ctx context.Context, ref types.ModelRef) (*types.ModelDetail, error) {
	model, encoded, err := r.source.ModelDetail(ctx, ref.Owner, ref.Name)
	if err != nil {
		return nil, fmt.Errorf("get model %s: %w", ref, err)
	}

	samples := make([][]byte, 0, len(encoded))
	for i, s := range encoded {
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, &backend.ValidationError{
				Field:  fmt.Sprintf("sample image %d", i),
				Reason: err.Error(),
			}
		}
		samples = append(samples, data)
	}
	return &types.ModelDetail{Model: *model, Samples: samples}, nil
}

// TargetFor is the navigation target for a model picked from any listing.
func TargetFor(m types.Model) types.ModelRef {
	return types.ModelRef{Owner: m.CreatedBy, Name: m.Name}
}

// ParseRef reads "owner/name" as typed by a user.
func ParseRef(s string) (types.ModelRef, error) {
	owner, name, ok := strings.Cut(strings.Trim(s, "/"), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return types.ModelRef{}, &backend.ValidationError{Field: "model", Reason: fmt.Sprintf("expected <owner>/<name>, got %q", s)}
	}
	return types.ModelRef{Owner: owner, Name: name}, nil
}
