// Package batch generates a fixed number of images from one model, one
// request at a time, and keeps the resulting set for display and download.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/user/pixledger/internal/types"
	"github.com/user/pixledger/pkg/backend"
)

// DefaultSize is the batch size used when none is configured.
const DefaultSize = 9

// ErrInFlight is returned when Generate is called while another batch from
// the same orchestrator is still running.
var ErrInFlight = errors.New("a batch is already being generated")

// Config is the per-call-site batch shape.
type Config struct {
	// Size is the number of images per batch.
	Size int
	// SendBlockHash adds the "/owner/name" block_hash field to each request.
	SendBlockHash bool
}

func (c Config) size() int {
	if c.Size < 1 {
		return DefaultSize
	}
	return c.Size
}

// Result is one request's outcome in a Stream.
type Result struct {
	Index    int
	Data     []byte
	MimeType string
	Err      error
}

// AbortError reports a batch that stopped at request Index. Nothing produced
// before the failure is kept.
type AbortError struct {
	Index int
	Size  int
	Err   error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("batch aborted at image %d of %d: %v", e.Index+1, e.Size, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// Handles issues and releases display references.
type Handles interface {
	Create(data []byte, mimeType string) (types.Handle, error)
	Release(id types.HandleID) error
}

// Orchestrator owns the current batch and its display handles.
type Orchestrator struct {
	gen      types.Generator
	handles  Handles
	cfg      Config
	inflight *semaphore.Weighted

	mu      sync.Mutex
	current []types.Artifact
}

func New(gen types.Generator, handles Handles, cfg Config) *Orchestrator {
	return &Orchestrator{
		gen:      gen,
		handles:  handles,
		cfg:      cfg,
		inflight: semaphore.NewWeighted(1),
	}
}

// Size is the configured batch size.
func (o *Orchestrator) Size() int { return o.cfg.size() }

// Stream issues Size generate requests for ref strictly one after another:
// request i+1 starts only once request i has completed. The channel yields
// one Result per completed request and closes after the last one, after the
// first failure, or when ctx is done.
func (o *Orchestrator) Stream(ctx context.Context, ref types.ModelRef) <-chan Result {
	out := make(chan Result)
	size := o.cfg.size()

	go func() {
		defer close(out)
		for i := 0; i < size; i++ {
			if ctx.Err() != nil {
				return
			}
			data, mimeType, err := o.gen.Generate(ctx, ref, o.cfg.SendBlockHash)
			res := Result{Index: i, Data: data, MimeType: mimeType, Err: err}
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

// Generate runs a full batch for ref. The previous batch's handles are
// released first. It returns exactly Size artifacts indexed in request
// order, or an *AbortError with no artifacts retained.
func (o *Orchestrator) Generate(ctx context.Context, ref types.ModelRef) ([]types.Artifact, error) {
	if ref.Owner == "" || ref.Name == "" {
		return nil, &backend.ValidationError{Field: "model", Reason: "owner and name are required"}
	}
	if !o.inflight.TryAcquire(1) {
		return nil, ErrInFlight
	}
	defer o.inflight.Release(1)

	if err := o.Release(); err != nil {
		slog.Warn("failed to release previous batch", "error", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	size := o.cfg.size()
	slog.Info("generating batch", "model", ref.String(), "size", size)

	artifacts := make([]types.Artifact, 0, size)
	for res := range o.Stream(ctx, ref) {
		if res.Err != nil {
			o.discard(artifacts)
			slog.Warn("batch aborted", "model", ref.String(), "index", res.Index, "error", res.Err)
			return nil, &AbortError{Index: res.Index, Size: size, Err: res.Err}
		}

		handle, err := o.handles.Create(res.Data, res.MimeType)
		if err != nil {
			o.discard(artifacts)
			return nil, &AbortError{Index: res.Index, Size: size, Err: err}
		}
		artifacts = append(artifacts, types.Artifact{
			ID:       types.NewArtifactID(),
			Index:    res.Index,
			Data:     res.Data,
			MimeType: res.MimeType,
			Handle:   handle,
		})
		slog.Debug("artifact generated", "model", ref.String(), "index", res.Index, "bytes", len(res.Data))
	}

	if len(artifacts) < size {
		o.discard(artifacts)
		err := ctx.Err()
		if err == nil {
			err = errors.New("generation stopped early")
		}
		return nil, &AbortError{Index: len(artifacts), Size: size, Err: err}
	}

	o.mu.Lock()
	o.current = artifacts
	o.mu.Unlock()

	return o.Current(), nil
}

// Current returns the artifacts of the last successful batch.
func (o *Orchestrator) Current() []types.Artifact {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]types.Artifact, len(o.current))
	copy(out, o.current)
	return out
}

// Select returns the payload of artifact i of the current batch. It reads
// the bytes held by the artifact, not its display handle.
func (o *Orchestrator) Select(i int) ([]byte, error) {
	a, err := o.Artifact(i)
	if err != nil {
		return nil, err
	}
	return a.Data, nil
}

// Artifact returns artifact i of the current batch.
func (o *Orchestrator) Artifact(i int) (types.Artifact, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if i < 0 || i >= len(o.current) {
		return types.Artifact{}, &backend.ValidationError{
			Field:  "artifact index",
			Reason: fmt.Sprintf("%d is outside the current batch of %d", i, len(o.current)),
		}
	}
	return o.current[i], nil
}

// Release drops the current batch and releases all of its handles.
func (o *Orchestrator) Release() error {
	o.mu.Lock()
	artifacts := o.current
	o.current = nil
	o.mu.Unlock()
	return o.releaseAll(artifacts)
}

func (o *Orchestrator) discard(artifacts []types.Artifact) {
	if err := o.releaseAll(artifacts); err != nil {
		slog.Warn("failed to release partial batch", "error", err)
	}
}

func (o *Orchestrator) releaseAll(artifacts []types.Artifact) error {
	var errs []error
	for _, a := range artifacts {
		if err := o.handles.Release(a.Handle.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
