package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/pixledger/internal/display"
	"github.com/user/pixledger/internal/types"
	"github.com/user/pixledger/pkg/backend"
)

var ref = types.ModelRef{Owner: "alice", Name: "cats"}

// fakeGenerator returns "img-<n>" for the n-th call and fails on call failAt.
type fakeGenerator struct {
	failAt int
	delay  time.Duration
	gate   chan struct{}

	mu       sync.Mutex
	calls    int
	running  atomic.Int32
	maxSeen  atomic.Int32
	withHash []bool
	refs     []types.ModelRef
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{failAt: -1}
}

func (g *fakeGenerator) Generate(ctx context.Context, r types.ModelRef, withHash bool) ([]byte, string, error) {
	n := g.running.Add(1)
	defer g.running.Add(-1)
	for {
		old := g.maxSeen.Load()
		if n <= old || g.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}

	g.mu.Lock()
	call := g.calls
	g.calls++
	g.withHash = append(g.withHash, withHash)
	g.refs = append(g.refs, r)
	g.mu.Unlock()

	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if call == g.failAt {
		return nil, "", &backend.FetchError{Op: "generate", Status: 500, Message: "generation failed"}
	}
	return []byte(fmt.Sprintf("img-%d", call)), "image/png", nil
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func newTable(t *testing.T) *display.Table {
	t.Helper()
	table, err := display.NewTable(t.TempDir())
	require.NoError(t, err)
	return table
}

func TestGenerateFullBatchInOrder(t *testing.T) {
	gen := newFakeGenerator()
	gen.delay = 2 * time.Millisecond
	table := newTable(t)
	o := New(gen, table, Config{Size: 9, SendBlockHash: true})

	artifacts, err := o.Generate(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, artifacts, 9)

	for i, a := range artifacts {
		assert.Equal(t, i, a.Index)
		assert.Equal(t, fmt.Sprintf("img-%d", i), string(a.Data))
		assert.NotEmpty(t, a.Handle.ID)
		assert.NotEmpty(t, a.ID)
	}
	assert.Equal(t, int32(1), gen.maxSeen.Load(), "requests must never overlap")
	assert.Equal(t, 9, table.Live())
	for i := range gen.refs {
		assert.Equal(t, ref, gen.refs[i])
		assert.True(t, gen.withHash[i])
	}
}

func TestGenerateConfiguredSize(t *testing.T) {
	gen := newFakeGenerator()
	o := New(gen, newTable(t), Config{Size: 10})

	artifacts, err := o.Generate(context.Background(), ref)
	require.NoError(t, err)
	assert.Len(t, artifacts, 10)
	assert.False(t, gen.withHash[0])

	assert.Equal(t, DefaultSize, New(gen, newTable(t), Config{}).Size())
}

func TestAbortDiscardsPartialBatch(t *testing.T) {
	for _, k := range []int{0, 4, 8} {
		t.Run(fmt.Sprintf("fail at %d", k), func(t *testing.T) {
			gen := newFakeGenerator()
			gen.failAt = k
			table := newTable(t)
			o := New(gen, table, Config{Size: 9})

			artifacts, err := o.Generate(context.Background(), ref)
			require.Error(t, err)
			assert.Nil(t, artifacts)

			var abort *AbortError
			require.ErrorAs(t, err, &abort)
			assert.Equal(t, k, abort.Index)
			assert.Equal(t, 9, abort.Size)

			var fe *backend.FetchError
			assert.ErrorAs(t, err, &fe, "cause stays reachable")

			assert.Equal(t, k+1, gen.Calls(), "no request after the failing one")
			assert.Empty(t, o.Current())
			assert.Zero(t, table.Live(), "handles of the partial batch are released")
		})
	}
}

func TestAbortAlsoDropsPreviousBatch(t *testing.T) {
	gen := newFakeGenerator()
	table := newTable(t)
	o := New(gen, table, Config{Size: 3})

	_, err := o.Generate(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, o.Current(), 3)

	gen.failAt = gen.Calls() + 1
	_, err = o.Generate(context.Background(), ref)
	require.Error(t, err)
	assert.Empty(t, o.Current())
	assert.Zero(t, table.Live())
}

func TestNewBatchReleasesPrevious(t *testing.T) {
	gen := newFakeGenerator()
	table := newTable(t)
	o := New(gen, table, Config{Size: 4})

	first, err := o.Generate(context.Background(), ref)
	require.NoError(t, err)

	second, err := o.Generate(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, 4, table.Live(), "only the newest batch holds handles")

	_, err = table.Open(first[0].Handle.ID)
	assert.ErrorIs(t, err, display.ErrReleased)
	_, err = table.Open(second[0].Handle.ID)
	assert.NoError(t, err)
}

func TestSelectIgnoresHandleLiveness(t *testing.T) {
	table := newTable(t)
	o := New(newFakeGenerator(), table, Config{Size: 2})

	artifacts, err := o.Generate(context.Background(), ref)
	require.NoError(t, err)

	require.NoError(t, table.Release(artifacts[1].Handle.ID))
	data, err := o.Select(1)
	require.NoError(t, err)
	assert.Equal(t, "img-1", string(data))

	_, err = o.Select(2)
	var ve *backend.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestReleaseClearsCurrent(t *testing.T) {
	table := newTable(t)
	o := New(newFakeGenerator(), table, Config{Size: 3})
	_, err := o.Generate(context.Background(), ref)
	require.NoError(t, err)

	require.NoError(t, o.Release())
	assert.Empty(t, o.Current())
	assert.Zero(t, table.Live())
}

func TestConcurrentGenerateRefused(t *testing.T) {
	gen := newFakeGenerator()
	gen.gate = make(chan struct{})
	o := New(gen, newTable(t), Config{Size: 2})

	done := make(chan error, 1)
	go func() {
		_, err := o.Generate(context.Background(), ref)
		done <- err
	}()

	require.Eventually(t, func() bool { return gen.Calls() == 1 }, time.Second, 5*time.Millisecond)

	_, err := o.Generate(context.Background(), ref)
	assert.ErrorIs(t, err, ErrInFlight)

	close(gen.gate)
	require.NoError(t, <-done)

	// Once resolved, a new batch may start.
	_, err = o.Generate(context.Background(), ref)
	assert.NoError(t, err)
}

func TestCancelStopsBeforeNextRequest(t *testing.T) {
	gen := newFakeGenerator()
	gen.gate = make(chan struct{})
	table := newTable(t)
	o := New(gen, table, Config{Size: 9})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.Generate(ctx, ref)
		done <- err
	}()

	require.Eventually(t, func() bool { return gen.Calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	err := <-done
	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, gen.Calls())
	assert.Zero(t, table.Live())
}

func TestStreamYieldsInOrder(t *testing.T) {
	o := New(newFakeGenerator(), newTable(t), Config{Size: 5})

	var got []int
	for res := range o.Stream(context.Background(), ref) {
		require.NoError(t, res.Err)
		got = append(got, res.Index)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestGenerateRequiresRef(t *testing.T) {
	o := New(newFakeGenerator(), newTable(t), Config{Size: 1})
	_, err := o.Generate(context.Background(), types.ModelRef{Owner: "alice"})
	var ve *backend.ValidationError
	assert.ErrorAs(t, err, &ve)
}
