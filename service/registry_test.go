package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmlewis/scenerender/render"
)

func newTestRegistry(t *testing.T, ff *fakeFactory) *Registry {
	t.Helper()
	reg := NewRegistry(testConfig(), ff.New, quietLogger())
	t.Cleanup(reg.Close)
	return reg
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	ff := newFakeFactory(nil)
	reg := newTestRegistry(t, ff)

	const callers = 32
	eps := make([]Endpoint, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ep, err := reg.GetOrCreate(context.Background(), "shared")
			assert.NoError(t, err)
			eps[i] = ep
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, reg.Len())
	assert.EqualValues(t, 1, ff.calls.Load())
	for _, ep := range eps[1:] {
		assert.Equal(t, eps[0].requests, ep.requests, "callers got different workers")
	}
}

func TestGetOrCreateDistinctKeys(t *testing.T) {
	ff := newFakeFactory(nil)
	reg := newTestRegistry(t, ff)

	for i := range 3 {
		_, err := reg.GetOrCreate(context.Background(), fmt.Sprintf("k%d", 2-i))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"k0", "k1", "k2"}, reg.Keys())
	assert.EqualValues(t, 3, ff.calls.Load())

	infos := reg.Workers()
	require.Len(t, infos, 3)
	for _, info := range infos {
		assert.True(t, info.Running, info.Key)
		assert.Empty(t, info.Err)
	}
}

func TestGetOrCreateRemembersDeviceFailure(t *testing.T) {
	ff := newFakeFactory(func() *fakeRenderer {
		return &fakeRenderer{initErr: render.ErrDeviceUnavailable}
	})
	reg := newTestRegistry(t, ff)

	_, err := reg.GetOrCreate(context.Background(), "gpu")
	require.ErrorIs(t, err, render.ErrDeviceUnavailable)
	_, err = reg.GetOrCreate(context.Background(), "gpu")
	require.ErrorIs(t, err, render.ErrDeviceUnavailable)

	assert.EqualValues(t, 1, ff.calls.Load(), "startup must not be retried")
	assert.Equal(t, 1, reg.Len())

	_, err = reg.Lookup(context.Background(), "gpu")
	assert.ErrorIs(t, err, ErrWorkerUnreachable)
	assert.ErrorIs(t, err, render.ErrDeviceUnavailable)

	infos := reg.Workers()
	require.Len(t, infos, 1)
	assert.False(t, infos[0].Running)
	assert.NotEmpty(t, infos[0].Err)
}

func TestGetOrCreateFactoryError(t *testing.T) {
	reg := NewRegistry(testConfig(), func(string) (render.Renderer, error) {
		return nil, fmt.Errorf("%w: no adapter", render.ErrDeviceUnavailable)
	}, quietLogger())
	defer reg.Close()

	_, err := reg.GetOrCreate(context.Background(), "x")
	assert.ErrorIs(t, err, render.ErrDeviceUnavailable)
}

func TestLookupMissingKey(t *testing.T) {
	reg := newTestRegistry(t, newFakeFactory(nil))

	_, err := reg.Lookup(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrWorkerUnreachable)
	assert.Zero(t, reg.Len())
}

func TestRegistryClose(t *testing.T) {
	ff := newFakeFactory(nil)
	reg := NewRegistry(testConfig(), ff.New, quietLogger())

	_, err := reg.GetOrCreate(context.Background(), "a")
	require.NoError(t, err)
	reg.Close()
	reg.Close()

	assert.True(t, ff.get("a").closed.Load(), "device not released")

	_, err = reg.GetOrCreate(context.Background(), "b")
	assert.ErrorIs(t, err, ErrWorkerUnreachable)
	_, err = reg.Lookup(context.Background(), "a")
	assert.ErrorIs(t, err, ErrWorkerUnreachable)
}

func TestGetOrCreateWorkerLimit(t *testing.T) {
	ff := newFakeFactory(nil)
	cfg := testConfig()
	cfg.MaxWorkers = 2
	reg := NewRegistry(cfg, ff.New, quietLogger())
	defer reg.Close()

	for _, key := range []string{"a", "b"} {
		_, err := reg.GetOrCreate(context.Background(), key)
		require.NoError(t, err)
	}
	_, err := reg.GetOrCreate(context.Background(), "c")
	assert.ErrorIs(t, err, ErrTooManyWorkers)
	assert.Equal(t, 2, reg.Len())
	assert.EqualValues(t, 2, ff.calls.Load())

	// Existing keys are still served at the limit.
	_, err = reg.GetOrCreate(context.Background(), "a")
	assert.NoError(t, err)
}
