package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmlewis/scenerender/config"
	"github.com/gmlewis/scenerender/render"
	"github.com/gmlewis/scenerender/scene"
)

func TestNewApp(t *testing.T) {
	ff := newFakeFactory(nil)
	a, err := NewApp(context.Background(), testConfig(), quietLogger(), WithRendererFactory(ff.New))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"default"}, a.Registry.Keys())
	data, err := a.Client.RenderScene(context.Background(), "default", 3, 4)
	require.NoError(t, err)
	assert.NoError(t, frameIs(data, scene.Pt(3, 4)))
}

func TestNewAppInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Width = 0
	_, err := NewApp(context.Background(), cfg, quietLogger())
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestNewAppNoDevice(t *testing.T) {
	ff := newFakeFactory(func() *fakeRenderer {
		return &fakeRenderer{initErr: render.ErrDeviceUnavailable}
	})
	_, err := NewApp(context.Background(), testConfig(), quietLogger(), WithRendererFactory(ff.New))
	assert.ErrorIs(t, err, render.ErrDeviceUnavailable)
}

// TestInit is the only test touching the process-wide app.
func TestInit(t *testing.T) {
	_, err := RenderScene(context.Background(), "default", 0, 0)
	require.ErrorIs(t, err, ErrNotInitialized)
	assert.Nil(t, Default())

	ff := newFakeFactory(nil)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, Init(context.Background(), testConfig(), quietLogger(), WithRendererFactory(ff.New)))
		}()
	}
	wg.Wait()
	a := Default()
	require.NotNil(t, a)
	t.Cleanup(a.Close)
	assert.EqualValues(t, 1, ff.calls.Load())

	// Later calls are no-ops, even with a different configuration.
	other := testConfig()
	other.DefaultKey = "other"
	require.NoError(t, Init(context.Background(), other, quietLogger(), WithRendererFactory(ff.New)))
	assert.Same(t, a, Default())

	data, err := RenderScene(context.Background(), "default", 1, 2)
	require.NoError(t, err)
	assert.NoError(t, frameIs(data, scene.Pt(1, 2)))
}
