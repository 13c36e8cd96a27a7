package service

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmlewis/scenerender/render"
	"github.com/gmlewis/scenerender/scene"
)

func TestClientCorrelatesConcurrentCallers(t *testing.T) {
	ff := newFakeFactory(func() *fakeRenderer { return &fakeRenderer{delay: time.Millisecond} })
	reg := newTestRegistry(t, ff)
	c := NewClient(reg)

	const callers = 24
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pos := scene.Pt(float64(i*3), float64(i))
			data, err := c.RenderScene(context.Background(), "shared", pos.X, pos.Y)
			if assert.NoError(t, err) {
				assert.NoError(t, frameIs(data, pos), "caller %d", i)
			}
		}()
	}
	wg.Wait()

	r := ff.get("shared")
	assert.EqualValues(t, 1, r.maxInflight.Load(), "renders overlapped")
	assert.Len(t, r.renderOrder(), callers)
}

func TestClientCorrelationWithSoftwareRenderer(t *testing.T) {
	cfg := testConfig()
	cfg.Width, cfg.Height = 400, 240
	reg := NewRegistry(cfg, nil, quietLogger())
	defer reg.Close()
	c := NewClient(reg)

	accent, bg := cfg.AccentColor(), cfg.BackgroundColor()
	pixel := func(data []byte, x, y int) []byte {
		i := (y*cfg.Width + x) * 4
		return data[i : i+4]
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			x := i * 20
			data, err := c.RenderScene(context.Background(), "cpu", float64(x), 0)
			if !assert.NoError(t, err) {
				return
			}
			if !assert.Len(t, data, cfg.Width*cfg.Height*4) {
				return
			}
			assertNear(t, accent, pixel(data, x+2, 100), "caller %d", i)
			if i > 0 {
				assertNear(t, bg, pixel(data, x-2, 100), "caller %d", i)
			}
		}()
	}
	wg.Wait()
}

func TestClientTimeout(t *testing.T) {
	ff := newFakeFactory(func() *fakeRenderer { return &fakeRenderer{delay: 200 * time.Millisecond} })
	reg := newTestRegistry(t, ff)
	c := NewClient(reg)
	_, err := reg.GetOrCreate(context.Background(), "slow")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.RenderScene(ctx, "slow", 1, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "slow", reqErr.Key)

	// The worker finishes the abandoned render, discards it and keeps serving.
	data, err := c.RenderScene(context.Background(), "slow", 5, 6)
	require.NoError(t, err)
	assert.NoError(t, frameIs(data, scene.Pt(5, 6)))

	assert.Eventually(t, func() bool {
		return reg.Workers()[0].Stats.Dropped == 1
	}, time.Second, 5*time.Millisecond)
}

func TestClientDefaultTimeout(t *testing.T) {
	ff := newFakeFactory(func() *fakeRenderer { return &fakeRenderer{delay: 200 * time.Millisecond} })
	reg := newTestRegistry(t, ff)
	c := NewClient(reg, WithTimeout(20*time.Millisecond))

	_, err := c.RenderScene(context.Background(), "slow", 0, 0)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClientCanceled(t *testing.T) {
	reg := newTestRegistry(t, newFakeFactory(nil))
	c := NewClient(reg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.RenderScene(ctx, "k", 0, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestClientWithoutAutoCreate(t *testing.T) {
	ff := newFakeFactory(nil)
	reg := newTestRegistry(t, ff)
	c := NewClient(reg, WithoutAutoCreate())

	_, err := c.RenderScene(context.Background(), "missing", 0, 0)
	assert.ErrorIs(t, err, ErrWorkerUnreachable)
	assert.Zero(t, ff.calls.Load())

	_, err = reg.GetOrCreate(context.Background(), "missing")
	require.NoError(t, err)
	_, err = c.RenderScene(context.Background(), "missing", 0, 0)
	assert.NoError(t, err)
}

func TestClientAfterClose(t *testing.T) {
	ff := newFakeFactory(nil)
	reg := NewRegistry(testConfig(), ff.New, quietLogger())
	c := NewClient(reg)
	ep, err := reg.GetOrCreate(context.Background(), "k")
	require.NoError(t, err)
	reg.Close()

	_, err = c.RenderScene(context.Background(), "k", 0, 0)
	assert.ErrorIs(t, err, ErrWorkerUnreachable)

	_, err = ep.roundTrip(context.Background(), NewRequest(context.Background(), RenderCommand{}))
	assert.ErrorIs(t, err, ErrWorkerUnreachable)
}

func TestClientRenderFailure(t *testing.T) {
	ff := newFakeFactory(func() *fakeRenderer {
		return &fakeRenderer{fail: func(scene.Point) error {
			return fmt.Errorf("%w: out of memory", render.ErrRenderFailure)
		}}
	})
	reg := newTestRegistry(t, ff)
	c := NewClient(reg)

	_, err := c.RenderScene(context.Background(), "k", 0, 0)
	assert.ErrorIs(t, err, render.ErrRenderFailure)
	// The worker is still usable.
	_, err = reg.Lookup(context.Background(), "k")
	assert.NoError(t, err)
}

func TestClientShowcase(t *testing.T) {
	cfg := testConfig()
	cfg.Width, cfg.Height = 640, 640
	reg := NewRegistry(cfg, nil, quietLogger())
	defer reg.Close()

	data, err := NewClient(reg).Render(context.Background(), "demo", ShowcaseCommand{})
	require.NoError(t, err)
	require.Len(t, data, 640*640*4)

	at := func(x, y int) []byte {
		i := (y*640 + x) * 4
		return data[i : i+4]
	}
	// Center of the filled circle.
	assertNear(t, pink, at(420, 200))
	// The ellipse's long axis points up and to the right of its center, so
	// a point 150px out along it is filled while the horizontal one is not.
	assertNear(t, mauve, at(384, 353))
	assertNear(t, cfg.BackgroundColor(), at(400, 420))
}

// assertNear allows for rounding in the rasterizer's color conversion.
func assertNear(t *testing.T, want color.NRGBA, got []byte, msgAndArgs ...any) {
	t.Helper()
	w := []byte{want.R, want.G, want.B, want.A}
	for i := range w {
		assert.InDelta(t, float64(w[i]), float64(got[i]), 2, msgAndArgs...)
	}
}

func TestCheckReplyMismatch(t *testing.T) {
	req := NewRequest(context.Background(), RenderCommand{})
	other := NewRequest(context.Background(), RenderCommand{})

	_, err := checkReply(req, Response{ID: other.ID}, true)
	assert.ErrorIs(t, err, ErrChannelClosed)
	_, err = checkReply(req, Response{}, false)
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestClientLookupHonorsDeadlineDuringStartup(t *testing.T) {
	ff := newFakeFactory(func() *fakeRenderer { return &fakeRenderer{initDelay: 500 * time.Millisecond} })
	reg := newTestRegistry(t, ff)
	go reg.GetOrCreate(context.Background(), "slow-start")
	require.Eventually(t, func() bool { return reg.Len() == 1 }, time.Second, time.Millisecond)

	c := NewClient(reg, WithoutAutoCreate())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.RenderScene(ctx, "slow-start", 0, 0)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 250*time.Millisecond, "caller waited for device startup")
}
