package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gmlewis/scenerender/config"
	"github.com/gmlewis/scenerender/readback"
	"github.com/gmlewis/scenerender/render"
	"github.com/gmlewis/scenerender/scene"
)

// fakeRenderer encodes the translation of the first scene item into every
// pixel, so tests can tell which request a frame was rendered for.
type fakeRenderer struct {
	initErr   error
	initDelay time.Duration
	alignment int
	delay     time.Duration
	fail      func(pos scene.Point) error

	layout readback.Layout

	inflight    atomic.Int32
	maxInflight atomic.Int32
	closed      atomic.Bool

	mu    sync.Mutex
	order []scene.Point
}

func (f *fakeRenderer) Init(width, height int) error {
	time.Sleep(f.initDelay)
	if f.initErr != nil {
		return f.initErr
	}
	if f.alignment == 0 {
		f.alignment = 256
	}
	var err error
	f.layout, err = readback.NewLayout(width, height, f.alignment)
	return err
}

func (f *fakeRenderer) RowAlignment() int { return f.alignment }

func (f *fakeRenderer) Render(ctx context.Context, sc *scene.Scene, p render.Params) (*render.Frame, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		m := f.maxInflight.Load()
		if n <= m || f.maxInflight.CompareAndSwap(m, n) {
			break
		}
	}

	var pos scene.Point
	if items := sc.Items(); len(items) > 0 {
		_, _, pos.X, _, _, pos.Y = scene.Affine(items[0].Transform)
	}
	f.mu.Lock()
	f.order = append(f.order, pos)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail != nil {
		if err := f.fail(pos); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, f.layout.PaddedSize())
	for i := range buf {
		buf[i] = 0xAB // padding marker
	}
	px := encodePos(pos)
	for y := 0; y < f.layout.Height; y++ {
		for x := 0; x < f.layout.Width; x++ {
			copy(buf[y*f.layout.PaddedRowBytes+x*4:], px[:])
		}
	}
	return &render.Frame{Layout: f.layout, Data: buf}, nil
}

func (f *fakeRenderer) Close() { f.closed.Store(true) }

func (f *fakeRenderer) renderOrder() []scene.Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scene.Point(nil), f.order...)
}

func encodePos(p scene.Point) [4]byte {
	x, y := int(p.X), int(p.Y)
	return [4]byte{byte(x), byte(y), byte(x>>8)<<4 | byte(y>>8)&0xF, 255}
}

// frameIs checks that every pixel of data encodes pos.
func frameIs(data []byte, pos scene.Point) error {
	want := encodePos(pos)
	for i := 0; i < len(data); i += 4 {
		if data[i] != want[0] || data[i+1] != want[1] || data[i+2] != want[2] || data[i+3] != want[3] {
			return fmt.Errorf("pixel %d = %v, want %v", i/4, data[i:i+4], want)
		}
	}
	return nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Width = 40
	cfg.Height = 30
	return cfg
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// fakeFactory hands out one fakeRenderer per key and counts calls.
type fakeFactory struct {
	template func() *fakeRenderer
	calls    atomic.Int32

	mu        sync.Mutex
	renderers map[string]*fakeRenderer
}

func newFakeFactory(template func() *fakeRenderer) *fakeFactory {
	if template == nil {
		template = func() *fakeRenderer { return &fakeRenderer{} }
	}
	return &fakeFactory{template: template, renderers: make(map[string]*fakeRenderer)}
}

func (ff *fakeFactory) New(key string) (render.Renderer, error) {
	ff.calls.Add(1)
	r := ff.template()
	ff.mu.Lock()
	ff.renderers[key] = r
	ff.mu.Unlock()
	return r, nil
}

func (ff *fakeFactory) get(key string) *fakeRenderer {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return ff.renderers[key]
}
