package service

import (
	"context"
	"fmt"
	"image/color"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gmlewis/scenerender/config"
	"github.com/gmlewis/scenerender/readback"
	"github.com/gmlewis/scenerender/render"
	"github.com/gmlewis/scenerender/scene"
)

// Stats counts the requests a worker has handled.
type Stats struct {
	Served  uint64 `json:"served"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

// Worker is the single owner of one renderer. It serves requests one at a
// time, in arrival order, on a goroutine locked to its own OS thread.
type Worker struct {
	key      string
	cfg      config.Config
	params   render.Params
	accent   color.NRGBA
	renderer render.Renderer
	logger   *log.Logger

	// scene is reset and redrawn for every request; only the worker goroutine touches it.
	scene *scene.Scene

	requests chan *Request
	done     chan struct{}
	cancel   context.CancelFunc

	served  atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewWorker returns a worker for key. It does nothing until Start.
func NewWorker(key string, cfg config.Config, r render.Renderer, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{
		key: key,
		cfg: cfg,
		params: render.Params{
			Background:   cfg.BackgroundColor(),
			Antialiasing: cfg.Antialiasing,
		},
		accent:   cfg.AccentColor(),
		renderer: r,
		logger:   logger.With("key", key),
		scene:    scene.New(),
		requests: make(chan *Request, cfg.QueueDepth),
		done:     make(chan struct{}),
	}
}

// Start acquires the device on the worker's goroutine and returns once the
// worker is ready to accept requests. The worker runs until ctx is done or
// Stop is called. A returned error wraps render.ErrDeviceUnavailable.
func (w *Worker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	ready := make(chan error, 1)
	go w.run(ctx, ready)
	err := <-ready
	if err != nil {
		w.cancel()
	}
	return err
}

// Stop asks the worker to exit and waits until it has released its device.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	<-w.done
}

// Done is closed once the worker has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Key returns the service key the worker was created for.
func (w *Worker) Key() string {
	return w.key
}

// Stats returns a snapshot of the worker's counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Served:  w.served.Load(),
		Failed:  w.failed.Load(),
		Dropped: w.dropped.Load(),
	}
}

func (w *Worker) endpoint() Endpoint {
	return Endpoint{Key: w.key, requests: w.requests, done: w.done}
}

func (w *Worker) run(ctx context.Context, ready chan<- error) {
	// Device contexts may be bound to the thread that created them.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	start := time.Now()
	if err := w.renderer.Init(w.cfg.Width, w.cfg.Height); err != nil {
		w.logger.Error("device acquisition failed", "err", err)
		ready <- fmt.Errorf("worker %q: %w", w.key, err)
		return
	}
	defer w.renderer.Close()
	w.logger.Info("render worker started",
		"width", w.cfg.Width,
		"height", w.cfg.Height,
		"rowAlignment", w.renderer.RowAlignment(),
		"duration", time.Since(start).Round(time.Millisecond))
	ready <- nil

	for {
		select {
		case <-ctx.Done():
			w.drain()
			w.logger.Info("render worker stopped", "served", w.served.Load(), "failed", w.failed.Load())
			return
		case req := <-w.requests:
			w.serve(req)
		}
	}
}

// drain abandons requests still queued at shutdown.
func (w *Worker) drain() {
	for {
		select {
		case req := <-w.requests:
			w.dropped.Add(1)
			req.abandon()
		default:
			return
		}
	}
}

func (w *Worker) serve(req *Request) {
	logger := w.logger.With("id", req.ID)
	if err := req.ctx.Err(); err != nil {
		w.dropped.Add(1)
		logger.Warn("caller gone before render, dropping request", "err", err)
		req.abandon()
		return
	}

	start := time.Now()
	data, err := w.process(req)
	if err != nil {
		w.failed.Add(1)
		logger.Error("render failed", "err", err)
	} else {
		w.served.Add(1)
		logger.Debug("rendered", "bytes", len(data), "duration", time.Since(start))
	}

	if !req.deliver(Response{ID: req.ID, Data: data, Err: err}) {
		w.dropped.Add(1)
		logger.Warn("caller gone, discarding response")
	}
}

// process renders one request. A panicking renderer fails only this request.
func (w *Worker) process(req *Request) (data []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", render.ErrRenderFailure, p)
		}
	}()

	w.scene.Reset()
	if err := populate(w.scene, req.Command, w.accent); err != nil {
		return nil, err
	}

	frame, err := w.renderer.Render(req.ctx, w.scene, w.params)
	if err != nil {
		return nil, err
	}
	if frame.Layout.Width != w.cfg.Width || frame.Layout.Height != w.cfg.Height {
		return nil, fmt.Errorf("%w: frame is %dx%d, want %dx%d", render.ErrReadbackFailure,
			frame.Layout.Width, frame.Layout.Height, w.cfg.Width, w.cfg.Height)
	}
	data, err = readback.Unpad(frame.Data, frame.Layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", render.ErrReadbackFailure, err)
	}
	return data, nil
}
