// Package service runs render workers and hands their results to callers.
//
// Each service key gets one Worker, which owns one renderer and serves
// requests strictly one at a time. The Registry creates workers on demand
// and never creates two for the same key. A Client looks up (or creates) a
// worker, sends it a Request carrying a private reply channel and waits for
// the matching Response.
//
// Processes that only need one service call Init once and then RenderScene:
//
//	if err := service.Init(ctx, config.Default(), logger); err != nil {
//	    return err
//	}
//	pix, err := service.RenderScene(ctx, "default", 100, 50)
package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/gmlewis/scenerender/config"
)

// App bundles a registry and a client built from one configuration.
type App struct {
	Config   config.Config
	Registry *Registry
	Client   *Client
}

// AppOption configures NewApp.
type AppOption func(*appOptions)

type appOptions struct {
	factory RendererFactory
	client  []ClientOption
}

// WithRendererFactory replaces the backend selected by the configuration.
func WithRendererFactory(f RendererFactory) AppOption {
	return func(o *appOptions) { o.factory = f }
}

// WithClientOptions passes options to the app's client.
func WithClientOptions(opts ...ClientOption) AppOption {
	return func(o *appOptions) { o.client = append(o.client, opts...) }
}

// NewApp validates cfg, builds a registry and client, and starts the worker
// for cfg.DefaultKey. It fails if that worker cannot acquire a device.
func NewApp(ctx context.Context, cfg config.Config, logger *log.Logger, opts ...AppOption) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	reg := NewRegistry(cfg, o.factory, logger)
	if _, err := reg.GetOrCreate(ctx, cfg.DefaultKey); err != nil {
		reg.Close()
		return nil, err
	}
	return &App{
		Config:   cfg,
		Registry: reg,
		Client:   NewClient(reg, o.client...),
	}, nil
}

// Close stops all of the app's workers.
func (a *App) Close() {
	a.Registry.Close()
}

var (
	initOnce   sync.Once
	initErr    error
	defaultApp atomic.Pointer[App]
)

// Init sets up the process-wide app. Only the first call does any work;
// later calls return its result.
func Init(ctx context.Context, cfg config.Config, logger *log.Logger, opts ...AppOption) error {
	initOnce.Do(func() {
		a, err := NewApp(ctx, cfg, logger, opts...)
		if err != nil {
			initErr = err
			return
		}
		defaultApp.Store(a)
	})
	return initErr
}

// Default returns the app created by Init, or nil.
func Default() *App {
	return defaultApp.Load()
}

// RenderScene renders the scene positioned at (x, y) on key's worker of the
// process-wide app.
func RenderScene(ctx context.Context, key string, x, y float64) ([]byte, error) {
	a := defaultApp.Load()
	if a == nil {
		return nil, ErrNotInitialized
	}
	return a.Client.RenderScene(ctx, key, x, y)
}
