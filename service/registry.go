package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/gmlewis/scenerender/config"
	"github.com/gmlewis/scenerender/render"
)

// RendererFactory returns a new, uninitialized renderer for key.
type RendererFactory func(key string) (render.Renderer, error)

// DefaultFactory builds renderers for the backend named in cfg.
func DefaultFactory(cfg config.Config, logger *log.Logger) RendererFactory {
	return func(key string) (render.Renderer, error) {
		return render.New(cfg.Backend, cfg.RowAlignment, logger)
	}
}

// Endpoint is the caller-side handle of a worker.
type Endpoint struct {
	Key      string
	requests chan<- *Request
	done     <-chan struct{}
}

// WorkerInfo describes one registry entry.
type WorkerInfo struct {
	Key     string `json:"key"`
	Running bool   `json:"running"`
	Stats   Stats  `json:"stats"`
	Err     string `json:"error,omitempty"`
}

// entry is created under the registry lock; ready is closed once worker or
// err is set and neither changes afterwards.
type entry struct {
	ready  chan struct{}
	worker *Worker
	err    error
}

// Registry maps service keys to workers and creates at most one worker per key.
// It is safe for concurrent use.
type Registry struct {
	cfg     config.Config
	factory RendererFactory
	logger  *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// NewRegistry returns an empty registry. A nil factory uses DefaultFactory.
func NewRegistry(cfg config.Config, factory RendererFactory, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	if factory == nil {
		factory = DefaultFactory(cfg, logger)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		cfg:     cfg,
		factory: factory,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
	}
}

// GetOrCreate returns the endpoint of key's worker, starting the worker if
// this is the first request for key. Concurrent callers for the same key
// share one worker. A device acquisition failure is remembered and returned
// to every later caller for that key. New keys beyond cfg.MaxWorkers fail
// with ErrTooManyWorkers.
func (r *Registry) GetOrCreate(ctx context.Context, key string) (Endpoint, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Endpoint{}, fmt.Errorf("%w: registry closed", ErrWorkerUnreachable)
	}
	e, ok := r.entries[key]
	if !ok {
		if limit := r.cfg.MaxWorkers; limit > 0 && len(r.entries) >= limit {
			r.mu.Unlock()
			return Endpoint{}, fmt.Errorf("%w: %d workers, cannot start %q", ErrTooManyWorkers, limit, key)
		}
		e = &entry{ready: make(chan struct{})}
		r.entries[key] = e
	}
	r.mu.Unlock()

	if !ok {
		r.start(key, e)
	}

	select {
	case <-e.ready:
	case <-ctx.Done():
		return Endpoint{}, waitErr(ctx)
	}
	if e.err != nil {
		return Endpoint{}, e.err
	}
	return e.worker.endpoint(), nil
}

func (r *Registry) start(key string, e *entry) {
	defer close(e.ready)

	rend, err := r.factory(key)
	if err != nil {
		e.err = fmt.Errorf("worker %q: %w", key, err)
		r.logger.Error("cannot create renderer", "key", key, "err", err)
		return
	}
	w := NewWorker(key, r.cfg, rend, r.logger)
	if err := w.Start(r.ctx); err != nil {
		e.err = err
		return
	}
	e.worker = w
}

// Lookup returns the endpoint of an existing, running worker. If the worker
// is still starting, Lookup waits for it until ctx is done.
func (r *Registry) Lookup(ctx context.Context, key string) (Endpoint, error) {
	r.mu.Lock()
	e, ok := r.entries[key]
	r.mu.Unlock()
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: no worker for %q", ErrWorkerUnreachable, key)
	}

	select {
	case <-e.ready:
	case <-ctx.Done():
		return Endpoint{}, waitErr(ctx)
	}
	if e.err != nil {
		return Endpoint{}, fmt.Errorf("%w: %w", ErrWorkerUnreachable, e.err)
	}
	select {
	case <-e.worker.Done():
		return Endpoint{}, fmt.Errorf("%w: worker for %q stopped", ErrWorkerUnreachable, key)
	default:
	}
	return e.worker.endpoint(), nil
}

// Len returns the number of registered keys, including failed ones.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.Unlock()
	slices.Sort(keys)
	return keys
}

// Workers describes every entry whose startup has finished, sorted by key.
func (r *Registry) Workers() []WorkerInfo {
	r.mu.Lock()
	snapshot := make(map[string]*entry, len(r.entries))
	for k, e := range r.entries {
		snapshot[k] = e
	}
	r.mu.Unlock()

	infos := make([]WorkerInfo, 0, len(snapshot))
	for k, e := range snapshot {
		select {
		case <-e.ready:
		default:
			continue
		}
		info := WorkerInfo{Key: k}
		if e.err != nil {
			info.Err = e.err.Error()
		} else {
			info.Stats = e.worker.Stats()
			select {
			case <-e.worker.Done():
			default:
				info.Running = true
			}
		}
		infos = append(infos, info)
	}
	slices.SortFunc(infos, func(a, b WorkerInfo) int { return cmp.Compare(a.Key, b.Key) })
	return infos
}

// Close stops every worker and waits for them to release their devices.
// Later calls to GetOrCreate fail with ErrWorkerUnreachable.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	r.cancel()
	for _, e := range entries {
		<-e.ready
		if e.worker != nil {
			<-e.worker.Done()
		}
	}
}
