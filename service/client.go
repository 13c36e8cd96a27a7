package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gmlewis/scenerender/scene"
)

// Client submits scenes to workers and waits for their pixels.
// It is safe for concurrent use.
type Client struct {
	registry   *Registry
	timeout    time.Duration
	autoCreate bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds each call whose context has no deadline.
// Zero disables the default timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithoutAutoCreate makes the client fail with ErrWorkerUnreachable for keys
// that have no worker yet, instead of starting one.
func WithoutAutoCreate() ClientOption {
	return func(c *Client) { c.autoCreate = false }
}

// NewClient returns a client for the workers in reg.
func NewClient(reg *Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:   reg,
		timeout:    reg.cfg.RequestTimeout.Duration,
		autoCreate: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RenderScene renders the rounded-rectangle scene positioned at (x, y) on
// key's worker and returns the tightly packed RGBA pixels.
func (c *Client) RenderScene(ctx context.Context, key string, x, y float64) ([]byte, error) {
	return c.Render(ctx, key, RenderCommand{Position: scene.Pt(x, y)})
}

// Render runs cmd on key's worker. Errors are *RequestError values wrapping
// one of the package's or the render package's sentinel errors.
func (c *Client) Render(ctx context.Context, key string, cmd Command) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := NewRequest(ctx, cmd)
	if ctx.Err() != nil {
		return nil, &RequestError{Key: key, ID: req.ID, Err: waitErr(ctx)}
	}
	ep, err := c.endpoint(ctx, key)
	if err != nil {
		return nil, &RequestError{Key: key, ID: req.ID, Err: err}
	}
	resp, err := ep.roundTrip(ctx, req)
	if err != nil {
		return nil, &RequestError{Key: key, ID: req.ID, Err: err}
	}
	return resp.Data, nil
}

func (c *Client) endpoint(ctx context.Context, key string) (Endpoint, error) {
	if c.autoCreate {
		return c.registry.GetOrCreate(ctx, key)
	}
	return c.registry.Lookup(ctx, key)
}

// roundTrip enqueues req and waits for its reply.
func (ep Endpoint) roundTrip(ctx context.Context, req *Request) (Response, error) {
	select {
	case ep.requests <- req:
	case <-ep.done:
		return Response{}, fmt.Errorf("%w: worker for %q stopped", ErrWorkerUnreachable, ep.Key)
	case <-ctx.Done():
		return Response{}, waitErr(ctx)
	}

	select {
	case resp, ok := <-req.reply:
		if !ok && ctx.Err() != nil {
			// The worker dropped the request because we gave up on it.
			return Response{}, waitErr(ctx)
		}
		return checkReply(req, resp, ok)
	case <-ep.done:
		// The reply may have been sent just before the worker exited.
		select {
		case resp, ok := <-req.reply:
			return checkReply(req, resp, ok)
		default:
		}
		return Response{}, fmt.Errorf("%w: worker for %q stopped", ErrWorkerUnreachable, ep.Key)
	case <-ctx.Done():
		return Response{}, waitErr(ctx)
	}
}

func checkReply(req *Request, resp Response, ok bool) (Response, error) {
	if !ok {
		return Response{}, ErrChannelClosed
	}
	if resp.ID != req.ID {
		return Response{}, fmt.Errorf("%w: got response %s", ErrChannelClosed, resp.ID)
	}
	return resp, resp.Err
}
