// Package render owns graphics devices and turns scenes into pixels.
//
// A Renderer is bound to one device for its whole life and is driven by a
// single goroutine. Render rasterizes a scene into the device's target
// texture, copies the texture into a host-visible buffer and waits for that
// buffer to be mapped. The returned Frame still carries the backend's row
// padding; callers strip it with readback.Unpad.
package render

import (
	"context"
	"fmt"
	"image/color"

	"github.com/charmbracelet/log"

	"github.com/gmlewis/scenerender/config"
	"github.com/gmlewis/scenerender/readback"
	"github.com/gmlewis/scenerender/scene"
)

// Renderer represents a graphics backend.
type Renderer interface {
	// Init acquires the device and allocates width×height render targets.
	// It fails with ErrDeviceUnavailable when no compatible device exists.
	Init(width, height int) error
	// RowAlignment is the byte alignment the backend imposes on each row of
	// a texture-to-buffer copy.
	RowAlignment() int
	// Render draws sc and reads the result back. The Frame's data is only
	// valid until the next call to Render.
	Render(ctx context.Context, sc *scene.Scene, params Params) (*Frame, error)
	Close()
}

// Params are the per-render settings.
type Params struct {
	Background   color.NRGBA
	Antialiasing config.Antialiasing
}

// Frame is a row-padded copy of a rendered target texture.
type Frame struct {
	Layout readback.Layout
	Data   []byte
}

// New returns an uninitialized renderer for the named backend.
// rowAlignment only applies to the software backend.
func New(backend config.Backend, rowAlignment int, logger *log.Logger) (Renderer, error) {
	if logger == nil {
		logger = log.Default()
	}
	switch backend {
	case config.BackendSoftware, "":
		return NewSoftwareRenderer(rowAlignment), nil
	case config.BackendWebGPU:
		return &WebGPURenderer{logger: logger}, nil
	case config.BackendOpenGL:
		return &OpenGLRenderer{logger: logger}, nil
	}
	return nil, fmt.Errorf("%w: unknown backend %q", ErrDeviceUnavailable, backend)
}
