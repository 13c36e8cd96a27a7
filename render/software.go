package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/gmlewis/scenerender/readback"
	"github.com/gmlewis/scenerender/scene"
)

// DefaultRowAlignment is the WebGPU texture-to-buffer row alignment, used by
// the software backend unless configured otherwise.
const DefaultRowAlignment = 256

// SoftwareRenderer is a renderer that needs no graphics hardware. It keeps a
// host-side staging buffer laid out exactly like a GPU readback buffer, so
// callers go through the same padding correction on every backend.
type SoftwareRenderer struct {
	alignment int
	layout    readback.Layout
	raster    *rasterizer
	staging   []byte
}

// NewSoftwareRenderer returns a software renderer whose readback rows are
// aligned to alignment bytes (DefaultRowAlignment if alignment <= 0).
func NewSoftwareRenderer(alignment int) *SoftwareRenderer {
	if alignment <= 0 {
		alignment = DefaultRowAlignment
	}
	return &SoftwareRenderer{alignment: alignment}
}

func (r *SoftwareRenderer) Init(width, height int) error {
	layout, err := readback.NewLayout(width, height, r.alignment)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	r.layout = layout
	r.raster = newRasterizer(width, height)
	r.staging = make([]byte, layout.PaddedSize())
	return nil
}

func (r *SoftwareRenderer) RowAlignment() int {
	return r.alignment
}

func (r *SoftwareRenderer) Render(ctx context.Context, sc *scene.Scene, params Params) (*Frame, error) {
	if r.raster == nil {
		return nil, fmt.Errorf("%w: renderer not initialized", ErrRenderFailure)
	}
	pix, err := r.raster.draw(sc, params)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadbackFailure, err)
	}

	// Copy texture to staging buffer
	r.staging, err = readback.Pad(r.staging, pix, r.layout)
	if err != nil {
		return nil, errors.Join(ErrReadbackFailure, err)
	}
	return &Frame{Layout: r.layout, Data: r.staging}, nil
}

func (r *SoftwareRenderer) Close() {
	r.raster = nil
	r.staging = nil
}
