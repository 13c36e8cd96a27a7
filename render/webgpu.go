package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gmlewis/scenerender/readback"
	"github.com/gmlewis/scenerender/scene"
)

// WebGPURenderer is a renderer implementation using WebGPU.
type WebGPURenderer struct {
	logger *log.Logger
	layout readback.Layout
	raster *rasterizer

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	targetTexture *wgpu.Texture
	readBuffer    *wgpu.Buffer
}

func (r *WebGPURenderer) Init(width, height int) (err error) {
	if r.device != nil {
		return nil
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	// Release whatever was acquired before a failure.
	defer func() {
		if err != nil {
			r.Close()
		}
	}()

	r.instance = wgpu.CreateInstance(nil)
	if r.instance == nil {
		return fmt.Errorf("%w: failed to create wgpu instance", ErrDeviceUnavailable)
	}

	r.adapter, err = r.instance.RequestAdapter(&wgpu.RequestAdapterOptions{})
	if err != nil {
		return fmt.Errorf("%w: request adapter: %v", ErrDeviceUnavailable, err)
	}

	r.device, err = r.adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("%w: request device: %v", ErrDeviceUnavailable, err)
	}
	r.queue = r.device.GetQueue()

	r.layout, err = readback.NewLayout(width, height, r.RowAlignment())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	// Target texture and readback buffer are sized once; every request reuses them.
	r.targetTexture, err = r.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Target texture",
		Size:          r.extent(),
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageCopyDst | wgpu.TextureUsageCopySrc | wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("%w: create target texture: %v", ErrDeviceUnavailable, err)
	}

	r.readBuffer, err = r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Readback buffer",
		Size:  uint64(r.layout.PaddedSize()),
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("%w: create readback buffer: %v", ErrDeviceUnavailable, err)
	}

	r.raster = newRasterizer(width, height)
	r.logger.Info("webgpu device ready", "width", width, "height", height, "bytesPerRow", r.layout.PaddedRowBytes)
	return nil
}

// RowAlignment returns the WebGPU copy alignment for bytesPerRow.
func (r *WebGPURenderer) RowAlignment() int {
	return int(wgpu.CopyBytesPerRowAlignment)
}

func (r *WebGPURenderer) extent() wgpu.Extent3D {
	return wgpu.Extent3D{
		Width:              uint32(r.layout.Width),
		Height:             uint32(r.layout.Height),
		DepthOrArrayLayers: 1,
	}
}

func (r *WebGPURenderer) Render(ctx context.Context, sc *scene.Scene, params Params) (*Frame, error) {
	if r.device == nil {
		return nil, fmt.Errorf("%w: renderer not initialized", ErrRenderFailure)
	}
	pix, err := r.raster.draw(sc, params)
	if err != nil {
		return nil, err
	}

	size := r.extent()
	r.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Aspect:   wgpu.TextureAspectAll,
			Texture:  r.targetTexture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: 0, Y: 0, Z: 0},
		},
		pix,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(r.layout.UnpaddedRowBytes),
			RowsPerImage: uint32(r.layout.Height),
		},
		&size,
	)

	encoder, err := r.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailure, err)
	}
	defer encoder.Release()

	// Copy texture to read buffer
	encoder.CopyTextureToBuffer(
		r.targetTexture.AsImageCopy(),
		&wgpu.ImageCopyBuffer{
			Buffer: r.readBuffer,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(r.layout.PaddedRowBytes),
				RowsPerImage: uint32(r.layout.Height),
			},
		},
		&size,
	)

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailure, err)
	}
	r.queue.Submit(commandBuffer)
	commandBuffer.Release()

	data, err := r.mapRead(ctx)
	if err != nil {
		return nil, err
	}
	return &Frame{Layout: r.layout, Data: data}, nil
}

// mapRead maps the readback buffer and copies it out. Poll blocks until the
// queue drains, so waiting for the map callback does not spin.
func (r *WebGPURenderer) mapRead(ctx context.Context) ([]byte, error) {
	size := uint64(r.layout.PaddedSize())
	done := make(chan wgpu.BufferMapAsyncStatus, 1)
	err := r.readBuffer.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		done <- status
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadbackFailure, err)
	}

	var status wgpu.BufferMapAsyncStatus
	for mapped := false; !mapped; {
		r.device.Poll(true, nil)
		select {
		case status = <-done:
			mapped = true
		default:
		}
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("%w: map status %v", ErrReadbackFailure, status)
	}
	defer r.readBuffer.Unmap()

	// The buffer is mapped either way; report a caller that gave up meanwhile.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadbackFailure, err)
	}
	return bytes.Clone(r.readBuffer.GetMappedRange(0, uint(size))), nil
}

func (r *WebGPURenderer) Close() {
	if r.readBuffer != nil {
		r.readBuffer.Release()
		r.readBuffer = nil
	}
	if r.targetTexture != nil {
		r.targetTexture.Release()
		r.targetTexture = nil
	}
	r.queue = nil
	if r.device != nil {
		r.device.Release()
		r.device = nil
	}
	if r.adapter != nil {
		r.adapter.Release()
		r.adapter = nil
	}
	if r.instance != nil {
		r.instance.Release()
		r.instance = nil
	}
	r.raster = nil
}
