package render

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gmlewis/scenerender/readback"
	"github.com/gmlewis/scenerender/scene"
)

// glPackAlignment is the GL_PACK_ALIGNMENT the renderer sets for ReadPixels.
// OpenGL accepts 1, 2, 4 or 8.
const glPackAlignment = 8

// OpenGLRenderer is a renderer implementation using an offscreen OpenGL
// framebuffer. All calls must happen on the OS thread that called Init.
type OpenGLRenderer struct {
	logger *log.Logger
	layout readback.Layout
	raster *rasterizer
	buf    []byte

	window  *glfw.Window
	texture uint32
	fbo     uint32
}

func (r *OpenGLRenderer) Init(width, height int) error {
	if r.window != nil {
		return nil
	}
	if r.logger == nil {
		r.logger = log.Default()
	}

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("%w: glfw.Init: %v", ErrDeviceUnavailable, err)
	}

	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.False)
	window, err := glfw.CreateWindow(width, height, "scenerender", nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("%w: CreateWindow(%v,%v): %v", ErrDeviceUnavailable, width, height, err)
	}
	r.window = window
	r.window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		r.Close()
		return fmt.Errorf("%w: gl.Init: %v", ErrDeviceUnavailable, err)
	}
	version := gl.GoStr(gl.GetString(gl.VERSION))

	r.layout, err = readback.NewLayout(width, height, glPackAlignment)
	if err != nil {
		r.Close()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	// Target texture attached to an offscreen framebuffer
	gl.GenTextures(1, &r.texture)
	gl.BindTexture(gl.TEXTURE_2D, r.texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)

	gl.GenFramebuffers(1, &r.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, r.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, r.texture, 0)
	if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		r.Close()
		return fmt.Errorf("%w: framebuffer incomplete: %#x", ErrDeviceUnavailable, status)
	}

	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, glPackAlignment)

	r.raster = newRasterizer(width, height)
	r.buf = make([]byte, r.layout.PaddedSize())
	r.logger.Info("opengl device ready", "version", version, "width", width, "height", height)
	return nil
}

func (r *OpenGLRenderer) RowAlignment() int {
	return glPackAlignment
}

func (r *OpenGLRenderer) Render(ctx context.Context, sc *scene.Scene, params Params) (*Frame, error) {
	if r.window == nil {
		return nil, fmt.Errorf("%w: renderer not initialized", ErrRenderFailure)
	}
	if e := gl.GetError(); e != gl.NO_ERROR {
		r.logger.Warn("stale GL error before render", "error", e)
	}

	pix, err := r.raster.draw(sc, params)
	if err != nil {
		return nil, err
	}

	w, h := int32(r.layout.Width), int32(r.layout.Height)
	gl.BindTexture(gl.TEXTURE_2D, r.texture)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, w, h, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(&pix[0]))
	if e := gl.GetError(); e != gl.NO_ERROR {
		return nil, fmt.Errorf("%w: TexSubImage2D: GL error %#x", ErrRenderFailure, e)
	}

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, r.fbo)
	gl.ReadPixels(0, 0, w, h, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(&r.buf[0]))
	if e := gl.GetError(); e != gl.NO_ERROR {
		return nil, fmt.Errorf("%w: ReadPixels: GL error %#x", ErrReadbackFailure, e)
	}

	// Maintenance
	glfw.PollEvents()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadbackFailure, err)
	}
	return &Frame{Layout: r.layout, Data: r.buf}, nil
}

func (r *OpenGLRenderer) Close() {
	if r.window == nil {
		return
	}
	if r.fbo != 0 {
		gl.DeleteFramebuffers(1, &r.fbo)
		r.fbo = 0
	}
	if r.texture != 0 {
		gl.DeleteTextures(1, &r.texture)
		r.texture = 0
	}
	r.window.Destroy()
	r.window = nil
	glfw.Terminate()
	r.raster = nil
}
