// Package sink renders frames and writes them to image files.
package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gogpu/gg"

	"github.com/gmlewis/scenerender/readback"
	"github.com/gmlewis/scenerender/scene"
)

// ErrFormat is returned for an unsupported output format.
var ErrFormat = errors.New("unsupported frame format")

// Format selects the file encoding of a frame.
type Format string

const (
	// PNG writes an 8-bit RGBA PNG.
	PNG Format = "png"
	// Raw writes the tightly packed RGBA bytes exactly as rendered.
	Raw Format = "rgba"
)

// ParseFormat returns the Format named by s.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case PNG, Raw:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrFormat, s)
}

// Source renders the rounded-rectangle scene positioned at (x, y).
// service.Client and the package-level service.RenderScene satisfy it.
type Source interface {
	RenderScene(ctx context.Context, key string, x, y float64) ([]byte, error)
}

// Options describe the frames to write.
type Options struct {
	Key    string
	Width  int
	Height int
	Format Format
	Logger *log.Logger
}

// Frames renders one frame per position and writes each to
// "<baseFilename>-<key>-NNN.<format>". It returns the written filenames.
func Frames(ctx context.Context, baseFilename string, src Source, positions []scene.Point, opts Options) ([]string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.Format == "" {
		opts.Format = PNG
	}
	if _, err := ParseFormat(string(opts.Format)); err != nil {
		return nil, err
	}
	key := strings.ReplaceAll(opts.Key, " ", "-")

	var names []string
	for i, p := range positions {
		data, err := src.RenderScene(ctx, opts.Key, p.X, p.Y)
		if err != nil {
			return names, fmt.Errorf("RenderScene(%v, %v): %w", p.X, p.Y, err)
		}

		filename := fmt.Sprintf("%v-%v-%03d.%v", baseFilename, key, i, opts.Format)
		logger.Info("Writing", "file", filename, "x", p.X, "y", p.Y)
		if err := Write(filename, data, opts.Width, opts.Height, opts.Format); err != nil {
			return names, err
		}
		names = append(names, filename)
	}
	return names, nil
}

// Write stores one frame of tightly packed RGBA pixels in filename.
func Write(filename string, data []byte, width, height int, format Format) error {
	img, err := Image(data, width, height)
	if err != nil {
		return err
	}

	f, err := os.Create(filepath.Clean(filename))
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	w := bufio.NewWriter(f)

	switch format {
	case PNG:
		err = gg.ImageBufFromImage(img).EncodePNG(w)
	case Raw:
		_, err = w.Write(img.Pix)
	default:
		err = fmt.Errorf("%w: %q", ErrFormat, format)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %v: %w", filename, err)
	}
	return nil
}

// Image wraps tightly packed RGBA pixels without copying them.
func Image(data []byte, width, height int) (*image.NRGBA, error) {
	l, err := readback.NewLayout(width, height, readback.BytesPerPixel)
	if err != nil {
		return nil, err
	}
	if len(data) != l.UnpaddedSize() {
		return nil, fmt.Errorf("%w: frame has %d bytes, want %d", readback.ErrShortBuffer, len(data), l.UnpaddedSize())
	}
	return &image.NRGBA{
		Pix:    data,
		Stride: l.UnpaddedRowBytes,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}
