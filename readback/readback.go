// Package readback converts row-padded texture copies into tightly packed
// pixel buffers.
//
// Graphics backends require every row of a texture-to-buffer copy to start at
// an offset that is a multiple of some alignment (256 bytes for WebGPU). The
// copied buffer therefore holds PaddedRowBytes per row, of which only
// UnpaddedRowBytes carry pixels.
package readback

import (
	"errors"
	"fmt"
)

// BytesPerPixel is the size of one RGBA8 pixel.
const BytesPerPixel = 4

var (
	// ErrBadLayout is returned for non-positive dimensions or alignment.
	ErrBadLayout = errors.New("readback: invalid layout")

	// ErrShortBuffer is returned when the source holds fewer bytes than the layout needs.
	ErrShortBuffer = errors.New("readback: buffer too short")
)

// Layout describes the sizes of a padded texture copy.
type Layout struct {
	Width            int
	Height           int
	Alignment        int
	UnpaddedRowBytes int
	PaddedRowBytes   int
}

// NewLayout returns the layout of a width×height RGBA8 texture whose rows
// are aligned to alignment bytes.
func NewLayout(width, height, alignment int) (Layout, error) {
	if width <= 0 || height <= 0 || alignment <= 0 {
		return Layout{}, fmt.Errorf("%w: %dx%d aligned to %d", ErrBadLayout, width, height, alignment)
	}
	unpadded := width * BytesPerPixel
	return Layout{
		Width:            width,
		Height:           height,
		Alignment:        alignment,
		UnpaddedRowBytes: unpadded,
		PaddedRowBytes:   RoundUp(unpadded, alignment),
	}, nil
}

// RoundUp returns the smallest multiple of align that is >= n.
func RoundUp(n, align int) int {
	return (n + align - 1) / align * align
}

// PaddedSize returns the total size of the padded copy.
func (l Layout) PaddedSize() int {
	return l.PaddedRowBytes * l.Height
}

// UnpaddedSize returns the size of the tightly packed output.
func (l Layout) UnpaddedSize() int {
	return l.UnpaddedRowBytes * l.Height
}

// HasNoPadding reports whether padded and unpadded rows are the same size.
func (l Layout) HasNoPadding() bool {
	return l.UnpaddedRowBytes == l.PaddedRowBytes
}

// Unpad copies the pixel bytes of every row of the padded buffer src into a
// new tightly packed buffer of exactly Width*Height*4 bytes.
func Unpad(src []byte, l Layout) ([]byte, error) {
	if l.Width <= 0 || l.Height <= 0 || l.PaddedRowBytes < l.UnpaddedRowBytes {
		return nil, ErrBadLayout
	}
	// The last row does not need its padding present.
	need := l.PaddedRowBytes*(l.Height-1) + l.UnpaddedRowBytes
	if len(src) < need {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(src), need)
	}
	dst := make([]byte, l.UnpaddedSize())
	if l.HasNoPadding() {
		copy(dst, src)
		return dst, nil
	}
	for y := 0; y < l.Height; y++ {
		srcStart := y * l.PaddedRowBytes
		dstStart := y * l.UnpaddedRowBytes
		copy(dst[dstStart:dstStart+l.UnpaddedRowBytes], src[srcStart:srcStart+l.UnpaddedRowBytes])
	}
	return dst, nil
}

// Pad lays the tightly packed pixels of src out with padded rows, writing
// into dst when it is large enough and allocating otherwise. Padding bytes
// are zeroed.
func Pad(dst, src []byte, l Layout) ([]byte, error) {
	if l.Width <= 0 || l.Height <= 0 || l.PaddedRowBytes < l.UnpaddedRowBytes {
		return nil, ErrBadLayout
	}
	if len(src) < l.UnpaddedSize() {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(src), l.UnpaddedSize())
	}
	if cap(dst) < l.PaddedSize() {
		dst = make([]byte, l.PaddedSize())
	}
	dst = dst[:l.PaddedSize()]
	for y := 0; y < l.Height; y++ {
		row := dst[y*l.PaddedRowBytes : (y+1)*l.PaddedRowBytes]
		n := copy(row, src[y*l.UnpaddedRowBytes:(y+1)*l.UnpaddedRowBytes])
		clear(row[n:])
	}
	return dst, nil
}
