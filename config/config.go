// Package config holds the render service configuration.
//
// Configuration is read from a TOML file. Every field has a default so an
// empty or missing file yields a working software-rendered service:
//
//	width = 800
//	height = 600
//	background = "#000000"
//	accent = "#fab387"
//	antialiasing = "area"
//	backend = "software"
//	row_alignment = 256
//	queue_depth = 16
//	request_timeout = "30s"
//	default_key = "default"
package config

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gogpu/gg"
)

// ErrInvalid is returned by Validate for unusable settings.
var ErrInvalid = errors.New("invalid config")

// Antialiasing selects the anti-aliasing method used by the rasterizer.
type Antialiasing string

const (
	AntialiasArea   Antialiasing = "area"
	AntialiasMSAA8  Antialiasing = "msaa8"
	AntialiasMSAA16 Antialiasing = "msaa16"
)

// Backend names a graphics backend.
type Backend string

const (
	BackendSoftware Backend = "software"
	BackendWebGPU   Backend = "webgpu"
	BackendOpenGL   Backend = "opengl"
)

// Duration is a time.Duration that decodes from strings like "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config describes one render service.
type Config struct {
	// Width and Height are the output dimensions in pixels.
	Width  int `toml:"width"`
	Height int `toml:"height"`

	// Background is the clear color as a hex string ("#RRGGBB" or "#RRGGBBAA").
	Background string `toml:"background"`
	// Accent is the color of the rounded rectangle drawn for render commands.
	Accent string `toml:"accent"`

	Antialiasing Antialiasing `toml:"antialiasing"`
	Backend      Backend      `toml:"backend"`

	// RowAlignment is the row alignment of the software backend's readback
	// buffer. Hardware backends report their own.
	RowAlignment int `toml:"row_alignment"`

	// QueueDepth is the capacity of each worker's inbound request channel.
	QueueDepth int `toml:"queue_depth"`

	// RequestTimeout bounds a caller's wait when its context has no deadline.
	RequestTimeout Duration `toml:"request_timeout"`

	// DefaultKey is the service key whose worker is started by Init.
	DefaultKey string `toml:"default_key"`

	// MaxWorkers caps the number of keys, and so devices, a registry will
	// start. Zero means no limit.
	MaxWorkers int `toml:"max_workers"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Width:          800,
		Height:         600,
		Background:     "#000000",
		Accent:         "#fab387",
		Antialiasing:   AntialiasArea,
		Backend:        BackendSoftware,
		RowAlignment:   256,
		QueueDepth:     16,
		RequestTimeout: Duration{30 * time.Second},
		DefaultKey:     "default",
		MaxWorkers:     8,
	}
}

// Load reads a TOML file on top of the defaults.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML data on top of the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalid, c.Width, c.Height)
	case c.RowAlignment <= 0 || c.RowAlignment%4 != 0:
		return fmt.Errorf("%w: row_alignment %d must be a positive multiple of 4", ErrInvalid, c.RowAlignment)
	case c.MaxWorkers < 0:
		return fmt.Errorf("%w: max_workers %d", ErrInvalid, c.MaxWorkers)
	case c.QueueDepth < 0:
		return fmt.Errorf("%w: queue_depth %d", ErrInvalid, c.QueueDepth)
	case c.RequestTimeout.Duration < 0:
		return fmt.Errorf("%w: request_timeout %v", ErrInvalid, c.RequestTimeout)
	case c.DefaultKey == "":
		return fmt.Errorf("%w: default_key is empty", ErrInvalid)
	}
	switch c.Antialiasing {
	case AntialiasArea, AntialiasMSAA8, AntialiasMSAA16:
	default:
		return fmt.Errorf("%w: antialiasing %q", ErrInvalid, c.Antialiasing)
	}
	switch c.Backend {
	case BackendSoftware, BackendWebGPU, BackendOpenGL:
	default:
		return fmt.Errorf("%w: backend %q", ErrInvalid, c.Backend)
	}
	for name, hex := range map[string]string{"background": c.Background, "accent": c.Accent} {
		if !validHex(hex) {
			return fmt.Errorf("%w: %s color %q", ErrInvalid, name, hex)
		}
	}
	return nil
}

// BackgroundColor returns the parsed background color.
func (c Config) BackgroundColor() color.NRGBA {
	return parseColor(c.Background)
}

// AccentColor returns the parsed accent color.
func (c Config) AccentColor() color.NRGBA {
	return parseColor(c.Accent)
}

func parseColor(hex string) color.NRGBA {
	c := gg.Hex(hex)
	return color.NRGBA{R: to8(c.R), G: to8(c.G), B: to8(c.B), A: to8(c.A)}
}

// to8 rounds instead of truncating so hex channels survive the float trip.
func to8(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

func validHex(s string) bool {
	s = strings.TrimPrefix(s, "#")
	switch len(s) {
	case 3, 4, 6, 8:
	default:
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
