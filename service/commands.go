package service

import (
	"fmt"
	"image/color"

	"github.com/gmlewis/scenerender/scene"
)

// Geometry of the rectangle drawn for a RenderCommand.
const (
	rectSize   = 230
	rectRadius = 20
)

// Showcase palette.
var (
	peach  = color.NRGBA{R: 250, G: 179, B: 135, A: 255}
	pink   = color.NRGBA{R: 243, G: 139, B: 168, A: 255}
	mauve  = color.NRGBA{R: 203, G: 166, B: 247, A: 255}
	sky    = color.NRGBA{R: 137, G: 180, B: 250, A: 255}
	green  = color.NRGBA{R: 123, G: 201, B: 111, A: 255}
	maroon = color.NRGBA{R: 213, G: 61, B: 79, A: 255}
)

// populate draws cmd into sc. accent colors the RenderCommand rectangle.
func populate(sc *scene.Scene, cmd Command, accent color.NRGBA) error {
	switch c := cmd.(type) {
	case RenderCommand:
		sc.Fill(scene.NonZero, scene.Translate(c.Position.X, c.Position.Y), accent,
			scene.NewRoundedRect(0, 0, rectSize, rectSize, rectRadius))
	case ShowcaseCommand:
		drawShowcase(sc)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
	return nil
}

func drawShowcase(sc *scene.Scene) {
	const strokeWidth = 6

	// Outlined rectangle
	sc.Stroke(strokeWidth, scene.Identity, peach, scene.NewRoundedRect(10, 10, 240, 240, 20))

	// Filled circle
	sc.Fill(scene.NonZero, scene.Identity, pink, scene.Circle{Center: scene.Pt(420, 200), Radius: 120})

	// Filled ellipse, rotated by -90 radians (not degrees)
	sc.Fill(scene.NonZero, scene.Identity, mauve, scene.Ellipse{
		Center:   scene.Pt(250, 420),
		Radii:    scene.Pt(100, 160),
		Rotation: -90,
	})

	// Straight line
	sc.Stroke(strokeWidth, scene.Identity, sky, scene.Line{P0: scene.Pt(260, 20), P1: scene.Pt(620, 100)})

	// Closed Bézier curve
	var bezier scene.Path
	bezier.MoveTo(200, 300)
	bezier.CubicTo(250, 350, 350, 250, 400, 300)
	bezier.ClosePath()
	sc.Stroke(strokeWidth, scene.Identity, green, bezier)

	// Mixed path
	var path scene.Path
	path.MoveTo(100, 100)
	path.LineTo(150, 150)
	path.QuadTo(200, 100, 250, 150)
	path.CubicTo(300, 200, 350, 150, 400, 200)
	path.ClosePath()
	sc.Stroke(strokeWidth, scene.Identity, maroon, path)
}
