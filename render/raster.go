package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"

	"github.com/gmlewis/scenerender/config"
	"github.com/gmlewis/scenerender/scene"
)

// rasterizer draws scenes on the CPU. Every backend uses it to produce the
// pixels it uploads to its target texture.
type rasterizer struct {
	dc  *gg.Context
	out *image.NRGBA
}

func newRasterizer(width, height int) *rasterizer {
	return &rasterizer{
		dc:  gg.NewContext(width, height),
		out: image.NewNRGBA(image.Rect(0, 0, width, height)),
	}
}

// draw renders sc over the background and returns tightly packed,
// non-premultiplied RGBA pixels. The slice is reused by the next draw.
func (r *rasterizer) draw(sc *scene.Scene, p Params) ([]byte, error) {
	dc := r.dc
	dc.Identity()
	dc.ClearPath()
	dc.SetRasterizerMode(rasterizerMode(p.Antialiasing))
	dc.ClearWithColor(toRGBA(p.Background))

	for i, it := range sc.Items() {
		if err := r.drawItem(it); err != nil {
			dc.ClearPath()
			return nil, fmt.Errorf("%w: item %d: %v", ErrRenderFailure, i, err)
		}
	}

	img := dc.Image()
	xdraw.Copy(r.out, image.Point{}, img, img.Bounds(), xdraw.Src, nil)
	return r.out.Pix, nil
}

func (r *rasterizer) drawItem(it scene.Item) error {
	dc := r.dc
	dc.Push()
	defer dc.Pop()

	xf := it.Transform
	if xf == (mgl64.Mat3{}) {
		xf = scene.Identity
	}
	a, b, c, d, e, f := scene.Affine(xf)
	dc.SetTransform(gg.Matrix{A: a, B: b, C: c, D: d, E: e, F: f})

	switch s := it.Shape.(type) {
	case scene.Rect:
		dc.DrawRectangle(s.X0, s.Y0, s.Width(), s.Height())
	case scene.RoundedRect:
		dc.DrawRoundedRectangle(s.X0, s.Y0, s.Width(), s.Height(), s.Radius)
	case scene.Circle:
		dc.DrawCircle(s.Center.X, s.Center.Y, s.Radius)
	case scene.Ellipse:
		dc.Translate(s.Center.X, s.Center.Y)
		dc.Rotate(s.Rotation)
		dc.DrawEllipse(0, 0, s.Radii.X, s.Radii.Y)
	case scene.Line:
		dc.MoveTo(s.P0.X, s.P0.Y)
		dc.LineTo(s.P1.X, s.P1.Y)
	case scene.Path:
		appendPath(dc, s)
	default:
		return fmt.Errorf("unsupported shape %T", it.Shape)
	}

	c8 := it.Brush
	dc.SetRGBA(float64(c8.R)/255, float64(c8.G)/255, float64(c8.B)/255, float64(c8.A)/255)

	switch st := it.Style.(type) {
	case scene.Fill:
		rule := gg.FillRuleNonZero
		if st.Rule == scene.EvenOdd {
			rule = gg.FillRuleEvenOdd
		}
		dc.SetFillRule(rule)
		return dc.Fill()
	case scene.Stroke:
		dc.SetLineWidth(st.Width)
		return dc.Stroke()
	default:
		return fmt.Errorf("unsupported style %T", it.Style)
	}
}

func appendPath(dc *gg.Context, p scene.Path) {
	for _, el := range p {
		switch el.Verb {
		case scene.MoveTo:
			dc.MoveTo(el.Pts[0].X, el.Pts[0].Y)
		case scene.LineTo:
			dc.LineTo(el.Pts[0].X, el.Pts[0].Y)
		case scene.QuadTo:
			dc.QuadraticTo(el.Pts[0].X, el.Pts[0].Y, el.Pts[1].X, el.Pts[1].Y)
		case scene.CubicTo:
			dc.CubicTo(el.Pts[0].X, el.Pts[0].Y, el.Pts[1].X, el.Pts[1].Y, el.Pts[2].X, el.Pts[2].Y)
		case scene.Close:
			dc.ClosePath()
		}
	}
}

// rasterizerMode maps the configured anti-aliasing to gg's rasterizer
// selection. gg has no multisampling; the msaa modes let it pick its
// highest quality coverage filler.
func rasterizerMode(aa config.Antialiasing) gg.RasterizerMode {
	if aa == config.AntialiasArea || aa == "" {
		return gg.RasterizerAnalytic
	}
	return gg.RasterizerAuto
}

func toRGBA(c color.NRGBA) gg.RGBA {
	return gg.RGBA{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
		A: float64(c.A) / 255,
	}
}
