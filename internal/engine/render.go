package engine

import (
	"math"

	"github.com/rayscope/rayscope/backend-go/internal/scene"
)

// Palette and fixed pixel sizes of the layers.
var (
	gridColor   = Hex("#f0f0f0")
	axisColor   = Hex("#dddddd")
	outlineCol  = RGBA(0, 0, 0, 0.3)
	centerDot   = RGBA(0, 0, 0, 0.5)
	rayColor    = RGB(0, 123, 255)
	meanColor   = Hex("#28a745")
	projColor   = Hex("#007bff")
	endColor    = Hex("#dc3545")
	curveColor  = Hex("#ff6b35")
	focusColor  = Hex("#ff2d55")
	meanDash    = []float64{5, 5}
	minGridStep = 2.0
)

const (
	particleAlpha    = 0.6
	minParticlePx    = 1.0
	centerDotPx      = 1.0
	projectionDotPx  = 2.0
	endpointDotPx    = 3.0
	curveAlpha       = 0.7
	focusDotPx       = 5.0
	focusCrossPx     = 10.0
	rayLineWidth     = 0.7
	curveLineWidth   = 1.5
	outlineLineWidth = 0.5
)

// Render clears target and repaints every enabled layer of ds as seen
// through vp, in a fixed order: grid and axes, medium, rays, mean circle,
// projections, endpoints, connection curve, focus marker. A nil dataset
// leaves the target untouched.
//
// vp is only read. Its canvas size should match target.Size(); the engine
// keeps them in sync.
func Render(target DrawTarget, vp *Viewport, ds *scene.Dataset, opts RenderOptions) {
	if ds == nil {
		return
	}

	target.Clear()
	drawGrid(target, vp)

	if opts.Medium {
		drawMedium(target, vp, ds)
	}
	if opts.Rays {
		drawRays(target, vp, ds.Rays, normalizeOpacity(opts.RayOpacity))
	}
	if opts.MeanCircle {
		drawMeanCircle(target, vp, ds.MeanRadius)
	}
	if opts.Projections {
		drawDots(target, vp, ds.Projections, projColor, projectionDotPx)
	}
	if opts.Endpoints {
		drawDots(target, vp, ds.Endpoints, endColor, endpointDotPx)
	}
	if opts.ConnectionCurve {
		drawConnectionCurve(target, vp, ds.Endpoints)
	}

	drawFocusMarker(target, vp)
}

func drawGrid(t DrawTarget, vp *Viewport) {
	w, h := t.Size()

	t.Save()
	t.SetStrokeColor(gridColor)
	t.SetLineWidth(1)

	// Very small spacings would draw thousands of lines that blend into a
	// flat fill; skip them.
	step := vp.GridSpacing()
	if step >= minGridStep && !math.IsInf(step, 0) {
		for x := 0.0; x < w; x += step {
			t.BeginPath()
			t.MoveTo(x, 0)
			t.LineTo(x, h)
			t.Stroke()
		}
		for y := 0.0; y < h; y += step {
			t.BeginPath()
			t.MoveTo(0, y)
			t.LineTo(w, y)
			t.Stroke()
		}
	}

	cx, cy := vp.WorldToScreen(0, 0)
	t.SetStrokeColor(axisColor)
	t.SetLineWidth(2)

	t.BeginPath()
	t.MoveTo(0, cy)
	t.LineTo(w, cy)
	t.Stroke()

	t.BeginPath()
	t.MoveTo(cx, 0)
	t.LineTo(cx, h)
	t.Stroke()

	t.Restore()
}

// particleColor maps a refractive index onto the blue channel. A zero-width
// index range gets the midpoint colour.
func particleColor(n, minN, maxN float64) Color {
	norm := 0.5
	if span := maxN - minN; span > 0 {
		norm = clamp((n-minN)/span, 0, 1)
	}
	blue := uint8(math.Floor(255 * (0.3 + 0.7*norm)))
	return RGBA(0, 0, blue, particleAlpha)
}

func drawMedium(t DrawTarget, vp *Viewport, ds *scene.Dataset) {
	if len(ds.Medium) == 0 {
		return
	}
	minN, maxN := ds.Parameters.MinN, ds.Parameters.MaxN

	t.Save()
	t.SetStrokeColor(outlineCol)
	t.SetLineWidth(outlineLineWidth)
	for _, p := range ds.Medium {
		x, y := vp.WorldToScreen(p.X, p.Y)
		r := math.Max(minParticlePx, vp.LengthToScreen(p.Radius))

		t.SetFillColor(particleColor(p.N, minN, maxN))
		t.BeginPath()
		t.Circle(x, y, r)
		t.Fill()
		t.Stroke()

		t.SetFillColor(centerDot)
		t.BeginPath()
		t.Circle(x, y, centerDotPx)
		t.Fill()
	}
	t.Restore()
}

func drawRays(t DrawTarget, vp *Viewport, rays []scene.Ray, opacity float64) {
	if len(rays) == 0 {
		return
	}

	t.Save()
	t.SetStrokeColor(RGBA(rayColor.R, rayColor.G, rayColor.B, opacity))
	t.SetLineWidth(rayLineWidth)
	for _, ray := range rays {
		if len(ray) < 2 {
			continue
		}
		t.BeginPath()
		x, y := vp.WorldToScreen(ray[0].X, ray[0].Y)
		t.MoveTo(x, y)
		for _, pt := range ray[1:] {
			x, y = vp.WorldToScreen(pt.X, pt.Y)
			t.LineTo(x, y)
		}
		t.Stroke()
	}
	t.Restore()
}

func drawMeanCircle(t DrawTarget, vp *Viewport, meanRadius float64) {
	if meanRadius <= 0 {
		return
	}
	cx, cy := vp.WorldToScreen(0, 0)

	t.Save()
	t.SetStrokeColor(meanColor)
	t.SetLineWidth(2)
	t.SetDash(meanDash...)
	t.BeginPath()
	t.Circle(cx, cy, vp.LengthToScreen(meanRadius))
	t.Stroke()
	t.SetDash()
	t.Restore()
}

func drawDots(t DrawTarget, vp *Viewport, pts []scene.Point, c Color, radius float64) {
	if len(pts) == 0 {
		return
	}

	t.Save()
	t.SetFillColor(c)
	for _, pt := range pts {
		x, y := vp.WorldToScreen(pt.X, pt.Y)
		t.BeginPath()
		t.Circle(x, y, radius)
		t.Fill()
	}
	t.Restore()
}

// drawConnectionCurve joins the endpoints in launch order and closes the
// loop back to the first one.
func drawConnectionCurve(t DrawTarget, vp *Viewport, endpoints []scene.Point) {
	if len(endpoints) == 0 {
		return
	}

	t.Save()
	t.SetStrokeColor(curveColor)
	t.SetLineWidth(curveLineWidth)
	t.SetGlobalAlpha(curveAlpha)

	t.BeginPath()
	fx, fy := vp.WorldToScreen(endpoints[0].X, endpoints[0].Y)
	t.MoveTo(fx, fy)
	for _, ep := range endpoints[1:] {
		x, y := vp.WorldToScreen(ep.X, ep.Y)
		t.LineTo(x, y)
	}
	t.LineTo(fx, fy)
	t.Stroke()

	t.Restore()
}

// drawFocusMarker marks world origin with a dot and crosshair whose pixel
// size does not depend on the zoom level.
func drawFocusMarker(t DrawTarget, vp *Viewport) {
	cx, cy := vp.WorldToScreen(0, 0)

	t.Save()
	t.SetFillColor(focusColor)
	t.SetStrokeColor(focusColor)
	t.SetLineWidth(1)

	t.BeginPath()
	t.Circle(cx, cy, focusDotPx)
	t.Fill()

	t.BeginPath()
	t.MoveTo(cx-focusCrossPx, cy)
	t.LineTo(cx+focusCrossPx, cy)
	t.MoveTo(cx, cy-focusCrossPx)
	t.LineTo(cx, cy+focusCrossPx)
	t.Stroke()

	t.Restore()
}
