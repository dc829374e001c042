// Package raster paints engine frames into images using gogpu/gg.
package raster

import (
	"fmt"
	"image"
	"image/draw"
	"io"
	"log/slog"
	"math"

	"github.com/gogpu/gg"

	"github.com/rayscope/rayscope/backend-go/internal/engine"
)

// Background is the colour Clear paints. Browser canvases clear to
// transparent over a white page; offscreen images get the white directly.
var Background = gg.RGB(1, 1, 1)

// UseLogger routes gg's diagnostics to l.
func UseLogger(l *slog.Logger) {
	gg.SetLogger(l)
}

type paint struct {
	fill      engine.Color
	stroke    engine.Color
	lineWidth float64
	dash      []float64
	alpha     float64
}

// Target is an engine.DrawTarget backed by a gg software context.
//
// Fill and Stroke keep the current path, as a Canvas2D context does, so a
// shape can be filled and then outlined. The first paint error is kept and
// reported by Err; later calls still run.
type Target struct {
	dc    *gg.Context
	state paint
	stack []paint
	err   error
}

var _ engine.DrawTarget = (*Target)(nil)

// NewTarget creates a target of the given pixel size. Sizes below one pixel
// are raised to one.
func NewTarget(width, height int) *Target {
	width, height = max(width, 1), max(height, 1)
	t := &Target{dc: gg.NewContext(width, height)}
	t.reset()
	return t
}

func (t *Target) reset() {
	t.state = paint{
		fill:      engine.RGB(0, 0, 0),
		stroke:    engine.RGB(0, 0, 0),
		lineWidth: 1,
		alpha:     1,
	}
	t.stack = t.stack[:0]
	t.dc.SetStroke(gg.DefaultStroke())
	t.dc.ClearPath()
}

// Err returns the first error reported by the rasteriser.
func (t *Target) Err() error {
	return t.err
}

// Image returns a copy of the current pixels.
func (t *Target) Image() image.Image {
	return t.dc.Image()
}

// RGBA returns a copy of the current pixels as an *image.RGBA.
func (t *Target) RGBA() *image.RGBA {
	img := t.dc.Image()
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}

// EncodePNG writes the current pixels as PNG.
func (t *Target) EncodePNG(w io.Writer) error {
	if t.err != nil {
		return fmt.Errorf("encode png: %w", t.err)
	}
	if err := t.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Close releases the gg context.
func (t *Target) Close() error {
	return t.dc.Close()
}

func (t *Target) Size() (float64, float64) {
	return float64(t.dc.Width()), float64(t.dc.Height())
}

// Clear paints the background and resets path and paint state.
func (t *Target) Clear() {
	t.dc.ClearWithColor(Background)
	t.reset()
}

func (t *Target) BeginPath()                  { t.dc.ClearPath() }
func (t *Target) MoveTo(x, y float64)         { t.dc.MoveTo(x, y) }
func (t *Target) LineTo(x, y float64)         { t.dc.LineTo(x, y) }
func (t *Target) Circle(x, y, radius float64) { t.dc.DrawCircle(x, y, radius) }
func (t *Target) ClosePath()                  { t.dc.ClosePath() }

func (t *Target) Fill() {
	t.setColor(t.state.fill)
	t.keep(t.dc.FillPreserve())
}

// Stroke sets the whole gg stroke style from the target's paint state, so
// width and dash never carry over from an earlier stroke.
func (t *Target) Stroke() {
	t.setColor(t.state.stroke)
	st := gg.DefaultStroke().WithWidth(t.state.lineWidth)
	if len(t.state.dash) > 0 {
		st.Dash = gg.NewDash(t.state.dash...)
	}
	t.dc.SetStroke(st)
	t.keep(t.dc.StrokePreserve())
}

func (t *Target) SetFillColor(c engine.Color)   { t.state.fill = c }
func (t *Target) SetStrokeColor(c engine.Color) { t.state.stroke = c }

func (t *Target) SetLineWidth(w float64) {
	if w > 0 && !math.IsInf(w, 0) {
		t.state.lineWidth = w
	}
}

func (t *Target) SetDash(segments ...float64) {
	t.state.dash = append([]float64(nil), segments...)
}

func (t *Target) SetGlobalAlpha(a float64) {
	if math.IsNaN(a) {
		return
	}
	t.state.alpha = math.Max(0, math.Min(1, a))
}

func (t *Target) Save() {
	t.stack = append(t.stack, t.state)
	t.dc.Push()
}

func (t *Target) Restore() {
	if len(t.stack) == 0 {
		return
	}
	t.state = t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	t.dc.Pop()
}

func (t *Target) setColor(c engine.Color) {
	r, g, b, a := c.Float()
	t.dc.SetRGBA(r, g, b, a*t.state.alpha)
}

func (t *Target) keep(err error) {
	if err != nil && t.err == nil {
		t.err = err
	}
}
