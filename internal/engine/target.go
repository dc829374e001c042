package engine

import (
	"fmt"
	"strconv"
)

// DrawTarget is the rendering surface the Renderer paints on. It mirrors the
// subset of the Canvas2D API the viewer needs. Paths are built with
// BeginPath/MoveTo/LineTo/Circle and painted with Fill or Stroke using the
// current colours, line width, dash pattern and global alpha.
//
// Implementations report failures out of band (see raster.Target.Err); the
// Renderer never inspects errors mid-frame.
type DrawTarget interface {
	Size() (width, height float64)
	Clear()

	BeginPath()
	MoveTo(x, y float64)
	LineTo(x, y float64)
	Circle(x, y, r float64)
	ClosePath()
	Fill()
	Stroke()

	SetFillColor(c Color)
	SetStrokeColor(c Color)
	SetLineWidth(w float64)
	SetDash(segments ...float64)
	SetGlobalAlpha(a float64)

	Save()
	Restore()
}

// Color is an sRGB colour with 8-bit channels and a float alpha in [0, 1].
type Color struct {
	R, G, B uint8
	A       float64
}

// RGB returns an opaque colour.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, A: 1}
}

// RGBA returns a colour with the given alpha.
func RGBA(r, g, b uint8, a float64) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// Hex parses "#rrggbb". It panics on malformed input and is meant for
// package-level palette constants.
func Hex(s string) Color {
	if len(s) != 7 || s[0] != '#' {
		panic(fmt.Sprintf("engine: bad hex colour %q", s))
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		panic(fmt.Sprintf("engine: bad hex colour %q: %v", s, err))
	}
	return RGB(uint8(v>>16), uint8(v>>8), uint8(v))
}

// CSS renders the colour in the form Canvas2D accepts for fillStyle/strokeStyle.
func (c Color) CSS() string {
	if c.A >= 1 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", c.R, c.G, c.B, strconv.FormatFloat(c.A, 'f', -1, 64))
}

// Float returns the channels scaled to [0, 1].
func (c Color) Float() (r, g, b, a float64) {
	return float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255, c.A
}
