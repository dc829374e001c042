package engine

import (
	"math"

	"github.com/rayscope/rayscope/backend-go/internal/scene"
)

const (
	DefaultMinScale = 1.0
	DefaultMaxScale = 20.0

	// Used when the configured bounds are unusable (non-positive, inverted
	// or non-finite).
	LooseMinScale = 0.1
	LooseMaxScale = 100.0
)

// Viewport maps world coordinates onto a canvas. World origin projects to
// (offsetX, offsetY); one world unit spans scale*width/(2*domainSize) pixels
// horizontally and scale*height/(2*domainSize) pixels vertically, with the Y
// axis flipped so world "up" is screen "up".
//
// A Viewport is owned by a single goroutine; it is not safe for concurrent use.
type Viewport struct {
	scale      float64
	offsetX    float64
	offsetY    float64
	domainSize float64
	width      float64
	height     float64

	minScale float64
	maxScale float64
}

// NewViewport creates a viewport whose scale is clamped to [minScale, maxScale].
// Invalid bounds fall back to [LooseMinScale, LooseMaxScale].
func NewViewport(minScale, maxScale float64) *Viewport {
	if !validBounds(minScale, maxScale) {
		minScale, maxScale = LooseMinScale, LooseMaxScale
	}
	return &Viewport{
		scale:      clamp(1, minScale, maxScale),
		domainSize: scene.DefaultDomainSize,
		width:      1,
		height:     1,
		minScale:   minScale,
		maxScale:   maxScale,
	}
}

func validBounds(lo, hi float64) bool {
	return lo > 0 && hi >= lo && !math.IsInf(hi, 0) && !math.IsNaN(lo) && !math.IsNaN(hi)
}

// SetDomainSize sets the world half-extent. Zero, negative or non-finite
// sizes are replaced with scene.DefaultDomainSize.
func (v *Viewport) SetDomainSize(size float64) {
	if !(size > 0) || math.IsInf(size, 0) {
		size = scene.DefaultDomainSize
	}
	v.domainSize = size
}

// Resize records the render target's pixel dimensions. Dimensions below one
// pixel are raised to one so the map stays invertible.
func (v *Viewport) Resize(width, height float64) {
	v.width = atLeastOne(width)
	v.height = atLeastOne(height)
}

// Recenter resizes the viewport and places world origin at the canvas centre.
func (v *Viewport) Recenter(width, height float64) {
	v.Resize(width, height)
	v.offsetX = v.width / 2
	v.offsetY = v.height / 2
}

// WorldToScreen projects a world point onto the canvas.
func (v *Viewport) WorldToScreen(x, y float64) (float64, float64) {
	ax, ay := v.pixelsPerUnit()
	return v.offsetX + x*ax, v.offsetY - y*ay
}

// ScreenToWorld is the exact inverse of WorldToScreen under the current state.
func (v *Viewport) ScreenToWorld(sx, sy float64) (float64, float64) {
	ax, ay := v.pixelsPerUnit()
	return (sx - v.offsetX) / ax, (v.offsetY - sy) / ay
}

// LengthToScreen converts a world distance to pixels along the X axis; radii
// of particles and the mean circle are scaled this way.
func (v *Viewport) LengthToScreen(d float64) float64 {
	ax, _ := v.pixelsPerUnit()
	return d * ax
}

// ZoomAt changes the scale while keeping the world point under (sx, sy)
// fixed on screen. The requested scale is clamped to the viewport bounds and
// the scale actually applied is returned; callers must sync any zoom display
// with it. A NaN request or a non-finite anchor leaves the viewport untouched.
func (v *Viewport) ZoomAt(sx, sy, requested float64) float64 {
	if math.IsNaN(requested) || !isFinite(sx) || !isFinite(sy) {
		return v.scale
	}
	clamped := clamp(requested, v.minScale, v.maxScale)

	wx, wy := v.ScreenToWorld(sx, sy)

	v.scale = clamped
	ax, ay := v.pixelsPerUnit()
	v.offsetX = sx - wx*ax
	v.offsetY = sy + wy*ay

	return v.scale
}

// Pan moves the view by a screen-space delta. Panning is unbounded;
// non-finite deltas are ignored.
func (v *Viewport) Pan(dx, dy float64) {
	if !isFinite(dx) || !isFinite(dy) {
		return
	}
	v.offsetX += dx
	v.offsetY += dy
}

// Transform returns the world→screen map as an affine matrix.
func (v *Viewport) Transform() Matrix2D {
	ax, ay := v.pixelsPerUnit()
	return Translate(v.offsetX, v.offsetY).Multiply(Scale(ax, -ay))
}

// VisibleWorld returns the world rectangle currently covered by the canvas.
func (v *Viewport) VisibleWorld() Rect {
	return v.Transform().Invert().TransformRect(Rect{Width: v.width, Height: v.height})
}

// GridSpacing returns the distance in pixels between background grid lines.
func (v *Viewport) GridSpacing() float64 {
	return v.width * v.scale / (4 * v.domainSize)
}

func (v *Viewport) Scale() float64             { return v.scale }
func (v *Viewport) Offset() (float64, float64) { return v.offsetX, v.offsetY }
func (v *Viewport) DomainSize() float64        { return v.domainSize }
func (v *Viewport) Size() (float64, float64)   { return v.width, v.height }
func (v *Viewport) Bounds() (float64, float64) { return v.minScale, v.maxScale }

func (v *Viewport) pixelsPerUnit() (float64, float64) {
	k := v.scale / (2 * v.domainSize)
	return k * v.width, k * v.height
}

// ViewportState is the serialisable snapshot of a viewport sent to clients.
type ViewportState struct {
	Scale        float64   `json:"scale"`
	OffsetX      float64   `json:"offsetX"`
	OffsetY      float64   `json:"offsetY"`
	DomainSize   float64   `json:"domainSize"`
	Width        float64   `json:"width"`
	Height       float64   `json:"height"`
	MinScale     float64   `json:"minScale"`
	MaxScale     float64   `json:"maxScale"`
	Transform    []float64 `json:"transform"`
	VisibleWorld Rect      `json:"visibleWorld"`
}

// State snapshots the viewport.
func (v *Viewport) State() ViewportState {
	return ViewportState{
		Scale:        v.scale,
		OffsetX:      v.offsetX,
		OffsetY:      v.offsetY,
		DomainSize:   v.domainSize,
		Width:        v.width,
		Height:       v.height,
		MinScale:     v.minScale,
		MaxScale:     v.maxScale,
		Transform:    v.Transform().ToSlice(),
		VisibleWorld: v.VisibleWorld(),
	}
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func atLeastOne(x float64) float64 {
	if !(x >= 1) || math.IsInf(x, 0) {
		return 1
	}
	return x
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
