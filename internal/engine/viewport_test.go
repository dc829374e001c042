package engine

import (
	"math"
	"math/rand/v2"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) <= eps*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func newTestViewport() *Viewport {
	vp := NewViewport(DefaultMinScale, DefaultMaxScale)
	vp.SetDomainSize(10)
	vp.Recenter(800, 600)
	return vp
}

func TestWorldToScreen(t *testing.T) {
	vp := newTestViewport()

	tests := []struct {
		x, y   float64
		sx, sy float64
	}{
		{0, 0, 400, 300},
		{10, 0, 800, 300},
		{-10, 0, 0, 300},
		{0, 10, 400, 0},
		{0, -10, 400, 600},
		{5, 5, 600, 150},
	}
	for _, tt := range tests {
		sx, sy := vp.WorldToScreen(tt.x, tt.y)
		if !near(sx, tt.sx) || !near(sy, tt.sy) {
			t.Errorf("WorldToScreen(%v, %v) = (%v, %v), want (%v, %v)", tt.x, tt.y, sx, sy, tt.sx, tt.sy)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		vp := NewViewport(DefaultMinScale, DefaultMaxScale)
		vp.SetDomainSize(0.5 + rng.Float64()*50)
		vp.Recenter(1+rng.Float64()*2000, 1+rng.Float64()*2000)
		vp.ZoomAt(rng.Float64()*800, rng.Float64()*600, 1+rng.Float64()*19)
		vp.Pan(rng.NormFloat64()*500, rng.NormFloat64()*500)

		x, y := rng.NormFloat64()*100, rng.NormFloat64()*100
		gx, gy := vp.ScreenToWorld(vp.WorldToScreen(x, y))
		if !near(gx, x) || !near(gy, y) {
			t.Fatalf("round trip (%v, %v) -> (%v, %v) with state %+v", x, y, gx, gy, vp.State())
		}
	}
}

func TestZoomAnchoring(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	vp := newTestViewport()

	for i := 0; i < 500; i++ {
		sx, sy := rng.Float64()*800, rng.Float64()*600
		bx, by := vp.ScreenToWorld(sx, sy)

		vp.ZoomAt(sx, sy, rng.Float64()*30)

		ax, ay := vp.ScreenToWorld(sx, sy)
		if !near(ax, bx) || !near(ay, by) {
			t.Fatalf("anchor drifted at step %d: before (%v, %v) after (%v, %v)", i, bx, by, ax, ay)
		}
	}
}

func TestZoomCyclesDoNotDrift(t *testing.T) {
	vp := newTestViewport()
	const sx, sy = 123.0, 456.0
	wx, wy := vp.ScreenToWorld(sx, sy)

	for i := 0; i < 50; i++ {
		vp.ZoomAt(sx, sy, vp.Scale()*1.1)
	}
	for i := 0; i < 50; i++ {
		vp.ZoomAt(sx, sy, vp.Scale()*0.9)
	}

	gx, gy := vp.ScreenToWorld(sx, sy)
	if !near(gx, wx) || !near(gy, wy) {
		t.Fatalf("anchor moved from (%v, %v) to (%v, %v)", wx, wy, gx, gy)
	}
}

func TestZoomClamping(t *testing.T) {
	tests := []struct {
		requested float64
		want      float64
	}{
		{1, 1},
		{5.5, 5.5},
		{20, 20},
		{0.5, 1},
		{0, 1},
		{-3, 1},
		{25, 20},
		{1e300, 20},
		{math.Inf(1), 20},
		{math.Inf(-1), 1},
		{math.SmallestNonzeroFloat64, 1},
		{math.Nextafter(20, 21), 20},
	}
	for _, tt := range tests {
		vp := newTestViewport()
		got := vp.ZoomAt(400, 300, tt.requested)
		if got != tt.want {
			t.Errorf("ZoomAt(%v) = %v, want %v", tt.requested, got, tt.want)
		}
		if got != vp.Scale() {
			t.Errorf("ZoomAt(%v) returned %v but scale is %v", tt.requested, got, vp.Scale())
		}
		ox, oy := vp.Offset()
		if !isFinite(ox) || !isFinite(oy) {
			t.Errorf("ZoomAt(%v) left non-finite offset (%v, %v)", tt.requested, ox, oy)
		}
	}
}

func TestZoomNaNIsNoop(t *testing.T) {
	vp := newTestViewport()
	vp.ZoomAt(100, 100, 3)
	before := vp.State()

	if got := vp.ZoomAt(100, 100, math.NaN()); got != before.Scale {
		t.Errorf("ZoomAt(NaN) = %v, want %v", got, before.Scale)
	}
	vp.ZoomAt(math.Inf(1), 100, 5)
	if vp.Scale() != before.Scale || vp.offsetX != before.OffsetX || vp.offsetY != before.OffsetY {
		t.Errorf("non-finite anchor changed the viewport")
	}
}

func TestInvalidBoundsFallBack(t *testing.T) {
	for _, b := range [][2]float64{{0, 10}, {5, 2}, {1, math.Inf(1)}, {math.NaN(), 3}} {
		vp := NewViewport(b[0], b[1])
		lo, hi := vp.Bounds()
		if lo != LooseMinScale || hi != LooseMaxScale {
			t.Errorf("NewViewport(%v, %v) bounds = [%v, %v]", b[0], b[1], lo, hi)
		}
	}
}

func TestDegenerateDomainAndCanvas(t *testing.T) {
	vp := NewViewport(DefaultMinScale, DefaultMaxScale)
	vp.SetDomainSize(0)
	vp.Recenter(0, -5)

	if vp.DomainSize() != 10 {
		t.Errorf("DomainSize = %v, want 10", vp.DomainSize())
	}
	w, h := vp.Size()
	if w != 1 || h != 1 {
		t.Errorf("Size = (%v, %v), want (1, 1)", w, h)
	}
	sx, sy := vp.WorldToScreen(3, 4)
	x, y := vp.ScreenToWorld(sx, sy)
	for _, v := range []float64{sx, sy, x, y} {
		if !isFinite(v) {
			t.Fatalf("non-finite coordinate %v", v)
		}
	}
}

func TestPanIsUnbounded(t *testing.T) {
	vp := newTestViewport()
	vp.Pan(1e9, -1e9)
	ox, oy := vp.Offset()
	if ox != 400+1e9 || oy != 300-1e9 {
		t.Errorf("Offset = (%v, %v)", ox, oy)
	}
	vp.Pan(math.NaN(), 1)
	if nx, ny := vp.Offset(); nx != ox || ny != oy {
		t.Errorf("NaN pan moved the view")
	}
}

func TestTransformMatchesWorldToScreen(t *testing.T) {
	vp := newTestViewport()
	vp.ZoomAt(200, 100, 3.7)
	m := vp.Transform()

	for _, p := range [][2]float64{{0, 0}, {1, -2}, {-7.5, 3.25}} {
		sx, sy := vp.WorldToScreen(p[0], p[1])
		mx, my := m.TransformPoint(p[0], p[1])
		if !near(sx, mx) || !near(sy, my) {
			t.Errorf("Transform(%v) = (%v, %v), want (%v, %v)", p, mx, my, sx, sy)
		}
	}
}

func TestVisibleWorld(t *testing.T) {
	vp := newTestViewport()
	r := vp.VisibleWorld()
	if !near(r.X, -10) || !near(r.Y, -10) || !near(r.Width, 20) || !near(r.Height, 20) {
		t.Errorf("VisibleWorld = %+v, want [-10,10]²", r)
	}
}

func TestGridSpacing(t *testing.T) {
	vp := newTestViewport()
	if got := vp.GridSpacing(); got != 20 {
		t.Errorf("GridSpacing = %v, want 20", got)
	}
	vp.ZoomAt(0, 0, 2)
	if got := vp.GridSpacing(); got != 40 {
		t.Errorf("GridSpacing at scale 2 = %v, want 40", got)
	}
}
