package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

type chanSource chan InputEvent

func (c chanSource) Events() <-chan InputEvent { return c }

func TestDragPanScenario(t *testing.T) {
	vp := newTestViewport()
	c := NewController(vp)

	redraws := 0
	c.OnRedraw = func() { redraws++ }

	before := vp.State()

	c.Handle(InputEvent{Kind: EventPointerDown, X: 100, Y: 100})
	if c.State() != Dragging {
		t.Fatalf("state after pointer-down = %v, want dragging", c.State())
	}
	if !c.Handle(InputEvent{Kind: EventPointerMove, X: 150, Y: 130}) {
		t.Fatal("pointer-move while dragging reported no change")
	}
	c.Handle(InputEvent{Kind: EventPointerUp, X: 150, Y: 130})

	after := vp.State()
	if after.OffsetX != before.OffsetX+50 || after.OffsetY != before.OffsetY+30 {
		t.Errorf("offset = (%v, %v), want (%v, %v)", after.OffsetX, after.OffsetY, before.OffsetX+50, before.OffsetY+30)
	}
	if after.Scale != before.Scale || after.DomainSize != before.DomainSize ||
		after.Width != before.Width || after.Height != before.Height {
		t.Errorf("pan changed more than the offset: before %+v after %+v", before, after)
	}
	if redraws != 1 {
		t.Errorf("redraws = %d, want 1", redraws)
	}
	if c.State() != Idle {
		t.Errorf("state after pointer-up = %v, want idle", c.State())
	}
}

func TestDragDeltasAreIncremental(t *testing.T) {
	vp := newTestViewport()
	c := NewController(vp)

	c.DragStart(0, 0)
	c.DragMove(10, 0)
	c.DragMove(25, 5)
	c.DragMove(20, 5)

	ox, oy := vp.Offset()
	if ox != 420 || oy != 305 {
		t.Errorf("offset = (%v, %v), want (420, 305)", ox, oy)
	}
}

func TestPointerLeaveEndsDrag(t *testing.T) {
	vp := newTestViewport()
	c := NewController(vp)

	c.Handle(InputEvent{Kind: EventPointerDown, X: 10, Y: 10})
	c.Handle(InputEvent{Kind: EventPointerLeave, X: 900, Y: 10})
	if c.State() != Idle {
		t.Fatalf("state after pointer-leave = %v, want idle", c.State())
	}
	if c.Handle(InputEvent{Kind: EventPointerMove, X: 50, Y: 50}) {
		t.Error("move after leave panned the view")
	}
	if ox, oy := vp.Offset(); ox != 400 || oy != 300 {
		t.Errorf("offset = (%v, %v), want unchanged", ox, oy)
	}
}

func TestMoveWhileIdleIsNoop(t *testing.T) {
	vp := newTestViewport()
	c := NewController(vp)
	c.OnRedraw = func() { t.Error("redraw while idle") }

	if c.Handle(InputEvent{Kind: EventPointerMove, X: 1, Y: 1}) {
		t.Error("idle move reported a change")
	}
}

func TestWheelZoomInAtOrigin(t *testing.T) {
	vp := newTestViewport()
	vp.ZoomAt(400, 300, 2)
	c := NewController(vp)

	var shown float64
	c.OnZoom = func(s float64) { shown = s }
	prevented := false

	ox, oy := vp.WorldToScreen(0, 0)
	c.Handle(InputEvent{
		Kind:           EventWheel,
		X:              ox + 30,
		Y:              oy + 40,
		OriginX:        30,
		OriginY:        40,
		DeltaY:         -100,
		PreventDefault: func() { prevented = true },
	})

	if !prevented {
		t.Error("wheel did not prevent default scrolling")
	}
	if !near(vp.Scale(), 2.2) {
		t.Errorf("scale = %v, want 2.2", vp.Scale())
	}
	if shown != vp.Scale() {
		t.Errorf("zoom display = %v, want %v", shown, vp.Scale())
	}
	if nx, ny := vp.Offset(); nx != ox || ny != oy {
		t.Errorf("offset moved from (%v, %v) to (%v, %v)", ox, oy, nx, ny)
	}
}

func TestWheelDirectionAndClamp(t *testing.T) {
	vp := newTestViewport()
	c := NewController(vp)

	var shown []float64
	c.OnZoom = func(s float64) { shown = append(shown, s) }

	c.Wheel(InputEvent{X: 400, Y: 300, DeltaY: 3})
	if vp.Scale() != DefaultMinScale {
		t.Errorf("zoom out below the minimum gave scale %v", vp.Scale())
	}
	c.Wheel(InputEvent{X: 400, Y: 300, DeltaY: -3})
	if !near(vp.Scale(), 1.1) {
		t.Errorf("zoom in gave scale %v, want 1.1", vp.Scale())
	}
	c.Wheel(InputEvent{X: 400, Y: 300, DeltaY: 3})
	if vp.Scale() != DefaultMinScale {
		t.Errorf("zoom out to 0.99 gave scale %v, want clamped %v", vp.Scale(), DefaultMinScale)
	}
	if len(shown) != 3 || shown[0] != DefaultMinScale {
		t.Errorf("zoom display updates = %v", shown)
	}
}

func TestWheelZeroDeltaIgnored(t *testing.T) {
	vp := newTestViewport()
	c := NewController(vp)
	c.OnZoom = func(float64) { t.Error("zero delta reported a zoom") }

	if c.Wheel(InputEvent{X: 10, Y: 10}) {
		t.Error("zero delta reported a change")
	}
	if vp.Scale() != 1 {
		t.Errorf("scale = %v, want 1", vp.Scale())
	}
}

func TestZoomSliderAnchorsAtOrigin(t *testing.T) {
	vp := newTestViewport()
	vp.Pan(-120, 45)
	c := NewController(vp)

	var shown float64
	c.OnZoom = func(s float64) { shown = s }

	ox, oy := vp.WorldToScreen(0, 0)
	if got := c.ZoomSlider(50); got != DefaultMaxScale {
		t.Errorf("ZoomSlider(50) = %v, want %v", got, DefaultMaxScale)
	}
	if shown != DefaultMaxScale {
		t.Errorf("zoom display = %v, want clamped %v", shown, DefaultMaxScale)
	}
	nx, ny := vp.WorldToScreen(0, 0)
	if !near(nx, ox) || !near(ny, oy) {
		t.Errorf("origin moved from (%v, %v) to (%v, %v)", ox, oy, nx, ny)
	}
}

func TestRunConsumesInOrder(t *testing.T) {
	vp := newTestViewport()
	c := NewController(vp)

	src := make(chanSource, 4)
	src <- InputEvent{Kind: EventPointerDown, X: 0, Y: 0}
	src <- InputEvent{Kind: EventPointerMove, X: 5, Y: 5}
	src <- InputEvent{Kind: EventPointerMove, X: 15, Y: 0}
	src <- InputEvent{Kind: EventPointerUp}
	close(src)

	if err := c.Run(context.Background(), src); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ox, oy := vp.Offset(); ox != 415 || oy != 300 {
		t.Errorf("offset = (%v, %v), want (415, 300)", ox, oy)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	c := NewController(newTestViewport())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := c.Run(ctx, make(chanSource))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v, want deadline exceeded", err)
	}
}

func TestParseEventKind(t *testing.T) {
	if k, err := ParseEventKind("wheel"); err != nil || k != EventWheel {
		t.Errorf("ParseEventKind(wheel) = %v, %v", k, err)
	}
	if _, err := ParseEventKind("scroll"); err == nil {
		t.Error("ParseEventKind(scroll) succeeded")
	}
}
