package engine

import (
	"context"
	"fmt"
	"math"
)

// Default multiplicative wheel zoom steps.
const (
	DefaultZoomInFactor  = 1.1
	DefaultZoomOutFactor = 0.9
)

// EventKind identifies a raw input event.
type EventKind string

const (
	EventPointerDown  EventKind = "pointerdown"
	EventPointerMove  EventKind = "pointermove"
	EventPointerUp    EventKind = "pointerup"
	EventPointerLeave EventKind = "pointerleave"
	EventWheel        EventKind = "wheel"
	EventZoomSlider   EventKind = "zoom"
)

// ParseEventKind validates an event kind received from a client.
func ParseEventKind(s string) (EventKind, error) {
	switch k := EventKind(s); k {
	case EventPointerDown, EventPointerMove, EventPointerUp, EventPointerLeave, EventWheel, EventZoomSlider:
		return k, nil
	}
	return "", fmt.Errorf("unknown input event %q", s)
}

// InputEvent is one pointer, wheel or zoom-slider event.
//
// X and Y are client coordinates; OriginX and OriginY give the canvas's
// top-left corner in the same space, so X-OriginX is canvas-local. Value
// carries the requested scale of a slider event.
type InputEvent struct {
	Kind    EventKind `json:"kind"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	DeltaY  float64   `json:"deltaY,omitempty"`
	Value   float64   `json:"value,omitempty"`
	OriginX float64   `json:"originX,omitempty"`
	OriginY float64   `json:"originY,omitempty"`

	// PreventDefault, when set, is called for wheel events so the host page
	// does not scroll.
	PreventDefault func() `json:"-"`
}

// Local returns the event position in canvas pixels.
func (ev InputEvent) Local() (float64, float64) {
	return ev.X - ev.OriginX, ev.Y - ev.OriginY
}

// InputSource is a stream of input events. The channel is closed when the
// source is exhausted.
type InputSource interface {
	Events() <-chan InputEvent
}

// DragState is the state of the drag-to-pan machine.
type DragState int

const (
	Idle DragState = iota
	Dragging
)

func (s DragState) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Controller turns input events into viewport mutations. OnRedraw runs after
// every mutation; OnZoom receives the effective scale after every zoom so a
// zoom display can be brought back in line with a clamped request.
type Controller struct {
	vp *Viewport

	ZoomInFactor  float64
	ZoomOutFactor float64

	OnRedraw func()
	OnZoom   func(scale float64)

	state        DragState
	lastX, lastY float64
}

// NewController binds a controller to vp with the default wheel factors.
func NewController(vp *Viewport) *Controller {
	return &Controller{
		vp:            vp,
		ZoomInFactor:  DefaultZoomInFactor,
		ZoomOutFactor: DefaultZoomOutFactor,
	}
}

// State reports whether a drag is in progress.
func (c *Controller) State() DragState {
	return c.state
}

// Handle applies one event and reports whether the view changed.
func (c *Controller) Handle(ev InputEvent) bool {
	switch ev.Kind {
	case EventPointerDown:
		c.DragStart(ev.Local())
		return false
	case EventPointerMove:
		return c.DragMove(ev.Local())
	case EventPointerUp, EventPointerLeave:
		c.DragEnd()
		return false
	case EventWheel:
		return c.Wheel(ev)
	case EventZoomSlider:
		c.ZoomSlider(ev.Value)
		return true
	}
	return false
}

// Run handles events from src in order until the source is closed or ctx is
// cancelled.
func (c *Controller) Run(ctx context.Context, src InputSource) error {
	events := src.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.Handle(ev)
		}
	}
}

// DragStart enters the Dragging state at canvas position (x, y).
func (c *Controller) DragStart(x, y float64) {
	c.state = Dragging
	c.lastX, c.lastY = x, y
}

// DragMove pans by the distance moved since the previous pointer position.
// Outside a drag it does nothing.
func (c *Controller) DragMove(x, y float64) bool {
	if c.state != Dragging {
		return false
	}
	dx, dy := x-c.lastX, y-c.lastY
	c.lastX, c.lastY = x, y

	c.vp.Pan(dx, dy)
	c.redraw()
	return true
}

// DragEnd returns to Idle. Pointer-up and pointer-leave both end a drag.
func (c *Controller) DragEnd() {
	c.state = Idle
}

// Wheel zooms in (negative delta) or out (positive delta) by a fixed factor,
// anchored at the cursor. A zero delta is ignored.
func (c *Controller) Wheel(ev InputEvent) bool {
	if ev.PreventDefault != nil {
		ev.PreventDefault()
	}
	if ev.DeltaY == 0 || math.IsNaN(ev.DeltaY) {
		return false
	}

	factor := c.zoomOut()
	if ev.DeltaY < 0 {
		factor = c.zoomIn()
	}

	x, y := ev.Local()
	c.zoom(x, y, c.vp.Scale()*factor)
	return true
}

// ZoomSlider applies a zoom requested by the zoom control. The anchor is
// world origin, not the cursor. It returns the effective scale.
func (c *Controller) ZoomSlider(value float64) float64 {
	ox, oy := c.vp.WorldToScreen(0, 0)
	return c.zoom(ox, oy, value)
}

func (c *Controller) zoom(x, y, requested float64) float64 {
	effective := c.vp.ZoomAt(x, y, requested)
	if c.OnZoom != nil {
		c.OnZoom(effective)
	}
	c.redraw()
	return effective
}

func (c *Controller) redraw() {
	if c.OnRedraw != nil {
		c.OnRedraw()
	}
}

func (c *Controller) zoomIn() float64 {
	if c.ZoomInFactor > 1 && isFinite(c.ZoomInFactor) {
		return c.ZoomInFactor
	}
	return DefaultZoomInFactor
}

func (c *Controller) zoomOut() float64 {
	if c.ZoomOutFactor > 0 && c.ZoomOutFactor < 1 {
		return c.ZoomOutFactor
	}
	return DefaultZoomOutFactor
}
