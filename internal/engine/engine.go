package engine

import (
	"github.com/rayscope/rayscope/backend-go/internal/scene"
)

// Settings configures a new Engine.
type Settings struct {
	MinScale      float64
	MaxScale      float64
	ZoomInFactor  float64
	ZoomOutFactor float64
	Width         float64
	Height        float64
}

// DefaultSettings returns the stock scale bounds, wheel factors and an
// 800x600 canvas.
func DefaultSettings() Settings {
	return Settings{
		MinScale:      DefaultMinScale,
		MaxScale:      DefaultMaxScale,
		ZoomInFactor:  DefaultZoomInFactor,
		ZoomOutFactor: DefaultZoomOutFactor,
		Width:         800,
		Height:        600,
	}
}

// Engine is the viewer core for one view. It owns the viewport, the input
// controller and the current render options, and holds a shared reference to
// the immutable dataset. It processes commands from a transport (websocket
// session or wasm bridge) and answers queries with frames.
//
// An Engine is not safe for concurrent use; each session drives its own
// engine from one goroutine.
type Engine struct {
	ds   *scene.Dataset
	vp   *Viewport
	ctrl *Controller
	opts RenderOptions

	recorder *CommandRecorder
	seq      int64
}

// NewEngine creates an inert engine; nothing is drawn until a dataset is
// loaded.
func NewEngine(s Settings) *Engine {
	vp := NewViewport(s.MinScale, s.MaxScale)
	vp.Resize(s.Width, s.Height)

	ctrl := NewController(vp)
	if s.ZoomInFactor != 0 {
		ctrl.ZoomInFactor = s.ZoomInFactor
	}
	if s.ZoomOutFactor != 0 {
		ctrl.ZoomOutFactor = s.ZoomOutFactor
	}

	w, h := vp.Size()
	return &Engine{
		vp:       vp,
		ctrl:     ctrl,
		opts:     DefaultRenderOptions(),
		recorder: NewCommandRecorder(w, h),
	}
}

// --- Commands (transport → engine) ---

// Load attaches a dataset, adopts its domain size and puts world origin at
// the canvas centre. The scale is kept. A nil dataset makes the engine inert
// again.
func (e *Engine) Load(ds *scene.Dataset) {
	e.ds = ds
	e.ctrl.DragEnd()
	if ds == nil {
		return
	}
	e.vp.SetDomainSize(ds.Parameters.DomainSize())
	w, h := e.vp.Size()
	e.vp.Recenter(w, h)
}

// LoadSample loads the built-in generated dataset.
func (e *Engine) LoadSample(seed uint64) {
	e.Load(scene.NewSampleDataset(seed))
}

// Resize changes the canvas dimensions. World origin keeps its pixel
// position.
func (e *Engine) Resize(width, height float64) {
	e.vp.Resize(width, height)
	w, h := e.vp.Size()
	e.recorder = NewCommandRecorder(w, h)
}

// HandleInput feeds one pointer/wheel/slider event to the controller and
// reports whether the view changed. Input is ignored while the engine is
// inert.
func (e *Engine) HandleInput(ev InputEvent) bool {
	if e.ds == nil {
		return false
	}
	return e.ctrl.Handle(ev)
}

// SetZoom applies a zoom-control value anchored at world origin and returns
// the effective scale.
func (e *Engine) SetZoom(value float64) float64 {
	if e.ds == nil {
		return e.vp.Scale()
	}
	return e.ctrl.ZoomSlider(value)
}

// SetLayer switches one layer on or off.
func (e *Engine) SetLayer(l Layer, on bool) {
	e.opts = e.opts.With(l, on)
}

// SetRayOpacity sets the ray alpha, clamped to [0, 1].
func (e *Engine) SetRayOpacity(a float64) {
	e.opts = e.opts.WithRayOpacity(a)
}

// SetOptions replaces all render options at once.
func (e *Engine) SetOptions(o RenderOptions) {
	e.opts = o.WithRayOpacity(o.RayOpacity)
}

// --- Queries (engine → transport) ---

// Ready reports whether a dataset is attached.
func (e *Engine) Ready() bool {
	return e.ds != nil
}

// Dataset returns the attached dataset, or nil.
func (e *Engine) Dataset() *scene.Dataset {
	return e.ds
}

// Options returns the current render options.
func (e *Engine) Options() RenderOptions {
	return e.opts
}

// Viewport returns a snapshot of the viewport state.
func (e *Engine) Viewport() ViewportState {
	return e.vp.State()
}

// ScreenToWorld maps a canvas pixel to world coordinates under the current
// view.
func (e *Engine) ScreenToWorld(sx, sy float64) (float64, float64) {
	return e.vp.ScreenToWorld(sx, sy)
}

// Controller exposes the input controller so transports can install their
// redraw and zoom-display hooks.
func (e *Engine) Controller() *Controller {
	return e.ctrl
}

// Summary returns the info-panel summary of the attached dataset, or nil.
func (e *Engine) Summary() *scene.Summary {
	if e.ds == nil {
		return nil
	}
	s := scene.Summarize(e.ds)
	return &s
}

// Render paints the current view on t. The viewport follows the target's
// size, so a target of a different size sees the same world origin pixel
// and scale.
func (e *Engine) Render(t DrawTarget) {
	if e.ds == nil {
		return
	}
	if w, h := t.Size(); w != e.vp.width || h != e.vp.height {
		e.vp.Resize(w, h)
	}
	Render(t, e.vp, e.ds, e.opts)
}

// Frame renders the current view into draw commands. Each call yields a new
// sequence number. An inert engine returns a frame with no commands.
func (e *Engine) Frame() Frame {
	e.recorder.Reset()
	e.Render(e.recorder)
	e.seq++

	cmds := e.recorder.Commands()
	if cmds == nil {
		cmds = []DrawCommand{}
	}
	return Frame{
		Seq:      e.seq,
		Viewport: e.vp.State(),
		Commands: cmds,
	}
}

// RenderJSON renders the current view and returns the draw commands as JSON.
func (e *Engine) RenderJSON() string {
	result, _ := DrawCommandsToJSON(e.Frame().Commands)
	return result
}

// Fork returns an independent engine with a copy of this engine's view and
// options over the same dataset. Exports use it to render without touching
// the live view.
func (e *Engine) Fork() *Engine {
	vp := *e.vp
	ctrl := NewController(&vp)
	ctrl.ZoomInFactor = e.ctrl.ZoomInFactor
	ctrl.ZoomOutFactor = e.ctrl.ZoomOutFactor

	w, h := vp.Size()
	return &Engine{
		ds:       e.ds,
		vp:       &vp,
		ctrl:     ctrl,
		opts:     e.opts,
		recorder: NewCommandRecorder(w, h),
	}
}
