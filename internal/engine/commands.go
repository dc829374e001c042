package engine

import (
	"encoding/json"
	"slices"
)

// DrawCommand represents a single painted path for the frontend to execute.
// The frontend receives a list of these and replays them on a Canvas2D context.
type DrawCommand struct {
	Op          string        `json:"op"`                    // "clear", "fill" or "stroke"
	Path        []PathCommand `json:"path,omitempty"`        // Path data for fill/stroke
	Fill        string        `json:"fill,omitempty"`        // Fill colour (CSS)
	Stroke      string        `json:"stroke,omitempty"`      // Stroke colour (CSS)
	StrokeWidth float64       `json:"strokeWidth,omitempty"` // Stroke width in pixels
	Dash        []float64     `json:"dash,omitempty"`        // setLineDash segments
	Opacity     float64       `json:"opacity"`               // Global alpha
}

// PathCommand represents a single path segment for rendering.
// Format matches Canvas2D: ["M", x, y], ["L", x, y], ["A", cx, cy, r] for a
// full circle, ["Z"] to close.
type PathCommand []interface{}

type paintState struct {
	fill      Color
	stroke    Color
	lineWidth float64
	dash      []float64
	alpha     float64
}

func defaultPaintState() paintState {
	return paintState{
		fill:      RGB(0, 0, 0),
		stroke:    RGB(0, 0, 0),
		lineWidth: 1,
		alpha:     1,
	}
}

// CommandRecorder is a DrawTarget that records draw commands instead of
// painting pixels. Each Fill or Stroke captures the current path together
// with the paint state in effect, so replaying the list needs no state.
type CommandRecorder struct {
	width, height float64

	state    paintState
	stack    []paintState
	path     []PathCommand
	commands []DrawCommand
}

var _ DrawTarget = (*CommandRecorder)(nil)

// NewCommandRecorder creates a recorder for a canvas of the given size.
func NewCommandRecorder(width, height float64) *CommandRecorder {
	return &CommandRecorder{
		width:  width,
		height: height,
		state:  defaultPaintState(),
	}
}

// Commands returns the commands recorded so far, in painter's order.
func (r *CommandRecorder) Commands() []DrawCommand {
	return r.commands
}

// Reset discards recorded commands and paint state.
func (r *CommandRecorder) Reset() {
	r.commands = nil
	r.path = nil
	r.stack = nil
	r.state = defaultPaintState()
}

func (r *CommandRecorder) Size() (float64, float64) { return r.width, r.height }

func (r *CommandRecorder) Clear() {
	r.commands = append(r.commands, DrawCommand{Op: "clear", Opacity: 1})
}

func (r *CommandRecorder) BeginPath() {
	r.path = nil
}

func (r *CommandRecorder) MoveTo(x, y float64) {
	r.path = append(r.path, PathCommand{"M", x, y})
}

func (r *CommandRecorder) LineTo(x, y float64) {
	r.path = append(r.path, PathCommand{"L", x, y})
}

func (r *CommandRecorder) Circle(x, y, radius float64) {
	r.path = append(r.path, PathCommand{"A", x, y, radius})
}

func (r *CommandRecorder) ClosePath() {
	r.path = append(r.path, PathCommand{"Z"})
}

func (r *CommandRecorder) Fill() {
	if len(r.path) == 0 {
		return
	}
	r.commands = append(r.commands, DrawCommand{
		Op:      "fill",
		Path:    slices.Clip(r.path),
		Fill:    r.state.fill.CSS(),
		Opacity: r.state.alpha,
	})
}

func (r *CommandRecorder) Stroke() {
	if len(r.path) == 0 {
		return
	}
	r.commands = append(r.commands, DrawCommand{
		Op:          "stroke",
		Path:        slices.Clip(r.path),
		Stroke:      r.state.stroke.CSS(),
		StrokeWidth: r.state.lineWidth,
		Dash:        r.state.dash,
		Opacity:     r.state.alpha,
	})
}

func (r *CommandRecorder) SetFillColor(c Color)   { r.state.fill = c }
func (r *CommandRecorder) SetStrokeColor(c Color) { r.state.stroke = c }
func (r *CommandRecorder) SetLineWidth(w float64) { r.state.lineWidth = w }
func (r *CommandRecorder) SetGlobalAlpha(a float64) {
	r.state.alpha = a
}

func (r *CommandRecorder) SetDash(segments ...float64) {
	if len(segments) == 0 {
		r.state.dash = nil
		return
	}
	r.state.dash = slices.Clone(segments)
}

func (r *CommandRecorder) Save() {
	r.stack = append(r.stack, r.state)
}

func (r *CommandRecorder) Restore() {
	if len(r.stack) == 0 {
		return
	}
	r.state = r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
}

// Frame is one full repaint as shipped to clients.
type Frame struct {
	Seq      int64         `json:"seq"`
	Viewport ViewportState `json:"viewport"`
	Commands []DrawCommand `json:"commands"`
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	if commands == nil {
		commands = []DrawCommand{}
	}
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}
